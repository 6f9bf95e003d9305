package state

import (
	"fmt"
	"math/big"

	"horus/crypto"
	"horus/native/leverage"
)

var (
	leverageInfoKey      = []byte("leverage/info")
	leverageUserPrefix   = []byte("leverage/user/")
	leverageUserIndexKey = []byte("leverage/users")
)

func leverageUserKey(addr []byte) []byte {
	buf := make([]byte, len(leverageUserPrefix)+len(addr))
	copy(buf, leverageUserPrefix)
	copy(buf[len(leverageUserPrefix):], addr)
	return buf
}

type leverageInfoRecord struct {
	Balance         *big.Int
	Last            *big.Int
	Debt            *big.Int
	LP              *big.Int
	Ceiling         *big.Int
	Accrued         *big.Int
	RewardPerBlock  *big.Int
	LastRewardBlock uint64
	AccPerShare     *big.Int
}

type leverageUserRecord struct {
	Prefix     string
	Address    []byte
	Balance    *big.Int
	Last       *big.Int
	Debt       *big.Int
	LP         *big.Int
	RewardDebt *big.Int
}

func amountOrZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	if v.Sign() < 0 {
		return nil
	}
	return new(big.Int).Set(v)
}

func nonNegative(field string, values ...*big.Int) ([]*big.Int, error) {
	out := make([]*big.Int, len(values))
	for i, v := range values {
		out[i] = amountOrZero(v)
		if out[i] == nil {
			return nil, fmt.Errorf("leverage state: negative %s", field)
		}
	}
	return out, nil
}

// GetInfo returns the aggregate leverage record, or nil when it has not been
// initialised.
func (m *Manager) GetInfo() (*leverage.Info, error) {
	var record leverageInfoRecord
	ok, err := m.KVGet(leverageInfoKey, &record)
	if err != nil || !ok {
		return nil, err
	}
	return &leverage.Info{
		Balance:         amountOrZero(record.Balance),
		Last:            amountOrZero(record.Last),
		Debt:            amountOrZero(record.Debt),
		LP:              amountOrZero(record.LP),
		Ceiling:         amountOrZero(record.Ceiling),
		Accrued:         amountOrZero(record.Accrued),
		RewardPerBlock:  amountOrZero(record.RewardPerBlock),
		LastRewardBlock: record.LastRewardBlock,
		AccPerShare:     amountOrZero(record.AccPerShare),
	}, nil
}

// PutInfo stores the aggregate leverage record.
func (m *Manager) PutInfo(info *leverage.Info) error {
	if info == nil {
		return fmt.Errorf("leverage state: nil info")
	}
	v, err := nonNegative("info amount", info.Balance, info.Last, info.Debt, info.LP, info.Ceiling, info.Accrued, info.RewardPerBlock, info.AccPerShare)
	if err != nil {
		return err
	}
	return m.KVPut(leverageInfoKey, &leverageInfoRecord{
		Balance:         v[0],
		Last:            v[1],
		Debt:            v[2],
		LP:              v[3],
		Ceiling:         v[4],
		Accrued:         v[5],
		RewardPerBlock:  v[6],
		LastRewardBlock: info.LastRewardBlock,
		AccPerShare:     v[7],
	})
}

// GetUser returns the stored position of addr, or nil when none exists.
func (m *Manager) GetUser(addr crypto.Address) (*leverage.UserInfo, error) {
	var record leverageUserRecord
	ok, err := m.KVGet(leverageUserKey(addr.Bytes()), &record)
	if err != nil || !ok {
		return nil, err
	}
	return userFromRecord(&record)
}

func userFromRecord(record *leverageUserRecord) (*leverage.UserInfo, error) {
	addr, err := crypto.TryNewAddress(crypto.AddressPrefix(record.Prefix), record.Address)
	if err != nil {
		return nil, fmt.Errorf("leverage state: %w", err)
	}
	return &leverage.UserInfo{
		Address:    addr,
		Balance:    amountOrZero(record.Balance),
		Last:       amountOrZero(record.Last),
		Debt:       amountOrZero(record.Debt),
		LP:         amountOrZero(record.LP),
		RewardDebt: amountOrZero(record.RewardDebt),
	}, nil
}

// PutUser stores user's position and records the address in the user index.
func (m *Manager) PutUser(user *leverage.UserInfo) error {
	if user == nil {
		return fmt.Errorf("leverage state: nil user")
	}
	raw := user.Address.Bytes()
	if len(raw) != crypto.AddressLength {
		return fmt.Errorf("leverage state: invalid user address")
	}
	v, err := nonNegative("user amount", user.Balance, user.Last, user.Debt, user.LP, user.RewardDebt)
	if err != nil {
		return err
	}
	if err := m.KVPut(leverageUserKey(raw), &leverageUserRecord{
		Prefix:     string(user.Address.Prefix()),
		Address:    raw,
		Balance:    v[0],
		Last:       v[1],
		Debt:       v[2],
		LP:         v[3],
		RewardDebt: v[4],
	}); err != nil {
		return err
	}
	return m.KVAppend(leverageUserIndexKey, raw)
}

// Users returns every stored position in the order first written.
func (m *Manager) Users() ([]*leverage.UserInfo, error) {
	index, err := m.KVGetList(leverageUserIndexKey)
	if err != nil {
		return nil, err
	}
	out := make([]*leverage.UserInfo, 0, len(index))
	for _, raw := range index {
		var record leverageUserRecord
		ok, err := m.KVGet(leverageUserKey(raw), &record)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("leverage state: indexed user %x missing", raw)
		}
		user, err := userFromRecord(&record)
		if err != nil {
			return nil, err
		}
		out = append(out, user)
	}
	return out, nil
}
