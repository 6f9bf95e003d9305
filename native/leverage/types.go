package leverage

import (
	"math/big"

	"horus/crypto"
)

// UserInfo is the per-account position record. Records spring into existence
// zero valued on first touch and are never deleted.
type UserInfo struct {
	Address crypto.Address
	// Balance is the collateral held in static (wrapped) units.
	Balance *big.Int
	// Last is the elastic value of Balance at the last settlement; growth is
	// measured against it.
	Last *big.Int
	// Debt is the outstanding borrow in debt-asset units.
	Debt *big.Int
	// LP counts the liquidity tokens attributed to the account.
	LP *big.Int
	// RewardDebt is LP scaled by the accumulator at the last reward
	// settlement.
	RewardDebt *big.Int
}

// Info is the aggregate ledger record. Balance, Last, Debt and LP always equal
// the sums of the corresponding user fields.
type Info struct {
	Balance *big.Int
	Last    *big.Int
	Debt    *big.Int
	LP      *big.Int
	// Ceiling bounds aggregate Debt.
	Ceiling *big.Int
	// Accrued holds interest skimmed from users, in static units, owed to
	// the operator.
	Accrued         *big.Int
	RewardPerBlock  *big.Int
	LastRewardBlock uint64
	// AccPerShare is the reward accumulator scaled by AccPrecision.
	AccPerShare *big.Int
}

// NewUserInfo returns the zero-valued default record for addr.
func NewUserInfo(addr crypto.Address) *UserInfo {
	return &UserInfo{
		Address:    addr,
		Balance:    big.NewInt(0),
		Last:       big.NewInt(0),
		Debt:       big.NewInt(0),
		LP:         big.NewInt(0),
		RewardDebt: big.NewInt(0),
	}
}

// NewInfo builds the aggregate record created once at construction.
func NewInfo(ceiling, rewardPerBlock *big.Int, startBlock uint64) *Info {
	return &Info{
		Balance:         big.NewInt(0),
		Last:            big.NewInt(0),
		Debt:            big.NewInt(0),
		LP:              big.NewInt(0),
		Ceiling:         copyBigInt(ceiling),
		Accrued:         big.NewInt(0),
		RewardPerBlock:  copyBigInt(rewardPerBlock),
		LastRewardBlock: startBlock,
		AccPerShare:     big.NewInt(0),
	}
}

// Clone returns a deep copy with nil amounts normalised to zero.
func (u *UserInfo) Clone() *UserInfo {
	if u == nil {
		return nil
	}
	return &UserInfo{
		Address:    u.Address,
		Balance:    copyBigInt(u.Balance),
		Last:       copyBigInt(u.Last),
		Debt:       copyBigInt(u.Debt),
		LP:         copyBigInt(u.LP),
		RewardDebt: copyBigInt(u.RewardDebt),
	}
}

// IsZero reports whether the record still holds only default values.
func (u *UserInfo) IsZero() bool {
	if u == nil {
		return true
	}
	for _, v := range []*big.Int{u.Balance, u.Last, u.Debt, u.LP, u.RewardDebt} {
		if v != nil && v.Sign() != 0 {
			return false
		}
	}
	return true
}

// Clone returns a deep copy with nil amounts normalised to zero.
func (i *Info) Clone() *Info {
	if i == nil {
		return nil
	}
	return &Info{
		Balance:         copyBigInt(i.Balance),
		Last:            copyBigInt(i.Last),
		Debt:            copyBigInt(i.Debt),
		LP:              copyBigInt(i.LP),
		Ceiling:         copyBigInt(i.Ceiling),
		Accrued:         copyBigInt(i.Accrued),
		RewardPerBlock:  copyBigInt(i.RewardPerBlock),
		LastRewardBlock: i.LastRewardBlock,
		AccPerShare:     copyBigInt(i.AccPerShare),
	}
}
