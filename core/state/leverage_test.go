package state

import (
	"errors"
	"math/big"
	"testing"

	"horus/crypto"
	"horus/native/leverage"
	"horus/storage"
)

func testAddress(prefix crypto.AddressPrefix, suffix byte) crypto.Address {
	raw := make([]byte, crypto.AddressLength)
	raw[len(raw)-1] = suffix
	return crypto.MustNewAddress(prefix, raw)
}

type memToken struct {
	balances map[string]*big.Int
}

func (m *memToken) BalanceOf(addr crypto.Address) (*big.Int, error) {
	if bal, ok := m.balances[addr.Key()]; ok {
		return new(big.Int).Set(bal), nil
	}
	return big.NewInt(0), nil
}

func (m *memToken) Transfer(from, to crypto.Address, amount *big.Int) error {
	fromBal, _ := m.BalanceOf(from)
	if fromBal.Cmp(amount) < 0 {
		return errors.New("insufficient balance")
	}
	toBal, _ := m.BalanceOf(to)
	m.balances[from.Key()] = fromBal.Sub(fromBal, amount)
	m.balances[to.Key()] = toBal.Add(toBal, amount)
	return nil
}

func TestLeverageRecordsRoundTrip(t *testing.T) {
	db := storage.NewMemDB()
	mgr := NewManager(db)

	if info, err := mgr.GetInfo(); err != nil || info != nil {
		t.Fatalf("expected no info, got %v (err %v)", info, err)
	}
	info := leverage.NewInfo(big.NewInt(1000), big.NewInt(7), 12)
	info.Debt = big.NewInt(40)
	info.AccPerShare = new(big.Int).Lsh(big.NewInt(1), 100)
	if err := mgr.PutInfo(info); err != nil {
		t.Fatalf("put info: %v", err)
	}

	alice := testAddress(crypto.AccountPrefix, 0x01)
	user := leverage.NewUserInfo(alice)
	user.Balance = big.NewInt(500)
	user.Debt = big.NewInt(40)
	if err := mgr.PutUser(user); err != nil {
		t.Fatalf("put user: %v", err)
	}
	if err := mgr.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	reopened := NewManager(db)
	gotInfo, err := reopened.GetInfo()
	if err != nil {
		t.Fatalf("get info: %v", err)
	}
	if gotInfo.Ceiling.Int64() != 1000 || gotInfo.LastRewardBlock != 12 || gotInfo.AccPerShare.Cmp(info.AccPerShare) != 0 {
		t.Fatalf("unexpected info: %+v", gotInfo)
	}
	gotUser, err := reopened.GetUser(alice)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if !gotUser.Address.Equal(alice) || gotUser.Address.Prefix() != crypto.AccountPrefix || gotUser.Balance.Int64() != 500 || gotUser.LP.Sign() != 0 {
		t.Fatalf("unexpected user: %+v", gotUser)
	}
	if missing, err := reopened.GetUser(testAddress(crypto.AccountPrefix, 0x02)); err != nil || missing != nil {
		t.Fatalf("expected absent user, got %v (err %v)", missing, err)
	}
}

func TestLeverageUsersIndex(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	addrs := []crypto.Address{
		testAddress(crypto.AccountPrefix, 0x09),
		testAddress(crypto.AccountPrefix, 0x03),
	}
	for _, addr := range addrs {
		if err := mgr.PutUser(leverage.NewUserInfo(addr)); err != nil {
			t.Fatalf("put user: %v", err)
		}
	}
	// Rewriting a user does not duplicate it in the index.
	if err := mgr.PutUser(leverage.NewUserInfo(addrs[0])); err != nil {
		t.Fatalf("put user: %v", err)
	}
	users, err := mgr.Users()
	if err != nil {
		t.Fatalf("users: %v", err)
	}
	if len(users) != 2 || !users[0].Address.Equal(addrs[0]) || !users[1].Address.Equal(addrs[1]) {
		t.Fatalf("unexpected users: %+v", users)
	}
}

func TestLeverageRejectsNegativeAmounts(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	user := leverage.NewUserInfo(testAddress(crypto.AccountPrefix, 0x01))
	user.Debt = big.NewInt(-1)
	if err := mgr.PutUser(user); err == nil {
		t.Fatalf("expected negative debt to be rejected")
	}
	if mgr.Pending() != 0 {
		t.Fatalf("rejected write must not reach the overlay")
	}
}

func TestEngineRunsOnManager(t *testing.T) {
	db := storage.NewMemDB()
	mgr := NewManager(db)
	rates, err := leverage.NewIndexAdapter(big.NewInt(leverage.DecimalScale))
	if err != nil {
		t.Fatalf("rates: %v", err)
	}
	module := testAddress(crypto.ModulePrefix, 0xA0)
	owner := testAddress(crypto.AccountPrefix, 0xA1)
	alice := testAddress(crypto.AccountPrefix, 0x01)
	collateral := &memToken{balances: map[string]*big.Int{alice.Key(): big.NewInt(300)}}

	engine := leverage.NewEngine(module, leverage.Parameters{Owner: owner}, leverage.Collaborators{
		Rates:      rates,
		Collateral: collateral,
	})
	engine.SetState(mgr)
	if err := engine.Initialise(big.NewInt(1000), big.NewInt(0), 0); err != nil {
		t.Fatalf("initialise: %v", err)
	}
	if err := engine.AddCollateral(alice, big.NewInt(200)); err != nil {
		t.Fatalf("add collateral: %v", err)
	}
	if err := engine.RemoveCollateral(alice, big.NewInt(201)); !errors.Is(err, leverage.ErrInsufficientEquity) {
		t.Fatalf("expected ErrInsufficientEquity, got %v", err)
	}
	if err := mgr.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	reopened := NewManager(db)
	users, err := reopened.Users()
	if err != nil {
		t.Fatalf("users: %v", err)
	}
	info, err := reopened.GetInfo()
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	if err := leverage.CheckInvariants(info, users, rates); err != nil {
		t.Fatalf("invariants: %v", err)
	}
	if len(users) != 1 || users[0].Balance.Int64() != 200 {
		t.Fatalf("unexpected users: %+v", users)
	}
}
