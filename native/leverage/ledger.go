package leverage

import (
	"fmt"
	"math/big"

	"horus/crypto"
)

// Ledger is the in-process PositionLedger: the aggregate record plus every
// user record keyed by address. It satisfies the engine's state contract and
// keeps records in first-touch order so totals can be recomputed.
type Ledger struct {
	info  *Info
	users map[string]*UserInfo
	order []string
}

// NewLedger returns an empty ledger. Initialise the aggregate record through
// Engine.Initialise or PutInfo before running operations.
func NewLedger() *Ledger {
	return &Ledger{users: make(map[string]*UserInfo)}
}

// GetInfo returns a copy of the aggregate record, or nil when uninitialised.
func (l *Ledger) GetInfo() (*Info, error) {
	return l.info.Clone(), nil
}

// PutInfo stores a copy of info.
func (l *Ledger) PutInfo(info *Info) error {
	if info == nil {
		return fmt.Errorf("leverage ledger: nil info")
	}
	l.info = info.Clone()
	return nil
}

// GetUser returns a copy of the stored record, or nil when addr was never
// touched.
func (l *Ledger) GetUser(addr crypto.Address) (*UserInfo, error) {
	if user, ok := l.users[addr.Key()]; ok {
		return user.Clone(), nil
	}
	return nil, nil
}

// PutUser stores a copy of user.
func (l *Ledger) PutUser(user *UserInfo) error {
	if user == nil {
		return fmt.Errorf("leverage ledger: nil user")
	}
	key := user.Address.Key()
	if _, ok := l.users[key]; !ok {
		l.order = append(l.order, key)
	}
	l.users[key] = user.Clone()
	return nil
}

// User is the explicit get-or-default accessor: unknown addresses yield the
// zero-valued record without storing it.
func (l *Ledger) User(addr crypto.Address) *UserInfo {
	if user, ok := l.users[addr.Key()]; ok {
		return user.Clone()
	}
	return NewUserInfo(addr)
}

// Users returns copies of every stored record in first-touch order.
func (l *Ledger) Users() ([]*UserInfo, error) {
	out := make([]*UserInfo, 0, len(l.order))
	for _, key := range l.order {
		out = append(out, l.users[key].Clone())
	}
	return out, nil
}

// Totals are the sums of the per-user fields mirrored by Info.
type Totals struct {
	Balance *big.Int
	Last    *big.Int
	Debt    *big.Int
	LP      *big.Int
}

// SumUsers adds up the mirrored user fields.
func SumUsers(users []*UserInfo) Totals {
	totals := Totals{Balance: zero(), Last: zero(), Debt: zero(), LP: zero()}
	for _, user := range users {
		if user == nil {
			continue
		}
		totals.Balance.Add(totals.Balance, copyBigInt(user.Balance))
		totals.Last.Add(totals.Last, copyBigInt(user.Last))
		totals.Debt.Add(totals.Debt, copyBigInt(user.Debt))
		totals.LP.Add(totals.LP, copyBigInt(user.LP))
	}
	return totals
}

// CheckInvariants verifies the aggregate mirrors the user records, the ceiling
// bounds debt and every user stays solvent. rates may be nil to skip the
// solvency check.
func CheckInvariants(info *Info, users []*UserInfo, rates ExchangeRateAdapter) error {
	if info == nil {
		return ErrNotInitialised
	}
	totals := SumUsers(users)
	pairs := []struct {
		name       string
		agg, users *big.Int
	}{
		{"balance", info.Balance, totals.Balance},
		{"last", info.Last, totals.Last},
		{"debt", info.Debt, totals.Debt},
		{"lp", info.LP, totals.LP},
	}
	for _, p := range pairs {
		if copyBigInt(p.agg).Cmp(p.users) != 0 {
			return fmt.Errorf("%w: aggregate %s %s != user sum %s", ErrInvariantViolation, p.name, copyBigInt(p.agg), p.users)
		}
	}
	if copyBigInt(info.Debt).Cmp(copyBigInt(info.Ceiling)) > 0 {
		return fmt.Errorf("%w: debt %s above ceiling %s", ErrInvariantViolation, info.Debt, info.Ceiling)
	}
	if rates == nil {
		return nil
	}
	for _, user := range users {
		if !solvent(rates, user) {
			return fmt.Errorf("%w: %s debt %s exceeds collateral value", ErrInvariantViolation, user.Address, user.Debt)
		}
	}
	return nil
}

// equity is elastic(balance) - debt; it may be negative if the index fell.
func equity(rates ExchangeRateAdapter, user *UserInfo) *big.Int {
	value := rates.StaticToElastic(copyBigInt(user.Balance))
	return new(big.Int).Sub(value, copyBigInt(user.Debt))
}

func solvent(rates ExchangeRateAdapter, user *UserInfo) bool {
	return equity(rates, user).Sign() >= 0
}
