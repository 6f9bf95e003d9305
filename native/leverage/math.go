package leverage

import (
	"fmt"
	"math/big"
)

const (
	// InterestSkimDivisor is the share of collateral growth taken as interest:
	// one thirtieth of the rebase, never of principal.
	InterestSkimDivisor = 30
	// RewardSkimDivisor sets the operator's cut of every emission (one tenth),
	// minted on top of the distributed reward.
	RewardSkimDivisor = 10
	// AccPrecision is the fixed-point scale of the reward accumulator.
	AccPrecision = 1_000_000_000_000
	// DecimalScale converts debt-asset units (9 decimals) into reserve-asset
	// units (18 decimals) when incurring treasury debt.
	DecimalScale = 1_000_000_000
)

var (
	interestSkim = big.NewInt(InterestSkimDivisor)
	rewardSkim   = big.NewInt(RewardSkimDivisor)
	accPrecision = big.NewInt(AccPrecision)
	decimalScale = big.NewInt(DecimalScale)
)

func zero() *big.Int { return big.NewInt(0) }

func copyBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func positive(v *big.Int) bool {
	return v != nil && v.Sign() > 0
}

// mulDiv returns floor(a*b/d); a zero divisor yields zero.
func mulDiv(a, b, d *big.Int) *big.Int {
	if a == nil || b == nil || d == nil || d.Sign() == 0 {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(a, b)
	return out.Quo(out, d)
}

// mulDivUp returns ceil(a*b/d) for non-negative operands; a zero divisor
// yields zero.
func mulDivUp(a, b, d *big.Int) *big.Int {
	if a == nil || b == nil || d == nil || d.Sign() == 0 {
		return big.NewInt(0)
	}
	out, rem := new(big.Int).QuoRem(new(big.Int).Mul(a, b), d, new(big.Int))
	if rem.Sign() > 0 {
		out.Add(out, big.NewInt(1))
	}
	return out
}

func add(a, b *big.Int) *big.Int {
	return new(big.Int).Add(copyBigInt(a), copyBigInt(b))
}

// sub returns a-b and fails instead of going negative.
func sub(field string, a, b *big.Int) (*big.Int, error) {
	out := new(big.Int).Sub(copyBigInt(a), copyBigInt(b))
	if out.Sign() < 0 {
		return nil, fmt.Errorf("%w: %s would drop below zero (%s - %s)", ErrInvariantViolation, field, copyBigInt(a), copyBigInt(b))
	}
	return out, nil
}

func minBig(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Set(b)
}
