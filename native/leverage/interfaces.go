package leverage

import (
	"math/big"

	"horus/crypto"
)

// ExchangeRateAdapter converts collateral between its static (wrapped) and
// elastic (rebasing) units. Conversions are pure and floor toward zero,
// except ElasticToStaticCeil which rounds up and prices collateral leaving
// the ledger.
type ExchangeRateAdapter interface {
	StaticToElastic(amount *big.Int) *big.Int
	ElasticToStatic(amount *big.Int) *big.Int
	ElasticToStaticCeil(amount *big.Int) *big.Int
}

// Token moves balances of a single asset. The ledger uses one Token each for
// the elastic collateral, the debt asset and the paired (reward) asset.
type Token interface {
	BalanceOf(addr crypto.Address) (*big.Int, error)
	Transfer(from, to crypto.Address, amount *big.Int) error
}

// Treasury issues and retires the debt asset against the reserve asset. Calls
// are made on behalf of the ledger's module account.
type Treasury interface {
	// IncurDebt records reserve-denominated debt against the module account.
	IncurDebt(amount *big.Int, asset crypto.Address) error
	// Deposit deposits reserve and mints the debt asset to the module
	// account, returning the minted amount.
	Deposit(amount *big.Int, asset crypto.Address, profit *big.Int) (*big.Int, error)
	RepayDebtWithReserve(amount *big.Int, asset crypto.Address) error
	// RepayDebtWithOHM burns debt asset held by the module account to retire
	// debt.
	RepayDebtWithOHM(amount *big.Int) error
}

// Staking converts the debt asset to and from its elastic collateral form.
type Staking interface {
	Stake(amount *big.Int, recipient crypto.Address) (bool, error)
	Claim(recipient crypto.Address) error
	Unstake(amount *big.Int, trigger bool) error
}

// LiquidityRouter deposits into and withdraws from the liquidity pool. Tokens
// are drawn from, and liquidity credited to, the `to` account.
type LiquidityRouter interface {
	AddLiquidity(tokenA, tokenB crypto.Address, desiredA, desiredB, minA, minB *big.Int, to crypto.Address, deadline uint64) (amountA, amountB, liquidity *big.Int, err error)
	RemoveLiquidity(tokenA, tokenB crypto.Address, liquidity, minA, minB *big.Int, to crypto.Address, deadline uint64) (amountA, amountB *big.Int, err error)
}

// RewardMinter mints the reward asset.
type RewardMinter interface {
	Mint(to crypto.Address, amount *big.Int) error
}

// Collaborators bundles the external contracts the engine drives.
type Collaborators struct {
	Rates      ExchangeRateAdapter
	Collateral Token
	Debt       Token
	Paired     Token
	Treasury   Treasury
	Staking    Staking
	Router     LiquidityRouter
	Minter     RewardMinter
}
