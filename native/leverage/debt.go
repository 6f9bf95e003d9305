package leverage

import (
	"fmt"
	"math/big"
)

// checkBorrow validates a borrow of amount by acct. The global ceiling is
// checked before the user's equity.
func (tx *txn) checkBorrow(acct *UserInfo, amount *big.Int) error {
	if add(tx.info.Debt, amount).Cmp(tx.info.Ceiling) > 0 {
		return ErrDebtCeilingExceeded
	}
	if amount.Cmp(equity(tx.engine.deps.Rates, acct)) > 0 {
		return ErrInsufficientEquity
	}
	return nil
}

// borrow mints amount of the debt asset to the module against acct's equity.
func (tx *txn) borrow(acct *UserInfo, amount *big.Int) error {
	e := tx.engine
	if err := tx.checkBorrow(acct, amount); err != nil {
		return err
	}
	projected := add(tx.info.Debt, amount)

	reserve := new(big.Int).Mul(amount, decimalScale)
	if err := e.deps.Treasury.IncurDebt(reserve, e.params.ReserveAsset); err != nil {
		return fmt.Errorf("leverage engine: incur debt: %w", err)
	}
	minted, err := e.deps.Treasury.Deposit(reserve, e.params.ReserveAsset, zero())
	if err != nil {
		return fmt.Errorf("leverage engine: treasury deposit: %w", err)
	}
	if minted == nil || minted.Cmp(amount) != 0 {
		return fmt.Errorf("%w: wanted %s, got %s", ErrTreasuryMint, amount, copyBigInt(minted))
	}

	acct.Debt = add(acct.Debt, amount)
	tx.info.Debt = projected
	return nil
}

// repay burns amount of module-held debt asset and reduces acct's debt.
func (tx *txn) repay(acct *UserInfo, amount *big.Int) error {
	if !positive(amount) {
		return nil
	}
	userDebt, err := sub("user debt", acct.Debt, amount)
	if err != nil {
		return err
	}
	infoDebt, err := sub("info debt", tx.info.Debt, amount)
	if err != nil {
		return err
	}
	if err := tx.engine.deps.Treasury.RepayDebtWithOHM(amount); err != nil {
		return fmt.Errorf("leverage engine: repay debt: %w", err)
	}
	acct.Debt, tx.info.Debt = userDebt, infoDebt
	return nil
}

// settleDebt repays the share of acct's debt matching lp out of totalLP (the
// liquidity held before the withdrawal). A shortfall in the withdrawn debt
// asset is covered by unstaking the user's collateral, debited in static
// units rounded up; a surplus is staked and booked as new collateral. The repaid amount is returned.
func (tx *txn) settleDebt(acct *UserInfo, lp, totalLP, debtRemoved *big.Int) (*big.Int, error) {
	e := tx.engine
	if !positive(totalLP) {
		return nil, ErrInsufficientLiquidity
	}
	amount := mulDiv(acct.Debt, lp, totalLP)
	removed := copyBigInt(debtRemoved)

	switch removed.Cmp(amount) {
	case -1:
		shortfall := new(big.Int).Sub(amount, removed)
		static := e.deps.Rates.ElasticToStaticCeil(shortfall)
		if static.Cmp(copyBigInt(acct.Balance)) > 0 {
			return nil, ErrInsufficientEquity
		}
		if err := tx.debitCollateral(acct, static, shortfall); err != nil {
			return nil, err
		}
		if err := e.deps.Staking.Unstake(shortfall, false); err != nil {
			return nil, fmt.Errorf("leverage engine: unstake shortfall: %w", err)
		}
	case 1:
		surplus := new(big.Int).Sub(removed, amount)
		ok, err := e.deps.Staking.Stake(surplus, e.moduleAddress)
		if err != nil {
			return nil, fmt.Errorf("leverage engine: stake surplus: %w", err)
		}
		if !ok {
			return nil, ErrStakeRejected
		}
		if err := e.deps.Staking.Claim(e.moduleAddress); err != nil {
			return nil, fmt.Errorf("leverage engine: claim stake: %w", err)
		}
		tx.creditCollateral(acct, e.deps.Rates.ElasticToStatic(surplus), surplus)
	}

	if err := tx.repay(acct, amount); err != nil {
		return nil, err
	}
	return amount, nil
}
