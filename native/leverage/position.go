package leverage

import (
	"fmt"
	"math/big"

	"horus/core/events"
	"horus/crypto"
)

// OpenRequest describes a leveraged liquidity deposit. Debt-side amounts are
// in debt-asset units, pair-side amounts in paired-asset units.
type OpenRequest struct {
	DebtDesired *big.Int
	DebtMin     *big.Int
	PairDesired *big.Int
	PairMin     *big.Int
	Deadline    uint64
}

// OpenResult reports what an Open actually did.
type OpenResult struct {
	Borrowed  *big.Int
	DebtUsed  *big.Int
	PairUsed  *big.Int
	Liquidity *big.Int
	Rewards   *big.Int
}

// CloseRequest describes a liquidity withdrawal.
type CloseRequest struct {
	Liquidity *big.Int
	DebtMin   *big.Int
	PairMin   *big.Int
	Deadline  uint64
}

// CloseResult reports what a Close actually did.
type CloseResult struct {
	DebtRemoved *big.Int
	PairRemoved *big.Int
	Repaid      *big.Int
	Rewards     *big.Int
}

func (e *Engine) positionDeps() error {
	d := e.deps
	if d.Rates == nil || d.Paired == nil || d.Treasury == nil || d.Router == nil || d.Minter == nil || d.Staking == nil {
		return ErrMissingCollaborator
	}
	return nil
}

// Open borrows req.DebtDesired against user's collateral, pairs it with
// req.PairDesired pulled from user and deposits both into the pool. Unused
// debt asset is repaid at once and unused paired asset refunded.
//
// Rewards are settled after the liquidity increase unless
// Parameters.SettleRewardsBeforeOpen is set.
func (e *Engine) Open(user crypto.Address, req OpenRequest) (*OpenResult, error) {
	var result *OpenResult
	err := e.run(OpOpen, user, true, func(tx *txn) error {
		if !positive(req.DebtDesired) || !positive(req.PairDesired) {
			return ErrInvalidAmount
		}
		if err := e.positionDeps(); err != nil {
			return err
		}
		acct, err := tx.user(user)
		if err != nil {
			return err
		}
		if _, err := tx.collectInterest(acct); err != nil {
			return err
		}

		if err := tx.checkBorrow(acct, req.DebtDesired); err != nil {
			return err
		}

		rewards := zero()
		if e.params.SettleRewardsBeforeOpen {
			if rewards, err = tx.settleRewards(acct); err != nil {
				return err
			}
		}

		if err := e.deps.Paired.Transfer(user, e.moduleAddress, req.PairDesired); err != nil {
			return fmt.Errorf("leverage engine: pull paired asset: %w", err)
		}
		if err := tx.borrow(acct, req.DebtDesired); err != nil {
			return err
		}

		debtUsed, pairUsed, liquidity, err := e.deps.Router.AddLiquidity(
			e.params.DebtAsset, e.params.PairedAsset,
			req.DebtDesired, req.PairDesired,
			copyBigInt(req.DebtMin), copyBigInt(req.PairMin),
			e.moduleAddress, req.Deadline,
		)
		if err != nil {
			return fmt.Errorf("leverage engine: add liquidity: %w", err)
		}
		unusedDebt, err := sub("unused debt asset", req.DebtDesired, debtUsed)
		if err != nil {
			return err
		}
		unusedPair, err := sub("unused paired asset", req.PairDesired, pairUsed)
		if err != nil {
			return err
		}
		if liquidity == nil || liquidity.Sign() < 0 {
			return fmt.Errorf("%w: router returned negative liquidity", ErrInvariantViolation)
		}

		acct.LP = add(acct.LP, liquidity)
		tx.info.LP = add(tx.info.LP, liquidity)

		if err := tx.repay(acct, unusedDebt); err != nil {
			return err
		}
		if unusedPair.Sign() > 0 {
			if err := e.deps.Paired.Transfer(e.moduleAddress, user, unusedPair); err != nil {
				return fmt.Errorf("leverage engine: refund paired asset: %w", err)
			}
		}

		if e.params.SettleRewardsBeforeOpen {
			tx.syncRewardDebt(acct)
		} else if rewards, err = tx.settleRewards(acct); err != nil {
			return err
		}

		result = &OpenResult{
			Borrowed:  copyBigInt(req.DebtDesired),
			DebtUsed:  copyBigInt(debtUsed),
			PairUsed:  copyBigInt(pairUsed),
			Liquidity: copyBigInt(liquidity),
			Rewards:   rewards,
		}
		tx.emit(events.PositionOpened{
			Account:   user,
			Borrowed:  result.Borrowed,
			DebtUsed:  result.DebtUsed,
			PairUsed:  result.PairUsed,
			Liquidity: result.Liquidity,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Close withdraws req.Liquidity from the pool, repays the matching share of
// user's debt and sends the paired proceeds to user.
func (e *Engine) Close(user crypto.Address, req CloseRequest) (*CloseResult, error) {
	var result *CloseResult
	err := e.run(OpClose, user, true, func(tx *txn) error {
		if !positive(req.Liquidity) {
			return ErrInvalidAmount
		}
		if err := e.positionDeps(); err != nil {
			return err
		}
		acct, err := tx.user(user)
		if err != nil {
			return err
		}
		if req.Liquidity.Cmp(acct.LP) > 0 {
			return ErrInsufficientLiquidity
		}
		if _, err := tx.collectInterest(acct); err != nil {
			return err
		}
		rewards, err := tx.settleRewards(acct)
		if err != nil {
			return err
		}

		debtRemoved, pairRemoved, err := e.deps.Router.RemoveLiquidity(
			e.params.DebtAsset, e.params.PairedAsset,
			req.Liquidity, copyBigInt(req.DebtMin), copyBigInt(req.PairMin),
			e.moduleAddress, req.Deadline,
		)
		if err != nil {
			return fmt.Errorf("leverage engine: remove liquidity: %w", err)
		}

		heldLP := copyBigInt(acct.LP)
		if acct.LP, err = sub("user lp", acct.LP, req.Liquidity); err != nil {
			return err
		}
		if tx.info.LP, err = sub("info lp", tx.info.LP, req.Liquidity); err != nil {
			return err
		}
		tx.syncRewardDebt(acct)

		repaid, err := tx.settleDebt(acct, req.Liquidity, heldLP, debtRemoved)
		if err != nil {
			return err
		}
		if positive(pairRemoved) {
			if err := e.deps.Paired.Transfer(e.moduleAddress, user, pairRemoved); err != nil {
				return fmt.Errorf("leverage engine: send paired proceeds: %w", err)
			}
		}

		result = &CloseResult{
			DebtRemoved: copyBigInt(debtRemoved),
			PairRemoved: copyBigInt(pairRemoved),
			Repaid:      repaid,
			Rewards:     rewards,
		}
		tx.emit(events.PositionClosed{
			Account:     user,
			Liquidity:   copyBigInt(req.Liquidity),
			DebtRemoved: result.DebtRemoved,
			PairRemoved: result.PairRemoved,
			Repaid:      repaid,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
