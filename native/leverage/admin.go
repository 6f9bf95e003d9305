package leverage

import (
	"fmt"
	"math/big"

	"horus/core/events"
	"horus/crypto"
)

func (e *Engine) authorize(caller crypto.Address) error {
	owner := e.params.Owner
	if owner.IsZero() || !caller.Equal(owner) {
		return ErrUnauthorized
	}
	return nil
}

// Collect sweeps the accrued interest to `to` as elastic collateral and
// returns the elastic amount sent.
func (e *Engine) Collect(caller, to crypto.Address) (*big.Int, error) {
	sent := zero()
	err := e.run(OpCollect, caller, false, func(tx *txn) error {
		if err := e.authorize(caller); err != nil {
			return err
		}
		if e.deps.Rates == nil || e.deps.Collateral == nil {
			return ErrMissingCollaborator
		}
		accrued := copyBigInt(tx.info.Accrued)
		if accrued.Sign() == 0 {
			return nil
		}
		amount := e.deps.Rates.StaticToElastic(accrued)
		tx.info.Accrued = zero()
		if amount.Sign() > 0 {
			if err := e.deps.Collateral.Transfer(e.moduleAddress, to, amount); err != nil {
				return fmt.Errorf("leverage engine: sweep interest: %w", err)
			}
		}
		sent = amount
		tx.emit(events.FeesCollected{Recipient: to, Static: accrued, Elastic: copyBigInt(amount)})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sent, nil
}

// SetRate changes the per-block emission after accruing at the old rate.
func (e *Engine) SetRate(caller crypto.Address, rewardPerBlock *big.Int) error {
	return e.run(OpSetRate, caller, false, func(tx *txn) error {
		if err := e.authorize(caller); err != nil {
			return err
		}
		if rewardPerBlock == nil || rewardPerBlock.Sign() < 0 {
			return ErrInvalidAmount
		}
		if e.deps.Minter == nil {
			return ErrMissingCollaborator
		}
		if err := tx.updatePool(); err != nil {
			return err
		}
		previous := copyBigInt(tx.info.RewardPerBlock)
		tx.info.RewardPerBlock = copyBigInt(rewardPerBlock)
		tx.emit(events.RateUpdated{Previous: previous, Rate: copyBigInt(rewardPerBlock), Block: e.blockHeight})
		return nil
	})
}

// SetCeiling changes the global debt ceiling. A ceiling below the current
// aggregate debt is rejected.
func (e *Engine) SetCeiling(caller crypto.Address, ceiling *big.Int) error {
	return e.run(OpSetCeiling, caller, false, func(tx *txn) error {
		if err := e.authorize(caller); err != nil {
			return err
		}
		if ceiling == nil || ceiling.Sign() < 0 {
			return ErrInvalidAmount
		}
		if ceiling.Cmp(tx.info.Debt) < 0 {
			return ErrDebtCeilingExceeded
		}
		previous := copyBigInt(tx.info.Ceiling)
		tx.info.Ceiling = copyBigInt(ceiling)
		tx.emit(events.CeilingUpdated{Previous: previous, Ceiling: copyBigInt(ceiling)})
		return nil
	})
}
