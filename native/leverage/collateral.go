package leverage

import (
	"fmt"
	"math/big"

	"horus/core/events"
	"horus/crypto"
)

// AddCollateral pulls amount elastic collateral from user and books it in
// static units.
func (e *Engine) AddCollateral(user crypto.Address, amount *big.Int) error {
	return e.run(OpAdd, user, true, func(tx *txn) error {
		if !positive(amount) {
			return ErrInvalidAmount
		}
		if e.deps.Rates == nil || e.deps.Collateral == nil {
			return ErrMissingCollaborator
		}
		acct, err := tx.user(user)
		if err != nil {
			return err
		}
		static := e.deps.Rates.ElasticToStatic(amount)
		if err := e.deps.Collateral.Transfer(user, e.moduleAddress, amount); err != nil {
			return fmt.Errorf("leverage engine: pull collateral: %w", err)
		}
		tx.creditCollateral(acct, static, amount)
		tx.emit(events.CollateralAdded{Account: user, Elastic: copyBigInt(amount), Static: static})
		return nil
	})
}

// RemoveCollateral settles interest, then returns amount elastic collateral to
// user provided it does not exceed the user's equity. The static debit is
// rounded up.
func (e *Engine) RemoveCollateral(user crypto.Address, amount *big.Int) error {
	return e.run(OpRemove, user, true, func(tx *txn) error {
		if !positive(amount) {
			return ErrInvalidAmount
		}
		if e.deps.Rates == nil || e.deps.Collateral == nil {
			return ErrMissingCollaborator
		}
		acct, err := tx.user(user)
		if err != nil {
			return err
		}
		if _, err := tx.collectInterest(acct); err != nil {
			return err
		}
		if amount.Cmp(equity(e.deps.Rates, acct)) > 0 {
			return ErrInsufficientEquity
		}
		static := e.deps.Rates.ElasticToStaticCeil(amount)
		if static.Cmp(copyBigInt(acct.Balance)) > 0 {
			return ErrInsufficientEquity
		}
		if err := tx.debitCollateral(acct, static, amount); err != nil {
			return err
		}
		if err := e.deps.Collateral.Transfer(e.moduleAddress, user, amount); err != nil {
			return fmt.Errorf("leverage engine: return collateral: %w", err)
		}
		tx.emit(events.CollateralRemoved{Account: user, Elastic: copyBigInt(amount), Static: static})
		return nil
	})
}

// CollectInterest skims interest from user's collateral growth. Anyone may
// call it; without growth it changes nothing. The skimmed static amount is
// returned.
func (e *Engine) CollectInterest(user crypto.Address) (*big.Int, error) {
	interest := zero()
	err := e.run(OpCollectInterest, user, true, func(tx *txn) error {
		if e.deps.Rates == nil {
			return ErrMissingCollaborator
		}
		acct, err := tx.user(user)
		if err != nil {
			return err
		}
		skimmed, err := tx.collectInterest(acct)
		if err != nil {
			return err
		}
		interest = skimmed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return interest, nil
}

// collectInterest charges 1/30 of the elastic growth since the last
// settlement. Non-positive growth is skipped.
func (tx *txn) collectInterest(acct *UserInfo) (*big.Int, error) {
	rates := tx.engine.deps.Rates
	current := rates.StaticToElastic(acct.Balance)
	growth := new(big.Int).Sub(current, acct.Last)
	if growth.Sign() <= 0 {
		return zero(), nil
	}

	interest := rates.ElasticToStatic(new(big.Int).Quo(growth, interestSkim))
	balance, err := sub("user balance", acct.Balance, interest)
	if err != nil {
		return nil, err
	}
	last := rates.StaticToElastic(balance)

	infoBalance, err := sub("info balance", tx.info.Balance, interest)
	if err != nil {
		return nil, err
	}
	infoLast, err := sub("info last", tx.info.Last, acct.Last)
	if err != nil {
		return nil, err
	}

	acct.Balance = balance
	acct.Last = last
	tx.info.Balance = infoBalance
	tx.info.Last = infoLast.Add(infoLast, last)
	tx.info.Accrued = add(tx.info.Accrued, interest)

	tx.emit(events.InterestCollected{Account: acct.Address, Growth: growth, Interest: copyBigInt(interest)})
	return interest, nil
}

func (tx *txn) creditCollateral(acct *UserInfo, static, elastic *big.Int) {
	acct.Balance = add(acct.Balance, static)
	acct.Last = add(acct.Last, elastic)
	tx.info.Balance = add(tx.info.Balance, static)
	tx.info.Last = add(tx.info.Last, elastic)
}

func (tx *txn) debitCollateral(acct *UserInfo, static, elastic *big.Int) error {
	balance, err := sub("user balance", acct.Balance, static)
	if err != nil {
		return err
	}
	last, err := sub("user last", acct.Last, elastic)
	if err != nil {
		return err
	}
	infoBalance, err := sub("info balance", tx.info.Balance, static)
	if err != nil {
		return err
	}
	infoLast, err := sub("info last", tx.info.Last, elastic)
	if err != nil {
		return err
	}
	acct.Balance, acct.Last = balance, last
	tx.info.Balance, tx.info.Last = infoBalance, infoLast
	return nil
}
