package leverage

import (
	"fmt"
	"math/big"

	"horus/core/events"
	"horus/crypto"
)

// ProjectAccPerShare returns the accumulator as it would stand at height
// without mutating info.
func ProjectAccPerShare(info *Info, height uint64) *big.Int {
	acc := copyBigInt(info.AccPerShare)
	if height <= info.LastRewardBlock || !positive(info.LP) {
		return acc
	}
	reward := blockReward(info, height)
	return acc.Add(acc, mulDiv(reward, accPrecision, info.LP))
}

// PendingReward projects what user could claim at height.
func PendingReward(info *Info, user *UserInfo, height uint64) *big.Int {
	if info == nil || user == nil {
		return zero()
	}
	acc := ProjectAccPerShare(info, height)
	owed := new(big.Int).Sub(mulDiv(user.LP, acc, accPrecision), copyBigInt(user.RewardDebt))
	if owed.Sign() < 0 {
		return zero()
	}
	return owed
}

// Pending projects user's claimable reward at the engine's block height.
func (e *Engine) Pending(user crypto.Address) (*big.Int, error) {
	info, err := e.Info()
	if err != nil {
		return nil, err
	}
	acct, err := e.User(user)
	if err != nil {
		return nil, err
	}
	return PendingReward(info, acct, e.blockHeight), nil
}

// Harvest settles and pays user's rewards without changing the position. The
// amount transferred is returned.
func (e *Engine) Harvest(user crypto.Address) (*big.Int, error) {
	paid := zero()
	err := e.run(OpHarvest, user, true, func(tx *txn) error {
		if e.deps.Minter == nil || e.deps.Paired == nil {
			return ErrMissingCollaborator
		}
		acct, err := tx.user(user)
		if err != nil {
			return err
		}
		out, err := tx.settleRewards(acct)
		if err != nil {
			return err
		}
		paid = out
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paid, nil
}

func blockReward(info *Info, height uint64) *big.Int {
	blocks := new(big.Int).SetUint64(height - info.LastRewardBlock)
	return blocks.Mul(blocks, copyBigInt(info.RewardPerBlock))
}

// updatePool brings the accumulator up to the engine's block height. Blocks
// elapsed while no liquidity is deposited are forfeited.
func (tx *txn) updatePool() error {
	e := tx.engine
	info := tx.info
	if e.blockHeight <= info.LastRewardBlock {
		return nil
	}
	if !positive(info.LP) {
		info.LastRewardBlock = e.blockHeight
		return nil
	}

	reward := blockReward(info, e.blockHeight)
	if reward.Sign() > 0 {
		if fee := new(big.Int).Quo(reward, rewardSkim); fee.Sign() > 0 {
			if err := e.deps.Minter.Mint(e.params.Operator, fee); err != nil {
				return fmt.Errorf("leverage engine: mint operator reward: %w", err)
			}
		}
		if err := e.deps.Minter.Mint(e.moduleAddress, reward); err != nil {
			return fmt.Errorf("leverage engine: mint reward: %w", err)
		}
		info.AccPerShare = add(info.AccPerShare, mulDiv(reward, accPrecision, info.LP))
	}
	info.LastRewardBlock = e.blockHeight
	return nil
}

// settleRewards updates the pool, pays acct what it is owed (capped at the
// module's reward balance) and resets its reward debt to the current LP.
func (tx *txn) settleRewards(acct *UserInfo) (*big.Int, error) {
	if err := tx.updatePool(); err != nil {
		return nil, err
	}
	e := tx.engine
	accumulated := mulDiv(acct.LP, tx.info.AccPerShare, accPrecision)
	paid := zero()
	if positive(acct.LP) {
		owed, err := sub("reward owed", accumulated, acct.RewardDebt)
		if err != nil {
			return nil, err
		}
		if owed.Sign() > 0 {
			available, err := e.deps.Paired.BalanceOf(e.moduleAddress)
			if err != nil {
				return nil, fmt.Errorf("leverage engine: reward balance: %w", err)
			}
			paid = minBig(owed, copyBigInt(available))
			if paid.Sign() < 0 {
				paid = zero()
			}
			if paid.Sign() > 0 {
				if err := e.deps.Paired.Transfer(e.moduleAddress, acct.Address, paid); err != nil {
					return nil, fmt.Errorf("leverage engine: pay reward: %w", err)
				}
				tx.emit(events.RewardsClaimed{Account: acct.Address, Paid: copyBigInt(paid)})
			}
			if paid.Cmp(owed) < 0 {
				tx.emit(events.RewardsUnderpaid{Account: acct.Address, Owed: owed, Paid: copyBigInt(paid)})
				if e.metrics != nil {
					e.metrics.ObserveUnderpayment(new(big.Int).Sub(owed, paid))
				}
			}
		}
	}
	acct.RewardDebt = accumulated
	return paid, nil
}

// syncRewardDebt re-bases acct's reward debt after its LP changed.
func (tx *txn) syncRewardDebt(acct *UserInfo) {
	acct.RewardDebt = mulDiv(acct.LP, tx.info.AccPerShare, accPrecision)
}
