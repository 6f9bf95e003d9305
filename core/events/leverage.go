package events

import (
	"math/big"

	"horus/core/types"
	"horus/crypto"
)

const (
	// TypeCollateralAdded is emitted when collateral is deposited.
	TypeCollateralAdded = "leverage.collateralAdded"
	// TypeCollateralRemoved is emitted when collateral is withdrawn.
	TypeCollateralRemoved = "leverage.collateralRemoved"
	// TypeInterestCollected is emitted when interest is skimmed from growth.
	TypeInterestCollected = "leverage.interestCollected"
	// TypePositionOpened is emitted when borrowed liquidity is deployed.
	TypePositionOpened = "leverage.positionOpened"
	// TypePositionClosed is emitted when liquidity is withdrawn and debt settled.
	TypePositionClosed = "leverage.positionClosed"
	// TypeRewardsClaimed is emitted when a reward payout is transferred.
	TypeRewardsClaimed = "leverage.rewardsClaimed"
	// TypeRewardsUnderpaid signals the reward balance could not cover a claim.
	TypeRewardsUnderpaid = "leverage.rewardsUnderpaid"
	// TypeFeesCollected is emitted when accrued interest is swept.
	TypeFeesCollected = "leverage.feesCollected"
	// TypeRateUpdated is emitted when the emission rate changes.
	TypeRateUpdated = "leverage.rateUpdated"
	// TypeCeilingUpdated is emitted when the debt ceiling changes.
	TypeCeilingUpdated = "leverage.ceilingUpdated"
)

// CollateralAdded captures a collateral deposit.
type CollateralAdded struct {
	Account crypto.Address
	Elastic *big.Int
	Static  *big.Int
}

// EventType satisfies the Event interface.
func (CollateralAdded) EventType() string { return TypeCollateralAdded }

// Event converts the structured payload into a broadcastable event.
func (e CollateralAdded) Event() *types.Event {
	return &types.Event{Type: TypeCollateralAdded, Attributes: map[string]string{
		"addr":    addressString(e.Account),
		"elastic": formatAmount(e.Elastic),
		"static":  formatAmount(e.Static),
	}}
}

// CollateralRemoved captures a collateral withdrawal.
type CollateralRemoved struct {
	Account crypto.Address
	Elastic *big.Int
	Static  *big.Int
}

// EventType satisfies the Event interface.
func (CollateralRemoved) EventType() string { return TypeCollateralRemoved }

// Event converts the structured payload into a broadcastable event.
func (e CollateralRemoved) Event() *types.Event {
	return &types.Event{Type: TypeCollateralRemoved, Attributes: map[string]string{
		"addr":    addressString(e.Account),
		"elastic": formatAmount(e.Elastic),
		"static":  formatAmount(e.Static),
	}}
}

// InterestCollected captures an interest skim.
type InterestCollected struct {
	Account  crypto.Address
	Growth   *big.Int
	Interest *big.Int
}

// EventType satisfies the Event interface.
func (InterestCollected) EventType() string { return TypeInterestCollected }

// Event converts the structured payload into a broadcastable event.
func (e InterestCollected) Event() *types.Event {
	return &types.Event{Type: TypeInterestCollected, Attributes: map[string]string{
		"addr":     addressString(e.Account),
		"growth":   formatAmount(e.Growth),
		"interest": formatAmount(e.Interest),
	}}
}

// PositionOpened captures a leveraged liquidity deposit.
type PositionOpened struct {
	Account   crypto.Address
	Borrowed  *big.Int
	DebtUsed  *big.Int
	PairUsed  *big.Int
	Liquidity *big.Int
}

// EventType satisfies the Event interface.
func (PositionOpened) EventType() string { return TypePositionOpened }

// Event converts the structured payload into a broadcastable event.
func (e PositionOpened) Event() *types.Event {
	return &types.Event{Type: TypePositionOpened, Attributes: map[string]string{
		"addr":      addressString(e.Account),
		"borrowed":  formatAmount(e.Borrowed),
		"debtUsed":  formatAmount(e.DebtUsed),
		"pairUsed":  formatAmount(e.PairUsed),
		"liquidity": formatAmount(e.Liquidity),
	}}
}

// PositionClosed captures a liquidity withdrawal and the debt it settled.
type PositionClosed struct {
	Account     crypto.Address
	Liquidity   *big.Int
	DebtRemoved *big.Int
	PairRemoved *big.Int
	Repaid      *big.Int
}

// EventType satisfies the Event interface.
func (PositionClosed) EventType() string { return TypePositionClosed }

// Event converts the structured payload into a broadcastable event.
func (e PositionClosed) Event() *types.Event {
	return &types.Event{Type: TypePositionClosed, Attributes: map[string]string{
		"addr":        addressString(e.Account),
		"liquidity":   formatAmount(e.Liquidity),
		"debtRemoved": formatAmount(e.DebtRemoved),
		"pairRemoved": formatAmount(e.PairRemoved),
		"repaid":      formatAmount(e.Repaid),
	}}
}

// RewardsClaimed captures a reward payout.
type RewardsClaimed struct {
	Account crypto.Address
	Paid    *big.Int
}

// EventType satisfies the Event interface.
func (RewardsClaimed) EventType() string { return TypeRewardsClaimed }

// Event converts the structured payload into a broadcastable event.
func (e RewardsClaimed) Event() *types.Event {
	return &types.Event{Type: TypeRewardsClaimed, Attributes: map[string]string{
		"addr": addressString(e.Account),
		"paid": formatAmount(e.Paid),
	}}
}

// RewardsUnderpaid records a payout truncated to the available balance.
type RewardsUnderpaid struct {
	Account crypto.Address
	Owed    *big.Int
	Paid    *big.Int
}

// EventType satisfies the Event interface.
func (RewardsUnderpaid) EventType() string { return TypeRewardsUnderpaid }

// Event converts the structured payload into a broadcastable event.
func (e RewardsUnderpaid) Event() *types.Event {
	return &types.Event{Type: TypeRewardsUnderpaid, Attributes: map[string]string{
		"addr": addressString(e.Account),
		"owed": formatAmount(e.Owed),
		"paid": formatAmount(e.Paid),
	}}
}

// FeesCollected captures the sweep of accrued interest.
type FeesCollected struct {
	Recipient crypto.Address
	Static    *big.Int
	Elastic   *big.Int
}

// EventType satisfies the Event interface.
func (FeesCollected) EventType() string { return TypeFeesCollected }

// Event converts the structured payload into a broadcastable event.
func (e FeesCollected) Event() *types.Event {
	return &types.Event{Type: TypeFeesCollected, Attributes: map[string]string{
		"to":      addressString(e.Recipient),
		"static":  formatAmount(e.Static),
		"elastic": formatAmount(e.Elastic),
	}}
}

// RateUpdated captures an emission rate change.
type RateUpdated struct {
	Previous *big.Int
	Rate     *big.Int
	Block    uint64
}

// EventType satisfies the Event interface.
func (RateUpdated) EventType() string { return TypeRateUpdated }

// Event converts the structured payload into a broadcastable event.
func (e RateUpdated) Event() *types.Event {
	return &types.Event{Type: TypeRateUpdated, Attributes: map[string]string{
		"previous": formatAmount(e.Previous),
		"rate":     formatAmount(e.Rate),
		"block":    formatBlock(e.Block),
	}}
}

// CeilingUpdated captures a debt ceiling change.
type CeilingUpdated struct {
	Previous *big.Int
	Ceiling  *big.Int
}

// EventType satisfies the Event interface.
func (CeilingUpdated) EventType() string { return TypeCeilingUpdated }

// Event converts the structured payload into a broadcastable event.
func (e CeilingUpdated) Event() *types.Event {
	return &types.Event{Type: TypeCeilingUpdated, Attributes: map[string]string{
		"previous": formatAmount(e.Previous),
		"ceiling":  formatAmount(e.Ceiling),
	}}
}
