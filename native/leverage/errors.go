package leverage

import "errors"

var (
	// ErrInsufficientEquity is returned when a borrow or collateral removal
	// exceeds the caller's collateral value minus outstanding debt.
	ErrInsufficientEquity = errors.New("leverage engine: insufficient equity")
	// ErrDebtCeilingExceeded is returned when a borrow would push aggregate
	// debt above the configured ceiling.
	ErrDebtCeilingExceeded = errors.New("leverage engine: debt ceiling exceeded")
	// ErrInsufficientLiquidity is returned when a close requests more liquidity
	// than the caller owns.
	ErrInsufficientLiquidity = errors.New("leverage engine: insufficient liquidity")
	// ErrSlippageExceeded is returned (usually wrapped) by liquidity routers
	// when the pool cannot meet the supplied minimums.
	ErrSlippageExceeded = errors.New("leverage engine: slippage exceeded")
	// ErrDeadlineExpired is returned (usually wrapped) by liquidity routers
	// when the caller supplied deadline has passed.
	ErrDeadlineExpired = errors.New("leverage engine: deadline expired")
	// ErrUnauthorized is returned when an administrative call does not come
	// from the configured owner.
	ErrUnauthorized = errors.New("leverage engine: unauthorized")
	// ErrInvalidAmount is returned for nil, zero or negative amounts.
	ErrInvalidAmount = errors.New("leverage engine: amount must be positive")
	// ErrInvariantViolation is returned when an accounting subtraction would
	// go negative. It indicates a bug or a misbehaving collaborator and always
	// aborts the operation.
	ErrInvariantViolation = errors.New("leverage engine: accounting invariant violated")
	// ErrTreasuryMint is returned when the treasury does not mint exactly the
	// requested amount of the debt asset.
	ErrTreasuryMint = errors.New("leverage engine: treasury minted unexpected amount")
	// ErrStakeRejected is returned when the staking contract refuses a stake.
	ErrStakeRejected = errors.New("leverage engine: stake rejected")
	// ErrNilState is returned when the engine has no ledger state wired.
	ErrNilState = errors.New("leverage engine: state not configured")
	// ErrNotInitialised is returned when the aggregate record has not been
	// created yet.
	ErrNotInitialised = errors.New("leverage engine: ledger not initialised")
	// ErrAlreadyInitialised is returned by Initialise on a second call.
	ErrAlreadyInitialised = errors.New("leverage engine: ledger already initialised")
	// ErrMissingCollaborator is returned when an operation needs a
	// collaborator the engine was built without.
	ErrMissingCollaborator = errors.New("leverage engine: collaborator not configured")
)
