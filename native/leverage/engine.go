package leverage

import (
	"context"
	"log/slog"
	"math/big"

	"horus/core/events"
	"horus/crypto"
	nativecommon "horus/native/common"
	"horus/observability/logging"
)

const moduleName = "leverage"

// Operation names used for logging, metrics and error wrapping.
const (
	OpAdd             = "add"
	OpRemove          = "remove"
	OpCollectInterest = "collectInterest"
	OpOpen            = "open"
	OpClose           = "close"
	OpHarvest         = "harvest"
	OpCollect         = "collect"
	OpSetRate         = "setRate"
	OpSetCeiling      = "setCeiling"
	OpInitialise      = "initialise"
)

type engineState interface {
	GetInfo() (*Info, error)
	PutInfo(info *Info) error
	GetUser(addr crypto.Address) (*UserInfo, error)
	PutUser(user *UserInfo) error
}

// Snapshotter is implemented by ledger states that can discard writes made
// since a snapshot. The engine snapshots before every operation and reverts
// when it fails.
type Snapshotter interface {
	Snapshot() int
	RevertToSnapshot(id int)
}

// MetricsSink receives per-operation telemetry.
type MetricsSink interface {
	ObserveOperation(op string, err error)
	ObserveTotals(debt, lp, ceiling, accrued *big.Int)
	ObserveUnderpayment(shortfall *big.Int)
}

// Parameters holds the addresses and switches fixed at construction.
type Parameters struct {
	// Owner may call the administrative surface.
	Owner crypto.Address
	// Operator receives the reward skim.
	Operator     crypto.Address
	DebtAsset    crypto.Address
	PairedAsset  crypto.Address
	ReserveAsset crypto.Address
	// SettleRewardsBeforeOpen settles rewards against the pre-open liquidity
	// instead of after the liquidity increase.
	SettleRewardsBeforeOpen bool
}

// Engine runs the ledger's state transitions. Every public mutating call is
// atomic: record changes are staged on copies and written back only when all
// steps, including collaborator calls, succeed.
type Engine struct {
	state         engineState
	moduleAddress crypto.Address
	params        Parameters
	deps          Collaborators
	blockHeight   uint64
	pauses        nativecommon.PauseView
	emitter       events.Emitter
	logger        *slog.Logger
	metrics       MetricsSink
}

// NewEngine constructs an engine acting as moduleAddr.
func NewEngine(moduleAddr crypto.Address, params Parameters, deps Collaborators) *Engine {
	return &Engine{
		moduleAddress: moduleAddr,
		params:        params,
		deps:          deps,
		emitter:       events.NoopEmitter{},
	}
}

// SetState wires the engine to the ledger state.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetPauses wires the pause toggles consulted before user operations.
func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetBlockHeight records the block used for reward accrual.
func (e *Engine) SetBlockHeight(height uint64) {
	if e == nil {
		return
	}
	e.blockHeight = height
}

// BlockHeight returns the block currently used for reward accrual.
func (e *Engine) BlockHeight() uint64 {
	if e == nil {
		return 0
	}
	return e.blockHeight
}

// SetEmitter installs the event sink; nil restores the no-op emitter.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if e == nil {
		return
	}
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	e.emitter = emitter
}

// SetLogger installs the operation logger. A nil logger disables logging.
func (e *Engine) SetLogger(logger *slog.Logger) {
	if e == nil {
		return
	}
	e.logger = logger
}

// SetMetrics installs the metrics sink. A nil sink disables metrics.
func (e *Engine) SetMetrics(m MetricsSink) {
	if e == nil {
		return
	}
	e.metrics = m
}

// ModuleAddress returns the account the engine holds funds under.
func (e *Engine) ModuleAddress() crypto.Address { return e.moduleAddress }

// Initialise creates the aggregate record. It fails when one already exists.
func (e *Engine) Initialise(ceiling, rewardPerBlock *big.Int, startBlock uint64) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if ceiling == nil || ceiling.Sign() < 0 || rewardPerBlock == nil || rewardPerBlock.Sign() < 0 {
		return ErrInvalidAmount
	}
	return e.run(OpInitialise, e.params.Owner, false, func(tx *txn) error {
		existing, err := e.state.GetInfo()
		if err != nil {
			return err
		}
		if existing != nil {
			return ErrAlreadyInitialised
		}
		tx.info = NewInfo(ceiling, rewardPerBlock, startBlock)
		return nil
	})
}

// Info returns a copy of the aggregate record.
func (e *Engine) Info() (*Info, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	info, err := e.state.GetInfo()
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, ErrNotInitialised
	}
	return info.Clone(), nil
}

// User returns the record for addr, defaulting to zero values.
func (e *Engine) User(addr crypto.Address) (*UserInfo, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	user, err := e.state.GetUser(addr)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return NewUserInfo(addr), nil
	}
	return user.Clone(), nil
}

// Equity returns elastic(balance) - debt for addr without settling interest.
func (e *Engine) Equity(addr crypto.Address) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if e.deps.Rates == nil {
		return nil, ErrMissingCollaborator
	}
	user, err := e.User(addr)
	if err != nil {
		return nil, err
	}
	return equity(e.deps.Rates, user), nil
}

// txn stages record changes for one operation.
type txn struct {
	engine  *Engine
	info    *Info
	users   map[string]*UserInfo
	order   []string
	pending []events.Event
	// opening holds each touched user's equity as loaded.
	opening map[string]*big.Int
}

func (e *Engine) begin(requireInfo bool) (*txn, error) {
	tx := &txn{engine: e, users: make(map[string]*UserInfo), opening: make(map[string]*big.Int)}
	info, err := e.state.GetInfo()
	if err != nil {
		return nil, err
	}
	if info == nil && requireInfo {
		return nil, ErrNotInitialised
	}
	tx.info = info.Clone()
	return tx, nil
}

// user is the get-or-default accessor inside a transaction. The same pointer
// is returned for repeated lookups so staged changes accumulate.
func (tx *txn) user(addr crypto.Address) (*UserInfo, error) {
	key := addr.Key()
	if user, ok := tx.users[key]; ok {
		return user, nil
	}
	stored, err := tx.engine.state.GetUser(addr)
	if err != nil {
		return nil, err
	}
	user := NewUserInfo(addr)
	if stored != nil {
		user = stored.Clone()
		user.Address = addr
	}
	tx.users[key] = user
	tx.order = append(tx.order, key)
	if rates := tx.engine.deps.Rates; rates != nil {
		tx.opening[key] = equity(rates, user)
	}
	return user, nil
}

func (tx *txn) emit(evt events.Event) {
	tx.pending = append(tx.pending, evt)
}

// commit validates the staged records and writes them back. A user left
// insolvent is rejected unless the operation improved its equity.
func (tx *txn) commit() error {
	rates := tx.engine.deps.Rates
	for _, key := range tx.order {
		user := tx.users[key]
		if rates == nil || solvent(rates, user) {
			continue
		}
		if opening, ok := tx.opening[key]; ok && equity(rates, user).Cmp(opening) > 0 {
			continue
		}
		return ErrInsufficientEquity
	}
	if tx.info != nil && tx.info.Debt.Cmp(tx.info.Ceiling) > 0 {
		return ErrDebtCeilingExceeded
	}
	for _, key := range tx.order {
		if err := tx.engine.state.PutUser(tx.users[key]); err != nil {
			return err
		}
	}
	if tx.info == nil {
		return nil
	}
	return tx.engine.state.PutInfo(tx.info)
}

// run executes fn as one atomic operation. guarded operations honour the
// module pause.
func (e *Engine) run(op string, caller crypto.Address, guarded bool, fn func(tx *txn) error) (err error) {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if guarded {
		if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
			e.observe(op, caller, err)
			return err
		}
	}

	snap, canRevert := e.state.(Snapshotter)
	var id int
	if canRevert {
		id = snap.Snapshot()
	}
	defer func() {
		if err != nil && canRevert {
			snap.RevertToSnapshot(id)
		}
		e.observe(op, caller, err)
	}()

	tx, err := e.begin(op != OpInitialise)
	if err != nil {
		return err
	}
	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.commit(); err != nil {
		return err
	}
	for _, evt := range tx.pending {
		e.emitter.Emit(evt)
	}
	if e.metrics != nil && tx.info != nil {
		e.metrics.ObserveTotals(tx.info.Debt, tx.info.LP, tx.info.Ceiling, tx.info.Accrued)
	}
	return nil
}

func (e *Engine) observe(op string, caller crypto.Address, err error) {
	if e.metrics != nil {
		e.metrics.ObserveOperation(op, err)
	}
	if e.logger == nil {
		return
	}
	attrs := []slog.Attr{
		slog.String("module", moduleName),
		slog.String("op", op),
		slog.String("caller", caller.String()),
		slog.Uint64("block", e.blockHeight),
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
		e.logger.LogAttrs(context.Background(), slog.LevelWarn, "leverage operation rejected", logging.MaskAttrs(attrs)...)
		return
	}
	e.logger.LogAttrs(context.Background(), slog.LevelDebug, "leverage operation committed", logging.MaskAttrs(attrs)...)
}
