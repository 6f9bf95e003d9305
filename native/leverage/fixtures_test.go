package leverage

import (
	"errors"
	"fmt"
	"math/big"
	"testing"

	"horus/core/events"
	"horus/crypto"
)

var errInsufficientBalance = errors.New("insufficient balance")

func makeAddress(suffix byte) crypto.Address {
	raw := make([]byte, crypto.AddressLength)
	raw[len(raw)-1] = suffix
	return crypto.MustNewAddress(crypto.AccountPrefix, raw)
}

var (
	moduleAddr   = makeAddress(0xA0)
	ownerAddr    = makeAddress(0xA1)
	operatorAddr = makeAddress(0xA2)
	debtAsset    = makeAddress(0xB0)
	pairedAsset  = makeAddress(0xB1)
	reserveAsset = makeAddress(0xB2)
	poolAddr     = makeAddress(0xC0)
	alice        = makeAddress(0x01)
	bob          = makeAddress(0x02)
)

// fakeToken is a balance map keyed by address bytes.
type fakeToken struct {
	name     string
	balances map[string]*big.Int
}

func newFakeToken(name string) *fakeToken {
	return &fakeToken{name: name, balances: make(map[string]*big.Int)}
}

func (t *fakeToken) BalanceOf(addr crypto.Address) (*big.Int, error) {
	return t.balance(addr), nil
}

func (t *fakeToken) balance(addr crypto.Address) *big.Int {
	return copyBigInt(t.balances[addr.Key()])
}

func (t *fakeToken) Transfer(from, to crypto.Address, amount *big.Int) error {
	if err := t.burn(from, amount); err != nil {
		return err
	}
	t.mint(to, amount)
	return nil
}

func (t *fakeToken) mint(to crypto.Address, amount *big.Int) {
	t.balances[to.Key()] = add(t.balances[to.Key()], amount)
}

func (t *fakeToken) burn(from crypto.Address, amount *big.Int) error {
	left := new(big.Int).Sub(t.balance(from), copyBigInt(amount))
	if left.Sign() < 0 {
		return fmt.Errorf("%s: %w", t.name, errInsufficientBalance)
	}
	t.balances[from.Key()] = left
	return nil
}

// scale multiplies every balance by num/den, the way a rebase grows holders.
func (t *fakeToken) scale(num, den *big.Int) {
	for key, bal := range t.balances {
		t.balances[key] = mulDiv(bal, num, den)
	}
}

func (t *fakeToken) clone() *fakeToken {
	out := newFakeToken(t.name)
	for key, bal := range t.balances {
		out.balances[key] = copyBigInt(bal)
	}
	return out
}

func (t *fakeToken) restore(from *fakeToken) {
	t.balances = from.clone().balances
}

type fakeTreasury struct {
	w *world
	// debt is reserve-denominated debt incurred by the module.
	debt *big.Int
	// shortMint makes Deposit mint this much less than asked.
	shortMint *big.Int
}

func (f *fakeTreasury) IncurDebt(amount *big.Int, _ crypto.Address) error {
	f.debt = add(f.debt, amount)
	return nil
}

func (f *fakeTreasury) Deposit(amount *big.Int, _ crypto.Address, profit *big.Int) (*big.Int, error) {
	minted := new(big.Int).Quo(copyBigInt(amount), decimalScale)
	minted.Sub(minted, copyBigInt(profit))
	minted.Sub(minted, copyBigInt(f.shortMint))
	f.w.debt.mint(moduleAddr, minted)
	return minted, nil
}

func (f *fakeTreasury) RepayDebtWithReserve(amount *big.Int, _ crypto.Address) error {
	left, err := sub("treasury debt", f.debt, amount)
	if err != nil {
		return err
	}
	f.debt = left
	return nil
}

func (f *fakeTreasury) RepayDebtWithOHM(amount *big.Int) error {
	if err := f.w.debt.burn(moduleAddr, amount); err != nil {
		return err
	}
	return f.RepayDebtWithReserve(new(big.Int).Mul(amount, decimalScale), reserveAsset)
}

// fakeStaking swaps the debt asset 1:1 for elastic collateral.
type fakeStaking struct {
	w      *world
	reject bool
}

func (f *fakeStaking) Stake(amount *big.Int, recipient crypto.Address) (bool, error) {
	if f.reject {
		return false, nil
	}
	if err := f.w.debt.burn(moduleAddr, amount); err != nil {
		return false, err
	}
	f.w.collateral.mint(recipient, amount)
	return true, nil
}

func (f *fakeStaking) Claim(crypto.Address) error { return nil }

func (f *fakeStaking) Unstake(amount *big.Int, _ bool) error {
	if err := f.w.collateral.burn(moduleAddr, amount); err != nil {
		return err
	}
	f.w.debt.mint(moduleAddr, amount)
	return nil
}

// fakeRouter is a constant-ratio pool between the debt and paired assets.
type fakeRouter struct {
	w      *world
	supply *big.Int
}

func (r *fakeRouter) reserves() (*big.Int, *big.Int) {
	return r.w.debt.balance(poolAddr), r.w.paired.balance(poolAddr)
}

func (r *fakeRouter) AddLiquidity(_, _ crypto.Address, desiredA, desiredB, minA, minB *big.Int, to crypto.Address, deadline uint64) (*big.Int, *big.Int, *big.Int, error) {
	if deadline < r.w.height {
		return nil, nil, nil, fmt.Errorf("router: %w", ErrDeadlineExpired)
	}
	reserveA, reserveB := r.reserves()
	amountA, amountB := copyBigInt(desiredA), copyBigInt(desiredB)
	var liquidity *big.Int
	if !positive(r.supply) {
		liquidity = copyBigInt(amountA)
	} else {
		optimalB := mulDiv(desiredA, reserveB, reserveA)
		if optimalB.Cmp(desiredB) <= 0 {
			amountB = optimalB
		} else {
			amountA = mulDiv(desiredB, reserveA, reserveB)
		}
		liquidity = mulDiv(amountA, r.supply, reserveA)
	}
	if amountA.Cmp(copyBigInt(minA)) < 0 || amountB.Cmp(copyBigInt(minB)) < 0 {
		return nil, nil, nil, fmt.Errorf("router: add: %w", ErrSlippageExceeded)
	}
	if err := r.w.debt.Transfer(to, poolAddr, amountA); err != nil {
		return nil, nil, nil, err
	}
	if err := r.w.paired.Transfer(to, poolAddr, amountB); err != nil {
		return nil, nil, nil, err
	}
	r.supply = add(r.supply, liquidity)
	return amountA, amountB, liquidity, nil
}

func (r *fakeRouter) RemoveLiquidity(_, _ crypto.Address, liquidity, minA, minB *big.Int, to crypto.Address, deadline uint64) (*big.Int, *big.Int, error) {
	if deadline < r.w.height {
		return nil, nil, fmt.Errorf("router: %w", ErrDeadlineExpired)
	}
	if liquidity.Cmp(copyBigInt(r.supply)) > 0 {
		return nil, nil, fmt.Errorf("router: burn exceeds supply")
	}
	reserveA, reserveB := r.reserves()
	amountA := mulDiv(liquidity, reserveA, r.supply)
	amountB := mulDiv(liquidity, reserveB, r.supply)
	if amountA.Cmp(copyBigInt(minA)) < 0 || amountB.Cmp(copyBigInt(minB)) < 0 {
		return nil, nil, fmt.Errorf("router: remove: %w", ErrSlippageExceeded)
	}
	r.supply = new(big.Int).Sub(r.supply, liquidity)
	if err := r.w.debt.Transfer(poolAddr, to, amountA); err != nil {
		return nil, nil, err
	}
	if err := r.w.paired.Transfer(poolAddr, to, amountB); err != nil {
		return nil, nil, err
	}
	return amountA, amountB, nil
}

// fakeMinter mints the paired asset, optionally capping each mint.
type fakeMinter struct {
	w     *world
	limit *big.Int
	total *big.Int
}

func (m *fakeMinter) Mint(to crypto.Address, amount *big.Int) error {
	minted := copyBigInt(amount)
	if m.limit != nil {
		minted = minBig(minted, m.limit)
	}
	m.w.paired.mint(to, minted)
	m.total = add(m.total, minted)
	return nil
}

type worldSnapshot struct {
	ledger                   *Ledger
	collateral, debt, paired *fakeToken
	treasuryDebt, supply     *big.Int
}

// world is a ledger plus every collaborator, snapshotted as one unit so a
// failed operation rolls token movements back along with the records.
type world struct {
	*Ledger
	height     uint64
	rates      *IndexAdapter
	collateral *fakeToken
	debt       *fakeToken
	paired     *fakeToken
	treasury   *fakeTreasury
	staking    *fakeStaking
	router     *fakeRouter
	minter     *fakeMinter
	emitted    *events.Collector
	engine     *Engine
	snaps      []worldSnapshot
}

type worldOption func(*world, *Parameters)

func withSettleBeforeOpen() worldOption {
	return func(_ *world, p *Parameters) { p.SettleRewardsBeforeOpen = true }
}

func newWorld(t *testing.T, ceiling, rewardPerBlock int64, startBlock uint64, opts ...worldOption) *world {
	t.Helper()
	rates, err := NewIndexAdapter(big.NewInt(DecimalScale))
	if err != nil {
		t.Fatalf("index adapter: %v", err)
	}
	w := &world{
		Ledger:     NewLedger(),
		height:     startBlock,
		rates:      rates,
		collateral: newFakeToken("collateral"),
		debt:       newFakeToken("debt"),
		paired:     newFakeToken("paired"),
		emitted:    &events.Collector{},
	}
	w.treasury = &fakeTreasury{w: w}
	w.staking = &fakeStaking{w: w}
	w.router = &fakeRouter{w: w}
	w.minter = &fakeMinter{w: w}

	params := Parameters{
		Owner:        ownerAddr,
		Operator:     operatorAddr,
		DebtAsset:    debtAsset,
		PairedAsset:  pairedAsset,
		ReserveAsset: reserveAsset,
	}
	for _, opt := range opts {
		opt(w, &params)
	}
	w.engine = NewEngine(moduleAddr, params, Collaborators{
		Rates:      w.rates,
		Collateral: w.collateral,
		Debt:       w.debt,
		Paired:     w.paired,
		Treasury:   w.treasury,
		Staking:    w.staking,
		Router:     w.router,
		Minter:     w.minter,
	})
	w.engine.SetState(w)
	w.engine.SetEmitter(w.emitted)
	w.engine.SetBlockHeight(startBlock)
	if err := w.engine.Initialise(big.NewInt(ceiling), big.NewInt(rewardPerBlock), startBlock); err != nil {
		t.Fatalf("initialise: %v", err)
	}
	return w
}

func (w *world) Snapshot() int {
	l := &Ledger{info: w.info.Clone(), users: make(map[string]*UserInfo), order: append([]string(nil), w.order...)}
	for key, user := range w.users {
		l.users[key] = user.Clone()
	}
	w.snaps = append(w.snaps, worldSnapshot{
		ledger:       l,
		collateral:   w.collateral.clone(),
		debt:         w.debt.clone(),
		paired:       w.paired.clone(),
		treasuryDebt: copyBigInt(w.treasury.debt),
		supply:       copyBigInt(w.router.supply),
	})
	return len(w.snaps) - 1
}

func (w *world) RevertToSnapshot(id int) {
	snap := w.snaps[id]
	w.snaps = w.snaps[:id]
	w.info, w.users, w.order = snap.ledger.info, snap.ledger.users, snap.ledger.order
	w.collateral.restore(snap.collateral)
	w.debt.restore(snap.debt)
	w.paired.restore(snap.paired)
	w.treasury.debt = snap.treasuryDebt
	w.router.supply = snap.supply
}

func (w *world) setHeight(h uint64) {
	w.height = h
	w.engine.SetBlockHeight(h)
}

// rebase moves the wrapper index and grows every holder of the elastic
// collateral by the same factor.
func (w *world) rebase(t *testing.T, index int64) {
	t.Helper()
	old := w.rates.Index()
	if err := w.rates.SetIndex(big.NewInt(index)); err != nil {
		t.Fatalf("set index: %v", err)
	}
	w.collateral.scale(big.NewInt(index), old)
}

func (w *world) fund(addr crypto.Address, collateral, paired int64) {
	w.collateral.mint(addr, big.NewInt(collateral))
	w.paired.mint(addr, big.NewInt(paired))
}

func (w *world) deposit(t *testing.T, addr crypto.Address, amount int64) {
	t.Helper()
	if err := w.engine.AddCollateral(addr, big.NewInt(amount)); err != nil {
		t.Fatalf("add collateral: %v", err)
	}
}

func (w *world) open(t *testing.T, addr crypto.Address, debt, paired int64) *OpenResult {
	t.Helper()
	res, err := w.engine.Open(addr, openRequest(debt, paired, w.height))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return res
}

func openRequest(debt, paired int64, deadline uint64) OpenRequest {
	return OpenRequest{
		DebtDesired: big.NewInt(debt),
		DebtMin:     big.NewInt(0),
		PairDesired: big.NewInt(paired),
		PairMin:     big.NewInt(0),
		Deadline:    deadline,
	}
}

func closeRequest(liquidity int64, deadline uint64) CloseRequest {
	return CloseRequest{
		Liquidity: big.NewInt(liquidity),
		DebtMin:   big.NewInt(0),
		PairMin:   big.NewInt(0),
		Deadline:  deadline,
	}
}

func (w *world) user(t *testing.T, addr crypto.Address) *UserInfo {
	t.Helper()
	user, err := w.engine.User(addr)
	if err != nil {
		t.Fatalf("user: %v", err)
	}
	return user
}

func (w *world) aggregate(t *testing.T) *Info {
	t.Helper()
	info, err := w.engine.Info()
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	return info
}

func (w *world) assertInvariants(t *testing.T) {
	t.Helper()
	users, err := w.Users()
	if err != nil {
		t.Fatalf("users: %v", err)
	}
	if err := CheckInvariants(w.aggregate(t), users, w.rates); err != nil {
		t.Fatalf("invariants: %v", err)
	}
}

func expectInt(t *testing.T, label string, got *big.Int, want int64) {
	t.Helper()
	if copyBigInt(got).Cmp(big.NewInt(want)) != 0 {
		t.Fatalf("%s: expected %d, got %s", label, want, copyBigInt(got))
	}
}
