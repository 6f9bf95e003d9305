package leverage

import (
	"errors"
	"math/big"
	"testing"

	"horus/core/events"
)

func TestCollectSweepsAccruedInterest(t *testing.T) {
	w := newWorld(t, 1000, 0, 1)
	w.fund(alice, 3000, 0)
	w.deposit(t, alice, 3000)
	w.rebase(t, 1_300_000_000)
	if _, err := w.engine.CollectInterest(alice); err != nil {
		t.Fatalf("collect interest: %v", err)
	}

	if _, err := w.engine.Collect(alice, alice); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	sent, err := w.engine.Collect(ownerAddr, operatorAddr)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	// 23 static at index 1.3 is worth 29 elastic.
	expectInt(t, "sent", sent, 29)
	expectInt(t, "operator collateral", w.collateral.balance(operatorAddr), 29)
	expectInt(t, "accrued", w.aggregate(t).Accrued, 0)

	again, err := w.engine.Collect(ownerAddr, operatorAddr)
	if err != nil {
		t.Fatalf("second collect: %v", err)
	}
	expectInt(t, "second sweep", again, 0)
	w.assertInvariants(t)

	// Alice can still withdraw her whole position.
	if err := w.engine.RemoveCollateral(alice, big.NewInt(3870)); err != nil {
		t.Fatalf("remove after sweep: %v", err)
	}
}

func TestSetCeilingRules(t *testing.T) {
	w := newWorld(t, 1000, 0, 1)
	w.fund(alice, 1000, 100)
	w.deposit(t, alice, 1000)
	w.open(t, alice, 100, 100)

	if err := w.engine.SetCeiling(bob, big.NewInt(5000)); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := w.engine.SetCeiling(ownerAddr, big.NewInt(99)); !errors.Is(err, ErrDebtCeilingExceeded) {
		t.Fatalf("expected ErrDebtCeilingExceeded, got %v", err)
	}
	if err := w.engine.SetCeiling(ownerAddr, nil); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if err := w.engine.SetCeiling(ownerAddr, big.NewInt(100)); err != nil {
		t.Fatalf("set ceiling to current debt: %v", err)
	}
	expectInt(t, "ceiling", w.aggregate(t).Ceiling, 100)

	evts := w.emitted.Events()
	updated, ok := evts[len(evts)-1].(events.CeilingUpdated)
	if !ok {
		t.Fatalf("expected %s last, got %v", events.TypeCeilingUpdated, w.emitted.Types())
	}
	expectInt(t, "previous", updated.Previous, 1000)
	expectInt(t, "new", updated.Ceiling, 100)

	if _, err := w.engine.Open(alice, openRequest(1, 1, w.height)); !errors.Is(err, ErrDebtCeilingExceeded) {
		t.Fatalf("expected ErrDebtCeilingExceeded, got %v", err)
	}
}

func TestSetRateRequiresOwner(t *testing.T) {
	w := newWorld(t, 1000, 10, 1)
	if err := w.engine.SetRate(alice, big.NewInt(1)); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := w.engine.SetRate(ownerAddr, big.NewInt(-1)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	expectInt(t, "rate", w.aggregate(t).RewardPerBlock, 10)
}

func TestAdminWithoutOwnerIsLocked(t *testing.T) {
	engine := NewEngine(moduleAddr, Parameters{}, Collaborators{})
	ledger := NewLedger()
	if err := ledger.PutInfo(NewInfo(big.NewInt(10), big.NewInt(0), 0)); err != nil {
		t.Fatalf("put info: %v", err)
	}
	engine.SetState(ledger)
	if err := engine.SetCeiling(ownerAddr, big.NewInt(20)); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}
