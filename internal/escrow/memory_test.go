package escrow

import (
	"context"
	"math"
	"testing"
)

func TestMemoryEscrow_CollectDisburse(t *testing.T) {
	e := NewMemoryEscrow()
	ctx := context.Background()

	if err := e.Collect(ctx, "m1", "p1", 100); err != nil {
		t.Fatalf("collect: %v", err)
	}
	if err := e.Collect(ctx, "m1", "p2", 50); err != nil {
		t.Fatalf("collect: %v", err)
	}
	bal, _ := e.Balance(ctx, "m1")
	if bal != 150 {
		t.Errorf("balance %d, want 150", bal)
	}

	if err := e.Disburse(ctx, "m1", "p1", 120); err != nil {
		t.Fatalf("disburse: %v", err)
	}
	bal, _ = e.Balance(ctx, "m1")
	if bal != 30 {
		t.Errorf("balance %d, want 30", bal)
	}

	if err := e.Disburse(ctx, "m1", "p2", 31); err == nil {
		t.Error("overdraw should fail")
	}
	bal, _ = e.Balance(ctx, "m1")
	if bal != 30 {
		t.Errorf("failed disburse must not move funds: balance %d", bal)
	}
}

func TestMemoryEscrow_BalancesIsolatedPerMatch(t *testing.T) {
	e := NewMemoryEscrow()
	ctx := context.Background()

	if err := e.Collect(ctx, "m1", "p1", 100); err != nil {
		t.Fatalf("collect: %v", err)
	}
	bal, _ := e.Balance(ctx, "m2")
	if bal != 0 {
		t.Errorf("m2 balance %d, want 0", bal)
	}
	if err := e.Disburse(ctx, "m2", "p1", 1); err == nil {
		t.Error("disburse from empty match should fail")
	}
}

func TestMemoryEscrow_CollectOverflow(t *testing.T) {
	e := NewMemoryEscrow()
	ctx := context.Background()

	if err := e.Collect(ctx, "m1", "p1", math.MaxUint64); err != nil {
		t.Fatalf("collect: %v", err)
	}
	if err := e.Collect(ctx, "m1", "p2", 1); err == nil {
		t.Error("balance overflow should fail")
	}
}

func TestMemoryEscrow_TransferLog(t *testing.T) {
	e := NewMemoryEscrow()
	ctx := context.Background()

	_ = e.Collect(ctx, "m1", "p1", 100)
	_ = e.Collect(ctx, "m2", "p1", 5)
	_ = e.Disburse(ctx, "m1", "p1", 40)

	log := e.Transfers("m1")
	if len(log) != 2 {
		t.Fatalf("expected 2 transfers for m1, got %d", len(log))
	}
	if log[0].Direction != "collect" || log[0].Amount != 100 {
		t.Errorf("first transfer: %+v", log[0])
	}
	if log[1].Direction != "disburse" || log[1].Amount != 40 {
		t.Errorf("second transfer: %+v", log[1])
	}
	if log[0].ID == "" || log[0].ID == log[1].ID {
		t.Error("transfers need distinct IDs")
	}
}
