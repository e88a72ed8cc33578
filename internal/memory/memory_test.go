package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"payoff/internal/core"
	"payoff/internal/ports"
)

func debt(id, balance string) core.Debt {
	return core.Debt{
		ID:             id,
		Name:           id,
		Balance:        core.MustParseMoney(balance),
		MinimumPayment: core.MustParseMoney("25"),
		InterestRate:   decimal.RequireFromString("12.5"),
	}
}

func TestStoreSaveKeepsOrder(t *testing.T) {
	ctx := context.Background()
	s, err := New(debt("a", "100"), debt("b", "200"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := s.SaveDebt(ctx, debt("c", "300")); err != nil {
		t.Fatalf("save c: %v", err)
	}
	// Replacing a debt must not move it to the end.
	if err := s.SaveDebt(ctx, debt("a", "150")); err != nil {
		t.Fatalf("replace a: %v", err)
	}

	got, _ := s.ListDebts(ctx)
	if len(got) != 3 || got[0].ID != "a" || got[1].ID != "b" || got[2].ID != "c" {
		t.Fatalf("unexpected order: %+v", got)
	}
	if got[0].Balance.String() != "150.00" {
		t.Errorf("expected replaced balance, got %s", got[0].Balance)
	}

	got[0].ID = "mutated"
	again, _ := s.ListDebts(ctx)
	if again[0].ID != "a" {
		t.Error("ListDebts must return a copy")
	}
}

func TestStoreRejectsInvalidDebts(t *testing.T) {
	if _, err := New(debt("a", "100"), debt("a", "200")); !errors.Is(err, core.ErrInvalidInput) {
		t.Fatalf("expected duplicate id rejection, got %v", err)
	}

	s, _ := New()
	bad := debt("x", "100")
	bad.MinimumPayment = core.Money{}
	if err := s.SaveDebt(context.Background(), bad); !errors.Is(err, core.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestStoreDeleteAndNotFound(t *testing.T) {
	ctx := context.Background()
	s, _ := New(debt("a", "100"), debt("b", "200"))

	if err := s.DeleteDebt(ctx, "a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetDebt(ctx, "a"); !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.DeleteDebt(ctx, "a"); !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
	if d, err := s.GetDebt(ctx, "b"); err != nil || d.ID != "b" {
		t.Fatalf("unexpected get: %+v %v", d, err)
	}
}

func TestStoreRuns(t *testing.T) {
	ctx := context.Background()
	s, _ := New()
	run := core.Run{ID: "r1", Status: core.RunPending, CreatedAt: time.Now()}

	if err := s.CreateRun(ctx, run); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.CreateRun(ctx, run); err == nil {
		t.Fatal("expected duplicate run error")
	}

	run.Complete(core.SimulationOutput{Method: core.Snowball}, time.Now())
	if err := s.UpdateRun(ctx, run); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := s.GetRun(ctx, "r1")
	if err != nil || got.Status != core.RunCompleted || got.Output == nil {
		t.Fatalf("unexpected run: %+v %v", got, err)
	}

	if err := s.UpdateRun(ctx, core.Run{ID: "missing"}); !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreListPendingRuns(t *testing.T) {
	ctx := context.Background()
	s, _ := New()
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	for i, id := range []string{"c", "a", "b"} {
		run := core.Run{ID: id, Status: core.RunPending, CreatedAt: base.Add(time.Duration(2-i) * time.Second)}
		if err := s.CreateRun(ctx, run); err != nil {
			t.Fatal(err)
		}
	}
	finished := core.Run{ID: "f", CreatedAt: base}
	finished.Fail("boom", base)
	if err := s.CreateRun(ctx, finished); err != nil {
		t.Fatal(err)
	}

	got, err := s.ListPendingRuns(ctx, base.Add(time.Minute), 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != "b" || got[1].ID != "a" {
		t.Errorf("unexpected pending runs: %+v", got)
	}
}

func TestStoreClaimRun(t *testing.T) {
	ctx := context.Background()
	s, _ := New()
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	if err := s.CreateRun(ctx, core.Run{ID: "r1", Status: core.RunPending, CreatedAt: base}); err != nil {
		t.Fatal(err)
	}

	claimAt := base.Add(time.Minute)
	tests := []struct {
		name        string
		now         time.Time
		staleBefore time.Time
		want        bool
	}{
		{"first claim wins", claimAt, base, true},
		{"second claim loses", claimAt.Add(time.Second), base, false},
		{"stale claim is taken over", claimAt.Add(time.Hour), claimAt.Add(time.Second), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ClaimRun(ctx, "r1", tt.now, tt.staleBefore)
			if err != nil || got != tt.want {
				t.Errorf("ClaimRun = %v, %v; want %v", got, err, tt.want)
			}
		})
	}

	if pending, _ := s.ListPendingRuns(ctx, claimAt.Add(time.Minute), 10); len(pending) != 0 {
		t.Errorf("freshly claimed run should not be listed: %+v", pending)
	}
	if err := s.ReleaseRun(ctx, "r1"); err != nil {
		t.Fatal(err)
	}
	if pending, _ := s.ListPendingRuns(ctx, claimAt.Add(time.Minute), 10); len(pending) != 1 {
		t.Errorf("released run should be listed again: %+v", pending)
	}

	run, _ := s.GetRun(ctx, "r1")
	run.Complete(core.SimulationOutput{}, base)
	if err := s.UpdateRun(ctx, run); err != nil {
		t.Fatal(err)
	}
	if ok, _ := s.ClaimRun(ctx, "r1", claimAt.Add(2*time.Hour), claimAt.Add(2*time.Hour)); ok {
		t.Error("finished run must not be claimed")
	}
	if ok, _ := s.ClaimRun(ctx, "missing", base, base); ok {
		t.Error("unknown run must not be claimed")
	}
}

func TestNewFromFile(t *testing.T) {
	dir := t.TempDir()

	// Missing file -> empty store
	s, err := NewFromFile(filepath.Join(dir, "missing.json"))
	if err != nil {
		t.Fatalf("missing file should not fail: %v", err)
	}
	if got, _ := s.ListDebts(context.Background()); len(got) != 0 {
		t.Fatalf("expected empty store, got %d debts", len(got))
	}

	path := filepath.Join(dir, "debts.json")
	seed := `[
		{"id":"visa","name":"Visa","balance":"2500.00","minimumPayment":75,"interestRate":"19.99","type":"credit_card"},
		{"id":"car","name":"Car","balance":8000,"minimumPayment":"240","interestRate":6.5}
	]`
	if err := os.WriteFile(path, []byte(seed), 0o644); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	s, err = NewFromFile(path)
	if err != nil {
		t.Fatalf("NewFromFile: %v", err)
	}
	got, _ := s.ListDebts(context.Background())
	if len(got) != 2 || got[0].ID != "visa" || got[1].MinimumPayment.String() != "240.00" {
		t.Fatalf("unexpected seed: %+v", got)
	}

	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	if _, err := NewFromFile(path); err == nil {
		t.Fatal("expected parse error")
	}
}
