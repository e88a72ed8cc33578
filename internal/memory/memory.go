package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"sync"
	"time"

	"payoff/internal/core"
	"payoff/internal/ports"
)

// Store keeps debts and runs in process memory. Debts keep insertion order.
type Store struct {
	mu    sync.Mutex
	debts  []core.Debt
	runs   map[string]core.Run
	claims map[string]time.Time
}

// New returns a store holding debts. Invalid or duplicate debts are rejected.
func New(debts ...core.Debt) (*Store, error) {
	if err := core.ValidateDebts(debts); err != nil {
		return nil, err
	}
	return &Store{
		debts:  append([]core.Debt(nil), debts...),
		runs:   map[string]core.Run{},
		claims: map[string]time.Time{},
	}, nil
}

// NewFromFile seeds the store from a JSON array of debts. A missing file
// yields an empty store.
func NewFromFile(path string) (*Store, error) {
	debts, err := readSeed(path)
	if err != nil {
		return nil, err
	}
	return New(debts...)
}

func (s *Store) ListDebts(_ context.Context) ([]core.Debt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Debt(nil), s.debts...), nil
}

func (s *Store) GetDebt(_ context.Context, id string) (core.Debt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(id); i >= 0 {
		return s.debts[i], nil
	}
	return core.Debt{}, fmt.Errorf("debt %q: %w", id, ports.ErrNotFound)
}

// SaveDebt appends a new debt or replaces an existing one in place.
func (s *Store) SaveDebt(_ context.Context, d core.Debt) error {
	if err := d.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(d.ID); i >= 0 {
		s.debts[i] = d
		return nil
	}
	s.debts = append(s.debts, d)
	return nil
}

func (s *Store) DeleteDebt(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return fmt.Errorf("debt %q: %w", id, ports.ErrNotFound)
	}
	s.debts = append(s.debts[:i], s.debts[i+1:]...)
	return nil
}

func (s *Store) CreateRun(_ context.Context, run core.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[run.ID]; ok {
		return fmt.Errorf("run %q already exists", run.ID)
	}
	s.runs[run.ID] = run
	return nil
}

func (s *Store) UpdateRun(_ context.Context, run core.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[run.ID]; !ok {
		return fmt.Errorf("run %q: %w", run.ID, ports.ErrNotFound)
	}
	s.runs[run.ID] = run
	if run.Done() {
		delete(s.claims, run.ID)
	}
	return nil
}

func (s *Store) GetRun(_ context.Context, id string) (core.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return core.Run{}, fmt.Errorf("run %q: %w", id, ports.ErrNotFound)
	}
	return run, nil
}

func (s *Store) ListPendingRuns(_ context.Context, createdBefore time.Time, limit int) ([]core.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var pending []core.Run
	for _, run := range s.runs {
		if run.Status == core.RunPending && run.CreatedAt.Before(createdBefore) && !s.claimedSince(run.ID, createdBefore) {
			pending = append(pending, run)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

func (s *Store) ClaimRun(_ context.Context, id string, now, staleBefore time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok || run.Status != core.RunPending || s.claimedSince(id, staleBefore) {
		return false, nil
	}
	s.claims[id] = now
	return true, nil
}

func (s *Store) ReleaseRun(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if run, ok := s.runs[id]; ok && run.Status == core.RunPending {
		delete(s.claims, id)
	}
	return nil
}

// claimedSince reports whether id was claimed at or after t. Callers hold mu.
func (s *Store) claimedSince(id string, t time.Time) bool {
	at, ok := s.claims[id]
	return ok && !at.Before(t)
}

// Close is a no-op so the store satisfies the backend interface.
func (s *Store) Close() error { return nil }

func (s *Store) indexOf(id string) int {
	for i, d := range s.debts {
		if d.ID == id {
			return i
		}
	}
	return -1
}

func readSeed(path string) ([]core.Debt, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var debts []core.Debt
	if err := json.Unmarshal(data, &debts); err != nil {
		return nil, fmt.Errorf("parse seed file %s: %w", path, err)
	}
	return debts, nil
}
