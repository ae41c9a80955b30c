// Package memory provides an in-process goal/transaction store. It backs
// tests and the default backend when no database is configured.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/xphabletx/envelope-lite/internal/core"
)

type Store struct {
	mu     sync.Mutex
	goals  map[string]core.Goal
	order  []string
	ledger []core.ContributionRecord
}

func New() *Store {
	return &Store{goals: make(map[string]core.Goal)}
}

// Seed loads goals and records wholesale, replacing existing state.
func (s *Store) Seed(goals []core.Goal, records []core.ContributionRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.goals = make(map[string]core.Goal, len(goals))
	s.order = s.order[:0]
	for _, g := range goals {
		s.goals[g.ID] = g
		s.order = append(s.order, g.ID)
	}
	s.ledger = append([]core.ContributionRecord(nil), records...)
}

// PutGoal inserts or replaces a goal.
func (s *Store) PutGoal(g core.Goal) error {
	if err := g.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.goals[g.ID]; !ok {
		s.order = append(s.order, g.ID)
	}
	s.goals[g.ID] = g
	return nil
}

// ListGoals returns goals in insertion order.
func (s *Store) ListGoals(_ context.Context) ([]core.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Goal, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.goals[id])
	}
	return out, nil
}

// UpdateGoalCashFlow sets a goal's recurring cash-flow settings.
func (s *Store) UpdateGoalCashFlow(_ context.Context, goalID string, enabled bool, amount core.Money, freq core.Frequency) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.goals[goalID]
	if !ok {
		return fmt.Errorf("update goal %s: %w", goalID, core.ErrGoalNotFound)
	}
	g.CashFlowEnabled = enabled
	g.CashFlowAmount = amount
	if freq.IsValid() {
		g.CashFlowFrequency = freq
	}
	s.goals[goalID] = g
	return nil
}

// AppendTransaction stores the record and returns a synthetic reference.
func (s *Store) AppendTransaction(_ context.Context, rec core.ContributionRecord) (string, error) {
	if err := rec.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ledger = append(s.ledger, rec)
	return fmt.Sprintf("mem:%d", len(s.ledger)), nil
}

// TransactionsForGoal returns a goal's ledger sorted newest first.
func (s *Store) TransactionsForGoal(_ context.Context, goalID string) ([]core.ContributionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.ContributionRecord
	for _, rec := range s.ledger {
		if rec.GoalID == goalID {
			out = append(out, rec)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.After(out[j].Date)
	})
	return out, nil
}

// TransactionsInRange returns records with start <= date <= end, oldest
// first.
func (s *Store) TransactionsInRange(_ context.Context, start, end time.Time) ([]core.ContributionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.ContributionRecord
	for _, rec := range s.ledger {
		if rec.Date.Before(start) || rec.Date.After(end) {
			continue
		}
		out = append(out, rec)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	return out, nil
}
