// Package services glues the engine to the goal store and the
// change-notification stream.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xphabletx/envelope-lite/internal/amqp"
	"github.com/xphabletx/envelope-lite/internal/core"
	"github.com/xphabletx/envelope-lite/internal/store"
)

// Publisher is the outbound change-notification hook. Nil disables it.
type Publisher interface {
	PublishGoalUpdate(ctx context.Context, goalID string, version int64) error
	Close() error
}

// compile-time check that the AMQP client satisfies Publisher
var _ Publisher = (*amqp.Client)(nil)

// PlannerService orchestrates payday commits across the store and AMQP.
// The store write is the source of truth; the notification publish is
// best-effort and never fails the commit.
// One service instance serves every concurrent session, so the version
// counters are mutex-guarded.
type PlannerService struct {
	store     store.Store
	publisher Publisher

	versionsMu sync.Mutex
	versions   map[string]int64
}

func NewPlannerService(st store.Store, publisher Publisher) *PlannerService {
	return &PlannerService{
		store:     st,
		publisher: publisher,
		versions:  make(map[string]int64),
	}
}

// Store exposes the underlying goal/transaction store for reads.
func (s *PlannerService) Store() store.Store { return s.store }

// CommitAllocation implements payday.GoalCommitter: it persists the goal's
// final allocation as its cash-flow setting, then announces the change.
func (s *PlannerService) CommitAllocation(ctx context.Context, goalID string, amount core.Money, freq core.Frequency) error {
	if amount.Cents < 0 {
		amount.Cents = 0
	}
	enabled := amount.Cents > 0

	if err := s.store.UpdateGoalCashFlow(ctx, goalID, enabled, amount, freq); err != nil {
		return fmt.Errorf("commit allocation: %w", err)
	}

	if err := s.publishUpdate(ctx, goalID, s.nextVersion(goalID)); err != nil {
		slog.ErrorContext(ctx, "Failed to publish goal update",
			"goal_id", goalID, "error", err)
		// Don't fail the commit - the store write succeeded
	}
	return nil
}

// Snapshot gathers everything one planning session needs: the goal set and
// each goal's history.
func (s *PlannerService) Snapshot(ctx context.Context) ([]core.Goal, map[string][]core.ContributionRecord, error) {
	goals, err := s.store.ListGoals(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list goals: %w", err)
	}

	history := make(map[string][]core.ContributionRecord, len(goals))
	for _, g := range goals {
		records, err := s.store.TransactionsForGoal(ctx, g.ID)
		if err != nil {
			return nil, nil, fmt.Errorf("history for goal %s: %w", g.ID, err)
		}
		history[g.ID] = records
	}
	return goals, history, nil
}

// Window returns the goal set and the transactions between start and end,
// the inputs analytics runs over.
func (s *PlannerService) Window(ctx context.Context, start, end time.Time) ([]core.Goal, []core.ContributionRecord, error) {
	goals, err := s.store.ListGoals(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list goals: %w", err)
	}
	records, err := s.store.TransactionsInRange(ctx, start, end)
	if err != nil {
		return nil, nil, fmt.Errorf("transactions in range: %w", err)
	}
	return goals, records, nil
}

func (s *PlannerService) nextVersion(goalID string) int64 {
	s.versionsMu.Lock()
	defer s.versionsMu.Unlock()
	s.versions[goalID]++
	return s.versions[goalID]
}

func (s *PlannerService) publishUpdate(ctx context.Context, goalID string, version int64) error {
	if s.publisher == nil {
		slog.DebugContext(ctx, "No publisher configured, skipping goal update message")
		return nil
	}
	return s.publisher.PublishGoalUpdate(ctx, goalID, version)
}

// Close releases the publisher connection.
func (s *PlannerService) Close() error {
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			return fmt.Errorf("close planner service: %w", err)
		}
	}
	return nil
}
