package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/xphabletx/envelope-lite/internal/core"
	"github.com/xphabletx/envelope-lite/internal/store/memory"
)

type fakePublisher struct {
	mu        sync.Mutex
	published []publishedUpdate
	failWith  error
	closed    bool
}

type publishedUpdate struct {
	goalID  string
	version int64
}

func (f *fakePublisher) PublishGoalUpdate(_ context.Context, goalID string, version int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	f.published = append(f.published, publishedUpdate{goalID, version})
	return nil
}

func (f *fakePublisher) Close() error {
	f.closed = true
	return nil
}

func seedStore(t *testing.T) *memory.Store {
	t.Helper()
	st := memory.New()
	st.Seed(
		[]core.Goal{
			{ID: "trip", Name: "Trip", TargetAmount: core.Money{Cents: 150000}},
			{ID: "car", Name: "Car", TargetAmount: core.Money{Cents: 300000}},
		},
		[]core.ContributionRecord{
			{GoalID: "trip", Amount: core.Money{Cents: 10000}, Date: time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC), Impact: core.ImpactExternal, Direction: core.DirectionInflow},
		},
	)
	return st
}

func TestPlannerService_CommitAllocation(t *testing.T) {
	st := seedStore(t)
	pub := &fakePublisher{}
	svc := NewPlannerService(st, pub)

	err := svc.CommitAllocation(context.Background(), "trip", core.Money{Cents: 10000}, core.Monthly)
	if err != nil {
		t.Fatalf("CommitAllocation: %v", err)
	}

	goals, _ := st.ListGoals(context.Background())
	for _, g := range goals {
		if g.ID != "trip" {
			continue
		}
		if !g.CashFlowEnabled || g.CashFlowAmount.Cents != 10000 || g.CashFlowFrequency != core.Monthly {
			t.Errorf("cash flow not persisted: %+v", g)
		}
	}

	if len(pub.published) != 1 {
		t.Fatalf("published %d updates, want 1", len(pub.published))
	}
	if pub.published[0].goalID != "trip" || pub.published[0].version != 1 {
		t.Errorf("published %+v, want trip v1", pub.published[0])
	}

	// a second commit bumps the version
	if err := svc.CommitAllocation(context.Background(), "trip", core.Money{Cents: 20000}, core.Monthly); err != nil {
		t.Fatal(err)
	}
	if got := pub.published[1].version; got != 2 {
		t.Errorf("second publish version = %d, want 2", got)
	}
}

// One service instance is shared across sessions, so commits for different
// goals can land at the same time.
func TestPlannerService_ConcurrentCommits(t *testing.T) {
	st := seedStore(t)
	pub := &fakePublisher{}
	svc := NewPlannerService(st, pub)

	const commitsPerGoal = 20
	var wg sync.WaitGroup
	for _, goalID := range []string{"trip", "car"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for i := 0; i < commitsPerGoal; i++ {
				if err := svc.CommitAllocation(context.Background(), id, core.Money{Cents: 10000}, core.Monthly); err != nil {
					t.Errorf("CommitAllocation(%s): %v", id, err)
					return
				}
			}
		}(goalID)
	}
	wg.Wait()

	if len(pub.published) != 2*commitsPerGoal {
		t.Fatalf("published %d updates, want %d", len(pub.published), 2*commitsPerGoal)
	}
	// each goal's versions are strictly increasing regardless of interleaving
	last := map[string]int64{}
	for _, p := range pub.published {
		if p.version <= last[p.goalID] {
			t.Fatalf("version %d for %s after %d", p.version, p.goalID, last[p.goalID])
		}
		last[p.goalID] = p.version
	}
	if last["trip"] != commitsPerGoal || last["car"] != commitsPerGoal {
		t.Errorf("final versions = %v, want %d for both goals", last, commitsPerGoal)
	}
}

func TestPlannerService_CommitZeroAmountDisablesCashFlow(t *testing.T) {
	st := seedStore(t)
	svc := NewPlannerService(st, nil)

	if err := svc.CommitAllocation(context.Background(), "trip", core.Money{Cents: 0}, core.Monthly); err != nil {
		t.Fatal(err)
	}

	goals, _ := st.ListGoals(context.Background())
	if goals[0].CashFlowEnabled {
		t.Error("zero allocation should disable the cash flow")
	}
}

func TestPlannerService_CommitSurvivesPublishFailure(t *testing.T) {
	st := seedStore(t)
	pub := &fakePublisher{failWith: errors.New("broker down")}
	svc := NewPlannerService(st, pub)

	err := svc.CommitAllocation(context.Background(), "trip", core.Money{Cents: 10000}, core.Monthly)
	if err != nil {
		t.Errorf("CommitAllocation = %v, want nil when only the publish fails", err)
	}

	goals, _ := st.ListGoals(context.Background())
	if !goals[0].CashFlowEnabled {
		t.Error("store write lost despite publish failure")
	}
}

func TestPlannerService_CommitUnknownGoal(t *testing.T) {
	svc := NewPlannerService(seedStore(t), &fakePublisher{})

	err := svc.CommitAllocation(context.Background(), "ghost", core.Money{Cents: 100}, core.Monthly)
	if !errors.Is(err, core.ErrGoalNotFound) {
		t.Errorf("CommitAllocation(ghost) = %v, want ErrGoalNotFound", err)
	}
}

func TestPlannerService_Snapshot(t *testing.T) {
	svc := NewPlannerService(seedStore(t), nil)

	goals, history, err := svc.Snapshot(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(goals) != 2 {
		t.Errorf("got %d goals, want 2", len(goals))
	}
	if len(history["trip"]) != 1 {
		t.Errorf("trip history has %d records, want 1", len(history["trip"]))
	}
	if len(history["car"]) != 0 {
		t.Errorf("car history has %d records, want 0", len(history["car"]))
	}
}

func TestPlannerService_Window(t *testing.T) {
	svc := NewPlannerService(seedStore(t), nil)

	start := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	goals, records, err := svc.Window(context.Background(), start, end)
	if err != nil {
		t.Fatal(err)
	}
	if len(goals) != 2 || len(records) != 1 {
		t.Errorf("Window returned %d goals, %d records; want 2 and 1", len(goals), len(records))
	}

	// empty window
	_, records, err = svc.Window(context.Background(), end, end.AddDate(0, 1, 0))
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 0 {
		t.Errorf("empty window returned %d records", len(records))
	}
}

func TestPlannerService_Close(t *testing.T) {
	pub := &fakePublisher{}
	svc := NewPlannerService(seedStore(t), pub)

	if err := svc.Close(); err != nil {
		t.Fatal(err)
	}
	if !pub.closed {
		t.Error("publisher not closed")
	}

	// nil publisher is fine
	if err := NewPlannerService(seedStore(t), nil).Close(); err != nil {
		t.Errorf("Close with nil publisher = %v", err)
	}
}
