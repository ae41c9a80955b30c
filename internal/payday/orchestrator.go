// Package payday sequences the engine components through the guided
// "apply strategy" flow: enter an amount, review the what-if sandbox,
// commit the allocations, show the result.
package payday

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/xphabletx/envelope-lite/internal/core"
	"github.com/xphabletx/envelope-lite/internal/engine"
)

// State is the orchestrator's position in the linear payday flow.
type State string

const (
	StateAmountEntry    State = "amount_entry"
	StateStrategyReview State = "strategy_review"
	StateExecution      State = "execution"
	StateSuccess        State = "success"
	StateCancelled      State = "cancelled"
)

var (
	ErrInvalidTransition = fmt.Errorf("invalid payday state transition")
	ErrNoAmount          = fmt.Errorf("a positive contribution amount is required")
)

// GoalCommitter applies one goal's final allocation to the external store.
// Commits are independent; there is no cross-goal atomicity.
type GoalCommitter interface {
	CommitAllocation(ctx context.Context, goalID string, amount core.Money, freq core.Frequency) error
}

// CommitResult is the outcome of one goal's commit during execution.
type CommitResult struct {
	GoalID string
	Amount core.Money
	Err    error
}

// Snapshot is an immutable view of the session's derived state, rebuilt on
// every recompute.
type Snapshot struct {
	State      State
	Amount     float64
	Sum        float64
	Simulation map[string]engine.SimulationResult
	TimeSaved  engine.TimeSaved
	Reserve    float64
}

// GoalSummary is one line of the success screen, ranked by days saved.
type GoalSummary struct {
	GoalID    string
	DaysSaved int
}

// Session drives one payday flow over an immutable goal snapshot. The
// review sandbox never writes; only Execute touches the store, one goal at
// a time. A failed commit is reported per goal and does not roll back
// earlier successes.
//
// All exported methods are safe for concurrent use. The debounced
// recompute fires on a timer goroutine, so it takes the same lock as the
// input setters.
type Session struct {
	mu        sync.Mutex
	state     State
	goals     []core.Goal
	baseline  *engine.BaselineSession
	alloc     *engine.Allocator
	debounce  *engine.Debouncer
	committer GoalCommitter
	now       func() time.Time

	amount         float64 // currency units per period
	externalInflow float64 // for the reserve display
	boosts         map[string]float64

	simulation map[string]engine.SimulationResult
	timeSaved  engine.TimeSaved
	commits    []CommitResult
}

// NewSession detects the baseline over the given snapshot, selects every
// horizon goal with an equal allocation share, and starts at amount entry.
// A non-positive debounce falls back to engine.DefaultDebounce.
func NewSession(goals []core.Goal, history map[string][]core.ContributionRecord, defaultFreq core.Frequency, committer GoalCommitter, debounce time.Duration) *Session {
	s := &Session{
		state:     StateAmountEntry,
		goals:     append([]core.Goal(nil), goals...),
		baseline:  engine.NewBaselineSession(),
		alloc:     engine.NewAllocator(defaultFreq),
		debounce:  engine.NewDebouncer(debounce),
		committer: committer,
		now:       time.Now,
		boosts:    make(map[string]float64),
	}
	s.baseline.Detect(goals, history, defaultFreq)

	var selected []string
	for _, g := range goals {
		if g.IsHorizon() {
			selected = append(selected, g.ID)
		}
	}
	s.alloc.InitializeEqual(selected)
	s.recompute()
	return s
}

// SetClock overrides the projection anchor. Test hook.
func (s *Session) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
	s.recompute()
}

// State returns the current flow position.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetAmount records the contribution amount and schedules a debounced
// recompute. Negative input degrades to zero rather than erroring.
func (s *Session) SetAmount(amount float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if amount < 0 {
		amount = 0
	}
	s.amount = amount
	s.scheduleRecompute()
}

// SetExternalInflow records the period's detected income, used only for the
// reserve display during execution.
func (s *Session) SetExternalInflow(inflow float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if inflow < 0 {
		inflow = 0
	}
	s.externalInflow = inflow
}

// UpdateAllocation changes one goal's percentage in the sandbox.
func (s *Session) UpdateAllocation(goalID string, pct float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alloc.UpdateAllocation(goalID, pct)
	s.scheduleRecompute()
}

// SetFrequency changes one goal's contribution cadence in the sandbox.
func (s *Session) SetFrequency(goalID string, f core.Frequency) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alloc.SetFrequency(goalID, f)
	s.scheduleRecompute()
}

// SetBoost layers a session-only extra percentage on top of a goal's base
// allocation.
func (s *Session) SetBoost(goalID string, pct float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pct < 0 {
		pct = 0
	}
	s.boosts[goalID] = pct
	s.scheduleRecompute()
}

// AddGoal brings a goal into the selection; every share resets to equal.
func (s *Session) AddGoal(goalID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alloc.Add(goalID)
	s.scheduleRecompute()
}

// RemoveGoal drops a goal from the selection.
func (s *Session) RemoveGoal(goalID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alloc.Remove(goalID)
	s.scheduleRecompute()
}

// BeginReview moves from amount entry to the strategy review sandbox. It
// requires a positive contribution amount.
func (s *Session) BeginReview() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateAmountEntry {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.state, StateStrategyReview)
	}
	if s.amount <= 0 {
		return ErrNoAmount
	}
	s.flushRecompute()
	s.state = StateStrategyReview
	return nil
}

// Execute commits every selected goal's final allocation, one at a time.
// Failures are collected per goal; earlier successes are not rolled back.
// The session reaches Success only when every commit lands, otherwise it
// stays in Execution so the caller can inspect the partial result.
func (s *Session) Execute(ctx context.Context) ([]CommitResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateStrategyReview && s.state != StateExecution {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.state, StateExecution)
	}
	s.flushRecompute()
	s.state = StateExecution

	s.commits = s.commits[:0]
	failed := false
	for _, id := range s.alloc.Selected() {
		amount := core.Money{Cents: int64(s.finalAllocation(id) * 100)}
		res := CommitResult{GoalID: id, Amount: amount}
		if s.committer == nil {
			res.Err = fmt.Errorf("commit %s: no goal store attached", id)
		} else {
			res.Err = s.committer.CommitAllocation(ctx, id, amount, s.alloc.Frequency(id))
		}
		if res.Err != nil {
			failed = true
		}
		s.commits = append(s.commits, res)
	}

	if !failed {
		s.state = StateSuccess
	}
	return append([]CommitResult(nil), s.commits...), nil
}

// Cancel abandons the flow from any state.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.debounce.Cancel()
	s.state = StateCancelled
}

// Recompute flushes any pending debounced work and rebuilds the projection
// immediately.
func (s *Session) Recompute() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushRecompute()
}

// Snapshot returns the current derived state. The debounce window is
// flushed first so the view reflects the latest inputs.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushRecompute()

	sim := make(map[string]engine.SimulationResult, len(s.simulation))
	for id, r := range s.simulation {
		sim[id] = r
	}
	return Snapshot{
		State:      s.state,
		Amount:     s.amount,
		Sum:        s.alloc.Sum(),
		Simulation: sim,
		TimeSaved:  s.timeSaved,
		Reserve:    s.reserve(),
	}
}

// AllocationView is one selected goal's share and cadence.
type AllocationView struct {
	GoalID     string
	Percentage float64
	Frequency  core.Frequency
}

// Allocations returns the selected goals' shares in selection order.
func (s *Session) Allocations() []AllocationView {
	s.mu.Lock()
	defer s.mu.Unlock()
	selected := s.alloc.Selected()
	out := make([]AllocationView, 0, len(selected))
	for _, id := range selected {
		out = append(out, AllocationView{
			GoalID:     id,
			Percentage: s.alloc.Percentage(id),
			Frequency:  s.alloc.Frequency(id),
		})
	}
	return out
}

// Percentage returns one goal's current allocation share.
func (s *Session) Percentage(goalID string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alloc.Percentage(goalID)
}

// Sum returns the total of the selected goals' percentages.
func (s *Session) Sum() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alloc.Sum()
}

// Baseline exposes the cached baseline entries.
func (s *Session) Baseline() map[string]engine.BaselineEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.baseline.Entries()
}

// ResetBaseline discards the cached baseline and re-detects against the
// given snapshot.
func (s *Session) ResetBaseline(goals []core.Goal, history map[string][]core.ContributionRecord, defaultFreq core.Frequency) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.baseline.Reset()
	s.baseline.Detect(goals, history, defaultFreq)
	s.scheduleRecompute()
}

// TopGoals returns up to n goals ranked by days saved, for the success
// screen.
func (s *Session) TopGoals(n int) []GoalSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]GoalSummary, 0, len(s.timeSaved.PerGoal))
	for id, days := range s.timeSaved.PerGoal {
		out = append(out, GoalSummary{GoalID: id, DaysSaved: days})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DaysSaved != out[j].DaysSaved {
			return out[i].DaysSaved > out[j].DaysSaved
		}
		return out[i].GoalID < out[j].GoalID
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// finalAllocation is a goal's committed per-period amount: base share plus
// the session boost on top of it, in currency units.
func (s *Session) finalAllocation(id string) float64 {
	base := s.amount * s.alloc.Percentage(id) / 100
	return base + base*s.boosts[id]/100
}

// reserve is the income left over after base allocations and boosts.
// Display only; it is never committed anywhere.
func (s *Session) reserve() float64 {
	r := s.externalInflow
	for _, id := range s.alloc.Selected() {
		base := s.amount * s.alloc.Percentage(id) / 100
		r -= base
		r -= base * s.boosts[id] / 100
	}
	return r
}

// scheduleRecompute queues a debounced recompute. The scheduled function
// runs on the timer goroutine, so it takes the session lock itself.
// Callers hold s.mu.
func (s *Session) scheduleRecompute() {
	s.debounce.Schedule(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.recompute()
	})
}

// flushRecompute drops any pending debounce and rebuilds the projection
// in place. Callers hold s.mu; going through Debouncer.Flush here would
// deadlock against a timer callback waiting on the same lock.
func (s *Session) flushRecompute() {
	s.debounce.Cancel()
	s.recompute()
}

// recompute rebuilds the simulation and time-saved projections from the
// current inputs. Callers hold s.mu.
func (s *Session) recompute() {
	percentages := s.alloc.Percentages()
	frequencies := s.alloc.Frequencies()
	s.simulation = engine.Simulate(s.amount, percentages, frequencies, s.goals, s.now())

	speeds := make(map[string]float64, len(percentages))
	for id := range percentages {
		contribution := s.amount * percentages[id] / 100
		boosted := contribution + contribution*s.boosts[id]/100
		speeds[id] = boosted * frequencies[id].MonthlyFactor()
	}
	s.timeSaved = engine.ComputeTimeSaved(s.goals, s.baseline.Entries(), speeds)
}
