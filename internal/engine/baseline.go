// Package engine implements the allocation-and-projection computations:
// baseline-speed detection, percentage-allocation normalization, reach-date
// simulation, time-saved comparison and period analytics. Everything here is
// a pure synchronous function over an in-memory snapshot; persistence and
// transport live elsewhere.
package engine

import (
	"sort"

	"github.com/xphabletx/envelope-lite/internal/core"
)

// BaselineSource records where a goal's detected speed came from.
type BaselineSource string

const (
	SourceCashFlow          BaselineSource = "cash flow"
	SourceRecentTransaction BaselineSource = "recent transaction"
	SourceStalled           BaselineSource = "stalled"
)

// BaselineEntry is one goal's detected pre-existing contribution speed,
// normalized to money per month.
type BaselineEntry struct {
	GoalID       string
	MonthlySpeed float64 // currency units per month
	Source       BaselineSource
}

// BaselineSession caches the detected baseline for one interactive planning
// flow. Detect computes once; later calls return the cached map unchanged
// until Reset, even if the inputs differ. That keeps the comparison point
// stable while the user edits the strategy.
type BaselineSession struct {
	computed bool
	entries  map[string]BaselineEntry
}

func NewBaselineSession() *BaselineSession {
	return &BaselineSession{entries: make(map[string]BaselineEntry)}
}

// Computed reports whether a baseline has been detected in this session.
func (s *BaselineSession) Computed() bool {
	return s.computed
}

// Reset discards the cached baseline so the next Detect recomputes.
func (s *BaselineSession) Reset() {
	s.computed = false
	s.entries = make(map[string]BaselineEntry)
}

// Detect derives each goal's monthly contribution speed. Priority per goal:
// an enabled cash-flow setting wins, then the most recent external inflow in
// the goal's history, then zero ("stalled"). Speeds are normalized to a
// monthly figure with AvgDaysPerMonth.
func (s *BaselineSession) Detect(goals []core.Goal, history map[string][]core.ContributionRecord, defaultFrequency core.Frequency) map[string]BaselineEntry {
	if s.computed {
		return s.snapshot()
	}
	if !defaultFrequency.IsValid() {
		defaultFrequency = core.Monthly
	}

	for _, g := range goals {
		s.entries[g.ID] = detectGoalSpeed(g, history[g.ID], defaultFrequency)
	}
	s.computed = true
	return s.snapshot()
}

// Entries returns the cached baseline map, or nil before the first Detect.
func (s *BaselineSession) Entries() map[string]BaselineEntry {
	if !s.computed {
		return nil
	}
	return s.snapshot()
}

func (s *BaselineSession) snapshot() map[string]BaselineEntry {
	out := make(map[string]BaselineEntry, len(s.entries))
	for id, e := range s.entries {
		out[id] = e
	}
	return out
}

func detectGoalSpeed(g core.Goal, history []core.ContributionRecord, defaultFrequency core.Frequency) BaselineEntry {
	if g.CashFlowEnabled && g.CashFlowAmount.Cents > 0 {
		freq := g.CashFlowFrequency
		if !freq.IsValid() {
			freq = defaultFrequency
		}
		return BaselineEntry{
			GoalID:       g.ID,
			MonthlySpeed: g.CashFlowAmount.Float() * freq.MonthlyFactor(),
			Source:       SourceCashFlow,
		}
	}

	if rec, ok := latestExternalInflow(history); ok {
		return BaselineEntry{
			GoalID:       g.ID,
			MonthlySpeed: rec.Amount.Float() * defaultFrequency.MonthlyFactor(),
			Source:       SourceRecentTransaction,
		}
	}

	return BaselineEntry{GoalID: g.ID, Source: SourceStalled}
}

// latestExternalInflow scans the history newest-first for the first record
// that is an external inflow.
func latestExternalInflow(history []core.ContributionRecord) (core.ContributionRecord, bool) {
	sorted := make([]core.ContributionRecord, len(history))
	copy(sorted, history)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.After(sorted[j].Date)
	})
	for _, rec := range sorted {
		if rec.Impact == core.ImpactExternal && rec.Direction == core.DirectionInflow {
			return rec, true
		}
	}
	return core.ContributionRecord{}, false
}
