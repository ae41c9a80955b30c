package engine

import (
	"math"
	"time"

	"github.com/xphabletx/envelope-lite/internal/core"
)

// SimulationResult is the projected outcome for one horizon goal under the
// current allocation. Derived, never persisted; recompute on every input
// change.
type SimulationResult struct {
	GoalID              string
	Contribution        float64 // currency units per period
	ContributionsNeeded int
	DaysToTarget        int
	ReachDate           time.Time
	HasReachDate        bool
	OnTrack             bool
	AlreadyReached      bool
}

// Simulate projects reach dates for every selected goal with a positive
// target. totalContribution is in currency units; allocations are the
// percentage map and frequencies the per-goal contribution cadence. now is
// the projection anchor.
//
// A goal already at or past its target is on track with reach date now. A
// zero contribution stalls the goal: off track, no reach date. Otherwise the
// reach date is now plus ceil(remaining/contribution) periods, each period
// spanning the integer day table (daily 1, weekly 7, biweekly 14,
// monthly 30).
func Simulate(totalContribution float64, allocations map[string]float64, frequencies map[string]core.Frequency, goals []core.Goal, now time.Time) map[string]SimulationResult {
	results := make(map[string]SimulationResult)

	for _, g := range goals {
		if !g.IsHorizon() {
			continue
		}
		pct, ok := allocations[g.ID]
		if !ok {
			continue
		}

		res := SimulationResult{GoalID: g.ID}
		res.Contribution = totalContribution * pct / 100

		remaining := g.Remaining().Float()
		if remaining <= 0 {
			res.ReachDate = now
			res.HasReachDate = true
			res.OnTrack = true
			res.AlreadyReached = true
			results[g.ID] = res
			continue
		}

		if res.Contribution <= 0 {
			res.OnTrack = false
			results[g.ID] = res
			continue
		}

		freq := frequencies[g.ID]
		if !freq.IsValid() {
			freq = core.Monthly
		}
		res.ContributionsNeeded = int(math.Ceil(remaining / res.Contribution))
		res.DaysToTarget = res.ContributionsNeeded * freq.DaysPerContribution()
		res.ReachDate = now.AddDate(0, 0, res.DaysToTarget)
		res.HasReachDate = true
		res.OnTrack = onTrack(res.ReachDate, g.TargetDate)

		results[g.ID] = res
	}
	return results
}

// onTrack compares the projected reach date against the goal deadline.
// No deadline means nothing to miss; landing on the deadline day counts as
// on time.
func onTrack(reach, deadline time.Time) bool {
	if deadline.IsZero() {
		return true
	}
	ry, rm, rd := reach.Date()
	dy, dm, dd := deadline.Date()
	reachDay := time.Date(ry, rm, rd, 0, 0, 0, 0, time.UTC)
	deadlineDay := time.Date(dy, dm, dd, 0, 0, 0, 0, time.UTC)
	return !reachDay.After(deadlineDay)
}
