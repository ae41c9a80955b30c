package engine

import (
	"math"

	"github.com/xphabletx/envelope-lite/internal/core"
)

// TimeSaved compares the baseline contribution speed against the strategy
// speed for each goal, in days.
type TimeSaved struct {
	PerGoal map[string]int
	Total   int
}

// ComputeTimeSaved quantifies the effect of the chosen strategy. For every
// goal with a positive baseline speed, a positive new speed and a positive
// remaining amount it computes
//
//	baselineDays = ceil(remaining/baselineSpeed * 30.44)
//	newDays      = ceil(remaining/newSpeed * 30.44)
//
// and reports baselineDays - newDays (negative when the strategy is slower).
// Goals failing any precondition are skipped, not errored. Speeds are in
// currency units per month.
func ComputeTimeSaved(goals []core.Goal, baseline map[string]BaselineEntry, newSpeeds map[string]float64) TimeSaved {
	out := TimeSaved{PerGoal: make(map[string]int)}

	for _, g := range goals {
		base, ok := baseline[g.ID]
		if !ok || base.MonthlySpeed <= 0 {
			continue
		}
		newSpeed := newSpeeds[g.ID]
		if newSpeed <= 0 {
			continue
		}
		remaining := g.Remaining().Float()
		if remaining <= 0 {
			continue
		}

		baselineDays := int(math.Ceil(remaining / base.MonthlySpeed * core.AvgDaysPerMonth))
		newDays := int(math.Ceil(remaining / newSpeed * core.AvgDaysPerMonth))
		saved := baselineDays - newDays

		out.PerGoal[g.ID] = saved
		out.Total += saved
	}
	return out
}
