package engine

import (
	"testing"

	"github.com/xphabletx/envelope-lite/internal/core"
)

func TestComputeTimeSaved(t *testing.T) {
	// remaining 3044.00, baseline 100/mo, new 200/mo:
	// ceil(3044/100*30.44)=927, ceil(3044/200*30.44)=464, saved 463
	goal := core.Goal{
		ID:           "g1",
		Name:         "G1",
		TargetAmount: core.Money{Cents: 304400},
	}
	baseline := map[string]BaselineEntry{
		"g1": {GoalID: "g1", MonthlySpeed: 100, Source: SourceCashFlow},
	}

	ts := ComputeTimeSaved([]core.Goal{goal}, baseline, map[string]float64{"g1": 200})

	if got := ts.PerGoal["g1"]; got != 463 {
		t.Errorf("PerGoal[g1] = %d, want 463", got)
	}
	if ts.Total != 463 {
		t.Errorf("Total = %d, want 463", ts.Total)
	}
}

func TestComputeTimeSaved_SlowerStrategyGoesNegative(t *testing.T) {
	goal := core.Goal{ID: "g1", Name: "G1", TargetAmount: core.Money{Cents: 304400}}
	baseline := map[string]BaselineEntry{
		"g1": {GoalID: "g1", MonthlySpeed: 200},
	}

	ts := ComputeTimeSaved([]core.Goal{goal}, baseline, map[string]float64{"g1": 100})

	if got := ts.PerGoal["g1"]; got != -463 {
		t.Errorf("PerGoal[g1] = %d, want -463", got)
	}
}

func TestComputeTimeSaved_SkipsIneligibleGoals(t *testing.T) {
	tests := []struct {
		name     string
		goal     core.Goal
		baseline map[string]BaselineEntry
		newSpeed float64
	}{
		{
			name:     "no baseline entry",
			goal:     core.Goal{ID: "g", TargetAmount: core.Money{Cents: 100000}},
			baseline: map[string]BaselineEntry{},
			newSpeed: 100,
		},
		{
			name:     "stalled baseline",
			goal:     core.Goal{ID: "g", TargetAmount: core.Money{Cents: 100000}},
			baseline: map[string]BaselineEntry{"g": {GoalID: "g", Source: SourceStalled}},
			newSpeed: 100,
		},
		{
			name:     "zero new speed",
			goal:     core.Goal{ID: "g", TargetAmount: core.Money{Cents: 100000}},
			baseline: map[string]BaselineEntry{"g": {GoalID: "g", MonthlySpeed: 100}},
			newSpeed: 0,
		},
		{
			name: "already reached",
			goal: core.Goal{
				ID:            "g",
				TargetAmount:  core.Money{Cents: 100000},
				CurrentAmount: core.Money{Cents: 100000},
			},
			baseline: map[string]BaselineEntry{"g": {GoalID: "g", MonthlySpeed: 100}},
			newSpeed: 200,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := ComputeTimeSaved([]core.Goal{tt.goal}, tt.baseline, map[string]float64{"g": tt.newSpeed})
			if len(ts.PerGoal) != 0 {
				t.Errorf("PerGoal = %v, want empty", ts.PerGoal)
			}
			if ts.Total != 0 {
				t.Errorf("Total = %d, want 0", ts.Total)
			}
		})
	}
}

func TestComputeTimeSaved_TotalSumsAcrossGoals(t *testing.T) {
	goals := []core.Goal{
		{ID: "a", Name: "A", TargetAmount: core.Money{Cents: 304400}},
		{ID: "b", Name: "B", TargetAmount: core.Money{Cents: 304400}},
	}
	baseline := map[string]BaselineEntry{
		"a": {GoalID: "a", MonthlySpeed: 100},
		"b": {GoalID: "b", MonthlySpeed: 100},
	}
	newSpeeds := map[string]float64{"a": 200, "b": 200}

	ts := ComputeTimeSaved(goals, baseline, newSpeeds)

	if ts.Total != 926 {
		t.Errorf("Total = %d, want 926", ts.Total)
	}
}
