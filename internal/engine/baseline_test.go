package engine

import (
	"math"
	"testing"
	"time"

	"github.com/xphabletx/envelope-lite/internal/core"
)

func TestBaselineSession_Detect(t *testing.T) {
	day := func(d int) time.Time {
		return time.Date(2026, time.March, d, 0, 0, 0, 0, time.UTC)
	}

	tests := []struct {
		name       string
		goal       core.Goal
		history    []core.ContributionRecord
		wantSpeed  float64
		wantSource BaselineSource
	}{
		{
			name: "cash flow wins over history",
			goal: core.Goal{
				ID:                "g1",
				CashFlowEnabled:   true,
				CashFlowAmount:    core.Money{Cents: 5000}, // 50.00 weekly
				CashFlowFrequency: core.Weekly,
			},
			history: []core.ContributionRecord{
				{GoalID: "g1", Amount: core.Money{Cents: 999900}, Date: day(1), Impact: core.ImpactExternal, Direction: core.DirectionInflow},
			},
			wantSpeed:  50 * core.AvgDaysPerMonth / 7,
			wantSource: SourceCashFlow,
		},
		{
			name: "disabled cash flow falls through to history",
			goal: core.Goal{ID: "g2", CashFlowEnabled: false, CashFlowAmount: core.Money{Cents: 5000}},
			history: []core.ContributionRecord{
				{GoalID: "g2", Amount: core.Money{Cents: 10000}, Date: day(1), Impact: core.ImpactExternal, Direction: core.DirectionInflow},
			},
			wantSpeed:  100, // monthly default, factor 1
			wantSource: SourceRecentTransaction,
		},
		{
			name: "newest external inflow is picked",
			goal: core.Goal{ID: "g3"},
			history: []core.ContributionRecord{
				{GoalID: "g3", Amount: core.Money{Cents: 10000}, Date: day(1), Impact: core.ImpactExternal, Direction: core.DirectionInflow},
				{GoalID: "g3", Amount: core.Money{Cents: 20000}, Date: day(15), Impact: core.ImpactExternal, Direction: core.DirectionInflow},
				{GoalID: "g3", Amount: core.Money{Cents: 70000}, Date: day(20), Impact: core.ImpactExternal, Direction: core.DirectionOutflow},
			},
			wantSpeed:  200,
			wantSource: SourceRecentTransaction,
		},
		{
			name: "internal moves do not count as a baseline",
			goal: core.Goal{ID: "g4"},
			history: []core.ContributionRecord{
				{GoalID: "g4", Amount: core.Money{Cents: 10000}, Date: day(1), Impact: core.ImpactInternal, Direction: core.DirectionMove},
			},
			wantSpeed:  0,
			wantSource: SourceStalled,
		},
		{
			name:       "no signals at all means stalled",
			goal:       core.Goal{ID: "g5"},
			wantSpeed:  0,
			wantSource: SourceStalled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewBaselineSession()
			history := map[string][]core.ContributionRecord{tt.goal.ID: tt.history}
			entries := s.Detect([]core.Goal{tt.goal}, history, core.Monthly)

			e, ok := entries[tt.goal.ID]
			if !ok {
				t.Fatalf("no baseline entry for %s", tt.goal.ID)
			}
			if math.Abs(e.MonthlySpeed-tt.wantSpeed) > 1e-9 {
				t.Errorf("MonthlySpeed = %v, want %v", e.MonthlySpeed, tt.wantSpeed)
			}
			if e.Source != tt.wantSource {
				t.Errorf("Source = %q, want %q", e.Source, tt.wantSource)
			}
		})
	}
}

func TestBaselineSession_DetectCachesFirstResult(t *testing.T) {
	s := NewBaselineSession()
	goal := core.Goal{
		ID:                "g1",
		CashFlowEnabled:   true,
		CashFlowAmount:    core.Money{Cents: 10000},
		CashFlowFrequency: core.Monthly,
	}

	first := s.Detect([]core.Goal{goal}, nil, core.Monthly)
	if !s.Computed() {
		t.Fatal("Computed() = false after Detect")
	}

	// changed inputs must not move the cached comparison point
	goal.CashFlowAmount = core.Money{Cents: 50000}
	second := s.Detect([]core.Goal{goal}, nil, core.Monthly)

	if first["g1"].MonthlySpeed != second["g1"].MonthlySpeed {
		t.Errorf("cached baseline changed: %v -> %v", first["g1"].MonthlySpeed, second["g1"].MonthlySpeed)
	}
	if second["g1"].MonthlySpeed != 100 {
		t.Errorf("MonthlySpeed = %v, want 100", second["g1"].MonthlySpeed)
	}
}

func TestBaselineSession_Reset(t *testing.T) {
	s := NewBaselineSession()
	goal := core.Goal{
		ID:                "g1",
		CashFlowEnabled:   true,
		CashFlowAmount:    core.Money{Cents: 10000},
		CashFlowFrequency: core.Monthly,
	}
	s.Detect([]core.Goal{goal}, nil, core.Monthly)

	s.Reset()
	if s.Computed() {
		t.Fatal("Computed() = true after Reset")
	}
	if s.Entries() != nil {
		t.Fatal("Entries() non-nil after Reset")
	}

	goal.CashFlowAmount = core.Money{Cents: 50000}
	entries := s.Detect([]core.Goal{goal}, nil, core.Monthly)
	if entries["g1"].MonthlySpeed != 500 {
		t.Errorf("MonthlySpeed after reset = %v, want 500", entries["g1"].MonthlySpeed)
	}
}

func TestBaselineSession_InvalidCashFlowFrequencyUsesDefault(t *testing.T) {
	s := NewBaselineSession()
	goal := core.Goal{
		ID:                "g1",
		CashFlowEnabled:   true,
		CashFlowAmount:    core.Money{Cents: 1400}, // 14.00
		CashFlowFrequency: core.Frequency("fortnightly-ish"),
	}
	entries := s.Detect([]core.Goal{goal}, nil, core.Biweekly)

	want := 14 * core.AvgDaysPerMonth / 14
	if got := entries["g1"].MonthlySpeed; math.Abs(got-want) > 1e-9 {
		t.Errorf("MonthlySpeed = %v, want %v", got, want)
	}
}
