package core

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestFrequency_IsValid(t *testing.T) {
	for _, f := range []Frequency{Daily, Weekly, Biweekly, Monthly} {
		if !f.IsValid() {
			t.Errorf("%s should be valid", f)
		}
	}
	for _, f := range []Frequency{"", "hourly", "MONTHLY"} {
		if f.IsValid() {
			t.Errorf("%q should be invalid", f)
		}
	}
}

func TestFrequency_DaysPerContribution(t *testing.T) {
	tests := []struct {
		freq Frequency
		want int
	}{
		{Daily, 1},
		{Weekly, 7},
		{Biweekly, 14},
		{Monthly, 30},
		{"unknown", 30},
	}
	for _, tt := range tests {
		if got := tt.freq.DaysPerContribution(); got != tt.want {
			t.Errorf("%s.DaysPerContribution() = %d, want %d", tt.freq, got, tt.want)
		}
	}
}

func TestFrequency_MonthlyFactor(t *testing.T) {
	tests := []struct {
		freq Frequency
		want float64
	}{
		{Daily, AvgDaysPerMonth},
		{Weekly, AvgDaysPerMonth / 7},
		{Biweekly, AvgDaysPerMonth / 14},
		{Monthly, 1},
	}
	for _, tt := range tests {
		if got := tt.freq.MonthlyFactor(); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("%s.MonthlyFactor() = %v, want %v", tt.freq, got, tt.want)
		}
	}
}

func TestMoney_Float(t *testing.T) {
	if got := (Money{Cents: 12345}).Float(); got != 123.45 {
		t.Errorf("Float() = %v, want 123.45", got)
	}
	if got := (Money{Cents: -5000}).Float(); got != -50 {
		t.Errorf("Float() = %v, want -50", got)
	}
}

func TestGoal_Remaining(t *testing.T) {
	tests := []struct {
		name    string
		current int64
		target  int64
		want    int64
	}{
		{"halfway", 50000, 150000, 100000},
		{"exactly reached", 150000, 150000, 0},
		{"overshot clamps to zero", 200000, 150000, 0},
		{"no target", 50000, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := Goal{CurrentAmount: Money{Cents: tt.current}, TargetAmount: Money{Cents: tt.target}}
			if got := g.Remaining().Cents; got != tt.want {
				t.Errorf("Remaining() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestGoal_IsHorizon(t *testing.T) {
	if (Goal{}).IsHorizon() {
		t.Error("goal without target should not be a horizon")
	}
	if !(Goal{TargetAmount: Money{Cents: 1}}).IsHorizon() {
		t.Error("goal with target should be a horizon")
	}
}

func TestGoal_Validate(t *testing.T) {
	valid := Goal{ID: "g", Name: "G"}

	tests := []struct {
		name    string
		mutate  func(*Goal)
		wantErr error
	}{
		{"valid", func(g *Goal) {}, nil},
		{"blank id", func(g *Goal) { g.ID = "  " }, ErrEmptyGoalID},
		{"blank name", func(g *Goal) { g.Name = "" }, ErrEmptyName},
		{"negative current", func(g *Goal) { g.CurrentAmount.Cents = -1 }, ErrInvalidAmount},
		{"negative target", func(g *Goal) { g.TargetAmount.Cents = -1 }, ErrInvalidAmount},
		{"cash flow enabled without amount", func(g *Goal) { g.CashFlowEnabled = true }, ErrInvalidAmount},
		{
			"cash flow enabled without frequency",
			func(g *Goal) {
				g.CashFlowEnabled = true
				g.CashFlowAmount = Money{Cents: 100}
			},
			ErrInvalidFrequency,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := valid
			tt.mutate(&g)
			if err := g.Validate(); !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestContributionRecord_Classifiable(t *testing.T) {
	tests := []struct {
		name      string
		impact    Impact
		direction Direction
		want      bool
	}{
		{"external inflow", ImpactExternal, DirectionInflow, true},
		{"internal move", ImpactInternal, DirectionMove, true},
		{"legacy without impact", "", DirectionInflow, false},
		{"legacy without direction", ImpactExternal, "", false},
		{"unknown impact", "sideways", DirectionInflow, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := ContributionRecord{Impact: tt.impact, Direction: tt.direction}
			if got := r.Classifiable(); got != tt.want {
				t.Errorf("Classifiable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestContributionRecord_Validate(t *testing.T) {
	valid := ContributionRecord{
		GoalID: "g",
		Amount: Money{Cents: 100},
		Date:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := valid.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}

	noID := valid
	noID.GoalID = ""
	if err := noID.Validate(); !errors.Is(err, ErrEmptyGoalID) {
		t.Errorf("Validate() = %v, want ErrEmptyGoalID", err)
	}

	noAmount := valid
	noAmount.Amount = Money{}
	if err := noAmount.Validate(); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("Validate() = %v, want ErrInvalidAmount", err)
	}

	noDate := valid
	noDate.Date = time.Time{}
	if err := noDate.Validate(); err == nil {
		t.Error("Validate() = nil for zero date, want error")
	}
}
