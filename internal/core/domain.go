package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Daily    Frequency = "daily"
	Weekly   Frequency = "weekly"
	Biweekly Frequency = "biweekly"
	Monthly  Frequency = "monthly"
)

const (
	ImpactExternal Impact = "external"
	ImpactInternal Impact = "internal"
)

const (
	DirectionInflow  Direction = "inflow"
	DirectionOutflow Direction = "outflow"
	DirectionMove    Direction = "move"
)

const (
	KindSavings GoalKind = "savings"
	KindDebt    GoalKind = "debt"
)

// AvgDaysPerMonth converts per-period speeds to a monthly figure.
// Distinct from the integer day table used for reach-date projection.
const AvgDaysPerMonth = 30.44

type (
	// Frequency is how often a recurring contribution lands.
	Frequency string

	// Impact says whether a transaction crosses the accounting boundary
	// (external changes net worth, internal just moves money around).
	Impact string

	// Direction is the sign of a transaction relative to the goal set.
	Direction string

	// GoalKind distinguishes savings targets from debt payoff goals.
	GoalKind string

	Money struct {
		Cents int64
	}

	// Goal is a savings target. A goal with a positive TargetAmount is a
	// "horizon" and can be projected to a reach date.
	Goal struct {
		ID                string
		Name              string
		CurrentAmount     Money
		TargetAmount      Money     // zero means no target set
		TargetDate        time.Time // zero means no deadline
		Kind              GoalKind
		CashFlowEnabled   bool
		CashFlowAmount    Money
		CashFlowFrequency Frequency
		GroupID           string
	}

	// ContributionRecord is one historical ledger event on a goal.
	// Legacy records may carry empty Impact/Direction.
	ContributionRecord struct {
		GoalID          string
		Amount          Money
		Date            time.Time
		Description     string
		Impact          Impact
		Direction       Direction
		SourceID        string
		SourceType      string
		DestinationID   string
		DestinationType string
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyGoalID      = errors.New("empty goal id")
	ErrEmptyName        = errors.New("empty goal name")
	ErrInvalidFrequency = errors.New("invalid frequency")
	ErrGoalNotFound     = errors.New("goal not found")
)

// IsValid reports whether f is one of the supported frequencies.
func (f Frequency) IsValid() bool {
	switch f {
	case Daily, Weekly, Biweekly, Monthly:
		return true
	default:
		return false
	}
}

// DaysPerContribution returns the integer day count between contributions,
// as shown to the user. Monthly deliberately stays 30 here.
func (f Frequency) DaysPerContribution() int {
	switch f {
	case Daily:
		return 1
	case Weekly:
		return 7
	case Biweekly:
		return 14
	default:
		return 30
	}
}

// MonthlyFactor scales a per-period amount to a monthly amount.
func (f Frequency) MonthlyFactor() float64 {
	switch f {
	case Daily:
		return AvgDaysPerMonth
	case Weekly:
		return AvgDaysPerMonth / 7
	case Biweekly:
		return AvgDaysPerMonth / 14
	default:
		return 1
	}
}

// Float returns the amount in currency units.
func (m Money) Float() float64 {
	return float64(m.Cents) / 100
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// IsHorizon reports whether the goal has a positive target amount.
func (g Goal) IsHorizon() bool {
	return g.TargetAmount.Cents > 0
}

// Remaining is the amount still missing to the target, never negative.
func (g Goal) Remaining() Money {
	r := g.TargetAmount.Cents - g.CurrentAmount.Cents
	if r < 0 {
		r = 0
	}
	return Money{Cents: r}
}

func (g Goal) Validate() error {
	if strings.TrimSpace(g.ID) == "" {
		return ErrEmptyGoalID
	}
	if strings.TrimSpace(g.Name) == "" {
		return ErrEmptyName
	}
	if g.CurrentAmount.Cents < 0 {
		return ErrInvalidAmount
	}
	if g.TargetAmount.Cents < 0 {
		return ErrInvalidAmount
	}
	if g.CashFlowEnabled {
		if g.CashFlowAmount.Cents <= 0 {
			return ErrInvalidAmount
		}
		if !g.CashFlowFrequency.IsValid() {
			return ErrInvalidFrequency
		}
	}
	return nil
}

// Classifiable reports whether the record carries the impact and direction
// fields analytics needs. Legacy records without them are skipped.
func (r ContributionRecord) Classifiable() bool {
	switch r.Impact {
	case ImpactExternal, ImpactInternal:
	default:
		return false
	}
	switch r.Direction {
	case DirectionInflow, DirectionOutflow, DirectionMove:
	default:
		return false
	}
	return true
}

func (r ContributionRecord) Validate() error {
	if strings.TrimSpace(r.GoalID) == "" {
		return ErrEmptyGoalID
	}
	if r.Amount.Cents <= 0 {
		return ErrInvalidAmount
	}
	if r.Date.IsZero() {
		return errors.New("record date cannot be zero")
	}
	return nil
}
