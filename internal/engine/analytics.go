package engine

import (
	"strings"

	"github.com/xphabletx/envelope-lite/internal/core"
)

// Feedback is the summary-card message selected from the window's stats.
type Feedback string

const (
	FeedbackReadyToLaunch  Feedback = "ready to launch"
	FeedbackHighFriction   Feedback = "high friction warning"
	FeedbackHighEfficiency Feedback = "high efficiency"
	FeedbackStable         Feedback = "stable"
	FeedbackCaution        Feedback = "caution, spending outpacing inflow"
)

// StrategyStats aggregates a transaction window against the current goal
// set. Derived on every query; nothing here is stored.
type StrategyStats struct {
	ExternalInflow  core.Money
	ExternalOutflow core.Money
	NetImpact       core.Money
	Efficiency      float64 // netImpact / externalInflow, 0 without inflow
	HorizonVelocity core.Money
	TotalHorizonGap core.Money
	HorizonImpact   float64 // percent of the gap covered by velocity
	FixedBills      core.Money
	Discretionary   core.Money
	LiquidCash      core.Money
	Feedback        Feedback
	Skipped         int // legacy records without impact/direction
}

// IncomeSplit is the share of external inflow that went to spending,
// horizons and liquid cash. Each value is in [0,1] and the three sum to at
// most 1.
type IncomeSplit struct {
	Spent    float64
	Horizons float64
	Liquid   float64
}

// billSignals are description fragments that mark an outflow as an
// automated bill rather than discretionary spending.
var billSignals = []string{
	"autopay",
	"auto-pay",
	"direct debit",
	"standing order",
	"bill",
	"subscription",
	"mortgage",
	"rent",
	"insurance",
	"utility",
}

// Analyze classifies every transaction in the window and derives the
// summary statistics. Records missing impact or direction are counted in
// Skipped and otherwise ignored.
func Analyze(transactions []core.ContributionRecord, goals []core.Goal) StrategyStats {
	byID := make(map[string]core.Goal, len(goals))
	for _, g := range goals {
		byID[g.ID] = g
	}

	var stats StrategyStats
	for _, tx := range transactions {
		if !tx.Classifiable() {
			stats.Skipped++
			continue
		}
		switch {
		case tx.Impact == core.ImpactExternal && tx.Direction == core.DirectionInflow:
			stats.ExternalInflow.Cents += tx.Amount.Cents
		case tx.Impact == core.ImpactExternal && tx.Direction == core.DirectionOutflow:
			stats.ExternalOutflow.Cents += tx.Amount.Cents
			if isFixedBill(tx, byID) {
				stats.FixedBills.Cents += tx.Amount.Cents
			} else {
				stats.Discretionary.Cents += tx.Amount.Cents
			}
		case tx.Impact == core.ImpactInternal && tx.Direction == core.DirectionMove:
			if dest, ok := byID[tx.DestinationID]; ok && dest.IsHorizon() {
				stats.HorizonVelocity.Cents += tx.Amount.Cents
			} else {
				stats.LiquidCash.Cents += tx.Amount.Cents
			}
		}
	}

	stats.NetImpact.Cents = stats.ExternalInflow.Cents - stats.ExternalOutflow.Cents
	if stats.ExternalInflow.Cents > 0 {
		stats.Efficiency = float64(stats.NetImpact.Cents) / float64(stats.ExternalInflow.Cents)
	}

	for _, g := range goals {
		if g.IsHorizon() {
			stats.TotalHorizonGap.Cents += g.Remaining().Cents
		}
	}
	switch {
	case stats.TotalHorizonGap.Cents > 0:
		stats.HorizonImpact = float64(stats.HorizonVelocity.Cents) / float64(stats.TotalHorizonGap.Cents) * 100
	case stats.HorizonVelocity.Cents > 0:
		stats.HorizonImpact = 100
	}

	stats.Feedback = selectFeedback(stats)
	return stats
}

// IsDeficit reports whether spending outpaced income in the window.
func (s StrategyStats) IsDeficit() bool {
	return s.ExternalOutflow.Cents > s.ExternalInflow.Cents
}

// IncomeAllocation breaks external inflow into spent, horizon and liquid
// shares. Without inflow all shares are zero. Each share is clamped so the
// running total never exceeds 1.
func (s StrategyStats) IncomeAllocation() IncomeSplit {
	if s.ExternalInflow.Cents <= 0 {
		return IncomeSplit{}
	}
	inflow := float64(s.ExternalInflow.Cents)

	var split IncomeSplit
	split.Spent = clamp01(float64(s.ExternalOutflow.Cents)/inflow, 1)
	split.Horizons = clamp01(float64(s.HorizonVelocity.Cents)/inflow, 1-split.Spent)
	split.Liquid = clamp01(float64(s.LiquidCash.Cents)/inflow, 1-split.Spent-split.Horizons)
	return split
}

func selectFeedback(s StrategyStats) Feedback {
	switch {
	case s.ExternalInflow.Cents == 0 && s.ExternalOutflow.Cents == 0:
		return FeedbackReadyToLaunch
	case s.ExternalInflow.Cents == 0 && s.ExternalOutflow.Cents > 0:
		return FeedbackHighFriction
	case s.Efficiency > 0.2:
		return FeedbackHighEfficiency
	case s.Efficiency > 0:
		return FeedbackStable
	default:
		return FeedbackCaution
	}
}

func isFixedBill(tx core.ContributionRecord, goals map[string]core.Goal) bool {
	if g, ok := goals[tx.GoalID]; ok && g.Kind == core.KindDebt {
		return true
	}
	desc := strings.ToLower(tx.Description)
	for _, signal := range billSignals {
		if strings.Contains(desc, signal) {
			return true
		}
	}
	return false
}

func clamp01(v, max float64) float64 {
	if max < 0 {
		max = 0
	}
	if v < 0 {
		return 0
	}
	if v > max {
		return max
	}
	return v
}
