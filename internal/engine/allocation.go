package engine

import (
	"math"

	"github.com/xphabletx/envelope-lite/internal/core"
)

// SumTolerance is the floating tolerance on the Σ percentages == 100
// invariant.
const SumTolerance = 1e-6

// Allocator owns the percentage-allocation map over the selected goal set.
// After every mutating operation the percentages of a non-empty selection
// sum to 100 within SumTolerance. Operations on ids outside the selection
// are no-ops, never errors.
type Allocator struct {
	percentages      map[string]float64
	frequencies      map[string]core.Frequency
	selected         map[string]bool
	order            []string // selection order, for deterministic iteration
	defaultFrequency core.Frequency
}

func NewAllocator(defaultFrequency core.Frequency) *Allocator {
	if !defaultFrequency.IsValid() {
		defaultFrequency = core.Monthly
	}
	return &Allocator{
		percentages:      make(map[string]float64),
		frequencies:      make(map[string]core.Frequency),
		selected:         make(map[string]bool),
		defaultFrequency: defaultFrequency,
	}
}

// InitializeEqual selects the given ids and, if no percentages exist yet,
// gives each an equal share. Frequencies not set before default to the
// session default.
func (a *Allocator) InitializeEqual(ids []string) {
	for _, id := range ids {
		if !a.selected[id] {
			a.selected[id] = true
			a.order = append(a.order, id)
		}
		if _, ok := a.frequencies[id]; !ok {
			a.frequencies[id] = a.defaultFrequency
		}
	}
	if len(a.percentages) > 0 || len(a.order) == 0 {
		return
	}
	share := 100.0 / float64(len(a.order))
	for _, id := range a.order {
		a.percentages[id] = share
	}
}

// UpdateAllocation sets one goal's percentage and distributes the difference
// evenly across the other selected goals, then renormalizes.
func (a *Allocator) UpdateAllocation(id string, pct float64) {
	if !a.selected[id] {
		return
	}
	pct = clampPct(pct)
	delta := pct - a.percentages[id]
	a.percentages[id] = pct

	if others := len(a.order) - 1; others > 0 {
		adjustment := -delta / float64(others)
		for _, other := range a.order {
			if other == id {
				continue
			}
			a.percentages[other] = clampPct(a.percentages[other] + adjustment)
		}
	}
	a.Normalize()
}

// Normalize rescales every selected percentage so the sum is exactly 100.
// An all-zero map resets to equal shares.
func (a *Allocator) Normalize() {
	if len(a.order) == 0 {
		return
	}
	var total float64
	for _, id := range a.order {
		total += a.percentages[id]
	}
	if total == 0 {
		share := 100.0 / float64(len(a.order))
		for _, id := range a.order {
			a.percentages[id] = share
		}
		return
	}
	scale := 100.0 / total
	for _, id := range a.order {
		a.percentages[id] *= scale
	}
}

// Add puts a goal into the selection and resets all selected goals to equal
// shares. The reset-on-add is deliberate: a new goal joins as an equal peer
// rather than at zero.
func (a *Allocator) Add(id string) {
	if a.selected[id] {
		return
	}
	a.selected[id] = true
	a.order = append(a.order, id)
	if _, ok := a.frequencies[id]; !ok {
		a.frequencies[id] = a.defaultFrequency
	}
	share := 100.0 / float64(len(a.order))
	for _, sel := range a.order {
		a.percentages[sel] = share
	}
}

// Remove drops a goal from the selection and renormalizes the remainder.
func (a *Allocator) Remove(id string) {
	if !a.selected[id] {
		return
	}
	delete(a.selected, id)
	delete(a.percentages, id)
	delete(a.frequencies, id)
	for i, sel := range a.order {
		if sel == id {
			a.order = append(a.order[:i], a.order[i+1:]...)
			break
		}
	}
	if len(a.order) > 0 {
		a.Normalize()
	}
}

// SetFrequency sets the contribution frequency for a selected goal.
func (a *Allocator) SetFrequency(id string, f core.Frequency) {
	if !a.selected[id] || !f.IsValid() {
		return
	}
	a.frequencies[id] = f
}

// Percentage returns a goal's current share, zero when unselected.
func (a *Allocator) Percentage(id string) float64 {
	return a.percentages[id]
}

// Frequency returns a goal's contribution frequency, falling back to the
// session default for unselected ids.
func (a *Allocator) Frequency(id string) core.Frequency {
	if f, ok := a.frequencies[id]; ok {
		return f
	}
	return a.defaultFrequency
}

// Selected returns the selected ids in selection order.
func (a *Allocator) Selected() []string {
	out := make([]string, len(a.order))
	copy(out, a.order)
	return out
}

// Percentages returns a copy of the current allocation map.
func (a *Allocator) Percentages() map[string]float64 {
	out := make(map[string]float64, len(a.percentages))
	for id, pct := range a.percentages {
		out[id] = pct
	}
	return out
}

// Frequencies returns a copy of the current frequency map.
func (a *Allocator) Frequencies() map[string]core.Frequency {
	out := make(map[string]core.Frequency, len(a.frequencies))
	for id, f := range a.frequencies {
		out[id] = f
	}
	return out
}

// Sum returns the current percentage total.
func (a *Allocator) Sum() float64 {
	var total float64
	for _, id := range a.order {
		total += a.percentages[id]
	}
	return total
}

func clampPct(v float64) float64 {
	return math.Min(100, math.Max(0, v))
}
