package engine

import (
	"math"
	"testing"

	"github.com/xphabletx/envelope-lite/internal/core"
)

const sumEpsilon = 1e-6

func assertSum100(t *testing.T, a *Allocator, context string) {
	t.Helper()
	if sum := a.Sum(); math.Abs(sum-100) > sumEpsilon {
		t.Errorf("%s: allocation sum = %v, want 100 within %v", context, sum, sumEpsilon)
	}
}

func TestAllocator_InitializeEqual(t *testing.T) {
	a := NewAllocator(core.Monthly)
	a.InitializeEqual([]string{"a", "b", "c", "d"})

	for _, id := range []string{"a", "b", "c", "d"} {
		if pct := a.Percentage(id); math.Abs(pct-25) > sumEpsilon {
			t.Errorf("Percentage(%s) = %v, want 25", id, pct)
		}
		if f := a.Frequency(id); f != core.Monthly {
			t.Errorf("Frequency(%s) = %v, want monthly", id, f)
		}
	}
	assertSum100(t, a, "after InitializeEqual")
}

func TestAllocator_InitializeEqual_PreservesExisting(t *testing.T) {
	a := NewAllocator(core.Monthly)
	a.InitializeEqual([]string{"a", "b"})
	a.UpdateAllocation("a", 80)

	before := a.Percentage("a")
	a.InitializeEqual([]string{"a", "b"})
	if after := a.Percentage("a"); after != before {
		t.Errorf("re-initialize changed existing percentage: %v -> %v", before, after)
	}
}

func TestAllocator_UpdateAllocation(t *testing.T) {
	tests := []struct {
		name  string
		ids   []string
		id    string
		pct   float64
		wantA float64
	}{
		{
			name:  "raise one goal redistributes the rest",
			ids:   []string{"a", "b", "c"},
			id:    "a",
			pct:   50,
			wantA: 50,
		},
		{
			name:  "clamp above 100",
			ids:   []string{"a", "b"},
			id:    "a",
			pct:   150,
			wantA: 100,
		},
		{
			name:  "clamp below 0",
			ids:   []string{"a", "b"},
			id:    "a",
			pct:   -20,
			wantA: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAllocator(core.Monthly)
			a.InitializeEqual(tt.ids)
			a.UpdateAllocation(tt.id, tt.pct)

			if got := a.Percentage(tt.id); math.Abs(got-tt.wantA) > sumEpsilon {
				t.Errorf("Percentage(%s) = %v, want %v", tt.id, got, tt.wantA)
			}
			assertSum100(t, a, "after UpdateAllocation")
		})
	}
}

func TestAllocator_UpdateAllocation_EvenRedistribution(t *testing.T) {
	a := NewAllocator(core.Monthly)
	a.InitializeEqual([]string{"a", "b", "c"})

	// a goes from 33.33 to 53.33: the extra 20 comes evenly from b and c
	a.UpdateAllocation("a", 100.0/3+20)

	b, c := a.Percentage("b"), a.Percentage("c")
	if math.Abs(b-c) > sumEpsilon {
		t.Errorf("redistribution uneven: b=%v c=%v", b, c)
	}
	assertSum100(t, a, "after even redistribution")
}

func TestAllocator_UpdateAllocation_UnknownIDIsNoOp(t *testing.T) {
	a := NewAllocator(core.Monthly)
	a.InitializeEqual([]string{"a", "b"})

	a.UpdateAllocation("ghost", 50)

	if pct := a.Percentage("ghost"); pct != 0 {
		t.Errorf("unknown id got percentage %v, want 0", pct)
	}
	assertSum100(t, a, "after no-op update")
}

func TestAllocator_Normalize_AllZero(t *testing.T) {
	a := NewAllocator(core.Monthly)
	a.InitializeEqual([]string{"only"})

	// with a single goal there is nobody to redistribute to, so forcing it
	// to zero hits the all-zero normalize path and resets to equal shares
	a.UpdateAllocation("only", 0)

	if pct := a.Percentage("only"); math.Abs(pct-100) > sumEpsilon {
		t.Errorf("Percentage(only) = %v, want 100", pct)
	}
	assertSum100(t, a, "after all-zero normalize")
}

func TestAllocator_UpdateAllocation_ZeroingOneGoal(t *testing.T) {
	a := NewAllocator(core.Monthly)
	a.InitializeEqual([]string{"a", "b"})

	a.UpdateAllocation("a", 0)

	if pct := a.Percentage("a"); pct != 0 {
		t.Errorf("Percentage(a) = %v, want 0", pct)
	}
	if pct := a.Percentage("b"); math.Abs(pct-100) > sumEpsilon {
		t.Errorf("Percentage(b) = %v, want 100", pct)
	}
	assertSum100(t, a, "after zeroing one goal")
}

func TestAllocator_AddResetsToEqualShares(t *testing.T) {
	a := NewAllocator(core.Monthly)
	a.InitializeEqual([]string{"a", "b"})
	a.UpdateAllocation("a", 90)

	a.Add("c")

	for _, id := range []string{"a", "b", "c"} {
		if pct := a.Percentage(id); math.Abs(pct-100.0/3) > sumEpsilon {
			t.Errorf("Percentage(%s) = %v, want %v after add", id, pct, 100.0/3)
		}
	}
	assertSum100(t, a, "after Add")
}

func TestAllocator_Remove(t *testing.T) {
	a := NewAllocator(core.Monthly)
	a.InitializeEqual([]string{"a", "b", "c"})

	a.Remove("b")

	if pct := a.Percentage("b"); pct != 0 {
		t.Errorf("removed id still has percentage %v", pct)
	}
	if got := len(a.Selected()); got != 2 {
		t.Errorf("Selected() length = %d, want 2", got)
	}
	assertSum100(t, a, "after Remove")

	// removing an unknown id is a no-op
	a.Remove("ghost")
	assertSum100(t, a, "after no-op remove")
}

func TestAllocator_SumInvariantUnderRandomishSequence(t *testing.T) {
	a := NewAllocator(core.Weekly)
	a.InitializeEqual([]string{"a", "b", "c", "d", "e"})

	ops := []func(){
		func() { a.UpdateAllocation("a", 73) },
		func() { a.UpdateAllocation("b", 0) },
		func() { a.Remove("c") },
		func() { a.UpdateAllocation("d", 100) },
		func() { a.Add("f") },
		func() { a.UpdateAllocation("f", 41.5) },
		func() { a.Remove("a") },
		func() { a.UpdateAllocation("e", 12.25) },
	}
	for i, op := range ops {
		op()
		if sum := a.Sum(); math.Abs(sum-100) > sumEpsilon {
			t.Fatalf("op %d: allocation sum = %v, want 100", i, sum)
		}
	}
}

func TestAllocator_SetFrequency(t *testing.T) {
	a := NewAllocator(core.Monthly)
	a.InitializeEqual([]string{"a"})

	a.SetFrequency("a", core.Biweekly)
	if f := a.Frequency("a"); f != core.Biweekly {
		t.Errorf("Frequency(a) = %v, want biweekly", f)
	}

	a.SetFrequency("a", core.Frequency("hourly"))
	if f := a.Frequency("a"); f != core.Biweekly {
		t.Errorf("invalid frequency overwrote valid one: %v", f)
	}

	a.SetFrequency("ghost", core.Daily)
	if f := a.Frequency("ghost"); f != core.Monthly {
		t.Errorf("unselected id frequency = %v, want session default", f)
	}
}
