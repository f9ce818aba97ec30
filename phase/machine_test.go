package phase

import (
	"math"
	"math/rand/v2"
	"testing"
)

func TestMachineTransitions(t *testing.T) {
	tests := []struct {
		name        string
		from        State
		val         float64
		wantKind    Kind
		wantChanged bool
	}{
		{"break above threshold", State{Break, 0}, 0.5, Drop, true},
		{"break sub 3 above threshold", State{Break, 3}, 0.21, Drop, true},
		{"break at threshold", State{Break, 2}, 0.2, Break, false},
		{"break below threshold", State{Break, 1}, -4, Break, false},
		{"drop below threshold", State{Drop, 0}, 0.1, Break, true},
		{"drop sub 2 below threshold", State{Drop, 2}, -1, Break, true},
		{"drop at threshold", State{Drop, 1}, 0.2, Drop, false},
		{"drop above threshold", State{Drop, 3}, 9, Drop, false},
		{"break NaN", State{Break, 0}, math.NaN(), Break, false},
		{"drop NaN", State{Drop, 1}, math.NaN(), Drop, false},
		{"break +Inf", State{Break, 0}, math.Inf(1), Break, false},
		{"drop -Inf", State{Drop, 0}, math.Inf(-1), Drop, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMachine(0.2, 0.2, 42)
			m.state = tt.from

			got, changed := m.Step(tt.val)
			if got.Kind != tt.wantKind || changed != tt.wantChanged {
				t.Fatalf("Step(%v) from %v = (%v, %v), want kind %v changed %v",
					tt.val, tt.from, got, changed, tt.wantKind, tt.wantChanged)
			}
			if !changed && got != tt.from {
				t.Errorf("state changed to %v without a transition", got)
			}
			if got.Sub >= SubStates {
				t.Errorf("sub-state %d out of range", got.Sub)
			}
		})
	}
}

func TestMachineHysteresis(t *testing.T) {
	m := NewMachine(0.5, 0.1, 1)

	if s, _ := m.Step(0.3); s.Kind != Break {
		t.Fatalf("entered %v below the drop threshold", s)
	}
	if s, _ := m.Step(0.6); s.Kind != Drop {
		t.Fatalf("state %v, want Drop above the drop threshold", s)
	}
	if s, _ := m.Step(0.3); s.Kind != Drop {
		t.Fatalf("left Drop at 0.3 with break threshold 0.1: %v", s)
	}
	if s, _ := m.Step(0.05); s.Kind != Break {
		t.Fatalf("state %v, want Break below the break threshold", s)
	}
}

func TestMachineReset(t *testing.T) {
	m := NewMachine(0.2, 0.2, 7)
	m.Step(1)
	m.Reset()

	if got := m.State(); got != (State{Break, 0}) {
		t.Errorf("State() after Reset = %v, want Break(0)", got)
	}
}

func TestPickSubstateUniform(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	var counts [SubStates]int
	const draws = 40000
	for range draws {
		counts[PickSubstate(rng)]++
	}
	for sub, c := range counts {
		if c < draws/SubStates*9/10 || c > draws/SubStates*11/10 {
			t.Errorf("sub-state %d drawn %d times out of %d", sub, c, draws)
		}
	}
}

func TestStateString(t *testing.T) {
	if got := (State{Drop, 2}).String(); got != "Drop(2)" {
		t.Errorf("String() = %q, want Drop(2)", got)
	}
	if got := (State{}).String(); got != "Break(0)" {
		t.Errorf("zero State String() = %q, want Break(0)", got)
	}
}
