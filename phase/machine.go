package phase

import (
	"math/rand/v2"

	"github.com/RyanBlaney/sonido-pulse/algorithms/common"
)

// Machine is the Break/Drop state machine driven by the band 0
// discriminator. It is owned by the analysis goroutine.
type Machine struct {
	state          State
	dropThreshold  float64
	breakThreshold float64
	rng            *rand.Rand
}

// NewMachine creates a machine in Break(0). A seed of 0 seeds from the
// runtime.
func NewMachine(dropThreshold, breakThreshold float64, seed uint64) *Machine {
	var rng *rand.Rand
	if seed == 0 {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	} else {
		rng = rand.New(rand.NewPCG(seed, seed))
	}
	return &Machine{
		dropThreshold:  dropThreshold,
		breakThreshold: breakThreshold,
		rng:            rng,
	}
}

// Step evaluates one cycle and reports whether the Kind changed.
// Break goes to Drop when val > drop threshold, Drop goes to Break when
// val < break threshold; equality and non-finite values keep the state.
func (m *Machine) Step(val float64) (State, bool) {
	if !common.IsFinite(val) {
		return m.state, false
	}

	switch m.state.Kind {
	case Break:
		if val > m.dropThreshold {
			m.state = State{Kind: Drop, Sub: PickSubstate(m.rng)}
			return m.state, true
		}
	case Drop:
		if val < m.breakThreshold {
			m.state = State{Kind: Break, Sub: PickSubstate(m.rng)}
			return m.state, true
		}
	}
	return m.state, false
}

// Reset forces Break(0)
func (m *Machine) Reset() {
	m.state = State{Kind: Break}
}

// State returns the current state
func (m *Machine) State() State {
	return m.state
}

// Discriminator computes (windowMean - globalMean) / sqrt(globalVariance)
// for band 0. The result is NaN or infinite when globalVariance is 0.
func Discriminator(windowMean, globalMean, globalVariance float64) float64 {
	return common.ZScore(windowMean, globalMean, globalVariance)
}
