package phase

import (
	"fmt"
	"math/rand/v2"
)

// Kind is the structural classification of the music
type Kind uint8

const (
	Break Kind = iota
	Drop
)

func (k Kind) String() string {
	switch k {
	case Break:
		return "Break"
	case Drop:
		return "Drop"
	default:
		return "Unknown"
	}
}

// SubStates is the number of sub-states per Kind
const SubStates = 4

// State is a Kind plus a sub-state in [0, SubStates) picked at random on
// every transition. The zero value is Break(0).
type State struct {
	Kind Kind  `json:"kind"`
	Sub  uint8 `json:"sub"`
}

func (s State) String() string {
	return fmt.Sprintf("%s(%d)", s.Kind, s.Sub)
}

// PickSubstate draws a sub-state uniformly from [0, SubStates)
func PickSubstate(rng *rand.Rand) uint8 {
	return uint8(rng.IntN(SubStates))
}
