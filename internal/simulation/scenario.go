package simulation

import (
	"time"

	"github.com/nvandessel/streamsim/internal/config"
	"github.com/nvandessel/streamsim/internal/cycle"
	"github.com/nvandessel/streamsim/internal/store"
)

// Scenario defines a complete multi-day experiment.
type Scenario struct {
	Name string

	// Days is the number of cycles to run. The first one on a fresh store is
	// always a reset.
	Days int

	// Seeds returns the seed of cycle i. Nil lets every cycle draw its own.
	Seeds func(i int) uint64

	// ResetAt lists cycle indexes that run with FullReset set.
	ResetAt []int

	// Configure, when non-nil, adjusts the default configuration before the
	// first cycle.
	Configure func(c *config.Config)

	// BeforeCycle, when non-nil, is called before each cycle executes. Use it
	// to inspect or manipulate the store between days.
	BeforeCycle func(i int, s *store.Store)
}

func (s Scenario) resetAt(i int) bool {
	for _, r := range s.ResetAt {
		if r == i {
			return true
		}
	}
	return false
}

// CycleResult captures the outcome of one simulated day.
type CycleResult struct {
	Index   int
	Result  *cycle.Result
	Dataset *store.Dataset
}

// Day returns the simulated day of the cycle.
func (c CycleResult) Day() time.Time { return c.Result.Day }

// SimulationResult captures every cycle and the store they ran against.
type SimulationResult struct {
	Cycles []CycleResult
	Store  *store.Store
}

// Final returns the dataset after the last cycle.
func (r SimulationResult) Final() *store.Dataset {
	if len(r.Cycles) == 0 {
		return nil
	}
	return r.Cycles[len(r.Cycles)-1].Dataset
}
