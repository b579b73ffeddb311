package simulation

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/nvandessel/streamsim/internal/config"
	"github.com/nvandessel/streamsim/internal/cycle"
	"github.com/nvandessel/streamsim/internal/store"
)

// Runner orchestrates multi-day experiments against a real store.
type Runner struct {
	t     *testing.T
	store *store.Store
	root  string
}

// NewRunner creates a simulation runner with an isolated SQLite store.
func NewRunner(t *testing.T) *Runner {
	t.Helper()
	root := t.TempDir()

	s, err := store.OpenSQLite(context.Background(), filepath.Join(root, "sim.db"))
	if err != nil {
		t.Fatalf("NewRunner: failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	return &Runner{t: t, store: s, root: root}
}

// Store returns the runner's store.
func (r *Runner) Store() *store.Store { return r.store }

// Config returns the configuration a scenario runs with.
func (r *Runner) Config(scenario Scenario) *config.Config {
	cfg := config.Default()
	cfg.Resolve(r.root)
	cfg.Store.Path = r.store.Path()
	if scenario.Configure != nil {
		scenario.Configure(cfg)
	}
	return cfg
}

// Run executes the scenario and returns the collected results. Any cycle
// error fails the test.
func (r *Runner) Run(scenario Scenario) SimulationResult {
	r.t.Helper()
	ctx := context.Background()

	// the ledger's real_timestamp must not depend on the wall clock
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	runner := cycle.New(r.store, r.Config(scenario), cycle.WithClock(func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}))

	cycles := make([]CycleResult, 0, scenario.Days)
	for i := 0; i < scenario.Days; i++ {
		if scenario.BeforeCycle != nil {
			scenario.BeforeCycle(i, r.store)
		}

		opts := cycle.Options{FullReset: scenario.resetAt(i)}
		if scenario.Seeds != nil {
			seed := scenario.Seeds(i)
			opts.Seed = &seed
		}

		res, err := runner.Run(ctx, opts)
		if err != nil {
			r.t.Fatalf("%s: cycle %d: %v", scenario.Name, i, err)
		}

		ds, err := r.store.LoadDataset(ctx)
		if err != nil {
			r.t.Fatalf("%s: cycle %d: LoadDataset: %v", scenario.Name, i, err)
		}
		cycles = append(cycles, CycleResult{Index: i, Result: res, Dataset: ds})
	}

	return SimulationResult{Cycles: cycles, Store: r.store}
}
