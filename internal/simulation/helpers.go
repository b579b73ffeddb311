package simulation

import (
	"time"

	"github.com/nvandessel/streamsim/internal/models"
	"github.com/nvandessel/streamsim/internal/store"
)

// SequentialSeeds returns base, base+1, ... for successive cycles.
func SequentialSeeds(base uint64) func(int) uint64 {
	return func(i int) uint64 { return base + uint64(i) }
}

// FixedSeed returns the same seed for every cycle.
func FixedSeed(seed uint64) func(int) uint64 {
	return func(int) uint64 { return seed }
}

// Comparable strips the per-invocation ledger fields (run id and wall-clock
// timestamp) so datasets from separate runs can be compared.
func Comparable(ds *store.Dataset) *store.Dataset {
	out := *ds
	out.Ledger = make([]models.LedgerEntry, len(ds.Ledger))
	for i, e := range ds.Ledger {
		e.RunID = ""
		e.RecordedAt = time.Time{}
		out.Ledger[i] = e
	}
	return &out
}

// LivingCount returns how many users and posts in ds are not deleted.
func LivingCount(ds *store.Dataset) (users, posts int) {
	for _, u := range ds.Users {
		if !u.Lifecycle.IsDeleted() {
			users++
		}
	}
	for _, p := range ds.Posts {
		if !p.Lifecycle.IsDeleted() {
			posts++
		}
	}
	return users, posts
}

// LedgerFor returns the ledger rows of the cycle's day keyed by table.
func LedgerFor(c CycleResult) map[string]models.LedgerEntry {
	out := make(map[string]models.LedgerEntry)
	for _, e := range c.Dataset.Ledger {
		if e.SimDay.Equal(c.Day()) {
			out[e.Table] = e
		}
	}
	return out
}
