package models

import "time"

// Counts is the effect of one cycle on one table.
type Counts struct {
	Inserted int `json:"rows_inserted"`
	Updated  int `json:"rows_updated"`
	Deleted  int `json:"rows_deleted"`
}

// LedgerEntry is one audit row: one per table per simulated day.
type LedgerEntry struct {
	SimDay     time.Time `json:"sim_day"`
	Table      string    `json:"table_name"`
	Counts     Counts    `json:"counts"`
	RecordedAt time.Time `json:"real_timestamp"`

	// RunID identifies the invocation that wrote the entry
	RunID string `json:"run_id"`

	// Seed is the generator seed the cycle ran with, so it can be replayed
	Seed uint64 `json:"seed"`
}

// Window is the closed interval of one simulated day.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t lies within the window, bounds included.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}
