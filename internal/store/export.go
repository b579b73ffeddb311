package store

import (
	"time"

	"github.com/nvandessel/streamsim/internal/models"
)

// Day returns the slice of the dataset touched on the simulated day
// containing t: rows created, updated or deleted that day, the day's events
// and its ledger rows. Rows carry their current state.
func (ds *Dataset) Day(t time.Time) *Dataset {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	w := models.Window{Start: start, End: start.Add(24*time.Hour - time.Nanosecond)}
	touched := func(created, updated time.Time, lc models.Lifecycle) bool {
		if w.Contains(created) || w.Contains(updated) {
			return true
		}
		at, deleted := lc.DeletedTime()
		return deleted && w.Contains(at)
	}

	out := &Dataset{IDStrategy: ds.IDStrategy}
	for _, u := range ds.Users {
		if touched(u.CreatedAt, u.UpdatedAt, u.Lifecycle) {
			out.Users = append(out.Users, u)
		}
	}
	for _, p := range ds.Posts {
		if touched(p.CreatedAt, p.UpdatedAt, p.Lifecycle) {
			out.Posts = append(out.Posts, p)
		}
	}
	for _, e := range ds.Events {
		if w.Contains(e.Timestamp) {
			out.Events = append(out.Events, e)
		}
	}
	for _, e := range ds.Ledger {
		if e.SimDay.UTC().Equal(start) {
			out.Ledger = append(out.Ledger, e)
		}
	}
	return out
}
