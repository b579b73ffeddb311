// Package ledger holds the audit ledger rules: which simulated day comes next,
// the window of a day, and the rows recorded for a cycle.
package ledger

import (
	"fmt"
	"time"

	"github.com/nvandessel/streamsim/internal/constants"
	"github.com/nvandessel/streamsim/internal/models"
	"github.com/nvandessel/streamsim/internal/simerr"
)

// ParseDay parses a YYYY-MM-DD day as midnight UTC.
func ParseDay(s string) (time.Time, error) {
	d, err := time.ParseInLocation(constants.DayLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, simerr.Configuration("ledger.parse_day", "invalid day %q: %v", s, err)
	}
	return d, nil
}

// Epoch returns the default first simulated day.
func Epoch() time.Time {
	d, _ := time.ParseInLocation(constants.DayLayout, constants.EpochDay, time.UTC)
	return d
}

// Day truncates t to its UTC calendar day.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// NextDay decides the day the next cycle simulates. An empty ledger forces a
// reset; a reset restarts at epoch.
func NextDay(latest time.Time, found, fullReset bool, epoch time.Time) (day time.Time, reset bool) {
	if fullReset || !found {
		return Day(epoch), true
	}
	return Day(latest).AddDate(0, 0, 1), false
}

// Window returns the closed interval covering day: midnight through the last
// representable microsecond.
func Window(day time.Time) models.Window {
	start := Day(day)
	return models.Window{
		Start: start,
		End:   start.Add(24*time.Hour - constants.Precision),
	}
}

// Entries builds the ledger rows for one cycle, one per table in ledger order.
// counts must hold every table.
func Entries(day time.Time, counts map[string]models.Counts, recordedAt time.Time, runID string, seed uint64) ([]models.LedgerEntry, error) {
	entries := make([]models.LedgerEntry, 0, len(models.Tables))
	for _, table := range models.Tables {
		c, ok := counts[table]
		if !ok {
			return nil, simerr.Consistency("ledger.entries", "no counts for table %s", table)
		}
		if c.Inserted < 0 || c.Updated < 0 || c.Deleted < 0 {
			return nil, simerr.Consistency("ledger.entries", "negative counts for table %s: %+v", table, c)
		}
		entries = append(entries, models.LedgerEntry{
			SimDay:     Day(day),
			Table:      table,
			Counts:     c,
			RecordedAt: recordedAt.UTC().Truncate(constants.Precision),
			RunID:      runID,
			Seed:       seed,
		})
	}
	return entries, nil
}

// FormatDay renders a simulated day.
func FormatDay(day time.Time) string {
	return day.UTC().Format(constants.DayLayout)
}

// Summary is the ledger of one simulated day.
type Summary struct {
	Day    time.Time
	RunID  string
	Seed   uint64
	Tables map[string]models.Counts
}

// Summarize groups ledger rows by day, oldest first. Days must be contiguous
// and complete; a gap or a missing table is reported as a consistency error.
func Summarize(entries []models.LedgerEntry) ([]Summary, error) {
	var out []Summary
	for _, e := range entries {
		day := Day(e.SimDay)
		if len(out) == 0 || !out[len(out)-1].Day.Equal(day) {
			if len(out) > 0 {
				prev := out[len(out)-1].Day
				if !day.Equal(prev.AddDate(0, 0, 1)) {
					return out, simerr.Consistency("ledger.summarize", "ledger gap between %s and %s", FormatDay(prev), FormatDay(day))
				}
			}
			out = append(out, Summary{Day: day, RunID: e.RunID, Seed: e.Seed, Tables: make(map[string]models.Counts)})
		}
		out[len(out)-1].Tables[e.Table] = e.Counts
	}
	for _, s := range out {
		for _, table := range models.Tables {
			if _, ok := s.Tables[table]; !ok {
				return out, simerr.Consistency("ledger.summarize", "day %s has no %s entry", FormatDay(s.Day), table)
			}
		}
	}
	return out, nil
}

// String renders a one-line summary.
func (s Summary) String() string {
	u, p, e := s.Tables[models.TableUsers], s.Tables[models.TablePosts], s.Tables[models.TableEvents]
	return fmt.Sprintf("%s  users +%d ~%d -%d  posts +%d ~%d -%d  events +%d",
		FormatDay(s.Day), u.Inserted, u.Updated, u.Deleted, p.Inserted, p.Updated, p.Deleted, e.Inserted)
}
