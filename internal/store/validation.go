package store

import (
	"fmt"
	"slices"
	"time"

	"github.com/nvandessel/streamsim/internal/models"
)

// ValidationError describes one broken dataset invariant.
type ValidationError struct {
	Table string `json:"table"`
	ID    string `json:"id"`
	Field string `json:"field"`
	RefID string `json:"ref_id,omitempty"`
	Issue string `json:"issue"`
}

// String returns a human-readable description of the validation error.
func (e ValidationError) String() string {
	if e.RefID != "" {
		return fmt.Sprintf("%s: %s %s.%s references %s", e.Issue, e.Table, e.ID, e.Field, e.RefID)
	}
	return fmt.Sprintf("%s: %s %s.%s", e.Issue, e.Table, e.ID, e.Field)
}

// Validation issues.
const (
	IssueOrder      = "out-of-order"
	IssueDangling   = "dangling"
	IssueNotLiving  = "not-living"
	IssueOrphanLike = "like-without-view"
	IssueEventType  = "unknown-type"
	IssueLedger     = "ledger"
)

// ValidationReport is the result of ValidateDataset.
type ValidationReport struct {
	Errors []ValidationError `json:"errors"`

	// Duplicates counts repeated (user, post, type) events. They are a
	// tolerated relaxation, not an error.
	Duplicates int `json:"duplicates"`

	Users  int `json:"users"`
	Posts  int `json:"posts"`
	Events int `json:"events"`
	Days   int `json:"days"`
}

// OK reports whether no invariant is broken.
func (r *ValidationReport) OK() bool { return len(r.Errors) == 0 }

// ValidateDataset checks every temporal and referential invariant of a
// persisted dataset.
func ValidateDataset(ds *Dataset) *ValidationReport {
	r := &ValidationReport{Users: len(ds.Users), Posts: len(ds.Posts), Events: len(ds.Events)}
	add := func(table string, id models.ID, field, ref, issue string) {
		r.Errors = append(r.Errors, ValidationError{Table: table, ID: string(id), Field: field, RefID: ref, Issue: issue})
	}

	users := make(map[models.ID]*models.User, len(ds.Users))
	for i := range ds.Users {
		u := &ds.Users[i]
		users[u.ID] = u
		checkTimestamps(u.ID, models.TableUsers, u.CreatedAt, u.UpdatedAt, u.Lifecycle, add)
	}

	posts := make(map[models.ID]*models.Post, len(ds.Posts))
	for i := range ds.Posts {
		p := &ds.Posts[i]
		posts[p.ID] = p
		checkTimestamps(p.ID, models.TablePosts, p.CreatedAt, p.UpdatedAt, p.Lifecycle, add)
		owner, ok := users[p.UserID]
		if !ok {
			add(models.TablePosts, p.ID, "user_id", string(p.UserID), IssueDangling)
			continue
		}
		if p.CreatedAt.Before(owner.CreatedAt) {
			add(models.TablePosts, p.ID, "created_at", string(p.UserID), IssueOrder)
		}
		if !owner.LivingAt(p.CreatedAt) {
			add(models.TablePosts, p.ID, "user_id", string(p.UserID), IssueNotLiving)
		}
	}

	type pair struct{ user, post models.ID }
	type triple struct {
		pair
		kind models.EventType
	}
	firstView := make(map[pair]time.Time)
	seen := make(map[triple]bool)
	// events are checked in timestamp order so a view is known before its like
	for _, e := range sortedEvents(ds.Events) {
		if !e.Type.Valid() {
			add(models.TableEvents, e.ID, "event_type", string(e.Type), IssueEventType)
		}
		key := triple{pair{e.UserID, e.PostID}, e.Type}
		if seen[key] {
			r.Duplicates++
		}
		seen[key] = true

		u, ok := users[e.UserID]
		if !ok {
			add(models.TableEvents, e.ID, "user_id", string(e.UserID), IssueDangling)
		} else if !u.LivingAt(e.Timestamp) {
			add(models.TableEvents, e.ID, "user_id", string(e.UserID), IssueNotLiving)
		}
		p, ok := posts[e.PostID]
		if !ok {
			add(models.TableEvents, e.ID, "post_id", string(e.PostID), IssueDangling)
		} else if !p.LivingAt(e.Timestamp) {
			add(models.TableEvents, e.ID, "post_id", string(e.PostID), IssueNotLiving)
		}

		switch e.Type {
		case models.EventView:
			if _, ok := firstView[key.pair]; !ok {
				firstView[key.pair] = e.Timestamp
			}
		case models.EventLike:
			if v, ok := firstView[key.pair]; !ok || !v.Before(e.Timestamp) {
				add(models.TableEvents, e.ID, "event_type", string(e.PostID), IssueOrphanLike)
			}
		}
	}

	r.Days = checkLedger(ds.Ledger, add)
	return r
}

func checkTimestamps(id models.ID, table string, created, updated time.Time, lc models.Lifecycle,
	add func(string, models.ID, string, string, string)) {
	if updated.Before(created) {
		add(table, id, "updated_at", "", IssueOrder)
	}
	if at, deleted := lc.DeletedTime(); deleted && at.Before(updated) {
		add(table, id, "deleted_at", "", IssueOrder)
	}
}

// checkLedger verifies one row per table per day over contiguous days and
// returns the number of days.
func checkLedger(entries []models.LedgerEntry, add func(string, models.ID, string, string, string)) int {
	perDay := make(map[time.Time]map[string]int)
	var days []time.Time
	for _, e := range entries {
		d := e.SimDay.UTC()
		if perDay[d] == nil {
			perDay[d] = make(map[string]int)
			days = append(days, d)
		}
		perDay[d][e.Table]++
	}
	for i, d := range days {
		id := models.ID(d.Format("2006-01-02"))
		for _, table := range models.Tables {
			if n := perDay[d][table]; n != 1 {
				add("audit_ledger", id, table, "", fmt.Sprintf("%s: %d entries", IssueLedger, n))
			}
		}
		if i > 0 && !d.Equal(days[i-1].AddDate(0, 0, 1)) {
			add("audit_ledger", id, "sim_day", days[i-1].Format("2006-01-02"), IssueLedger+": gap")
		}
	}
	return len(days)
}

func sortedEvents(events []models.Event) []models.Event {
	out := slices.Clone(events)
	slices.SortStableFunc(out, func(a, b models.Event) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	return out
}
