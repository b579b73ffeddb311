package simulation

import (
	"sort"
	"strconv"
	"testing"
	"time"

	"github.com/nvandessel/streamsim/internal/models"
	"github.com/nvandessel/streamsim/internal/store"
)

// AssertValid asserts that ds breaks no temporal or referential invariant.
func AssertValid(t *testing.T, ds *store.Dataset) {
	t.Helper()
	report := store.ValidateDataset(ds)
	for i, e := range report.Errors {
		if i == 10 {
			t.Errorf("AssertValid: ... and %d more", len(report.Errors)-i)
			break
		}
		t.Errorf("AssertValid: %s", e)
	}
}

// AssertConsecutiveDays asserts that every cycle simulated the day after the
// previous one, or the epoch when it reset.
func AssertConsecutiveDays(t *testing.T, result SimulationResult) {
	t.Helper()
	for i, c := range result.Cycles {
		if c.Result.Reset {
			continue
		}
		if i == 0 {
			t.Errorf("AssertConsecutiveDays: first cycle %s did not reset", c.Day().Format("2006-01-02"))
			continue
		}
		want := result.Cycles[i-1].Day().AddDate(0, 0, 1)
		if !c.Day().Equal(want) {
			t.Errorf("AssertConsecutiveDays: cycle %d simulated %s, want %s", i, c.Day().Format("2006-01-02"), want.Format("2006-01-02"))
		}
	}
}

// AssertLedgerMatchesRows asserts that the cycle's ledger insert and delete
// counts agree with the rows stamped within its day.
func AssertLedgerMatchesRows(t *testing.T, c CycleResult) {
	t.Helper()
	start := c.Day()
	w := models.Window{Start: start, End: start.Add(24*time.Hour - time.Microsecond)}
	deletedIn := func(lc models.Lifecycle) bool {
		at, ok := lc.DeletedTime()
		return ok && w.Contains(at)
	}

	var got [3]models.Counts
	for _, u := range c.Dataset.Users {
		if w.Contains(u.CreatedAt) {
			got[0].Inserted++
		}
		if deletedIn(u.Lifecycle) {
			got[0].Deleted++
		}
	}
	for _, p := range c.Dataset.Posts {
		if w.Contains(p.CreatedAt) {
			got[1].Inserted++
		}
		if deletedIn(p.Lifecycle) {
			got[1].Deleted++
		}
	}
	for _, e := range c.Dataset.Events {
		if w.Contains(e.Timestamp) {
			got[2].Inserted++
		}
	}

	ledger := LedgerFor(c)
	for i, table := range models.Tables {
		entry, ok := ledger[table]
		if !ok {
			t.Errorf("AssertLedgerMatchesRows: cycle %d: no ledger row for %s", c.Index, table)
			continue
		}
		if entry.Counts.Inserted != got[i].Inserted || entry.Counts.Deleted != got[i].Deleted {
			t.Errorf("AssertLedgerMatchesRows: cycle %d: %s ledger %+v, rows inserted=%d deleted=%d",
				c.Index, table, entry.Counts, got[i].Inserted, got[i].Deleted)
		}
	}
}

// AssertNoRevival asserts that every row deleted in prev is still deleted at
// the same instant in next, and every event in prev is unchanged in next.
func AssertNoRevival(t *testing.T, prev, next *store.Dataset) {
	t.Helper()
	users := make(map[models.ID]models.User, len(next.Users))
	for _, u := range next.Users {
		users[u.ID] = u
	}
	for _, u := range prev.Users {
		at, deleted := u.Lifecycle.DeletedTime()
		if !deleted {
			continue
		}
		nu, ok := users[u.ID]
		nat, ndeleted := nu.Lifecycle.DeletedTime()
		if !ok || !ndeleted || !nat.Equal(at) {
			t.Errorf("AssertNoRevival: user %s deleted at %v changed to %+v", u.ID, at, nu.Lifecycle)
		}
	}

	posts := make(map[models.ID]models.Post, len(next.Posts))
	for _, p := range next.Posts {
		posts[p.ID] = p
	}
	for _, p := range prev.Posts {
		at, deleted := p.Lifecycle.DeletedTime()
		if !deleted {
			continue
		}
		np, ok := posts[p.ID]
		nat, ndeleted := np.Lifecycle.DeletedTime()
		if !ok || !ndeleted || !nat.Equal(at) {
			t.Errorf("AssertNoRevival: post %s deleted at %v changed to %+v", p.ID, at, np.Lifecycle)
		}
	}

	events := make(map[models.ID]models.Event, len(next.Events))
	for _, e := range next.Events {
		events[e.ID] = e
	}
	for _, e := range prev.Events {
		ne, ok := events[e.ID]
		if !ok || ne.UserID != e.UserID || ne.PostID != e.PostID || ne.Type != e.Type || !ne.Timestamp.Equal(e.Timestamp) {
			t.Errorf("AssertNoRevival: event %s changed or vanished", e.ID)
		}
	}
}

// AssertSequentialIDs asserts that each table's ids are exactly 1..n.
func AssertSequentialIDs(t *testing.T, ds *store.Dataset) {
	t.Helper()
	check := func(table string, ids []models.ID) {
		nums := make([]int, 0, len(ids))
		for _, id := range ids {
			n, err := strconv.Atoi(string(id))
			if err != nil {
				t.Errorf("AssertSequentialIDs: %s id %q is not numeric", table, id)
				return
			}
			nums = append(nums, n)
		}
		sort.Ints(nums)
		for i, n := range nums {
			if n != i+1 {
				t.Errorf("AssertSequentialIDs: %s ids have a gap or repeat at %d (got %d)", table, i+1, n)
				return
			}
		}
	}

	var ids []models.ID
	for _, u := range ds.Users {
		ids = append(ids, u.ID)
	}
	check(models.TableUsers, ids)

	ids = ids[:0]
	for _, p := range ds.Posts {
		ids = append(ids, p.ID)
	}
	check(models.TablePosts, ids)

	ids = ids[:0]
	for _, e := range ds.Events {
		ids = append(ids, e.ID)
	}
	check(models.TableEvents, ids)
}
