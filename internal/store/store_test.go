package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/nvandessel/streamsim/internal/models"
	"github.com/nvandessel/streamsim/internal/simerr"
)

var day0 = time.Date(2100, 1, 1, 0, 0, 0, 0, time.UTC)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func ledgerFor(day time.Time, users, posts, events models.Counts) []models.LedgerEntry {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	return []models.LedgerEntry{
		{SimDay: day, Table: models.TableUsers, Counts: users, RecordedAt: now, RunID: "run", Seed: 1<<63 + 5},
		{SimDay: day, Table: models.TablePosts, Counts: posts, RecordedAt: now, RunID: "run", Seed: 1<<63 + 5},
		{SimDay: day, Table: models.TableEvents, Counts: events, RecordedAt: now, RunID: "run", Seed: 1<<63 + 5},
	}
}

func resetWrites() *CycleWrites {
	at := day0.Add(time.Hour + 123*time.Microsecond)
	return &CycleWrites{
		Reset:      true,
		IDStrategy: "sequential",
		NewUsers: []models.User{
			{ID: "1", FirstName: "Ada", LastName: "L", CountryCode: "GB", FavoriteColor: "blue", CreatedAt: at, UpdatedAt: at},
			{ID: "2", FirstName: "Alan", LastName: "T", CountryCode: "GB", FavoriteColor: "red", CreatedAt: at, UpdatedAt: at.Add(time.Minute)},
		},
		NewPosts: []models.Post{
			{ID: "1", UserID: "1", Text: "hello", CreatedAt: at.Add(time.Hour), UpdatedAt: at.Add(time.Hour)},
		},
		Events: []models.Event{
			{ID: "1", UserID: "2", PostID: "1", Timestamp: at.Add(2 * time.Hour), Type: models.EventView},
			{ID: "2", UserID: "2", PostID: "1", Timestamp: at.Add(2*time.Hour + time.Second), Type: models.EventLike},
		},
		Ledger: ledgerFor(day0, models.Counts{Inserted: 2}, models.Counts{Inserted: 1}, models.Counts{Inserted: 2}),
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "db.sqlite")
	for i := 0; i < 2; i++ {
		s, err := OpenSQLite(context.Background(), path)
		if err != nil {
			t.Fatalf("OpenSQLite() #%d error = %v", i, err)
		}
		v, err := getSchemaVersion(context.Background(), s.db)
		if err != nil || v != SchemaVersion {
			t.Errorf("schema version = %d, %v; want %d", v, err, SchemaVersion)
		}
		s.Close()
	}
}

func TestOpenRejectsOtherSchemaVersion(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "db.sqlite")
	s, err := OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO schema_version (version, applied_at) VALUES (?, ?)`, SchemaVersion+1, time.Now().UTC()); err != nil {
		t.Fatalf("insert schema version: %v", err)
	}
	s.Close()

	if s, err := OpenSQLite(ctx, path); err == nil {
		s.Close()
		t.Fatal("OpenSQLite() accepted a database with a newer schema version")
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "oracle"})
	if !errors.Is(err, simerr.ErrConfiguration) {
		t.Errorf("Open() error = %v, want configuration error", err)
	}
}

func TestEmptyLedger(t *testing.T) {
	s := openTestStore(t)
	_, found, err := s.LatestSimulatedDay(context.Background())
	if err != nil {
		t.Fatalf("LatestSimulatedDay() error = %v", err)
	}
	if found {
		t.Error("LatestSimulatedDay() found a day in an empty store")
	}
}

func TestCommitAndSnapshot(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	if err := s.Commit(ctx, resetWrites()); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	day, found, err := s.LatestSimulatedDay(ctx)
	if err != nil || !found || !day.Equal(day0) {
		t.Fatalf("LatestSimulatedDay() = %s, %v, %v; want %s", day, found, err, day0)
	}

	snap, err := s.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if snap.IDStrategy != "sequential" {
		t.Errorf("IDStrategy = %q, want sequential", snap.IDStrategy)
	}
	if len(snap.Users) != 2 || len(snap.Posts) != 1 {
		t.Fatalf("Snapshot() = %d users, %d posts; want 2, 1", len(snap.Users), len(snap.Posts))
	}
	want := resetWrites().NewUsers[0]
	got := snap.Users[0]
	if got.ID != want.ID || !got.CreatedAt.Equal(want.CreatedAt) || got.CreatedAt.Location() != time.UTC {
		t.Errorf("user round trip = %+v, want %+v", got, want)
	}
	if snap.Watermarks[models.TableUsers] != 2 || snap.Watermarks[models.TableEvents] != 2 {
		t.Errorf("Watermarks = %v", snap.Watermarks)
	}

	entries, err := s.Ledger(ctx)
	if err != nil {
		t.Fatalf("Ledger() error = %v", err)
	}
	if len(entries) != 3 || entries[0].Table != models.TableUsers || entries[2].Table != models.TableEvents {
		t.Fatalf("Ledger() = %+v", entries)
	}
	if entries[0].Seed != 1<<63+5 {
		t.Errorf("seed round trip = %d", entries[0].Seed)
	}
}

func TestCommitMutations(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	if err := s.Commit(ctx, resetWrites()); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	day1 := day0.AddDate(0, 0, 1)
	color := "green"
	w := &CycleWrites{
		IDStrategy:  "sequential",
		UserDeletes: []models.Deletion{{ID: "1", DeletedAt: day1.Add(time.Hour)}},
		UserUpdates: []models.UserUpdate{{ID: "2", FavoriteColor: &color, UpdatedAt: day1.Add(2 * time.Hour)}},
		PostUpdates: []models.PostUpdate{{ID: "1", Text: "edited", UpdatedAt: day1.Add(3 * time.Hour)}},
		Ledger:      ledgerFor(day1, models.Counts{Updated: 1, Deleted: 1}, models.Counts{Updated: 1}, models.Counts{}),
	}
	if err := s.Commit(ctx, w); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	ds, err := s.LoadDataset(ctx)
	if err != nil {
		t.Fatalf("LoadDataset() error = %v", err)
	}
	byID := map[models.ID]models.User{}
	for _, u := range ds.Users {
		byID[u.ID] = u
	}
	if !byID["1"].Lifecycle.IsDeleted() {
		t.Error("user 1 not deleted")
	}
	if u := byID["2"]; u.FavoriteColor != "green" || u.LastName != "T" {
		t.Errorf("user 2 after update = %+v", u)
	}
	if ds.Posts[0].Text != "edited" {
		t.Errorf("post text = %q, want edited", ds.Posts[0].Text)
	}

	snap, err := s.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if len(snap.Users) != 1 {
		t.Errorf("Snapshot() living users = %d, want 1", len(snap.Users))
	}
	if snap.Watermarks[models.TableUsers] != 2 {
		t.Errorf("watermark ignores deleted rows: %v", snap.Watermarks)
	}
	if rep := ValidateDataset(ds); !rep.OK() {
		t.Errorf("ValidateDataset() errors = %v", rep.Errors)
	}
}

func TestCommitRollsBackOnDeletedRow(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	if err := s.Commit(ctx, resetWrites()); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	day1 := day0.AddDate(0, 0, 1)
	first := &CycleWrites{
		UserDeletes: []models.Deletion{{ID: "1", DeletedAt: day1}},
		Ledger:      ledgerFor(day1, models.Counts{Deleted: 1}, models.Counts{}, models.Counts{}),
	}
	if err := s.Commit(ctx, first); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	day2 := day1.AddDate(0, 0, 1)
	last := "X"
	bad := &CycleWrites{
		NewUsers:    []models.User{{ID: "3", CreatedAt: day2, UpdatedAt: day2}},
		UserUpdates: []models.UserUpdate{{ID: "1", LastName: &last, UpdatedAt: day2}},
		Ledger:      ledgerFor(day2, models.Counts{Inserted: 1, Updated: 1}, models.Counts{}, models.Counts{}),
	}
	err := s.Commit(ctx, bad)
	if !errors.Is(err, simerr.ErrConsistency) {
		t.Fatalf("Commit() error = %v, want consistency error", err)
	}

	latest, _, _ := s.LatestSimulatedDay(ctx)
	if !latest.Equal(day1) {
		t.Errorf("ledger advanced to %s after a failed commit", latest)
	}
	ds, _ := s.LoadDataset(ctx)
	if len(ds.Users) != 2 {
		t.Errorf("users = %d after rollback, want 2", len(ds.Users))
	}
}

func TestCommitDuplicateLedgerDayFails(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	if err := s.Commit(ctx, resetWrites()); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	again := &CycleWrites{Ledger: ledgerFor(day0, models.Counts{}, models.Counts{}, models.Counts{})}
	if err := s.Commit(ctx, again); !errors.Is(err, simerr.ErrPersistence) {
		t.Errorf("Commit() error = %v, want persistence error", err)
	}
}

func TestCommitResetWipes(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	if err := s.Commit(ctx, resetWrites()); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	w := resetWrites()
	w.IDStrategy = "token"
	if err := s.Commit(ctx, w); err != nil {
		t.Fatalf("second reset Commit() error = %v", err)
	}
	ds, err := s.LoadDataset(ctx)
	if err != nil {
		t.Fatalf("LoadDataset() error = %v", err)
	}
	if len(ds.Users) != 2 || len(ds.Events) != 2 || len(ds.Ledger) != 3 {
		t.Errorf("after reset: %d users, %d events, %d ledger rows", len(ds.Users), len(ds.Events), len(ds.Ledger))
	}
	if ds.IDStrategy != "token" {
		t.Errorf("IDStrategy = %q, want token", ds.IDStrategy)
	}
}

func TestCommitCancelledContext(t *testing.T) {
	s := openTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Commit(ctx, resetWrites()); !errors.Is(err, simerr.ErrPersistence) {
		t.Errorf("Commit() error = %v, want persistence error", err)
	}
	_, found, err := s.LatestSimulatedDay(context.Background())
	if err != nil || found {
		t.Errorf("store changed after cancelled commit: found=%v err=%v", found, err)
	}
}

func TestRebind(t *testing.T) {
	q := `UPDATE t SET a = ?, b = ? WHERE id = ?`
	if got := sqliteDialect.rebind(q); got != q {
		t.Errorf("sqlite rebind = %q", got)
	}
	want := `UPDATE t SET a = $1, b = $2 WHERE id = $3`
	if got := postgresDialect.rebind(q); got != want {
		t.Errorf("postgres rebind = %q, want %q", got, want)
	}
}
