package store

import (
	"cmp"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/nvandessel/streamsim/internal/idgen"
	"github.com/nvandessel/streamsim/internal/models"
	"github.com/nvandessel/streamsim/internal/simerr"
)

// LatestSimulatedDay returns the most recent simulated day in the ledger.
// found is false for an empty ledger.
func (s *Store) LatestSimulatedDay(ctx context.Context) (day time.Time, found bool, err error) {
	err = s.db.QueryRowContext(ctx, selectLatestDay).Scan(&day)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, simerr.Persistence("store.latest_day", fmt.Errorf("failed to read ledger: %w", err))
	}
	return day.UTC(), true, nil
}

// Setting returns a settings value, or "" when unset.
func (s *Store) Setting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, s.dialect.rebind(selectSetting), key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", simerr.Persistence("store.setting", fmt.Errorf("failed to read setting %s: %w", key, err))
	}
	return value, nil
}

// Snapshot loads the living rows a cycle starts from.
func (s *Store) Snapshot(ctx context.Context) (*Snapshot, error) {
	strategy, err := s.Setting(ctx, SettingIDStrategy)
	if err != nil {
		return nil, err
	}
	snap := &Snapshot{IDStrategy: strategy, Watermarks: make(map[string]int64)}

	if snap.Users, err = s.loadUsers(ctx, ` WHERE deleted_at IS NULL`); err != nil {
		return nil, err
	}
	if snap.Posts, err = s.loadPosts(ctx, ` WHERE deleted_at IS NULL`); err != nil {
		return nil, err
	}

	if strategy == string(idgen.Sequential) {
		for _, table := range models.Tables {
			wm, err := s.watermark(ctx, table)
			if err != nil {
				return nil, err
			}
			snap.Watermarks[table] = wm
		}
	}
	return snap, nil
}

// watermark returns the highest numeric id in table. Deleted rows count:
// ids are never reused.
func (s *Store) watermark(ctx context.Context, table string) (int64, error) {
	query := fmt.Sprintf(`SELECT COALESCE(MAX(CAST(id AS %s)), 0) FROM %s`, s.dialect.intCast, table)
	var wm int64
	if err := s.db.QueryRowContext(ctx, query).Scan(&wm); err != nil {
		return 0, simerr.Persistence("store.watermark", fmt.Errorf("failed to read %s watermark: %w", table, err))
	}
	return wm, nil
}

// LoadDataset reads every persisted row, deleted ones included.
func (s *Store) LoadDataset(ctx context.Context) (*Dataset, error) {
	strategy, err := s.Setting(ctx, SettingIDStrategy)
	if err != nil {
		return nil, err
	}
	ds := &Dataset{IDStrategy: strategy}
	if ds.Users, err = s.loadUsers(ctx, ""); err != nil {
		return nil, err
	}
	if ds.Posts, err = s.loadPosts(ctx, ""); err != nil {
		return nil, err
	}
	if ds.Events, err = s.loadEvents(ctx); err != nil {
		return nil, err
	}
	if ds.Ledger, err = s.Ledger(ctx); err != nil {
		return nil, err
	}
	return ds, nil
}

// Ledger returns every ledger row, oldest day first, tables in ledger order.
func (s *Store) Ledger(ctx context.Context) ([]models.LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx, selectLedger)
	if err != nil {
		return nil, simerr.Persistence("store.ledger", fmt.Errorf("failed to query ledger: %w", err))
	}
	defer rows.Close()

	var entries []models.LedgerEntry
	for rows.Next() {
		var e models.LedgerEntry
		var seed string
		if err := rows.Scan(&e.SimDay, &e.Table, &e.Counts.Inserted, &e.Counts.Updated, &e.Counts.Deleted,
			&e.RecordedAt, &e.RunID, &seed); err != nil {
			return nil, simerr.Persistence("store.ledger", fmt.Errorf("failed to scan ledger row: %w", err))
		}
		if e.Seed, err = strconv.ParseUint(seed, 10, 64); err != nil {
			return nil, simerr.Consistency("store.ledger", "ledger seed %q is not a number", seed)
		}
		e.SimDay = e.SimDay.UTC()
		e.RecordedAt = e.RecordedAt.UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, simerr.Persistence("store.ledger", err)
	}

	slices.SortStableFunc(entries, func(a, b models.LedgerEntry) int {
		if c := a.SimDay.Compare(b.SimDay); c != 0 {
			return c
		}
		return cmp.Compare(tableOrder(a.Table), tableOrder(b.Table))
	})
	return entries, nil
}

func tableOrder(table string) int {
	if i := slices.Index(models.Tables, table); i >= 0 {
		return i
	}
	return len(models.Tables)
}

// loadUsers reads users ordered by creation time then id.
func (s *Store) loadUsers(ctx context.Context, where string) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx, selectUsers+where)
	if err != nil {
		return nil, simerr.Persistence("store.users", fmt.Errorf("failed to query users: %w", err))
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		var deletedAt sql.NullTime
		if err := rows.Scan(&u.ID, &u.FirstName, &u.LastName, &u.CountryCode, &u.FavoriteColor,
			&u.CreatedAt, &u.UpdatedAt, &deletedAt); err != nil {
			return nil, simerr.Persistence("store.users", fmt.Errorf("failed to scan user: %w", err))
		}
		u.CreatedAt = u.CreatedAt.UTC()
		u.UpdatedAt = u.UpdatedAt.UTC()
		u.Lifecycle = lifecycle(deletedAt)
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, simerr.Persistence("store.users", err)
	}

	slices.SortFunc(users, func(a, b models.User) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return users, nil
}

// loadPosts reads posts ordered by creation time then id.
func (s *Store) loadPosts(ctx context.Context, where string) ([]models.Post, error) {
	rows, err := s.db.QueryContext(ctx, selectPosts+where)
	if err != nil {
		return nil, simerr.Persistence("store.posts", fmt.Errorf("failed to query posts: %w", err))
	}
	defer rows.Close()

	var posts []models.Post
	for rows.Next() {
		var p models.Post
		var deletedAt sql.NullTime
		if err := rows.Scan(&p.ID, &p.UserID, &p.Text, &p.CreatedAt, &p.UpdatedAt, &deletedAt); err != nil {
			return nil, simerr.Persistence("store.posts", fmt.Errorf("failed to scan post: %w", err))
		}
		p.CreatedAt = p.CreatedAt.UTC()
		p.UpdatedAt = p.UpdatedAt.UTC()
		p.Lifecycle = lifecycle(deletedAt)
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, simerr.Persistence("store.posts", err)
	}

	slices.SortFunc(posts, func(a, b models.Post) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return posts, nil
}

// loadEvents reads events ordered by timestamp then id.
func (s *Store) loadEvents(ctx context.Context) ([]models.Event, error) {
	rows, err := s.db.QueryContext(ctx, selectEvents)
	if err != nil {
		return nil, simerr.Persistence("store.events", fmt.Errorf("failed to query events: %w", err))
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		var e models.Event
		if err := rows.Scan(&e.ID, &e.UserID, &e.PostID, &e.Timestamp, &e.Type); err != nil {
			return nil, simerr.Persistence("store.events", fmt.Errorf("failed to scan event: %w", err))
		}
		e.Timestamp = e.Timestamp.UTC()
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, simerr.Persistence("store.events", err)
	}

	slices.SortFunc(events, func(a, b models.Event) int {
		if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return events, nil
}

func lifecycle(t sql.NullTime) models.Lifecycle {
	if !t.Valid {
		return models.Active()
	}
	return models.DeletedAt(t.Time.UTC())
}
