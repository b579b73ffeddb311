package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/nvandessel/streamsim/internal/models"
	"github.com/nvandessel/streamsim/internal/simerr"
)

// Commit applies one cycle's writes in a single transaction: the reset wipe,
// deletions, updates, inserts, the ledger rows and the id strategy setting.
// Any failure rolls back everything, so the ledger never records a partial
// cycle.
func (s *Store) Commit(ctx context.Context, w *CycleWrites) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return simerr.Persistence("store.commit", fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer rollbackOrCommit(tx, &err)

	c := &committer{ctx: ctx, tx: tx, d: s.dialect}
	steps := []func(*CycleWrites) error{
		c.wipe,
		c.deletions,
		c.updates,
		c.inserts,
		c.ledger,
		c.settings,
	}
	for _, step := range steps {
		if err = step(w); err != nil {
			return simerr.Persistence("store.commit", err)
		}
	}
	return nil
}

// rollbackOrCommit finishes tx depending on the outcome stored in err.
func rollbackOrCommit(tx *sql.Tx, err *error) {
	if *err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.Warn("transaction rollback failed", "error", rbErr, "cause", *err)
		}
		return
	}
	if cmErr := tx.Commit(); cmErr != nil {
		*err = simerr.Persistence("store.commit", fmt.Errorf("commit failed: %w", cmErr))
	}
}

type committer struct {
	ctx context.Context
	tx  *sql.Tx
	d   dialect
}

func (c *committer) wipe(w *CycleWrites) error {
	if !w.Reset {
		return nil
	}
	for _, table := range wipeTables {
		if _, err := c.tx.ExecContext(c.ctx, `DELETE FROM `+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	return nil
}

// exactlyOne checks that a conditional write hit its single target row.
func exactlyOne(res sql.Result, op string, id models.ID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n != 1 {
		return simerr.Consistency(op, "row %s is missing or already deleted (%d rows affected)", id, n)
	}
	return nil
}

func (c *committer) deletions(w *CycleWrites) error {
	for _, d := range w.UserDeletes {
		res, err := c.tx.ExecContext(c.ctx, c.d.rebind(deleteUser), d.DeletedAt, string(d.ID))
		if err != nil {
			return fmt.Errorf("failed to delete user %s: %w", d.ID, err)
		}
		if err := exactlyOne(res, "store.delete_user", d.ID); err != nil {
			return err
		}
	}
	for _, d := range w.PostDeletes {
		res, err := c.tx.ExecContext(c.ctx, c.d.rebind(deletePost), d.DeletedAt, string(d.ID))
		if err != nil {
			return fmt.Errorf("failed to delete post %s: %w", d.ID, err)
		}
		if err := exactlyOne(res, "store.delete_post", d.ID); err != nil {
			return err
		}
	}
	return nil
}

func (c *committer) updates(w *CycleWrites) error {
	for _, u := range w.UserUpdates {
		res, err := c.tx.ExecContext(c.ctx, c.d.rebind(updateUser),
			u.LastName, u.CountryCode, u.FavoriteColor, u.UpdatedAt, string(u.ID))
		if err != nil {
			return fmt.Errorf("failed to update user %s: %w", u.ID, err)
		}
		if err := exactlyOne(res, "store.update_user", u.ID); err != nil {
			return err
		}
	}
	for _, p := range w.PostUpdates {
		res, err := c.tx.ExecContext(c.ctx, c.d.rebind(updatePost), p.Text, p.UpdatedAt, string(p.ID))
		if err != nil {
			return fmt.Errorf("failed to update post %s: %w", p.ID, err)
		}
		if err := exactlyOne(res, "store.update_post", p.ID); err != nil {
			return err
		}
	}
	return nil
}

func (c *committer) inserts(w *CycleWrites) error {
	if err := c.batch(insertUser, len(w.NewUsers), func(i int) []any {
		u := w.NewUsers[i]
		return []any{string(u.ID), u.FirstName, u.LastName, u.CountryCode, u.FavoriteColor,
			u.CreatedAt, u.UpdatedAt, u.Lifecycle.Ptr()}
	}); err != nil {
		return fmt.Errorf("failed to insert users: %w", err)
	}
	if err := c.batch(insertPost, len(w.NewPosts), func(i int) []any {
		p := w.NewPosts[i]
		return []any{string(p.ID), string(p.UserID), p.Text, p.CreatedAt, p.UpdatedAt, p.Lifecycle.Ptr()}
	}); err != nil {
		return fmt.Errorf("failed to insert posts: %w", err)
	}
	if err := c.batch(insertEvent, len(w.Events), func(i int) []any {
		e := w.Events[i]
		return []any{string(e.ID), string(e.UserID), string(e.PostID), e.Timestamp, string(e.Type)}
	}); err != nil {
		return fmt.Errorf("failed to insert events: %w", err)
	}
	return nil
}

func (c *committer) ledger(w *CycleWrites) error {
	return c.batch(insertLedger, len(w.Ledger), func(i int) []any {
		e := w.Ledger[i]
		return []any{e.SimDay, e.Table, e.Counts.Inserted, e.Counts.Updated, e.Counts.Deleted,
			e.RecordedAt, e.RunID, strconv.FormatUint(e.Seed, 10)}
	})
}

func (c *committer) settings(w *CycleWrites) error {
	if w.IDStrategy == "" {
		return nil
	}
	if _, err := c.tx.ExecContext(c.ctx, c.d.rebind(upsertSetting), SettingIDStrategy, w.IDStrategy); err != nil {
		return fmt.Errorf("failed to record id strategy: %w", err)
	}
	return nil
}

// batch executes one prepared statement n times.
func (c *committer) batch(query string, n int, args func(int) []any) error {
	if n == 0 {
		return nil
	}
	stmt, err := c.tx.PrepareContext(c.ctx, c.d.rebind(query))
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if _, err := stmt.ExecContext(c.ctx, args(i)...); err != nil {
			return err
		}
	}
	return nil
}
