package store

// SQL statements shared by both dialects. Placeholders are written as ? and
// rebound for Postgres.

const (
	selectLatestDay = `
		SELECT sim_day
		FROM audit_ledger
		ORDER BY sim_day DESC
		LIMIT 1`

	selectSetting = `
		SELECT value
		FROM settings
		WHERE key = ?`

	upsertSetting = `
		INSERT INTO settings (key, value)
		VALUES (?, ?)
		ON CONFLICT (key)
		DO UPDATE SET value = excluded.value`

	selectUsers = `
		SELECT id, first_name, last_name, country_code, favorite_color,
		       created_at, updated_at, deleted_at
		FROM users`

	selectPosts = `
		SELECT id, user_id, post_text, created_at, updated_at, deleted_at
		FROM posts`

	selectEvents = `
		SELECT id, user_id, post_id, event_ts, event_type
		FROM events`

	selectLedger = `
		SELECT sim_day, table_name, rows_inserted, rows_updated, rows_deleted,
		       real_timestamp, run_id, seed
		FROM audit_ledger
		ORDER BY sim_day`

	insertUser = `
		INSERT INTO users (id, first_name, last_name, country_code, favorite_color,
		                   created_at, updated_at, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	insertPost = `
		INSERT INTO posts (id, user_id, post_text, created_at, updated_at, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	insertEvent = `
		INSERT INTO events (id, user_id, post_id, event_ts, event_type)
		VALUES (?, ?, ?, ?, ?)`

	insertLedger = `
		INSERT INTO audit_ledger (sim_day, table_name, rows_inserted, rows_updated,
		                          rows_deleted, real_timestamp, run_id, seed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	// A nil argument keeps the column's current value.
	updateUser = `
		UPDATE users
		SET last_name = COALESCE(?, last_name),
		    country_code = COALESCE(?, country_code),
		    favorite_color = COALESCE(?, favorite_color),
		    updated_at = ?
		WHERE id = ? AND deleted_at IS NULL`

	updatePost = `
		UPDATE posts
		SET post_text = ?,
		    updated_at = ?
		WHERE id = ? AND deleted_at IS NULL`

	deleteUser = `
		UPDATE users
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL`

	deletePost = `
		UPDATE posts
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL`
)

// wipeTables lists the tables a reset clears, children first.
var wipeTables = []string{"events", "posts", "users", "audit_ledger", "settings"}
