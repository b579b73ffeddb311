// Package store persists the simulated dataset and the audit ledger in a
// relational database. SQLite (modernc.org/sqlite) is the default; Postgres is
// reached through pgx's database/sql driver.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // Postgres driver
	_ "modernc.org/sqlite"             // SQLite driver

	"github.com/nvandessel/streamsim/internal/models"
	"github.com/nvandessel/streamsim/internal/simerr"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// SettingIDStrategy is the settings key recording the id allocation strategy.
const SettingIDStrategy = "id_strategy"

// Config selects and locates the database.
type Config struct {
	Driver string `yaml:"driver" json:"driver"`

	// Path is the SQLite database file
	Path string `yaml:"path" json:"path"`

	// DSN is the Postgres connection string
	DSN string `yaml:"dsn" json:"dsn,omitempty"`
}

// dialect captures the differences between the supported databases.
type dialect struct {
	name           string
	driver         string
	schema         string
	intCast        string
	numbered       bool
	integrityCheck bool
}

var (
	sqliteDialect   = dialect{name: DriverSQLite, driver: "sqlite", schema: schemaSQLite, intCast: "INTEGER", integrityCheck: true}
	postgresDialect = dialect{name: DriverPostgres, driver: "pgx", schema: schemaPostgres, intCast: "BIGINT", numbered: true}
)

// rebind rewrites ? placeholders as $n for dialects with numbered parameters.
// Queries in this package never contain a literal question mark.
func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Store is the persistent entity repository and audit ledger.
// A Store is used by one process at a time; SQLite pools are capped at one
// connection.
type Store struct {
	db      *sql.DB
	dialect dialect
	path    string
}

// Open connects to the database named by cfg and initializes the schema.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	switch cfg.Driver {
	case DriverSQLite, "":
		return OpenSQLite(ctx, cfg.Path)
	case DriverPostgres:
		return OpenPostgres(ctx, cfg.DSN)
	default:
		return nil, simerr.Configuration("store.open", "unknown driver %q (valid: sqlite, postgres)", cfg.Driver)
	}
}

// OpenSQLite opens (creating if needed) the SQLite database at path.
func OpenSQLite(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, simerr.Configuration("store.open", "sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, simerr.Persistence("store.open", fmt.Errorf("failed to create database directory: %w", err))
	}

	db, err := sql.Open(sqliteDialect.driver, path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_time_format=sqlite")
	if err != nil {
		return nil, simerr.Persistence("store.open", fmt.Errorf("failed to open database: %w", err))
	}

	// SQLite works best with single writer
	db.SetMaxOpenConns(1)

	return initStore(ctx, db, sqliteDialect, path)
}

// OpenPostgres connects to the Postgres database at dsn.
func OpenPostgres(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, simerr.Configuration("store.open", "postgres dsn is required")
	}
	db, err := sql.Open(postgresDialect.driver, dsn)
	if err != nil {
		return nil, simerr.Persistence("store.open", fmt.Errorf("failed to open database: %w", err))
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, simerr.Persistence("store.open", fmt.Errorf("failed to connect: %w", err))
	}
	return initStore(ctx, db, postgresDialect, "")
}

func initStore(ctx context.Context, db *sql.DB, d dialect, path string) (*Store, error) {
	if err := InitSchema(ctx, db, d); err != nil {
		db.Close()
		return nil, simerr.Persistence("store.open", fmt.Errorf("failed to initialize schema: %w", err))
	}
	return &Store{db: db, dialect: d, path: path}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Driver returns the name of the backing database.
func (s *Store) Driver() string { return s.dialect.name }

// Path returns the SQLite database file, or "" for Postgres.
func (s *Store) Path() string { return s.path }

// Snapshot is the state a cycle starts from: the living rows, the id
// watermarks and the recorded id strategy.
type Snapshot struct {
	// IDStrategy is empty for a store that never completed a cycle
	IDStrategy string

	Users []models.User
	Posts []models.Post

	// Watermarks hold the highest numeric id per table. They are only
	// computed when the recorded strategy is sequential.
	Watermarks map[string]int64
}

// CycleWrites is everything one cycle persists, applied in one transaction.
type CycleWrites struct {
	// Reset wipes every table before the writes are applied
	Reset      bool
	IDStrategy string

	UserDeletes []models.Deletion
	PostDeletes []models.Deletion
	UserUpdates []models.UserUpdate
	PostUpdates []models.PostUpdate

	NewUsers []models.User
	NewPosts []models.Post
	Events   []models.Event

	Ledger []models.LedgerEntry
}

// Dataset is the complete persisted state.
type Dataset struct {
	IDStrategy string               `json:"id_strategy"`
	Users      []models.User        `json:"users"`
	Posts      []models.Post        `json:"posts"`
	Events     []models.Event       `json:"events"`
	Ledger     []models.LedgerEntry `json:"ledger"`
}
