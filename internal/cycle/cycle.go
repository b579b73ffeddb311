// Package cycle orchestrates one simulated day: it reads the ledger, picks
// the next day, runs mutation, creation and sessions against the living
// population, and commits every write together with the day's ledger rows.
package cycle

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/rs/xid"

	"github.com/nvandessel/streamsim/internal/config"
	"github.com/nvandessel/streamsim/internal/creation"
	"github.com/nvandessel/streamsim/internal/idgen"
	"github.com/nvandessel/streamsim/internal/ledger"
	"github.com/nvandessel/streamsim/internal/logging"
	"github.com/nvandessel/streamsim/internal/models"
	"github.com/nvandessel/streamsim/internal/mutation"
	"github.com/nvandessel/streamsim/internal/population"
	"github.com/nvandessel/streamsim/internal/sampling"
	"github.com/nvandessel/streamsim/internal/session"
	"github.com/nvandessel/streamsim/internal/simerr"
	"github.com/nvandessel/streamsim/internal/store"
	"github.com/nvandessel/streamsim/internal/values"
)

//go:generate mockgen -destination mock_repository_test.go -package cycle github.com/nvandessel/streamsim/internal/cycle Repository

// Repository is the persistent state a cycle reads and writes.
type Repository interface {
	LatestSimulatedDay(ctx context.Context) (time.Time, bool, error)
	Snapshot(ctx context.Context) (*store.Snapshot, error)
	Commit(ctx context.Context, w *store.CycleWrites) error
}

// Archiver saves the current dataset before a reset wipes it and returns
// where it went.
type Archiver interface {
	Archive(ctx context.Context) (string, error)
}

// Options are the per-invocation inputs.
type Options struct {
	// FullReset discards all history and restarts at the epoch.
	FullReset bool

	// Seed makes the cycle reproducible. Nil draws a random seed, which is
	// logged and stored in the ledger.
	Seed *uint64
}

// IDRange is the first and last id inserted into a table.
type IDRange struct {
	First models.ID `json:"first"`
	Last  models.ID `json:"last"`
}

// Result describes a committed cycle.
type Result struct {
	Day        time.Time                `json:"sim_day"`
	Reset      bool                     `json:"reset"`
	Seed       uint64                   `json:"seed"`
	RunID      string                   `json:"run_id"`
	IDStrategy string                   `json:"id_strategy"`
	Counts     map[string]models.Counts `json:"counts"`
	Inserted   map[string]IDRange       `json:"inserted,omitempty"`
	Sessions   int                      `json:"sessions"`

	// Archive is the pre-reset backup, if one was written
	Archive string `json:"archive,omitempty"`
}

// Runner executes cycles against a repository.
type Runner struct {
	repo     Repository
	cfg      *config.Config
	logger   *slog.Logger
	trace    *logging.CycleTrace
	now      func() time.Time
	values   values.Factory
	archiver Archiver
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the operational logger.
func WithLogger(l *slog.Logger) Option { return func(r *Runner) { r.logger = l } }

// WithTrace sets the JSONL cycle trace.
func WithTrace(t *logging.CycleTrace) Option { return func(r *Runner) { r.trace = t } }

// WithClock replaces the wall clock used for ledger timestamps.
func WithClock(now func() time.Time) Option { return func(r *Runner) { r.now = now } }

// WithValues replaces the fake value provider.
func WithValues(f values.Factory) Option { return func(r *Runner) { r.values = f } }

// WithArchiver archives the dataset before a reset over existing history.
func WithArchiver(a Archiver) Option { return func(r *Runner) { r.archiver = a } }

// New returns a Runner.
func New(repo Repository, cfg *config.Config, opts ...Option) *Runner {
	r := &Runner{
		repo:   repo,
		cfg:    cfg,
		logger: slog.New(slog.DiscardHandler),
		now:    time.Now,
		values: values.FakerFactory,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run simulates the next day and commits it atomically. On any error nothing
// is written.
func (r *Runner) Run(ctx context.Context, opts Options) (*Result, error) {
	if err := r.cfg.Validate(); err != nil {
		return nil, err
	}
	strategy, err := idgen.ParseStrategy(r.cfg.Simulation.IDStrategy)
	if err != nil {
		return nil, err
	}
	epoch, err := ledger.ParseDay(r.cfg.Simulation.Epoch)
	if err != nil {
		return nil, err
	}

	latest, found, err := r.repo.LatestSimulatedDay(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading ledger: %w", err)
	}
	day, reset := ledger.NextDay(latest, found, opts.FullReset, epoch)
	if reset && !opts.FullReset {
		r.logger.Info("empty ledger, starting from epoch", "day", ledger.FormatDay(day))
	}

	var seed uint64
	if opts.Seed != nil {
		seed = *opts.Seed
	} else {
		seed = rand.Uint64()
		r.logger.Info("no seed given, drew one", "seed", seed)
	}

	snap := &store.Snapshot{Watermarks: map[string]int64{}}
	if !reset {
		if snap, err = r.repo.Snapshot(ctx); err != nil {
			return nil, fmt.Errorf("loading snapshot: %w", err)
		}
		if snap.IDStrategy != "" && snap.IDStrategy != string(strategy) {
			return nil, simerr.Configuration("cycle.run",
				"store uses %s ids but %s is configured; run a full reset to switch", snap.IDStrategy, strategy)
		}
	}

	runID := xid.New().String()
	r.trace.Record(map[string]any{
		"event":  "cycle_start",
		"run_id": runID,
		"day":    ledger.FormatDay(day),
		"reset":  reset,
		"seed":   seed,
		"users":  len(snap.Users),
		"posts":  len(snap.Posts),
	})

	rng := sampling.New(seed)
	vals := r.values(sampling.Fork(rng))
	ids := make(map[string]idgen.Allocator, len(models.Tables))
	for _, table := range models.Tables {
		if ids[table], err = idgen.New(strategy, snap.Watermarks[table], sampling.Fork(rng)); err != nil {
			return nil, err
		}
	}

	pop := population.New(snap.Users, snap.Posts)
	window := ledger.Window(day)

	mut, err := mutation.New(r.cfg.Mutation(), rng, vals).Apply(pop, window)
	if err != nil {
		return nil, fmt.Errorf("mutating population: %w", err)
	}
	r.traceMutation(runID, mut)

	created, err := creation.New(r.cfg.Creation(), rng, vals, ids[models.TableUsers], ids[models.TablePosts]).
		Create(pop, window, reset)
	if err != nil {
		return nil, fmt.Errorf("creating rows: %w", err)
	}

	sim := session.New(r.cfg.Session(), rng, ids[models.TableEvents]).Simulate(pop, window, reset)
	r.traceSessions(runID, sim)

	counts := map[string]models.Counts{
		models.TableUsers:  {Inserted: len(created.Users), Updated: len(mut.UserUpdates), Deleted: len(mut.UserDeletes)},
		models.TablePosts:  {Inserted: len(created.Posts), Updated: len(mut.PostUpdates), Deleted: len(mut.PostDeletes)},
		models.TableEvents: {Inserted: len(sim.Events)},
	}
	entries, err := ledger.Entries(day, counts, r.now(), runID, seed)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Day:        day,
		Reset:      reset,
		Seed:       seed,
		RunID:      runID,
		IDStrategy: string(strategy),
		Counts:     counts,
		Inserted:   insertedRanges(created, sim),
		Sessions:   len(sim.Sessions),
	}

	if reset && found && r.archiver != nil {
		if res.Archive, err = r.archiver.Archive(ctx); err != nil {
			return nil, fmt.Errorf("archiving before reset: %w", err)
		}
		r.logger.Info("archived dataset before reset", "path", res.Archive)
	}

	if err := ctx.Err(); err != nil {
		return nil, simerr.Persistence("cycle.run", err)
	}
	writes := &store.CycleWrites{
		Reset:       reset,
		IDStrategy:  string(strategy),
		UserDeletes: mut.UserDeletes,
		PostDeletes: mut.PostDeletes,
		UserUpdates: mut.UserUpdates,
		PostUpdates: mut.PostUpdates,
		NewUsers:    created.Users,
		NewPosts:    created.Posts,
		Events:      sim.Events,
		Ledger:      entries,
	}
	if err := r.repo.Commit(ctx, writes); err != nil {
		return nil, fmt.Errorf("committing %s: %w", ledger.FormatDay(day), err)
	}

	for _, table := range models.Tables {
		c := counts[table]
		attrs := []any{"day", ledger.FormatDay(day), "table", table,
			"inserted", c.Inserted, "updated", c.Updated, "deleted", c.Deleted}
		if ir, ok := res.Inserted[table]; ok {
			attrs = append(attrs, "first_id", ir.First, "last_id", ir.Last)
		}
		r.logger.Info("table written", attrs...)
	}
	r.logger.Info("simulation complete", "day", ledger.FormatDay(day), "run_id", runID, "seed", seed, "reset", reset)
	r.trace.Record(map[string]any{"event": "cycle_committed", "run_id": runID, "counts": counts})

	return res, nil
}

func insertedRanges(created *creation.Result, sim *session.Result) map[string]IDRange {
	out := make(map[string]IDRange)
	if n := len(created.Users); n > 0 {
		out[models.TableUsers] = IDRange{First: created.Users[0].ID, Last: created.Users[n-1].ID}
	}
	if n := len(created.Posts); n > 0 {
		out[models.TablePosts] = IDRange{First: created.Posts[0].ID, Last: created.Posts[n-1].ID}
	}
	if n := len(sim.Events); n > 0 {
		out[models.TableEvents] = IDRange{First: sim.Events[0].ID, Last: sim.Events[n-1].ID}
	}
	return out
}

func (r *Runner) traceMutation(runID string, mut *mutation.Result) {
	if r.trace == nil {
		return
	}
	event := map[string]any{
		"event":        "mutation",
		"run_id":       runID,
		"user_deletes": len(mut.UserDeletes),
		"post_deletes": len(mut.PostDeletes),
		"user_updates": len(mut.UserUpdates),
		"post_updates": len(mut.PostUpdates),
	}
	if r.trace.Verbose() {
		event["deleted_users"] = deletionIDs(mut.UserDeletes)
		event["deleted_posts"] = deletionIDs(mut.PostDeletes)
		updated := make(map[models.ID][]models.UserAttr, len(mut.UserUpdates))
		for _, u := range mut.UserUpdates {
			updated[u.ID] = u.Attrs()
		}
		event["updated_users"] = updated
	}
	r.trace.Record(event)
}

func (r *Runner) traceSessions(runID string, sim *session.Result) {
	if r.trace == nil {
		return
	}
	skipped, dropped := 0, 0
	for _, s := range sim.Sessions {
		skipped += s.Skipped
		dropped += s.LikesDropped
	}
	event := map[string]any{
		"event":         "sessions",
		"run_id":        runID,
		"sessions":      len(sim.Sessions),
		"events":        len(sim.Events),
		"skipped_posts": skipped,
		"likes_dropped": dropped,
	}
	if r.trace.Verbose() {
		event["detail"] = sim.Sessions
	}
	r.trace.Record(event)
}

func deletionIDs(ds []models.Deletion) []models.ID {
	out := make([]models.ID, len(ds))
	for i, d := range ds {
		out[i] = d.ID
	}
	return out
}
