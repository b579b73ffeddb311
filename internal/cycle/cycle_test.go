package cycle

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/nvandessel/streamsim/internal/config"
	"github.com/nvandessel/streamsim/internal/ledger"
	"github.com/nvandessel/streamsim/internal/models"
	"github.com/nvandessel/streamsim/internal/simerr"
	"github.com/nvandessel/streamsim/internal/store"
)

var wallClock = time.Date(2026, 10, 19, 8, 30, 0, 0, time.UTC)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Resolve(t.TempDir())
	return cfg
}

func seed(v uint64) *uint64 { return &v }

func newRunner(repo Repository, cfg *config.Config, opts ...Option) *Runner {
	opts = append([]Option{WithClock(func() time.Time { return wallClock })}, opts...)
	return New(repo, cfg, opts...)
}

func populatedSnapshot(n int) *store.Snapshot {
	epoch := ledger.Epoch()
	snap := &store.Snapshot{
		IDStrategy: "sequential",
		Watermarks: map[string]int64{models.TableUsers: int64(n), models.TablePosts: int64(n), models.TableEvents: 40},
	}
	for i := 1; i <= n; i++ {
		id := models.ID(fmt.Sprint(i))
		at := epoch.Add(time.Duration(i) * time.Minute)
		snap.Users = append(snap.Users, models.User{ID: id, FirstName: "F", LastName: "L", CountryCode: "US", FavoriteColor: "red", CreatedAt: at, UpdatedAt: at})
		snap.Posts = append(snap.Posts, models.Post{ID: id, UserID: id, Text: "a b c d e", CreatedAt: at, UpdatedAt: at})
	}
	return snap
}

func TestRunEmptyLedgerForcesReset(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := NewMockRepository(ctrl)

	var got *store.CycleWrites
	repo.EXPECT().LatestSimulatedDay(gomock.Any()).Return(time.Time{}, false, nil)
	repo.EXPECT().Commit(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, w *store.CycleWrites) error {
		got = w
		return nil
	})

	res, err := newRunner(repo, testConfig(t)).Run(context.Background(), Options{Seed: seed(42)})
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.True(t, res.Reset)
	assert.True(t, got.Reset)
	assert.Equal(t, ledger.Epoch(), res.Day)
	assert.Equal(t, uint64(42), res.Seed)
	assert.Len(t, got.NewUsers, 200)
	assert.Len(t, got.NewPosts, 200)
	assert.Empty(t, got.UserDeletes)
	assert.Empty(t, got.UserUpdates)
	assert.Equal(t, "sequential", got.IDStrategy)
	assert.Equal(t, IDRange{First: "1", Last: "200"}, res.Inserted[models.TableUsers])
	assert.Equal(t, 10, res.Sessions)

	require.Len(t, got.Ledger, 3)
	for i, table := range models.Tables {
		e := got.Ledger[i]
		assert.Equal(t, table, e.Table)
		assert.Equal(t, ledger.Epoch(), e.SimDay)
		assert.Equal(t, wallClock, e.RecordedAt)
		assert.Equal(t, res.RunID, e.RunID)
		assert.Equal(t, uint64(42), e.Seed)
	}
	assert.Equal(t, len(got.Events), got.Ledger[2].Counts.Inserted)
}

func TestRunRegularDay(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := NewMockRepository(ctrl)

	var got *store.CycleWrites
	repo.EXPECT().LatestSimulatedDay(gomock.Any()).Return(ledger.Epoch(), true, nil)
	repo.EXPECT().Snapshot(gomock.Any()).Return(populatedSnapshot(100), nil)
	repo.EXPECT().Commit(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, w *store.CycleWrites) error {
		got = w
		return nil
	})

	res, err := newRunner(repo, testConfig(t)).Run(context.Background(), Options{Seed: seed(7)})
	require.NoError(t, err)

	assert.False(t, res.Reset)
	assert.False(t, got.Reset)
	assert.Equal(t, ledger.Epoch().AddDate(0, 0, 1), res.Day)

	users := res.Counts[models.TableUsers]
	assert.GreaterOrEqual(t, users.Inserted, 50)
	assert.LessOrEqual(t, users.Inserted, 100)
	assert.GreaterOrEqual(t, users.Deleted, 2)
	assert.LessOrEqual(t, users.Deleted, 6)
	assert.Equal(t, models.ID("101"), got.NewUsers[0].ID)
	assert.Equal(t, models.ID("41"), res.Inserted[models.TableEvents].First)

	w := ledger.Window(res.Day)
	for _, d := range got.UserDeletes {
		assert.True(t, w.Contains(d.DeletedAt))
	}
	deleted := map[models.ID]bool{}
	for _, d := range got.UserDeletes {
		deleted[d.ID] = true
	}
	for _, u := range got.UserUpdates {
		assert.False(t, deleted[u.ID], "user %s updated and deleted in one cycle", u.ID)
	}
	for _, e := range got.Events {
		assert.False(t, deleted[e.UserID] && e.Timestamp.After(w.Start), "event by deleted user %s", e.UserID)
	}
}

func TestRunSameSeedSameWrites(t *testing.T) {
	run := func() *store.CycleWrites {
		ctrl := gomock.NewController(t)
		repo := NewMockRepository(ctrl)
		var got *store.CycleWrites
		repo.EXPECT().LatestSimulatedDay(gomock.Any()).Return(ledger.Epoch(), true, nil)
		repo.EXPECT().Snapshot(gomock.Any()).Return(populatedSnapshot(60), nil)
		repo.EXPECT().Commit(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, w *store.CycleWrites) error {
			got = w
			return nil
		})
		_, err := newRunner(repo, testConfig(t)).Run(context.Background(), Options{Seed: seed(1234)})
		require.NoError(t, err)
		return got
	}
	a, b := run(), run()
	assert.Equal(t, a.NewUsers, b.NewUsers)
	assert.Equal(t, a.NewPosts, b.NewPosts)
	assert.Equal(t, a.Events, b.Events)
	assert.Equal(t, a.UserUpdates, b.UserUpdates)
	assert.Equal(t, a.PostDeletes, b.PostDeletes)
}

func TestRunStrategyMismatch(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := NewMockRepository(ctrl)
	snap := populatedSnapshot(5)
	snap.IDStrategy = "token"
	repo.EXPECT().LatestSimulatedDay(gomock.Any()).Return(ledger.Epoch(), true, nil)
	repo.EXPECT().Snapshot(gomock.Any()).Return(snap, nil)

	_, err := newRunner(repo, testConfig(t)).Run(context.Background(), Options{Seed: seed(1)})
	require.Error(t, err)
	assert.ErrorIs(t, err, simerr.ErrConfiguration)
}

func TestRunResetMaySwitchStrategy(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := NewMockRepository(ctrl)
	cfg := testConfig(t)
	cfg.Simulation.IDStrategy = "uuid"

	repo.EXPECT().LatestSimulatedDay(gomock.Any()).Return(ledger.Epoch().AddDate(0, 0, 4), true, nil)
	repo.EXPECT().Commit(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, w *store.CycleWrites) error {
		assert.Equal(t, "uuid", w.IDStrategy)
		assert.Len(t, string(w.NewUsers[0].ID), 36)
		return nil
	})

	res, err := newRunner(repo, cfg).Run(context.Background(), Options{FullReset: true, Seed: seed(1)})
	require.NoError(t, err)
	assert.Equal(t, ledger.Epoch(), res.Day)
}

func TestRunInvalidConfigTouchesNothing(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := NewMockRepository(ctrl)
	cfg := testConfig(t)
	cfg.Simulation.DeleteFraction = 2

	_, err := newRunner(repo, cfg).Run(context.Background(), Options{})
	assert.ErrorIs(t, err, simerr.ErrConfiguration)
}

func TestRunLedgerReadFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := NewMockRepository(ctrl)
	boom := simerr.Persistence("store.latest_day", errors.New("disk gone"))
	repo.EXPECT().LatestSimulatedDay(gomock.Any()).Return(time.Time{}, false, boom)

	_, err := newRunner(repo, testConfig(t)).Run(context.Background(), Options{Seed: seed(1)})
	assert.ErrorIs(t, err, simerr.ErrPersistence)
}

func TestRunCommitFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := NewMockRepository(ctrl)
	repo.EXPECT().LatestSimulatedDay(gomock.Any()).Return(time.Time{}, false, nil)
	repo.EXPECT().Commit(gomock.Any(), gomock.Any()).Return(simerr.Persistence("store.commit", errors.New("locked")))

	res, err := newRunner(repo, testConfig(t)).Run(context.Background(), Options{Seed: seed(1)})
	assert.Nil(t, res)
	assert.ErrorIs(t, err, simerr.ErrPersistence)
	assert.Contains(t, err.Error(), "2100-01-01")
}

func TestRunCancelledBeforeCommit(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := NewMockRepository(ctrl)
	ctx, cancel := context.WithCancel(context.Background())
	repo.EXPECT().LatestSimulatedDay(gomock.Any()).DoAndReturn(func(context.Context) (time.Time, bool, error) {
		cancel()
		return time.Time{}, false, nil
	})

	_, err := newRunner(repo, testConfig(t)).Run(ctx, Options{Seed: seed(1)})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunDrawsSeed(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := NewMockRepository(ctrl)
	var got *store.CycleWrites
	repo.EXPECT().LatestSimulatedDay(gomock.Any()).Return(time.Time{}, false, nil)
	repo.EXPECT().Commit(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, w *store.CycleWrites) error {
		got = w
		return nil
	})

	res, err := newRunner(repo, testConfig(t)).Run(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, res.Seed, got.Ledger[0].Seed)
}

type fakeArchiver struct {
	calls int
	err   error
}

func (a *fakeArchiver) Archive(context.Context) (string, error) {
	a.calls++
	return "/tmp/archive.bak", a.err
}

func TestRunArchivesBeforeReset(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := NewMockRepository(ctrl)
	arch := &fakeArchiver{}

	repo.EXPECT().LatestSimulatedDay(gomock.Any()).Return(ledger.Epoch(), true, nil)
	repo.EXPECT().Commit(gomock.Any(), gomock.Any()).Return(nil)

	res, err := newRunner(repo, testConfig(t), WithArchiver(arch)).Run(context.Background(), Options{FullReset: true, Seed: seed(3)})
	require.NoError(t, err)
	assert.Equal(t, 1, arch.calls)
	assert.Equal(t, "/tmp/archive.bak", res.Archive)
}

func TestRunSkipsArchiveOnEmptyLedger(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := NewMockRepository(ctrl)
	arch := &fakeArchiver{}

	repo.EXPECT().LatestSimulatedDay(gomock.Any()).Return(time.Time{}, false, nil)
	repo.EXPECT().Commit(gomock.Any(), gomock.Any()).Return(nil)

	_, err := newRunner(repo, testConfig(t), WithArchiver(arch)).Run(context.Background(), Options{FullReset: true, Seed: seed(3)})
	require.NoError(t, err)
	assert.Zero(t, arch.calls)
}

func TestRunArchiveFailureAbortsReset(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := NewMockRepository(ctrl)
	arch := &fakeArchiver{err: errors.New("disk full")}

	repo.EXPECT().LatestSimulatedDay(gomock.Any()).Return(ledger.Epoch(), true, nil)

	_, err := newRunner(repo, testConfig(t), WithArchiver(arch)).Run(context.Background(), Options{FullReset: true, Seed: seed(3)})
	assert.ErrorContains(t, err, "disk full")
}
