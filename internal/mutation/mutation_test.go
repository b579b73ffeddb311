package mutation

import (
	"fmt"
	"testing"
	"time"

	"github.com/nvandessel/streamsim/internal/ledger"
	"github.com/nvandessel/streamsim/internal/models"
	"github.com/nvandessel/streamsim/internal/population"
	"github.com/nvandessel/streamsim/internal/sampling"
	"github.com/nvandessel/streamsim/internal/values"
)

var defaultConfig = Config{UpdateFraction: 0.05, DeleteFraction: 0.01, JitterMin: 1, JitterMax: 5}

func seededPopulation(nUsers, nPosts int, at time.Time) *population.Population {
	users := make([]models.User, nUsers)
	for i := range users {
		users[i] = models.User{ID: models.ID(fmt.Sprint(i + 1)), LastName: "L", CreatedAt: at, UpdatedAt: at}
	}
	posts := make([]models.Post, nPosts)
	for i := range posts {
		posts[i] = models.Post{ID: models.ID(fmt.Sprint(i + 1)), UserID: "1", Text: "t", CreatedAt: at, UpdatedAt: at}
	}
	return population.New(users, posts)
}

func TestRowCount(t *testing.T) {
	rng := sampling.New(1)
	tests := []struct {
		name     string
		n        int
		fraction float64
		lo, hi   int
	}{
		{"empty table", 0, 0.05, 0, 0},
		{"100 rows at 5%", 100, 0.05, 6, 10},
		{"100 rows at 1%", 100, 0.01, 2, 6},
		{"small table floors to one", 10, 0.05, 2, 6},
		{"capped at n", 3, 0.05, 2, 3},
		{"single row", 1, 0.5, 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i := 0; i < 200; i++ {
				got := RowCount(rng, tt.n, tt.fraction, 1, 5)
				if got < tt.lo || got > tt.hi {
					t.Fatalf("RowCount(%d, %v) = %d, want [%d, %d]", tt.n, tt.fraction, got, tt.lo, tt.hi)
				}
			}
		})
	}
}

func TestApplyCountsAndOrdering(t *testing.T) {
	prev := ledger.Window(ledger.Epoch())
	w := ledger.Window(ledger.Epoch().AddDate(0, 0, 1))
	pop := seededPopulation(100, 100, prev.Start.Add(time.Hour))
	rng := sampling.New(42)
	e := New(defaultConfig, rng, values.NewFaker(sampling.Fork(rng)))

	res, err := e.Apply(pop, w)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	// 100 living users at 1%: 1 + U(1,5) deletions
	if n := len(res.UserDeletes); n < 2 || n > 6 {
		t.Errorf("user deletions = %d, want [2, 6]", n)
	}
	// sized from the 100 users living before the deletions
	if n := len(res.UserUpdates); n < 6 || n > 10 {
		t.Errorf("user updates = %d, want [6, 10]", n)
	}
	living := 100 - len(res.UserDeletes)

	deleted := make(map[models.ID]bool)
	for _, d := range res.UserDeletes {
		if deleted[d.ID] {
			t.Errorf("user %s deleted twice", d.ID)
		}
		deleted[d.ID] = true
		if !w.Contains(d.DeletedAt) {
			t.Errorf("deleted_at %s outside window", d.DeletedAt)
		}
	}
	for _, u := range res.UserUpdates {
		if deleted[u.ID] {
			t.Errorf("user %s updated after deletion in the same cycle", u.ID)
		}
		if len(u.Attrs()) == 0 {
			t.Errorf("update of %s changes no attribute", u.ID)
		}
		if !w.Contains(u.UpdatedAt) {
			t.Errorf("updated_at %s outside window", u.UpdatedAt)
		}
	}
	for _, p := range res.PostUpdates {
		if p.Text == "" {
			t.Errorf("post %s updated with empty text", p.ID)
		}
	}
	if got := len(pop.LivingUsers()); got != living {
		t.Errorf("living users = %d, want %d", got, living)
	}
}

func TestApplyUpdateCountUsesStartingPopulation(t *testing.T) {
	w := ledger.Window(ledger.Epoch().AddDate(0, 0, 1))
	seen := make(map[int]bool)
	for seed := uint64(0); seed < 200; seed++ {
		pop := seededPopulation(100, 0, ledger.Epoch())
		rng := sampling.New(seed)
		res, err := New(defaultConfig, rng, values.NewFaker(sampling.Fork(rng))).Apply(pop, w)
		if err != nil {
			t.Fatalf("seed %d: Apply() error = %v", seed, err)
		}
		n := len(res.UserUpdates)
		if n < 6 || n > 10 {
			t.Fatalf("seed %d: user updates = %d, want [6, 10]", seed, n)
		}
		seen[n] = true
	}
	for n := 6; n <= 10; n++ {
		if !seen[n] {
			t.Errorf("update count %d never drawn over 200 seeds", n)
		}
	}
}

func TestApplyUpdatesCappedBySurvivors(t *testing.T) {
	cfg := Config{UpdateFraction: 1, DeleteFraction: 0.5, JitterMin: 1, JitterMax: 1}
	pop := seededPopulation(4, 0, ledger.Epoch())
	rng := sampling.New(3)
	res, err := New(cfg, rng, values.NewFaker(sampling.Fork(rng))).Apply(pop, ledger.Window(ledger.Epoch().AddDate(0, 0, 1)))
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	// 3 of 4 deleted, 4 updates wanted, one survivor left to update
	if len(res.UserDeletes) != 3 {
		t.Fatalf("user deletions = %d, want 3", len(res.UserDeletes))
	}
	if len(res.UserUpdates) != 1 {
		t.Errorf("user updates = %d, want 1", len(res.UserUpdates))
	}
}

func TestApplyRespectsLastUpdate(t *testing.T) {
	w := ledger.Window(ledger.Epoch())
	late := w.End.Add(-time.Minute)
	pop := seededPopulation(5, 0, late)
	rng := sampling.New(9)
	e := New(defaultConfig, rng, values.NewFaker(sampling.Fork(rng)))

	res, err := e.Apply(pop, w)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	for _, d := range res.UserDeletes {
		if d.DeletedAt.Before(late) {
			t.Errorf("deleted_at %s before updated_at %s", d.DeletedAt, late)
		}
	}
	for _, u := range res.UserUpdates {
		if u.UpdatedAt.Before(late) {
			t.Errorf("updated_at %s moved backwards from %s", u.UpdatedAt, late)
		}
	}
}

func TestApplyEmptyPopulation(t *testing.T) {
	rng := sampling.New(1)
	e := New(defaultConfig, rng, values.NewFaker(rng))
	res, err := e.Apply(population.New(nil, nil), ledger.Window(ledger.Epoch()))
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if len(res.UserDeletes)+len(res.PostDeletes)+len(res.UserUpdates)+len(res.PostUpdates) != 0 {
		t.Errorf("Apply() on empty population produced commands: %+v", res)
	}
}

func TestApplyDeterministic(t *testing.T) {
	run := func() *Result {
		w := ledger.Window(ledger.Epoch().AddDate(0, 0, 1))
		pop := seededPopulation(60, 40, ledger.Epoch())
		rng := sampling.New(77)
		res, err := New(defaultConfig, rng, values.NewFaker(sampling.Fork(rng))).Apply(pop, w)
		if err != nil {
			t.Fatalf("Apply() error = %v", err)
		}
		return res
	}
	a, b := run(), run()
	if fmt.Sprint(a.UserDeletes, a.PostDeletes) != fmt.Sprint(b.UserDeletes, b.PostDeletes) {
		t.Error("deletions differ across equal seeds")
	}
	if len(a.UserUpdates) != len(b.UserUpdates) || len(a.PostUpdates) != len(b.PostUpdates) {
		t.Fatal("update counts differ across equal seeds")
	}
	for i := range a.PostUpdates {
		if a.PostUpdates[i] != b.PostUpdates[i] {
			t.Errorf("post update %d differs: %+v vs %+v", i, a.PostUpdates[i], b.PostUpdates[i])
		}
	}
}
