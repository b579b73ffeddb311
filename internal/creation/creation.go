// Package creation inserts the new users and posts of a cycle.
package creation

import (
	"math"
	"math/rand/v2"

	"github.com/nvandessel/streamsim/internal/idgen"
	"github.com/nvandessel/streamsim/internal/models"
	"github.com/nvandessel/streamsim/internal/population"
	"github.com/nvandessel/streamsim/internal/sampling"
	"github.com/nvandessel/streamsim/internal/simerr"
	"github.com/nvandessel/streamsim/internal/values"
)

// Config sets how many rows a cycle creates.
type Config struct {
	ResetUsers     int
	ResetPosts     int
	NewUsersMin    int
	NewUsersMax    int
	ActiveFraction float64
}

// Result holds the rows created in one cycle, in creation order.
type Result struct {
	Users []models.User
	Posts []models.Post
}

// Engine creates rows and registers them in the population.
type Engine struct {
	cfg     Config
	rng     *rand.Rand
	values  values.Provider
	userIDs idgen.Allocator
	postIDs idgen.Allocator
}

// New returns a creation engine.
func New(cfg Config, rng *rand.Rand, vals values.Provider, userIDs, postIDs idgen.Allocator) *Engine {
	return &Engine{cfg: cfg, rng: rng, values: vals, userIDs: userIDs, postIDs: postIDs}
}

// Create adds the cycle's users, then its posts. Post owners are drawn from
// the living users after user creation, so a new user may own a new post.
func (e *Engine) Create(pop *population.Population, w models.Window, reset bool) (*Result, error) {
	res := &Result{}

	nUsers := e.cfg.ResetUsers
	if !reset {
		nUsers = sampling.IntBetween(e.rng, e.cfg.NewUsersMin, e.cfg.NewUsersMax)
	}
	for i := 0; i < nUsers; i++ {
		created := sampling.Instant(e.rng, w.Start, w.End)
		u := models.User{
			ID:            e.userIDs.Next(),
			FirstName:     e.values.FirstName(),
			LastName:      e.values.LastName(),
			CountryCode:   e.values.CountryCode(),
			FavoriteColor: e.values.FavoriteColor(),
			CreatedAt:     created,
			UpdatedAt:     sampling.Instant(e.rng, created, w.End),
		}
		if err := pop.AddUser(u); err != nil {
			return nil, err
		}
		res.Users = append(res.Users, u)
	}

	owners := pop.LivingUsers()
	nPosts := e.cfg.ResetPosts
	if !reset {
		nPosts = int(math.Floor((1 + e.rng.Float64()) * e.cfg.ActiveFraction * float64(len(owners))))
	}
	if nPosts > 0 && len(owners) == 0 {
		return nil, simerr.Consistency("creation.posts", "cannot create %d posts: no living users", nPosts)
	}
	for i := 0; i < nPosts; i++ {
		owner := owners[e.rng.IntN(len(owners))]
		lo := w.Start
		if owner.CreatedAt.After(lo) {
			lo = owner.CreatedAt
		}
		created := sampling.Instant(e.rng, lo, w.End)
		p := models.Post{
			ID:        e.postIDs.Next(),
			UserID:    owner.ID,
			Text:      e.values.PostText(),
			CreatedAt: created,
			UpdatedAt: sampling.Instant(e.rng, created, w.End),
		}
		if err := pop.AddPost(p); err != nil {
			return nil, err
		}
		res.Posts = append(res.Posts, p)
	}

	return res, nil
}
