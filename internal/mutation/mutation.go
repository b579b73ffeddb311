// Package mutation applies the bounded random churn of one cycle: soft
// deletes first, then attribute updates, over users and then posts.
package mutation

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/nvandessel/streamsim/internal/models"
	"github.com/nvandessel/streamsim/internal/population"
	"github.com/nvandessel/streamsim/internal/sampling"
	"github.com/nvandessel/streamsim/internal/values"
)

// Config bounds how many rows a cycle touches.
type Config struct {
	UpdateFraction float64
	DeleteFraction float64
	JitterMin      int
	JitterMax      int
}

// Result holds the commands produced by one cycle, in application order.
type Result struct {
	UserDeletes []models.Deletion
	PostDeletes []models.Deletion
	UserUpdates []models.UserUpdate
	PostUpdates []models.PostUpdate
}

// Engine mutates a population.
type Engine struct {
	cfg    Config
	rng    *rand.Rand
	values values.Provider
}

// New returns an engine drawing from rng and vals.
func New(cfg Config, rng *rand.Rand, vals values.Provider) *Engine {
	return &Engine{cfg: cfg, rng: rng, values: vals}
}

// RowCount returns how many of n living rows a step touches:
// min(n, max(1, floor(n*fraction)) + U(jitterMin, jitterMax)), and 0 for an
// empty table.
func RowCount(rng *rand.Rand, n int, fraction float64, jitterMin, jitterMax int) int {
	if n <= 0 {
		return 0
	}
	base := int(math.Floor(float64(n) * fraction))
	if base < 1 {
		base = 1
	}
	return min(n, base+sampling.IntBetween(rng, jitterMin, jitterMax))
}

// Apply runs delete users, delete posts, update users, update posts against
// pop within w. Both counts of a table are sized from the rows living when
// the cycle starts; update targets are then drawn from the rows that survived
// the deletions, capped at how many there are.
func (e *Engine) Apply(pop *population.Population, w models.Window) (*Result, error) {
	res := &Result{}

	users := pop.LivingUsers()
	posts := pop.LivingPosts()
	userDeletes := e.count(len(users), e.cfg.DeleteFraction)
	userUpdates := e.count(len(users), e.cfg.UpdateFraction)
	postDeletes := e.count(len(posts), e.cfg.DeleteFraction)
	postUpdates := e.count(len(posts), e.cfg.UpdateFraction)

	for _, i := range sampling.Choose(e.rng, len(users), userDeletes) {
		u := users[i]
		d := models.Deletion{ID: u.ID, DeletedAt: e.stamp(w, u.UpdatedAt)}
		if err := pop.DeleteUser(d); err != nil {
			return nil, err
		}
		res.UserDeletes = append(res.UserDeletes, d)
	}

	for _, i := range sampling.Choose(e.rng, len(posts), postDeletes) {
		p := posts[i]
		d := models.Deletion{ID: p.ID, DeletedAt: e.stamp(w, p.UpdatedAt)}
		if err := pop.DeletePost(d); err != nil {
			return nil, err
		}
		res.PostDeletes = append(res.PostDeletes, d)
	}

	users = pop.LivingUsers()
	for _, i := range sampling.Choose(e.rng, len(users), min(userUpdates, len(users))) {
		cmd := e.userUpdate(users[i], w)
		if err := pop.UpdateUser(cmd); err != nil {
			return nil, err
		}
		res.UserUpdates = append(res.UserUpdates, cmd)
	}

	posts = pop.LivingPosts()
	for _, i := range sampling.Choose(e.rng, len(posts), min(postUpdates, len(posts))) {
		p := posts[i]
		cmd := models.PostUpdate{
			ID:        p.ID,
			Text:      e.values.PostText(),
			UpdatedAt: e.stamp(w, p.UpdatedAt),
		}
		if err := pop.UpdatePost(cmd); err != nil {
			return nil, err
		}
		res.PostUpdates = append(res.PostUpdates, cmd)
	}

	return res, nil
}

func (e *Engine) count(n int, fraction float64) int {
	return RowCount(e.rng, n, fraction, e.cfg.JitterMin, e.cfg.JitterMax)
}

// stamp draws a mutation instant no earlier than the row's last update.
func (e *Engine) stamp(w models.Window, updatedAt time.Time) time.Time {
	lo := w.Start
	if updatedAt.After(lo) {
		lo = updatedAt
	}
	return sampling.Instant(e.rng, lo, w.End)
}

func (e *Engine) userUpdate(u *models.User, w models.Window) models.UserUpdate {
	attrs := models.MutableUserAttrs
	k := sampling.IntBetween(e.rng, 1, len(attrs))
	cmd := models.UserUpdate{ID: u.ID}
	for _, i := range sampling.Choose(e.rng, len(attrs), k) {
		switch attrs[i] {
		case models.UserLastName:
			v := e.values.LastName()
			cmd.LastName = &v
		case models.UserCountryCode:
			v := e.values.CountryCode()
			cmd.CountryCode = &v
		case models.UserFavoriteColor:
			v := e.values.FavoriteColor()
			cmd.FavoriteColor = &v
		}
	}
	cmd.UpdatedAt = e.stamp(w, u.UpdatedAt)
	return cmd
}
