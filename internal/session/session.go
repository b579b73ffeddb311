// Package session simulates the browsing sessions of one simulated day and
// turns them into view and like events.
//
// Every event is causally valid when emitted: the user and the post both
// exist and are living at the event time, and each like follows a view of the
// same post by the same user.
package session

import (
	"math"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/nvandessel/streamsim/internal/constants"
	"github.com/nvandessel/streamsim/internal/idgen"
	"github.com/nvandessel/streamsim/internal/models"
	"github.com/nvandessel/streamsim/internal/population"
	"github.com/nvandessel/streamsim/internal/sampling"
)

// Config holds session simulation parameters.
type Config struct {
	// ResetActiveUsers is the number of participants on a reset day.
	ResetActiveUsers int

	// ActiveFraction of living users are active on a regular day, plus a
	// uniform jitter in [JitterMin, JitterMax].
	ActiveFraction float64
	JitterMin      int
	JitterMax      int

	// MaxEventsPerUser caps the posts one session requests.
	MaxEventsPerUser int

	// LikeRatio is the probability that a view is followed by a like.
	LikeRatio float64

	// Dwell is the session length contributed by each requested post.
	Dwell time.Duration

	// MaxLikeDelay bounds the gap between a view and its like.
	MaxLikeDelay time.Duration
}

// DefaultConfig returns the reference session configuration.
func DefaultConfig() Config {
	return Config{
		ResetActiveUsers: constants.ResetActiveUsers,
		ActiveFraction:   constants.DefaultActiveFraction,
		JitterMin:        constants.DefaultJitterMin,
		JitterMax:        constants.DefaultJitterMax,
		MaxEventsPerUser: constants.DefaultMaxEventsPerUser,
		LikeRatio:        constants.DefaultLikeRatio,
		Dwell:            constants.DefaultSessionDwell,
		MaxLikeDelay:     constants.DefaultMaxLikeDelay,
	}
}

// Session records what one active user did.
type Session struct {
	UserID    models.ID `json:"user_id"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Requested int       `json:"requested"`
	Visited   int       `json:"visited"`
	Skipped   int       `json:"skipped"`
	Likes     int       `json:"likes"`

	// LikesDropped counts likes that would have landed after the day ended.
	LikesDropped int `json:"likes_dropped"`
}

// Result is the output of one day's simulation.
type Result struct {
	Sessions []Session
	Events   []models.Event
}

// Simulator produces events for a population.
type Simulator struct {
	cfg Config
	rng *rand.Rand
	ids idgen.Allocator
}

// New returns a simulator drawing from rng and naming events with ids.
func New(cfg Config, rng *rand.Rand, ids idgen.Allocator) *Simulator {
	return &Simulator{cfg: cfg, rng: rng, ids: ids}
}

// ActiveCount returns how many of living users take part in a session.
func (s *Simulator) ActiveCount(living int, reset bool) int {
	if living <= 0 {
		return 0
	}
	n := s.cfg.ResetActiveUsers
	if !reset {
		n = int(math.Floor(s.cfg.ActiveFraction*float64(living))) + sampling.IntBetween(s.rng, s.cfg.JitterMin, s.cfg.JitterMax)
	}
	return max(0, min(n, living))
}

// Simulate runs the sessions of window w against the population's living
// rows. Events come back sorted by timestamp with ids allocated in that order.
func (s *Simulator) Simulate(pop *population.Population, w models.Window, reset bool) *Result {
	users := pop.LivingUsers()
	posts := pop.LivingPosts()
	res := &Result{}

	for _, i := range sampling.Choose(s.rng, len(users), s.ActiveCount(len(users), reset)) {
		sess, events := s.session(users[i], posts, w)
		res.Sessions = append(res.Sessions, sess)
		res.Events = append(res.Events, events...)
	}

	slices.SortStableFunc(res.Events, func(a, b models.Event) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	for i := range res.Events {
		res.Events[i].ID = s.ids.Next()
	}
	return res
}

func (s *Simulator) session(u *models.User, posts []*models.Post, w models.Window) (Session, []models.Event) {
	n := sampling.IntBetween(s.rng, 1, s.cfg.MaxEventsPerUser)
	start := sampling.Instant(s.rng, later(w.Start, u.CreatedAt), w.End)
	end := start.Add(time.Duration(n) * s.cfg.Dwell)
	if end.After(w.End) {
		end = w.End
	}
	sess := Session{UserID: u.ID, Start: start, End: end, Requested: n}

	var candidates []*models.Post
	for _, p := range posts {
		if p.CreatedAt.Before(start) {
			candidates = append(candidates, p)
		}
	}

	var events []models.Event
	for _, j := range sampling.Choose(s.rng, len(candidates), n) {
		p := candidates[j]
		lo := later(start, p.CreatedAt)
		if lo.After(end) {
			sess.Skipped++
			continue
		}
		view := sampling.Instant(s.rng, lo, end)
		events = append(events, models.Event{UserID: u.ID, PostID: p.ID, Timestamp: view, Type: models.EventView})
		sess.Visited++

		if !sampling.Chance(s.rng, s.cfg.LikeRatio) {
			continue
		}
		like := view.Add(sampling.Offset(s.rng, constants.Precision, s.cfg.MaxLikeDelay))
		if like.After(w.End) {
			sess.LikesDropped++
			continue
		}
		events = append(events, models.Event{UserID: u.ID, PostID: p.ID, Timestamp: like, Type: models.EventLike})
		sess.Likes++
	}
	return sess, events
}

func later(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}
