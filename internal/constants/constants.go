// Package constants provides named constants used throughout the streamsim codebase.
// This centralizes the reference behavior of the simulator so config defaults
// and tests agree on one set of numbers.
package constants

import "time"

// Calendar constants
const (
	// EpochDay is the simulated day a fresh or reset store starts from.
	// It lies far in the future so generated timestamps never collide with
	// real-world event data in the surrounding pipeline.
	EpochDay = "2100-01-01"

	// DayLayout is the textual layout of a simulated day.
	DayLayout = "2006-01-02"

	// Precision is the resolution of every generated instant.
	Precision = time.Microsecond
)

// Mutation constants
const (
	// DefaultUpdateFraction is the share of living rows updated per cycle.
	DefaultUpdateFraction = 0.05

	// DefaultDeleteFraction is the share of living rows soft-deleted per cycle.
	DefaultDeleteFraction = 0.01

	// DefaultJitterMin and DefaultJitterMax bound the uniform jitter added to
	// mutation and session counts so small corpora still change every cycle.
	DefaultJitterMin = 1
	DefaultJitterMax = 5
)

// Creation constants
const (
	// ResetUserCount and ResetPostCount are the insert counts of a reset cycle.
	ResetUserCount = 200
	ResetPostCount = 200

	// DefaultNewUsersMin and DefaultNewUsersMax bound new users per regular cycle.
	DefaultNewUsersMin = 50
	DefaultNewUsersMax = 100

	// DefaultPostWords is the number of words in generated post text.
	DefaultPostWords = 5
)

// Session constants
const (
	// ResetActiveUsers is the number of session participants in a reset cycle.
	ResetActiveUsers = 10

	// DefaultActiveFraction is the share of living users active per cycle.
	// It also scales the number of new posts.
	DefaultActiveFraction = 0.1

	// DefaultMaxEventsPerUser caps the posts one session can visit.
	DefaultMaxEventsPerUser = 10

	// DefaultLikeRatio is the probability that a view is followed by a like.
	DefaultLikeRatio = 0.1

	// DefaultSessionDwell is the session length contributed by each visited post.
	DefaultSessionDwell = 3 * time.Minute

	// DefaultMaxLikeDelay bounds the gap between a view and its like.
	DefaultMaxLikeDelay = 2 * time.Minute
)

// Identifier constants
const (
	// TokenLength is the length of random token ids. With a 62-symbol
	// alphabet the space holds 62^16 (about 4.8e28) values; collisions are
	// not checked.
	TokenLength = 16

	// TokenAlphabet is the symbol set random token ids are drawn from.
	TokenAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
)

// Storage constants
const (
	// DataDirName is the per-project directory holding the database, traces and backups.
	DataDirName = ".streamsim"

	// DatabaseFile is the SQLite database file inside the data directory.
	DatabaseFile = "streamsim.db"

	// DefaultKeepBackups is how many pre-reset archives are retained.
	DefaultKeepBackups = 5
)
