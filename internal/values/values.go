// Package values supplies the realistic-looking attribute values the engines
// write into new and mutated rows.
package values

import (
	"math/rand/v2"
	"strings"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/nvandessel/streamsim/internal/constants"
)

// Provider generates attribute values. Implementations must be deterministic
// for a given generator.
type Provider interface {
	FirstName() string
	LastName() string
	CountryCode() string
	FavoriteColor() string
	PostText() string
}

// Factory builds a Provider from a cycle generator.
type Factory func(rng *rand.Rand) Provider

// Faker is the gofakeit-backed Provider.
type Faker struct {
	f     *gofakeit.Faker
	words int
}

// NewFaker returns a Provider drawing from rng. The faker is not locked: a
// cycle is single-threaded.
func NewFaker(rng *rand.Rand) *Faker {
	return &Faker{f: gofakeit.NewFaker(rng, false), words: constants.DefaultPostWords}
}

// FakerFactory is the default Factory.
func FakerFactory(rng *rand.Rand) Provider { return NewFaker(rng) }

func (p *Faker) FirstName() string     { return p.f.FirstName() }
func (p *Faker) LastName() string      { return p.f.LastName() }
func (p *Faker) CountryCode() string   { return p.f.CountryAbr() }
func (p *Faker) FavoriteColor() string { return p.f.SafeColor() }

// PostText returns a short space-separated run of lorem words.
func (p *Faker) PostText() string {
	words := make([]string, p.words)
	for i := range words {
		words[i] = p.f.LoremIpsumWord()
	}
	return strings.Join(words, " ")
}
