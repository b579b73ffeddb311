// Package idgen allocates entity identifiers.
//
// A store uses exactly one Strategy for its whole life (until a reset):
//   - sequential: a per-table counter continued from the highest stored id
//   - token: 16 random alphanumeric symbols
//   - uuid: random (version 4) UUIDs
//
// Random strategies read from the cycle generator so ids are reproducible
// under a seed.
package idgen

import (
	"fmt"
	"io"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/nvandessel/streamsim/internal/constants"
	"github.com/nvandessel/streamsim/internal/models"
	"github.com/nvandessel/streamsim/internal/simerr"
)

// Strategy names an allocation scheme.
type Strategy string

const (
	Sequential Strategy = "sequential"
	Token      Strategy = "token"
	UUID       Strategy = "uuid"
)

// ParseStrategy validates a configured strategy name.
func ParseStrategy(s string) (Strategy, error) {
	switch st := Strategy(strings.ToLower(strings.TrimSpace(s))); st {
	case Sequential, Token, UUID:
		return st, nil
	default:
		return "", simerr.Configuration("idgen.parse", "unknown id strategy %q (valid: sequential, token, uuid)", s)
	}
}

// Allocator hands out fresh identifiers, one per new entity.
type Allocator interface {
	Next() models.ID
}

// New returns an allocator for strategy. watermark is the highest id already
// stored in the table; only the sequential strategy uses it.
func New(strategy Strategy, watermark int64, rng *rand.Rand) (Allocator, error) {
	switch strategy {
	case Sequential:
		if watermark < 0 {
			return nil, simerr.Consistency("idgen.new", "negative watermark %d", watermark)
		}
		return &Counter{next: watermark + 1}, nil
	case Token:
		return &TokenSource{rng: rng, length: constants.TokenLength}, nil
	case UUID:
		return &UUIDSource{r: &randReader{rng: rng}}, nil
	default:
		return nil, simerr.Configuration("idgen.new", "unknown id strategy %q", strategy)
	}
}

// Counter allocates monotonically increasing decimal ids.
type Counter struct {
	next int64
}

// Next returns the next counter value.
func (c *Counter) Next() models.ID {
	id := models.ID(strconv.FormatInt(c.next, 10))
	c.next++
	return id
}

// TokenSource draws fixed-length tokens from the alphanumeric alphabet.
type TokenSource struct {
	rng    *rand.Rand
	length int
}

// Next returns a fresh random token.
func (s *TokenSource) Next() models.ID {
	var b strings.Builder
	b.Grow(s.length)
	for i := 0; i < s.length; i++ {
		b.WriteByte(constants.TokenAlphabet[s.rng.IntN(len(constants.TokenAlphabet))])
	}
	return models.ID(b.String())
}

// UUIDSource allocates version 4 UUIDs.
type UUIDSource struct {
	r io.Reader
}

// Next returns a fresh random UUID.
func (s *UUIDSource) Next() models.ID {
	id, err := uuid.NewRandomFromReader(s.r)
	if err != nil {
		// randReader never fails
		panic(fmt.Sprintf("idgen: reading uuid bytes: %v", err))
	}
	return models.ID(id.String())
}

// randReader adapts a generator to io.Reader.
type randReader struct {
	rng *rand.Rand
}

func (r *randReader) Read(p []byte) (int, error) {
	for i := 0; i < len(p); {
		v := r.rng.Uint64()
		for j := 0; j < 8 && i < len(p); j++ {
			p[i] = byte(v >> (8 * j))
			i++
		}
	}
	return len(p), nil
}
