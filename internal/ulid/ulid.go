// Package ulid generates lexically sortable 128-bit identifiers: 48 bits of
// millisecond time followed by 80 random bits, encoded as 26 base-32 symbols.
package ulid

import (
	"crypto/rand"
	"errors"
	"io"
	"sync"
	"time"

	oklog "github.com/oklog/ulid/v2"
)

// Len is the length of every encoded id.
const Len = oklog.EncodedSize

// maxTime is the largest millisecond timestamp representable in 48 bits.
var maxTime = oklog.MaxTime()

var ErrInvalid = errors.New("invalid ulid")

// Generator produces ids. Ids from one Generator are strictly increasing, even
// when several are produced within the same millisecond.
type Generator struct {
	mu      sync.Mutex
	now     func() time.Time
	entropy io.Reader
	spare   io.Reader
	last    oklog.ULID
	issued  bool
}

// NewGenerator returns a Generator reading time from now and randomness from
// entropy. Nil arguments select the wall clock and crypto/rand.
func NewGenerator(now func() time.Time, entropy io.Reader) *Generator {
	if now == nil {
		now = time.Now
	}
	if entropy == nil {
		entropy = rand.Reader
	}
	return &Generator{
		now:     now,
		entropy: oklog.Monotonic(entropy, 0),
		spare:   oklog.Monotonic(rand.Reader, 0),
	}
}

var defaultGenerator = NewGenerator(nil, nil)

// New returns a fresh id from the process default generator.
func New() string {
	return defaultGenerator.New()
}

// New returns a fresh id. It never fails: when the entropy source errors or
// the random tail of the current millisecond is used up, the id moves to the
// next millisecond instead.
func (g *Generator) New() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := oklog.Timestamp(g.now())
	if ms > maxTime {
		ms = maxTime
	}
	if g.issued && ms < g.last.Time() {
		ms = g.last.Time()
	}
	id, err := oklog.New(ms, g.entropy)
	if err != nil || (g.issued && id.Compare(g.last) <= 0) {
		id = g.next(ms)
	}
	g.last, g.issued = id, true
	return id.String()
}

// next builds an id that sorts after the last one without touching the
// configured entropy source.
func (g *Generator) next(ms uint64) oklog.ULID {
	if g.issued && ms <= g.last.Time() && g.last.Time() < maxTime {
		ms = g.last.Time() + 1
	}
	id, err := oklog.New(ms, g.spare)
	if err != nil {
		id, _ = oklog.New(ms, nil)
	}
	return id
}

// Encode renders a millisecond timestamp and random tail as a 26 symbol id.
func Encode(ms uint64, tail [10]byte) string {
	var id oklog.ULID
	if err := id.SetTime(ms); err != nil {
		id.SetTime(maxTime)
	}
	id.SetEntropy(tail[:])
	return id.String()
}

// Valid reports whether id is a well-formed id in canonical upper case.
func Valid(id string) bool {
	u, err := oklog.ParseStrict(id)
	return err == nil && u.String() == id
}

// Time returns the timestamp embedded in id.
func Time(id string) (time.Time, error) {
	u, err := oklog.ParseStrict(id)
	if err != nil || u.String() != id {
		return time.Time{}, ErrInvalid
	}
	return oklog.Time(u.Time()).UTC(), nil
}
