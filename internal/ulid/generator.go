// Package ulid generates sortable identifiers for edit records, views and
// backups.
package ulid

import (
	"io"
	"math/rand"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropy     io.Reader
	entropyOnce sync.Once

	ulidPattern = regexp.MustCompile(`^[0123456789ABCDEFGHJKMNPQRSTVWXYZ]{26}$`)
)

// Generator returns a new id on every call. It must be safe for
// concurrent use.
type Generator func() string

func defaultEntropy() io.Reader {
	entropyOnce.Do(func() {
		rng := rand.New(rand.NewSource(time.Now().UnixNano()))
		entropy = &ulid.LockedMonotonicReader{
			MonotonicReader: ulid.Monotonic(rng, 0),
		}
	})
	return entropy
}

// New returns a ULID for the current time. Ids returned by the same
// process sort in generation order.
func New() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), defaultEntropy()).String()
}

// Default generates ids with New.
var Default Generator = New

// Sequence returns a Generator yielding prefix1, prefix2 and so on,
// for tests that need predictable ids.
func Sequence(prefix string) Generator {
	var (
		mu sync.Mutex
		n  int
	)
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return prefix + strconv.Itoa(n)
	}
}

// Valid reports whether id is a canonical, upper case ULID.
func Valid(id string) bool {
	_, err := ulid.Parse(id)
	return err == nil && ulidPattern.MatchString(id)
}

// Time returns the timestamp encoded in a valid id.
func Time(id string) (time.Time, bool) {
	u, err := ulid.Parse(id)
	if err != nil {
		return time.Time{}, false
	}
	return ulid.Time(u.Time()), true
}
