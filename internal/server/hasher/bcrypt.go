// Package hasher provides the one-way hash used for passwords and for the
// opaque refresh and reset secrets.
package hasher

import (
	"context"
	"errors"
	"runtime"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

// MaxSecretLen is the longest input bcrypt accepts.
const MaxSecretLen = 72

var (
	ErrEmptySecret    = errors.New("secret must not be empty")
	ErrSecretTooLong  = errors.New("secret is longer than 72 bytes")
	ErrUnexpectedHash = errors.New("unexpected hash failure")
)

// Bcrypt hashes with a fixed cost. The weighted semaphore caps how many
// bcrypt computations run at once across all requests; it is acquired with a
// background context so a started comparison is never abandoned.
type Bcrypt struct {
	cost int
	sem  *semaphore.Weighted
}

// NewBcrypt returns a hasher with the given cost. concurrency <= 0 means
// 2*GOMAXPROCS.
func NewBcrypt(cost, concurrency int) *Bcrypt {
	if concurrency <= 0 {
		concurrency = 2 * runtime.GOMAXPROCS(0)
	}
	return &Bcrypt{cost: cost, sem: semaphore.NewWeighted(int64(concurrency))}
}

// Hash returns the bcrypt digest of secret.
func (h *Bcrypt) Hash(secret string) (string, error) {
	if secret == "" {
		return "", ErrEmptySecret
	}
	if len(secret) > MaxSecretLen {
		return "", ErrSecretTooLong
	}

	h.acquire()
	defer h.sem.Release(1)

	digest, err := bcrypt.GenerateFromPassword([]byte(secret), h.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", ErrSecretTooLong
		}
		return "", errors.Join(ErrUnexpectedHash, err)
	}
	return string(digest), nil
}

// Compare reports whether secret hashes to digest. A malformed digest never
// matches.
func (h *Bcrypt) Compare(secret, digest string) bool {
	// bcrypt only looks at the first MaxSecretLen bytes, so a longer secret
	// would match any digest of its prefix.
	if digest == "" || len(secret) > MaxSecretLen {
		return false
	}

	h.acquire()
	defer h.sem.Release(1)

	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(secret)) == nil
}

func (h *Bcrypt) acquire() {
	// Acquire only fails when the context is done.
	_ = h.sem.Acquire(context.Background(), 1)
}
