// README: Bounded fixed-delay retry for store calls.
package storeutil

import (
	"context"
	"errors"
	"time"

	"github.com/apex/log"
	"github.com/cenkalti/backoff/v4"
)

const (
	DefaultAttempts = 3
	DefaultDelay    = 200 * time.Millisecond
)

// Retrier re-runs an operation on transient failures only.
type Retrier struct {
	Attempts int
	Delay    time.Duration
}

func NewRetrier(attempts int, delay time.Duration) Retrier {
	if attempts < 1 {
		attempts = DefaultAttempts
	}
	if delay <= 0 {
		delay = DefaultDelay
	}
	return Retrier{Attempts: attempts, Delay: delay}
}

// Do runs fn until it succeeds, fails permanently, or the attempt budget is
// spent. Errors wrapped with Domain and pgx.ErrNoRows come back unchanged;
// every other failure is returned as *PersistenceError.
func (r Retrier) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if r.Attempts < 1 {
		r = NewRetrier(r.Attempts, r.Delay)
	}
	attempt := 0
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(r.Delay), uint64(r.Attempts-1)),
		ctx,
	)
	err := backoff.Retry(func() error {
		attempt++
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if IsTransient(err) {
			log.WithFields(log.Fields{"op": op, "attempt": attempt}).Warnf("transient store error: %v", err)
			return err
		}
		return backoff.Permanent(err)
	}, policy)
	if err == nil {
		return nil
	}

	var de *domainError
	if errors.As(err, &de) {
		return de.err
	}
	if IsNoRows(err) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}
