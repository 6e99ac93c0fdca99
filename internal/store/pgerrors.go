package store

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/bidstream/go-live-auctions/internal/auction"
)

func auctionConflict(err error) error {
	return fmt.Errorf("%w: %v", auction.ErrConflict, err)
}

// Postgres failure classes. Serialization failures, deadlocks and lock
// timeouts are transient: the whole unit is retried with backoff.
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
)

func retryablePgError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable:
			return true
		}
	}
	return false
}

const maxTxRetries = 3

// withRetry runs fn up to maxTxRetries+1 times, backing off with jitter on
// transient Postgres failures. Business errors pass through untouched.
func withRetry(ctx context.Context, fn func() error) error {
	backoff := 50 * time.Millisecond
	var err error
	for attempt := 0; ; attempt++ {
		if err = fn(); err == nil || !retryablePgError(err) {
			return err
		}
		if attempt == maxTxRetries {
			return auctionConflict(err)
		}
		jitter := time.Duration(rand.Int63n(int64(backoff / 4)))
		select {
		case <-time.After(backoff + jitter):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff *= 2
	}
}
