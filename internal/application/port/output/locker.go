package output

import (
	"context"
)

// Locker grants exclusive, per-application write leases.
// Acquire returns lock.ErrLockHeld if the lease cannot be obtained in time.
type Locker interface {
	Acquire(ctx context.Context, applicationID string) (Lease, error)
}

// Lease is a held application lock
type Lease interface {
	// Owner returns the token identifying this holder
	Owner() string

	// Release gives the lock back; releasing twice is a no-op
	Release(ctx context.Context) error
}
