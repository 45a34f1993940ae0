package repository

import (
	"context"
	"time"

	"github.com/YoshitsuguKoike/loanstage/internal/domain/model/lock"
)

// ApplicationLockRepository manages ApplicationLock persistence
type ApplicationLockRepository interface {
	// Acquire attempts to acquire an application lock
	// Returns the lock if successful, nil if lock is held by another owner
	Acquire(ctx context.Context, lockID lock.LockID, ttl time.Duration) (*lock.ApplicationLock, error)

	// Release releases a lock held by owner
	// Returns lock.ErrLockNotFound if owner does not hold it
	Release(ctx context.Context, lockID lock.LockID, owner string) error

	// Find retrieves a lock by ID
	Find(ctx context.Context, lockID lock.LockID) (*lock.ApplicationLock, error)

	// UpdateHeartbeat updates the heartbeat timestamp for a lock held by owner
	UpdateHeartbeat(ctx context.Context, lockID lock.LockID, owner string) error

	// Extend extends the expiration time of a lock held by owner
	Extend(ctx context.Context, lockID lock.LockID, owner string, duration time.Duration) error

	// CleanupExpired removes expired locks
	CleanupExpired(ctx context.Context) (int, error)

	// List lists all active application locks
	List(ctx context.Context) ([]*lock.ApplicationLock, error)
}
