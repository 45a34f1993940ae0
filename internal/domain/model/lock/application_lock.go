package lock

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
)

// ApplicationLock is an exclusive, expiring write lock on one application.
// The owner token distinguishes holders that share a pid or host.
type ApplicationLock struct {
	lockID      LockID
	owner       string
	pid         int
	hostname    string
	acquiredAt  time.Time
	expiresAt   time.Time
	heartbeatAt time.Time
}

// NewApplicationLock creates a lock owned by this process with a fresh owner token
func NewApplicationLock(lockID LockID, ttl time.Duration) (*ApplicationLock, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("invalid lock ttl: %s", ttl)
	}

	hostname, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("get hostname: %w", err)
	}

	now := time.Now().UTC()

	return &ApplicationLock{
		lockID:      lockID,
		owner:       uuid.NewString(),
		pid:         os.Getpid(),
		hostname:    hostname,
		acquiredAt:  now,
		expiresAt:   now.Add(ttl),
		heartbeatAt: now,
	}, nil
}

// ReconstructApplicationLock reconstructs a lock from persisted data
func ReconstructApplicationLock(
	lockID LockID,
	owner string,
	pid int,
	hostname string,
	acquiredAt, expiresAt, heartbeatAt time.Time,
) *ApplicationLock {
	return &ApplicationLock{
		lockID:      lockID,
		owner:       owner,
		pid:         pid,
		hostname:    hostname,
		acquiredAt:  acquiredAt,
		expiresAt:   expiresAt,
		heartbeatAt: heartbeatAt,
	}
}

// IsExpired checks if the lock has expired
func (l *ApplicationLock) IsExpired() bool {
	return l.IsExpiredAt(time.Now().UTC())
}

// IsExpiredAt checks expiry against a given instant
func (l *ApplicationLock) IsExpiredAt(now time.Time) bool {
	return now.After(l.expiresAt)
}

// IsHeartbeatStale checks if the heartbeat is stale
func (l *ApplicationLock) IsHeartbeatStale(maxStaleness time.Duration) bool {
	return time.Now().UTC().Sub(l.heartbeatAt) > maxStaleness
}

// UpdateHeartbeat updates the heartbeat timestamp
func (l *ApplicationLock) UpdateHeartbeat() {
	l.heartbeatAt = time.Now().UTC()
}

// Extend extends the lock expiration time
func (l *ApplicationLock) Extend(duration time.Duration) {
	l.expiresAt = l.expiresAt.Add(duration)
}

// OwnedBy reports whether token is this lock's owner
func (l *ApplicationLock) OwnedBy(token string) bool {
	return l.owner == token
}

// Getters
func (l *ApplicationLock) LockID() LockID               { return l.lockID }
func (l *ApplicationLock) Owner() string                { return l.owner }
func (l *ApplicationLock) PID() int                     { return l.pid }
func (l *ApplicationLock) Hostname() string             { return l.hostname }
func (l *ApplicationLock) AcquiredAt() time.Time        { return l.acquiredAt }
func (l *ApplicationLock) ExpiresAt() time.Time         { return l.expiresAt }
func (l *ApplicationLock) HeartbeatAt() time.Time       { return l.heartbeatAt }
func (l *ApplicationLock) RemainingTime() time.Duration { return time.Until(l.expiresAt) }
