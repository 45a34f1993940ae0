package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/YoshitsuguKoike/loanstage/internal/domain/model/lock"
	"github.com/YoshitsuguKoike/loanstage/internal/domain/repository"
)

// ApplicationLockRepositoryImpl implements repository.ApplicationLockRepository with SQLite
type ApplicationLockRepositoryImpl struct {
	db *sql.DB
	// processAlive reports whether a pid on this host is still running
	processAlive func(pid int) bool
}

// NewApplicationLockRepository creates a new SQLite-based application lock repository
func NewApplicationLockRepository(db *sql.DB) repository.ApplicationLockRepository {
	return &ApplicationLockRepositoryImpl{db: db, processAlive: isProcessRunning}
}

// Acquire attempts to acquire a lock, clearing a stale holder first.
// A holder is stale when expired, or when it lives on this host and its process is gone.
func (r *ApplicationLockRepositoryImpl) Acquire(ctx context.Context, lockID lock.LockID, ttl time.Duration) (*lock.ApplicationLock, error) {
	newLock, err := lock.NewApplicationLock(lockID, ttl)
	if err != nil {
		return nil, fmt.Errorf("create application lock: %w", err)
	}

	db := getDB(ctx, r.db)

	existing, err := r.Find(ctx, lockID)
	switch {
	case err == nil:
		if !r.isStale(existing) {
			return nil, nil
		}
		// Delete only the holder we judged stale; a new holder keeps its lock
		if _, err := db.ExecContext(ctx,
			`DELETE FROM application_locks WHERE lock_id = ? AND owner = ?`,
			lockID.String(), existing.Owner(),
		); err != nil {
			return nil, fmt.Errorf("delete stale lock: %w", err)
		}
	case !errors.Is(err, lock.ErrLockNotFound):
		return nil, err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO application_locks (lock_id, owner, pid, hostname, acquired_at, expires_at, heartbeat_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		newLock.LockID().String(),
		newLock.Owner(),
		newLock.PID(),
		newLock.Hostname(),
		formatTime(newLock.AcquiredAt()),
		formatTime(newLock.ExpiresAt()),
		formatTime(newLock.HeartbeatAt()),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("insert application lock: %w", err)
	}
	return newLock, nil
}

// Release releases a lock held by owner
func (r *ApplicationLockRepositoryImpl) Release(ctx context.Context, lockID lock.LockID, owner string) error {
	result, err := getDB(ctx, r.db).ExecContext(ctx,
		`DELETE FROM application_locks WHERE lock_id = ? AND owner = ?`,
		lockID.String(), owner,
	)
	if err != nil {
		return fmt.Errorf("release application lock: %w", err)
	}
	return requireRow(result)
}

// Find retrieves a lock by ID
func (r *ApplicationLockRepositoryImpl) Find(ctx context.Context, lockID lock.LockID) (*lock.ApplicationLock, error) {
	row := getDB(ctx, r.db).QueryRowContext(ctx, `
		SELECT lock_id, owner, pid, hostname, acquired_at, expires_at, heartbeat_at
		FROM application_locks WHERE lock_id = ?`, lockID.String())

	l, err := scanLock(row)
	if err == sql.ErrNoRows {
		return nil, lock.ErrLockNotFound
	}
	return l, err
}

// UpdateHeartbeat updates the heartbeat timestamp for a lock held by owner
func (r *ApplicationLockRepositoryImpl) UpdateHeartbeat(ctx context.Context, lockID lock.LockID, owner string) error {
	result, err := getDB(ctx, r.db).ExecContext(ctx,
		`UPDATE application_locks SET heartbeat_at = ? WHERE lock_id = ? AND owner = ?`,
		formatTime(time.Now()), lockID.String(), owner,
	)
	if err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return requireRow(result)
}

// Extend pushes the expiration of a lock held by owner
func (r *ApplicationLockRepositoryImpl) Extend(ctx context.Context, lockID lock.LockID, owner string, duration time.Duration) error {
	l, err := r.Find(ctx, lockID)
	if err != nil {
		return err
	}
	if !l.OwnedBy(owner) {
		return lock.ErrLockNotFound
	}
	l.Extend(duration)

	result, err := getDB(ctx, r.db).ExecContext(ctx,
		`UPDATE application_locks SET expires_at = ? WHERE lock_id = ? AND owner = ?`,
		formatTime(l.ExpiresAt()), lockID.String(), owner,
	)
	if err != nil {
		return fmt.Errorf("extend application lock: %w", err)
	}
	return requireRow(result)
}

// CleanupExpired removes expired locks
func (r *ApplicationLockRepositoryImpl) CleanupExpired(ctx context.Context) (int, error) {
	result, err := getDB(ctx, r.db).ExecContext(ctx,
		`DELETE FROM application_locks WHERE expires_at < ?`, formatTime(time.Now()),
	)
	if err != nil {
		return 0, fmt.Errorf("cleanup expired locks: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	return int(n), nil
}

// List lists all active application locks
func (r *ApplicationLockRepositoryImpl) List(ctx context.Context) ([]*lock.ApplicationLock, error) {
	rows, err := getDB(ctx, r.db).QueryContext(ctx, `
		SELECT lock_id, owner, pid, hostname, acquired_at, expires_at, heartbeat_at
		FROM application_locks
		WHERE expires_at >= ?
		ORDER BY acquired_at ASC`, formatTime(time.Now()))
	if err != nil {
		return nil, fmt.Errorf("list application locks: %w", err)
	}
	defer rows.Close()

	var locks []*lock.ApplicationLock
	for rows.Next() {
		l, err := scanLock(rows)
		if err != nil {
			return nil, err
		}
		locks = append(locks, l)
	}
	return locks, rows.Err()
}

func (r *ApplicationLockRepositoryImpl) isStale(l *lock.ApplicationLock) bool {
	if l.IsExpired() {
		return true
	}
	host, _ := os.Hostname()
	return l.Hostname() == host && !r.processAlive(l.PID())
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanLock(row rowScanner) (*lock.ApplicationLock, error) {
	var lockIDStr, owner, hostname, acquiredAt, expiresAt, heartbeatAt string
	var pid int
	if err := row.Scan(&lockIDStr, &owner, &pid, &hostname, &acquiredAt, &expiresAt, &heartbeatAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scan application lock: %w", err)
	}

	lockID, err := lock.NewLockID(lockIDStr)
	if err != nil {
		return nil, fmt.Errorf("invalid lock ID: %w", err)
	}
	acquired, err := parseTime(acquiredAt)
	if err != nil {
		return nil, fmt.Errorf("parse acquired_at: %w", err)
	}
	expires, err := parseTime(expiresAt)
	if err != nil {
		return nil, fmt.Errorf("parse expires_at: %w", err)
	}
	heartbeat, err := parseTime(heartbeatAt)
	if err != nil {
		return nil, fmt.Errorf("parse heartbeat_at: %w", err)
	}

	return lock.ReconstructApplicationLock(lockID, owner, pid, hostname, acquired, expires, heartbeat), nil
}

func requireRow(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return lock.ErrLockNotFound
	}
	return nil
}

// isProcessRunning checks if a process with the given PID is running
func isProcessRunning(pid int) bool {
	// ps works on Linux and macOS
	cmd := exec.Command("ps", "-p", strconv.Itoa(pid))
	return cmd.Run() == nil
}
