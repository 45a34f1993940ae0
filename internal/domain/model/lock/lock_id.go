package lock

import (
	"errors"
	"fmt"
	"strings"
)

// Common lock errors
var (
	ErrLockNotFound = errors.New("lock not found")
	ErrLockHeld     = errors.New("lock held by another owner")
)

const applicationPrefix = "application:"

// LockID is a value object representing a unique lock identifier
// It identifies the resource being locked (an application id)
type LockID struct {
	value string
}

// NewLockID creates a new lock ID
func NewLockID(value string) (LockID, error) {
	if strings.TrimSpace(value) == "" {
		return LockID{}, fmt.Errorf("lock ID cannot be empty")
	}
	return LockID{value: value}, nil
}

// ForApplication returns the lock ID guarding one application
func ForApplication(applicationID string) (LockID, error) {
	if strings.TrimSpace(applicationID) == "" {
		return LockID{}, fmt.Errorf("application ID cannot be empty")
	}
	return LockID{value: applicationPrefix + applicationID}, nil
}

// String returns the string representation of the lock ID
func (id LockID) String() string {
	return id.value
}

// ApplicationID returns the guarded application id, or "" for other locks
func (id LockID) ApplicationID() string {
	return strings.TrimPrefix(id.value, applicationPrefix)
}

// Equals checks if two lock IDs are equal
func (id LockID) Equals(other LockID) bool {
	return id.value == other.value
}
