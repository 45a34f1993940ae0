package model

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// applicationIDPattern keeps ids usable as a single path segment and cache key
var applicationIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,63}$`)

// ApplicationID represents a unique identifier for a loan application
type ApplicationID struct {
	value string
}

// NewApplicationID creates an ApplicationID from an existing string.
// IDs start with a letter or digit and continue with letters, digits, '.', '_' or '-'.
func NewApplicationID(id string) (ApplicationID, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return ApplicationID{}, errors.New("application ID cannot be empty")
	}
	if !applicationIDPattern.MatchString(id) {
		return ApplicationID{}, fmt.Errorf("application ID %q must be 1-64 letters, digits, '.', '_' or '-' and start with a letter or digit", id)
	}
	return ApplicationID{value: id}, nil
}

// String returns the string representation
func (a ApplicationID) String() string {
	return a.value
}

// IsZero reports whether the ID was never set
func (a ApplicationID) IsZero() bool {
	return a.value == ""
}

// Equals checks if two ApplicationIDs are equal
func (a ApplicationID) Equals(other ApplicationID) bool {
	return a.value == other.value
}

// Timestamp represents a point in time
type Timestamp struct {
	value time.Time
}

// NewTimestamp creates a new Timestamp with current time
func NewTimestamp() Timestamp {
	return Timestamp{value: time.Now().UTC()}
}

// NewTimestampFromTime creates a Timestamp from a time.Time value
func NewTimestampFromTime(t time.Time) Timestamp {
	return Timestamp{value: t.UTC()}
}

// Value returns the time.Time value
func (t Timestamp) Value() time.Time {
	return t.value
}

// Before checks if this timestamp is before another
func (t Timestamp) Before(other Timestamp) bool {
	return t.value.Before(other.value)
}

// After checks if this timestamp is after another
func (t Timestamp) After(other Timestamp) bool {
	return t.value.After(other.value)
}

// String returns the string representation
func (t Timestamp) String() string {
	return t.value.Format(time.RFC3339)
}
