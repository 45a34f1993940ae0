package presenter

import (
	"errors"

	"github.com/YoshitsuguKoike/loanstage/internal/domain/model/lock"
	"github.com/YoshitsuguKoike/loanstage/internal/domain/repository"
)

// Error codes shared by the JSON presenter and the HTTP API
const (
	CodeNotFound      = "NOT_FOUND"
	CodeConflict      = "CONFLICT"
	CodeAlreadyExists = "ALREADY_EXISTS"
	CodeLockHeld      = "LOCK_HELD"
)

type coded interface {
	Code() string
}

// ErrorCode returns a stable machine-readable code for err, or "" for unexpected errors
func ErrorCode(err error) string {
	var c coded
	switch {
	case errors.As(err, &c):
		return c.Code()
	case errors.Is(err, repository.ErrNotFound):
		return CodeNotFound
	case errors.Is(err, repository.ErrConflict):
		return CodeConflict
	case errors.Is(err, repository.ErrAlreadyExists):
		return CodeAlreadyExists
	case errors.Is(err, lock.ErrLockHeld):
		return CodeLockHeld
	}
	return ""
}
