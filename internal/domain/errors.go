package domain

import (
	"errors"
	"fmt"
	"time"
)

// Domain errors
var (
	ErrPetNotFound      = errors.New("pet not found")
	ErrDuelNotFound     = errors.New("duel not found")
	ErrProfileNotFound  = errors.New("user profile not found")
	ErrTutorialNotFound = errors.New("tutorial not found")
	ErrInvalidAction    = errors.New("invalid action")
	ErrCooldownActive   = errors.New("cooldown active")
	ErrUserDisabled     = errors.New("user has disabled pets")
	ErrNotDuelOpponent  = errors.New("cannot act on others duels")
	ErrDuelNotPending   = errors.New("duel no longer pending")
	ErrDuelNotAccepted  = errors.New("duel is not accepted")
	ErrDuelExists       = errors.New("pending duel already exists")
	ErrPetConflict      = errors.New("pet was modified concurrently")
	ErrForbidden        = errors.New("forbidden")
	ErrInvalidRequest   = errors.New("invalid request")
	ErrInternalError    = errors.New("internal server error")
)

// IsNotFoundError checks if an error is a not-found type error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrPetNotFound) ||
		errors.Is(err, ErrDuelNotFound) ||
		errors.Is(err, ErrProfileNotFound) ||
		errors.Is(err, ErrTutorialNotFound)
}

// CooldownError reports an action attempted before its cooldown elapsed.
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("cooldown active, %d seconds remaining", e.RemainingSeconds())
}

// RemainingSeconds rounds the remaining cooldown up to whole seconds.
func (e *CooldownError) RemainingSeconds() int64 {
	secs := int64(e.Remaining / time.Second)
	if e.Remaining%time.Second > 0 {
		secs++
	}
	return secs
}

func (e *CooldownError) Unwrap() error {
	return ErrCooldownActive
}

type permanentError struct {
	cause error
}

func (e permanentError) Error() string {
	if e.cause == nil {
		return "permanent error"
	}
	return e.cause.Error()
}

func (e permanentError) Unwrap() error {
	return e.cause
}

// Permanent marks an error as non-retryable for background jobs.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{cause: err}
}

// IsPermanent reports whether err was explicitly marked as non-retryable.
func IsPermanent(err error) bool {
	var target permanentError
	return errors.As(err, &target)
}
