package goReset

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrEngineNotReady is an exported constant or variable used by the reset engine.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrEmailRequired is an exported constant or variable used by the reset engine.
	ErrEmailRequired = errors.New("email is required")
	// ErrRequestCooldown is an exported constant or variable used by the reset engine.
	ErrRequestCooldown = errors.New("reset request cooldown active")
	// ErrRequestRateLimited is an exported constant or variable used by the reset engine.
	ErrRequestRateLimited = errors.New("reset request rate limited")
	// ErrNoActiveRequest is an exported constant or variable used by the reset engine.
	ErrNoActiveRequest = errors.New("no active reset request")
	// ErrCodeInvalid is an exported constant or variable used by the reset engine.
	ErrCodeInvalid = errors.New("invalid or expired code")
	// ErrAttemptsExceeded is an exported constant or variable used by the reset engine.
	ErrAttemptsExceeded = errors.New("too many attempts, request a new code")
	// ErrTokenInvalid is an exported constant or variable used by the reset engine.
	ErrTokenInvalid = errors.New("invalid or expired reset token")
	// ErrResetExpired is an exported constant or variable used by the reset engine.
	ErrResetExpired = errors.New("reset expired, request a new one")
	// ErrPasswordPolicy is an exported constant or variable used by the reset engine.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrInvalidCredentials is an exported constant or variable used by the reset engine.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrBackendUnavailable is an exported constant or variable used by the reset engine.
	ErrBackendUnavailable = errors.New("reset backend unavailable")
)

// CooldownError reports how long the caller must wait before the next reset
// request is admitted. It unwraps to [ErrRequestCooldown].
type CooldownError struct {
	Wait time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("reset request cooldown active, retry in %ds", e.WaitSeconds())
}

func (e *CooldownError) Unwrap() error { return ErrRequestCooldown }

// WaitSeconds returns the remaining cooldown rounded up to whole seconds,
// never less than 1 while the cooldown is active.
func (e *CooldownError) WaitSeconds() int {
	secs := int((e.Wait + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

// RateLimitError reports which rolling window rejected the request. Scope is
// "email" or "ip". It unwraps to [ErrRequestRateLimited].
type RateLimitError struct {
	Scope string
}

func (e *RateLimitError) Error() string {
	return "reset request rate limited (" + e.Scope + " window)"
}

func (e *RateLimitError) Unwrap() error { return ErrRequestRateLimited }

// AttemptsError reports a failed code verification together with the number
// of attempts left before the record closes. It unwraps to [ErrCodeInvalid].
type AttemptsError struct {
	Remaining int
}

func (e *AttemptsError) Error() string {
	return fmt.Sprintf("invalid code, %d attempts remaining", e.Remaining)
}

func (e *AttemptsError) Unwrap() error { return ErrCodeInvalid }
