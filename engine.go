package goReset

import (
	"context"
	"crypto/rand"
	"errors"
	"log"
	"math/big"
	"strings"
	"time"

	"github.com/MrEthical07/goReset/internal"
	"github.com/MrEthical07/goReset/internal/limiters"
	"github.com/MrEthical07/goReset/internal/stores"
	"github.com/MrEthical07/goReset/password"
)

// Engine defines a public type used by goReset APIs.
//
// Engine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Engine struct {
	config       Config
	store        *stores.ResetStore
	limiter      *limiters.ResetLimiter
	directory    UserDirectory
	mailer       EmailSender
	audit        *auditDispatcher
	metrics      *Metrics
	passwordHash *password.Argon2

	// Injection points for deterministic tests; nil means the real source.
	now            func() time.Time
	generateCode   func(digits int) (string, error)
	generateSecret func() ([32]byte, error)
}

// Close describes the close operation and its observable behavior.
//
// Close may return an error when input validation, dependency calls, or security checks fail.
// Close does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped describes the auditdropped operation and its observable behavior.
//
// AuditDropped may return an error when input validation, dependency calls, or security checks fail.
// AuditDropped does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot may return an error when input validation, dependency calls, or security checks fail.
// MetricsSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters: map[MetricID]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) timeNow() time.Time {
	if e != nil && e.now != nil {
		return e.now()
	}
	return time.Now()
}

func (e *Engine) newCode() (string, error) {
	if e.generateCode != nil {
		return e.generateCode(e.config.Reset.CodeDigits)
	}
	return internal.NewOTP(e.config.Reset.CodeDigits)
}

func (e *Engine) newSecret() ([32]byte, error) {
	if e.generateSecret != nil {
		return e.generateSecret()
	}
	return internal.NewResetSecret()
}

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	email string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: e.timeNow().UTC(),
		EventType: eventType,
		UserID:    userID,
		Email:     email,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

// dispatchResetEmail sends the code on its own goroutine so mail latency and
// failures never gate or distinguish the caller-visible response.
func (e *Engine) dispatchResetEmail(email, code string) {
	msg := EmailMessage{
		To:      email,
		Subject: e.config.Mail.Subject,
		Body:    "Your password reset code is: " + code + "\n\nIt expires in " + e.config.Reset.CodeTTL.String() + ".",
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), e.config.Mail.SendTimeout)
		defer cancel()

		if err := e.mailer.Send(ctx, msg); err != nil {
			e.metricInc(MetricMailFailure)
			e.emitAudit(ctx, auditEventResetMail, false, "", email, ErrBackendUnavailable, nil)
			log.Print("goReset: reset mail dispatch failed")
		}
	}()
}

// sleepEnumerationDelay pads the no-account path so its response timing is
// indistinguishable from a real code issue plus mail hand-off.
func sleepEnumerationDelay(ctx context.Context) error {
	minMs := int64(20)
	maxMs := int64(40)
	span := maxMs - minMs + 1

	n, err := rand.Int(rand.Reader, big.NewInt(span))
	if err != nil {
		return err
	}

	delay := time.Duration(minMs+n.Int64()) * time.Millisecond
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Authenticate checks an email and password pair against the user directory.
// Unknown accounts and wrong passwords are indistinguishable in the returned
// error.
//
// Authenticate may return an error when input validation, dependency calls, or security checks fail.
// Authenticate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Authenticate(ctx context.Context, email, pass string) (UserRecord, error) {
	if e == nil || e.passwordHash == nil || e.directory == nil {
		return UserRecord{}, ErrEngineNotReady
	}

	email = normalizeEmail(email)
	if email == "" || pass == "" {
		e.emitAudit(ctx, auditEventLogin, false, "", email, ErrInvalidCredentials, nil)
		return UserRecord{}, ErrInvalidCredentials
	}

	user, err := e.directory.GetUserByEmail(ctx, email)
	if err != nil {
		if ctx.Err() != nil {
			return UserRecord{}, ctx.Err()
		}
		e.emitAudit(ctx, auditEventLogin, false, "", email, ErrInvalidCredentials, nil)
		return UserRecord{}, ErrInvalidCredentials
	}

	ok, err := e.passwordHash.Verify(pass, user.PasswordHash)
	if err != nil || !ok {
		e.emitAudit(ctx, auditEventLogin, false, user.UserID, email, ErrInvalidCredentials, nil)
		return UserRecord{}, ErrInvalidCredentials
	}

	e.emitAudit(ctx, auditEventLogin, true, user.UserID, email, nil, nil)
	return user, nil
}

// AuditErrorCode defines a public type used by goReset APIs.
//
// AuditErrorCode instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditErrorCode string

const (
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrCooldown           AuditErrorCode = "cooldown"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrNoActiveRequest    AuditErrorCode = "no_active_request"
	auditErrCodeInvalid        AuditErrorCode = "code_invalid"
	auditErrAttemptsExceeded   AuditErrorCode = "attempts_exceeded"
	auditErrTokenInvalid       AuditErrorCode = "token_invalid"
	auditErrResetExpired       AuditErrorCode = "reset_expired"
	auditErrPasswordPolicy     AuditErrorCode = "password_policy"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrRequestCooldown):
		return auditErrCooldown
	case errors.Is(err, ErrRequestRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrNoActiveRequest):
		return auditErrNoActiveRequest
	case errors.Is(err, ErrCodeInvalid):
		return auditErrCodeInvalid
	case errors.Is(err, ErrAttemptsExceeded):
		return auditErrAttemptsExceeded
	case errors.Is(err, ErrTokenInvalid):
		return auditErrTokenInvalid
	case errors.Is(err, ErrResetExpired):
		return auditErrResetExpired
	case errors.Is(err, ErrPasswordPolicy):
		return auditErrPasswordPolicy
	case errors.Is(err, ErrBackendUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
