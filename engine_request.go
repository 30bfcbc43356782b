package goReset

import (
	"context"
	"errors"

	"github.com/MrEthical07/goReset/internal"
	"github.com/MrEthical07/goReset/internal/limiters"
	"github.com/MrEthical07/goReset/internal/stores"
	"github.com/google/uuid"
)

const requestAckMessage = "If that account exists, a reset code has been sent."

// RequestReset starts a password reset for email. On admission it returns the
// same acknowledgment whether or not the email belongs to an account; for
// registered accounts a one-time code is issued, any prior in-flight reset for
// the email is invalidated, and the code is dispatched by mail asynchronously.
//
// Throttle rejections apply to every email equally and carry structured
// detail: [CooldownError] wraps [ErrRequestCooldown], [RateLimitError] wraps
// [ErrRequestRateLimited].
func (e *Engine) RequestReset(ctx context.Context, email string) (*RequestResetResult, error) {
	if e == nil || e.store == nil || e.limiter == nil || e.directory == nil || e.mailer == nil {
		return nil, ErrEngineNotReady
	}

	ip := clientIPFromContext(ctx)
	email = normalizeEmail(email)
	if email == "" {
		return nil, ErrEmailRequired
	}

	if wait, err := e.limiter.CheckCooldown(ctx, email); err != nil {
		if errors.Is(err, limiters.ErrCooldown) {
			e.metricInc(MetricResetThrottled)
			e.emitAudit(ctx, auditEventResetThrottled, false, "", email, ErrRequestCooldown, func() map[string]string {
				return map[string]string{
					"scope": "cooldown",
				}
			})
			return nil, &CooldownError{Wait: wait}
		}
		return nil, ErrBackendUnavailable
	}

	if err := e.limiter.CheckWindows(ctx, email, ip); err != nil {
		scope := ""
		switch {
		case errors.Is(err, limiters.ErrEmailWindowExceeded):
			scope = "email"
		case errors.Is(err, limiters.ErrIPWindowExceeded):
			scope = "ip"
		default:
			return nil, ErrBackendUnavailable
		}

		e.metricInc(MetricResetThrottled)
		e.emitAudit(ctx, auditEventResetThrottled, false, "", email, ErrRequestRateLimited, func() map[string]string {
			return map[string]string{
				"scope": scope,
			}
		})
		return nil, &RateLimitError{Scope: scope}
	}

	user, err := e.directory.GetUserByEmail(ctx, email)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return e.absorbUnknownEmail(ctx, email, ip)
	}

	code, err := e.newCode()
	if err != nil {
		return nil, err
	}

	now := e.timeNow()
	record := &stores.ResetRecord{
		ID:             uuid.NewString(),
		UserID:         user.UserID,
		Email:          email,
		OriginIP:       ip,
		CredentialHash: internal.HashCredentialBytes([]byte(code)),
		Phase:          stores.PhaseOTP,
		CreatedAt:      now.Unix(),
		ExpiresAt:      now.Add(e.config.Reset.CodeTTL).Unix(),
	}

	// SET on the email key replaces any in-flight reset for this account, so
	// only the newest code can ever verify.
	if err := e.store.Replace(ctx, record, e.config.Reset.CodeTTL); err != nil {
		return nil, ErrBackendUnavailable
	}

	if err := e.limiter.RecordRequest(ctx, email, ip); err != nil {
		return nil, ErrBackendUnavailable
	}

	e.dispatchResetEmail(email, code)
	code = ""

	e.metricInc(MetricResetRequest)
	e.emitAudit(ctx, auditEventResetRequest, true, user.UserID, email, nil, nil)

	return e.requestAck(), nil
}

// absorbUnknownEmail runs the request path for an email with no account:
// charge the limiter, pad the latency, return the generic acknowledgment.
func (e *Engine) absorbUnknownEmail(ctx context.Context, email, ip string) (*RequestResetResult, error) {
	if err := sleepEnumerationDelay(ctx); err != nil {
		return nil, err
	}

	if err := e.limiter.RecordRequest(ctx, email, ip); err != nil {
		return nil, ErrBackendUnavailable
	}

	e.metricInc(MetricResetRequestAbsorbed)
	e.emitAudit(ctx, auditEventResetRequest, true, "", email, nil, func() map[string]string {
		return map[string]string{
			"enumeration_safe": "true",
		}
	})

	return e.requestAck(), nil
}

func (e *Engine) requestAck() *RequestResetResult {
	return &RequestResetResult{
		Message:         requestAckMessage,
		CooldownSeconds: int(e.config.Reset.Cooldown.Seconds()),
	}
}
