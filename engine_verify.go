package goReset

import (
	"context"
	"errors"

	"github.com/MrEthical07/goReset/internal"
	"github.com/MrEthical07/goReset/internal/stores"
)

// VerifyCode exchanges a correct one-time code for a short-lived reset token.
// The token is minted before the store transaction so the record can move to
// the token phase atomically with the code check; under concurrent correct
// submissions exactly one caller receives a token.
//
// A malformed code fails fast with [ErrCodeInvalid] without consuming an
// attempt. A well-formed wrong code returns an [AttemptsError]; once the
// attempt budget is spent every further call returns [ErrAttemptsExceeded]
// and closes the record.
func (e *Engine) VerifyCode(ctx context.Context, email, code string) (*VerifyResult, error) {
	if e == nil || e.store == nil {
		return nil, ErrEngineNotReady
	}

	email = normalizeEmail(email)
	if email == "" {
		return nil, ErrEmailRequired
	}

	if len(code) != e.config.Reset.CodeDigits || !internal.IsNumericString(code) {
		e.metricInc(MetricVerifyFailure)
		e.emitAudit(ctx, auditEventResetVerify, false, "", email, ErrCodeInvalid, func() map[string]string {
			return map[string]string{
				"reason": "malformed_code",
			}
		})
		return nil, ErrCodeInvalid
	}

	secret, err := e.newSecret()
	if err != nil {
		return nil, err
	}
	token := internal.EncodeResetToken(secret)

	record, remaining, err := e.store.ConsumeCode(
		ctx,
		email,
		internal.HashCredentialBytes([]byte(code)),
		e.config.Reset.MaxVerifyAttempts,
		internal.HashResetSecret(secret),
		e.config.Reset.TokenTTL,
	)
	code = ""
	if err != nil {
		switch {
		case errors.Is(err, stores.ErrNotFound):
			e.metricInc(MetricVerifyFailure)
			e.emitAudit(ctx, auditEventResetVerify, false, "", email, ErrNoActiveRequest, nil)
			return nil, ErrNoActiveRequest
		case errors.Is(err, stores.ErrAttemptsExceeded):
			e.metricInc(MetricVerifyAttemptsExceeded)
			e.emitAudit(ctx, auditEventResetVerify, false, "", email, ErrAttemptsExceeded, nil)
			return nil, ErrAttemptsExceeded
		case errors.Is(err, stores.ErrSecretMismatch):
			e.metricInc(MetricVerifyFailure)
			e.emitAudit(ctx, auditEventResetVerify, false, "", email, ErrCodeInvalid, func() map[string]string {
				return map[string]string{
					"reason": "code_mismatch",
				}
			})
			return nil, &AttemptsError{Remaining: remaining}
		default:
			return nil, ErrBackendUnavailable
		}
	}

	e.metricInc(MetricVerifySuccess)
	e.emitAudit(ctx, auditEventResetVerify, true, record.UserID, email, nil, nil)

	return &VerifyResult{
		ResetToken: token,
		ExpiresIn:  int(e.config.Reset.TokenTTL.Seconds()),
	}, nil
}
