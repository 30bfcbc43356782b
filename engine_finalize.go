package goReset

import (
	"context"
	"errors"
	"log"

	"github.com/MrEthical07/goReset/internal"
	"github.com/MrEthical07/goReset/internal/stores"
)

// FinalizeReset consumes a reset token and writes the new password hash to
// the user directory. The token is deleted before the password update, so a
// token can never be redeemed twice even when the directory write fails; the
// caller then restarts the flow from a fresh request.
//
// A replayed or corrupted token returns [ErrTokenInvalid]; an expired or
// already-closed reset returns [ErrResetExpired]; a password shorter than the
// configured minimum returns [ErrPasswordPolicy].
func (e *Engine) FinalizeReset(ctx context.Context, email, token, newPassword string) error {
	if e == nil || e.store == nil || e.directory == nil || e.passwordHash == nil {
		return ErrEngineNotReady
	}

	email = normalizeEmail(email)
	if email == "" {
		return ErrEmailRequired
	}

	if len(newPassword) < e.config.Reset.MinPasswordLength {
		e.metricInc(MetricFinalizeFailure)
		e.emitAudit(ctx, auditEventResetFinalize, false, "", email, ErrPasswordPolicy, nil)
		return ErrPasswordPolicy
	}

	secret, err := internal.DecodeResetToken(token)
	if err != nil {
		e.metricInc(MetricFinalizeFailure)
		e.emitAudit(ctx, auditEventResetFinalize, false, "", email, ErrTokenInvalid, func() map[string]string {
			return map[string]string{
				"reason": "malformed_token",
			}
		})
		return ErrTokenInvalid
	}

	record, err := e.store.ConsumeToken(ctx, email, internal.HashResetSecret(secret))
	if err != nil {
		switch {
		case errors.Is(err, stores.ErrNotFound):
			e.metricInc(MetricFinalizeFailure)
			e.emitAudit(ctx, auditEventResetReplay, false, "", email, ErrResetExpired, nil)
			return ErrResetExpired
		case errors.Is(err, stores.ErrSecretMismatch):
			e.metricInc(MetricFinalizeFailure)
			e.emitAudit(ctx, auditEventResetFinalize, false, "", email, ErrTokenInvalid, func() map[string]string {
				return map[string]string{
					"reason": "token_mismatch",
				}
			})
			return ErrTokenInvalid
		default:
			return ErrBackendUnavailable
		}
	}

	newHash, err := e.passwordHash.Hash(newPassword)
	newPassword = ""
	if err != nil {
		e.metricInc(MetricFinalizeFailure)
		e.emitAudit(ctx, auditEventResetFinalize, false, record.UserID, email, ErrPasswordPolicy, nil)
		return ErrPasswordPolicy
	}

	if err := e.directory.UpdatePasswordHash(ctx, record.UserID, newHash); err != nil {
		e.metricInc(MetricFinalizeFailure)
		e.emitAudit(ctx, auditEventResetFinalize, false, record.UserID, email, ErrBackendUnavailable, func() map[string]string {
			return map[string]string{
				"reason": "directory_update_failed",
			}
		})
		return ErrBackendUnavailable
	}

	// Cleanup of other in-flight resets for the account is best-effort and
	// must not fail an already-applied password change.
	if err := e.store.CloseAllForUser(ctx, record.UserID); err != nil {
		log.Print("goReset: reset record cleanup failed after password change")
	}

	e.metricInc(MetricFinalizeSuccess)
	e.emitAudit(ctx, auditEventResetFinalize, true, record.UserID, email, nil, nil)

	return nil
}
