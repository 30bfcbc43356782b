// Package httpapi exposes the reset engine over HTTP with echo.
//
// Error payloads are coarse on purpose: throttle and validation responses are
// worded identically for registered and unregistered emails, and internal
// failures surface as a bare 500 envelope.
package httpapi

import (
	"errors"
	"net/http"

	"github.com/MrEthical07/goReset"
	"github.com/labstack/echo/v4"
)

// Register mounts the password reset routes on e.
func Register(e *echo.Echo, engine *goReset.Engine) {
	h := &handler{engine: engine}

	e.POST("/password-reset/request", h.requestReset)
	e.POST("/password-reset/verify", h.verifyCode)
	e.POST("/password-reset/finalize", h.finalizeReset)
}

type handler struct {
	engine *goReset.Engine
}

func (h *handler) requestReset(c echo.Context) error {
	var req RequestResetRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "bad body"})
	}

	ctx := goReset.WithClientIP(c.Request().Context(), c.RealIP())

	result, err := h.engine.RequestReset(ctx, req.Email)
	if err != nil {
		var cooldown *goReset.CooldownError
		switch {
		case errors.Is(err, goReset.ErrEmailRequired):
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: goReset.ErrEmailRequired.Error()})
		case errors.As(err, &cooldown):
			return c.JSON(http.StatusTooManyRequests, ErrorResponse{
				Error:       "please wait before requesting another code",
				WaitSeconds: cooldown.WaitSeconds(),
			})
		case errors.Is(err, goReset.ErrRequestRateLimited):
			return c.JSON(http.StatusTooManyRequests, ErrorResponse{
				Error: "too many reset requests, try again later",
			})
		default:
			return internalError(c)
		}
	}

	return c.JSON(http.StatusOK, RequestResetResponse{
		OK:              true,
		Message:         result.Message,
		CooldownSeconds: result.CooldownSeconds,
	})
}

func (h *handler) verifyCode(c echo.Context) error {
	var req VerifyRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "bad body"})
	}

	ctx := goReset.WithClientIP(c.Request().Context(), c.RealIP())

	result, err := h.engine.VerifyCode(ctx, req.Email, req.OTP)
	if err != nil {
		var attempts *goReset.AttemptsError
		switch {
		case errors.Is(err, goReset.ErrEmailRequired):
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: goReset.ErrEmailRequired.Error()})
		case errors.As(err, &attempts):
			return c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:             goReset.ErrCodeInvalid.Error(),
				RemainingAttempts: attempts.Remaining,
			})
		case errors.Is(err, goReset.ErrCodeInvalid), errors.Is(err, goReset.ErrNoActiveRequest):
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: goReset.ErrCodeInvalid.Error()})
		case errors.Is(err, goReset.ErrAttemptsExceeded):
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: goReset.ErrAttemptsExceeded.Error()})
		default:
			return internalError(c)
		}
	}

	return c.JSON(http.StatusOK, VerifyResponse{
		OK:         true,
		ResetToken: result.ResetToken,
		ExpiresIn:  result.ExpiresIn,
	})
}

func (h *handler) finalizeReset(c echo.Context) error {
	var req FinalizeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "bad body"})
	}

	ctx := goReset.WithClientIP(c.Request().Context(), c.RealIP())

	err := h.engine.FinalizeReset(ctx, req.Email, req.ResetToken, req.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, goReset.ErrEmailRequired):
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: goReset.ErrEmailRequired.Error()})
		case errors.Is(err, goReset.ErrPasswordPolicy):
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "password too short"})
		case errors.Is(err, goReset.ErrTokenInvalid), errors.Is(err, goReset.ErrResetExpired):
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: goReset.ErrTokenInvalid.Error()})
		default:
			return internalError(c)
		}
	}

	return c.JSON(http.StatusOK, FinalizeResponse{
		OK:      true,
		Message: "Password updated.",
	})
}

func internalError(c echo.Context) error {
	return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
}
