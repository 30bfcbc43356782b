package httpapi

// RequestResetRequest carries the reset request fields.
type RequestResetRequest struct {
	Email string `json:"email"`
}

// RequestResetResponse acknowledges an admitted reset request. The payload is
// identical for registered and unregistered emails.
type RequestResetResponse struct {
	OK              bool   `json:"ok"`
	Message         string `json:"message"`
	CooldownSeconds int    `json:"cooldownSeconds"`
}

// VerifyRequest carries the code verification fields.
type VerifyRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

// VerifyResponse returns the short-lived reset token for a correct code.
type VerifyResponse struct {
	OK         bool   `json:"ok"`
	ResetToken string `json:"resetToken"`
	ExpiresIn  int    `json:"expiresIn"`
}

// FinalizeRequest carries the password finalization fields.
type FinalizeRequest struct {
	Email       string `json:"email"`
	ResetToken  string `json:"resetToken"`
	NewPassword string `json:"newPassword"`
}

// FinalizeResponse confirms the password change.
type FinalizeResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// ErrorResponse is the uniform error envelope.
type ErrorResponse struct {
	OK                bool   `json:"ok"`
	Error             string `json:"error"`
	WaitSeconds       int    `json:"waitSeconds,omitempty"`
	RemainingAttempts int    `json:"remainingAttempts,omitempty"`
}
