package goReset

import "context"

// UserRecord is the account record returned by [UserDirectory]. It carries
// the password hash for credential checks; the engine never stores it.
type UserRecord struct {
	UserID       string
	Email        string
	PasswordHash string
}

// UserDirectory is the interface callers must implement to integrate goReset
// with their user database. Lookup failures for unknown emails are absorbed by
// the engine and never surfaced to the requester.
//
// Implementations must expect the email argument in normalized form
// (lower-cased, trimmed).
type UserDirectory interface {
	GetUserByEmail(ctx context.Context, email string) (UserRecord, error)
	UpdatePasswordHash(ctx context.Context, userID, newHash string) error
}

// EmailMessage is the outbound mail handed to an [EmailSender].
type EmailMessage struct {
	To      string
	Subject string
	Body    string
}

// EmailSender dispatches a single message. The engine calls Send on its own
// goroutine with a bounded-timeout context; the result never gates the
// caller-visible response.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// RequestResetResult is the generic acknowledgment returned by
// [Engine.RequestReset]. It is identical for registered and unregistered
// emails.
type RequestResetResult struct {
	Message         string
	CooldownSeconds int
}

// VerifyResult is returned by [Engine.VerifyCode] on a correct code. The
// reset token is plaintext here and nowhere else; only its hash is persisted.
type VerifyResult struct {
	ResetToken string
	ExpiresIn  int
}
