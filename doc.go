// Package goReset implements the password-reset OTP protocol: issuing a
// one-time code under cooldown and rate limits, exchanging a verified code for
// a short-lived reset token, and consuming that token exactly once to change a
// password. State lives in Redis; all record mutations are conditional updates
// so concurrent requests for the same email cannot double-spend a code, leak
// extra verification attempts, or issue two reset tokens for one record.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// goReset is the public surface. It exposes [Engine], [Builder], [Config], the
// collaborator interfaces ([UserDirectory], [EmailSender], [AuditSink]), and
// value types. Record persistence, limiter windows, and secret generation live
// under internal/ and are never exported. HTTP framing belongs to the httpapi
// package; goReset itself never parses requests or writes responses.
//
// # What this package must NOT do
//
//   - Store, log, or return a plaintext code or token anywhere except the
//     single point where a freshly generated secret is handed to the caller
//     or the mailer.
//   - Reveal through any response whether an email address is registered.
//   - Block an operation on email dispatch or audit emission.
package goReset
