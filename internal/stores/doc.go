// Package stores provides the Redis-backed, short-lived record store for the
// password reset flow.
//
// # Design
//
// One versioned, binary-encoded record per normalized email, persisted with a
// TTL. The record moves through two phases: awaiting the one-time code, then
// awaiting the reset token. Mutation operations (ConsumeCode, ConsumeToken)
// use WATCH/MULTI optimistic transactions with automatic retry on contention,
// so at most one concurrent caller can advance or consume a record. Secret
// comparisons use constant-time compare.
//
// # Architecture boundaries
//
// This package owns persistence and concurrency control for reset records.
// It does NOT generate codes/tokens, enforce rate limits, hash passwords, or
// send mail — those responsibilities belong to the engine.
//
// # What this package must NOT do
//
//   - Import goReset or any sibling internal package.
//   - Log or expose plaintext secrets.
//   - Use non-constant-time comparisons for secret matching.
package stores
