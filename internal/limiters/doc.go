// Package limiters provides the Redis-backed admission control for reset
// requests: a per-email cooldown plus rolling-hour windows per email and per
// IP.
//
// The limiter keeps its own keys and counts every admitted request, whether
// or not the email belongs to a registered account. Deriving counts from
// reset records would throttle unknown emails differently from known ones and
// leak registration state through timing of 429s.
//
// # Architecture boundaries
//
// This package owns its Redis key namespace and error types. Policy
// thresholds come from the Config supplied at construction time.
//
// # What this package must NOT do
//
//   - Import goReset or any sibling internal package.
//   - Make policy decisions beyond counting — the engine decides consequences.
package limiters
