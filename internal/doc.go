// Package internal contains helper utilities that are intentionally private to
// goReset, including secure random code and token generation.
//
// # Sub-packages
//
//   - limiters — cooldown and rolling-window admission control for requests
//   - stores — Redis-backed reset record store with optimistic transactions
//
// # What this package must NOT do
//
//   - Export types that appear in the public goReset API.
//   - Be imported by any package outside the goReset module.
package internal
