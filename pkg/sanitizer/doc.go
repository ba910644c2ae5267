// Package sanitizer normalizes client supplied contact data before it is
// validated and stored.
//
// All functions are idempotent. Invalid input is reported through a boolean
// or an empty result rather than an error.
package sanitizer
