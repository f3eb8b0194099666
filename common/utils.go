// Package common holds the shared plumbing every subsystem leans on:
// the error taxonomy, canonical content-addressed encoding, retry
// policy, logging, and small utilities.
package common

// MaskSecret redacts a sensitive string for log output: empty becomes
// "<not set>", short values collapse to "***", longer ones keep only
// their first and last four characters so an operator can still tell
// which secret is configured without the log leaking it.
func MaskSecret(secret string) string {
	if secret == "" {
		return "<not set>"
	}
	if len(secret) <= 8 {
		return "***"
	}
	return secret[:4] + "..." + secret[len(secret)-4:]
}

// Ptr returns a pointer to v, for the optional-pointer fields the
// authorization contract uses (resource ids, scopes).
func Ptr[T any](v T) *T {
	return &v
}
