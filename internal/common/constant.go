// Package common contains shared constants and sentinel errors used
// across VibeVault components.
package common

import "time"

const (
	// AuthSaltLen is the length of the password-hash salt in bytes.
	AuthSaltLen = 16
	// EncryptionSaltLen is the length of the key-derivation salt in bytes.
	// It is independent of the auth salt so the stored password hash can
	// never be used to derive the data key.
	EncryptionSaltLen = 32
	// SessionTokenLen is the number of random bytes behind a session
	// token (hex-encoded, so the token string is twice as long).
	SessionTokenLen = 16

	// DefaultIdleTimeout locks sessions idle for longer than this.
	DefaultIdleTimeout = 10 * time.Minute
)

// Timestamps are persisted and transmitted as ISO-8601 UTC.
const TimeLayout = time.RFC3339
