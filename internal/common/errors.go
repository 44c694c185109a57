// Package common defines shared constants and sentinel errors used across
// the sync and key-lifecycle layers of RemindSafe. Callers should use
// errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Lock manager errors. Timeout and deletion mid-wait are distinct
	// outcomes and must stay distinguishable at call sites.
	ErrLockTimeout   = errors.New("lock acquisition timeout")
	ErrTargetDeleted = errors.New("target deleted mid-wait")
	ErrLockCleared   = errors.New("lock manager cleared")

	// Cipher errors. ErrInvalidKeyMaterial marks a non-retryable failure:
	// the key itself is corrupt, so retrying cannot succeed.
	ErrInvalidKeyMaterial = errors.New("invalid key material")
	ErrKeyNotUnlocked     = errors.New("key not unlocked")

	// Key lifecycle errors.
	ErrInvalidConfirmationToken = errors.New("invalid confirmation token")
	ErrKeyStillPresent          = errors.New("key material still present after destruction")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
