// Package errs contains sentinel errors and error types used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist for the owner.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a write that collides with state owned by someone else.
	ErrConflict = errors.New("conflict")

	// ErrValidation indicates malformed input rejected without side effects.
	ErrValidation = errors.New("validation")

	// ErrDuplicate indicates a vocabulary item with the same lemma, part of speech and article exists.
	ErrDuplicate = errors.New("duplicate item")

	// ErrUnauthorized indicates failed authentication/authorization.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrSyncInProgress is returned when a sync run is requested while another one is active.
	ErrSyncInProgress = errors.New("sync already in progress")

	// ErrNoNetwork indicates the remote store is unreachable.
	ErrNoNetwork = errors.New("no network connection")

	// ErrSessionNotActive indicates a review operation outside of an active session.
	ErrSessionNotActive = errors.New("review session is not active")

	// ErrSchedulingInvariant signals a scheduling state that can only come from a programming error.
	ErrSchedulingInvariant = errors.New("scheduling invariant violated")
)
