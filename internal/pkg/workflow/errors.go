// Package workflow implements the civic-issue lifecycle: the status state
// machine, its role and payload guards, and the service that commits
// transitions atomically and fans out their side effects.
package workflow

import "errors"

// Sentinel errors for workflow operations. Handlers map these to distinct
// HTTP failures; none of them may leave a partially applied transition.
var (
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrUnauthorizedActor      = errors.New("unauthorized actor")
	ErrMissingRequiredField   = errors.New("missing required field")
	ErrConcurrentModification = errors.New("concurrent modification")
	ErrClassifierUnavailable  = errors.New("classifier unavailable")
	ErrDetectionUnavailable   = errors.New("duplicate detection unavailable")
	ErrNotFound               = errors.New("not found")
)
