package config

import "errors"

// Errors the handshake and linking callers must branch on. Credential and
// refresh failures never cross the token service boundary as errors, they
// collapse to an absent token instead.

var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrNoCredential     = errors.New("no provider credential for user")
	ErrStateExpired     = errors.New("handshake state expired")
	ErrStateInvalid     = errors.New("handshake state invalid")
	ErrExchangeFailed   = errors.New("provider code exchange failed")
	ErrMissingSubject   = errors.New("token payload has no athlete id")
	ErrIdentityConflict = errors.New("provider identity already linked to another user")
)
