// Package domain contains the core business entities for MediaHost.
package domain

import (
	"errors"
	"fmt"
)

// Domain errors - these represent business rule violations.
// They are distinct from infrastructure errors (database, network, etc.).

var (
	// ===========================================
	// User Errors
	// ===========================================

	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrUserAlreadyExists indicates a user with the same username exists.
	ErrUserAlreadyExists = errors.New("user already exists")

	// ErrInvalidCredentials indicates authentication failed.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ===========================================
	// API Key Errors
	// ===========================================

	// ErrAPIKeyNotFound indicates the presented API key does not exist.
	ErrAPIKeyNotFound = errors.New("api key not found")

	// ErrOrphanedAPIKey indicates an API key whose owning user record is
	// missing. This is a data-integrity violation, not a caller error.
	ErrOrphanedAPIKey = errors.New("api key refers to a missing user")

	// ===========================================
	// Session Errors
	// ===========================================

	// ErrMalformedToken indicates a session token that does not have the
	// expected shape or whose signature does not verify.
	ErrMalformedToken = errors.New("malformed session token")

	// ErrTokenExpired indicates a session token past its expiry.
	ErrTokenExpired = errors.New("session token has expired")

	// ErrRefreshNotHonored indicates a refresh token that is unknown to the
	// registry or past its own expiry.
	ErrRefreshNotHonored = errors.New("refresh token is no longer honored")

	// ===========================================
	// Content / Upload Errors
	// ===========================================

	// ErrContentNotFound indicates the requested content does not exist.
	ErrContentNotFound = errors.New("content not found")

	// ErrStreamNotFound indicates the upload stream handle is unknown,
	// either never issued or already finished, aborted, or expired.
	ErrStreamNotFound = errors.New("upload stream not found")

	// ErrStreamOverCapacity indicates a push that would make the stream
	// exceed its declared total size. Stream state is unchanged.
	ErrStreamOverCapacity = errors.New("push would exceed declared upload size")

	// ErrQuotaExceeded indicates a declared size beyond the owner's per-file
	// or remaining total upload quota.
	ErrQuotaExceeded = errors.New("upload quota exceeded")

	// ErrInvalidDeclaredSize indicates a declared total size that is zero,
	// negative, or otherwise unusable.
	ErrInvalidDeclaredSize = errors.New("invalid declared upload size")

	// ErrStreamIncomplete indicates a finish request on a stream that has
	// not yet received every declared byte.
	ErrStreamIncomplete = errors.New("upload stream is not complete")
)

// DomainError wraps a domain error with additional context.
type DomainError struct {
	// Err is the underlying domain error.
	Err error

	// Message provides additional context.
	Message string

	// Resource identifies the affected resource (e.g., username, content id).
	Resource string
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Resource != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Err.Error(), e.Message, e.Resource)
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error for errors.Is/errors.As.
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError with context.
func NewDomainError(err error, message, resource string) *DomainError {
	return &DomainError{
		Err:      err,
		Message:  message,
		Resource: resource,
	}
}
