// Package auth implements capability-based, multi-scheme authorization for
// MediaHost: credential resolution, the step-up OTP check, and the single
// gate route handlers call.
package auth

import (
	"net/http"

	"github.com/prn-tf/mediahost/internal/domain"
	"github.com/prn-tf/mediahost/internal/session"
)

// =============================================================================
// Credential Presentation
// =============================================================================

// Scheme identifies how the caller presented credentials.
type Scheme string

const (
	// SchemeNone indicates no usable credential header was present.
	SchemeNone Scheme = "none"

	// SchemeBasic is username:password via the Authorization header.
	SchemeBasic Scheme = "basic"

	// SchemeBearer is a signed session token via the Authorization header.
	SchemeBearer Scheme = "bearer"

	// SchemeAPIKey is a secret token via the X-API-Key header.
	SchemeAPIKey Scheme = "apikey"
)

// Presentation is the credential material extracted from a request. Exactly
// one scheme's fields are populated.
type Presentation struct {
	// Scheme selects which credential was presented.
	Scheme Scheme

	// Username and Password are set for SchemeBasic.
	Username string
	Password string

	// Token is the session token (SchemeBearer) or API key (SchemeAPIKey).
	Token string

	// OTP is the optional step-up one-time code.
	OTP string

	// BehalfOf is the username an administrative key acts for.
	BehalfOf string
}

// =============================================================================
// Authorization Results
// =============================================================================

// ClientAuthentication is the result of an authorization attempt: one of the
// per-scheme success variants or a Failure. Call sites switch exhaustively on
// the concrete type.
type ClientAuthentication interface {
	clientAuthentication()
}

// SuccessBasic is a password-authenticated caller.
type SuccessBasic struct {
	User   *domain.User
	Rights domain.RightSet
}

// SuccessSession is a session-token-authenticated caller.
type SuccessSession struct {
	User   *domain.User
	Rights domain.RightSet

	// Claims are the verified token claims, needed by refresh and logout.
	Claims *session.Claims

	// Token is the raw presented token.
	Token string
}

// SuccessAPIKey is an API-key-authenticated caller.
type SuccessAPIKey struct {
	User   *domain.User
	Rights domain.RightSet

	// Key is the matched key record. Nil for administrative keys.
	Key *domain.APIKey

	// Admin is true when the presented key was on the configured
	// administrative allow-list.
	Admin bool
}

// Failure carries a human-readable message and an HTTP status
// classification. Callers surface both verbatim.
type Failure struct {
	Message    string
	StatusCode int
}

func (SuccessBasic) clientAuthentication()   {}
func (SuccessSession) clientAuthentication() {}
func (SuccessAPIKey) clientAuthentication()  {}
func (Failure) clientAuthentication()        {}

// NewFailure creates a Failure result.
func NewFailure(message string, statusCode int) Failure {
	return Failure{Message: message, StatusCode: statusCode}
}

// Identity extracts the authenticated user and granted rights from a success
// variant. Returns ok=false for a Failure.
func Identity(result ClientAuthentication) (user *domain.User, rights domain.RightSet, ok bool) {
	switch r := result.(type) {
	case SuccessBasic:
		return r.User, r.Rights, true
	case SuccessSession:
		return r.User, r.Rights, true
	case SuccessAPIKey:
		return r.User, r.Rights, true
	default:
		return nil, 0, false
	}
}

// IsAdmin reports whether the result came from an administrative API key.
func IsAdmin(result ClientAuthentication) bool {
	r, ok := result.(SuccessAPIKey)
	return ok && r.Admin
}

// failure helpers used across the package.

func failureNotFound(message string) Failure {
	return NewFailure(message, http.StatusNotFound)
}

func failureBadRequest(message string) Failure {
	return NewFailure(message, http.StatusBadRequest)
}

func failureUnauthorized(message string) Failure {
	return NewFailure(message, http.StatusUnauthorized)
}

func failureForbidden(message string) Failure {
	return NewFailure(message, http.StatusForbidden)
}

func failureInternal(message string) Failure {
	return NewFailure(message, http.StatusInternalServerError)
}
