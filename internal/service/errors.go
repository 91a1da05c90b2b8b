// Package service provides business logic services for MediaHost.
package service

import "errors"

// Common service errors.
var (
	// User errors
	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrInvalidUsername   = errors.New("invalid username")
	ErrInvalidPassword   = errors.New("invalid password")
	ErrWrongPassword     = errors.New("wrong password")
	ErrSignupRejected    = errors.New("signup rejected")

	// API key errors
	ErrAPIKeyNotFound = errors.New("api key not found")
	ErrNotKeyOwner    = errors.New("api key belongs to another user")

	// Session errors
	ErrSessionInvalid = errors.New("session is invalid")

	// Content errors
	ErrContentNotFound = errors.New("content not found")
	ErrNotContentOwner = errors.New("content belongs to another user")

	// General errors
	ErrInternalError = errors.New("internal server error")
)
