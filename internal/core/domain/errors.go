package domain

import "errors"

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates the resource already exists
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates authentication failed or missing
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the caller lacks permission for this action
	ErrForbidden = errors.New("forbidden")

	// ErrTokenExpired indicates the auth token has expired
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenInvalid indicates the auth token is malformed or invalid
	ErrTokenInvalid = errors.New("token invalid")

	// ErrSessionExpired indicates the OAuth session has expired
	ErrSessionExpired = errors.New("session expired")

	// ErrRateLimited indicates the credential exceeded its request budget
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrInvalidProvider indicates an unknown or untrusted OAuth provider
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrKeyExpired indicates the API key's expiry has passed
	ErrKeyExpired = errors.New("api key expired")
)
