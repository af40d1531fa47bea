package shared

import "errors"

var (
	ErrNotImplemented = errors.New("not implemented")

	// Configuration errors
	ErrMissingConfig      = errors.New("configuration not found")
	ErrInvalidConfig      = errors.New("invalid configuration")
	ErrMissingCredentials = errors.New("missing credentials")

	// Authentication errors
	ErrAuthFailed       = errors.New("authentication failed")
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrTimeout          = errors.New("operation timed out")

	// Catalog errors
	ErrSessionUnavailable = errors.New("catalog session unavailable")
	ErrNotFound           = errors.New("not found")
	ErrCreation           = errors.New("playlist creation failed")
	ErrTransient          = errors.New("catalog request failed")
	ErrPlaylistNotFound   = errors.New("playlist not found")

	// File errors
	ErrParse = errors.New("unable to parse playlist file")
	ErrIO    = errors.New("file operation failed")

	// Input validation errors
	ErrInvalidInput    = errors.New("invalid input")
	ErrMissingArgument = errors.New("missing required argument")
	ErrInvalidArgument = errors.New("invalid argument")
)
