package sources

import "errors"

var (
	// ErrUnknownSource indicates that no factory is registered for the key.
	ErrUnknownSource = errors.New("unknown source")
	// ErrInvalidConfig indicates that the source configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrMissingBaseURL indicates that base_url is required.
	ErrMissingBaseURL = errors.New("base_url is required")
	// ErrMissingLeague indicates that league is required.
	ErrMissingLeague = errors.New("league is required")
	// ErrInvalidResponse indicates an invalid response from the source.
	ErrInvalidResponse = errors.New("invalid response")
	// ErrEmptyTable indicates that a bulk table refresh returned no lines.
	ErrEmptyTable = errors.New("no lines in table response")
	// ErrCategoriesMustBeArray indicates that categories must be an array.
	ErrCategoriesMustBeArray = errors.New("categories must be an array")
)
