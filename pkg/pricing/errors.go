package pricing

import "errors"

var (
	// ErrEmptyItemKey indicates a price query without an item key.
	ErrEmptyItemKey = errors.New("empty item key")

	// ErrUnknownCategory indicates a category outside the known table set.
	ErrUnknownCategory = errors.New("unknown item category")
)
