package retry

import "errors"

var (
	// ErrTransient marks provider failures worth retrying, such as network
	// timeouts, connection failures and HTTP 429 or 5xx answers.
	ErrTransient = errors.New("transient provider error")

	// ErrFatal marks provider failures where retrying would send the same
	// doomed request again, such as HTTP 4xx answers other than 429.
	ErrFatal = errors.New("fatal provider error")

	// ErrMalformed marks responses that arrived but could not be decoded.
	// They are never retried: the provider answered, the payload is broken.
	ErrMalformed = errors.New("malformed provider response")
)
