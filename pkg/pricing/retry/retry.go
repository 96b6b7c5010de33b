// Package retry runs provider fetches under a bounded exponential backoff
// policy and classifies their failures.
package retry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/sacrosanct24/poe-price-checker-sub000/pkg/logging"
	"github.com/sacrosanct24/poe-price-checker-sub000/pkg/metrics"
)

const (
	// DefaultMaxAttempts bounds total tries including the first.
	DefaultMaxAttempts = 3

	// DefaultInitialBackoff is the sleep before the second attempt.
	// Each further sleep doubles.
	DefaultInitialBackoff = 2 * time.Second

	// DefaultMaxSleep caps any single backoff sleep.
	DefaultMaxSleep = 8 * time.Second
)

// Class buckets provider failures by how Execute treats them.
type Class int

const (
	// ClassTransient failures are retried.
	ClassTransient Class = iota
	// ClassFatal failures stop the attempt chain at once.
	ClassFatal
	// ClassMalformed responses stop the chain but are tracked separately
	// from fatal request errors.
	ClassMalformed
)

// String returns the class name used in logs and metrics labels.
func (c Class) String() string {
	switch c {
	case ClassFatal:
		return "fatal"
	case ClassMalformed:
		return "malformed"
	default:
		return "transient"
	}
}

// Policy describes how provider fetches are retried. The zero value is
// usable; zero fields fall back to the package defaults.
type Policy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxSleep       time.Duration
}

// Default returns the standard provider retry policy.
func Default() Policy {
	return Policy{
		MaxAttempts:    DefaultMaxAttempts,
		InitialBackoff: DefaultInitialBackoff,
		MaxSleep:       DefaultMaxSleep,
	}
}

func (p Policy) withDefaults() Policy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = DefaultInitialBackoff
	}
	if p.MaxSleep <= 0 {
		p.MaxSleep = DefaultMaxSleep
	}
	return p
}

// Execute runs op under the policy. Transient failures are retried with a
// doubling backoff whose individual sleeps are capped at MaxSleep; fatal
// and malformed failures stop immediately. On exhaustion the error of the
// final attempt is returned. Backoff sleeps respect ctx, so a caller
// deadline bounds the whole chain.
func Execute[T any](ctx context.Context, p Policy, source string, logger *logging.Logger, op func(context.Context) (T, error)) (T, error) {
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	p = p.withDefaults()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialBackoff
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = p.MaxSleep
	b.MaxElapsedTime = 0
	b.Reset()

	attempt := 0
	operation := func() (T, error) {
		attempt++
		out, err := op(ctx)
		if err == nil {
			return out, nil
		}
		if class := Classify(err); class != ClassTransient {
			return out, backoff.Permanent(err)
		}
		return out, err
	}
	notify := func(err error, wait time.Duration) {
		metrics.RecordRetryAttempt(source)
		logger.Warn("retrying provider fetch",
			"source", source,
			"attempt", attempt,
			"backoff", wait.String(),
			"error", err.Error(),
		)
	}

	chain := backoff.WithContext(backoff.WithMaxRetries(b, uint64(p.MaxAttempts-1)), ctx)
	return backoff.RetryNotifyWithData(operation, chain, notify)
}

// Classify buckets err using the package sentinels. Anything unclassified,
// including raw timeouts and connection errors from the transport, counts
// as transient because provider fetches are idempotent reads.
func Classify(err error) Class {
	switch {
	case errors.Is(err, ErrMalformed):
		return ClassMalformed
	case errors.Is(err, ErrFatal):
		return ClassFatal
	default:
		return ClassTransient
	}
}

// Transient wraps err as a retryable provider failure.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrTransient, err)
}

// Fatal wraps err as a failure that must not be retried.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrFatal, err)
}

// Malformed wraps err as an undecodable provider response.
func Malformed(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrMalformed, err)
}

// FromStatus classifies an HTTP response status. 2xx yields nil, 429 and
// 5xx are transient, everything else is fatal.
func FromStatus(status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusTooManyRequests || status >= 500:
		return fmt.Errorf("%w: unexpected status %d", ErrTransient, status)
	default:
		return fmt.Errorf("%w: unexpected status %d", ErrFatal, status)
	}
}
