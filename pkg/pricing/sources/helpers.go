package sources

import (
	"fmt"
	"time"

	"github.com/sacrosanct24/poe-price-checker-sub000/pkg/logging"
	"github.com/sacrosanct24/poe-price-checker-sub000/pkg/pricing"
	"github.com/sacrosanct24/poe-price-checker-sub000/pkg/pricing/ratelimit"
)

// Listing-count thresholds for deriving provider confidence when the
// provider does not flag its own.
const (
	// LowConfidenceListings is the count below which a price is thin.
	LowConfidenceListings = 5
	// MediumConfidenceListings is the count below which a price is merely
	// adequate.
	MediumConfidenceListings = 20
)

// ConfidenceFromListings derives provider confidence from how many
// listings back a price. A missing count yields unknown.
func ConfidenceFromListings(count int) pricing.ProviderConfidence {
	switch {
	case count <= 0:
		return pricing.ProviderConfidenceUnknown
	case count < LowConfidenceListings:
		return pricing.ProviderConfidenceLow
	case count < MediumConfidenceListings:
		return pricing.ProviderConfidenceMedium
	default:
		return pricing.ProviderConfidenceHigh
	}
}

// GetLoggerFromConfig extracts the logger from the config map or returns a
// noop logger. Clients use this to pick up the logger passed from main.go.
func GetLoggerFromConfig(config map[string]interface{}) *logging.Logger {
	if loggerInterface, ok := config["logger"]; ok {
		if logger, ok := loggerInterface.(*logging.Logger); ok {
			return logger
		}
	}

	return logging.NewNoopLogger()
}

// GetLimiterFromConfig extracts the shared rate limiter passed from
// main.go. A client built without one gets a private limiter so request
// spacing still holds.
func GetLimiterFromConfig(config map[string]interface{}) *ratelimit.Limiter {
	if limiterInterface, ok := config["limiter"]; ok {
		if limiter, ok := limiterInterface.(*ratelimit.Limiter); ok {
			return limiter
		}
	}

	return ratelimit.New(time.Second)
}

// GetString reads a string key from the config map.
func GetString(config map[string]interface{}, key, fallback string) string {
	if v, ok := config[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

// GetInt reads an integer key from the config map, accepting the numeric
// types YAML decoding produces.
func GetInt(config map[string]interface{}, key string, fallback int) int {
	switch v := config[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return fallback
	}
}

// GetDuration reads a duration key from the config map. Strings go through
// time.ParseDuration; bare integers are taken as milliseconds.
func GetDuration(config map[string]interface{}, key string, fallback time.Duration) time.Duration {
	switch v := config[key].(type) {
	case time.Duration:
		return v
	case string:
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		return fallback
	case int:
		return time.Duration(v) * time.Millisecond
	case int64:
		return time.Duration(v) * time.Millisecond
	case float64:
		return time.Duration(v) * time.Millisecond
	default:
		return fallback
	}
}

// GetStringSlice reads a list of strings from the config map.
func GetStringSlice(config map[string]interface{}, key string) ([]string, error) {
	raw, ok := config[key]
	if !ok {
		return nil, nil
	}

	list, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCategoriesMustBeArray, key)
	}

	out := make([]string, 0, len(list))
	for i, item := range list {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s[%d] is %T", ErrInvalidConfig, key, i, item)
		}
		out = append(out, s)
	}
	return out, nil
}
