package reconcile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sacrosanct24/poe-price-checker-sub000/pkg/logging"
	"github.com/sacrosanct24/poe-price-checker-sub000/pkg/pricing"
)

func quote(source string, value float64, confidence pricing.ProviderConfidence) *pricing.SourceQuote {
	return &pricing.SourceQuote{
		SourceID:   source,
		ChaosValue: value,
		Confidence: confidence,
		FetchedAt:  time.Now(),
	}
}

func TestReconciler_NoData(t *testing.T) {
	r := New(0, logging.NewNoopLogger())

	result := r.Reconcile(nil, nil)

	assert.Equal(t, 0.0, result.ChaosValue)
	assert.Equal(t, pricing.ConfidenceNone, result.Confidence)
	assert.Equal(t, LabelNoData, result.Label)
	assert.Empty(t, result.ContributingSources)
}

func TestReconciler_PrimaryOnly(t *testing.T) {
	r := New(0, logging.NewNoopLogger())

	result := r.Reconcile(quote("ninja", 42.5, pricing.ProviderConfidenceHigh), nil)

	assert.Equal(t, 42.5, result.ChaosValue)
	assert.Equal(t, pricing.ConfidenceMedium, result.Confidence)
	assert.Equal(t, LabelPrimaryOnly, result.Label)
	assert.Equal(t, []string{"ninja"}, result.ContributingSources)
}

func TestReconciler_SecondaryOnly(t *testing.T) {
	r := New(0, logging.NewNoopLogger())

	// Scenario: the bulk source has no listing, the search source reports
	// a thin market.
	result := r.Reconcile(nil, quote("trade", 80.0, pricing.ProviderConfidenceLow))

	assert.Equal(t, 80.0, result.ChaosValue)
	assert.Equal(t, pricing.ConfidenceLow, result.Confidence)
	assert.Equal(t, LabelSecondaryOnly, result.Label)
	assert.Equal(t, []string{"trade"}, result.ContributingSources)
}

func TestReconciler_SecondaryOnlyUnknownConfidence(t *testing.T) {
	r := New(0, logging.NewNoopLogger())

	result := r.Reconcile(nil, quote("trade", 80.0, pricing.ProviderConfidenceUnknown))

	assert.Equal(t, pricing.ConfidenceMedium, result.Confidence)
}

func TestReconciler_SecondaryLowConfidencePrefersPrimary(t *testing.T) {
	r := New(0, logging.NewNoopLogger())

	// Even perfectly agreeing values stay at medium when the secondary
	// flags its own data as thin.
	result := r.Reconcile(
		quote("ninja", 100.0, pricing.ProviderConfidenceHigh),
		quote("trade", 100.0, pricing.ProviderConfidenceLow),
	)

	assert.Equal(t, 100.0, result.ChaosValue)
	assert.Equal(t, pricing.ConfidenceMedium, result.Confidence)
	assert.Equal(t, LabelSecondaryLow, result.Label)
	assert.Equal(t, []string{"ninja", "trade"}, result.ContributingSources)
}

func TestReconciler_Agreement(t *testing.T) {
	r := New(0, logging.NewNoopLogger())

	primary := quote("ninja", 150.8, pricing.ProviderConfidenceHigh)
	secondary := quote("trade", 157.3, pricing.ProviderConfidenceHigh)
	secondary.SampleCount = 1948

	result := r.Reconcile(primary, secondary)

	assert.Equal(t, 150.8, result.ChaosValue)
	assert.Equal(t, pricing.ConfidenceHigh, result.Confidence)
	assert.Contains(t, result.Label, "validated")
	assert.Equal(t, []string{"ninja", "trade"}, result.ContributingSources)
}

func TestReconciler_Divergence(t *testing.T) {
	r := New(0, logging.NewNoopLogger())

	result := r.Reconcile(
		quote("ninja", 100.0, pricing.ProviderConfidenceHigh),
		quote("trade", 150.0, pricing.ProviderConfidenceHigh),
	)

	assert.Equal(t, 125.0, result.ChaosValue)
	assert.Equal(t, pricing.ConfidenceMedium, result.Confidence)
	assert.Equal(t, "averaged (primary=100, secondary=150)", result.Label)
	assert.Equal(t, []string{"ninja", "trade"}, result.ContributingSources)
}

func TestReconciler_SameQuoteAgreesWithItself(t *testing.T) {
	r := New(0, logging.NewNoopLogger())

	q := quote("ninja", 3.14, pricing.ProviderConfidenceMedium)
	result := r.Reconcile(q, q)

	assert.Equal(t, pricing.ConfidenceHigh, result.Confidence)
	assert.Equal(t, 3.14, result.ChaosValue)
}

func TestReconciler_ZeroPricesAgree(t *testing.T) {
	r := New(0, logging.NewNoopLogger())

	result := r.Reconcile(
		quote("ninja", 0, pricing.ProviderConfidenceHigh),
		quote("trade", 0, pricing.ProviderConfidenceHigh),
	)

	assert.Equal(t, pricing.ConfidenceHigh, result.Confidence)
	assert.Equal(t, 0.0, result.ChaosValue)
}

func TestReconciler_ThresholdBoundaryCountsAsAgreement(t *testing.T) {
	r := New(0, logging.NewNoopLogger())

	// diff is exactly 0.20.
	result := r.Reconcile(
		quote("ninja", 80.0, pricing.ProviderConfidenceHigh),
		quote("trade", 100.0, pricing.ProviderConfidenceHigh),
	)

	assert.Equal(t, pricing.ConfidenceHigh, result.Confidence)
	assert.Equal(t, 80.0, result.ChaosValue)
}

func TestReconciler_CustomThreshold(t *testing.T) {
	loose := New(0.5, logging.NewNoopLogger())
	result := loose.Reconcile(
		quote("ninja", 100.0, pricing.ProviderConfidenceHigh),
		quote("trade", 150.0, pricing.ProviderConfidenceHigh),
	)
	require.Equal(t, pricing.ConfidenceHigh, result.Confidence)
	assert.Equal(t, 100.0, result.ChaosValue)

	strict := New(0.01, logging.NewNoopLogger())
	result = strict.Reconcile(
		quote("ninja", 100.0, pricing.ProviderConfidenceHigh),
		quote("trade", 102.0, pricing.ProviderConfidenceHigh),
	)
	require.Equal(t, pricing.ConfidenceMedium, result.Confidence)
	assert.Equal(t, 101.0, result.ChaosValue)
}

func TestReconciler_NilLoggerAndDefaults(t *testing.T) {
	r := New(-1, nil)

	result := r.Reconcile(
		quote("ninja", 100.0, pricing.ProviderConfidenceHigh),
		quote("trade", 150.0, pricing.ProviderConfidenceHigh),
	)

	assert.Equal(t, 125.0, result.ChaosValue)
	assert.Equal(t, pricing.ConfidenceMedium, result.Confidence)
}
