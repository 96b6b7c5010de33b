// Package reconcile combines per-source quotes into one priced answer.
package reconcile

import (
	"fmt"
	"math"
	"strconv"

	"github.com/sacrosanct24/poe-price-checker-sub000/pkg/logging"
	"github.com/sacrosanct24/poe-price-checker-sub000/pkg/pricing"
)

// DefaultAgreementThreshold is the relative divergence up to which the two
// sources are considered to agree.
const DefaultAgreementThreshold = 0.20

// The label vocabulary is fixed so callers can rely on it; only the
// averaged label carries the two values that produced the average.
const (
	LabelNoData        = "no data"
	LabelPrimaryOnly   = "primary only"
	LabelSecondaryOnly = "secondary only"
	LabelSecondaryLow  = "primary (secondary: low confidence)"
	LabelValidated     = "primary validated by secondary"
)

// Reconciler merges the primary and secondary quote for a query. The
// primary source updates faster and wins whenever the two agree; the
// secondary is the market check against it.
type Reconciler struct {
	threshold float64
	logger    *logging.Logger
}

// New creates a reconciler. A non-positive threshold falls back to
// DefaultAgreementThreshold.
func New(threshold float64, logger *logging.Logger) *Reconciler {
	if threshold <= 0 {
		threshold = DefaultAgreementThreshold
	}
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	return &Reconciler{threshold: threshold, logger: logger}
}

// Reconcile applies the decision table to zero, one, or two quotes. It is
// deterministic and never mutates its inputs.
func (r *Reconciler) Reconcile(primary, secondary *pricing.SourceQuote) pricing.ReconciledPrice {
	result := r.decide(primary, secondary)

	for _, quote := range []*pricing.SourceQuote{primary, secondary} {
		if quote != nil {
			result.ContributingSources = append(result.ContributingSources, quote.SourceID)
		}
	}

	r.logger.Debug("Reconciled quotes",
		"label", result.Label,
		"chaos_value", result.ChaosValue,
		"confidence", string(result.Confidence),
		"sources", len(result.ContributingSources))
	return result
}

func (r *Reconciler) decide(primary, secondary *pricing.SourceQuote) pricing.ReconciledPrice {
	switch {
	case primary == nil && secondary == nil:
		return pricing.ReconciledPrice{
			ChaosValue: 0,
			Confidence: pricing.ConfidenceNone,
			Label:      LabelNoData,
		}

	case secondary == nil:
		return pricing.ReconciledPrice{
			ChaosValue: primary.ChaosValue,
			Confidence: pricing.ConfidenceMedium,
			Label:      LabelPrimaryOnly,
		}

	case primary == nil:
		return pricing.ReconciledPrice{
			ChaosValue: secondary.ChaosValue,
			Confidence: secondary.Confidence.ToConfidence(),
			Label:      LabelSecondaryOnly,
		}

	case secondary.Confidence == pricing.ProviderConfidenceLow:
		return pricing.ReconciledPrice{
			ChaosValue: primary.ChaosValue,
			Confidence: pricing.ConfidenceMedium,
			Label:      LabelSecondaryLow,
		}
	}

	diff := relativeDiff(primary.ChaosValue, secondary.ChaosValue)
	if diff <= r.threshold {
		return pricing.ReconciledPrice{
			ChaosValue: primary.ChaosValue,
			Confidence: pricing.ConfidenceHigh,
			Label:      LabelValidated,
		}
	}

	return pricing.ReconciledPrice{
		ChaosValue: (primary.ChaosValue + secondary.ChaosValue) / 2,
		Confidence: pricing.ConfidenceMedium,
		Label: fmt.Sprintf("averaged (primary=%s, secondary=%s)",
			formatChaos(primary.ChaosValue), formatChaos(secondary.ChaosValue)),
	}
}

// relativeDiff is |p-s| scaled by the larger of the two. Two zero prices
// count as perfect agreement.
func relativeDiff(p, s float64) float64 {
	scale := math.Max(p, s)
	if scale == 0 {
		return 0
	}
	return math.Abs(p-s) / scale
}

func formatChaos(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
