// Package pricing defines the core data model shared by the price
// resolution engine: queries, per-source quotes and reconciled results.
package pricing

import "time"

// Confidence grades a reconciled price for display.
type Confidence string

const (
	// ConfidenceNone means no source had data for the item.
	ConfidenceNone Confidence = "none"
	// ConfidenceLow means the result rests on thin or provider-flagged data.
	ConfidenceLow Confidence = "low"
	// ConfidenceMedium means a single source answered or sources disagreed.
	ConfidenceMedium Confidence = "medium"
	// ConfidenceHigh means independent sources agreed within the divergence threshold.
	ConfidenceHigh Confidence = "high"
)

// ProviderConfidence is the confidence a provider reports for its own quote.
type ProviderConfidence string

const (
	ProviderConfidenceUnknown ProviderConfidence = "unknown"
	ProviderConfidenceLow     ProviderConfidence = "low"
	ProviderConfidenceMedium  ProviderConfidence = "medium"
	ProviderConfidenceHigh    ProviderConfidence = "high"
)

// ToConfidence maps a provider-reported confidence onto the result scale.
// Unknown maps to medium, the default for a single unqualified source.
func (pc ProviderConfidence) ToConfidence() Confidence {
	switch pc {
	case ProviderConfidenceLow:
		return ConfidenceLow
	case ProviderConfidenceHigh:
		return ConfidenceHigh
	case ProviderConfidenceMedium, ProviderConfidenceUnknown:
		return ConfidenceMedium
	default:
		return ConfidenceMedium
	}
}

// Category identifies which bulk price table an item belongs to.
type Category string

const (
	CategoryCurrency        Category = "Currency"
	CategoryFragment        Category = "Fragment"
	CategoryDivinationCard  Category = "DivinationCard"
	CategorySkillGem        Category = "SkillGem"
	CategoryUniqueWeapon    Category = "UniqueWeapon"
	CategoryUniqueArmour    Category = "UniqueArmour"
	CategoryUniqueAccessory Category = "UniqueAccessory"
	CategoryUniqueFlask     Category = "UniqueFlask"
	CategoryUniqueJewel     Category = "UniqueJewel"
	CategoryUniqueMap       Category = "UniqueMap"
	CategoryMap             Category = "Map"
	CategoryBaseType        Category = "BaseType"
	CategoryEssence         Category = "Essence"
	CategoryFossil          Category = "Fossil"
)

// Categories returns every known category.
func Categories() []Category {
	return []Category{
		CategoryCurrency, CategoryFragment, CategoryDivinationCard,
		CategorySkillGem, CategoryUniqueWeapon, CategoryUniqueArmour,
		CategoryUniqueAccessory, CategoryUniqueFlask, CategoryUniqueJewel,
		CategoryUniqueMap, CategoryMap, CategoryBaseType,
		CategoryEssence, CategoryFossil,
	}
}

// IsValid reports whether the category is one of the known tables.
func (c Category) IsValid() bool {
	for _, known := range Categories() {
		if c == known {
			return true
		}
	}
	return false
}

// PriceQuery identifies one item to price. ItemKey is a canonical key
// built by BuildItemKey; the engine treats it as opaque.
type PriceQuery struct {
	ItemKey  string   `json:"item_key"`
	Category Category `json:"category"`
}

// Validate checks the query for the fields every lookup needs.
func (q PriceQuery) Validate() error {
	if q.ItemKey == "" {
		return ErrEmptyItemKey
	}
	if !q.Category.IsValid() {
		return ErrUnknownCategory
	}
	return nil
}

// SourceQuote is a single source's opinion of an item's price in chaos orbs.
type SourceQuote struct {
	SourceID    string             `json:"source_id"`
	ChaosValue  float64            `json:"chaos_value"`
	SampleCount int                `json:"sample_count"`
	Confidence  ProviderConfidence `json:"confidence"`
	FetchedAt   time.Time          `json:"fetched_at"`
}

// ReconciledPrice is the engine's final answer for one query. It is built
// fresh per request and never cached; caching lives at the quote layer so
// reconciliation policy can change without invalidating provider data.
type ReconciledPrice struct {
	ChaosValue          float64    `json:"chaosValue"`
	Confidence          Confidence `json:"confidence"`
	Label               string     `json:"label"`
	ContributingSources []string   `json:"contributingSources"`
}
