package pricing

import (
	"errors"
	"testing"
)

func TestProviderConfidenceToConfidence(t *testing.T) {
	tests := []struct {
		name     string
		provider ProviderConfidence
		expected Confidence
	}{
		{"low maps to low", ProviderConfidenceLow, ConfidenceLow},
		{"medium maps to medium", ProviderConfidenceMedium, ConfidenceMedium},
		{"high maps to high", ProviderConfidenceHigh, ConfidenceHigh},
		{"unknown defaults to medium", ProviderConfidenceUnknown, ConfidenceMedium},
		{"unrecognized defaults to medium", ProviderConfidence("weird"), ConfidenceMedium},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.provider.ToConfidence(); got != tt.expected {
				t.Errorf("ToConfidence() = %v, expected %v", got, tt.expected)
			}
		})
	}
}

func TestCategoryIsValid(t *testing.T) {
	for _, c := range Categories() {
		if !c.IsValid() {
			t.Errorf("category %q should be valid", c)
		}
	}

	for _, c := range []Category{"", "Uniques", "currency", "Weapon"} {
		if c.IsValid() {
			t.Errorf("category %q should not be valid", c)
		}
	}
}

func TestPriceQueryValidate(t *testing.T) {
	tests := []struct {
		name    string
		query   PriceQuery
		wantErr error
	}{
		{
			name:    "valid query",
			query:   PriceQuery{ItemKey: "headhunter|leather belt|unique", Category: CategoryUniqueAccessory},
			wantErr: nil,
		},
		{
			name:    "missing item key",
			query:   PriceQuery{Category: CategoryCurrency},
			wantErr: ErrEmptyItemKey,
		},
		{
			name:    "unknown category",
			query:   PriceQuery{ItemKey: "divine orb|currency", Category: Category("Orbs")},
			wantErr: ErrUnknownCategory,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.query.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate() returned unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, expected %v", err, tt.wantErr)
			}
		})
	}
}
