package pricing

import (
	"sort"
	"strconv"
	"strings"
)

// Item key normalization maps parsed clipboard items to canonical engine keys.
// This ensures that the same item pasted twice, or pasted with different
// whitespace or influence spellings, hits the same cache and limiter slots.

// Influence aliases as they appear in clipboard text and trade filters.
var influenceAliases = map[string]string{
	"shaped":    "shaper",
	"eldered":   "elder",
	"hunted":    "hunter",
	"warlorded": "warlord",
	"crusaded":  "crusader",
	"redeemed":  "redeemer",
}

// Rarity aliases covering the clipboard spellings.
var rarityAliases = map[string]string{
	"divination card": "card",
	"unique (relic)":  "unique",
}

// ItemFields holds the parsed item properties an item key is built from.
// Zero values are simply omitted from the key.
type ItemFields struct {
	Name       string
	BaseType   string
	Rarity     string
	Links      int
	Influences []string
	Corrupted  bool
	Fractured  bool
}

// BuildItemKey returns the canonical key for an item.
// Examples:
//   - {Name: "Headhunter", BaseType: "Leather Belt", Rarity: "Unique"}
//     -> "headhunter|leather belt|unique"
//   - {Name: "Shavronne's Wrappings", Rarity: "Unique", Links: 6, Corrupted: true}
//     -> "shavronne's wrappings|unique|6l|corrupted"
//   - {BaseType: "Hubris Circlet", Rarity: "Rare", Influences: []string{"Shaper", "Elder"}}
//     -> "hubris circlet|rare|elder,shaper"
func BuildItemKey(f ItemFields) string {
	parts := make([]string, 0, 6)

	if name := normalizeField(f.Name); name != "" {
		parts = append(parts, name)
	}
	if base := normalizeField(f.BaseType); base != "" {
		parts = append(parts, base)
	}
	if rarity := normalizeRarity(f.Rarity); rarity != "" {
		parts = append(parts, rarity)
	}
	// Links below five do not move prices, so they stay out of the key.
	if f.Links >= 5 {
		parts = append(parts, strconv.Itoa(f.Links)+"l")
	}
	if infl := normalizeInfluences(f.Influences); infl != "" {
		parts = append(parts, infl)
	}
	if f.Corrupted {
		parts = append(parts, "corrupted")
	}
	if f.Fractured {
		parts = append(parts, "fractured")
	}

	return strings.Join(parts, "|")
}

// NormalizeItemName canonicalizes a bare item name the way BuildItemKey does.
// Used when a provider only needs the name component.
func NormalizeItemName(name string) string {
	return normalizeField(name)
}

// IsEquivalentKey checks whether two parsed items resolve to the same key.
func IsEquivalentKey(a, b ItemFields) bool {
	return BuildItemKey(a) == BuildItemKey(b)
}

func normalizeField(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func normalizeRarity(rarity string) string {
	r := normalizeField(rarity)
	if canonical, ok := rarityAliases[r]; ok {
		return canonical
	}
	return r
}

func normalizeInfluences(influences []string) string {
	if len(influences) == 0 {
		return ""
	}

	seen := make(map[string]struct{}, len(influences))
	canonical := make([]string, 0, len(influences))
	for _, infl := range influences {
		name := normalizeField(infl)
		if alias, ok := influenceAliases[name]; ok {
			name = alias
		}
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		canonical = append(canonical, name)
	}

	sort.Strings(canonical)
	return strings.Join(canonical, ",")
}
