// Package catalog holds the declarative product rule table. Rules are plain
// data loaded from a JSON file; the matcher interprets them, so catalog
// changes never require a rebuild.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
)

// ErrEmptyCatalog indicates the catalog has no product rules.
var ErrEmptyCatalog = errors.New("catalog has no product rules")

// ErrDuplicateProduct indicates two rules share the same product name.
var ErrDuplicateProduct = errors.New("duplicate product name in catalog")

// ErrNoPatterns indicates a rule has no match patterns.
var ErrNoPatterns = errors.New("product rule has no match patterns")

// ProductRule identifies one tracked product. MatchPatterns are tried
// case-insensitively against message text with word boundaries; the first
// rule in catalog order whose pattern hits wins.
type ProductRule struct {
	Name          string   `json:"name"`
	MatchPatterns []string `json:"patterns"`
	BrandAliases  []string `json:"brands,omitempty"`

	// MinPrice and MaxPrice bound realistic offers for this product.
	// An extracted price outside the bounds is discarded as noise
	// (e.g. an accessory priced like a GPU, or a bundle).
	MinPrice decimal.Decimal `json:"minPrice,omitempty"`
	MaxPrice decimal.Decimal `json:"maxPrice,omitempty"`

	// HotBelow marks offers below this price as hot deals, which get a
	// highlighted alert header. Zero disables the header.
	HotBelow decimal.Decimal `json:"hotBelow,omitempty"`
}

// Catalog is the full offer-matching configuration: the ordered rule table
// plus global block patterns that veto a message outright (bundled "pc gamer"
// listings, blocked categories).
type Catalog struct {
	Rules         []ProductRule `json:"products"`
	BlockPatterns []string      `json:"blockPatterns,omitempty"`
}

func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog file: %w", err)
	}

	cat := &Catalog{}
	if err := json.Unmarshal(data, cat); err != nil {
		return nil, fmt.Errorf("parsing catalog file: %w", err)
	}

	if err := cat.Validate(); err != nil {
		return nil, err
	}

	return cat, nil
}

// Validate enforces catalog invariants before any message is processed:
// a non-empty rule table, unique product names and at least one pattern
// per rule.
func (c *Catalog) Validate() error {
	if len(c.Rules) == 0 {
		return ErrEmptyCatalog
	}

	names := make(map[string]struct{}, len(c.Rules))

	for _, rule := range c.Rules {
		if _, ok := names[rule.Name]; ok {
			return fmt.Errorf("%w: %q", ErrDuplicateProduct, rule.Name)
		}

		names[rule.Name] = struct{}{}

		if len(rule.MatchPatterns) == 0 {
			return fmt.Errorf("%w: %q", ErrNoPatterns, rule.Name)
		}
	}

	return nil
}
