// Package offer turns raw message text into structured offers by
// interpreting the catalog rule table.
package offer

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"

	"github.com/promowatch/telegram-promo-watch/internal/catalog"
	"github.com/promowatch/telegram-promo-watch/internal/pricing"
)

var errEmptyPattern = errors.New("empty pattern")

// Miss reasons, reported when a message yields no offer.
const (
	ReasonBlocked       = "blocked_category"
	ReasonNoProduct     = "no_product_match"
	ReasonNoPrice       = "no_price"
	ReasonPriceOutRange = "price_out_of_range"
)

type compiledRule struct {
	rule     catalog.ProductRule
	patterns []*regexp.Regexp
	brands   []string
}

// Matcher extracts at most one offer per message. Rules are tried in catalog
// order and the first full match wins; a message matching several products
// never produces more than one offer.
type Matcher struct {
	rules  []compiledRule
	blocks []*regexp.Regexp
	caser  cases.Caser
}

func NewMatcher(cat *catalog.Catalog) (*Matcher, error) {
	m := &Matcher{caser: cases.Fold()}

	for _, rule := range cat.Rules {
		cr := compiledRule{rule: rule, brands: rule.BrandAliases}

		for _, p := range rule.MatchPatterns {
			re, err := compilePattern(p)
			if err != nil {
				return nil, fmt.Errorf("rule %q pattern %q: %w", rule.Name, p, err)
			}

			cr.patterns = append(cr.patterns, re)
		}

		m.rules = append(m.rules, cr)
	}

	for _, p := range cat.BlockPatterns {
		re, err := compilePattern(p)
		if err != nil {
			return nil, fmt.Errorf("block pattern %q: %w", p, err)
		}

		m.blocks = append(m.blocks, re)
	}

	return m, nil
}

// compilePattern builds a case-insensitive, word-boundary-aware regexp from
// a plain keyword pattern. Whitespace in the pattern is elastic so that
// "rtx 5060" also matches "rtx5060".
func compilePattern(pattern string) (*regexp.Regexp, error) {
	fields := strings.Fields(pattern)
	if len(fields) == 0 {
		return nil, errEmptyPattern
	}

	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = regexp.QuoteMeta(f)
	}

	return regexp.Compile(`(?i)\b` + strings.Join(quoted, `\s*`) + `\b`)
}

// Match tests the message against the catalog and returns the extracted
// offer, or a miss reason. A miss is the ordinary outcome for most chat
// traffic, not an error.
func (m *Matcher) Match(text, source string, receivedAt time.Time) (*Offer, string) {
	for _, block := range m.blocks {
		if block.MatchString(text) {
			return nil, ReasonBlocked
		}
	}

	for _, cr := range m.rules {
		if !cr.matches(text) {
			continue
		}

		price, found := pricing.Extract(text)
		if !found {
			return nil, ReasonNoPrice
		}

		if !cr.priceRealistic(price) {
			return nil, ReasonPriceOutRange
		}

		return &Offer{
			Product:    cr.rule.Name,
			Brand:      m.findBrand(cr, text),
			Price:      price,
			Source:     source,
			RawText:    text,
			ReceivedAt: receivedAt,
			Hot:        !cr.rule.HotBelow.IsZero() && price.LessThan(cr.rule.HotBelow),
		}, ""
	}

	return nil, ReasonNoProduct
}

func (cr *compiledRule) matches(text string) bool {
	for _, re := range cr.patterns {
		if re.MatchString(text) {
			return true
		}
	}

	return false
}

func (cr *compiledRule) priceRealistic(price decimal.Decimal) bool {
	if !cr.rule.MinPrice.IsZero() && price.LessThan(cr.rule.MinPrice) {
		return false
	}

	if !cr.rule.MaxPrice.IsZero() && price.GreaterThan(cr.rule.MaxPrice) {
		return false
	}

	return true
}

// findBrand returns the first brand alias of the matched rule occurring in
// the text. Aliases are compared under Unicode case folding.
func (m *Matcher) findBrand(cr compiledRule, text string) string {
	folded := m.caser.String(text)

	for _, brand := range cr.brands {
		if strings.Contains(folded, m.caser.String(brand)) {
			return brand
		}
	}

	return ""
}
