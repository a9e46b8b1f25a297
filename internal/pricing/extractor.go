// Package pricing extracts BRL price expressions from free-form message text.
package pricing

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Localized amount: "1.700,00", "1700", "890,90". Thousands groups use dots,
// cents use a comma. The trailing boundary keeps the short alternative from
// matching a prefix of a longer bare number ("170" out of "1700").
const amountPattern = `(\d{1,3}(?:\.\d{3})*(?:,\d{2})?|\d{3,}(?:,\d{2})?)\b`

var (
	// Currency marker or price-introducing word followed by an amount.
	mainRe = regexp.MustCompile(`(?i)(?:r\$|por|preço|preco|valor|de)\s*r?\$?\s*` + amountPattern)

	// Fallback: any R$ followed by an amount.
	fallbackRe = regexp.MustCompile(`(?i)r\$\s*` + amountPattern)

	// Cash-price marker, the most precise signal when everything else fails.
	cashRe = regexp.MustCompile(`(?i)r\$\s*` + amountPattern + `\s*(?:à vista|a vista|no pix)`)

	// Lines about coupons, cashback and installments quote amounts that are
	// not the offer price.
	ignoreContextRe = regexp.MustCompile(`(?i)cupom|desconto|\boff\b|cashback|moedas?|pontos?|em\s+\d+x|parcelas?|frete|resgate`)
)

// Amounts outside these bounds are treated as malformed tokens, not prices.
var (
	minAmount = decimal.NewFromInt(10)
	maxAmount = decimal.NewFromInt(1_000_000)
)

// Extract scans text for a currency-marked price and returns the first
// well-formed amount, normalized to a decimal. Lines carrying coupon or
// installment context are skipped. A missing or malformed price reports
// found=false; chit-chat without prices is the normal case, not an error.
func Extract(text string) (decimal.Decimal, bool) {
	lines := strings.Split(text, "\n")

	for _, re := range []*regexp.Regexp{mainRe, fallbackRe} {
		for _, line := range lines {
			if ignoreContextRe.MatchString(line) {
				continue
			}

			for _, m := range re.FindAllStringSubmatch(line, -1) {
				if v, ok := normalize(m[1]); ok {
					return v, true
				}
			}
		}
	}

	// Last resort: an explicit cash price anywhere in the text.
	for _, m := range cashRe.FindAllStringSubmatch(text, -1) {
		if v, ok := normalize(m[1]); ok {
			return v, true
		}
	}

	return decimal.Decimal{}, false
}

// normalize converts a localized amount ("1.700,00") into a decimal and
// rejects values outside the realistic range.
func normalize(raw string) (decimal.Decimal, bool) {
	s := strings.ReplaceAll(strings.TrimSpace(raw), ".", "")
	s = strings.ReplaceAll(s, ",", ".")

	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}

	if v.LessThanOrEqual(minAmount) || v.GreaterThanOrEqual(maxAmount) {
		return decimal.Decimal{}, false
	}

	return v, true
}
