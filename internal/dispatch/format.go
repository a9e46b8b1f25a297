package dispatch

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/promowatch/telegram-promo-watch/internal/engine"
)

const hotHeader = "Corre!\U0001F525 "

// FormatAlert renders the outgoing alert text: optional hot-deal header,
// the original message, the price line with previous-price context, and the
// source footer.
func FormatAlert(alert engine.Alert) string {
	var b strings.Builder

	if alert.Hot {
		b.WriteString(hotHeader)
	}

	b.WriteString(alert.RawText)
	b.WriteString("\n\n")

	product := alert.Product
	if alert.Brand != "" {
		product += " " + alert.Brand
	}

	if alert.PreviousPrice != nil && alert.PreviousPrice.GreaterThan(alert.Price) {
		fmt.Fprintf(&b, "⬇️ %s: %s → %s\n", product, FormatBRL(*alert.PreviousPrice), FormatBRL(alert.Price))
	} else {
		fmt.Fprintf(&b, "%s: %s\n", product, FormatBRL(alert.Price))
	}

	fmt.Fprintf(&b, "— via %s", alert.Source)

	return b.String()
}

// FormatBRL renders a decimal as a localized currency string:
// 1700 -> "R$ 1.700,00".
func FormatBRL(v decimal.Decimal) string {
	s := v.StringFixed(2)

	negative := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	intPart, fracPart, _ := strings.Cut(s, ".")

	var groups []string
	for len(intPart) > 3 {
		groups = append([]string{intPart[len(intPart)-3:]}, groups...)
		intPart = intPart[:len(intPart)-3]
	}

	groups = append([]string{intPart}, groups...)

	out := "R$ " + strings.Join(groups, ".") + "," + fracPart
	if negative {
		out = "-" + out
	}

	return out
}
