package offer

import (
	"time"

	"github.com/shopspring/decimal"
)

// Offer is the structured extraction of a single matched message.
type Offer struct {
	// Product is the canonical rule name from the catalog.
	Product string

	// Brand is the matched brand alias, or empty when no alias occurred
	// in the message.
	Brand string

	Price decimal.Decimal

	// Source identifies the originating channel or chat.
	Source string

	// RawText and ReceivedAt are provenance for the alert and audit log.
	RawText    string
	ReceivedAt time.Time

	// Hot is set when the price is below the rule's hot-deal threshold.
	Hot bool
}
