package config

// RejectNegativeStock makes the sale recorder refuse sales that would drive stock below zero.
// When disabled the sale is accepted and the underflow is logged for operator review.
//
// Set via env:
// - REJECT_NEGATIVE_STOCK=true
func RejectNegativeStock() bool {
	return Get().RejectNegativeStock
}

// LowStockThreshold is the default dashboard threshold (stock <= threshold).
func LowStockThreshold() int {
	t := Get().LowStockThreshold
	if t < 0 {
		return 0
	}
	return t
}

// LedgerPublishingEnabled reports whether ledger events are forwarded to Pub/Sub.
func LedgerPublishingEnabled() bool {
	return Get().LedgerTopic != ""
}
