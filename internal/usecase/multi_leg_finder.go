package usecase

import "github.com/vitos/loop_scanner/internal/domain"

// MultiLegFinder is the extension point for collateral->borrow->...->deposit
// chains of three or more legs, where each hop multiplies the previous LTV
// factor and no leverage sweep applies.
type MultiLegFinder struct{}

func NewMultiLegFinder() *MultiLegFinder {
	return &MultiLegFinder{}
}

// Find always fails with domain.ErrMultiLegNotSupported so callers can tell
// an unavailable mode apart from an empty result.
func (f *MultiLegFinder) Find(rates []domain.RateEntry) ([]*domain.Loop, error) {
	return nil, domain.ErrMultiLegNotSupported
}
