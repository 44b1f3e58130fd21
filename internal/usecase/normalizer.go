package usecase

import (
	"github.com/vitos/loop_scanner/internal/domain"
	"go.uber.org/zap"
)

// Normalizer is the validation boundary between raw feeds and the finders.
type Normalizer struct {
	fallbacks domain.Fallbacks
	logger    *zap.Logger
}

func NewNormalizer(fallbacks domain.Fallbacks, logger *zap.Logger) *Normalizer {
	return &Normalizer{fallbacks: fallbacks, logger: logger}
}

// Normalize drops malformed quotes, deduplicates by (platform, market, token)
// keeping the last one, and backfills missing underlying yield and LTV.
func (n *Normalizer) Normalize(raw []domain.RateEntry) []domain.RateEntry {
	type rateKey struct {
		market domain.MarketKey
		token  string
	}

	index := make(map[rateKey]int)
	out := make([]domain.RateEntry, 0, len(raw))

	for _, r := range raw {
		// backfilled values go through the same checks as feed values
		r = n.backfill(r)
		if reason := invalidReason(r); reason != "" {
			n.logger.Debug("Dropping rate entry",
				zap.String("platform", r.Platform),
				zap.String("market", r.Market),
				zap.String("token", r.Token),
				zap.String("reason", reason))
			continue
		}

		key := rateKey{market: r.MarketKey(), token: r.Token}
		if i, ok := index[key]; ok {
			out[i] = r
			continue
		}
		index[key] = len(out)
		out = append(out, r)
	}
	return out
}

func (n *Normalizer) backfill(r domain.RateEntry) domain.RateEntry {
	if r.UnderlyingAPY == nil {
		if v, ok := n.fallbacks.Underlying[r.Token]; ok {
			r.UnderlyingAPY = domain.Float(v)
		}
	}
	if r.LTV == 0 {
		if v, ok := n.fallbacks.LTV[r.Token]; ok {
			r.LTV = v
		}
	}
	if n.fallbacks.IsSupplyOnly(r.Token) {
		r.CanBorrow = false
		r.BorrowAPY = nil
	}
	return r
}

func invalidReason(r domain.RateEntry) string {
	switch {
	case r.Platform == "" || r.Market == "" || r.Token == "":
		return "missing identifier"
	case r.LTV < 0 || r.LTV >= 100:
		return "ltv out of range"
	case r.BorrowAPY != nil && *r.BorrowAPY < 0:
		return "negative borrow apy"
	}
	return ""
}
