package usecase

import (
	"github.com/vitos/loop_scanner/internal/domain"
)

// CrossPlatformFinder chains a collateral->borrow leg on one platform into a
// plain deposit of the borrowed token on another platform. Borrowing is tied
// to the collateral's market; the borrowed funds can go anywhere.
type CrossPlatformFinder struct {
	policy domain.Policy
}

func NewCrossPlatformFinder(policy domain.Policy) *CrossPlatformFinder {
	return &CrossPlatformFinder{policy: policy}
}

// Find returns profitable 2-leg loops ranked by best net APY, descending.
func (f *CrossPlatformFinder) Find(rates []domain.RateEntry) []*domain.Loop {
	deposits := buildDepositIndex(rates)
	borrows := buildBorrowIndex(rates)

	var loops []*domain.Loop
	for _, r := range rates {
		if !r.CanCollateral || r.LTV <= 0 {
			continue
		}

		for _, b := range borrows[r.MarketKey()] {
			if !f.policy.SameToken.Permits(r, b.Token) {
				continue
			}

			for _, d := range deposits[b.Token] {
				if d.Platform == r.Platform {
					continue
				}

				loop, err := NewCrossPlatformLoop(r, b, d, f.policy.LoopOptions()...)
				if err != nil {
					continue
				}
				if loop.BestNet() > f.policy.MinNetAPY {
					loops = append(loops, loop)
				}
			}
		}
	}

	RankLoops(loops, nil)
	return loops
}

// buildDepositIndex maps token -> every quote paying a positive supply yield.
func buildDepositIndex(rates []domain.RateEntry) map[string][]domain.RateEntry {
	idx := make(map[string][]domain.RateEntry)
	for _, r := range rates {
		if r.TotalSupplyAPY() > 0 {
			idx[r.Token] = append(idx[r.Token], r)
		}
	}
	return idx
}

// buildBorrowIndex maps market -> borrowable quotes, one per token (last wins).
func buildBorrowIndex(rates []domain.RateEntry) map[domain.MarketKey][]domain.RateEntry {
	idx := make(map[domain.MarketKey][]domain.RateEntry)
	for _, r := range rates {
		if !r.CanBorrow || r.BorrowAPY == nil {
			continue
		}

		key := r.MarketKey()
		replaced := false
		for i, existing := range idx[key] {
			if existing.Token == r.Token {
				idx[key][i] = r
				replaced = true
				break
			}
		}
		if !replaced {
			idx[key] = append(idx[key], r)
		}
	}
	return idx
}

// NewCrossPlatformLoop builds leg 1 (deposit collateral, borrow) and leg 2
// (deposit the borrowed token, no borrow, not used as collateral).
func NewCrossPlatformLoop(collateral, borrow, deposit domain.RateEntry, opts ...domain.LoopOption) (*domain.Loop, error) {
	legs := []domain.Leg{
		{
			Platform:     collateral.Platform,
			Market:       collateral.Market,
			DepositToken: collateral.Token,
			BorrowToken:  borrow.Token,
			SupplyAPY:    domain.ValueOrZero(collateral.SupplyAPY),
			BorrowAPY:    domain.ValueOrZero(borrow.BorrowAPY),
			LTV:          collateral.LTV,
			DepositURL:   collateral.URL,
			BorrowURL:    borrow.URL,
		},
		{
			Platform:     deposit.Platform,
			Market:       deposit.Market,
			DepositToken: deposit.Token,
			SupplyAPY:    domain.ValueOrZero(deposit.SupplyAPY),
			DepositURL:   deposit.URL,
		},
	}
	return domain.NewLoop(legs, collateral.UnderlyingAPY, opts...)
}
