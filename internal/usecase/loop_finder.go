package usecase

import (
	"sort"

	"github.com/vitos/loop_scanner/internal/domain"
)

// SinglePlatformFinder pairs collateral and borrow quotes inside one
// platform+market.
type SinglePlatformFinder struct {
	policy domain.Policy
}

func NewSinglePlatformFinder(policy domain.Policy) *SinglePlatformFinder {
	return &SinglePlatformFinder{policy: policy}
}

// Find returns every single-leg loop ranked by best net APY, descending.
// Loops with no usable leverage level are dropped; unprofitable loops are
// dropped only when the policy requires profit.
func (f *SinglePlatformFinder) Find(rates []domain.RateEntry) []*domain.Loop {
	var loops []*domain.Loop

	keys, groups := GroupByMarket(rates)
	for _, key := range keys {
		group := groups[key]

		var collaterals, borrowables []domain.RateEntry
		for _, r := range group {
			if r.CanCollateral && r.TotalSupplyAPY() > 0 && r.LTV > 0 {
				collaterals = append(collaterals, r)
			}
			if r.CanBorrow && r.BorrowAPY != nil {
				borrowables = append(borrowables, r)
			}
		}

		for _, c := range collaterals {
			for _, b := range borrowables {
				if !f.policy.SameToken.Permits(c, b.Token) {
					continue
				}

				loop, err := NewSingleLoop(c, b, f.policy.LoopOptions()...)
				if err != nil {
					continue
				}

				returns := loop.CalculateReturns(f.policy.LeverageLevels...)
				if !returns.Feasible() {
					continue
				}
				if f.policy.RequireProfit && returns.Net() <= f.policy.MinNetAPY {
					continue
				}
				loops = append(loops, loop)
			}
		}
	}

	RankLoops(loops, f.policy.LeverageLevels)
	return loops
}

// GroupByMarket buckets rates by (platform, market). Keys come back in first
// seen order so results are deterministic.
func GroupByMarket(rates []domain.RateEntry) ([]domain.MarketKey, map[domain.MarketKey][]domain.RateEntry) {
	var keys []domain.MarketKey
	groups := make(map[domain.MarketKey][]domain.RateEntry)
	for _, r := range rates {
		key := r.MarketKey()
		if _, ok := groups[key]; !ok {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], r)
	}
	return keys, groups
}

// NewSingleLoop builds a one-leg loop depositing collateral and borrowing
// borrow's token in the collateral's market.
func NewSingleLoop(collateral, borrow domain.RateEntry, opts ...domain.LoopOption) (*domain.Loop, error) {
	leg := domain.Leg{
		Platform:     collateral.Platform,
		Market:       collateral.Market,
		DepositToken: collateral.Token,
		BorrowToken:  borrow.Token,
		SupplyAPY:    domain.ValueOrZero(collateral.SupplyAPY),
		BorrowAPY:    domain.ValueOrZero(borrow.BorrowAPY),
		LTV:          collateral.LTV,
		DepositURL:   collateral.URL,
		BorrowURL:    borrow.URL,
	}
	return domain.NewLoop([]domain.Leg{leg}, collateral.UnderlyingAPY, opts...)
}

// RankLoops sorts loops by best net APY, highest first. Ties keep input order.
func RankLoops(loops []*domain.Loop, levels []int) {
	nets := make(map[*domain.Loop]float64, len(loops))
	for _, l := range loops {
		nets[l] = l.BestNet(levels...)
	}
	sort.SliceStable(loops, func(i, j int) bool {
		return nets[loops[i]] > nets[loops[j]]
	})
}
