package domain

// DefaultLTVCap is the highest LTV used when deriving leverage. Above it the
// 1/(1-ltv) term grows without bound.
const DefaultLTVCap = 98.0

// MarketKey scopes a rate to one market of one platform.
type MarketKey struct {
	Platform string
	Market   string
}

// RateEntry is a normalized quote for one token on one platform/market.
// Optional APYs are nil when the feed does not quote them.
type RateEntry struct {
	Platform      string   `json:"platform"`
	Market        string   `json:"market"`
	Token         string   `json:"token"`
	SupplyAPY     *float64 `json:"supply_apy,omitempty"`
	UnderlyingAPY *float64 `json:"underlying_apy,omitempty"`
	BorrowAPY     *float64 `json:"borrow_apy,omitempty"`
	LTV           float64  `json:"ltv"`
	CanCollateral bool     `json:"can_collateral"`
	CanBorrow     bool     `json:"can_borrow"`
	URL           string   `json:"url,omitempty"`
}

func (r RateEntry) MarketKey() MarketKey {
	return MarketKey{Platform: r.Platform, Market: r.Market}
}

// TotalSupplyAPY is supply plus underlying yield, absent values counted as zero.
func (r RateEntry) TotalSupplyAPY() float64 {
	return ValueOrZero(r.SupplyAPY) + ValueOrZero(r.UnderlyingAPY)
}

func (r RateEntry) HasUnderlyingYield() bool {
	return ValueOrZero(r.UnderlyingAPY) != 0
}

func (r RateEntry) MaxLeverage(ltvCap float64) float64 {
	return MaxLeverage(r.LTV, ltvCap)
}

// MaxLeverage returns 1/(1-ltv/100) with ltv clamped to ltvCap.
// A non-positive cap disables clamping; an LTV of 100 or more then yields 1.
func MaxLeverage(ltv, ltvCap float64) float64 {
	if ltv <= 0 {
		return 1.0
	}
	if ltvCap > 0 && ltv > ltvCap {
		ltv = ltvCap
	}
	if ltv >= 100 {
		return 1.0
	}
	return 1 / (1 - ltv/100)
}

// NetAPY is the recursive-leverage identity supply*L - borrow*(L-1).
func NetAPY(supply, borrow, leverage float64) float64 {
	return supply*leverage - borrow*(leverage-1)
}

// Float returns a pointer to v, for building optional APY fields.
func Float(v float64) *float64 {
	return &v
}

// ValueOrZero reads an optional APY, treating a missing value as 0.
func ValueOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
