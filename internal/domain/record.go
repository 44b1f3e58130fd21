package domain

import "time"

type LegRecord struct {
	Platform  string  `json:"platform"`
	Market    string  `json:"market"`
	Deposit   string  `json:"deposit"`
	Borrow    string  `json:"borrow"`
	SupplyAPY float64 `json:"supply_apy"`
	BorrowAPY float64 `json:"borrow_apy"`
	LTV       float64 `json:"ltv"`
}

// LoopRecord is the serializable view of a Loop handed to reporting.
// Exactly one of the embedded returns is set, matching Type.
type LoopRecord struct {
	Type        Topology `json:"type"`
	Platform    string   `json:"platform"`
	Market      string   `json:"market"`
	Collateral  string   `json:"collateral"`
	Borrow      string   `json:"borrow"`
	SupplyAPY   float64  `json:"supply_apy"`
	Underlying  *float64 `json:"underlying"`
	TotalSupply float64  `json:"total_supply"`
	BorrowAPY   float64  `json:"borrow_apy"`
	Spread      float64  `json:"spread"`
	LTV         float64  `json:"ltv"`
	BestNet     float64  `json:"best_net"`

	*SingleReturns
	*CrossReturns

	NumLegs int         `json:"num_legs,omitempty"`
	Path    string      `json:"path,omitempty"`
	Legs    []LegRecord `json:"legs,omitempty"`

	// Set on every single-platform record, even when the feed had no links.
	CollateralURL *string `json:"c_url,omitempty"`
	BorrowURL     *string `json:"b_url,omitempty"`
}

// Record builds the output record using the default leverage levels.
func (l *Loop) Record(aliases PlatformAliases, levels ...int) LoopRecord {
	first := l.legs[0]
	returns := l.CalculateReturns(levels...)

	rec := LoopRecord{
		Type:        l.Topology(),
		Platform:    first.Platform,
		Market:      first.Market,
		Collateral:  first.DepositToken,
		Borrow:      first.BorrowToken,
		SupplyAPY:   first.SupplyAPY,
		Underlying:  l.UnderlyingAPY(),
		TotalSupply: l.TotalSupplyAPY(),
		BorrowAPY:   first.BorrowAPY,
		Spread:      first.Spread(),
		LTV:         first.LTV,
		BestNet:     returns.Net(),
	}

	switch r := returns.(type) {
	case *SingleReturns:
		rec.SingleReturns = r
		cURL, bURL := first.DepositURL, first.BorrowURL
		rec.CollateralURL = &cURL
		rec.BorrowURL = &bURL
	case *CrossReturns:
		rec.CrossReturns = r
		rec.NumLegs = len(l.legs)
		rec.Path = l.Path(aliases)
		for _, leg := range l.legs {
			rec.Legs = append(rec.Legs, LegRecord{
				Platform:  leg.Platform,
				Market:    leg.Market,
				Deposit:   leg.DepositToken,
				Borrow:    leg.BorrowToken,
				SupplyAPY: leg.SupplyAPY,
				BorrowAPY: leg.BorrowAPY,
				LTV:       leg.LTV,
			})
		}
	}
	return rec
}

// ScanReport is the outcome of one scan over all configured sources.
type ScanReport struct {
	ID        string       `json:"id"`
	CreatedAt time.Time    `json:"created_at"`
	RateCount int          `json:"rate_count"`
	Sources   []string     `json:"sources"`
	Loops     []LoopRecord `json:"loops"`
}

// Filter returns the loops of one topology, keeping rank order.
func (r *ScanReport) Filter(t Topology) []LoopRecord {
	var out []LoopRecord
	for _, l := range r.Loops {
		if l.Type == t {
			out = append(out, l)
		}
	}
	return out
}
