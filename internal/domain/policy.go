package domain

import "fmt"

// SameTokenRule decides whether collateral may borrow its own token.
type SameTokenRule string

const (
	// SameTokenAllowWithUnderlying pairs X with X only when the collateral
	// carries underlying yield (a staked or wrapped form of the base asset).
	SameTokenAllowWithUnderlying SameTokenRule = "allow_with_underlying"
	// SameTokenForbid never pairs a token with itself.
	SameTokenForbid SameTokenRule = "forbid"
)

// Permits reports whether collateral may be paired with borrowToken.
func (r SameTokenRule) Permits(collateral RateEntry, borrowToken string) bool {
	if collateral.Token != borrowToken {
		return true
	}
	if r == SameTokenForbid {
		return false
	}
	return collateral.HasUnderlyingYield()
}

func (r SameTokenRule) Validate() error {
	switch r {
	case SameTokenAllowWithUnderlying, SameTokenForbid:
		return nil
	}
	return fmt.Errorf("unknown same-token rule %q", r)
}

var DefaultLeverageLevels = []int{2, 3, 4, 5, 6, 8}

const DefaultSafetyMargin = 0.9

// Policy holds the tunables shared by every finder.
type Policy struct {
	SameToken      SameTokenRule `yaml:"same_token" json:"same_token"`
	LTVCap         float64       `yaml:"ltv_cap" json:"ltv_cap"`             // 0 disables the cap
	SafetyMargin   float64       `yaml:"safety_margin" json:"safety_margin"` // fraction of max leverage actually used
	LeverageLevels []int         `yaml:"leverage_levels" json:"leverage_levels"`
	RequireProfit  bool          `yaml:"require_profit" json:"require_profit"` // single-platform only
	MinNetAPY      float64       `yaml:"min_net_apy" json:"min_net_apy"`
}

func DefaultPolicy() Policy {
	return Policy{
		SameToken:      SameTokenAllowWithUnderlying,
		LTVCap:         DefaultLTVCap,
		SafetyMargin:   DefaultSafetyMargin,
		LeverageLevels: append([]int(nil), DefaultLeverageLevels...),
		MinNetAPY:      0,
	}
}

func (p Policy) Validate() error {
	if err := p.SameToken.Validate(); err != nil {
		return err
	}
	if p.LTVCap < 0 || p.LTVCap >= 100 {
		return fmt.Errorf("ltv cap %.2f out of range [0,100)", p.LTVCap)
	}
	if p.SafetyMargin <= 0 || p.SafetyMargin > 1 {
		return fmt.Errorf("safety margin %.2f out of range (0,1]", p.SafetyMargin)
	}
	for _, l := range p.LeverageLevels {
		if l < 1 {
			return fmt.Errorf("leverage level %d must be at least 1", l)
		}
	}
	return nil
}

// LoopOptions converts the policy into loop construction options.
func (p Policy) LoopOptions() []LoopOption {
	return []LoopOption{WithLTVCap(p.LTVCap), WithSafetyMargin(p.SafetyMargin)}
}

// Fallbacks backfill quotes the feed leaves empty, keyed by token.
type Fallbacks struct {
	Underlying map[string]float64 `yaml:"underlying"`
	LTV        map[string]float64 `yaml:"ltv"`
	SupplyOnly []string           `yaml:"supply_only"`
}

func (f Fallbacks) IsSupplyOnly(token string) bool {
	for _, t := range f.SupplyOnly {
		if t == token {
			return true
		}
	}
	return false
}
