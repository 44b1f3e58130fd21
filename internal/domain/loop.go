package domain

import (
	"fmt"
	"sort"
	"strings"
)

// Leg is one deposit (and optional borrow) step of a loop.
// An empty BorrowToken means the leg only deposits.
type Leg struct {
	Platform     string
	Market       string
	DepositToken string
	BorrowToken  string
	SupplyAPY    float64
	BorrowAPY    float64
	LTV          float64
	DepositURL   string
	BorrowURL    string
}

func (l Leg) Spread() float64 {
	return l.SupplyAPY - l.BorrowAPY
}

func (l Leg) MaxLeverage(ltvCap float64) float64 {
	return MaxLeverage(l.LTV, ltvCap)
}

type LoopOption func(*Loop)

func WithLTVCap(ltvCap float64) LoopOption {
	return func(l *Loop) { l.ltvCap = ltvCap }
}

func WithSafetyMargin(margin float64) LoopOption {
	return func(l *Loop) { l.safetyMargin = margin }
}

// Loop is an immutable chain of legs. Returns are computed on demand.
type Loop struct {
	legs         []Leg
	underlying   *float64
	ltvCap       float64
	safetyMargin float64
}

// NewLoop copies legs and the optional underlying yield of the first
// deposit token into a new Loop.
func NewLoop(legs []Leg, underlying *float64, opts ...LoopOption) (*Loop, error) {
	if len(legs) == 0 {
		return nil, ErrEmptyLoop
	}

	l := &Loop{
		legs:         append([]Leg(nil), legs...),
		ltvCap:       DefaultLTVCap,
		safetyMargin: DefaultSafetyMargin,
	}
	if underlying != nil {
		l.underlying = Float(*underlying)
	}
	for _, opt := range opts {
		opt(l)
	}

	if l.IsCrossPlatform() && len(l.legs) > 2 {
		return nil, fmt.Errorf("%d-leg chain: %w", len(l.legs), ErrMultiLegNotSupported)
	}
	return l, nil
}

func (l *Loop) Legs() []Leg {
	return append([]Leg(nil), l.legs...)
}

func (l *Loop) NumLegs() int { return len(l.legs) }

func (l *Loop) UnderlyingAPY() *float64 {
	if l.underlying == nil {
		return nil
	}
	return Float(*l.underlying)
}

// IsCrossPlatform is true when two or more legs span more than one platform.
func (l *Loop) IsCrossPlatform() bool {
	if len(l.legs) < 2 {
		return false
	}
	first := l.legs[0].Platform
	for _, leg := range l.legs[1:] {
		if leg.Platform != first {
			return true
		}
	}
	return false
}

func (l *Loop) Topology() Topology {
	if l.IsCrossPlatform() {
		return TopologyCross
	}
	return TopologySingle
}

func (l *Loop) Platform() string   { return l.legs[0].Platform }
func (l *Loop) Market() string     { return l.legs[0].Market }
func (l *Loop) Collateral() string { return l.legs[0].DepositToken }
func (l *Loop) Borrow() string     { return l.legs[0].BorrowToken }

// TotalSupplyAPY is the first leg's supply plus the underlying yield.
func (l *Loop) TotalSupplyAPY() float64 {
	return l.legs[0].SupplyAPY + ValueOrZero(l.underlying)
}

// CalculateReturns computes net APY for the loop. Single-platform loops are
// swept over levels (DefaultLeverageLevels when none are given);
// cross-platform loops have one fixed effective leverage.
func (l *Loop) CalculateReturns(levels ...int) Returns {
	if l.IsCrossPlatform() {
		return l.crossPlatformReturns()
	}
	if len(levels) == 0 {
		levels = DefaultLeverageLevels
	}
	return l.singlePlatformReturns(levels)
}

// BestNet is shorthand for CalculateReturns(levels...).Net().
func (l *Loop) BestNet(levels ...int) float64 {
	return l.CalculateReturns(levels...).Net()
}

func (l *Loop) singlePlatformReturns(levels []int) *SingleReturns {
	leg := l.legs[0]
	supply := l.TotalSupplyAPY()
	maxLev := leg.MaxLeverage(l.ltvCap)

	res := &SingleReturns{LevResults: make(map[string]LevelResult, len(levels))}
	smallest := levels[0]
	for _, lev := range levels {
		if lev < smallest {
			smallest = lev
		}

		actual := float64(lev)
		if capped := maxLev * l.safetyMargin; capped < actual {
			actual = capped
		}
		if actual < 1 {
			continue
		}

		net := NetAPY(supply, leg.BorrowAPY, actual)
		label := LevelLabel(lev)
		res.LevResults[label] = LevelResult{Net: net, Actual: actual, Max: maxLev}
		res.Levels = append(res.Levels, lev)

		if len(res.Levels) == 1 || net > res.BestNet {
			res.BestNet = net
			res.BestLev = label
		}
	}

	res.MaxNet = res.BestNet
	if r, ok := res.LevResults[LevelLabel(smallest)]; ok {
		res.MinNet = r.Net
	}
	return res
}

func (l *Loop) crossPlatformReturns() *CrossReturns {
	leg1, leg2 := l.legs[0], l.legs[1]
	ratio := leg1.LTV / 100

	earn1 := leg1.SupplyAPY + ValueOrZero(l.underlying)
	earn2 := leg2.SupplyAPY * ratio
	cost := leg1.BorrowAPY

	return &CrossReturns{
		TotalEarn:         earn1 + earn2,
		TotalCost:         cost,
		BestNet:           earn1 + earn2 - cost,
		Leg1Earn:          earn1,
		Leg2Earn:          earn2,
		EffectiveLeverage: 1 + ratio,
	}
}

func LevelLabel(lev int) string {
	return fmt.Sprintf("%dx", lev)
}

// PlatformAliases maps a platform name fragment to its short display name.
type PlatformAliases map[string]string

func DefaultPlatformAliases() PlatformAliases {
	return PlatformAliases{"kamino": "kam", "jupiter": "jup"}
}

// Short matches aliases case-insensitively by substring, falling back to the
// first three letters of the platform name.
func (a PlatformAliases) Short(platform string) string {
	lower := strings.ToLower(platform)

	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if strings.Contains(lower, strings.ToLower(k)) {
			return a[k]
		}
	}

	runes := []rune(lower)
	if len(runes) > 3 {
		runes = runes[:3]
	}
	return string(runes)
}

// Path renders the chain as "TOKEN@short -> TOKEN@short".
func (l *Loop) Path(aliases PlatformAliases) string {
	parts := make([]string, len(l.legs))
	for i, leg := range l.legs {
		parts[i] = leg.DepositToken + "@" + aliases.Short(leg.Platform)
	}
	return strings.Join(parts, " -> ")
}
