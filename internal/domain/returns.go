package domain

import (
	"fmt"
	"strings"
)

type Topology string

const (
	TopologySingle   Topology = "single"
	TopologyCross    Topology = "cross-platform"
	TopologyMultiLeg Topology = "multi-leg"
)

// ParseTopology maps a user-supplied loop type to a Topology. The empty
// string means "any" and comes back as "" with no error.
func ParseTopology(s string) (Topology, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return "", nil
	case string(TopologySingle):
		return TopologySingle, nil
	case string(TopologyCross), "cross":
		return TopologyCross, nil
	case string(TopologyMultiLeg):
		return TopologyMultiLeg, nil
	}
	return "", fmt.Errorf("%w %q", ErrUnknownTopology, s)
}

// Returns is the result of Loop.CalculateReturns. It is either
// *SingleReturns or *CrossReturns.
type Returns interface {
	Topology() Topology
	// Net is the best achievable net APY, used for ranking.
	Net() float64
	// Feasible is false when no leverage level could be applied.
	Feasible() bool
	isReturns()
}

type LevelResult struct {
	Net    float64 `json:"net"`
	Actual float64 `json:"actual"`
	Max    float64 `json:"max"`
}

// SingleReturns is the leverage sweep of a single-platform loop.
type SingleReturns struct {
	LevResults map[string]LevelResult `json:"lev_results"`
	// Levels lists the requested levels that produced a result, in request order.
	Levels  []int   `json:"-"`
	BestLev string  `json:"best_lev"`
	BestNet float64 `json:"best_net"`
	MinNet  float64 `json:"min_net"`
	MaxNet  float64 `json:"max_net"`
}

func (r *SingleReturns) Topology() Topology { return TopologySingle }
func (r *SingleReturns) Net() float64       { return r.BestNet }
func (r *SingleReturns) Feasible() bool     { return len(r.LevResults) > 0 }
func (r *SingleReturns) isReturns()         {}

// CrossReturns describes a collateral->borrow->redeposit chain at its fixed
// effective leverage.
type CrossReturns struct {
	TotalEarn         float64 `json:"total_earn"`
	TotalCost         float64 `json:"total_cost"`
	BestNet           float64 `json:"best_net"`
	Leg1Earn          float64 `json:"leg1_earn"`
	Leg2Earn          float64 `json:"leg2_earn"`
	EffectiveLeverage float64 `json:"effective_leverage"`
}

func (r *CrossReturns) Topology() Topology { return TopologyCross }
func (r *CrossReturns) Net() float64       { return r.BestNet }
func (r *CrossReturns) Feasible() bool     { return true }
func (r *CrossReturns) isReturns()         {}
