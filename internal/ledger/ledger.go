// Package ledger derives budget figures from a mission snapshot. Nothing here
// is stored; every figure is recomputed from the missions passed in.
package ledger

import (
	"strings"

	"swarmctl/internal/mission"
)

type Health string

const (
	Healthy  Health = "healthy"
	Warning  Health = "warning"
	Critical Health = "critical"
)

// FallbackEstimate is used for tiers missing from the table.
const FallbackEstimate = 0.40

type Ledger struct {
	Total     float64 `json:"total"`
	Used      float64 `json:"used"`
	Remaining float64 `json:"remaining"`
	Health    Health  `json:"health"`
}

// Used sums the cost of every mission that has reached a terminal state.
func Used(missions []mission.Mission) float64 {
	var used float64
	for _, m := range missions {
		if m.Status == mission.StatusRunning {
			continue
		}
		used += m.EffectiveCost()
	}
	return used
}

func Compute(missions []mission.Mission, dailyTotal float64) Ledger {
	used := Used(missions)
	remaining := dailyTotal - used
	return Ledger{
		Total:     dailyTotal,
		Used:      used,
		Remaining: remaining,
		Health:    HealthFor(remaining),
	}
}

func HealthFor(remaining float64) Health {
	switch {
	case remaining > 5:
		return Healthy
	case remaining >= 2:
		return Warning
	default:
		return Critical
	}
}

// Estimate looks up the expected cost of a tier before the real cost is
// known. Unknown tiers return FallbackEstimate and ok=false.
func Estimate(t mission.Type, tier string) (cost float64, ok bool) {
	switch strings.ToLower(strings.TrimSpace(tier)) {
	case "budget":
		return 0.10, true
	case "standard":
		if t == mission.Engineering {
			return 3.00, true
		}
		return 0.40, true
	case "deep":
		return 1.20, true
	case "heavy":
		return 6.00, true
	}
	return FallbackEstimate, false
}

// HistoryTotal is the running total over every recorded mission, regardless
// of status.
func HistoryTotal(missions []mission.Mission) float64 {
	var total float64
	for _, m := range missions {
		total += m.EffectiveCost()
	}
	return total
}
