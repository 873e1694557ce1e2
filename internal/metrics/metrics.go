package metrics

import (
	"sort"
	"time"

	"swarmctl/internal/mission"
)

type ProviderMetrics struct {
	Provider   mission.Provider `json:"provider"`
	MissionID  string           `json:"mission_id,omitempty"`
	Start      time.Time        `json:"start"`
	Launched   time.Time        `json:"launched,omitempty"`
	End        time.Time        `json:"end,omitempty"`
	LaunchMs   int64            `json:"launch_ms"`
	DurationMs int64            `json:"duration_ms"`
	Status     mission.Status   `json:"status"`
	Cost       float64          `json:"cost"`
	Err        string           `json:"err,omitempty"`
}

// Finalize computes derived fields.
func (p *ProviderMetrics) Finalize() {
	if !p.Launched.IsZero() {
		p.LaunchMs = p.Launched.Sub(p.Start).Milliseconds()
	}
	if !p.End.IsZero() {
		p.DurationMs = p.End.Sub(p.Start).Milliseconds()
	}
}

type RunMetrics struct {
	Topic      string            `json:"topic"`
	Type       mission.Type      `json:"type"`
	Start      time.Time         `json:"start"`
	End        time.Time         `json:"end,omitempty"`
	DurationMs int64             `json:"duration_ms"`
	Complete   int               `json:"complete"`
	Failed     int               `json:"failed"`
	TotalCost  float64           `json:"total_cost"`
	Providers  []ProviderMetrics `json:"providers"`
}

// Finalize computes derived fields for the run and every provider in it.
func (r *RunMetrics) Finalize() {
	r.Complete, r.Failed, r.TotalCost = 0, 0, 0
	for i := range r.Providers {
		p := &r.Providers[i]
		p.Finalize()
		switch p.Status {
		case mission.StatusComplete:
			r.Complete++
		case mission.StatusError:
			r.Failed++
		}
		r.TotalCost += p.Cost
		if p.End.After(r.End) {
			r.End = p.End
		}
	}
	if !r.End.IsZero() {
		r.DurationMs = r.End.Sub(r.Start).Milliseconds()
	}
}

// Fastest returns the completed providers ordered by duration, quickest first.
func (r RunMetrics) Fastest() []ProviderMetrics {
	var out []ProviderMetrics
	for _, p := range r.Providers {
		if p.Status == mission.StatusComplete {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DurationMs < out[j].DurationMs })
	return out
}
