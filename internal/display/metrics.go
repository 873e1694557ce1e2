package display

import (
	"fmt"
	"strings"

	"swarmctl/internal/compare"
	"swarmctl/internal/metrics"
	"swarmctl/internal/mission"
)

// FormatComparison renders one line per provider slot under an "n/N
// complete" header.
func FormatComparison(slots []compare.Slot, p compare.Progress) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d/%d complete", p.Complete, p.Total))
	if p.Failed > 0 {
		sb.WriteString(fmt.Sprintf(", %d failed", p.Failed))
	}
	if p.AllDone {
		sb.WriteString(" (done)")
	}
	sb.WriteString("\n")
	for _, s := range slots {
		status := Status(s.Status) + strings.Repeat(" ", max(0, 9-len(statusLabel(s.Status))))
		sb.WriteString(fmt.Sprintf("  %-12s %s", s.Provider.Label(), status))
		switch s.Status {
		case mission.StatusComplete:
			sb.WriteString(fmt.Sprintf(" %8s", money(s.Cost)))
			if s.Mission != nil && s.Mission.SwarmOutput != nil {
				so := s.Mission.SwarmOutput
				if so.Confidence != "" {
					sb.WriteString("  confidence " + so.Confidence)
				}
				if so.Score != nil {
					sb.WriteString(fmt.Sprintf("  score %.1f", *so.Score))
				}
			}
		case mission.StatusError:
			sb.WriteString("  " + clip(s.Err, maxFieldLength))
		case mission.StatusRunning:
			if s.MissionID != "" {
				sb.WriteString("  " + gray.Render(s.MissionID))
			} else {
				sb.WriteString("  " + gray.Render("launching"))
			}
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func FormatRunMetrics(rm metrics.RunMetrics) string {
	if len(rm.Providers) == 0 {
		return "No metrics available."
	}
	var sb strings.Builder
	sb.WriteString("Comparison metrics:\n")
	sb.WriteString(fmt.Sprintf("- Total: %d ms  (complete=%d, failed=%d, cost=%s)\n",
		rm.DurationMs, rm.Complete, rm.Failed, money(rm.TotalCost)))
	for _, p := range rm.Providers {
		sb.WriteString(fmt.Sprintf("    • %-12s launch %5d ms  total %7d ms  [%s]\n",
			p.Provider.Label(), p.LaunchMs, p.DurationMs, statusLabel(p.Status)))
	}
	if fastest := rm.Fastest(); len(fastest) > 0 {
		sb.WriteString(fmt.Sprintf("Fastest: %s", fastest[0].Provider.Label()))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func statusLabel(s mission.Status) string {
	if s == "" {
		return "idle"
	}
	return string(s)
}
