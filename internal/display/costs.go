package display

import (
	"fmt"
	"strings"

	"swarmctl/internal/ledger"
	"swarmctl/internal/mission"
)

// FormatLedger renders the budget line, coloured by health.
func FormatLedger(l ledger.Ledger) string {
	style := healthStyle(l.Health)
	return fmt.Sprintf("Budget: %s used of %s, %s left [%s]",
		money(l.Used), money(l.Total), style.Render(money(l.Remaining)), style.Render(string(l.Health)))
}

// FormatCosts renders the breakdown of selected (when not nil) followed by
// the run history total.
func FormatCosts(selected *mission.Mission, missions []mission.Mission, l ledger.Ledger) string {
	var sb strings.Builder
	if selected != nil {
		sb.WriteString(fmt.Sprintf("Costs for %s (%s):\n", selected.ID, clip(selected.Topic, topicColumn)))
		if len(selected.ModelCosts) == 0 {
			sb.WriteString("  no per-model breakdown\n")
		}
		var tokens int
		for _, mc := range selected.ModelCosts {
			tokens += mc.Tokens
			sb.WriteString(fmt.Sprintf("  %-22s %-14s %9d tok  %8s\n", mc.Model, mc.Role, mc.Tokens, money(mc.Cost)))
		}
		sb.WriteString(fmt.Sprintf("  %-22s %-14s %9d tok  %8s\n", "total", "", tokens, money(selected.EffectiveCost())))
		sb.WriteString("\n")
	}

	var running, finished int
	for _, m := range missions {
		if m.Status == mission.StatusRunning {
			running++
		} else {
			finished++
		}
	}
	sb.WriteString(fmt.Sprintf("History: %d finished, %d running, %s total\n", finished, running, money(ledger.HistoryTotal(missions))))
	sb.WriteString(FormatLedger(l))
	return sb.String()
}
