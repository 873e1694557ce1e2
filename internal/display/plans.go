package display

import (
	"fmt"
	"strings"

	"swarmctl/internal/ledger"
	"swarmctl/internal/mission"
)

const maxFieldLength = 100

const rule = "--------------------------------------------------"

// stdout plan (truncated)
func FormatPlan(plan *mission.Plan) string {
	return formatPlanInternal(plan, maxFieldLength)
}

// full plan (no truncation), used for logs
func FormatPlanFull(plan *mission.Plan) string {
	return formatPlanInternal(plan, -1)
}

func formatPlanInternal(plan *mission.Plan, limit int) string {
	if plan == nil {
		return "No plan."
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Proposed %s plan (ID: %s):\n", plan.Type, plan.ID))
	sb.WriteString(rule + "\n")
	sb.WriteString(fmt.Sprintf("Topic:   %s\n", clip(plan.Topic, limit)))
	tier := plan.Tier
	if tier == "" {
		tier = mission.DefaultTier(plan.Type)
	}
	sb.WriteString(fmt.Sprintf("Tier:    %s\n", tier))
	if d := plan.DomainKey(); d != "" {
		sb.WriteString(fmt.Sprintf("Domain:  %s\n", domainLabel(d)))
	}
	if plan.Outcome != "" {
		sb.WriteString(fmt.Sprintf("Outcome: %s\n", clip(plan.Outcome, limit)))
	}

	if len(plan.Goals) > 0 {
		sb.WriteString("Goals:\n")
		for i, g := range plan.Goals {
			sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, clip(g, limit)))
		}
	}
	if len(plan.AgentAssignments) > 0 {
		sb.WriteString("Agents:\n")
		for _, a := range plan.AgentAssignments {
			sb.WriteString(fmt.Sprintf("  - %s as %s\n", a.Agent, a.Role))
			if a.Focus != "" {
				sb.WriteString(fmt.Sprintf("      focus: %s\n", clip(a.Focus, limit)))
			}
			if a.Avoid != "" {
				sb.WriteString(fmt.Sprintf("      avoid: %s\n", clip(a.Avoid, limit)))
			}
			if a.Rationale != "" {
				sb.WriteString(fmt.Sprintf("      why:   %s\n", clip(a.Rationale, limit)))
			}
		}
	}

	estimate := plan.BudgetEstimate
	if estimate <= 0 {
		estimate, _ = ledger.Estimate(plan.Type, tier)
	}
	sb.WriteString(fmt.Sprintf("Estimate: %s", money(estimate)))
	if plan.EstimatedTimeSec > 0 {
		sb.WriteString(fmt.Sprintf(", ~%s", formatSeconds(plan.EstimatedTimeSec)))
	}
	sb.WriteString("\n" + rule)
	return sb.String()
}

// FormatTiers lists the presets of every mission type with their estimates.
func FormatTiers() string {
	var sb strings.Builder
	for _, t := range []mission.Type{mission.Research, mission.Engineering} {
		sb.WriteString(fmt.Sprintf("%s:\n", t))
		for i, tier := range mission.Tiers(t) {
			est, _ := ledger.Estimate(t, tier)
			marker := ""
			if i == 0 {
				marker = "  (default)"
			}
			sb.WriteString(fmt.Sprintf("  %-9s %s%s\n", tier, money(est), marker))
		}
	}
	sb.WriteString("Domain packs (Research only):\n")
	for _, d := range mission.DomainPacks {
		key := d.Key
		if key == "" {
			key = "-"
		}
		sb.WriteString(fmt.Sprintf("  %-16s %s\n", key, d.Label))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func domainLabel(key string) string {
	for _, d := range mission.DomainPacks {
		if d.Key == key {
			return d.Label
		}
	}
	return key
}

// clip flattens newlines and truncates to limit runes (limit < 0 means no
// limit).
func clip(s string, limit int) string {
	s = strings.ReplaceAll(s, "\n", "\\n")
	r := []rune(s)
	if limit >= 0 && len(r) > limit {
		return string(r[:limit]) + "..."
	}
	return s
}

func money(v float64) string {
	return fmt.Sprintf("$%.2f", v)
}

func formatSeconds(sec int) string {
	if sec < 60 {
		return fmt.Sprintf("%ds", sec)
	}
	return fmt.Sprintf("%dm%02ds", sec/60, sec%60)
}
