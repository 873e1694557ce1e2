package display

import (
	"fmt"
	"sort"
	"strings"

	"swarmctl/internal/mission"
)

const topicColumn = 48

func FormatMissions(missions []mission.Mission) string {
	if len(missions) == 0 {
		return "No missions yet."
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%-16s %-4s %-10s %-9s %8s  %-10s %s\n", "ID", "TYPE", "STATUS", "PROVIDER", "COST", "DATE", "TOPIC"))
	for _, m := range missions {
		cost := "-"
		if m.Status != mission.StatusRunning {
			cost = money(m.EffectiveCost())
		}
		// Pad before styling so ANSI codes do not break the columns.
		status := Status(m.Status) + strings.Repeat(" ", max(0, 10-len(statusLabel(m.Status))))
		sb.WriteString(fmt.Sprintf("%-16s %-4s %s %-9s %8s  %-10s %s\n",
			m.ID, string(m.Type), status, m.Provider, cost, m.Date, clip(m.Topic, topicColumn)))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// FormatMission renders one mission's result: the synthesis, or the raw
// output of model when model is set.
func FormatMission(m mission.Mission, model string) (string, error) {
	var sb strings.Builder
	sb.WriteString(bold.Render(fmt.Sprintf("%s  %s", m.ID, m.Topic)) + "\n")
	sb.WriteString(fmt.Sprintf("%s via %s, %s", m.Type, m.Provider.Label(), Status(m.Status)))
	if m.Date != "" {
		sb.WriteString(", " + m.Date)
	}
	if m.Status != mission.StatusRunning {
		sb.WriteString(", " + money(m.EffectiveCost()))
	}
	sb.WriteString("\n" + rule + "\n")

	models := RawModels(m)
	if model != "" {
		out, ok := m.RawOutputs[model]
		if !ok {
			return "", fmt.Errorf("no output from model %q (have: %s)", model, strings.Join(models, ", "))
		}
		sb.WriteString(fmt.Sprintf("Raw output of %s:\n\n%s", model, out))
		return sb.String(), nil
	}

	switch {
	case m.Status == mission.StatusRunning:
		sb.WriteString("Still running.")
	case m.Status == mission.StatusError:
		reason := m.Synthesis
		if reason == "" {
			reason = "Mission failed"
		}
		sb.WriteString(red.Render("Error: ") + reason)
	case m.Synthesis != "":
		sb.WriteString(m.Synthesis)
	default:
		sb.WriteString(gray.Render("(no synthesis)"))
	}
	if so := m.SwarmOutput; so != nil && so.Summary != "" && so.Summary != m.Synthesis {
		sb.WriteString("\n\nSummary: " + so.Summary)
	}
	if len(models) > 0 {
		sb.WriteString("\n\nRaw outputs: " + strings.Join(models, ", "))
	}
	return sb.String(), nil
}

// RawModels lists the models with raw output, sorted by name.
func RawModels(m mission.Mission) []string {
	models := make([]string, 0, len(m.RawOutputs))
	for k := range m.RawOutputs {
		models = append(models, k)
	}
	sort.Strings(models)
	return models
}
