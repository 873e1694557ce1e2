package display

import (
	"github.com/charmbracelet/lipgloss"

	"swarmctl/internal/ledger"
	"swarmctl/internal/mission"
)

var (
	green  = lipgloss.NewStyle().Foreground(lipgloss.Color("#00C853"))
	amber  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFB000"))
	red    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF3D00"))
	gray   = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	bold   = lipgloss.NewStyle().Bold(true)
	banner = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFFFF")).Background(lipgloss.Color("#B71C1C")).Padding(0, 1)
)

func healthStyle(h ledger.Health) lipgloss.Style {
	switch h {
	case ledger.Healthy:
		return green
	case ledger.Warning:
		return amber
	default:
		return red
	}
}

func statusStyle(s mission.Status) lipgloss.Style {
	switch s {
	case mission.StatusComplete:
		return green
	case mission.StatusError:
		return red
	case mission.StatusRunning:
		return amber
	}
	return gray
}

// Status renders a mission or slot status, "idle" when empty.
func Status(s mission.Status) string {
	label := string(s)
	if label == "" {
		label = "idle"
	}
	return statusStyle(s).Render(label)
}

// OfflineBanner marks output produced without a reachable backend.
func OfflineBanner(reason string) string {
	if reason == "" {
		return banner.Render("[offline]")
	}
	return banner.Render("[offline]") + " " + gray.Render(reason)
}
