package display

import (
	"fmt"
	"strings"

	"swarmctl/internal/suggest"
)

func FormatSuggestions(res *suggest.Result) string {
	if res == nil {
		return "No assessment."
	}
	var sb strings.Builder
	switch res.Quality {
	case suggest.Good:
		sb.WriteString(green.Render("Topic looks good."))
	case suggest.Vague:
		sb.WriteString(amber.Render("Topic is vague."))
	case suggest.TooBroad:
		sb.WriteString(amber.Render("Topic is too broad."))
	default:
		sb.WriteString(fmt.Sprintf("Topic quality: %s", res.Quality))
	}
	if res.Feedback != "" {
		sb.WriteString(" " + res.Feedback)
	}
	for i, s := range res.Suggestions {
		sb.WriteString(fmt.Sprintf("\n  %d. %s", i+1, s.Template))
		if slots := suggest.Placeholders(s.Template); len(slots) > 0 {
			sb.WriteString(gray.Render(fmt.Sprintf("  (fill in %s)", strings.Join(slots, ", "))))
		}
		if s.Rationale != "" {
			sb.WriteString("\n     " + gray.Render(s.Rationale))
		}
	}
	return sb.String()
}
