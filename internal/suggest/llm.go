package suggest

import (
	"context"
	"fmt"
	"strings"

	"swarmctl/internal/mission"
)

// Generator produces a JSON document from a prompt. llm_client providers
// satisfy it.
type Generator interface {
	GenerateJSON(ctx context.Context, prompt, model string, schema any) (string, error)
}

// LLMAdvisor answers topic checks with a local model instead of the backend.
type LLMAdvisor struct {
	gen   Generator
	model string
}

func NewLLMAdvisor(gen Generator, model string) *LLMAdvisor {
	return &LLMAdvisor{gen: gen, model: model}
}

var resultSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"quality":  map[string]any{"type": "string", "enum": []string{string(Good), string(Vague), string(TooBroad)}},
		"feedback": map[string]any{"type": "string"},
		"suggestions": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"template":  map[string]any{"type": "string"},
					"rationale": map[string]any{"type": "string"},
				},
				"required": []string{"template"},
			},
		},
	},
	"required": []string{"quality", "suggestions"},
}

func (a *LLMAdvisor) SuggestTopics(ctx context.Context, q Query) (*Result, error) {
	topic, err := mission.ValidateTopic(q.Topic)
	if err != nil {
		return nil, err
	}
	q.Topic = topic

	raw, err := a.gen.GenerateJSON(ctx, buildSuggestPrompt(q), a.model, resultSchema)
	if err != nil {
		return nil, fmt.Errorf("topic check: %w", err)
	}
	return ParseResult(raw)
}

func buildSuggestPrompt(q Query) string {
	var sb strings.Builder

	sb.WriteString("You review topics for a swarm of AI agents before a mission is launched. Respond ONLY with JSON.\n\n")
	sb.WriteString("Grade the topic as one of:\n")
	sb.WriteString("- \"good\": specific enough for a focused run\n")
	sb.WriteString("- \"vague\": missing a concrete angle, timeframe or subject\n")
	sb.WriteString("- \"too_broad\": covers a whole field; pick one angle\n\n")
	sb.WriteString("Unless the topic is good, propose up to 3 sharper topics. Mark parts the operator must fill in with [BRACKETS].\n\n")

	if q.Type == mission.Engineering {
		sb.WriteString("MISSION TYPE: Engineering (the swarm will build software from this description)\n")
	} else {
		sb.WriteString("MISSION TYPE: Research\n")
	}
	if q.Domain != "" {
		sb.WriteString(fmt.Sprintf("DOMAIN: %s\n", strings.ReplaceAll(q.Domain, "_", " ")))
	}
	sb.WriteString(fmt.Sprintf("TOPIC: %q\n", q.Topic))
	return sb.String()
}
