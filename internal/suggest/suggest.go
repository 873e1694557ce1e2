// Package suggest checks whether a mission topic is specific enough to run
// and proposes sharper templates when it is not.
package suggest

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"swarmctl/internal/mission"
)

type Quality string

const (
	Good     Quality = "good"
	Vague    Quality = "vague"
	TooBroad Quality = "too_broad"
)

func (q Quality) Valid() bool {
	return q == Good || q == Vague || q == TooBroad
}

type Query struct {
	Topic  string
	Domain string
	Type   mission.Type
}

type Suggestion struct {
	Template  string `json:"template"`
	Rationale string `json:"rationale,omitempty"`
}

type Result struct {
	Quality     Quality      `json:"quality"`
	Feedback    string       `json:"feedback,omitempty"`
	Suggestions []Suggestion `json:"suggestions"`
}

// Advisor grades a topic and proposes alternatives.
type Advisor interface {
	SuggestTopics(ctx context.Context, q Query) (*Result, error)
}

var placeholderRe = regexp.MustCompile(`\[[^\]]+\]`)

// Placeholders returns the [BRACKETED] slots of a template in order.
func Placeholders(template string) []string {
	return placeholderRe.FindAllString(template, -1)
}

// ParseResult decodes an advisor answer, tolerating markdown code fences
// around the JSON.
func ParseResult(raw string) (*Result, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")

	var res Result
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &res); err != nil {
		return nil, fmt.Errorf("could not parse topic check: %w", err)
	}
	res.Quality = Quality(strings.ToLower(strings.TrimSpace(string(res.Quality))))
	if !res.Quality.Valid() {
		return nil, fmt.Errorf("topic check returned unknown quality %q", res.Quality)
	}
	if res.Suggestions == nil {
		res.Suggestions = []Suggestion{}
	}
	return &res, nil
}
