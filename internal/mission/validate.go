package mission

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	ErrEmptyTopic   = errors.New("topic must not be empty")
	ErrUnknownType  = errors.New("unknown mission type")
	ErrUnknownTier  = errors.New("unknown tier")
	ErrUnknownPack  = errors.New("unknown domain pack")
	ErrNotSDK       = errors.New("provider is not an SDK provider")
	ErrUnknownState = errors.New("unknown mission status")
)

// ValidateTopic trims topic and rejects it when nothing is left.
func ValidateTopic(topic string) (string, error) {
	t := strings.TrimSpace(topic)
	if t == "" {
		return "", ErrEmptyTopic
	}
	return t, nil
}

// ParseType accepts the wire codes ("R", "E") and the spelled-out modes.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "r", "research":
		return Research, nil
	case "e", "engineering", "engineer":
		return Engineering, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownType, s)
}

func ParseProvider(s string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(s)))
	if p == "" {
		return ProviderSwarm, nil
	}
	if !p.Valid() {
		return "", fmt.Errorf("unknown provider %q", s)
	}
	return p, nil
}

// ParseStatus maps a backend status string onto the closed Status set.
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "running", "pending", "queued":
		return StatusRunning, nil
	case "complete", "completed", "done":
		return StatusComplete, nil
	case "error", "failed":
		return StatusError, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownState, s)
}

var (
	researchTiers    = []string{"Budget", "Standard", "Deep"}
	engineeringTiers = []string{"Standard", "Heavy"}
)

// Tiers lists the cost/quality presets offered for t; the first one is the
// default.
func Tiers(t Type) []string {
	switch t {
	case Research:
		return slices.Clone(researchTiers)
	case Engineering:
		return slices.Clone(engineeringTiers)
	}
	return nil
}

func DefaultTier(t Type) string {
	if tiers := Tiers(t); len(tiers) > 0 {
		return tiers[0]
	}
	return ""
}

// ResolveTier returns the canonical label of tier for t, or the default tier
// when tier is blank.
func ResolveTier(t Type, tier string) (string, error) {
	tier = strings.TrimSpace(tier)
	if tier == "" {
		return DefaultTier(t), nil
	}
	for _, tt := range Tiers(t) {
		if strings.EqualFold(tt, tier) {
			return tt, nil
		}
	}
	return "", fmt.Errorf("%w %q for %s", ErrUnknownTier, tier, t)
}

type DomainPack struct {
	Key   string
	Label string
}

// DomainPacks lists the Research specializations; the empty key is General.
var DomainPacks = []DomainPack{
	{"", "General"},
	{"health_science", "Health / Science"},
	{"trading_finance", "Trading / Finance"},
}

// ResolveDomain validates a domain key. Domains only apply to Research, so
// any value is dropped for other types.
func ResolveDomain(t Type, domain string) (string, error) {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if t != Research || domain == "" || domain == "general" {
		return "", nil
	}
	for _, d := range DomainPacks {
		if d.Key == domain {
			return domain, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPack, domain)
}
