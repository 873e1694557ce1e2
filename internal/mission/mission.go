package mission

import (
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	Research    Type = "R"
	Engineering Type = "E"
)

func (t Type) String() string {
	switch t {
	case Research:
		return "Research"
	case Engineering:
		return "Engineering"
	}
	return string(t)
}

type Status string

const (
	StatusRunning  Status = "running"
	StatusComplete Status = "complete"
	StatusError    Status = "error"
)

// Terminal reports whether no further transitions are allowed from s.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusError
}

type Provider string

const (
	ProviderSwarm     Provider = "swarm"
	ProviderOpenAI    Provider = "openai"
	ProviderCrewAI    Provider = "crewai"
	ProviderPydantic  Provider = "pydantic"
	ProviderAgno      Provider = "agno"
	ProviderLangGraph Provider = "langgraph"
)

// SDKProviders is the fixed comparison roster, in display order.
var SDKProviders = []Provider{
	ProviderOpenAI,
	ProviderCrewAI,
	ProviderPydantic,
	ProviderAgno,
	ProviderLangGraph,
}

var providerLabels = map[Provider]string{
	ProviderSwarm:     "Swarm",
	ProviderOpenAI:    "OpenAI",
	ProviderCrewAI:    "CrewAI",
	ProviderPydantic:  "Pydantic AI",
	ProviderAgno:      "Agno",
	ProviderLangGraph: "LangGraph",
}

func (p Provider) Label() string {
	if l, ok := providerLabels[p]; ok {
		return l
	}
	return string(p)
}

// SDK reports whether p is one of the external SDK providers.
func (p Provider) SDK() bool {
	return p != ProviderSwarm && p.Valid()
}

func (p Provider) Valid() bool {
	_, ok := providerLabels[p]
	return ok
}

type ModelCost struct {
	Model  string  `json:"model"`
	Role   string  `json:"role"`
	Tokens int     `json:"tokens"`
	Cost   float64 `json:"cost"`
}

// SwarmOutput carries provider-specific metadata returned by SDK providers.
type SwarmOutput struct {
	TotalCost  float64  `json:"total_cost"`
	Confidence string   `json:"confidence,omitempty"`
	Score      *float64 `json:"score,omitempty"`
	Summary    string   `json:"summary,omitempty"`
}

type Mission struct {
	ID          string            `json:"id"`
	Type        Type              `json:"type"`
	Topic       string            `json:"topic"`
	Date        string            `json:"date,omitempty"`
	Provider    Provider          `json:"provider,omitempty"`
	Status      Status            `json:"status"`
	Cost        float64           `json:"cost"`
	Synthesis   string            `json:"synthesis"`
	RawOutputs  map[string]string `json:"rawOutputs"`
	ModelCosts  []ModelCost       `json:"modelCosts"`
	SwarmOutput *SwarmOutput      `json:"swarmOutput,omitempty"`
}

// Normalize fills absent optional fields with empty defaults so consumers
// never branch on a missing field. Records without a status predate status
// tracking and are treated as complete.
func (m *Mission) Normalize() {
	if m.Provider == "" {
		m.Provider = ProviderSwarm
	}
	if m.Status == "" {
		m.Status = StatusComplete
	} else if s, err := ParseStatus(string(m.Status)); err == nil {
		m.Status = s
	}
	if t, err := ParseType(string(m.Type)); err == nil {
		m.Type = t
	}
	if m.RawOutputs == nil {
		m.RawOutputs = map[string]string{}
	}
	if m.ModelCosts == nil {
		m.ModelCosts = []ModelCost{}
	}
}

// EffectiveCost is the recorded cost, falling back to the provider's
// reported total.
func (m Mission) EffectiveCost() float64 {
	if m.Cost > 0 {
		return m.Cost
	}
	if m.SwarmOutput != nil && m.SwarmOutput.TotalCost > 0 {
		return m.SwarmOutput.TotalCost
	}
	return 0
}

// Clone returns a copy that shares no maps or slices with m.
func (m Mission) Clone() Mission {
	c := m
	// Empty but non-nil fields stay non-nil.
	c.RawOutputs = maps.Clone(m.RawOutputs)
	c.ModelCosts = slices.Clone(m.ModelCosts)
	if m.SwarmOutput != nil {
		so := *m.SwarmOutput
		c.SwarmOutput = &so
	}
	return c
}

// Placeholder builds the Running record registered while a mission executes.
func Placeholder(id string, t Type, topic string, p Provider) Mission {
	m := Mission{
		ID:       id,
		Type:     t,
		Topic:    topic,
		Date:     Today(),
		Provider: p,
		Status:   StatusRunning,
	}
	m.Normalize()
	return m
}

// Failed builds a locally identified Error record for work that never
// reached the backend.
func Failed(t Type, topic string, p Provider, reason string) Mission {
	m := Placeholder(NewLocalID(), t, topic, p)
	m.Status = StatusError
	m.Synthesis = reason
	return m
}

const localPrefix = "local-"

func NewLocalID() string {
	return localPrefix + uuid.New().String()[:8]
}

func IsLocalID(id string) bool {
	return strings.HasPrefix(id, localPrefix)
}

func Today() string {
	return time.Now().Format(time.DateOnly)
}

// StatusReport is the lightweight answer of the status endpoint.
type StatusReport struct {
	Status Status `json:"status"`
	Error  string `json:"error,omitempty"`
}
