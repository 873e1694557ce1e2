package mission

import "slices"

type AgentAssignment struct {
	Agent     string `json:"agent"`
	Role      string `json:"role"`
	Focus     string `json:"focus"`
	Avoid     string `json:"avoid,omitempty"`
	Rationale string `json:"rationale"`
}

// Plan is a proposed mission blueprint that has not been executed yet.
type Plan struct {
	ID               string            `json:"id"`
	Topic            string            `json:"topic"`
	Type             Type              `json:"type"`
	Tier             string            `json:"tier"`
	Domain           *string           `json:"domain"`
	Outcome          string            `json:"outcome"`
	Goals            []string          `json:"goals"`
	AgentAssignments []AgentAssignment `json:"agent_assignments"`
	BudgetEstimate   float64           `json:"budget_estimate"`
	EstimatedTimeSec int               `json:"estimated_time_sec"`
}

// Clone returns a copy that shares no slices or pointers with p.
func (p Plan) Clone() Plan {
	c := p
	c.Goals = slices.Clone(p.Goals)
	c.AgentAssignments = slices.Clone(p.AgentAssignments)
	if p.Domain != nil {
		d := *p.Domain
		c.Domain = &d
	}
	return c
}

func (p *Plan) DomainKey() string {
	if p == nil || p.Domain == nil {
		return ""
	}
	return *p.Domain
}

// PlanRequest carries the operator's choices for a new plan.
type PlanRequest struct {
	Type   Type
	Topic  string
	Tier   string
	Domain string
}
