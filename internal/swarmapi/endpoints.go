package swarmapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"swarmctl/internal/mission"
	"swarmctl/internal/suggest"
)

type planBody struct {
	Type   mission.Type `json:"type"`
	Topic  string       `json:"topic"`
	Tier   string       `json:"tier"`
	Domain *string      `json:"domain"`
}

func newPlanBody(req mission.PlanRequest) planBody {
	b := planBody{Type: req.Type, Topic: req.Topic, Tier: req.Tier}
	if req.Domain != "" {
		d := req.Domain
		b.Domain = &d
	}
	return b
}

type missionRef struct {
	MissionID string `json:"mission_id"`
	ID        string `json:"id"`
}

func (r missionRef) id() string {
	if r.MissionID != "" {
		return r.MissionID
	}
	return r.ID
}

func (c *Client) GeneratePlan(ctx context.Context, req mission.PlanRequest) (*mission.Plan, error) {
	var plan mission.Plan
	if err := c.do(ctx, "generate plan", http.MethodPost, "/api/swarm/plan", newPlanBody(req), &plan); err != nil {
		return nil, err
	}
	if plan.ID == "" {
		return nil, fmt.Errorf("generate plan: %w: plan has no id", ErrUnexpectedResponse)
	}
	return &plan, nil
}

func (c *Client) RefinePlan(ctx context.Context, planID, instruction string) (*mission.Plan, error) {
	body := map[string]string{"instruction": instruction}
	var plan mission.Plan
	path := "/api/swarm/plan/" + url.PathEscape(planID) + "/refine"
	if err := c.do(ctx, "refine plan", http.MethodPost, path, body, &plan); err != nil {
		return nil, err
	}
	if plan.ID == "" {
		// Backends that refine in place may omit the id.
		plan.ID = planID
	}
	return &plan, nil
}

// ApprovePlan turns a plan into a running mission and returns its id.
func (c *Client) ApprovePlan(ctx context.Context, planID string, req mission.PlanRequest) (string, error) {
	var ref missionRef
	path := "/api/swarm/plan/" + url.PathEscape(planID) + "/approve"
	if err := c.do(ctx, "approve plan", http.MethodPost, path, newPlanBody(req), &ref); err != nil {
		return "", err
	}
	if ref.id() == "" {
		return "", fmt.Errorf("approve plan: %w: no mission id", ErrUnexpectedResponse)
	}
	return ref.id(), nil
}

// LaunchProvider starts topic directly on an SDK provider.
func (c *Client) LaunchProvider(ctx context.Context, p mission.Provider, topic string, t mission.Type) (string, error) {
	body := map[string]string{"provider": string(p), "topic": topic, "type": string(t)}
	var ref missionRef
	op := "launch " + string(p)
	if err := c.do(ctx, op, http.MethodPost, "/api/swarm/activate", body, &ref); err != nil {
		return "", err
	}
	if ref.id() == "" {
		return "", fmt.Errorf("%s: %w: no mission id", op, ErrUnexpectedResponse)
	}
	return ref.id(), nil
}

func (c *Client) MissionStatus(ctx context.Context, id string) (mission.StatusReport, error) {
	var body struct {
		Status string `json:"status"`
		Error  string `json:"error"`
	}
	if err := c.do(ctx, "mission status", http.MethodGet, "/api/swarm/status/"+url.PathEscape(id), nil, &body); err != nil {
		return mission.StatusReport{}, err
	}
	s, err := mission.ParseStatus(body.Status)
	if err != nil {
		return mission.StatusReport{}, fmt.Errorf("mission status: %w", err)
	}
	return mission.StatusReport{Status: s, Error: body.Error}, nil
}

// Mission fetches the full record; only meaningful once the mission is
// terminal.
func (c *Client) Mission(ctx context.Context, id string) (mission.Mission, error) {
	var m mission.Mission
	if err := c.do(ctx, "fetch mission", http.MethodGet, "/api/swarm/missions/"+url.PathEscape(id), nil, &m); err != nil {
		return mission.Mission{}, err
	}
	if m.ID == "" {
		m.ID = id
	}
	m.Normalize()
	return m, nil
}

// Missions loads every mission the backend knows about. Both a bare array
// and a {"missions": [...]} envelope are accepted.
func (c *Client) Missions(ctx context.Context) ([]mission.Mission, error) {
	var raw json.RawMessage
	if err := c.do(ctx, "list missions", http.MethodGet, "/api/swarm/missions", nil, &raw); err != nil {
		return nil, err
	}

	var missions []mission.Mission
	if bytes.HasPrefix(bytes.TrimSpace(raw), []byte("{")) {
		var env struct {
			Missions []mission.Mission `json:"missions"`
		}
		if err := json.Unmarshal(raw, &env); err != nil {
			return nil, fmt.Errorf("list missions: %w: %v", ErrUnexpectedResponse, err)
		}
		missions = env.Missions
	} else if err := json.Unmarshal(raw, &missions); err != nil {
		return nil, fmt.Errorf("list missions: %w: %v", ErrUnexpectedResponse, err)
	}

	for i := range missions {
		missions[i].Normalize()
	}
	return missions, nil
}

func (c *Client) SuggestTopics(ctx context.Context, q suggest.Query) (*suggest.Result, error) {
	topic, err := mission.ValidateTopic(q.Topic)
	if err != nil {
		return nil, err
	}
	body := map[string]any{"topic": topic, "type": q.Type, "domain": nil}
	if q.Domain != "" {
		body["domain"] = q.Domain
	}

	var raw json.RawMessage
	if err := c.do(ctx, "check topic", http.MethodPost, "/api/swarm/suggest", body, &raw); err != nil {
		return nil, err
	}
	return suggest.ParseResult(string(raw))
}
