// Package planner drives one plan from a typed topic through review and
// refinement to an approved, running mission.
package planner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"swarmctl/internal/logger"
	"swarmctl/internal/mission"
	"swarmctl/internal/registry"
)

type Step int

const (
	StepInput Step = iota
	StepGenerating
	StepReview
	StepApproving
)

func (s Step) String() string {
	switch s {
	case StepInput:
		return "input"
	case StepGenerating:
		return "generating"
	case StepReview:
		return "review"
	case StepApproving:
		return "approving"
	}
	return fmt.Sprintf("step(%d)", int(s))
}

var (
	ErrNoMode            = errors.New("select research or engineering first")
	ErrNoPlan            = errors.New("no plan under review")
	ErrEmptyInstruction  = errors.New("refinement instruction must not be empty")
	ErrBusy              = errors.New("another plan request is still in progress")
	ErrPlanPending       = errors.New("a plan is already under review; approve it or go back first")
	ErrPlanMismatch      = errors.New("plan id does not match the plan under review")
	ErrHandoffIncomplete = errors.New("mission was not registered before the deadline")
)

// Backend is the planning side of the swarm API.
type Backend interface {
	GeneratePlan(ctx context.Context, req mission.PlanRequest) (*mission.Plan, error)
	RefinePlan(ctx context.Context, planID, instruction string) (*mission.Plan, error)
	ApprovePlan(ctx context.Context, planID string, req mission.PlanRequest) (string, error)
}

// Watcher starts polling a newly launched mission.
type Watcher interface {
	Watch(missionID string)
}

// State is a snapshot of the controller for rendering.
type State struct {
	Step     Step
	Draft    mission.PlanRequest
	Plan     *mission.Plan
	Refining bool
	Err      error
}

type Controller struct {
	backend Backend
	reg     *registry.Registry
	watcher Watcher

	mu       sync.Mutex
	step     Step
	draft    mission.PlanRequest
	plan     *mission.Plan
	refining bool
	lastErr  error
	// seq invalidates in-flight requests when the controller is reset.
	seq uint64
}

func New(backend Backend, reg *registry.Registry, watcher Watcher) *Controller {
	return &Controller{backend: backend, reg: reg, watcher: watcher}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := State{
		Step:     c.step,
		Draft:    c.draft,
		Refining: c.refining,
		Err:      c.lastErr,
	}
	if c.plan != nil {
		p := c.plan.Clone()
		s.Plan = &p
	}
	return s
}

// Select picks the mission mode, clearing the topic and choosing the mode's
// default tier.
func (c *Controller) Select(t mission.Type) error {
	if t != mission.Research && t != mission.Engineering {
		return fmt.Errorf("%w: %q", mission.ErrUnknownType, t)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busyLocked() {
		return ErrBusy
	}
	c.resetLocked()
	c.draft = mission.PlanRequest{Type: t, Tier: mission.DefaultTier(t)}
	return nil
}

// GeneratePlan requests a plan for draft. On failure the controller returns
// to input with the draft intact.
func (c *Controller) GeneratePlan(ctx context.Context, draft mission.PlanRequest) (*mission.Plan, error) {
	req, err := normalizeDraft(draft)

	c.mu.Lock()
	if c.busyLocked() {
		c.mu.Unlock()
		return nil, ErrBusy
	}
	if c.step == StepReview {
		c.mu.Unlock()
		return nil, ErrPlanPending
	}
	if draft.Type != "" || draft.Topic != "" {
		c.draft = draft
	}
	if err != nil {
		c.lastErr = err
		c.mu.Unlock()
		return nil, err
	}
	c.draft = req
	c.step = StepGenerating
	c.lastErr = nil
	c.seq++
	seq := c.seq
	c.mu.Unlock()

	logger.Log.Printf("[Planner] Generating %s plan for %q (tier %s, domain %q)", req.Type, req.Topic, req.Tier, req.Domain)
	plan, err := c.backend.GeneratePlan(ctx, req)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.seq != seq {
		// Cancelled while the request was in flight.
		return nil, context.Canceled
	}
	if err != nil {
		logger.Log.Printf("[Planner] Plan generation failed: %v", err)
		c.step = StepInput
		c.lastErr = fmt.Errorf("could not generate plan: %w", err)
		return nil, c.lastErr
	}
	c.step = StepReview
	c.plan = plan
	p := plan.Clone()
	return &p, nil
}

// RefinePlan asks the backend to revise the plan under review. The step stays
// at review; a failure keeps the previous plan.
func (c *Controller) RefinePlan(ctx context.Context, planID, instruction string) (*mission.Plan, error) {
	instruction = strings.TrimSpace(instruction)

	c.mu.Lock()
	if err := c.reviewReadyLocked(planID); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	if instruction == "" {
		c.mu.Unlock()
		return nil, ErrEmptyInstruction
	}
	c.refining = true
	c.lastErr = nil
	seq := c.seq
	c.mu.Unlock()

	logger.Log.Printf("[Planner] Refining plan %s: %q", planID, instruction)
	plan, err := c.backend.RefinePlan(ctx, planID, instruction)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.seq != seq {
		return nil, context.Canceled
	}
	c.refining = false
	if err != nil {
		logger.Log.Printf("[Planner] Refinement of %s failed: %v", planID, err)
		c.lastErr = fmt.Errorf("could not refine plan: %w", err)
		return nil, c.lastErr
	}
	if plan.ID != planID {
		logger.Log.Printf("[Planner] Plan %s superseded by %s", planID, plan.ID)
	}
	c.plan = plan
	p := plan.Clone()
	return &p, nil
}

// ApproveAndExecute launches the plan under review. On success a running
// placeholder is registered, polling starts, and the controller returns to
// input once the registry acknowledges the mission. On failure an error
// placeholder is registered and the plan stays under review for a retry.
func (c *Controller) ApproveAndExecute(ctx context.Context, planID string) (mission.Mission, error) {
	c.mu.Lock()
	if err := c.reviewReadyLocked(planID); err != nil {
		c.mu.Unlock()
		return mission.Mission{}, err
	}
	plan := c.plan.Clone()
	req := c.draft
	c.step = StepApproving
	c.lastErr = nil
	seq := c.seq
	c.mu.Unlock()

	if plan.Topic != "" {
		req.Topic = plan.Topic
	}
	if plan.Type != "" {
		req.Type = plan.Type
	}
	if plan.Tier != "" {
		req.Tier = plan.Tier
	}
	req.Domain = plan.DomainKey()

	logger.Log.Printf("[Planner] Approving plan %s", plan.ID)
	missionID, err := c.backend.ApprovePlan(ctx, plan.ID, req)
	if err != nil {
		logger.Log.Printf("[Planner] Approval of %s failed: %v", plan.ID, err)
		failed := mission.Failed(req.Type, req.Topic, mission.ProviderSwarm, err.Error())
		if _, regErr := c.reg.Upsert(failed); regErr != nil {
			logger.Log.Printf("[Planner] Could not register failed launch: %v", regErr)
		}

		launchErr := fmt.Errorf("could not launch mission: %w", err)
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.seq == seq {
			c.step = StepReview
			c.lastErr = launchErr
		}
		return failed, launchErr
	}

	placeholder := mission.Placeholder(missionID, req.Type, req.Topic, mission.ProviderSwarm)
	acked := c.reg.Registered(missionID)
	if _, err := c.reg.Upsert(placeholder); err != nil {
		// The mission is already known (and terminal); keep the stored record.
		logger.Log.Printf("[Planner] Mission %s already registered: %v", missionID, err)
	}
	if c.watcher != nil {
		c.watcher.Watch(missionID)
	}

	var handoffErr error
	select {
	case <-acked:
	default:
		select {
		case <-acked:
		case <-ctx.Done():
			handoffErr = ErrHandoffIncomplete
		}
	}

	// The mission is dispatched either way, so the plan is never offered for
	// approval again.
	logger.Log.Printf("[Planner] Plan %s launched as mission %s", plan.ID, missionID)
	c.mu.Lock()
	if c.seq == seq {
		c.resetLocked()
		c.lastErr = handoffErr
	}
	c.mu.Unlock()
	return placeholder, handoffErr
}

// Cancel discards the plan and every transient flag, keeping the typed
// draft. Requests in flight are not aborted but their results are ignored;
// dispatched missions keep running.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	draft := c.draft
	c.resetLocked()
	c.draft = draft
}

func (c *Controller) reviewReadyLocked(planID string) error {
	if c.plan == nil || (c.step != StepReview && c.step != StepApproving) {
		return ErrNoPlan
	}
	if c.step == StepApproving || c.refining {
		return ErrBusy
	}
	if planID != "" && planID != c.plan.ID {
		return fmt.Errorf("%w: %s (reviewing %s)", ErrPlanMismatch, planID, c.plan.ID)
	}
	return nil
}

func (c *Controller) busyLocked() bool {
	return c.step == StepGenerating || c.step == StepApproving || c.refining
}

func (c *Controller) resetLocked() {
	c.seq++
	c.step = StepInput
	c.draft = mission.PlanRequest{}
	c.plan = nil
	c.refining = false
	c.lastErr = nil
}

func normalizeDraft(d mission.PlanRequest) (mission.PlanRequest, error) {
	if d.Type != mission.Research && d.Type != mission.Engineering {
		return d, ErrNoMode
	}
	topic, err := mission.ValidateTopic(d.Topic)
	if err != nil {
		return d, err
	}
	tier, err := mission.ResolveTier(d.Type, d.Tier)
	if err != nil {
		return d, err
	}
	domain, err := mission.ResolveDomain(d.Type, d.Domain)
	if err != nil {
		return d, err
	}
	return mission.PlanRequest{Type: d.Type, Topic: topic, Tier: tier, Domain: domain}, nil
}
