package planner

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swarmctl/internal/mission"
	"swarmctl/internal/poller"
	"swarmctl/internal/registry"
	"swarmctl/internal/swarmapi"
)

type fakeBackend struct {
	mu          sync.Mutex
	generateErr error
	refineErr   error
	approveErr  error
	refineNewID bool
	approved    []string
	generated   []mission.PlanRequest
	gate        chan struct{} // when set, GeneratePlan waits on it
}

func (f *fakeBackend) GeneratePlan(_ context.Context, req mission.PlanRequest) (*mission.Plan, error) {
	f.mu.Lock()
	f.generated = append(f.generated, req)
	gate, err := f.gate, f.generateErr
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	var domain *string
	if req.Domain != "" {
		d := req.Domain
		domain = &d
	}
	return &mission.Plan{
		ID:             "plan-1",
		Topic:          req.Topic,
		Type:           req.Type,
		Tier:           req.Tier,
		Domain:         domain,
		Outcome:        "A sourced brief",
		Goals:          []string{"Survey", "Synthesize"},
		BudgetEstimate: 0.10,
	}, nil
}

func (f *fakeBackend) RefinePlan(_ context.Context, planID, instruction string) (*mission.Plan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.refineErr != nil {
		return nil, f.refineErr
	}
	id := planID
	if f.refineNewID {
		id = planID + "-r"
	}
	return &mission.Plan{
		ID:             id,
		Topic:          "X",
		Type:           mission.Research,
		Tier:           "Budget",
		Goals:          []string{"Survey", "Synthesize", instruction},
		BudgetEstimate: 0.10,
	}, nil
}

func (f *fakeBackend) ApprovePlan(_ context.Context, planID string, _ mission.PlanRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.approveErr != nil {
		return "", f.approveErr
	}
	f.approved = append(f.approved, planID)
	return "swm-0043", nil
}

type recordingWatcher struct {
	mu  sync.Mutex
	ids []string
}

func (w *recordingWatcher) Watch(id string) {
	w.mu.Lock()
	w.ids = append(w.ids, id)
	w.mu.Unlock()
}

func research(topic string) mission.PlanRequest {
	return mission.PlanRequest{Type: mission.Research, Topic: topic, Tier: "Budget"}
}

func TestGenerateMovesToReview(t *testing.T) {
	c := New(&fakeBackend{}, registry.New(), &recordingWatcher{})

	plan, err := c.GeneratePlan(context.Background(), research("X"))
	require.NoError(t, err)

	st := c.State()
	assert.Equal(t, StepReview, st.Step)
	require.NotNil(t, st.Plan)
	assert.Equal(t, "Budget", st.Plan.Tier)
	assert.Equal(t, mission.Research, st.Plan.Type)
	assert.Equal(t, plan.ID, st.Plan.ID)
	assert.NoError(t, st.Err)
}

func TestReturnedPlansAreCopies(t *testing.T) {
	c := New(&fakeBackend{}, registry.New(), &recordingWatcher{})

	plan, err := c.GeneratePlan(context.Background(), research("X"))
	require.NoError(t, err)
	plan.Goals[0] = "changed by caller"

	st := c.State()
	require.NotNil(t, st.Plan)
	assert.Equal(t, "Survey", st.Plan.Goals[0])
	st.Plan.Goals[1] = "changed again"
	assert.Equal(t, "Synthesize", c.State().Plan.Goals[1])
}

func TestGenerateValidatesInput(t *testing.T) {
	testCases := []struct {
		name  string
		draft mission.PlanRequest
		want  error
	}{
		{"no mode", mission.PlanRequest{Topic: "X"}, ErrNoMode},
		{"blank topic", mission.PlanRequest{Type: mission.Research, Topic: "  "}, mission.ErrEmptyTopic},
		{"tier of other mode", mission.PlanRequest{Type: mission.Research, Topic: "X", Tier: "Heavy"}, mission.ErrUnknownTier},
		{"unknown domain", mission.PlanRequest{Type: mission.Research, Topic: "X", Domain: "astrology"}, mission.ErrUnknownPack},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			backend := &fakeBackend{}
			c := New(backend, registry.New(), nil)

			_, err := c.GeneratePlan(context.Background(), tc.draft)
			assert.ErrorIs(t, err, tc.want)
			assert.Equal(t, StepInput, c.State().Step)
			assert.Empty(t, backend.generated, "invalid drafts never reach the backend")
		})
	}
}

func TestGenerateFillsDefaultsAndDropsEngineeringDomain(t *testing.T) {
	backend := &fakeBackend{}
	c := New(backend, registry.New(), nil)

	_, err := c.GeneratePlan(context.Background(), mission.PlanRequest{
		Type: mission.Engineering, Topic: " auth proxy ", Domain: "health_science",
	})
	require.NoError(t, err)
	require.Len(t, backend.generated, 1)
	assert.Equal(t, mission.PlanRequest{Type: mission.Engineering, Topic: "auth proxy", Tier: "Standard"}, backend.generated[0])
}

func TestGenerateFailureReturnsToInputKeepingTopic(t *testing.T) {
	c := New(&fakeBackend{generateErr: errors.New("planner overloaded")}, registry.New(), nil)

	_, err := c.GeneratePlan(context.Background(), research("Silver futures flow"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "planner overloaded")

	st := c.State()
	assert.Equal(t, StepInput, st.Step)
	assert.Nil(t, st.Plan)
	assert.Equal(t, "Silver futures flow", st.Draft.Topic)
	assert.Error(t, st.Err)
}

func TestUnconfiguredBackendFailsFast(t *testing.T) {
	client, err := swarmapi.New("")
	require.NoError(t, err)
	c := New(client, registry.New(), nil)

	_, err = c.GeneratePlan(context.Background(), research("X"))
	assert.ErrorIs(t, err, swarmapi.ErrNotConfigured)

	st := c.State()
	assert.Equal(t, StepInput, st.Step)
	assert.Nil(t, st.Plan)
}

func TestGenerateShowsBusyStep(t *testing.T) {
	backend := &fakeBackend{gate: make(chan struct{})}
	c := New(backend, registry.New(), nil)

	done := make(chan error, 1)
	go func() {
		_, err := c.GeneratePlan(context.Background(), research("X"))
		done <- err
	}()

	require.Eventually(t, func() bool { return c.State().Step == StepGenerating }, time.Second, time.Millisecond)
	_, err := c.GeneratePlan(context.Background(), research("Y"))
	assert.ErrorIs(t, err, ErrBusy)

	close(backend.gate)
	require.NoError(t, <-done)
	assert.Equal(t, StepReview, c.State().Step)
}

func TestCancelDuringGenerateDropsLateResult(t *testing.T) {
	backend := &fakeBackend{gate: make(chan struct{})}
	c := New(backend, registry.New(), nil)

	done := make(chan error, 1)
	go func() {
		_, err := c.GeneratePlan(context.Background(), research("X"))
		done <- err
	}()
	require.Eventually(t, func() bool { return c.State().Step == StepGenerating }, time.Second, time.Millisecond)

	c.Cancel()
	close(backend.gate)

	assert.ErrorIs(t, <-done, context.Canceled)
	st := c.State()
	assert.Equal(t, StepInput, st.Step)
	assert.Nil(t, st.Plan)
	assert.Equal(t, "X", st.Draft.Topic)
}

func TestRefineReplacesPlan(t *testing.T) {
	for _, newID := range []bool{false, true} {
		backend := &fakeBackend{refineNewID: newID}
		c := New(backend, registry.New(), nil)
		plan, err := c.GeneratePlan(context.Background(), research("X"))
		require.NoError(t, err)

		refined, err := c.RefinePlan(context.Background(), plan.ID, "add bear case")
		require.NoError(t, err)

		st := c.State()
		assert.Equal(t, StepReview, st.Step)
		assert.False(t, st.Refining)
		assert.Equal(t, refined.ID, st.Plan.ID)
		assert.Contains(t, st.Plan.Goals, "add bear case")
		assert.Equal(t, "X", st.Plan.Topic)
		assert.Equal(t, "Budget", st.Plan.Tier)

		// The refined plan, whatever its id, is what gets approved next.
		_, err = c.ApproveAndExecute(context.Background(), refined.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{refined.ID}, backend.approved)
	}
}

func TestRefinePreconditions(t *testing.T) {
	c := New(&fakeBackend{}, registry.New(), nil)

	_, err := c.RefinePlan(context.Background(), "plan-1", "more")
	assert.ErrorIs(t, err, ErrNoPlan)

	plan, err := c.GeneratePlan(context.Background(), research("X"))
	require.NoError(t, err)

	_, err = c.RefinePlan(context.Background(), plan.ID, "   ")
	assert.ErrorIs(t, err, ErrEmptyInstruction)

	_, err = c.RefinePlan(context.Background(), "plan-other", "more")
	assert.ErrorIs(t, err, ErrPlanMismatch)
}

func TestRefineFailureKeepsPreviousPlan(t *testing.T) {
	backend := &fakeBackend{}
	c := New(backend, registry.New(), nil)
	plan, err := c.GeneratePlan(context.Background(), research("X"))
	require.NoError(t, err)

	backend.refineErr = errors.New("timeout")
	_, err = c.RefinePlan(context.Background(), plan.ID, "add bear case")
	require.Error(t, err)

	st := c.State()
	assert.Equal(t, StepReview, st.Step)
	assert.False(t, st.Refining)
	assert.Equal(t, plan.Goals, st.Plan.Goals)
	assert.Error(t, st.Err)

	backend.refineErr = nil
	_, err = c.RefinePlan(context.Background(), plan.ID, "add bear case")
	assert.NoError(t, err, "state stays usable for a retry")
}

func TestApproveRegistersPlaceholderAndWatches(t *testing.T) {
	reg := registry.New()
	w := &recordingWatcher{}
	c := New(&fakeBackend{}, reg, w)

	plan, err := c.GeneratePlan(context.Background(), research("X"))
	require.NoError(t, err)

	m, err := c.ApproveAndExecute(context.Background(), plan.ID)
	require.NoError(t, err)
	assert.Equal(t, "swm-0043", m.ID)

	got, ok := reg.Get("swm-0043")
	require.True(t, ok)
	assert.Equal(t, mission.StatusRunning, got.Status)
	assert.Equal(t, "X", got.Topic)
	assert.Equal(t, []string{"swm-0043"}, w.ids)

	st := c.State()
	assert.Equal(t, StepInput, st.Step)
	assert.Nil(t, st.Plan)
}

func TestApproveFailureRegistersErrorAndStaysInReview(t *testing.T) {
	reg := registry.New()
	w := &recordingWatcher{}
	c := New(&fakeBackend{approveErr: errors.New("502 Bad Gateway")}, reg, w)

	plan, err := c.GeneratePlan(context.Background(), research("X"))
	require.NoError(t, err)

	failed, err := c.ApproveAndExecute(context.Background(), plan.ID)
	require.Error(t, err)

	assert.True(t, mission.IsLocalID(failed.ID))
	stored, ok := reg.Get(failed.ID)
	require.True(t, ok)
	assert.Equal(t, mission.StatusError, stored.Status)
	assert.Contains(t, stored.Synthesis, "502 Bad Gateway")
	assert.Empty(t, w.ids, "nothing to poll for a launch that never happened")

	st := c.State()
	assert.Equal(t, StepReview, st.Step)
	assert.NotNil(t, st.Plan, "plan kept for an explicit retry")
}

func TestCancelDiscardsPlan(t *testing.T) {
	c := New(&fakeBackend{}, registry.New(), nil)
	_, err := c.GeneratePlan(context.Background(), research("X"))
	require.NoError(t, err)

	c.Cancel()

	st := c.State()
	assert.Equal(t, StepInput, st.Step)
	assert.Nil(t, st.Plan)
	assert.False(t, st.Refining)

	_, err = c.ApproveAndExecute(context.Background(), "plan-1")
	assert.ErrorIs(t, err, ErrNoPlan)
}

func TestSelectSetsDefaultTier(t *testing.T) {
	c := New(&fakeBackend{}, registry.New(), nil)

	require.NoError(t, c.Select(mission.Engineering))
	assert.Equal(t, "Standard", c.State().Draft.Tier)

	require.NoError(t, c.Select(mission.Research))
	assert.Equal(t, "Budget", c.State().Draft.Tier)

	assert.Error(t, c.Select("X"))
}

// statusScript answers Running once and then Complete for every mission.
type statusScript struct {
	mu     sync.Mutex
	polls  map[string]int
	record mission.Mission
}

func (s *statusScript) MissionStatus(_ context.Context, id string) (mission.StatusReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.polls[id]++
	if s.polls[id] == 1 {
		return mission.StatusReport{Status: mission.StatusRunning}, nil
	}
	return mission.StatusReport{Status: mission.StatusComplete}, nil
}

func (s *statusScript) Mission(context.Context, string) (mission.Mission, error) {
	return s.record, nil
}

func (s *statusScript) pollCount(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.polls[id]
}

func TestPlanToCompletedMission(t *testing.T) {
	src := &statusScript{
		polls: map[string]int{},
		record: mission.Mission{
			ID:         "swm-0043",
			Type:       mission.Research,
			Topic:      "X",
			Status:     mission.StatusComplete,
			Cost:       0.12,
			Synthesis:  "## X: findings",
			RawOutputs: map[string]string{"GPT-4o": "..."},
		},
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	group := poller.NewGroup(ctx, src, poller.Options{Interval: 5 * time.Millisecond})
	reg := registry.New()
	c := New(&fakeBackend{refineNewID: true}, reg, poller.NewTracker(group, reg))

	plan, err := c.GeneratePlan(ctx, research("X"))
	require.NoError(t, err)
	plan, err = c.RefinePlan(ctx, plan.ID, "add bear case")
	require.NoError(t, err)
	_, err = c.ApproveAndExecute(ctx, plan.ID)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		m, _ := reg.Get("swm-0043")
		return m.Status == mission.StatusComplete
	}, 2*time.Second, 5*time.Millisecond)

	m, _ := reg.Get("swm-0043")
	assert.Equal(t, "## X: findings", m.Synthesis)
	assert.Equal(t, 1, reg.Len())

	require.Eventually(t, func() bool { return group.Active() == 0 }, time.Second, 5*time.Millisecond)
	polls := src.pollCount("swm-0043")
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, polls, src.pollCount("swm-0043"), "no ticks after completion")
}
