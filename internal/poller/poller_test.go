package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swarmctl/internal/mission"
	"swarmctl/internal/registry"
)

const tick = 5 * time.Millisecond

// fakeSource replays a scripted sequence of status answers per mission id;
// once the script runs out the last answer repeats.
type fakeSource struct {
	mu          sync.Mutex
	scripts     map[string][]statusAnswer
	statusCalls map[string]int
	fetchCalls  map[string]int
	records     map[string]mission.Mission
}

type statusAnswer struct {
	report mission.StatusReport
	err    error
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		scripts:     map[string][]statusAnswer{},
		statusCalls: map[string]int{},
		fetchCalls:  map[string]int{},
		records:     map[string]mission.Mission{},
	}
}

func (f *fakeSource) script(id string, answers ...statusAnswer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts[id] = answers
}

func (f *fakeSource) MissionStatus(_ context.Context, id string) (mission.StatusReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := f.statusCalls[id]
	f.statusCalls[id] = n + 1
	s := f.scripts[id]
	if len(s) == 0 {
		return mission.StatusReport{Status: mission.StatusRunning}, nil
	}
	if n >= len(s) {
		n = len(s) - 1
	}
	return s[n].report, s[n].err
}

func (f *fakeSource) Mission(_ context.Context, id string) (mission.Mission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchCalls[id]++
	m, ok := f.records[id]
	if !ok {
		return mission.Mission{}, errors.New("not found")
	}
	return m, nil
}

func (f *fakeSource) calls(id string) (status, fetch int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statusCalls[id], f.fetchCalls[id]
}

func status(s mission.Status) statusAnswer {
	return statusAnswer{report: mission.StatusReport{Status: s}}
}

func newTestGroup(t *testing.T, src Source) *Group {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	g := NewGroup(ctx, src, Options{Interval: tick, RequestTimeout: time.Second})
	t.Cleanup(func() {
		cancel()
		g.Wait()
	})
	return g
}

func TestPollerCompletesAndFetchesOnce(t *testing.T) {
	src := newFakeSource()
	src.script("swm-1",
		status(mission.StatusRunning),
		statusAnswer{err: errors.New("connection reset")},
		status(mission.StatusComplete),
	)
	src.records["swm-1"] = mission.Mission{ID: "swm-1", Status: mission.StatusComplete, Cost: 0.4}

	var got []mission.Mission
	var mu sync.Mutex
	g := newTestGroup(t, src)
	p := g.Start("swm-1", "swm-1", Handler{
		OnComplete: func(m mission.Mission) {
			mu.Lock()
			got = append(got, m)
			mu.Unlock()
		},
	})

	select {
	case <-p.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("poller never finished")
	}
	time.Sleep(10 * tick)

	statusCalls, fetchCalls := src.calls("swm-1")
	assert.Equal(t, 3, statusCalls, "no status request after the terminal one")
	assert.Equal(t, 1, fetchCalls, "exactly one full-record fetch")
	assert.True(t, p.Terminal())
	assert.Equal(t, 0, g.Active())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	assert.Equal(t, 0.4, got[0].Cost)
}

func TestPollerReportsError(t *testing.T) {
	src := newFakeSource()
	src.script("swm-2", statusAnswer{report: mission.StatusReport{Status: mission.StatusError, Error: "agent crashed"}})

	reasons := make(chan string, 1)
	g := newTestGroup(t, src)
	p := g.Start("swm-2", "swm-2", Handler{
		OnError: func(id, reason string) { reasons <- id + ": " + reason },
	})

	select {
	case r := <-reasons:
		assert.Equal(t, "swm-2: agent crashed", r)
	case <-time.After(2 * time.Second):
		t.Fatal("error was never reported")
	}
	<-p.Done()

	_, fetchCalls := src.calls("swm-2")
	assert.Zero(t, fetchCalls, "failed missions are not fetched")
}

func TestFailedFetchStopsPolling(t *testing.T) {
	src := newFakeSource()
	src.script("swm-4", status(mission.StatusComplete))

	failed := make(chan string, 1)
	g := newTestGroup(t, src)
	p := g.Start("swm-4", "swm-4", Handler{
		OnComplete:    func(mission.Mission) { t.Error("no record was available") },
		OnFetchFailed: func(id string, _ error) { failed <- id },
	})

	select {
	case id := <-failed:
		assert.Equal(t, "swm-4", id)
	case <-time.After(2 * time.Second):
		t.Fatal("failed fetch was never reported")
	}
	<-p.Done()

	statusCalls, fetchCalls := src.calls("swm-4")
	assert.Equal(t, 1, statusCalls)
	assert.Equal(t, 1, fetchCalls)
}

func TestTransientErrorsKeepPolling(t *testing.T) {
	src := newFakeSource()
	src.script("swm-3", statusAnswer{err: errors.New("dial tcp: connection refused")})

	g := newTestGroup(t, src)
	p := g.Start("swm-3", "swm-3", Handler{
		OnError: func(string, string) { t.Error("transport errors must not fail the mission") },
	})

	require.Eventually(t, func() bool { return p.Polls() >= 5 }, 2*time.Second, tick)
	assert.False(t, p.Terminal())
	assert.True(t, g.Polling("swm-3"))
}

func TestStartTwiceKeepsOnePoller(t *testing.T) {
	src := newFakeSource()
	g := newTestGroup(t, src)

	first := g.Start("swm-4", "swm-4", Handler{})
	second := g.Start("swm-4", "swm-4", Handler{})

	select {
	case <-first.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("replaced poller kept running")
	}
	assert.Equal(t, 1, g.Active())

	select {
	case <-second.Done():
		t.Fatal("replacement poller should still be running")
	default:
	}
}

func TestStopAllHaltsEveryPoller(t *testing.T) {
	src := newFakeSource()
	g := newTestGroup(t, src)

	var pollers []*Poller
	for _, id := range []string{"a", "b", "c"} {
		pollers = append(pollers, g.Start(id, id, Handler{}))
	}
	require.Eventually(t, func() bool { return pollers[2].Polls() > 0 }, 2*time.Second, tick)

	g.StopAll()
	for _, p := range pollers {
		<-p.Done()
	}
	assert.Zero(t, g.Active())

	counts := map[string]int{}
	for _, id := range []string{"a", "b", "c"} {
		counts[id], _ = src.calls(id)
	}
	time.Sleep(10 * tick)
	for id, before := range counts {
		after, _ := src.calls(id)
		assert.Equal(t, before, after, "poller %s ticked after StopAll", id)
	}
}

func TestParentContextCancelsGroup(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	g := NewGroup(ctx, newFakeSource(), Options{Interval: tick})
	p := g.Start("x", "x", Handler{})

	cancel()
	select {
	case <-p.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("poller outlived its context")
	}
	g.Wait()
}

// blockingSource holds status requests until released.
type blockingSource struct {
	release chan struct{}
	entered chan struct{}
}

func (b *blockingSource) MissionStatus(context.Context, string) (mission.StatusReport, error) {
	b.entered <- struct{}{}
	<-b.release
	return mission.StatusReport{Status: mission.StatusComplete}, nil
}

func (b *blockingSource) Mission(context.Context, string) (mission.Mission, error) {
	return mission.Mission{}, errors.New("should not be fetched after stop")
}

func TestStopDiscardsInFlightResult(t *testing.T) {
	src := &blockingSource{release: make(chan struct{}), entered: make(chan struct{}, 1)}
	g := newTestGroup(t, src)
	p := g.Start("x", "x", Handler{
		OnComplete: func(mission.Mission) { t.Error("result of a stopped poller must be dropped") },
	})

	<-src.entered
	p.Stop()
	close(src.release)
	<-p.Done()
	assert.False(t, p.Terminal())
}

func TestTrackerMergesIntoRegistry(t *testing.T) {
	src := newFakeSource()
	src.script("swm-10", status(mission.StatusRunning), status(mission.StatusComplete))
	src.records["swm-10"] = mission.Mission{
		ID:        "swm-10",
		Type:      mission.Research,
		Topic:     "X",
		Status:    mission.StatusComplete,
		Cost:      0.38,
		Synthesis: "## Findings",
	}
	src.script("swm-11", status(mission.StatusError))

	reg := registry.New()
	_, _ = reg.Upsert(mission.Placeholder("swm-10", mission.Research, "X", mission.ProviderSwarm))
	_, _ = reg.Upsert(mission.Placeholder("swm-11", mission.Research, "Y", mission.ProviderSwarm))
	_, _ = reg.Upsert(mission.Failed(mission.Research, "Z", mission.ProviderSwarm, "offline"))

	tr := NewTracker(newTestGroup(t, src), reg)
	assert.Equal(t, 2, tr.WatchRunning())
	assert.Zero(t, tr.WatchRunning(), "already polled missions are skipped")

	require.Eventually(t, func() bool {
		a, _ := reg.Get("swm-10")
		b, _ := reg.Get("swm-11")
		return a.Status == mission.StatusComplete && b.Status == mission.StatusError
	}, 2*time.Second, tick)

	done, _ := reg.Get("swm-10")
	assert.Equal(t, "## Findings", done.Synthesis)
	failed, _ := reg.Get("swm-11")
	assert.Equal(t, "Mission failed", failed.Synthesis)
	require.Eventually(t, func() bool { return tr.Active() == 0 }, time.Second, tick)
}

func TestTrackerCompletesWithoutFullRecord(t *testing.T) {
	src := newFakeSource()
	src.script("swm-12", status(mission.StatusComplete))

	reg := registry.New()
	_, _ = reg.Upsert(mission.Placeholder("swm-12", mission.Engineering, "auth proxy", mission.ProviderSwarm))

	tr := NewTracker(newTestGroup(t, src), reg)
	tr.Watch("swm-12")

	require.Eventually(t, func() bool {
		m, _ := reg.Get("swm-12")
		return m.Status == mission.StatusComplete
	}, 2*time.Second, tick)

	m, _ := reg.Get("swm-12")
	assert.Equal(t, "auth proxy", m.Topic)
	assert.Equal(t, mission.Engineering, m.Type)
	require.Eventually(t, func() bool { return tr.Active() == 0 }, time.Second, tick)
	statusCalls, fetchCalls := src.calls("swm-12")
	assert.Equal(t, 1, statusCalls)
	assert.Equal(t, 1, fetchCalls)
}
