// Package compare fans one topic out to several SDK providers at once and
// tracks each provider's mission in its own slot, apart from the main
// registry.
package compare

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"swarmctl/internal/logger"
	"swarmctl/internal/metrics"
	"swarmctl/internal/mission"
	"swarmctl/internal/poller"
)

var ErrRunning = errors.New("a comparison is still launching")

// Launcher starts a topic on a single provider.
type Launcher interface {
	LaunchProvider(ctx context.Context, p mission.Provider, topic string, t mission.Type) (string, error)
}

// Slot is one provider's share of a run. An empty Status means idle.
type Slot struct {
	Provider   mission.Provider
	MissionID  string
	Status     mission.Status
	Mission    *mission.Mission
	Cost       float64
	Err        string
	StartedAt  time.Time
	LaunchedAt time.Time
	FinishedAt time.Time
}

type Progress struct {
	Finished int
	Complete int
	Failed   int
	Total    int
	AllDone  bool
}

type Runner struct {
	launcher  Launcher
	group     *poller.Group
	providers []mission.Provider
	onChange  func(Slot)

	mu        sync.Mutex
	gen       uint64
	launching bool
	topic     string
	typ       mission.Type
	start     time.Time
	slots     map[mission.Provider]*Slot
	done      chan struct{}
	closed    bool
}

// NewRunner builds a runner for providers, or for every SDK provider when
// none are given. The swarm provider is rejected.
func NewRunner(l Launcher, g *poller.Group, providers ...mission.Provider) (*Runner, error) {
	if len(providers) == 0 {
		providers = mission.SDKProviders
	}
	seen := make(map[mission.Provider]bool, len(providers))
	for _, p := range providers {
		if !p.SDK() {
			return nil, fmt.Errorf("%w: %q", mission.ErrNotSDK, p)
		}
		if seen[p] {
			return nil, fmt.Errorf("provider %q listed twice", p)
		}
		seen[p] = true
	}
	return &Runner{
		launcher:  l,
		group:     g,
		providers: append([]mission.Provider(nil), providers...),
		slots:     make(map[mission.Provider]*Slot),
	}, nil
}

// OnChange registers fn to receive every slot transition. It must be set
// before Run and is called without the runner's lock held.
func (r *Runner) OnChange(fn func(Slot)) {
	r.mu.Lock()
	r.onChange = fn
	r.mu.Unlock()
}

// Run launches topic on every provider concurrently and returns once each
// launch call has returned. A failed launch only affects its own slot.
// Pollers of a previous run are stopped first.
func (r *Runner) Run(ctx context.Context, topic string, t mission.Type) error {
	topic, err := mission.ValidateTopic(topic)
	if err != nil {
		return err
	}
	if t != mission.Research && t != mission.Engineering {
		return fmt.Errorf("%w: %q", mission.ErrUnknownType, t)
	}

	r.mu.Lock()
	if r.launching {
		r.mu.Unlock()
		return ErrRunning
	}
	r.stopPollersLocked()
	r.gen++
	gen := r.gen
	r.launching = true
	r.topic, r.typ = topic, t
	r.start = time.Now()
	r.slots = make(map[mission.Provider]*Slot, len(r.providers))
	r.done = make(chan struct{})
	r.closed = false
	changed := make([]Slot, 0, len(r.providers))
	for _, p := range r.providers {
		s := &Slot{Provider: p, Status: mission.StatusRunning, StartedAt: r.start}
		r.slots[p] = s
		changed = append(changed, *s)
	}
	fn := r.onChange
	r.mu.Unlock()
	emit(fn, changed...)

	logger.Log.Printf("[Compare] Launching %q on %d providers", topic, len(r.providers))

	var g errgroup.Group
	for _, p := range r.providers {
		g.Go(func() error {
			id, err := r.launcher.LaunchProvider(ctx, p, topic, t)
			r.launched(gen, p, id, err)
			// Sibling launches are never cancelled by a failure.
			return nil
		})
	}
	_ = g.Wait()

	r.mu.Lock()
	if r.gen == gen {
		r.launching = false
	}
	r.mu.Unlock()
	return nil
}

func (r *Runner) launched(gen uint64, p mission.Provider, id string, err error) {
	r.mu.Lock()
	if r.gen != gen {
		r.mu.Unlock()
		return
	}
	var done chan struct{}
	s := r.slots[p]
	if err != nil {
		logger.Log.Printf("[Compare] Launch on %s failed: %v", p, err)
		s.Status = mission.StatusError
		s.Err = err.Error()
		s.FinishedAt = time.Now()
		done = r.checkDoneLocked()
	} else {
		logger.Log.Printf("[Compare] %s running as mission %s", p, id)
		s.MissionID = id
		s.LaunchedAt = time.Now()
		topic, typ := r.topic, r.typ
		r.group.Start(pollerKey(p), id, poller.Handler{
			OnComplete: func(m mission.Mission) { r.finish(gen, p, &m, "") },
			OnError:    func(_, reason string) { r.finish(gen, p, nil, reason) },
			OnFetchFailed: func(missionID string, _ error) {
				// Completed, but without a result to show.
				r.finish(gen, p, &mission.Mission{ID: missionID, Type: typ, Topic: topic}, "")
			},
		})
	}
	snap, fn := *s, r.onChange
	r.mu.Unlock()
	emit(fn, snap)
	closeDone(done)
}

// finish records a terminal outcome; a nil m means the mission failed.
func (r *Runner) finish(gen uint64, p mission.Provider, m *mission.Mission, reason string) {
	r.mu.Lock()
	s := r.slots[p]
	if r.gen != gen || s == nil || s.Status.Terminal() {
		r.mu.Unlock()
		return
	}
	s.FinishedAt = time.Now()
	if m != nil {
		m.Status = mission.StatusComplete
		if m.Provider == "" || m.Provider == mission.ProviderSwarm {
			m.Provider = p
		}
		s.Status = mission.StatusComplete
		s.Mission = m
		s.Cost = m.EffectiveCost()
	} else {
		s.Status = mission.StatusError
		s.Err = reason
	}
	done := r.checkDoneLocked()
	snap, fn := *s, r.onChange
	r.mu.Unlock()
	emit(fn, snap)
	closeDone(done)
}

// checkDoneLocked returns the done channel once every slot is terminal, at
// most once per run. The caller closes it after emitting the last change.
func (r *Runner) checkDoneLocked() chan struct{} {
	if r.closed {
		return nil
	}
	for _, s := range r.slots {
		if !s.Status.Terminal() {
			return nil
		}
	}
	r.closed = true
	logger.Log.Printf("[Compare] All %d providers finished for %q", len(r.slots), r.topic)
	return r.done
}

func closeDone(done chan struct{}) {
	if done != nil {
		close(done)
	}
}

// Slots returns copies of the current slots in roster order.
func (r *Runner) Slots() []Slot {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Slot, 0, len(r.providers))
	for _, p := range r.providers {
		if s, ok := r.slots[p]; ok {
			c := *s
			if s.Mission != nil {
				m := s.Mission.Clone()
				c.Mission = &m
			}
			out = append(out, c)
		} else {
			out = append(out, Slot{Provider: p})
		}
	}
	return out
}

func (r *Runner) Progress() Progress {
	r.mu.Lock()
	defer r.mu.Unlock()
	pr := Progress{Total: len(r.providers)}
	for _, s := range r.slots {
		switch s.Status {
		case mission.StatusComplete:
			pr.Complete++
		case mission.StatusError:
			pr.Failed++
		}
	}
	pr.Finished = pr.Complete + pr.Failed
	pr.AllDone = len(r.slots) > 0 && pr.Finished == pr.Total
	return pr
}

// Done is closed once every slot of the current run is terminal. It is nil
// before the first run.
func (r *Runner) Done() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done
}

func (r *Runner) Metrics() metrics.RunMetrics {
	r.mu.Lock()
	rm := metrics.RunMetrics{Topic: r.topic, Type: r.typ, Start: r.start}
	for _, p := range r.providers {
		s, ok := r.slots[p]
		if !ok {
			continue
		}
		rm.Providers = append(rm.Providers, metrics.ProviderMetrics{
			Provider:  p,
			MissionID: s.MissionID,
			Start:     s.StartedAt,
			Launched:  s.LaunchedAt,
			End:       s.FinishedAt,
			Status:    s.Status,
			Cost:      s.Cost,
			Err:       s.Err,
		})
	}
	r.mu.Unlock()
	rm.Finalize()
	return rm
}

// Stop cancels every provider poller of the current run. Launches still in
// flight finish but their results are ignored; slots keep their last state.
func (r *Runner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopPollersLocked()
	r.gen++
	r.launching = false
}

func (r *Runner) stopPollersLocked() {
	for _, p := range r.providers {
		r.group.Stop(pollerKey(p))
	}
}

func pollerKey(p mission.Provider) string {
	return "compare/" + string(p)
}

func emit(fn func(Slot), slots ...Slot) {
	if fn == nil {
		return
	}
	for _, s := range slots {
		fn(s)
	}
}
