// Package poller drives missions to a terminal state by querying their status
// on a fixed interval. Each poller is an explicit cancelable task; a Group
// guarantees at most one live poller per key.
package poller

import (
	"context"
	"sync/atomic"
	"time"

	"swarmctl/internal/logger"
	"swarmctl/internal/mission"
)

const (
	DefaultInterval       = 3 * time.Second
	DefaultRequestTimeout = 15 * time.Second
)

// Source answers status and full-record queries for a mission id.
type Source interface {
	MissionStatus(ctx context.Context, id string) (mission.StatusReport, error)
	Mission(ctx context.Context, id string) (mission.Mission, error)
}

// Handler receives the single terminal outcome of a poller. Any callback
// may be nil.
type Handler struct {
	OnComplete func(m mission.Mission)
	OnError    func(missionID, reason string)
	// OnFetchFailed runs when the mission completed but its full record
	// could not be fetched.
	OnFetchFailed func(missionID string, err error)
}

type Poller struct {
	key       string
	missionID string
	src       Source
	handler   Handler
	interval  time.Duration
	timeout   time.Duration

	cancel   context.CancelFunc
	done     chan struct{}
	terminal atomic.Bool
	polls    atomic.Int64
}

func (p *Poller) Key() string       { return p.key }
func (p *Poller) MissionID() string { return p.missionID }

// Polls is the number of status requests issued so far.
func (p *Poller) Polls() int64 { return p.polls.Load() }

// Terminal reports whether a terminal status was observed.
func (p *Poller) Terminal() bool { return p.terminal.Load() }

// Done is closed once the poller's goroutine has exited.
func (p *Poller) Done() <-chan struct{} { return p.done }

// Stop prevents any future tick. A request already in flight is allowed to
// finish but its result is discarded.
func (p *Poller) Stop() { p.cancel() }

func (p *Poller) run(ctx context.Context) {
	defer close(p.done)

	t := time.NewTicker(p.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if p.tick(ctx) {
				return
			}
		}
	}
}

// tick performs one status query and reports whether polling is over.
func (p *Poller) tick(ctx context.Context) bool {
	if p.terminal.Load() {
		return true
	}

	// Requests outlive Stop; only the handling of their result is skipped.
	reqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()

	p.polls.Add(1)
	report, err := p.src.MissionStatus(reqCtx, p.missionID)
	if ctx.Err() != nil {
		return true
	}
	if err != nil {
		logger.Log.Printf("[Poller] Status check for %s failed, retrying next tick: %v", p.missionID, err)
		return false
	}

	switch report.Status {
	case mission.StatusRunning:
		return false

	case mission.StatusComplete:
		p.terminal.Store(true)
		m, err := p.src.Mission(reqCtx, p.missionID)
		if ctx.Err() != nil {
			return true
		}
		if err != nil {
			logger.Log.Printf("[Poller] Mission %s completed but the full record could not be fetched: %v", p.missionID, err)
			if p.handler.OnFetchFailed != nil {
				p.handler.OnFetchFailed(p.missionID, err)
			}
			return true
		}
		logger.Log.Printf("[Poller] Mission %s complete", p.missionID)
		if p.handler.OnComplete != nil {
			p.handler.OnComplete(m)
		}
		return true

	case mission.StatusError:
		p.terminal.Store(true)
		reason := report.Error
		if reason == "" {
			reason = "Mission failed"
		}
		logger.Log.Printf("[Poller] Mission %s failed: %s", p.missionID, reason)
		if p.handler.OnError != nil {
			p.handler.OnError(p.missionID, reason)
		}
		return true
	}

	logger.Log.Printf("[Poller] Mission %s reported unknown status %q, still polling", p.missionID, report.Status)
	return false
}
