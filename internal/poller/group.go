package poller

import (
	"context"
	"sync"
	"time"
)

type Options struct {
	Interval       time.Duration
	RequestTimeout time.Duration
}

// Group owns a set of pollers keyed by an arbitrary string (a mission id, or
// a provider name for comparison runs). Cancelling the parent context stops
// every poller in the group.
type Group struct {
	ctx      context.Context
	src      Source
	interval time.Duration
	timeout  time.Duration

	mu      sync.Mutex
	pollers map[string]*Poller
	wg      sync.WaitGroup
}

func NewGroup(ctx context.Context, src Source, opts Options) *Group {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	return &Group{
		ctx:      ctx,
		src:      src,
		interval: opts.Interval,
		timeout:  opts.RequestTimeout,
		pollers:  make(map[string]*Poller),
	}
}

// Start arms a poller for missionID under key. A poller already registered
// under key is stopped before the new one is armed.
func (g *Group) Start(key, missionID string, h Handler) *Poller {
	ctx, cancel := context.WithCancel(g.ctx)
	p := &Poller{
		key:       key,
		missionID: missionID,
		src:       g.src,
		handler:   h,
		interval:  g.interval,
		timeout:   g.timeout,
		cancel:    cancel,
		done:      make(chan struct{}),
	}

	g.mu.Lock()
	if old, ok := g.pollers[key]; ok {
		old.Stop()
	}
	g.pollers[key] = p
	g.wg.Add(1)
	g.mu.Unlock()

	go func() {
		defer g.wg.Done()
		p.run(ctx)
		cancel()
		g.release(p)
	}()
	return p
}

// Stop cancels the poller registered under key.
func (g *Group) Stop(key string) bool {
	g.mu.Lock()
	p, ok := g.pollers[key]
	if ok {
		delete(g.pollers, key)
	}
	g.mu.Unlock()
	if ok {
		p.Stop()
	}
	return ok
}

func (g *Group) StopAll() {
	g.mu.Lock()
	pollers := g.pollers
	g.pollers = make(map[string]*Poller)
	g.mu.Unlock()
	for _, p := range pollers {
		p.Stop()
	}
}

// Wait blocks until every poller goroutine started by the group has exited.
func (g *Group) Wait() {
	g.wg.Wait()
}

// Active is the number of live pollers.
func (g *Group) Active() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.pollers)
}

func (g *Group) Polling(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.pollers[key]
	return ok
}

func (g *Group) release(p *Poller) {
	g.mu.Lock()
	if cur, ok := g.pollers[p.key]; ok && cur == p {
		delete(g.pollers, p.key)
	}
	g.mu.Unlock()
}
