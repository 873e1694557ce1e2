// Package registry holds the canonical, ordered mission collection. Every view
// reads from it and writers only ever replace whole records keyed by id.
package registry

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"swarmctl/internal/logger"
	"swarmctl/internal/mission"
)

var (
	ErrMissingID      = errors.New("mission has no id")
	ErrStatusReversal = errors.New("terminal mission cannot change status")
)

type Registry struct {
	mu       sync.RWMutex
	missions []mission.Mission // most recent first
	waiters  map[string][]chan struct{}
	subs     []subscriber
	nextSub  uint64
}

type subscriber struct {
	id uint64
	fn func(mission.Mission)
}

func New() *Registry {
	return &Registry{waiters: make(map[string][]chan struct{})}
}

// Upsert prepends m when its id is unseen and otherwise replaces the stored
// record wholesale. A terminal mission may be replaced by a record with the
// same status (a refreshed full result) but never moved to another status.
func (r *Registry) Upsert(m mission.Mission) (inserted bool, err error) {
	if m.ID == "" {
		return false, ErrMissingID
	}
	m = m.Clone()
	m.Normalize()

	r.mu.Lock()
	i := r.indexLocked(m.ID)
	if i >= 0 {
		cur := r.missions[i].Status
		if cur.Terminal() && m.Status != cur {
			r.mu.Unlock()
			return false, fmt.Errorf("%w: %s is %s, got %s", ErrStatusReversal, m.ID, cur, m.Status)
		}
		r.missions[i] = m
	} else {
		r.missions = slices.Insert(r.missions, 0, m)
		inserted = true
	}
	waiters := r.waiters[m.ID]
	delete(r.waiters, m.ID)
	subs := slices.Clone(r.subs)
	r.mu.Unlock()

	for _, ch := range waiters {
		close(ch)
	}
	notify(subs, m)
	return inserted, nil
}

// LoadAll replaces the collection with the backend's full set, keeping its
// order. Duplicate ids keep their first occurrence.
func (r *Registry) LoadAll(missions []mission.Mission) {
	loaded := make([]mission.Mission, 0, len(missions))
	seen := make(map[string]struct{}, len(missions))
	for _, m := range missions {
		if m.ID == "" {
			logger.Log.Printf("[Registry] Skipping mission without id (topic %q)", m.Topic)
			continue
		}
		if _, dup := seen[m.ID]; dup {
			continue
		}
		seen[m.ID] = struct{}{}
		m = m.Clone()
		m.Normalize()
		loaded = append(loaded, m)
	}

	r.mu.Lock()
	r.missions = loaded
	var ready []chan struct{}
	for id, chs := range r.waiters {
		if _, ok := seen[id]; ok {
			ready = append(ready, chs...)
			delete(r.waiters, id)
		}
	}
	r.mu.Unlock()

	for _, ch := range ready {
		close(ch)
	}
}

// MarkError flips a running mission to Error, keeping whatever fields it
// already had. reason fills the synthesis when the record has none.
func (r *Registry) MarkError(id, reason string) bool {
	r.mu.Lock()
	i := r.indexLocked(id)
	if i < 0 || r.missions[i].Status.Terminal() {
		r.mu.Unlock()
		return false
	}
	m := r.missions[i]
	m.Status = mission.StatusError
	if m.Synthesis == "" {
		m.Synthesis = reason
	}
	r.missions[i] = m
	subs := slices.Clone(r.subs)
	r.mu.Unlock()

	notify(subs, m.Clone())
	return true
}

func (r *Registry) Get(id string) (mission.Mission, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i := r.indexLocked(id)
	if i < 0 {
		return mission.Mission{}, false
	}
	return r.missions[i].Clone(), true
}

// Snapshot returns a copy of the collection, most recent first.
func (r *Registry) Snapshot() []mission.Mission {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]mission.Mission, len(r.missions))
	for i, m := range r.missions {
		out[i] = m.Clone()
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.missions)
}

// Registered returns a channel closed once a mission with id is present.
func (r *Registry) Registered(id string) <-chan struct{} {
	ch := make(chan struct{})
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.indexLocked(id) >= 0 {
		close(ch)
		return ch
	}
	r.waiters[id] = append(r.waiters[id], ch)
	return ch
}

// Subscribe registers fn to be called after every upsert or status change
// and returns a func that removes it. Callbacks run on the writer's
// goroutine and must not block.
func (r *Registry) Subscribe(fn func(mission.Mission)) (cancel func()) {
	r.mu.Lock()
	r.nextSub++
	id := r.nextSub
	r.subs = append(r.subs, subscriber{id: id, fn: fn})
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.subs = slices.DeleteFunc(r.subs, func(s subscriber) bool { return s.id == id })
	}
}

func (r *Registry) indexLocked(id string) int {
	return slices.IndexFunc(r.missions, func(m mission.Mission) bool { return m.ID == id })
}

func notify(subs []subscriber, m mission.Mission) {
	for _, s := range subs {
		s.fn(m.Clone())
	}
}
