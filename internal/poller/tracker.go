package poller

import (
	"swarmctl/internal/logger"
	"swarmctl/internal/mission"
	"swarmctl/internal/registry"
)

// Tracker polls registry missions and writes their terminal outcome back.
type Tracker struct {
	group *Group
	reg   *registry.Registry
}

func NewTracker(g *Group, reg *registry.Registry) *Tracker {
	return &Tracker{group: g, reg: reg}
}

// Watch polls id until it completes or fails. The full record replaces the
// registry entry as a whole, so concurrent edits to that entry are
// overwritten (last write wins).
func (t *Tracker) Watch(id string) {
	t.group.Start(id, id, Handler{
		OnComplete: func(m mission.Mission) {
			if m.ID == "" {
				m.ID = id
			}
			// The status endpoint is authoritative about completion even
			// if the full record lags behind.
			m.Status = mission.StatusComplete
			if _, err := t.reg.Upsert(m); err != nil {
				logger.Log.Printf("[Tracker] Could not store result of %s: %v", id, err)
			}
		},
		OnError: func(missionID, reason string) {
			t.reg.MarkError(missionID, reason)
		},
		OnFetchFailed: func(missionID string, _ error) {
			// Keep what is known locally but record the completion.
			m, ok := t.reg.Get(missionID)
			if !ok {
				m = mission.Mission{ID: missionID}
			}
			m.Status = mission.StatusComplete
			if _, err := t.reg.Upsert(m); err != nil {
				logger.Log.Printf("[Tracker] Could not mark %s complete: %v", missionID, err)
			}
		},
	})
}

// WatchRunning starts a poller for every Running mission in the registry
// that is not already being polled. Locally identified missions never
// reached the backend and are skipped.
func (t *Tracker) WatchRunning() int {
	n := 0
	for _, m := range t.reg.Snapshot() {
		if m.Status != mission.StatusRunning || mission.IsLocalID(m.ID) || t.group.Polling(m.ID) {
			continue
		}
		t.Watch(m.ID)
		n++
	}
	return n
}

func (t *Tracker) Stop(id string) bool { return t.group.Stop(id) }

func (t *Tracker) StopAll() { t.group.StopAll() }

func (t *Tracker) Active() int { return t.group.Active() }
