package attendance

import (
	"fmt"
	"sync"

	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub003/internal/domain/attendance"
)

// Reconciler merges externally-originated activity events into the session's
// local log. Locally-originated events go through a pending -> confirmed or
// pending -> rejected life: while an event is pending, a remote copy with the
// same ID never displaces it, and a rejection removes the speculative event
// and adopts the authoritative log wholesale.
//
// Merges are keyed by event ID and idempotent, so the arrival order of remote
// events cannot change the reconstructed state.
type Reconciler struct {
	mu      sync.Mutex
	tracker *Tracker
	pending map[string]attendance.ActivityEvent
}

func newReconciler(tracker *Tracker) *Reconciler {
	return &Reconciler{
		tracker: tracker,
		pending: make(map[string]attendance.ActivityEvent),
	}
}

// StageLocal appends an optimistic local event. The session shows it
// immediately; it stays pending until Confirm or Reject resolves it.
func (r *Reconciler) StageLocal(ev attendance.ActivityEvent) {
	r.mu.Lock()
	r.pending[ev.ID] = ev
	r.mu.Unlock()
	r.tracker.Upsert(ev)
}

// Confirm marks a staged event as accepted by the server.
func (r *Reconciler) Confirm(id string) {
	r.mu.Lock()
	delete(r.pending, id)
	r.mu.Unlock()
}

// Reject removes the speculative event and adopts the authoritative log.
func (r *Reconciler) Reject(id string, authoritative []attendance.ActivityEvent) {
	r.mu.Lock()
	delete(r.pending, id)
	r.mu.Unlock()
	r.tracker.AdoptLog(authoritative)
}

// ApplyRemote folds one out-of-band event into the log. Events for another
// attendance day are stale, not fatal: the caller logs and drops them.
func (r *Reconciler) ApplyRemote(ev attendance.ActivityEvent) error {
	if !ev.Type.Valid() {
		return fmt.Errorf("invalid remote event type %q", ev.Type)
	}
	if ev.AttendanceID != r.tracker.AttendanceID() {
		return fmt.Errorf("%w: event %s targets attendance %s", attendance.ErrStaleReconciliation, ev.ID, ev.AttendanceID)
	}

	r.mu.Lock()
	_, isPending := r.pending[ev.ID]
	r.mu.Unlock()
	if isPending {
		// The local optimistic copy wins until the server resolves it.
		return nil
	}

	r.tracker.Upsert(ev)
	return nil
}
