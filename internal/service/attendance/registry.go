package attendance

import (
	"sync"
	"time"

	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub003/internal/domain/attendance"
)

// Session pairs the ticking tracker of one live attendance day with the
// reconciler that guards its log.
type Session struct {
	Tracker    *Tracker
	Reconciler *Reconciler
}

// TrackerRegistry maps user IDs to live sessions. A session is started on
// clock-in or on the first status read of an open day, and removed when its
// tracker closes.
type TrackerRegistry struct {
	mu       sync.Mutex
	sessions map[string]*Session

	records     attendance.AttendanceRepository
	clock       func() time.Time
	tickEvery   time.Duration
	mirrorEvery time.Duration
	onSnapshot  func(attendance.StatusSnapshot)
}

func NewTrackerRegistry(records attendance.AttendanceRepository, clock func() time.Time, tickEvery, mirrorEvery time.Duration) *TrackerRegistry {
	if clock == nil {
		clock = time.Now
	}
	if tickEvery <= 0 {
		tickEvery = time.Second
	}
	if mirrorEvery <= 0 {
		mirrorEvery = time.Minute
	}
	return &TrackerRegistry{
		sessions:    make(map[string]*Session),
		records:     records,
		clock:       clock,
		tickEvery:   tickEvery,
		mirrorEvery: mirrorEvery,
	}
}

// OnSnapshot registers a sink that receives every broadcast snapshot of every
// session. Set it during wiring, before any session starts.
func (r *TrackerRegistry) OnSnapshot(fn func(attendance.StatusSnapshot)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onSnapshot = fn
}

// Start creates the session for a user's open record, or returns the
// existing one.
func (r *TrackerRegistry) Start(record attendance.AttendanceRecord, events []attendance.ActivityEvent) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sess, ok := r.sessions[record.UserID]; ok {
		return sess
	}

	userID := record.UserID
	tracker := newTracker(record, events, r.records, r.clock, r.tickEvery, r.mirrorEvery, func() {
		r.mu.Lock()
		delete(r.sessions, userID)
		r.mu.Unlock()
	})
	sess := &Session{
		Tracker:    tracker,
		Reconciler: newReconciler(tracker),
	}
	r.sessions[userID] = sess

	if r.onSnapshot != nil {
		snaps, cleanup := tracker.Subscribe()
		go func() {
			defer cleanup()
			for snap := range snaps {
				r.onSnapshot(snap)
			}
		}()
	}

	return sess
}

// Get returns the user's live session, nil when there is none.
func (r *TrackerRegistry) Get(userID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[userID]
}

// Close ends one user's session.
func (r *TrackerRegistry) Close(userID string) {
	r.mu.Lock()
	sess := r.sessions[userID]
	r.mu.Unlock()

	if sess != nil {
		sess.Tracker.Close()
	}
}

// CloseAll ends every session; used on server shutdown so no tick goroutine
// survives.
func (r *TrackerRegistry) CloseAll() {
	r.mu.Lock()
	all := make([]*Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		all = append(all, sess)
	}
	r.mu.Unlock()

	for _, sess := range all {
		sess.Tracker.Close()
	}
}
