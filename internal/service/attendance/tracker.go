package attendance

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub003/internal/domain/attendance"
)

// Tracker owns the live session for one open attendance day. It recomputes
// the category totals from the event log on a fixed tick, pushes the fresh
// snapshot to subscribers, and mirrors the totals back to persistence at a
// coarser interval. The tick goroutine stops the moment the record completes
// or the tracker is closed; it never outlives the session.
type Tracker struct {
	mu          sync.Mutex
	record      attendance.AttendanceRecord
	events      []attendance.ActivityEvent
	subscribers map[chan attendance.StatusSnapshot]struct{}
	closed      bool

	records     attendance.AttendanceRepository
	clock       func() time.Time
	tickEvery   time.Duration
	mirrorEvery time.Duration
	lastMirror  time.Time

	done      chan struct{}
	closeOnce sync.Once
	onClose   func()
}

func newTracker(
	record attendance.AttendanceRecord,
	events []attendance.ActivityEvent,
	records attendance.AttendanceRepository,
	clock func() time.Time,
	tickEvery, mirrorEvery time.Duration,
	onClose func(),
) *Tracker {
	t := &Tracker{
		record:      record,
		events:      append([]attendance.ActivityEvent{}, events...),
		subscribers: make(map[chan attendance.StatusSnapshot]struct{}),
		records:     records,
		clock:       clock,
		tickEvery:   tickEvery,
		mirrorEvery: mirrorEvery,
		lastMirror:  clock(),
		done:        make(chan struct{}),
		onClose:     onClose,
	}
	go t.run()
	return t
}

func (t *Tracker) run() {
	ticker := time.NewTicker(t.tickEvery)
	defer ticker.Stop()

	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
			if t.tick() {
				t.Close()
				return
			}
		}
	}
}

// tick recomputes and broadcasts one snapshot, mirroring totals to the
// repository when the mirror interval has elapsed. Reports completion.
func (t *Tracker) tick() bool {
	t.mu.Lock()
	snap := t.snapshotLocked()
	t.broadcastLocked(snap)

	completed := snap.Status == attendance.StatusCompleted
	recordID := t.record.ID
	totals := attendance.Recompute(t.events, t.clock().UTC())

	mirror := false
	if !completed && t.records != nil && t.clock().Sub(t.lastMirror) >= t.mirrorEvery {
		t.lastMirror = t.clock()
		mirror = true
	}
	t.mu.Unlock()

	if mirror {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := t.records.UpdateAccumulated(ctx, recordID, snap.Status, totals); err != nil {
			slog.Warn("Failed to mirror accumulated durations", "attendance_id", recordID, "error", err)
		}
		cancel()
	}

	return completed
}

// Snapshot returns the current derived view of the session.
func (t *Tracker) Snapshot() attendance.StatusSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *Tracker) snapshotLocked() attendance.StatusSnapshot {
	now := t.clock().UTC()
	totals := attendance.Recompute(t.events, now)
	status := attendance.StatusAfter(t.events)

	return attendance.StatusSnapshot{
		AttendanceID: t.record.ID,
		UserID:       t.record.UserID,
		Date:         t.record.Date,
		Status:       status,
		ClockIn:      t.record.ClockIn,
		ClockOut:     t.record.ClockOut,
		BreakUsed:    attendance.BreakUsed(t.events),
		Accumulated:  attendance.NewDurationsResponse(totals),
		AsOf:         now,
	}
}

// Subscribe registers a snapshot listener and returns the channel plus a
// cleanup function. Slow consumers miss snapshots instead of blocking the tick.
func (t *Tracker) Subscribe() (<-chan attendance.StatusSnapshot, func()) {
	ch := make(chan attendance.StatusSnapshot, 8)

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	t.subscribers[ch] = struct{}{}
	t.mu.Unlock()

	cleanup := func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if _, ok := t.subscribers[ch]; ok {
			delete(t.subscribers, ch)
			close(ch)
		}
	}
	return ch, cleanup
}

func (t *Tracker) broadcastLocked(snap attendance.StatusSnapshot) {
	for ch := range t.subscribers {
		select {
		case ch <- snap:
		default:
		}
	}
}

// AttendanceID identifies the session this tracker owns.
func (t *Tracker) AttendanceID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.record.ID
}

// Events returns a copy of the tracked log.
func (t *Tracker) Events() []attendance.ActivityEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]attendance.ActivityEvent{}, t.events...)
}

// Upsert folds an event into the log keyed by ID and reports whether it was
// new. Existing events are never replaced: the log is append-only.
func (t *Tracker) Upsert(ev attendance.ActivityEvent) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, existing := range t.events {
		if existing.ID == ev.ID {
			return false
		}
	}
	t.events = append(t.events, ev)
	t.broadcastLocked(t.snapshotLocked())
	return true
}

// Remove drops a speculative event that the server rejected.
func (t *Tracker) Remove(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, existing := range t.events {
		if existing.ID == id {
			t.events = append(t.events[:i], t.events[i+1:]...)
			break
		}
	}
	t.broadcastLocked(t.snapshotLocked())
}

// AdoptLog replaces the local log with the authoritative one.
func (t *Tracker) AdoptLog(events []attendance.ActivityEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append([]attendance.ActivityEvent{}, events...)
	t.broadcastLocked(t.snapshotLocked())
}

// SetRecord refreshes the cached record after a committed transition and
// broadcasts the resulting snapshot.
func (t *Tracker) SetRecord(record attendance.AttendanceRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.record = record
	t.broadcastLocked(t.snapshotLocked())
}

// Close stops the tick and releases every subscriber. Safe to call more than
// once.
func (t *Tracker) Close() {
	t.closeOnce.Do(func() {
		close(t.done)

		t.mu.Lock()
		t.closed = true
		for ch := range t.subscribers {
			delete(t.subscribers, ch)
			close(ch)
		}
		t.mu.Unlock()

		if t.onClose != nil {
			t.onClose()
		}
	})
}
