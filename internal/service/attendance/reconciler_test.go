package attendance

import (
	"testing"
	"time"

	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub003/internal/domain/attendance"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestReconciler(t *testing.T) (*Reconciler, *Tracker, *fakeClock) {
	t.Helper()
	clock := newFakeClock(time.Date(2025, 6, 2, 1, 0, 0, 0, time.UTC))
	tracker := newTestTracker(t, clock)
	return newReconciler(tracker), tracker, clock
}

func TestReconcilerPendingWinsOverRemote(t *testing.T) {
	rec, tracker, clock := newTestReconciler(t)

	ev := attendance.ActivityEvent{
		ID:           "ev-2",
		AttendanceID: "att-1",
		UserID:       "user-1",
		Type:         attendance.EventBreakStart,
		Timestamp:    clock.Now(),
	}
	rec.StageLocal(ev)
	require.Len(t, tracker.Events(), 2)

	// A remote copy of the still-pending event must not displace it.
	remote := ev
	remote.Notes = strPtr("remote copy")
	require.NoError(t, rec.ApplyRemote(remote))

	log := tracker.Events()
	require.Len(t, log, 2)
	assert.Nil(t, log[1].Notes, "the local optimistic copy is untouched")
}

func TestReconcilerConfirmThenRemoteIsIdempotent(t *testing.T) {
	rec, tracker, clock := newTestReconciler(t)

	ev := attendance.ActivityEvent{
		ID:           "ev-2",
		AttendanceID: "att-1",
		UserID:       "user-1",
		Type:         attendance.EventBreakStart,
		Timestamp:    clock.Now(),
	}
	rec.StageLocal(ev)
	rec.Confirm(ev.ID)

	require.NoError(t, rec.ApplyRemote(ev))
	assert.Len(t, tracker.Events(), 2, "a confirmed event is merged once by ID")
}

func TestReconcilerRejectAdoptsAuthoritativeLog(t *testing.T) {
	rec, tracker, clock := newTestReconciler(t)
	authoritative := tracker.Events()

	ev := attendance.ActivityEvent{
		ID:           "ev-2",
		AttendanceID: "att-1",
		UserID:       "user-1",
		Type:         attendance.EventBreakStart,
		Timestamp:    clock.Now(),
	}
	rec.StageLocal(ev)
	require.Equal(t, attendance.StatusBreak, tracker.Snapshot().Status)

	rec.Reject(ev.ID, authoritative)

	log := tracker.Events()
	require.Len(t, log, 1)
	assert.Equal(t, attendance.EventClockIn, log[0].Type)
	assert.Equal(t, attendance.StatusWorking, tracker.Snapshot().Status)
}

func TestReconcilerRemoteOrderIndependent(t *testing.T) {
	rec, tracker, clock := newTestReconciler(t)

	breakStart := attendance.ActivityEvent{
		ID: "ev-2", AttendanceID: "att-1", UserID: "user-1",
		Type: attendance.EventBreakStart, Timestamp: clock.Now().Add(time.Hour),
	}
	breakEnd := attendance.ActivityEvent{
		ID: "ev-3", AttendanceID: "att-1", UserID: "user-1",
		Type: attendance.EventBreakEnd, Timestamp: clock.Now().Add(90 * time.Minute),
	}

	// Later event arrives first; duplicates arrive afterwards.
	require.NoError(t, rec.ApplyRemote(breakEnd))
	require.NoError(t, rec.ApplyRemote(breakStart))
	require.NoError(t, rec.ApplyRemote(breakEnd))

	clock.Advance(2 * time.Hour)
	snap := tracker.Snapshot()
	assert.Equal(t, attendance.StatusWorking, snap.Status)
	assert.True(t, snap.BreakUsed)
	assert.Equal(t, int64(1800), snap.Accumulated.Break.Seconds)
}

func TestReconcilerRejectsForeignAttendance(t *testing.T) {
	rec, _, clock := newTestReconciler(t)

	err := rec.ApplyRemote(attendance.ActivityEvent{
		ID:           "ev-x",
		AttendanceID: "att-other",
		UserID:       "user-1",
		Type:         attendance.EventBreakStart,
		Timestamp:    clock.Now(),
	})
	require.ErrorIs(t, err, attendance.ErrStaleReconciliation)
}

func TestReconcilerRejectsInvalidEventType(t *testing.T) {
	rec, _, clock := newTestReconciler(t)

	err := rec.ApplyRemote(attendance.ActivityEvent{
		ID:           "ev-x",
		AttendanceID: "att-1",
		Type:         attendance.EventType("lunch"),
		Timestamp:    clock.Now(),
	})
	require.Error(t, err)
}

func strPtr(s string) *string { return &s }
