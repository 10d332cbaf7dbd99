package attendance

import (
	"context"
	"testing"
	"time"

	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub003/internal/domain/attendance"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTracker(t *testing.T, clock *fakeClock) *Tracker {
	t.Helper()
	start := clock.Now()
	record := attendance.AttendanceRecord{
		ID:      "att-1",
		UserID:  "user-1",
		Date:    start.Format("2006-01-02"),
		ClockIn: start,
		Status:  attendance.StatusWorking,
	}
	events := []attendance.ActivityEvent{{
		ID:           "ev-1",
		AttendanceID: "att-1",
		UserID:       "user-1",
		Type:         attendance.EventClockIn,
		Timestamp:    start,
	}}
	tracker := newTracker(record, events, nil, clock.Now, time.Hour, time.Hour, nil)
	t.Cleanup(tracker.Close)
	return tracker
}

func TestTrackerSnapshotFollowsClock(t *testing.T) {
	clock := newFakeClock(time.Date(2025, 6, 2, 1, 0, 0, 0, time.UTC))
	tracker := newTestTracker(t, clock)

	clock.Advance(90 * time.Minute)
	snap := tracker.Snapshot()

	assert.Equal(t, attendance.StatusWorking, snap.Status)
	assert.Equal(t, int64(5400), snap.Accumulated.Work.Seconds)
	assert.Equal(t, "01:30:00", snap.Accumulated.Work.Formatted)
	assert.False(t, snap.BreakUsed)
	assert.Equal(t, clock.Now(), snap.AsOf)
}

func TestTrackerUpsertBroadcasts(t *testing.T) {
	clock := newFakeClock(time.Date(2025, 6, 2, 1, 0, 0, 0, time.UTC))
	tracker := newTestTracker(t, clock)

	snaps, cleanup := tracker.Subscribe()
	defer cleanup()

	clock.Advance(time.Hour)
	added := tracker.Upsert(attendance.ActivityEvent{
		ID:           "ev-2",
		AttendanceID: "att-1",
		UserID:       "user-1",
		Type:         attendance.EventBreakStart,
		Timestamp:    clock.Now(),
	})
	require.True(t, added)

	select {
	case snap := <-snaps:
		assert.Equal(t, attendance.StatusBreak, snap.Status)
		assert.True(t, snap.BreakUsed)
	case <-time.After(time.Second):
		t.Fatal("no snapshot broadcast after Upsert")
	}
}

func TestTrackerUpsertIdempotent(t *testing.T) {
	clock := newFakeClock(time.Date(2025, 6, 2, 1, 0, 0, 0, time.UTC))
	tracker := newTestTracker(t, clock)

	ev := attendance.ActivityEvent{
		ID:           "ev-2",
		AttendanceID: "att-1",
		Type:         attendance.EventBreakStart,
		Timestamp:    clock.Now(),
	}
	require.True(t, tracker.Upsert(ev))
	require.False(t, tracker.Upsert(ev), "the log is keyed by event ID")
	assert.Len(t, tracker.Events(), 2)
}

func TestTrackerRemove(t *testing.T) {
	clock := newFakeClock(time.Date(2025, 6, 2, 1, 0, 0, 0, time.UTC))
	tracker := newTestTracker(t, clock)

	tracker.Upsert(attendance.ActivityEvent{
		ID:           "ev-2",
		AttendanceID: "att-1",
		Type:         attendance.EventBreakStart,
		Timestamp:    clock.Now(),
	})
	require.Equal(t, attendance.StatusBreak, tracker.Snapshot().Status)

	tracker.Remove("ev-2")
	assert.Equal(t, attendance.StatusWorking, tracker.Snapshot().Status)
	assert.Len(t, tracker.Events(), 1)
}

func TestTrackerCloseReleasesSubscribers(t *testing.T) {
	clock := newFakeClock(time.Date(2025, 6, 2, 1, 0, 0, 0, time.UTC))
	closed := false
	record := attendance.AttendanceRecord{ID: "att-1", UserID: "user-1", ClockIn: clock.Now(), Status: attendance.StatusWorking}
	tracker := newTracker(record, nil, nil, clock.Now, time.Hour, time.Hour, func() { closed = true })

	snaps, cleanup := tracker.Subscribe()
	defer cleanup()

	tracker.Close()
	tracker.Close() // safe to call twice

	_, open := <-snaps
	assert.False(t, open, "Close drains and closes subscriber channels")
	assert.True(t, closed, "Close invokes the onClose hook")
}

func TestTrackerSubscribeAfterClose(t *testing.T) {
	clock := newFakeClock(time.Date(2025, 6, 2, 1, 0, 0, 0, time.UTC))
	record := attendance.AttendanceRecord{ID: "att-1", UserID: "user-1", ClockIn: clock.Now(), Status: attendance.StatusWorking}
	tracker := newTracker(record, nil, nil, clock.Now, time.Hour, time.Hour, nil)
	tracker.Close()

	snaps, cleanup := tracker.Subscribe()
	defer cleanup()
	_, open := <-snaps
	assert.False(t, open)
}

func TestTrackerTickMirrorsTotals(t *testing.T) {
	clock := newFakeClock(time.Date(2025, 6, 2, 1, 0, 0, 0, time.UTC))
	records := newFakeAttendanceRepo()
	created, err := records.Create(context.Background(), attendance.AttendanceRecord{
		UserID:  "user-1",
		Date:    "2025-06-02",
		ClockIn: clock.Now(),
		Status:  attendance.StatusWorking,
	})
	require.NoError(t, err)

	events := []attendance.ActivityEvent{{
		ID:           "ev-1",
		AttendanceID: created.ID,
		UserID:       "user-1",
		Type:         attendance.EventClockIn,
		Timestamp:    clock.Now(),
	}}
	tracker := newTracker(created, events, records, clock.Now, time.Hour, time.Minute, nil)
	t.Cleanup(tracker.Close)

	clock.Advance(2 * time.Minute)
	completed := tracker.tick()
	require.False(t, completed)

	stored, err := records.GetByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, stored.Accumulated.Work, "elapsed work is mirrored back to storage")
}

func TestTrackerTickReportsCompletion(t *testing.T) {
	clock := newFakeClock(time.Date(2025, 6, 2, 1, 0, 0, 0, time.UTC))
	tracker := newTestTracker(t, clock)

	clock.Advance(8 * time.Hour)
	tracker.Upsert(attendance.ActivityEvent{
		ID:           "ev-out",
		AttendanceID: "att-1",
		UserID:       "user-1",
		Type:         attendance.EventClockOut,
		Timestamp:    clock.Now(),
	})

	assert.True(t, tracker.tick(), "a clock_out in the log completes the session")
}
