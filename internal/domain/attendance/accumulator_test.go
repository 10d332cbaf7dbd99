package attendance

import (
	"testing"
	"time"
)

func at(t *testing.T, clock string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, "2026-03-02T"+clock+":00Z")
	if err != nil {
		t.Fatalf("bad timestamp %q: %v", clock, err)
	}
	return ts
}

func ev(t *testing.T, id string, typ EventType, clock string) ActivityEvent {
	t.Helper()
	return ActivityEvent{
		ID:           id,
		AttendanceID: "att-1",
		UserID:       "user-1",
		Type:         typ,
		Timestamp:    at(t, clock),
	}
}

// clock_in 09:00, break 12:00-12:30, clock_out 18:00 => work 8h30m, break 30m.
func TestRecomputeFullDayWithBreak(t *testing.T) {
	events := []ActivityEvent{
		ev(t, "e1", EventClockIn, "09:00"),
		ev(t, "e2", EventBreakStart, "12:00"),
		ev(t, "e3", EventBreakEnd, "12:30"),
		ev(t, "e4", EventClockOut, "18:00"),
	}

	got := Recompute(events, at(t, "23:00"))

	if got.Work != 8*time.Hour+30*time.Minute {
		t.Errorf("work = %v, want 8h30m", got.Work)
	}
	if got.Break != 30*time.Minute {
		t.Errorf("break = %v, want 30m", got.Break)
	}
	if got.Overtime != 0 || got.ClientVisit != 0 {
		t.Errorf("overtime = %v, client visit = %v, want 0 for both", got.Overtime, got.ClientVisit)
	}
}

// clock_in 08:00, overtime from 17:00, clock_out 19:00 => work 9h, overtime 2h.
func TestRecomputeOvertime(t *testing.T) {
	events := []ActivityEvent{
		ev(t, "e1", EventClockIn, "08:00"),
		ev(t, "e2", EventOvertimeStart, "17:00"),
		ev(t, "e3", EventClockOut, "19:00"),
	}

	got := Recompute(events, at(t, "20:00"))

	if got.Work != 9*time.Hour {
		t.Errorf("work = %v, want 9h", got.Work)
	}
	if got.Overtime != 2*time.Hour {
		t.Errorf("overtime = %v, want 2h", got.Overtime)
	}
}

// The final open interval closes at now, not at the last event.
func TestRecomputeOpenSessionUsesNow(t *testing.T) {
	events := []ActivityEvent{
		ev(t, "e1", EventClockIn, "09:00"),
		ev(t, "e2", EventClientVisitStart, "10:00"),
	}

	got := Recompute(events, at(t, "11:15"))

	if got.Work != time.Hour {
		t.Errorf("work = %v, want 1h", got.Work)
	}
	if got.ClientVisit != time.Hour+15*time.Minute {
		t.Errorf("client visit = %v, want 1h15m", got.ClientVisit)
	}
}

// A closed log ignores now entirely: clock_out is the right edge.
func TestRecomputeCompletedIgnoresNow(t *testing.T) {
	events := []ActivityEvent{
		ev(t, "e1", EventClockIn, "09:00"),
		ev(t, "e2", EventClockOut, "17:00"),
	}

	early := Recompute(events, at(t, "17:30"))
	late := Recompute(events, at(t, "22:00"))

	if early != late {
		t.Errorf("totals depend on now for a completed log: %+v vs %+v", early, late)
	}
	if early.Work != 8*time.Hour {
		t.Errorf("work = %v, want 8h", early.Work)
	}
}

// Conservation: for a closed log the buckets sum to clockOut - clockIn.
func TestRecomputeConservation(t *testing.T) {
	events := []ActivityEvent{
		ev(t, "e1", EventClockIn, "08:30"),
		ev(t, "e2", EventBreakStart, "12:00"),
		ev(t, "e3", EventBreakEnd, "12:45"),
		ev(t, "e4", EventClientVisitStart, "14:00"),
		ev(t, "e5", EventClientVisitEnd, "15:30"),
		ev(t, "e6", EventOvertimeStart, "17:00"),
		ev(t, "e7", EventClockOut, "19:20"),
	}

	got := Recompute(events, at(t, "23:00"))

	span := at(t, "19:20").Sub(at(t, "08:30"))
	if got.Total() != span {
		t.Errorf("total = %v, want %v (clock_out - clock_in)", got.Total(), span)
	}
}

// Recompute is a pure fold: same input, same output, and a duplicated event
// ID changes nothing.
func TestRecomputeIdempotent(t *testing.T) {
	events := []ActivityEvent{
		ev(t, "e1", EventClockIn, "09:00"),
		ev(t, "e2", EventBreakStart, "12:00"),
		ev(t, "e3", EventBreakEnd, "12:30"),
	}
	now := at(t, "15:00")

	first := Recompute(events, now)
	second := Recompute(events, now)
	if first != second {
		t.Errorf("two runs differ: %+v vs %+v", first, second)
	}

	withDuplicate := append([]ActivityEvent{}, events...)
	withDuplicate = append(withDuplicate, events[1])
	deduped := Recompute(withDuplicate, now)
	if deduped != first {
		t.Errorf("duplicate event ID changed totals: %+v vs %+v", deduped, first)
	}
}

// The fold must not assume the input arrives sorted.
func TestRecomputeSortsDefensively(t *testing.T) {
	events := []ActivityEvent{
		ev(t, "e3", EventBreakEnd, "12:30"),
		ev(t, "e1", EventClockIn, "09:00"),
		ev(t, "e4", EventClockOut, "18:00"),
		ev(t, "e2", EventBreakStart, "12:00"),
	}

	got := Recompute(events, at(t, "23:00"))

	if got.Work != 8*time.Hour+30*time.Minute || got.Break != 30*time.Minute {
		t.Errorf("unsorted input produced %+v", got)
	}
}

func TestRecomputeEmptyLog(t *testing.T) {
	if got := Recompute(nil, at(t, "12:00")); got != (Durations{}) {
		t.Errorf("empty log produced %+v, want zero", got)
	}
}
