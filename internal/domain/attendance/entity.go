package attendance

import (
	"time"

	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub003/internal/pkg/geo"
)

// EventType is the closed set of lifecycle transitions an attendance day can
// record. Anything else is rejected before it reaches the log.
type EventType string

const (
	EventClockIn          EventType = "clock_in"
	EventClockOut         EventType = "clock_out"
	EventBreakStart       EventType = "break_start"
	EventBreakEnd         EventType = "break_end"
	EventOvertimeStart    EventType = "overtime_start"
	EventOvertimeEnd      EventType = "overtime_end"
	EventClientVisitStart EventType = "client_visit_start"
	EventClientVisitEnd   EventType = "client_visit_end"
)

func (t EventType) Valid() bool {
	switch t {
	case EventClockIn, EventClockOut,
		EventBreakStart, EventBreakEnd,
		EventOvertimeStart, EventOvertimeEnd,
		EventClientVisitStart, EventClientVisitEnd:
		return true
	}
	return false
}

// Status is the derived lifecycle state of an attendance day. It is never the
// source of truth: the event log is, and Status is recomputed from it.
type Status string

const (
	StatusWorking     Status = "working"
	StatusBreak       Status = "break"
	StatusOvertime    Status = "overtime"
	StatusClientVisit Status = "client_visit"
	StatusCompleted   Status = "completed"
)

// ActivityEvent is one immutable timestamped fact in an attendance day's log.
// Events are created on successful transitions only and never mutated or
// deleted afterwards.
type ActivityEvent struct {
	ID           string
	AttendanceID string
	UserID       string
	Type         EventType
	Timestamp    time.Time
	Location     *geo.Coordinates
	Notes        *string
	SelfieURL    *string
	CreatedAt    time.Time
}

// Durations holds the per-category time totals derived from an event log.
type Durations struct {
	Work        time.Duration
	Break       time.Duration
	Overtime    time.Duration
	ClientVisit time.Duration
}

func (d Durations) Total() time.Duration {
	return d.Work + d.Break + d.Overtime + d.ClientVisit
}

// AttendanceRecord is the per-day aggregate for one user. Status and
// Accumulated are caches recomputable from the event log at any time; the
// record becomes immutable once Status is completed.
type AttendanceRecord struct {
	ID               string
	UserID           string
	Date             string // business-day, YYYY-MM-DD
	ClockIn          time.Time
	ClockOut         *time.Time
	Status           Status
	Location         geo.Coordinates
	Accumulated      Durations
	ClockInProofURL  *string
	ClockOutProofURL *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (r AttendanceRecord) Completed() bool {
	return r.Status == StatusCompleted
}

// StatusAfter derives the lifecycle state from an event log. The log is
// normalized first, so events folded in out of arrival order land in their
// timestamp position.
func StatusAfter(events []ActivityEvent) Status {
	status := StatusWorking
	for _, ev := range normalizeLog(events) {
		switch ev.Type {
		case EventClockOut:
			return StatusCompleted
		case EventBreakStart:
			status = StatusBreak
		case EventOvertimeStart:
			status = StatusOvertime
		case EventClientVisitStart:
			status = StatusClientVisit
		case EventClockIn, EventBreakEnd, EventOvertimeEnd, EventClientVisitEnd:
			status = StatusWorking
		}
	}
	return status
}

// BreakUsed reports whether the day's single break has already been taken.
// Derived from the log, never stored independently.
func BreakUsed(events []ActivityEvent) bool {
	for _, ev := range events {
		if ev.Type == EventBreakStart {
			return true
		}
	}
	return false
}
