package attendance

import (
	"context"
)

// AttendanceService defines the lifecycle operations of an attendance day.
// Every transition validates its preconditions first and appends exactly one
// event on success; rejected attempts never touch the log.
type AttendanceService interface {
	// ClockIn opens the attendance day after geofence and proof checks
	ClockIn(ctx context.Context, req ClockInRequest) (AttendanceResponse, error)

	// ClockOut closes the attendance day; the record is immutable afterwards
	ClockOut(ctx context.Context, req ClockOutRequest) (AttendanceResponse, error)

	// StartBreak begins the single daily break
	StartBreak(ctx context.Context, req TransitionRequest) (AttendanceResponse, error)

	// EndBreak returns to working
	EndBreak(ctx context.Context, req TransitionRequest) (AttendanceResponse, error)

	// StartOvertime / EndOvertime bracket an overtime interval (repeatable)
	StartOvertime(ctx context.Context, req TransitionRequest) (AttendanceResponse, error)
	EndOvertime(ctx context.Context, req TransitionRequest) (AttendanceResponse, error)

	// StartClientVisit / EndClientVisit bracket a client visit (repeatable)
	StartClientVisit(ctx context.Context, req TransitionRequest) (AttendanceResponse, error)
	EndClientVisit(ctx context.Context, req TransitionRequest) (AttendanceResponse, error)

	// Status returns the live snapshot of today's session, with totals
	// recomputed from the event log
	Status(ctx context.Context) (StatusSnapshot, error)

	// History retrieves the authenticated user's past attendance records
	History(ctx context.Context, filter HistoryFilter) (ListAttendanceResponse, error)
}
