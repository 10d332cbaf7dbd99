package attendance

import (
	"context"
	"time"
)

// AttendanceRepository defines data access methods for attendance records.
// Dates are business-day strings (YYYY-MM-DD) computed in the configured
// business timezone.
type AttendanceRepository interface {
	// Create creates a new attendance record. The storage layer guarantees
	// at most one non-completed record per (user, date).
	Create(ctx context.Context, record AttendanceRecord) (AttendanceRecord, error)

	// GetByID retrieves a record by ID
	GetByID(ctx context.Context, id string) (AttendanceRecord, error)

	// GetOpenAttendance retrieves the non-completed record for a user on a
	// date, pgx.ErrNoRows when there is none
	GetOpenAttendance(ctx context.Context, userID string, date string) (AttendanceRecord, error)

	// HasAttendanceOn reports whether any record (open or completed) exists
	// for the user on the date. Used to prevent double clock-in.
	HasAttendanceOn(ctx context.Context, userID string, date string) (bool, error)

	// UpdateAccumulated mirrors derived status and totals back onto the record
	UpdateAccumulated(ctx context.Context, id string, status Status, totals Durations) error

	// Complete closes the record; it is immutable afterwards
	Complete(ctx context.Context, id string, clockOut time.Time, proofURL *string, totals Durations) error

	// ListByUser retrieves a user's attendance history with pagination
	ListByUser(ctx context.Context, userID string, filter HistoryFilter) ([]AttendanceRecord, int64, error)

	// GetStaleOpenSessions retrieves non-completed records from business days
	// before the given date, for the auto close sweep
	GetStaleOpenSessions(ctx context.Context, beforeDate string) ([]AttendanceRecord, error)
}

// ActivityEventRepository is the append-only store behind the event log.
type ActivityEventRepository interface {
	// Append writes one new event
	Append(ctx context.Context, event ActivityEvent) (ActivityEvent, error)

	// Upsert inserts the event if its ID is not present yet and reports
	// whether a row was written. Existing rows are never modified.
	Upsert(ctx context.Context, event ActivityEvent) (bool, error)

	// ListByAttendance retrieves the full ordered log for one attendance day
	ListByAttendance(ctx context.Context, attendanceID string) ([]ActivityEvent, error)
}

// Transactor runs a function inside a storage transaction. Repository calls
// made with the ctx it passes join that transaction.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
