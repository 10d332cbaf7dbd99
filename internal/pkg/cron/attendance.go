package cron

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub003/internal/domain/attendance"
	"github.com/google/uuid"
)

// RemoteSink receives events that were committed outside a live request,
// so any running tracker can fold them in.
type RemoteSink interface {
	HandleRemote(ev attendance.ActivityEvent) error
}

// AttendanceJobs closes sessions their owners forgot to clock out of. A
// session left open past its business day gets a synthetic clock_out stamped
// at the end of that day, and the log is folded one final time.
type AttendanceJobs struct {
	tx      attendance.Transactor
	records attendance.AttendanceRepository
	events  attendance.ActivityEventRepository
	sink    RemoteSink
	tz      *time.Location
}

func NewAttendanceJobs(
	tx attendance.Transactor,
	records attendance.AttendanceRepository,
	events attendance.ActivityEventRepository,
	sink RemoteSink,
	tz *time.Location,
) *AttendanceJobs {
	if tz == nil {
		tz = time.UTC
	}
	return &AttendanceJobs{
		tx:      tx,
		records: records,
		events:  events,
		sink:    sink,
		tz:      tz,
	}
}

// Register adds the auto-close sweep to the scheduler.
func (j *AttendanceJobs) Register(scheduler *Scheduler) {
	scheduler.AddJob("attendance-auto-close", time.Hour, j.AutoCloseStaleSessions)
}

// AutoCloseStaleSessions finds non-completed sessions from past business days
// and closes each one at the end of its own day.
func (j *AttendanceJobs) AutoCloseStaleSessions(ctx context.Context) error {
	today := time.Now().In(j.tz).Format("2006-01-02")

	stale, err := j.records.GetStaleOpenSessions(ctx, today)
	if err != nil {
		return fmt.Errorf("failed to get stale open sessions: %w", err)
	}
	if len(stale) == 0 {
		return nil
	}

	slog.Info("Auto-closing stale attendance sessions", "count", len(stale))

	var failed int
	for _, rec := range stale {
		if err := j.closeSession(ctx, rec); err != nil {
			failed++
			slog.Error("Failed to auto-close session", "attendance_id", rec.ID, "user_id", rec.UserID, "error", err)
		}
	}

	if failed > 0 {
		return fmt.Errorf("failed to auto-close %d of %d stale sessions", failed, len(stale))
	}
	return nil
}

func (j *AttendanceJobs) closeSession(ctx context.Context, rec attendance.AttendanceRecord) error {
	log, err := j.events.ListByAttendance(ctx, rec.ID)
	if err != nil {
		return fmt.Errorf("failed to load activity log: %w", err)
	}
	if attendance.StatusAfter(log) == attendance.StatusCompleted {
		// The log already ends in clock_out; only the record is behind.
		cutoff := rec.ClockIn
		for _, ev := range log {
			if ev.Type == attendance.EventClockOut {
				cutoff = ev.Timestamp
			}
		}
		totals := attendance.Recompute(log, cutoff)
		return j.records.Complete(ctx, rec.ID, cutoff, nil, totals)
	}

	dayStart, err := time.ParseInLocation("2006-01-02", rec.Date, j.tz)
	if err != nil {
		return fmt.Errorf("failed to parse session date %q: %w", rec.Date, err)
	}
	cutoff := dayStart.AddDate(0, 0, 1).Add(-time.Second).UTC()

	note := "auto-closed: no clock-out recorded"
	ev := attendance.ActivityEvent{
		ID:           uuid.NewString(),
		AttendanceID: rec.ID,
		UserID:       rec.UserID,
		Type:         attendance.EventClockOut,
		Timestamp:    cutoff,
		Notes:        &note,
	}

	finalLog := append(append([]attendance.ActivityEvent{}, log...), ev)
	totals := attendance.Recompute(finalLog, cutoff)

	err = j.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		if _, err := j.events.Append(txCtx, ev); err != nil {
			return err
		}
		return j.records.Complete(txCtx, rec.ID, cutoff, nil, totals)
	})
	if err != nil {
		return fmt.Errorf("failed to persist auto-close: %w", err)
	}

	if j.sink != nil {
		if err := j.sink.HandleRemote(ev); err != nil && !errors.Is(err, attendance.ErrStaleReconciliation) {
			slog.Warn("Auto-close event not applied to live session", "attendance_id", rec.ID, "error", err)
		}
	}

	return nil
}
