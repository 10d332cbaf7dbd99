package postgresql

import (
	"context"
	"fmt"
	"time"

	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub003/internal/domain/attendance"
	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub003/internal/pkg/database"
)

type attendanceRepository struct {
	db *database.DB
}

// NewAttendanceRepository creates a new attendance repository. Accumulated
// durations are stored as whole seconds; the partial unique index on
// (user_id, date) for non-completed rows is what makes double clock-in a
// constraint violation rather than a race.
func NewAttendanceRepository(db *database.DB) attendance.AttendanceRepository {
	return &attendanceRepository{db: db}
}

const attendanceColumns = `
	id, user_id, date, clock_in, clock_out, status,
	latitude, longitude,
	work_seconds, break_seconds, overtime_seconds, client_visit_seconds,
	clock_in_proof_url, clock_out_proof_url,
	created_at, updated_at
`

func scanAttendance(row interface{ Scan(dest ...any) error }) (attendance.AttendanceRecord, error) {
	var rec attendance.AttendanceRecord
	var workSec, breakSec, overtimeSec, clientVisitSec int64

	err := row.Scan(
		&rec.ID, &rec.UserID, &rec.Date, &rec.ClockIn, &rec.ClockOut, &rec.Status,
		&rec.Location.Latitude, &rec.Location.Longitude,
		&workSec, &breakSec, &overtimeSec, &clientVisitSec,
		&rec.ClockInProofURL, &rec.ClockOutProofURL,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return attendance.AttendanceRecord{}, err
	}

	rec.Accumulated = attendance.Durations{
		Work:        time.Duration(workSec) * time.Second,
		Break:       time.Duration(breakSec) * time.Second,
		Overtime:    time.Duration(overtimeSec) * time.Second,
		ClientVisit: time.Duration(clientVisitSec) * time.Second,
	}
	return rec, nil
}

// Create implements attendance.AttendanceRepository.
func (a *attendanceRepository) Create(ctx context.Context, record attendance.AttendanceRecord) (attendance.AttendanceRecord, error) {
	q := GetQuerier(ctx, a.db)

	query := `
		INSERT INTO attendances (
			id, user_id, date, clock_in, status,
			latitude, longitude,
			work_seconds, break_seconds, overtime_seconds, client_visit_seconds,
			clock_in_proof_url
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
		) RETURNING created_at, updated_at
	`

	err := q.QueryRow(ctx, query,
		record.ID,
		record.UserID,
		record.Date,
		record.ClockIn,
		record.Status,
		record.Location.Latitude,
		record.Location.Longitude,
		int64(record.Accumulated.Work/time.Second),
		int64(record.Accumulated.Break/time.Second),
		int64(record.Accumulated.Overtime/time.Second),
		int64(record.Accumulated.ClientVisit/time.Second),
		record.ClockInProofURL,
	).Scan(&record.CreatedAt, &record.UpdatedAt)

	if err != nil {
		return attendance.AttendanceRecord{}, fmt.Errorf("failed to create attendance: %w", err)
	}

	return record, nil
}

// GetByID implements attendance.AttendanceRepository.
func (a *attendanceRepository) GetByID(ctx context.Context, id string) (attendance.AttendanceRecord, error) {
	q := GetQuerier(ctx, a.db)

	query := `SELECT ` + attendanceColumns + ` FROM attendances WHERE id = $1`

	rec, err := scanAttendance(q.QueryRow(ctx, query, id))
	if err != nil {
		return attendance.AttendanceRecord{}, fmt.Errorf("failed to get attendance by id: %w", err)
	}
	return rec, nil
}

// GetOpenAttendance implements attendance.AttendanceRepository.
func (a *attendanceRepository) GetOpenAttendance(ctx context.Context, userID string, date string) (attendance.AttendanceRecord, error) {
	q := GetQuerier(ctx, a.db)

	query := `
		SELECT ` + attendanceColumns + `
		FROM attendances
		WHERE user_id = $1
		  AND date = $2
		  AND status != 'completed'
		LIMIT 1
	`

	rec, err := scanAttendance(q.QueryRow(ctx, query, userID, date))
	if err != nil {
		// pgx.ErrNoRows passes through so the service can map it
		return attendance.AttendanceRecord{}, err
	}
	return rec, nil
}

// HasAttendanceOn implements attendance.AttendanceRepository.
func (a *attendanceRepository) HasAttendanceOn(ctx context.Context, userID string, date string) (bool, error) {
	q := GetQuerier(ctx, a.db)

	query := `SELECT EXISTS (SELECT 1 FROM attendances WHERE user_id = $1 AND date = $2)`

	var exists bool
	if err := q.QueryRow(ctx, query, userID, date).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check attendance existence: %w", err)
	}
	return exists, nil
}

// UpdateAccumulated implements attendance.AttendanceRepository.
func (a *attendanceRepository) UpdateAccumulated(ctx context.Context, id string, status attendance.Status, totals attendance.Durations) error {
	q := GetQuerier(ctx, a.db)

	query := `
		UPDATE attendances
		SET status = $2,
		    work_seconds = $3,
		    break_seconds = $4,
		    overtime_seconds = $5,
		    client_visit_seconds = $6,
		    updated_at = NOW()
		WHERE id = $1
		  AND status != 'completed'
	`

	_, err := q.Exec(ctx, query, id, status,
		int64(totals.Work/time.Second),
		int64(totals.Break/time.Second),
		int64(totals.Overtime/time.Second),
		int64(totals.ClientVisit/time.Second),
	)
	if err != nil {
		return fmt.Errorf("failed to update accumulated durations: %w", err)
	}
	return nil
}

// Complete implements attendance.AttendanceRepository.
func (a *attendanceRepository) Complete(ctx context.Context, id string, clockOut time.Time, proofURL *string, totals attendance.Durations) error {
	q := GetQuerier(ctx, a.db)

	query := `
		UPDATE attendances
		SET status = 'completed',
		    clock_out = $2,
		    clock_out_proof_url = $3,
		    work_seconds = $4,
		    break_seconds = $5,
		    overtime_seconds = $6,
		    client_visit_seconds = $7,
		    updated_at = NOW()
		WHERE id = $1
		  AND status != 'completed'
	`

	tag, err := q.Exec(ctx, query, id, clockOut, proofURL,
		int64(totals.Work/time.Second),
		int64(totals.Break/time.Second),
		int64(totals.Overtime/time.Second),
		int64(totals.ClientVisit/time.Second),
	)
	if err != nil {
		return fmt.Errorf("failed to complete attendance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("attendance %s is already completed or missing", id)
	}
	return nil
}

// ListByUser implements attendance.AttendanceRepository.
func (a *attendanceRepository) ListByUser(ctx context.Context, userID string, filter attendance.HistoryFilter) ([]attendance.AttendanceRecord, int64, error) {
	q := GetQuerier(ctx, a.db)

	where := `WHERE user_id = $1`
	args := []interface{}{userID}

	if filter.StartDate != "" {
		args = append(args, filter.StartDate)
		where += fmt.Sprintf(" AND date >= $%d", len(args))
	}
	if filter.EndDate != "" {
		args = append(args, filter.EndDate)
		where += fmt.Sprintf(" AND date <= $%d", len(args))
	}

	var total int64
	countQuery := `SELECT COUNT(*) FROM attendances ` + where
	if err := q.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count attendances: %w", err)
	}

	args = append(args, filter.Limit, (filter.Page-1)*filter.Limit)
	query := fmt.Sprintf(`
		SELECT %s
		FROM attendances
		%s
		ORDER BY date DESC, clock_in DESC
		LIMIT $%d OFFSET $%d
	`, attendanceColumns, where, len(args)-1, len(args))

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list attendances: %w", err)
	}
	defer rows.Close()

	var records []attendance.AttendanceRecord
	for rows.Next() {
		rec, err := scanAttendance(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan attendance: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate attendances: %w", err)
	}

	return records, total, nil
}

// GetStaleOpenSessions implements attendance.AttendanceRepository.
func (a *attendanceRepository) GetStaleOpenSessions(ctx context.Context, beforeDate string) ([]attendance.AttendanceRecord, error) {
	q := GetQuerier(ctx, a.db)

	query := `
		SELECT ` + attendanceColumns + `
		FROM attendances
		WHERE status != 'completed'
		  AND date < $1
		ORDER BY date ASC
	`

	rows, err := q.Query(ctx, query, beforeDate)
	if err != nil {
		return nil, fmt.Errorf("failed to get stale open sessions: %w", err)
	}
	defer rows.Close()

	var records []attendance.AttendanceRecord
	for rows.Next() {
		rec, err := scanAttendance(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stale session: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate stale sessions: %w", err)
	}

	return records, nil
}
