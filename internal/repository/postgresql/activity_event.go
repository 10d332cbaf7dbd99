package postgresql

import (
	"context"
	"fmt"

	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub003/internal/domain/attendance"
	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub003/internal/pkg/database"
	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub003/internal/pkg/geo"
)

type activityEventRepository struct {
	db *database.DB
}

// NewActivityEventRepository creates the append-only activity log store.
// Rows are inserted once and never updated; the log is the source of truth
// the accumulated columns on attendances are derived from.
func NewActivityEventRepository(db *database.DB) attendance.ActivityEventRepository {
	return &activityEventRepository{db: db}
}

// Append implements attendance.ActivityEventRepository.
func (r *activityEventRepository) Append(ctx context.Context, event attendance.ActivityEvent) (attendance.ActivityEvent, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO activity_events (
			id, attendance_id, user_id, type, timestamp,
			latitude, longitude, notes, selfie_url
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		) RETURNING created_at
	`

	var lat, lng *float64
	if event.Location != nil {
		lat, lng = &event.Location.Latitude, &event.Location.Longitude
	}

	err := q.QueryRow(ctx, query,
		event.ID,
		event.AttendanceID,
		event.UserID,
		event.Type,
		event.Timestamp,
		lat,
		lng,
		event.Notes,
		event.SelfieURL,
	).Scan(&event.CreatedAt)

	if err != nil {
		return attendance.ActivityEvent{}, fmt.Errorf("failed to append activity event: %w", err)
	}

	return event, nil
}

// Upsert implements attendance.ActivityEventRepository. ON CONFLICT DO
// NOTHING keeps replayed events idempotent: an ID already in the log is
// silently skipped and reported as not inserted.
func (r *activityEventRepository) Upsert(ctx context.Context, event attendance.ActivityEvent) (bool, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO activity_events (
			id, attendance_id, user_id, type, timestamp,
			latitude, longitude, notes, selfie_url
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		) ON CONFLICT (id) DO NOTHING
	`

	var lat, lng *float64
	if event.Location != nil {
		lat, lng = &event.Location.Latitude, &event.Location.Longitude
	}

	tag, err := q.Exec(ctx, query,
		event.ID,
		event.AttendanceID,
		event.UserID,
		event.Type,
		event.Timestamp,
		lat,
		lng,
		event.Notes,
		event.SelfieURL,
	)
	if err != nil {
		return false, fmt.Errorf("failed to upsert activity event: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// ListByAttendance implements attendance.ActivityEventRepository.
func (r *activityEventRepository) ListByAttendance(ctx context.Context, attendanceID string) ([]attendance.ActivityEvent, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT id, attendance_id, user_id, type, timestamp,
		       latitude, longitude, notes, selfie_url, created_at
		FROM activity_events
		WHERE attendance_id = $1
		ORDER BY timestamp ASC, created_at ASC
	`

	rows, err := q.Query(ctx, query, attendanceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list activity events: %w", err)
	}
	defer rows.Close()

	var events []attendance.ActivityEvent
	for rows.Next() {
		var ev attendance.ActivityEvent
		var lat, lng *float64

		err := rows.Scan(
			&ev.ID, &ev.AttendanceID, &ev.UserID, &ev.Type, &ev.Timestamp,
			&lat, &lng, &ev.Notes, &ev.SelfieURL, &ev.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan activity event: %w", err)
		}
		if lat != nil && lng != nil {
			ev.Location = &geo.Coordinates{Latitude: *lat, Longitude: *lng}
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate activity events: %w", err)
	}

	return events, nil
}
