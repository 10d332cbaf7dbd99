package attendance

import (
	"fmt"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub003/internal/pkg/geo"
	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub003/internal/pkg/validator"
)

// ========================================
// ATTENDANCE DTOs
// ========================================

// ClockInRequest carries the device-reported position and the identity
// selfie. Latitude/Longitude may be omitted together, in which case the
// service acquires a position through its own location source.
type ClockInRequest struct {
	Latitude       *float64              `json:"latitude"`
	Longitude      *float64              `json:"longitude"`
	AccuracyMeters *float64              `json:"accuracy_meters"`
	Notes          *string               `json:"notes"`
	File           multipart.File        `json:"-"`
	FileHeader     *multipart.FileHeader `json:"-"`
}

func (r *ClockInRequest) Validate() error {
	var errs validator.ValidationErrors

	errs = append(errs, validateCoordinates(r.Latitude, r.Longitude)...)
	errs = append(errs, validateProofPhoto(r.FileHeader)...)

	if len(errs) > 0 {
		return errs
	}

	return nil
}

type ClockOutRequest struct {
	Latitude       *float64              `json:"latitude"`
	Longitude      *float64              `json:"longitude"`
	AccuracyMeters *float64              `json:"accuracy_meters"`
	Notes          *string               `json:"notes"`
	File           multipart.File        `json:"-"`
	FileHeader     *multipart.FileHeader `json:"-"`
}

func (r *ClockOutRequest) Validate() error {
	var errs validator.ValidationErrors

	errs = append(errs, validateCoordinates(r.Latitude, r.Longitude)...)
	errs = append(errs, validateProofPhoto(r.FileHeader)...)

	if len(errs) > 0 {
		return errs
	}

	return nil
}

// TransitionRequest covers break/overtime/client-visit start and end. The
// position is optional and recorded on the event when present; these
// transitions are not geofence-gated.
type TransitionRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Notes     *string  `json:"notes"`
}

func (r *TransitionRequest) Validate() error {
	errs := validateCoordinates(r.Latitude, r.Longitude)
	if len(errs) > 0 {
		return validator.ValidationErrors(errs)
	}
	return nil
}

func (r *TransitionRequest) Coordinates() *geo.Coordinates {
	if r.Latitude == nil || r.Longitude == nil {
		return nil
	}
	return &geo.Coordinates{Latitude: *r.Latitude, Longitude: *r.Longitude}
}

func validateCoordinates(lat, lon *float64) validator.ValidationErrors {
	var errs validator.ValidationErrors

	if (lat == nil) != (lon == nil) {
		errs = append(errs, validator.ValidationError{
			Field:   "latitude",
			Message: "latitude and longitude must be provided together",
		})
		return errs
	}
	if lat == nil {
		return nil
	}

	if *lat < -90 || *lat > 90 {
		errs = append(errs, validator.ValidationError{
			Field:   "latitude",
			Message: "latitude must be between -90 and 90",
		})
	}
	if *lon < -180 || *lon > 180 {
		errs = append(errs, validator.ValidationError{
			Field:   "longitude",
			Message: "longitude must be between -180 and 180",
		})
	}
	if *lat == 0 && *lon == 0 {
		errs = append(errs, validator.ValidationError{
			Field:   "latitude",
			Message: "coordinates (0,0) are not a valid position",
		})
	}

	return errs
}

func validateProofPhoto(header *multipart.FileHeader) validator.ValidationErrors {
	var errs validator.ValidationErrors

	if header == nil {
		errs = append(errs, validator.ValidationError{
			Field:   "photo",
			Message: "attendance proof photo is required",
		})
		return errs
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if ext != ".jpg" && ext != ".jpeg" && ext != ".png" {
		errs = append(errs, validator.ValidationError{
			Field:   "photo",
			Message: "invalid file type: only jpg, jpeg, png allowed",
		})
	} else if header.Size > 10<<20 { // 10MB
		errs = append(errs, validator.ValidationError{
			Field:   "photo",
			Message: "attendance proof photo size must not exceed 10MB",
		})
	}

	return errs
}

// HistoryFilter paginates a user's attendance history.
type HistoryFilter struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Page      int    `json:"page"`
	Limit     int    `json:"limit"`
}

func (f *HistoryFilter) Validate() error {
	var errs validator.ValidationErrors

	if f.StartDate != "" {
		if _, ok := validator.IsValidDate(f.StartDate); !ok {
			errs = append(errs, validator.ValidationError{
				Field:   "start_date",
				Message: "start_date must be in YYYY-MM-DD format",
			})
		}
	}
	if f.EndDate != "" {
		if _, ok := validator.IsValidDate(f.EndDate); !ok {
			errs = append(errs, validator.ValidationError{
				Field:   "end_date",
				Message: "end_date must be in YYYY-MM-DD format",
			})
		}
	}

	if len(errs) > 0 {
		return errs
	}

	return nil
}

// Normalize applies pagination defaults.
func (f *HistoryFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 || f.Limit > 100 {
		f.Limit = 20
	}
}

// ========================================
// RESPONSES
// ========================================

// DurationsResponse reports one category total both as raw seconds and as a
// formatted HH:MM:SS string for the mobile home screen.
type DurationsResponse struct {
	Work        DurationValue `json:"work"`
	Break       DurationValue `json:"break"`
	Overtime    DurationValue `json:"overtime"`
	ClientVisit DurationValue `json:"client_visit"`
}

type DurationValue struct {
	Seconds   int64  `json:"seconds"`
	Formatted string `json:"formatted"`
}

func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}

func NewDurationsResponse(d Durations) DurationsResponse {
	value := func(v time.Duration) DurationValue {
		return DurationValue{Seconds: int64(v / time.Second), Formatted: FormatDuration(v)}
	}
	return DurationsResponse{
		Work:        value(d.Work),
		Break:       value(d.Break),
		Overtime:    value(d.Overtime),
		ClientVisit: value(d.ClientVisit),
	}
}

type EventResponse struct {
	ID        string           `json:"id"`
	Type      EventType        `json:"type"`
	Timestamp time.Time        `json:"timestamp"`
	Location  *geo.Coordinates `json:"location,omitempty"`
	Notes     *string          `json:"notes,omitempty"`
	SelfieURL *string          `json:"selfie_url,omitempty"`
}

func NewEventResponse(ev ActivityEvent) EventResponse {
	return EventResponse{
		ID:        ev.ID,
		Type:      ev.Type,
		Timestamp: ev.Timestamp,
		Location:  ev.Location,
		Notes:     ev.Notes,
		SelfieURL: ev.SelfieURL,
	}
}

type AttendanceResponse struct {
	ID               string            `json:"id"`
	UserID           string            `json:"user_id"`
	Date             string            `json:"date"`
	ClockIn          time.Time         `json:"clock_in"`
	ClockOut         *time.Time        `json:"clock_out,omitempty"`
	Status           Status            `json:"status"`
	Location         geo.Coordinates   `json:"location"`
	Accumulated      DurationsResponse `json:"accumulated"`
	ClockInProofURL  *string           `json:"clock_in_proof_url,omitempty"`
	ClockOutProofURL *string           `json:"clock_out_proof_url,omitempty"`
	Events           []EventResponse   `json:"events,omitempty"`
}

func NewAttendanceResponse(rec AttendanceRecord, events []ActivityEvent) AttendanceResponse {
	resp := AttendanceResponse{
		ID:               rec.ID,
		UserID:           rec.UserID,
		Date:             rec.Date,
		ClockIn:          rec.ClockIn,
		ClockOut:         rec.ClockOut,
		Status:           rec.Status,
		Location:         rec.Location,
		Accumulated:      NewDurationsResponse(rec.Accumulated),
		ClockInProofURL:  rec.ClockInProofURL,
		ClockOutProofURL: rec.ClockOutProofURL,
	}
	for _, ev := range events {
		resp.Events = append(resp.Events, NewEventResponse(ev))
	}
	return resp
}

type ListAttendanceResponse struct {
	Records    []AttendanceResponse `json:"records"`
	Page       int                  `json:"page"`
	Limit      int                  `json:"limit"`
	TotalItems int64                `json:"total_items"`
}

// StatusSnapshot is the live view of today's session: the derived state plus
// totals recomputed from the event log as of AsOf. It is what the ticking
// tracker pushes to subscribers once per second.
type StatusSnapshot struct {
	AttendanceID string            `json:"attendance_id"`
	UserID       string            `json:"user_id"`
	Date         string            `json:"date"`
	Status       Status            `json:"status"`
	ClockIn      time.Time         `json:"clock_in"`
	ClockOut     *time.Time        `json:"clock_out,omitempty"`
	BreakUsed    bool              `json:"break_used"`
	Accumulated  DurationsResponse `json:"accumulated"`
	AsOf         time.Time         `json:"as_of"`
}
