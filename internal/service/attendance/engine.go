package attendance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub003/internal/domain/attendance"
	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub003/internal/pkg/geo"
	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub003/internal/pkg/location"
	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub003/internal/pkg/sse"
	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub003/internal/service/file"
	"github.com/go-chi/jwtauth/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const dateLayout = "2006-01-02"

// Config carries the externally-supplied engine constants: the office
// geofence, the business timezone used to cut attendance days, and the
// persistence timeout bounding every transition's storage calls.
type Config struct {
	Office         geo.Coordinates
	RadiusMeters   float64
	Timezone       *time.Location
	PersistTimeout time.Duration
	Clock          func() time.Time
}

// Engine enforces the attendance day lifecycle. Every transition validates
// its preconditions against the event log, appends exactly one event on
// success inside a transaction, and publishes the committed event to the
// realtime hub. Rejected attempts never write to the log.
type Engine struct {
	tx       attendance.Transactor
	records  attendance.AttendanceRepository
	events   attendance.ActivityEventRepository
	files    file.FileService
	hub      *sse.Hub
	trackers *TrackerRegistry
	source   location.Source

	office         geo.Coordinates
	radiusMeters   float64
	tz             *time.Location
	persistTimeout time.Duration
	clock          func() time.Time

	mu       sync.Mutex
	inFlight map[string]struct{}
}

func NewEngine(
	tx attendance.Transactor,
	records attendance.AttendanceRepository,
	events attendance.ActivityEventRepository,
	files file.FileService,
	hub *sse.Hub,
	trackers *TrackerRegistry,
	source location.Source,
	cfg Config,
) *Engine {
	if cfg.Timezone == nil {
		cfg.Timezone = time.UTC
	}
	if cfg.PersistTimeout <= 0 {
		cfg.PersistTimeout = 5 * time.Second
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	return &Engine{
		tx:             tx,
		records:        records,
		events:         events,
		files:          files,
		hub:            hub,
		trackers:       trackers,
		source:         source,
		office:         cfg.Office,
		radiusMeters:   cfg.RadiusMeters,
		tz:             cfg.Timezone,
		persistTimeout: cfg.PersistTimeout,
		clock:          cfg.Clock,
		inFlight:       make(map[string]struct{}),
	}
}

func userIDFromContext(ctx context.Context) (string, error) {
	_, claims, err := jwtauth.FromContext(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to extract claims from context: %w", err)
	}

	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user_id claim is missing or invalid")
	}
	return userID, nil
}

// acquireGate serializes transitions per user: a second attempt while one is
// still in flight is rejected, not queued.
func (e *Engine) acquireGate(userID string) (func(), error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, busy := e.inFlight[userID]; busy {
		return nil, attendance.ErrTransitionInFlight
	}
	e.inFlight[userID] = struct{}{}

	return func() {
		e.mu.Lock()
		delete(e.inFlight, userID)
		e.mu.Unlock()
	}, nil
}

// resolveFix turns device-reported coordinates into a validated fix, falling
// back to the engine's own location source when the request carries none.
func (e *Engine) resolveFix(ctx context.Context, lat, lon, accuracy *float64) (location.Fix, error) {
	if lat != nil && lon != nil {
		fix := location.Fix{
			Coordinates: geo.Coordinates{Latitude: *lat, Longitude: *lon},
			Timestamp:   e.clock().UTC(),
		}
		if accuracy != nil {
			fix.AccuracyMeters = *accuracy
		}
		if err := location.ValidateFix(fix); err != nil {
			return location.Fix{}, fmt.Errorf("%w: %v", attendance.ErrLocationUnavailable, err)
		}
		return fix, nil
	}

	if e.source == nil {
		return location.Fix{}, attendance.ErrLocationUnavailable
	}

	fix, err := e.source.Acquire(ctx)
	if err != nil {
		if errors.Is(err, location.ErrPermissionDenied) {
			return location.Fix{}, fmt.Errorf("%w: %v", attendance.ErrPermissionDenied, err)
		}
		return location.Fix{}, fmt.Errorf("%w: %v", attendance.ErrLocationUnavailable, err)
	}
	return fix, nil
}

func (e *Engine) checkGeofence(fix location.Fix) error {
	result := geo.CheckGeofence(fix.Coordinates, e.office, e.radiusMeters)
	if !result.WithinRange {
		return fmt.Errorf("%w: %.0fm from the office with a %.0fm radius",
			attendance.ErrOutOfRange, result.DistanceMeters, e.radiusMeters)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// ClockIn implements attendance.AttendanceService.
func (e *Engine) ClockIn(ctx context.Context, req attendance.ClockInRequest) (attendance.AttendanceResponse, error) {
	if err := req.Validate(); err != nil {
		return attendance.AttendanceResponse{}, err
	}

	userID, err := userIDFromContext(ctx)
	if err != nil {
		return attendance.AttendanceResponse{}, err
	}

	release, err := e.acquireGate(userID)
	if err != nil {
		return attendance.AttendanceResponse{}, err
	}
	defer release()

	now := e.clock().UTC()
	date := now.In(e.tz).Format(dateLayout)

	taken, err := e.records.HasAttendanceOn(ctx, userID, date)
	if err != nil {
		return attendance.AttendanceResponse{}, fmt.Errorf("failed to check today's attendance: %w", err)
	}
	if taken {
		return attendance.AttendanceResponse{}, attendance.ErrAlreadyClockedIn
	}

	fix, err := e.resolveFix(ctx, req.Latitude, req.Longitude, req.AccuracyMeters)
	if err != nil {
		return attendance.AttendanceResponse{}, err
	}
	if err := e.checkGeofence(fix); err != nil {
		return attendance.AttendanceResponse{}, err
	}

	// The identity selfie must be durable before any event is written.
	proofURL, err := e.files.UploadAttendanceProof(ctx, userID, now, req.File, req.FileHeader.Filename, "CLOCK_IN")
	if err != nil {
		return attendance.AttendanceResponse{}, fmt.Errorf("%w: %v", attendance.ErrProofUploadFailed, err)
	}

	record := attendance.AttendanceRecord{
		ID:              uuid.NewString(),
		UserID:          userID,
		Date:            date,
		ClockIn:         now,
		Status:          attendance.StatusWorking,
		Location:        fix.Coordinates,
		ClockInProofURL: &proofURL,
	}
	ev := attendance.ActivityEvent{
		ID:        uuid.NewString(),
		UserID:    userID,
		Type:      attendance.EventClockIn,
		Timestamp: now,
		Location:  &fix.Coordinates,
		Notes:     req.Notes,
		SelfieURL: &proofURL,
	}

	persistCtx, cancel := context.WithTimeout(ctx, e.persistTimeout)
	defer cancel()

	err = e.tx.WithinTransaction(persistCtx, func(txCtx context.Context) error {
		created, err := e.records.Create(txCtx, record)
		if err != nil {
			return err
		}
		record = created

		ev.AttendanceID = created.ID
		appended, err := e.events.Append(txCtx, ev)
		if err != nil {
			return err
		}
		ev = appended
		return nil
	})
	if err != nil {
		// The partial unique index catches a concurrent clock-in racing past
		// the precondition check.
		if isUniqueViolation(err) {
			return attendance.AttendanceResponse{}, attendance.ErrAlreadyClockedIn
		}
		return attendance.AttendanceResponse{}, fmt.Errorf("%w: %v", attendance.ErrPersistenceFailure, err)
	}

	sess := e.trackers.Start(record, []attendance.ActivityEvent{ev})
	e.publish(ev)

	return attendance.NewAttendanceResponse(record, sess.Tracker.Events()), nil
}

// StartBreak implements attendance.AttendanceService.
func (e *Engine) StartBreak(ctx context.Context, req attendance.TransitionRequest) (attendance.AttendanceResponse, error) {
	return e.transition(ctx, attendance.EventBreakStart, req)
}

// EndBreak implements attendance.AttendanceService.
func (e *Engine) EndBreak(ctx context.Context, req attendance.TransitionRequest) (attendance.AttendanceResponse, error) {
	return e.transition(ctx, attendance.EventBreakEnd, req)
}

// StartOvertime implements attendance.AttendanceService.
func (e *Engine) StartOvertime(ctx context.Context, req attendance.TransitionRequest) (attendance.AttendanceResponse, error) {
	return e.transition(ctx, attendance.EventOvertimeStart, req)
}

// EndOvertime implements attendance.AttendanceService.
func (e *Engine) EndOvertime(ctx context.Context, req attendance.TransitionRequest) (attendance.AttendanceResponse, error) {
	return e.transition(ctx, attendance.EventOvertimeEnd, req)
}

// StartClientVisit implements attendance.AttendanceService.
func (e *Engine) StartClientVisit(ctx context.Context, req attendance.TransitionRequest) (attendance.AttendanceResponse, error) {
	return e.transition(ctx, attendance.EventClientVisitStart, req)
}

// EndClientVisit implements attendance.AttendanceService.
func (e *Engine) EndClientVisit(ctx context.Context, req attendance.TransitionRequest) (attendance.AttendanceResponse, error) {
	return e.transition(ctx, attendance.EventClientVisitEnd, req)
}

// checkPrecondition rejects a transition that is illegal in the current
// derived state. Violations surface as named failures and leave no trace in
// the log.
func checkPrecondition(typ attendance.EventType, status attendance.Status, log []attendance.ActivityEvent) error {
	if status == attendance.StatusCompleted {
		return attendance.ErrNoActiveSession
	}

	switch typ {
	case attendance.EventBreakStart:
		if status != attendance.StatusWorking {
			return attendance.ErrNoActiveSession
		}
		if attendance.BreakUsed(log) {
			return attendance.ErrBreakAlreadyUsed
		}
	case attendance.EventBreakEnd:
		if status != attendance.StatusBreak {
			return attendance.ErrNoActiveSession
		}
	case attendance.EventOvertimeStart, attendance.EventClientVisitStart:
		if status != attendance.StatusWorking {
			return attendance.ErrNoActiveSession
		}
	case attendance.EventOvertimeEnd:
		if status != attendance.StatusOvertime {
			return attendance.ErrNoActiveSession
		}
	case attendance.EventClientVisitEnd:
		if status != attendance.StatusClientVisit {
			return attendance.ErrNoActiveSession
		}
	}
	return nil
}

func (e *Engine) transition(ctx context.Context, typ attendance.EventType, req attendance.TransitionRequest) (attendance.AttendanceResponse, error) {
	if err := req.Validate(); err != nil {
		return attendance.AttendanceResponse{}, err
	}

	userID, err := userIDFromContext(ctx)
	if err != nil {
		return attendance.AttendanceResponse{}, err
	}

	release, err := e.acquireGate(userID)
	if err != nil {
		return attendance.AttendanceResponse{}, err
	}
	defer release()

	now := e.clock().UTC()
	date := now.In(e.tz).Format(dateLayout)

	record, err := e.records.GetOpenAttendance(ctx, userID, date)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return attendance.AttendanceResponse{}, attendance.ErrNoActiveSession
		}
		return attendance.AttendanceResponse{}, fmt.Errorf("failed to get open attendance: %w", err)
	}

	log, err := e.events.ListByAttendance(ctx, record.ID)
	if err != nil {
		return attendance.AttendanceResponse{}, fmt.Errorf("failed to load activity log: %w", err)
	}

	if err := checkPrecondition(typ, attendance.StatusAfter(log), log); err != nil {
		return attendance.AttendanceResponse{}, err
	}

	ev := attendance.ActivityEvent{
		ID:           uuid.NewString(),
		AttendanceID: record.ID,
		UserID:       userID,
		Type:         typ,
		Timestamp:    now,
		Location:     req.Coordinates(),
		Notes:        req.Notes,
	}

	newLog := append(append([]attendance.ActivityEvent{}, log...), ev)
	totals := attendance.Recompute(newLog, now)
	newStatus := attendance.StatusAfter(newLog)

	// Optimistic local append: a live session shows the event immediately and
	// rolls it back if persistence rejects it.
	sess := e.trackers.Get(userID)
	if sess != nil {
		sess.Reconciler.StageLocal(ev)
	}

	persistCtx, cancel := context.WithTimeout(ctx, e.persistTimeout)
	defer cancel()

	err = e.tx.WithinTransaction(persistCtx, func(txCtx context.Context) error {
		if _, err := e.events.Append(txCtx, ev); err != nil {
			return err
		}
		return e.records.UpdateAccumulated(txCtx, record.ID, newStatus, totals)
	})
	if err != nil {
		if sess != nil {
			sess.Reconciler.Reject(ev.ID, log)
		}
		return attendance.AttendanceResponse{}, fmt.Errorf("%w: %v", attendance.ErrPersistenceFailure, err)
	}

	if sess != nil {
		sess.Reconciler.Confirm(ev.ID)
	}

	record.Status = newStatus
	record.Accumulated = totals
	if sess != nil {
		sess.Tracker.SetRecord(record)
	}
	e.publish(ev)

	return attendance.NewAttendanceResponse(record, newLog), nil
}

// ClockOut implements attendance.AttendanceService.
func (e *Engine) ClockOut(ctx context.Context, req attendance.ClockOutRequest) (attendance.AttendanceResponse, error) {
	if err := req.Validate(); err != nil {
		return attendance.AttendanceResponse{}, err
	}

	userID, err := userIDFromContext(ctx)
	if err != nil {
		return attendance.AttendanceResponse{}, err
	}

	release, err := e.acquireGate(userID)
	if err != nil {
		return attendance.AttendanceResponse{}, err
	}
	defer release()

	now := e.clock().UTC()
	date := now.In(e.tz).Format(dateLayout)

	record, err := e.records.GetOpenAttendance(ctx, userID, date)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return attendance.AttendanceResponse{}, attendance.ErrNoActiveSession
		}
		return attendance.AttendanceResponse{}, fmt.Errorf("failed to get open attendance: %w", err)
	}

	log, err := e.events.ListByAttendance(ctx, record.ID)
	if err != nil {
		return attendance.AttendanceResponse{}, fmt.Errorf("failed to load activity log: %w", err)
	}
	if attendance.StatusAfter(log) == attendance.StatusCompleted {
		return attendance.AttendanceResponse{}, attendance.ErrNoActiveSession
	}

	fix, err := e.resolveFix(ctx, req.Latitude, req.Longitude, req.AccuracyMeters)
	if err != nil {
		return attendance.AttendanceResponse{}, err
	}
	if err := e.checkGeofence(fix); err != nil {
		return attendance.AttendanceResponse{}, err
	}

	proofURL, err := e.files.UploadAttendanceProof(ctx, userID, now, req.File, req.FileHeader.Filename, "CLOCK_OUT")
	if err != nil {
		return attendance.AttendanceResponse{}, fmt.Errorf("%w: %v", attendance.ErrProofUploadFailed, err)
	}

	ev := attendance.ActivityEvent{
		ID:           uuid.NewString(),
		AttendanceID: record.ID,
		UserID:       userID,
		Type:         attendance.EventClockOut,
		Timestamp:    now,
		Location:     &fix.Coordinates,
		Notes:        req.Notes,
		SelfieURL:    &proofURL,
	}

	// clock_out closes any still-open interval by construction of the fold.
	finalLog := append(append([]attendance.ActivityEvent{}, log...), ev)
	totals := attendance.Recompute(finalLog, now)

	sess := e.trackers.Get(userID)
	if sess != nil {
		sess.Reconciler.StageLocal(ev)
	}

	persistCtx, cancel := context.WithTimeout(ctx, e.persistTimeout)
	defer cancel()

	err = e.tx.WithinTransaction(persistCtx, func(txCtx context.Context) error {
		if _, err := e.events.Append(txCtx, ev); err != nil {
			return err
		}
		return e.records.Complete(txCtx, record.ID, now, &proofURL, totals)
	})
	if err != nil {
		if sess != nil {
			sess.Reconciler.Reject(ev.ID, log)
		}
		return attendance.AttendanceResponse{}, fmt.Errorf("%w: %v", attendance.ErrPersistenceFailure, err)
	}

	if sess != nil {
		sess.Reconciler.Confirm(ev.ID)
	}

	clockOut := now
	record.Status = attendance.StatusCompleted
	record.ClockOut = &clockOut
	record.ClockOutProofURL = &proofURL
	record.Accumulated = totals
	if sess != nil {
		// Subscribers get the final snapshot, then the tick stops.
		sess.Tracker.SetRecord(record)
	}
	e.trackers.Close(userID)
	e.publish(ev)

	return attendance.NewAttendanceResponse(record, finalLog), nil
}

// Status implements attendance.AttendanceService. The first status read of
// an open day starts the live session, so the tick is running whenever a
// non-completed record exists and a client is watching.
func (e *Engine) Status(ctx context.Context) (attendance.StatusSnapshot, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return attendance.StatusSnapshot{}, err
	}

	if sess := e.trackers.Get(userID); sess != nil {
		return sess.Tracker.Snapshot(), nil
	}

	date := e.clock().UTC().In(e.tz).Format(dateLayout)
	record, err := e.records.GetOpenAttendance(ctx, userID, date)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return attendance.StatusSnapshot{}, attendance.ErrNoActiveSession
		}
		return attendance.StatusSnapshot{}, fmt.Errorf("failed to get open attendance: %w", err)
	}

	log, err := e.events.ListByAttendance(ctx, record.ID)
	if err != nil {
		return attendance.StatusSnapshot{}, fmt.Errorf("failed to load activity log: %w", err)
	}

	sess := e.trackers.Start(record, log)
	return sess.Tracker.Snapshot(), nil
}

// History implements attendance.AttendanceService.
func (e *Engine) History(ctx context.Context, filter attendance.HistoryFilter) (attendance.ListAttendanceResponse, error) {
	if err := filter.Validate(); err != nil {
		return attendance.ListAttendanceResponse{}, err
	}
	filter.Normalize()

	userID, err := userIDFromContext(ctx)
	if err != nil {
		return attendance.ListAttendanceResponse{}, err
	}

	records, total, err := e.records.ListByUser(ctx, userID, filter)
	if err != nil {
		return attendance.ListAttendanceResponse{}, fmt.Errorf("failed to list attendance history: %w", err)
	}

	resp := attendance.ListAttendanceResponse{
		Records:    make([]attendance.AttendanceResponse, 0, len(records)),
		Page:       filter.Page,
		Limit:      filter.Limit,
		TotalItems: total,
	}
	for _, rec := range records {
		resp.Records = append(resp.Records, attendance.NewAttendanceResponse(rec, nil))
	}
	return resp, nil
}

// HandleRemote folds an event produced outside this session (another device,
// a backend sweep) into the live tracker. An event for a user with no live
// session is stale here; the caller logs and drops it.
func (e *Engine) HandleRemote(ev attendance.ActivityEvent) error {
	sess := e.trackers.Get(ev.UserID)
	if sess == nil {
		return fmt.Errorf("%w: no live session for user %s", attendance.ErrStaleReconciliation, ev.UserID)
	}
	return sess.Reconciler.ApplyRemote(ev)
}

func (e *Engine) publish(ev attendance.ActivityEvent) {
	if e.hub == nil {
		return
	}
	e.hub.Publish(ev.UserID, sse.Event{
		UserID: ev.UserID,
		Event:  "attendance." + string(ev.Type),
		Data:   attendance.NewEventResponse(ev),
	})
}
