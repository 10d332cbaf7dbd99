package attendance

import "errors"

// Attendance domain errors
var (
	// Transition precondition violations
	ErrAlreadyClockedIn = errors.New("you have already clocked in today")
	ErrNoActiveSession  = errors.New("no active attendance session")
	ErrBreakAlreadyUsed = errors.New("break already used today")

	// Location / geofence failures
	ErrOutOfRange          = errors.New("you are too far from the office")
	ErrLocationUnavailable = errors.New("unable to determine your location")
	ErrPermissionDenied    = errors.New("location permission denied")

	// Collaborator failures; the transition aborts and no event is written
	ErrPersistenceFailure  = errors.New("failed to persist attendance data")
	ErrProofUploadFailed   = errors.New("failed to upload attendance proof photo")
	ErrTransitionInFlight  = errors.New("another attendance transition is still in progress")
	ErrStaleReconciliation = errors.New("remote event references an unknown attendance")

	// General errors
	ErrAttendanceNotFound = errors.New("attendance record not found")
)
