package response

import (
	"errors"
	"net/http"

	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub003/internal/domain/attendance"
	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub003/internal/domain/auth"
	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub003/internal/domain/user"
	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub003/internal/pkg/validator"
)

// HandleError maps domain errors to HTTP responses
func HandleError(w http.ResponseWriter, err error) {
	// Check if it's a validation error
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		ValidationError(w, validationErrs.ToMap())
		return
	}

	switch {
	// Auth domain errors
	case errors.Is(err, auth.ErrInvalidCredentials):
		Unauthorized(w, err.Error())
	case errors.Is(err, auth.ErrInvalidToken):
		Unauthorized(w, "Invalid or expired token")
	case errors.Is(err, auth.ErrRefreshTokenRevoked):
		Unauthorized(w, "Refresh token revoked")
	case errors.Is(err, auth.ErrRefreshTokenCookieNotFound), errors.Is(err, auth.ErrRefreshTokenCookieEmpty):
		Unauthorized(w, "Refresh token is missing")
	case errors.Is(err, auth.ErrEmailAlreadyExists):
		Conflict(w, "Email already registered")
	case errors.Is(err, auth.ErrUserNotFound), errors.Is(err, user.ErrUserNotFound):
		NotFound(w, "User not found")

	// Attendance domain errors
	case errors.Is(err, attendance.ErrAlreadyClockedIn):
		Conflict(w, "Already clocked in today")
	case errors.Is(err, attendance.ErrNoActiveSession):
		NotFound(w, "No active attendance session")
	case errors.Is(err, attendance.ErrBreakAlreadyUsed):
		Conflict(w, "Break has already been taken today")
	case errors.Is(err, attendance.ErrTransitionInFlight):
		Conflict(w, "Another attendance request is still being processed")
	case errors.Is(err, attendance.ErrStaleReconciliation):
		Conflict(w, "Attendance state is out of date")
	case errors.Is(err, attendance.ErrOutOfRange):
		BadRequest(w, "You are outside the office area", nil)
	case errors.Is(err, attendance.ErrLocationUnavailable):
		BadRequest(w, "Unable to determine your location", nil)
	case errors.Is(err, attendance.ErrPermissionDenied):
		Forbidden(w, "Location permission denied")
	case errors.Is(err, attendance.ErrAttendanceNotFound):
		NotFound(w, "Attendance record not found")
	case errors.Is(err, attendance.ErrProofUploadFailed):
		InternalServerError(w, "Failed to store attendance proof photo")
	case errors.Is(err, attendance.ErrPersistenceFailure):
		InternalServerError(w, "Failed to save attendance data")

	// Default
	default:
		InternalServerError(w, "An unexpected error occurred")
	}
}
