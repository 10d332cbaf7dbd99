package location

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub003/internal/pkg/geo"
)

// Acquisition errors
var (
	ErrPermissionDenied = errors.New("location permission denied")
	ErrUnavailable      = errors.New("location unavailable")
	ErrInvalidFix       = errors.New("invalid location fix")
)

// Fix is a resolved device position.
type Fix struct {
	Coordinates    geo.Coordinates
	AccuracyMeters float64
	Timestamp      time.Time
}

// Options controls a single position fetch against the platform API.
type Options struct {
	HighAccuracy bool
	Timeout      time.Duration
}

// Source yields one validated position per call. Acquirer is the canonical
// implementation; deployments with a fixed terminal can plug in their own.
type Source interface {
	Acquire(ctx context.Context) (Fix, error)
}

// Provider is the platform location API the acquirer consumes. A denial from
// RequestPermission is terminal for the session; CurrentPosition may fail or
// time out per call.
type Provider interface {
	RequestPermission(ctx context.Context) error
	CurrentPosition(ctx context.Context, opts Options) (Fix, error)
}

// ValidateFix rejects fixes the platform should never have reported: the
// (0,0) null island sentinel and coordinates outside valid WGS84 ranges.
func ValidateFix(fix Fix) error {
	lat, lon := fix.Coordinates.Latitude, fix.Coordinates.Longitude
	if lat == 0 && lon == 0 {
		return fmt.Errorf("%w: zero coordinates", ErrInvalidFix)
	}
	if lat < -90 || lat > 90 {
		return fmt.Errorf("%w: latitude %f out of range", ErrInvalidFix, lat)
	}
	if lon < -180 || lon > 180 {
		return fmt.Errorf("%w: longitude %f out of range", ErrInvalidFix, lon)
	}
	return nil
}
