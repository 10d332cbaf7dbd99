package location

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// AcquirerConfig holds the retry policy for position acquisition.
type AcquirerConfig struct {
	MaxAttempts     int           // high-accuracy attempts, default: 3
	InitialBackoff  time.Duration // backoff after the first failure, doubled per retry, default: 500ms
	AttemptTimeout  time.Duration // per high-accuracy attempt, default: 5s
	FallbackTimeout time.Duration // single low-accuracy fallback attempt, default: 10s
}

// Acquirer obtains a validated device position from a Provider. It tries
// high accuracy first with bounded retries and increasing backoff, then
// falls back once to low accuracy. Permission is requested at most once per
// acquirer; a denial fails every subsequent call without prompting again.
type Acquirer struct {
	provider Provider
	config   AcquirerConfig

	permOnce sync.Once
	permErr  error
}

func NewAcquirer(provider Provider, cfg AcquirerConfig) *Acquirer {
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.InitialBackoff == 0 {
		cfg.InitialBackoff = 500 * time.Millisecond
	}
	if cfg.AttemptTimeout == 0 {
		cfg.AttemptTimeout = 5 * time.Second
	}
	if cfg.FallbackTimeout == 0 {
		cfg.FallbackTimeout = 10 * time.Second
	}

	return &Acquirer{
		provider: provider,
		config:   cfg,
	}
}

// Acquire resolves a fresh validated fix. The caller bounds the total
// wall-clock budget through ctx; once ctx is done the acquisition stops
// wherever it is and reports failure.
func (a *Acquirer) Acquire(ctx context.Context) (Fix, error) {
	a.permOnce.Do(func() {
		a.permErr = a.provider.RequestPermission(ctx)
	})
	if a.permErr != nil {
		return Fix{}, fmt.Errorf("%w: %v", ErrPermissionDenied, a.permErr)
	}

	var lastErr error
	backoff := a.config.InitialBackoff

	for attempt := 1; attempt <= a.config.MaxAttempts; attempt++ {
		fix, err := a.fetch(ctx, Options{HighAccuracy: true, Timeout: a.config.AttemptTimeout})
		if err == nil {
			return fix, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return Fix{}, fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
		}

		if attempt < a.config.MaxAttempts {
			slog.Debug("high-accuracy fix failed, retrying",
				"attempt", attempt, "backoff", backoff, "error", err)
			select {
			case <-ctx.Done():
				return Fix{}, fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
			case <-time.After(backoff):
			}
			backoff *= 2
		}
	}

	// Last resort: a single low-accuracy attempt.
	slog.Debug("high-accuracy attempts exhausted, falling back to low accuracy", "error", lastErr)
	fix, err := a.fetch(ctx, Options{HighAccuracy: false, Timeout: a.config.FallbackTimeout})
	if err == nil {
		return fix, nil
	}

	return Fix{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
}

// fetch runs one position fetch with its own timeout and validates the result.
func (a *Acquirer) fetch(ctx context.Context, opts Options) (Fix, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	fix, err := a.provider.CurrentPosition(attemptCtx, opts)
	if err != nil {
		return Fix{}, err
	}
	if err := ValidateFix(fix); err != nil {
		return Fix{}, err
	}
	return fix, nil
}
