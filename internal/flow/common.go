package flow

import (
	"cartsync/internal/types"
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

var timeNow = time.Now

func SetTimeNowFn(f func() time.Time) {
	timeNow = f
}

func RestoreTimeNow() {
	timeNow = time.Now
}

// TokenSource is the session side of the engine: a valid token before every remote call, and a
// way to drop it once the platform rejected it.
type TokenSource interface {
	CurrentToken(ctx context.Context) (string, error)
	Invalidate(ctx context.Context) error
}

// bounded runs fn with a deadline of timeout. A call that runs out of time is remote unavailable.
func bounded[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	v, err := fn(cctx)
	if err != nil && errors.Is(cctx.Err(), context.DeadlineExceeded) && !errors.Is(err, types.ErrRemoteUnavailable) {
		err = types.Err(types.ErrRemoteUnavailable, err, "no answer within %s", timeout)
	}
	return v, err
}

// authorized fetches the current token, then runs fn bounded by timeout. A rejected token is
// invalidated so the next call starts a new session.
func authorized[T any](ctx context.Context, tokens TokenSource, timeout time.Duration, fn func(ctx context.Context, token string) (T, error)) (T, error) {
	var zero T
	token, err := tokens.CurrentToken(ctx)
	if err != nil {
		return zero, err
	}
	v, err := bounded(ctx, timeout, func(ctx context.Context) (T, error) {
		return fn(ctx, token)
	})
	dropRejectedToken(ctx, tokens, err)
	return v, err
}

func dropRejectedToken(ctx context.Context, tokens TokenSource, err error) {
	if !errors.Is(err, types.ErrSessionUnavailable) {
		return
	}
	if ierr := tokens.Invalidate(ctx); ierr != nil {
		log.WithError(ierr).Error("failed to drop rejected token")
	}
}

// surface keeps the UI-facing error classes and reports everything else as remote unavailable.
func surface(err error, format string, args ...any) error {
	switch {
	case errors.Is(err, types.ErrSessionUnavailable),
		errors.Is(err, types.ErrRemoteUnavailable),
		errors.Is(err, types.ErrInvalidMutation),
		errors.Is(err, types.ErrMutationConflict),
		errors.Is(err, types.ErrInvalidInput),
		errors.Is(err, types.ErrCustomerExists):
		return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
	default:
		return types.Err(types.ErrRemoteUnavailable, err, format, args...)
	}
}
