package model

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/hupe1980/agentcrew/logging"
)

// RetryOptions configures WithRetry.
type RetryOptions struct {
	// MaxTries bounds the total number of attempts (including the first).
	MaxTries uint
	// InitialInterval is the first backoff delay.
	InitialInterval time.Duration
	// MaxInterval caps a single backoff delay.
	MaxInterval time.Duration
	// Retryable decides whether an error is worth another attempt.
	// Context errors are never retried.
	Retryable func(error) bool
	Logger    logging.Logger
}

type retryModel struct {
	inner Model
	opts  RetryOptions
}

// WithRetry wraps m so failed generations are retried with exponential
// backoff. Partial chunks are not forwarded; callers receive only the final
// response of the successful attempt.
func WithRetry(m Model, optFns ...func(o *RetryOptions)) Model {
	opts := RetryOptions{
		MaxTries:        3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
		Retryable:       func(error) bool { return true },
		Logger:          logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.MaxTries == 0 {
		opts.MaxTries = 1
	}

	return &retryModel{inner: m, opts: opts}
}

// Info implements Model.
func (r *retryModel) Info() Info { return r.inner.Info() }

// Generate implements Model.
func (r *retryModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 1)
	errCh := make(chan error, 1)

	go func() {
		defer close(respCh)
		defer close(errCh)

		b := backoff.NewExponentialBackOff()
		b.InitialInterval = r.opts.InitialInterval
		b.MaxInterval = r.opts.MaxInterval

		attempt := 0
		op := func() (Response, error) {
			attempt++
			resp, err := Collect(ctx, r.inner, req, nil)
			if err == nil {
				return resp, nil
			}
			if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return Response{}, backoff.Permanent(err)
			}
			if !r.opts.Retryable(err) {
				return Response{}, backoff.Permanent(err)
			}
			return Response{}, err
		}

		notify := func(err error, wait time.Duration) {
			r.opts.Logger.Warn("model.retry", "model", r.inner.Info().Name, "attempt", attempt, "wait", wait, "error", err)
		}

		resp, err := backoff.Retry(ctx, op,
			backoff.WithBackOff(b),
			backoff.WithMaxTries(r.opts.MaxTries),
			backoff.WithNotify(notify),
		)
		if err != nil {
			errCh <- err
			return
		}

		respCh <- resp
	}()

	return respCh, errCh
}
