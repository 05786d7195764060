package core

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/NERVsystems/ecoroute/pkg/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// RetryOptions configures retry behavior
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultRetryOptions retries three times with exponential backoff.
var DefaultRetryOptions = RetryOptions{
	MaxAttempts:  3,
	InitialDelay: 500 * time.Millisecond,
	MaxDelay:     10 * time.Second,
	Multiplier:   2.0,
}

// FixedRetryOptions retries up to attempts times, waiting delay between
// attempts.
func FixedRetryOptions(attempts int, delay time.Duration) RetryOptions {
	return RetryOptions{
		MaxAttempts:  attempts,
		InitialDelay: delay,
		MaxDelay:     delay,
		Multiplier:   1.0,
	}
}

func (o RetryOptions) normalized() RetryOptions {
	if o.MaxAttempts < 1 {
		o.MaxAttempts = 1
	}
	if o.Multiplier < 1 {
		o.Multiplier = 1
	}
	if o.MaxDelay < o.InitialDelay {
		o.MaxDelay = o.InitialDelay
	}
	return o
}

// Operation is a single attempt of a retried call.
type Operation func(ctx context.Context, attempt int) error

// Retry runs op until it succeeds, returns a non-retryable error or the
// attempts run out. The last error is returned.
func Retry(ctx context.Context, name string, options RetryOptions, op Operation) error {
	options = options.normalized()

	ctx, span := tracing.StartSpan(ctx, "retry "+name,
		trace.WithAttributes(
			attribute.Int(tracing.AttrRetryMaxAttempts, options.MaxAttempts),
		),
	)
	defer span.End()

	logger := slog.Default().With("operation", name)
	var lastErr error
	delay := options.InitialDelay

	for attempt := 0; attempt < options.MaxAttempts; attempt++ {
		if attempt > 0 {
			tracing.AddEvent(ctx, "retry_attempt",
				trace.WithAttributes(
					attribute.Int(tracing.AttrRetryAttempt, attempt+1),
					attribute.Int64("delay_ms", delay.Milliseconds()),
					attribute.String("error", fmt.Sprintf("%v", lastErr)),
				),
			)

			logger.Info("retrying",
				"attempt", attempt+1,
				"max_attempts", options.MaxAttempts,
				"delay", delay,
				"last_error", lastErr,
			)

			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				span.SetStatus(codes.Error, "cancelled")
				return ctx.Err()
			}

			delay = time.Duration(float64(delay) * options.Multiplier)
			if delay > options.MaxDelay {
				delay = options.MaxDelay
			}
		}

		err := op(ctx, attempt)
		if err == nil {
			span.SetAttributes(attribute.Int("retry.attempts", attempt+1))
			span.SetStatus(codes.Ok, "")
			return nil
		}
		lastErr = err

		if !IsRetryable(err) {
			logger.Debug("giving up on non-retryable error", "error", err, "attempt", attempt+1)
			span.RecordError(err)
			span.SetStatus(codes.Error, "non-retryable error")
			return err
		}
		logger.Warn("attempt failed", "error", err, "attempt", attempt+1)
	}

	span.RecordError(lastErr)
	span.SetStatus(codes.Error, "max retries exceeded")
	span.SetAttributes(attribute.Int("retry.attempts", options.MaxAttempts))

	return fmt.Errorf("%s: max retries reached: %w", name, lastErr)
}
