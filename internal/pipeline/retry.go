package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrRetriesExhausted is returned by Retry once every attempt has failed.
var ErrRetriesExhausted = errors.New("retries exhausted")

// Policy is a bounded retry with a fixed delay between attempts.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
}

var DefaultPolicy = Policy{MaxAttempts: 3, Delay: time.Second}

// Retry calls attempt until it succeeds or p.MaxAttempts calls have failed.
// Each failure is logged with the record's provenance; exhaustion is logged
// once and reported as ErrRetriesExhausted wrapping the last error.
func Retry(ctx context.Context, p Policy, log *slog.Logger, rec Record, attempt func(ctx context.Context) error) error {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if log == nil {
		log = slog.Default()
	}

	var lastErr error
	for n := 1; n <= p.MaxAttempts; n++ {
		lastErr = attempt(ctx)
		if lastErr == nil {
			if n > 1 {
				log.Info("persist_recovered", append(rec.logAttrs(), slog.Int("attempt", n))...)
			}
			return nil
		}

		log.Warn("persist_attempt_failed", append(rec.logAttrs(),
			slog.Int("attempt", n),
			slog.Int("max_attempts", p.MaxAttempts),
			slog.String("err", lastErr.Error()),
		)...)

		if n == p.MaxAttempts {
			break
		}
		if err := sleep(ctx, p.Delay); err != nil {
			lastErr = err
			break
		}
	}

	log.Error("persist_gave_up", append(rec.logAttrs(),
		slog.Int("max_attempts", p.MaxAttempts),
		slog.String("err", lastErr.Error()),
	)...)
	return fmt.Errorf("%w: %w", ErrRetriesExhausted, lastErr)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
