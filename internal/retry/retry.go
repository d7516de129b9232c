package retry

import (
	"context"
	"log/slog"
	"time"
)

const (
	DefaultBudget = 2
	DefaultDelay  = time.Second
)

// Policy configures exponential backoff. Budget is the number of retries after
// the first attempt; the wait before retry n is Delay * 2^(n-1).
type Policy struct {
	Budget int
	Delay  time.Duration
	// Sleep waits for d or until ctx is done. Defaults to a timer-based wait.
	Sleep  func(ctx context.Context, d time.Duration) error
	Logger *slog.Logger
}

// DefaultPolicy returns two retries starting at one second.
func DefaultPolicy() Policy {
	return Policy{Budget: DefaultBudget, Delay: DefaultDelay}
}

// Result reports how many attempts Do made.
type Result struct {
	Attempts int
}

// Do runs op until it succeeds or the retry budget is spent. The last error is
// returned unchanged. Attempts never overlap.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, Result, error) {
	sleep := p.Sleep
	if sleep == nil {
		sleep = timerSleep
	}
	budget := p.Budget
	if budget < 0 {
		budget = 0
	}
	delay := p.Delay

	var res Result
	for {
		res.Attempts++
		value, err := op(ctx)
		if err == nil {
			return value, res, nil
		}
		if budget <= 0 {
			return value, res, err
		}
		if p.Logger != nil {
			p.Logger.Warn("attempt failed, retrying", "attempt", res.Attempts, "delay", delay, "error", err)
		}
		if sleepErr := sleep(ctx, delay); sleepErr != nil {
			return value, res, sleepErr
		}
		delay *= 2
		budget--
	}
}

func timerSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
