package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/aman-zulfiqar/routediff/internal/constants"
)

// Policy retries a fallible operation with exponential backoff until it
// succeeds, fails permanently, or the elapsed-time budget would be exceeded.
type Policy struct {
	InitialInterval     time.Duration
	Multiplier          float64
	MaxInterval         time.Duration
	MaxElapsedTime      time.Duration // 0 disables the budget
	RandomizationFactor float64

	// Classify returns true when err is worth retrying. Defaults to IsTransient.
	Classify func(err error) bool

	// Notify is called before each retry with the failure and the wait.
	Notify func(err error, next time.Duration)

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// DefaultPolicy returns the router call policy: 1s initial interval growing
// by 1.5x, capped at 2m, with a 2m budget per logical call.
func DefaultPolicy() *Policy {
	return &Policy{
		InitialInterval:     constants.RetryInitialInterval,
		Multiplier:          constants.RetryMultiplier,
		MaxInterval:         constants.RetryMaxInterval,
		MaxElapsedTime:      constants.RetryMaxElapsed,
		RandomizationFactor: backoff.DefaultRandomizationFactor,
	}
}

// BudgetExceededError is returned once the policy gives up on transient
// failures. It wraps the last failure.
type BudgetExceededError struct {
	Budget   time.Duration
	Elapsed  time.Duration
	Attempts int
	Last     error
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("backoff budget of %s exceeded after %d attempts (%s elapsed): %v",
		e.Budget, e.Attempts, e.Elapsed.Round(time.Millisecond), e.Last)
}

func (e *BudgetExceededError) Unwrap() error {
	return e.Last
}

// Permanent marks err as not retryable under the default classifier.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// IsTransient is the default classifier: everything except errors marked
// with Permanent is retried.
func IsTransient(err error) bool {
	var perm *backoff.PermanentError
	return !errors.As(err, &perm)
}

// Do runs op under the policy.
func (p *Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	_, err := Run(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// Run runs op under p and returns its value on success.
func Run[T any](ctx context.Context, p *Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	classify := p.Classify
	if classify == nil {
		classify = IsTransient
	}
	now := p.now
	if now == nil {
		now = time.Now
	}
	sleep := p.sleep
	if sleep == nil {
		sleep = sleepContext
	}

	b := p.backOff()
	start := now()
	attempts := 0

	for {
		attempts++
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		if ctx.Err() != nil {
			return zero, err
		}
		if !classify(err) {
			return zero, unwrapPermanent(err)
		}

		next := b.NextBackOff()
		elapsed := now().Sub(start)
		if next == backoff.Stop || (p.MaxElapsedTime > 0 && elapsed+next > p.MaxElapsedTime) {
			return zero, &BudgetExceededError{
				Budget:   p.MaxElapsedTime,
				Elapsed:  elapsed,
				Attempts: attempts,
				Last:     err,
			}
		}

		if p.Notify != nil {
			p.Notify(err, next)
		}
		if err := sleep(ctx, next); err != nil {
			return zero, err
		}
	}
}

func (p *Policy) backOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.Multiplier > 0 {
		b.Multiplier = p.Multiplier
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	b.RandomizationFactor = p.RandomizationFactor
	b.Reset()
	return b
}

func unwrapPermanent(err error) error {
	var perm *backoff.PermanentError
	if errors.As(err, &perm) && perm.Err != nil {
		return perm.Err
	}
	return err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
