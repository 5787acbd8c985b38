package shared

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

// TxPolicy bounds a single engine operation.
type TxPolicy struct {
	// Timeout is the deadline applied to each transaction attempt.
	Timeout time.Duration
	// TransientRetries is the number of extra attempts after a transient failure.
	TransientRetries int
	// NumberingRetries is the number of extra attempts after a duplicate number.
	NumberingRetries int
	// Backoff is the base delay; attempt n waits Backoff*2^n plus jitter.
	Backoff time.Duration
}

// DefaultTxPolicy mirrors the documented defaults.
func DefaultTxPolicy() TxPolicy {
	return TxPolicy{
		Timeout:          30 * time.Second,
		TransientRetries: 3,
		NumberingRetries: 5,
		Backoff:          20 * time.Millisecond,
	}
}

// RunTx runs attempt until it succeeds, fails permanently, or the retry budget
// is spent. Each attempt gets its own deadline. A deadline hit inside an
// attempt surfaces as ErrTransactionTimeout and is not retried. Transient
// failures that exhaust the budget surface as ErrRetryExhausted.
func RunTx(ctx context.Context, policy TxPolicy, attempt func(ctx context.Context) error) error {
	transient, numbering, idem := 0, 0, 0
	for {
		err := runAttempt(ctx, policy.Timeout, attempt)
		if err == nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		switch {
		case errors.Is(err, ErrTransactionTimeout):
			return err
		case errors.Is(err, ErrDuplicateNumber):
			if numbering >= policy.NumberingRetries {
				return err
			}
			numbering++
		case errors.Is(err, ErrIdempotencyConflict):
			// a racing request stored its result; one more attempt replays it
			if idem >= 1 {
				return err
			}
			idem++
		case IsKind(err, KindTransient):
			if transient >= policy.TransientRetries {
				return ErrRetryExhausted.Wrap(err)
			}
			if err := sleep(ctx, backoff(policy.Backoff, transient)); err != nil {
				return err
			}
			transient++
		default:
			return err
		}
	}
}

func runAttempt(ctx context.Context, timeout time.Duration, attempt func(ctx context.Context) error) error {
	if timeout <= 0 {
		return attempt(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	err := attempt(attemptCtx)
	if err != nil && ctx.Err() == nil && (errors.Is(err, context.DeadlineExceeded) || errors.Is(attemptCtx.Err(), context.DeadlineExceeded)) {
		if !errors.Is(err, ErrTransactionTimeout) {
			return ErrTransactionTimeout.Wrap(err)
		}
	}
	return err
}

func backoff(base time.Duration, n int) time.Duration {
	if base <= 0 {
		return 0
	}
	d := base << n
	return d + time.Duration(rand.Int64N(int64(d)/2+1))
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
