package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDo_SucceedsAfterRetries(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return Retryable(errors.New("transient"))
		}
		return nil
	}, WithMaxAttempts(5), WithInitialDelay(time.Millisecond), WithJitter(0))

	assert.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	attempts := 0
	cause := errors.New("still failing")
	err := Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return Retryable(cause)
	}, WithMaxAttempts(3), WithInitialDelay(time.Millisecond), WithJitter(0))

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 3, attempts)
}

func TestDo_PermanentErrorStopsImmediately(t *testing.T) {
	attempts := 0
	cause := errors.New("bad input")
	err := Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return Permanent(cause)
	}, WithMaxAttempts(5), WithInitialDelay(time.Millisecond))

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 1, attempts)
}

func TestDo_ContextCancellationStopsRetrying(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	cause := errors.New("transient")

	err := Do(ctx, func(ctx context.Context) error {
		attempts++
		cancel()
		return Retryable(cause)
	}, WithMaxAttempts(10), WithInitialDelay(50*time.Millisecond))

	// Cancellation during backoff surfaces the last operation error.
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 1, attempts)
}

func TestDo_CancelledBeforeFirstAttempt(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Do(ctx, func(ctx context.Context) error {
		t.Fatal("operation should not run")
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestDoWithData(t *testing.T) {
	attempts := 0
	got, err := DoWithData(context.Background(), func(ctx context.Context) (int, error) {
		attempts++
		if attempts < 2 {
			return 0, Retryable(errors.New("transient"))
		}
		return 42, nil
	}, WithMaxAttempts(3), WithInitialDelay(time.Millisecond), WithJitter(0))

	require.NoError(t, err)
	assert.Equal(t, 42, got)
}

func TestRetryableAndPermanentClassification(t *testing.T) {
	cause := errors.New("cause")

	assert.True(t, IsRetryable(Retryable(cause)))
	assert.False(t, IsRetryable(Permanent(cause)))
	assert.True(t, IsPermanent(Permanent(cause)))
	assert.False(t, IsPermanent(Retryable(cause)))

	assert.Nil(t, Retryable(nil))
	assert.Nil(t, Permanent(nil))
	assert.ErrorIs(t, Retryable(cause), cause)
}

func TestWithRetryIf(t *testing.T) {
	attempts := 0
	special := errors.New("special")

	err := Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return special
	}, WithMaxAttempts(4), WithInitialDelay(time.Millisecond), WithJitter(0),
		WithRetryIf(func(err error) bool { return errors.Is(err, special) }))

	assert.ErrorIs(t, err, special)
	assert.Equal(t, 4, attempts)
}

func TestCalculateDelay_Backoff(t *testing.T) {
	r := New(WithInitialDelay(10*time.Millisecond), WithMultiplier(2), WithJitter(0), WithMaxDelay(35*time.Millisecond))

	assert.Equal(t, 10*time.Millisecond, r.calculateDelay(1))
	assert.Equal(t, 20*time.Millisecond, r.calculateDelay(2))
	// Capped by max delay.
	assert.Equal(t, 35*time.Millisecond, r.calculateDelay(3))
}
