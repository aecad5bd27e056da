package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noSleep(slept *[]time.Duration) func(context.Context, time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		*slept = append(*slept, d)
		return nil
	}
}

func TestDelay(t *testing.T) {
	p := Default()

	assert.Equal(t, 500*time.Millisecond, p.Delay(1))
	assert.Equal(t, time.Second, p.Delay(2))
	assert.Equal(t, 2*time.Second, p.Delay(3))
	assert.Equal(t, 8*time.Second, p.Delay(5))
	assert.Equal(t, 8*time.Second, p.Delay(12))
}

func TestDo_SucceedsAfterRetries(t *testing.T) {
	var slept []time.Duration
	var retried []int
	p := Default()
	p.sleep = noSleep(&slept)
	p.OnRetry = func(attempt int, _ time.Duration, _ error) { retried = append(retried, attempt) }

	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("connection refused")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
	assert.Equal(t, []time.Duration{500 * time.Millisecond, time.Second}, slept)
}

func TestDo_GivesUp(t *testing.T) {
	var slept []time.Duration
	p := Policy{Attempts: 3, InitialDelay: time.Millisecond, Multiplier: 2}
	p.sleep = noSleep(&slept)
	cause := errors.New("no route to host")

	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return cause
	})

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "gave up after 3 attempts")
	assert.Equal(t, 3, calls)
	assert.Len(t, slept, 2)
}

func TestDo_StopsWhenContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{Attempts: 10, InitialDelay: time.Hour}
	cause := errors.New("down")

	calls := 0
	err := p.Do(ctx, func(context.Context) error {
		calls++
		cancel()
		return cause
	})

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 1, calls)
}
