package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBusy = errors.New("busy")

type recordingSleeper struct{ waits []time.Duration }

func (r *recordingSleeper) sleep(_ context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	return nil
}

func testPolicy(s *recordingSleeper) Policy {
	p := Default(func(err error) bool { return errors.Is(err, errBusy) })
	p.Sleep = s.sleep
	return p
}

func TestDelaySchedule(t *testing.T) {
	p := Default(nil)
	assert.Equal(t, time.Second, p.Delay(1))
	assert.Equal(t, 2*time.Second, p.Delay(2))
	assert.Equal(t, 4*time.Second, p.Delay(3))
	assert.Equal(t, 8*time.Second, p.Delay(4))
	assert.Equal(t, 8*time.Second, p.Delay(10))
	assert.Equal(t, time.Duration(0), p.Delay(0))
}

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	s := &recordingSleeper{}
	calls := 0
	err := testPolicy(s).Do(context.Background(), func(context.Context, int) error {
		calls++
		if calls < 3 {
			return errBusy
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, s.waits)
}

func TestDoExhausts(t *testing.T) {
	s := &recordingSleeper{}
	calls := 0
	err := testPolicy(s).Do(context.Background(), func(context.Context, int) error {
		calls++
		return errBusy
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.ErrorIs(t, err, errBusy)
	assert.Equal(t, 3, calls)
	assert.Len(t, s.waits, 2)
}

func TestDoStopsOnNonRetryable(t *testing.T) {
	s := &recordingSleeper{}
	bad := errors.New("bad request")
	calls := 0
	err := testPolicy(s).Do(context.Background(), func(context.Context, int) error {
		calls++
		return bad
	})
	assert.Equal(t, bad, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, s.waits)
}

func TestPermanentOverridesClassifier(t *testing.T) {
	calls := 0
	err := testPolicy(&recordingSleeper{}).Do(context.Background(), func(context.Context, int) error {
		calls++
		return Permanent(errBusy)
	})
	assert.Equal(t, errBusy, err)
	assert.Equal(t, 1, calls)
}

func TestDoHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Default(func(error) bool { return true })
	p.Sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return SleepContext(ctx, d)
	}
	err := p.Do(ctx, func(context.Context, int) error { return errBusy })
	assert.ErrorIs(t, err, context.Canceled)
}
