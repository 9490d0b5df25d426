package workers

import (
	"context"
	"errors"
	"github.com/14kear/online_voting/voting-engine/internal/lib/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestTallyRefresher_RunsScheduledPoll(t *testing.T) {
	r := NewTallyRefresher(logger.Discard(), 2, time.Second)
	done := make(chan string, 1)

	r.Start(context.Background(), func(_ context.Context, pollID string) error {
		done <- pollID
		return nil
	})
	defer r.Stop()

	r.Schedule("poll-1")

	select {
	case id := <-done:
		assert.Equal(t, "poll-1", id)
	case <-time.After(time.Second):
		t.Fatal("refresh did not run")
	}
}

func TestTallyRefresher_CoalescesWhileRunning(t *testing.T) {
	r := NewTallyRefresher(logger.Discard(), 2, time.Second)

	var calls atomic.Int32
	started := make(chan struct{}, 10)
	release := make(chan struct{})

	r.Start(context.Background(), func(_ context.Context, _ string) error {
		calls.Add(1)
		started <- struct{}{}
		<-release
		return nil
	})

	r.Schedule("poll-1")
	<-started

	// Requests during a running refresh collapse into one re-run.
	for i := 0; i < 5; i++ {
		r.Schedule("poll-1")
	}
	release <- struct{}{}

	<-started
	release <- struct{}{}

	r.Stop()
	assert.Equal(t, int32(2), calls.Load())
}

func TestTallyRefresher_BoundsConcurrency(t *testing.T) {
	r := NewTallyRefresher(logger.Discard(), 2, time.Second)

	var (
		inside  atomic.Int32
		maxSeen atomic.Int32
		wg      sync.WaitGroup
	)
	wg.Add(6)

	r.Start(context.Background(), func(_ context.Context, _ string) error {
		defer wg.Done()
		n := inside.Add(1)
		for {
			m := maxSeen.Load()
			if n <= m || maxSeen.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		inside.Add(-1)
		return nil
	})

	for _, id := range []string{"a", "b", "c", "d", "e", "f"} {
		r.Schedule(id)
	}
	wg.Wait()
	r.Stop()

	assert.LessOrEqual(t, maxSeen.Load(), int32(2))
}

func TestTallyRefresher_DropsBeforeStartAndAfterStop(t *testing.T) {
	r := NewTallyRefresher(logger.Discard(), 1, time.Second)
	var calls atomic.Int32

	r.Schedule("early")

	r.Start(context.Background(), func(context.Context, string) error {
		calls.Add(1)
		return nil
	})
	r.Stop()
	r.Schedule("late")

	assert.Equal(t, int32(0), calls.Load())
}

func TestTallyRefresher_StopCancelsInFlight(t *testing.T) {
	r := NewTallyRefresher(logger.Discard(), 1, time.Minute)
	started := make(chan struct{})

	r.Start(context.Background(), func(ctx context.Context, _ string) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})

	r.Schedule("poll-1")
	<-started
	r.Stop()
}

type fakeCloser struct {
	calls atomic.Int32
	err   error
}

func (f *fakeCloser) CloseExpiredPolls(context.Context) (int, error) {
	f.calls.Add(1)
	return 1, f.err
}

func TestDeadlineCloser_Ticks(t *testing.T) {
	closer := &fakeCloser{}
	d := NewDeadlineCloser(logger.Discard(), closer, 5*time.Millisecond)

	d.Start(context.Background())
	require.Eventually(t, func() bool { return closer.calls.Load() >= 3 }, time.Second, time.Millisecond)
	d.Stop()
}

func TestDeadlineCloser_KeepsRunningOnError(t *testing.T) {
	closer := &fakeCloser{err: errors.New("storage down")}
	d := NewDeadlineCloser(logger.Discard(), closer, 5*time.Millisecond)

	d.Start(context.Background())
	require.Eventually(t, func() bool { return closer.calls.Load() >= 2 }, time.Second, time.Millisecond)
	d.Stop()
}

func TestDeadlineCloser_NonPositiveInterval(t *testing.T) {
	d := NewDeadlineCloser(logger.Discard(), &fakeCloser{}, 0)
	assert.Equal(t, defaultCloseInterval, d.interval)
}
