package workers

import (
	"context"
	"github.com/14kear/sso-prettyslog/slogpretty/errors"
	"golang.org/x/sync/semaphore"
	"log/slog"
	"sync"
	"time"
)

type RefreshFunc func(ctx context.Context, pollID string) error

type refreshState struct {
	dirty bool
}

// TallyRefresher recomputes poll results in the background. At most one
// refresh per poll runs at a time; a request that arrives while one is
// running makes it run once more afterwards, so the last committed vote is
// always reflected. The number of polls refreshed concurrently is bounded.
type TallyRefresher struct {
	log     *slog.Logger
	sem     *semaphore.Weighted
	timeout time.Duration

	mu      sync.Mutex
	running map[string]*refreshState
	refresh RefreshFunc
	ctx     context.Context
	cancel  context.CancelFunc
	stopped bool
	wg      sync.WaitGroup
}

func NewTallyRefresher(log *slog.Logger, workers int64, timeout time.Duration) *TallyRefresher {
	if workers < 1 {
		workers = 1
	}
	return &TallyRefresher{
		log:     log.With(slog.String("worker", "tally_refresher")),
		sem:     semaphore.NewWeighted(workers),
		timeout: timeout,
		running: make(map[string]*refreshState),
	}
}

// Start enables scheduling. Refreshes run with a context derived from ctx.
func (r *TallyRefresher) Start(ctx context.Context, fn RefreshFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.ctx, r.cancel = context.WithCancel(ctx)
	r.refresh = fn
	r.log.Info("tally refresher started")
}

// Schedule requests a refresh of the poll and returns immediately. Requests
// before Start or after Stop are dropped.
func (r *TallyRefresher) Schedule(pollID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.refresh == nil || r.stopped {
		r.log.Debug("refresh dropped", slog.String("poll_id", pollID))
		return
	}

	if st, ok := r.running[pollID]; ok {
		st.dirty = true
		return
	}

	r.running[pollID] = &refreshState{}
	r.wg.Add(1)
	go r.run(pollID)
}

func (r *TallyRefresher) run(pollID string) {
	defer r.wg.Done()

	for {
		if err := r.sem.Acquire(r.ctx, 1); err != nil {
			r.finish(pollID)
			return
		}
		r.refreshOnce(pollID)
		r.sem.Release(1)

		r.mu.Lock()
		st := r.running[pollID]
		if !st.dirty || r.stopped {
			delete(r.running, pollID)
			r.mu.Unlock()
			return
		}
		st.dirty = false
		r.mu.Unlock()
	}
}

func (r *TallyRefresher) refreshOnce(pollID string) {
	ctx := r.ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	if err := r.refresh(ctx, pollID); err != nil {
		r.log.Error("failed to refresh results", slog.String("poll_id", pollID), sl.Err(err))
	}
}

func (r *TallyRefresher) finish(pollID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.running, pollID)
}

// Stop cancels in-flight refreshes and waits for them to return.
func (r *TallyRefresher) Stop() {
	r.mu.Lock()
	r.stopped = true
	cancel := r.cancel
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	r.wg.Wait()
	r.log.Info("tally refresher stopped")
}
