package workers

import (
	"context"
	"github.com/14kear/sso-prettyslog/slogpretty/errors"
	"log/slog"
	"sync"
	"time"
)

type PollCloser interface {
	CloseExpiredPolls(ctx context.Context) (int, error)
}

// DeadlineCloser periodically closes polls whose deadline has passed.
type DeadlineCloser struct {
	log      *slog.Logger
	closer   PollCloser
	interval time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

const defaultCloseInterval = time.Minute

func NewDeadlineCloser(log *slog.Logger, closer PollCloser, interval time.Duration) *DeadlineCloser {
	if interval <= 0 {
		interval = defaultCloseInterval
	}
	return &DeadlineCloser{
		log:      log.With(slog.String("worker", "deadline_closer")),
		closer:   closer,
		interval: interval,
	}
}

func (d *DeadlineCloser) Start(ctx context.Context) {
	ctx, d.cancel = context.WithCancel(ctx)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.loop(ctx)
	}()
}

func (d *DeadlineCloser) loop(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	d.log.Info("deadline closer started", slog.Duration("interval", d.interval))

	for {
		d.tick(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (d *DeadlineCloser) tick(ctx context.Context) {
	n, err := d.closer.CloseExpiredPolls(ctx)
	if err != nil {
		d.log.Error("failed to close expired polls", sl.Err(err))
	}
	if n > 0 {
		d.log.Info("closed expired polls", slog.Int("count", n))
	}
}

func (d *DeadlineCloser) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
	d.wg.Wait()
	d.log.Info("deadline closer stopped")
}
