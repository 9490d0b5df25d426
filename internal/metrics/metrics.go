package metrics

import (
	"errors"
	"github.com/prometheus/client_golang/prometheus"
	"time"
)

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	votesCast       *prometheus.CounterVec
	voteRejections  *prometheus.CounterVec
	tallyRefreshes  *prometheus.CounterVec
	tallyDuration   prometheus.Histogram
	lockWait        prometheus.Histogram
	decisionsLocked prometheus.Counter
	pollsClosed     prometheus.Counter
}

func New(namespace string, reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		votesCast: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "votes_cast_total",
			Help:      "Number of accepted votes",
		}, []string{"ballot_type"}),
		voteRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vote_rejections_total",
			Help:      "Number of rejected cast attempts",
		}, []string{"reason"}),
		tallyRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tally_refreshes_total",
			Help:      "Number of results recomputations",
		}, []string{"result"}),
		tallyDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tally_duration_seconds",
			Help:      "Time spent recomputing a poll's results",
			Buckets:   prometheus.DefBuckets,
		}),
		lockWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poll_lock_wait_seconds",
			Help:      "Time spent waiting for a poll's cast lock",
			Buckets:   prometheus.DefBuckets,
		}),
		decisionsLocked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_locked_total",
			Help:      "Number of polls whose outcome was locked by reaching a threshold",
		}),
		pollsClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polls_closed_total",
			Help:      "Number of polls closed manually or by deadline",
		}),
	}

	err := errors.Join(
		reg.Register(m.votesCast),
		reg.Register(m.voteRejections),
		reg.Register(m.tallyRefreshes),
		reg.Register(m.tallyDuration),
		reg.Register(m.lockWait),
		reg.Register(m.decisionsLocked),
		reg.Register(m.pollsClosed),
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) VoteCast(ballotType string) {
	if m == nil {
		return
	}
	m.votesCast.WithLabelValues(ballotType).Inc()
}

func (m *Metrics) VoteRejected(reason string) {
	if m == nil {
		return
	}
	m.voteRejections.WithLabelValues(reason).Inc()
}

func (m *Metrics) TallyRefreshed(start time.Time, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.tallyRefreshes.WithLabelValues(result).Inc()
	m.tallyDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) LockWaited(d time.Duration) {
	if m == nil {
		return
	}
	m.lockWait.Observe(d.Seconds())
}

func (m *Metrics) DecisionLocked() {
	if m == nil {
		return
	}
	m.decisionsLocked.Inc()
}

func (m *Metrics) PollClosed() {
	if m == nil {
		return
	}
	m.pollsClosed.Inc()
}
