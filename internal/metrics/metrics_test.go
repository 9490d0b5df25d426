package metrics

import (
	"errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

func TestMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New("voting", reg)
	require.NoError(t, err)

	m.VoteCast("star")
	m.VoteCast("star")
	m.VoteRejected("already_voted")
	m.TallyRefreshed(time.Now(), nil)
	m.TallyRefreshed(time.Now(), errors.New("boom"))
	m.DecisionLocked()
	m.PollClosed()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.votesCast.WithLabelValues("star")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.voteRejections.WithLabelValues("already_voted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.tallyRefreshes.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.tallyRefreshes.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.decisionsLocked))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.pollsClosed))
}

func TestMetrics_DoubleRegisterFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New("voting", reg)
	require.NoError(t, err)

	_, err = New("voting", reg)
	assert.Error(t, err)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.VoteCast("star")
		m.VoteRejected("closed")
		m.TallyRefreshed(time.Now(), nil)
		m.LockWaited(time.Second)
		m.DecisionLocked()
		m.PollClosed()
	})
}
