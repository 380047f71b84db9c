package app

import (
	"strconv"

	"github.com/calehh/quad-app/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "quad"

// appMetrics is nil-safe: every method is a no-op on a nil receiver.
type appMetrics struct {
	proposals  prometheus.Counter
	votes      prometheus.Counter
	resolved   *prometheus.CounterVec
	rejectedTx *prometheus.CounterVec
	lastTick   prometheus.Gauge
	blockTxs   prometheus.Histogram
}

func newAppMetrics(reg prometheus.Registerer) *appMetrics {
	if reg == nil {
		return nil
	}
	factory := promauto.With(reg)
	return &appMetrics{
		proposals: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "proposals_submitted_total",
			Help:      "Number of proposals accepted",
		}),
		votes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "votes_submitted_total",
			Help:      "Number of votes accepted",
		}),
		resolved: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "proposals_resolved_total",
			Help:      "Number of proposals resolved, by outcome",
		}, []string{"outcome"}),
		rejectedTx: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "txs_rejected_total",
			Help:      "Number of block transactions with a non-zero result code",
		}, []string{"code"}),
		lastTick: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "last_tick",
			Help:      "Last committed tick",
		}),
		blockTxs: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "block_txs",
			Help:      "Number of transactions per finalized block",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
	}
}

func (m *appMetrics) observeTxResult(eventType string, code uint32) {
	if m == nil {
		return
	}
	if code != 0 {
		m.rejectedTx.WithLabelValues(strconv.FormatUint(uint64(code), 10)).Inc()
		return
	}
	switch eventType {
	case types.EventProposalSubmittedType:
		m.proposals.Inc()
	case types.EventVoteSubmittedType:
		m.votes.Inc()
	}
}

func (m *appMetrics) observeResolved(outcome types.Outcome) {
	if m == nil {
		return
	}
	m.resolved.WithLabelValues(outcome.String()).Inc()
}

func (m *appMetrics) observeBlock(txs int) {
	if m == nil {
		return
	}
	m.blockTxs.Observe(float64(txs))
}

func (m *appMetrics) setLastTick(tick uint64) {
	if m == nil {
		return
	}
	m.lastTick.Set(float64(tick))
}
