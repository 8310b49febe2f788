package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metricsRegistry struct {
	registry          *prometheus.Registry
	transactionsTotal *prometheus.CounterVec
	balanceReadsTotal *prometheus.CounterVec
	connectsTotal     *prometheus.CounterVec
	activeSessions    prometheus.Gauge
}

func newMetricsRegistry() *metricsRegistry {
	txs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "atm_transactions_total",
		Help: "Deposit and withdrawal attempts by outcome",
	}, []string{"kind", "result"})

	reads := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "atm_balance_reads_total",
		Help: "Contract balance reads by outcome",
	}, []string{"result"})

	connects := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "atm_wallet_connects_total",
		Help: "Wallet authorization requests by outcome",
	}, []string{"result"})

	sessions := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "atm_active_sessions",
		Help: "Number of live client sessions",
	})

	r := prometheus.NewRegistry()
	r.MustRegister(txs, reads, connects, sessions)

	return &metricsRegistry{
		registry:          r,
		transactionsTotal: txs,
		balanceReadsTotal: reads,
		connectsTotal:     connects,
		activeSessions:    sessions,
	}
}

func (m *metricsRegistry) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *metricsRegistry) incTransaction(kind, result string) {
	m.transactionsTotal.WithLabelValues(kind, result).Inc()
}

func (m *metricsRegistry) incBalanceRead(result string) {
	m.balanceReadsTotal.WithLabelValues(result).Inc()
}

func (m *metricsRegistry) incConnect(result string) {
	m.connectsTotal.WithLabelValues(result).Inc()
}

func (m *metricsRegistry) setActiveSessions(n int) {
	m.activeSessions.Set(float64(n))
}
