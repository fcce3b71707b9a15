// Package metrics exposes Prometheus instruments for the router. Every method is safe to
// call on a nil *Metrics, which records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "carerouter"

// Metrics holds the router's counters and histograms.
type Metrics struct {
	turnsTotal     *prometheus.CounterVec
	turnLatency    *prometheus.HistogramVec
	intentsTotal   *prometheus.CounterVec
	switchesTotal  *prometheus.CounterVec
	cardsTotal     *prometheus.CounterVec
	fallbacksTotal *prometheus.CounterVec
	recordsDropped prometheus.Counter
	recordsPruned  prometheus.Counter
	inboundTotal   *prometheus.CounterVec
}

// New registers the instruments with reg, or the default registerer when reg is nil.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "flow",
			Name:      "turns_total",
			Help:      "Total processed turns by serving handler and outcome",
		}, []string{"handler", "outcome"}),
		turnLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "flow",
			Name:      "turn_latency_seconds",
			Help:      "Latency of a full turn",
			Buckets:   prometheus.DefBuckets,
		}, []string{"handler"}),
		intentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "intent",
			Name:      "classifications_total",
			Help:      "Intent classifications by intent and source",
		}, []string{"intent", "source"}),
		switchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "flow",
			Name:      "handler_switches_total",
			Help:      "Handler switches by previous and new handler",
		}, []string{"from", "to"}),
		cardsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cards",
			Name:      "attached_total",
			Help:      "Cards attached to envelopes by card type",
		}, []string{"type"}),
		fallbacksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "flow",
			Name:      "handler_fallbacks_total",
			Help:      "Turns served by a fallback handler because the requested one is not configured",
		}, []string{"requested", "served"}),
		recordsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "records_dropped_total",
			Help:      "Conversation records dropped because the write queue was full",
		}),
		recordsPruned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "records_pruned_total",
			Help:      "Conversation records deleted by the retention job",
		}),
		inboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "inbound_total",
			Help:      "Inbound requests by channel and status",
		}, []string{"channel", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.turnsTotal, m.turnLatency, m.intentsTotal, m.switchesTotal,
		m.cardsTotal, m.fallbacksTotal, m.recordsDropped, m.recordsPruned, m.inboundTotal)
	return m
}

func (m *Metrics) ObserveTurn(handler, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(handler, outcome).Inc()
	m.turnLatency.WithLabelValues(handler).Observe(d.Seconds())
}

func (m *Metrics) ObserveIntent(intent, source string) {
	if m == nil {
		return
	}
	m.intentsTotal.WithLabelValues(intent, source).Inc()
}

func (m *Metrics) ObserveSwitch(from, to string) {
	if m == nil {
		return
	}
	m.switchesTotal.WithLabelValues(from, to).Inc()
}

func (m *Metrics) ObserveCards(cardType string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.cardsTotal.WithLabelValues(cardType).Add(float64(n))
}

func (m *Metrics) ObserveFallback(requested, served string) {
	if m == nil {
		return
	}
	m.fallbacksTotal.WithLabelValues(requested, served).Inc()
}

func (m *Metrics) RecordDropped() {
	if m == nil {
		return
	}
	m.recordsDropped.Inc()
}

func (m *Metrics) RecordsPruned(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.recordsPruned.Add(float64(n))
}

func (m *Metrics) ObserveInbound(channel, status string) {
	if m == nil {
		return
	}
	m.inboundTotal.WithLabelValues(channel, status).Inc()
}
