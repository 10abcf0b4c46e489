package indexedcoll

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/andreyvit/indexedcoll")

// Metrics are the Prometheus collectors of one DB. A nil *Metrics records
// nothing.
type Metrics struct {
	writes         *prometheus.CounterVec
	staleEntries   prometheus.Counter
	mutations      prometheus.Counter
	searches       *prometheus.CounterVec
	searchResults  prometheus.Histogram
	writeLatency   prometheus.Histogram
	searchLatency  prometheus.Histogram
	partialBatches prometheus.Counter
}

var latencyBuckets = []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "indexedcoll",
			Name:      "writes_total",
			Help:      "SetItemColumn calls by outcome (set, removed, error).",
		}, []string{"outcome"}),
		staleEntries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "indexedcoll",
			Name:      "stale_ledger_entries_total",
			Help:      "Ledger entries retracted by writes.",
		}),
		mutations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "indexedcoll",
			Name:      "mutations_total",
			Help:      "Store mutations committed by writes.",
		}),
		searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "indexedcoll",
			Name:      "searches_total",
			Help:      "SearchContainer calls by outcome (ok, error).",
		}, []string{"outcome"}),
		searchResults: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "indexedcoll",
			Name:      "search_results",
			Help:      "Item keys returned per search.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),
		writeLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "indexedcoll",
			Name:      "write_duration_seconds",
			Help:      "SetItemColumn latency.",
			Buckets:   latencyBuckets,
		}),
		searchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "indexedcoll",
			Name:      "search_duration_seconds",
			Help:      "SearchContainer latency.",
			Buckets:   latencyBuckets,
		}),
		partialBatches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "indexedcoll",
			Name:      "partial_batch_failures_total",
			Help:      "Writes whose batch was only partially applied.",
		}),
	}
	if reg != nil {
		for _, c := range []prometheus.Collector{m.writes, m.staleEntries, m.mutations, m.searches, m.searchResults, m.writeLatency, m.searchLatency, m.partialBatches} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

func (m *Metrics) recordWrite(outcome string, stale, mutations int, elapsed time.Duration, partial bool) {
	if m == nil {
		return
	}
	m.writes.WithLabelValues(outcome).Inc()
	m.writeLatency.Observe(elapsed.Seconds())
	if outcome != "error" {
		m.staleEntries.Add(float64(stale))
		m.mutations.Add(float64(mutations))
	}
	if partial {
		m.partialBatches.Inc()
	}
}

func (m *Metrics) recordSearch(err error, results int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.searchLatency.Observe(elapsed.Seconds())
	if err != nil {
		m.searches.WithLabelValues("error").Inc()
		return
	}
	m.searches.WithLabelValues("ok").Inc()
	m.searchResults.Observe(float64(results))
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
