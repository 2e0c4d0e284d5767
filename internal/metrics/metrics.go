// Package metrics holds the Prometheus collectors of the pipeline. A nil
// *Registry is valid and records nothing.
package metrics

import (
	"net/http"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "logsift"

// Registry owns a dedicated Prometheus registry and the pipeline collectors
type Registry struct {
	reg *prometheus.Registry

	RecordsParsed   prometheus.Counter
	GroupsFailed    prometheus.Counter
	GroupDuration   prometheus.Histogram
	CacheRequests   *prometheus.CounterVec
	CacheErrors     *prometheus.CounterVec
	Fallbacks       *prometheus.CounterVec
	Classifications *prometheus.CounterVec
	LLMRequests     *prometheus.CounterVec
	LLMDuration     prometheus.Histogram
}

// New creates a registry with every collector registered
func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		RecordsParsed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "parse",
			Name:      "records_total",
			Help:      "Total number of records produced",
		}),
		GroupsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "parse",
			Name:      "groups_failed_total",
			Help:      "Groups that produced a parsing error record",
		}),
		GroupDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "parse",
			Name:      "group_duration_seconds",
			Help:      "Time spent extracting and classifying one group",
			Buckets:   prometheus.DefBuckets,
		}),
		CacheRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "requests_total",
			Help:      "Cache lookups by key prefix and result",
		}, []string{"prefix", "result"}),
		CacheErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "errors_total",
			Help:      "Cache operations that failed",
		}, []string{"operation"}),
		Fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "extract",
			Name:      "fallbacks_total",
			Help:      "Fields resolved by each extraction strategy",
		}, []string{"field", "strategy"}),
		Classifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "classify",
			Name:      "results_total",
			Help:      "Classification outcomes by category",
		}, []string{"category"}),
		LLMRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "requests_total",
			Help:      "LLM completions by outcome",
		}, []string{"outcome"}),
		LLMDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "request_duration_seconds",
			Help:      "LLM completion latency",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 15, 30},
		}),
	}

	r.reg.MustRegister(
		r.RecordsParsed,
		r.GroupsFailed,
		r.GroupDuration,
		r.CacheRequests,
		r.CacheErrors,
		r.Fallbacks,
		r.Classifications,
		r.LLMRequests,
		r.LLMDuration,
		collectors.NewGoCollector(),
	)
	return r
}

// Prometheus returns the underlying registry
func (r *Registry) Prometheus() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.reg
}

// Handler serves the registry in the Prometheus exposition format
func (r *Registry) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// CacheLookup records a cache hit or miss for a key prefix
func (r *Registry) CacheLookup(prefix string, hit bool) {
	if r == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	r.CacheRequests.WithLabelValues(prefix, result).Inc()
}

// CacheError records a failed cache operation
func (r *Registry) CacheError(operation string) {
	if r == nil {
		return
	}
	r.CacheErrors.WithLabelValues(operation).Inc()
}

// Strategy records which strategy resolved an extracted field
func (r *Registry) Strategy(field, strategy string) {
	if r == nil {
		return
	}
	r.Fallbacks.WithLabelValues(field, strategy).Inc()
}

// Classified records a classification outcome
func (r *Registry) Classified(category string) {
	if r == nil {
		return
	}
	r.Classifications.WithLabelValues(category).Inc()
}

// Group records one processed group
func (r *Registry) Group(d time.Duration, failed bool) {
	if r == nil {
		return
	}
	r.RecordsParsed.Inc()
	r.GroupDuration.Observe(d.Seconds())
	if failed {
		r.GroupsFailed.Inc()
	}
}

// LLMCall records one completion attempt
func (r *Registry) LLMCall(d time.Duration, err error) {
	if r == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	r.LLMRequests.WithLabelValues(outcome).Inc()
	r.LLMDuration.Observe(d.Seconds())
}

// Sample is one flattened counter value
type Sample struct {
	Name   string            `json:"name"`
	Labels map[string]string `json:"labels,omitempty"`
	Value  float64           `json:"value"`
}

// Snapshot flattens the logsift counters for display. Histograms report
// their sample count.
func (r *Registry) Snapshot() ([]Sample, error) {
	if r == nil {
		return nil, nil
	}
	families, err := r.reg.Gather()
	if err != nil {
		return nil, err
	}

	var samples []Sample
	for _, family := range families {
		name := family.GetName()
		if len(name) < len(namespace) || name[:len(namespace)] != namespace {
			continue
		}
		for _, m := range family.GetMetric() {
			labels := make(map[string]string, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			var value float64
			switch {
			case m.GetCounter() != nil:
				value = m.GetCounter().GetValue()
			case m.GetHistogram() != nil:
				value = float64(m.GetHistogram().GetSampleCount())
			case m.GetGauge() != nil:
				value = m.GetGauge().GetValue()
			}
			samples = append(samples, Sample{Name: name, Labels: labels, Value: value})
		}
	}
	sort.SliceStable(samples, func(i, j int) bool { return samples[i].Name < samples[j].Name })
	return samples, nil
}
