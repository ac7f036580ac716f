// Package metrics provides metrics collection and reporting for the SkillShield SDK.
// It includes interfaces for metric collection and a Prometheus-compatible implementation.
package metrics

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// =============================================================================
// Metrics Interface
// =============================================================================

// Collector is the interface for collecting and reporting metrics.
// Implement this interface to use custom metrics backends (Prometheus, StatsD, etc.).
type Collector interface {
	// Counter operations
	CounterInc(name string, labels ...string)
	CounterAdd(name string, value float64, labels ...string)

	// Gauge operations
	GaugeSet(name string, value float64, labels ...string)
	GaugeInc(name string, labels ...string)
	GaugeDec(name string, labels ...string)

	// Histogram operations
	HistogramObserve(name string, value float64, labels ...string)

	// Summary operations
	SummaryObserve(name string, value float64, labels ...string)

	// Handler returns an HTTP handler for metrics endpoint
	Handler() http.Handler

	// Reset clears all metrics (for testing)
	Reset()
}

// =============================================================================
// Metric Types
// =============================================================================

// MetricType represents the type of metric.
type MetricType string

const (
	MetricTypeCounter   MetricType = "counter"
	MetricTypeGauge     MetricType = "gauge"
	MetricTypeHistogram MetricType = "histogram"
	MetricTypeSummary   MetricType = "summary"
)

// MetricDefinition defines a metric with its metadata.
type MetricDefinition struct {
	Name       string     `json:"name"`
	Type       MetricType `json:"type"`
	Help       string     `json:"help"`
	Labels     []string   `json:"labels,omitempty"`
	Buckets    []float64  `json:"buckets,omitempty"`     // For histograms
	Objectives []float64  `json:"objectives,omitempty"`  // For summaries
	MaxAge     int        `json:"max_age,omitempty"`     // For summaries (seconds)
	AgeBuckets int        `json:"age_buckets,omitempty"` // For summaries
}

// =============================================================================
// Default Metrics - Standard metrics for SkillShield SDK
// =============================================================================

var (
	// Scan metrics
	ScansTotal = MetricDefinition{
		Name:   "skillshield_scans_total",
		Type:   MetricTypeCounter,
		Help:   "Total number of skill scans executed",
		Labels: []string{"status"},
	}
	ScanDuration = MetricDefinition{
		Name:    "skillshield_scan_duration_seconds",
		Type:    MetricTypeHistogram,
		Help:    "Duration of skill scans in seconds",
		Labels:  []string{},
		Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	}
	ScanIssuesTotal = MetricDefinition{
		Name:   "skillshield_scan_issues_total",
		Type:   MetricTypeCounter,
		Help:   "Total number of issues reported by scans",
		Labels: []string{"type", "severity"},
	}

	// Semantic analyzer metrics
	AnalyzerRequestsTotal = MetricDefinition{
		Name:   "skillshield_analyzer_requests_total",
		Type:   MetricTypeCounter,
		Help:   "Total number of semantic analysis requests per provider",
		Labels: []string{"provider", "status"},
	}
	AnalyzerFailoversTotal = MetricDefinition{
		Name:   "skillshield_analyzer_failovers_total",
		Type:   MetricTypeCounter,
		Help:   "Total number of primary-to-fallback analyzer failovers",
		Labels: []string{},
	}

	// Dynamic rule metrics
	DynamicRulesActive = MetricDefinition{
		Name:   "skillshield_dynamic_rules_active",
		Type:   MetricTypeGauge,
		Help:   "Number of active dynamic rules applied by the last scan",
		Labels: []string{},
	}

	// Fetcher metrics
	FetchFilesTotal = MetricDefinition{
		Name:   "skillshield_fetch_files_total",
		Type:   MetricTypeCounter,
		Help:   "Total number of skill files fetched",
		Labels: []string{"platform"},
	}
	FetchErrorsTotal = MetricDefinition{
		Name:   "skillshield_fetch_errors_total",
		Type:   MetricTypeCounter,
		Help:   "Total number of repository fetch failures",
		Labels: []string{"platform"},
	}

	// Scan cache metrics
	CacheHitsTotal = MetricDefinition{
		Name:   "skillshield_scan_cache_hits_total",
		Type:   MetricTypeCounter,
		Help:   "Total number of scans served from the result cache",
		Labels: []string{},
	}
	CacheMissesTotal = MetricDefinition{
		Name:   "skillshield_scan_cache_misses_total",
		Type:   MetricTypeCounter,
		Help:   "Total number of cache lookups that required a fresh scan",
		Labels: []string{},
	}
)

// =============================================================================
// NopCollector - No-operation implementation
// =============================================================================

// NopCollector is a no-op metrics collector that discards all metrics.
// Use this when metrics are not needed.
type NopCollector struct{}

func (c *NopCollector) CounterInc(name string, labels ...string)                      {}
func (c *NopCollector) CounterAdd(name string, value float64, labels ...string)       {}
func (c *NopCollector) GaugeSet(name string, value float64, labels ...string)         {}
func (c *NopCollector) GaugeInc(name string, labels ...string)                        {}
func (c *NopCollector) GaugeDec(name string, labels ...string)                        {}
func (c *NopCollector) HistogramObserve(name string, value float64, labels ...string) {}
func (c *NopCollector) SummaryObserve(name string, value float64, labels ...string)   {}
func (c *NopCollector) Handler() http.Handler                                         { return http.NotFoundHandler() }
func (c *NopCollector) Reset()                                                        {}

// =============================================================================
// InMemoryCollector - Simple in-memory implementation for testing
// =============================================================================

// InMemoryCollector stores metrics in memory for testing purposes.
type InMemoryCollector struct {
	mu         sync.RWMutex
	counters   map[string]float64
	gauges     map[string]float64
	histograms map[string][]float64
	summaries  map[string][]float64
}

// NewInMemoryCollector creates a new in-memory metrics collector.
func NewInMemoryCollector() *InMemoryCollector {
	return &InMemoryCollector{
		counters:   make(map[string]float64),
		gauges:     make(map[string]float64),
		histograms: make(map[string][]float64),
		summaries:  make(map[string][]float64),
	}
}

func (c *InMemoryCollector) key(name string, labels []string) string {
	key := name
	for i := 0; i < len(labels); i += 2 {
		if i+1 < len(labels) {
			key += "," + labels[i] + "=" + labels[i+1]
		}
	}
	return key
}

func (c *InMemoryCollector) CounterInc(name string, labels ...string) {
	c.CounterAdd(name, 1, labels...)
}

func (c *InMemoryCollector) CounterAdd(name string, value float64, labels ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := c.key(name, labels)
	c.counters[key] += value
}

func (c *InMemoryCollector) GaugeSet(name string, value float64, labels ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := c.key(name, labels)
	c.gauges[key] = value
}

func (c *InMemoryCollector) GaugeInc(name string, labels ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := c.key(name, labels)
	c.gauges[key]++
}

func (c *InMemoryCollector) GaugeDec(name string, labels ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := c.key(name, labels)
	c.gauges[key]--
}

func (c *InMemoryCollector) HistogramObserve(name string, value float64, labels ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := c.key(name, labels)
	c.histograms[key] = append(c.histograms[key], value)
}

func (c *InMemoryCollector) SummaryObserve(name string, value float64, labels ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := c.key(name, labels)
	c.summaries[key] = append(c.summaries[key], value)
}

func (c *InMemoryCollector) Handler() http.Handler {
	return http.NotFoundHandler()
}

func (c *InMemoryCollector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters = make(map[string]float64)
	c.gauges = make(map[string]float64)
	c.histograms = make(map[string][]float64)
	c.summaries = make(map[string][]float64)
}

// GetCounter returns the value of a counter.
func (c *InMemoryCollector) GetCounter(name string, labels ...string) float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.counters[c.key(name, labels)]
}

// GetGauge returns the value of a gauge.
func (c *InMemoryCollector) GetGauge(name string, labels ...string) float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gauges[c.key(name, labels)]
}

// GetHistogram returns all observations of a histogram.
func (c *InMemoryCollector) GetHistogram(name string, labels ...string) []float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.histograms[c.key(name, labels)]
}

// GetSummary returns all observations of a summary.
func (c *InMemoryCollector) GetSummary(name string, labels ...string) []float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.summaries[c.key(name, labels)]
}

// =============================================================================
// Timer - Helper for timing operations
// =============================================================================

// Timer is a helper for timing operations and recording to histograms.
type Timer struct {
	start     time.Time
	collector Collector
	name      string
	labels    []string
}

// NewTimer creates a new timer that will record to the given histogram.
func NewTimer(collector Collector, name string, labels ...string) *Timer {
	return &Timer{
		start:     time.Now(),
		collector: collector,
		name:      name,
		labels:    labels,
	}
}

// ObserveDuration records the duration since the timer was created.
func (t *Timer) ObserveDuration() time.Duration {
	d := time.Since(t.start)
	t.collector.HistogramObserve(t.name, d.Seconds(), t.labels...)
	return d
}

// =============================================================================
// Global Default Collector
// =============================================================================

var defaultCollector Collector = &NopCollector{}
var defaultCollectorMu sync.RWMutex

// SetDefaultCollector sets the global default metrics collector.
func SetDefaultCollector(collector Collector) {
	defaultCollectorMu.Lock()
	defer defaultCollectorMu.Unlock()
	if collector == nil {
		collector = &NopCollector{}
	}
	defaultCollector = collector
}

// GetDefaultCollector returns the global default metrics collector.
func GetDefaultCollector() Collector {
	defaultCollectorMu.RLock()
	defer defaultCollectorMu.RUnlock()
	return defaultCollector
}

// =============================================================================
// Context-based Collector
// =============================================================================

type contextKey string

const collectorContextKey contextKey = "skillshield_metrics_collector"

// WithCollector returns a new context with the collector attached.
func WithCollector(ctx context.Context, collector Collector) context.Context {
	return context.WithValue(ctx, collectorContextKey, collector)
}

// CollectorFromContext returns the collector from the context, or the default.
func CollectorFromContext(ctx context.Context) Collector {
	if collector, ok := ctx.Value(collectorContextKey).(Collector); ok {
		return collector
	}
	return GetDefaultCollector()
}

// =============================================================================
// Interface compliance
// =============================================================================

var (
	_ Collector = (*NopCollector)(nil)
	_ Collector = (*InMemoryCollector)(nil)
)
