// Package metrics provides a lightweight, Prometheus-compatible metrics
// collector for tripkit. It renders the text exposition format without
// pulling in prometheus/client_golang.
package metrics

import (
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Collector is the process-wide metrics collector.
var Collector = NewMetricsCollector()

// MetricsCollector aggregates counters, gauges, and histograms.
type MetricsCollector struct {
	counters   sync.Map // key -> *Counter
	gauges     sync.Map // key -> *Gauge
	histograms sync.Map // key -> *Histogram
	startTime  time.Time
}

func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{startTime: time.Now()}
}

// Uptime returns how long the collector has been running.
func (c *MetricsCollector) Uptime() time.Duration {
	return time.Since(c.startTime)
}

// Counter is a monotonically increasing counter.
type Counter struct {
	name   string
	help   string
	labels string
	value  atomic.Int64
}

func (c *Counter) Inc()         { c.value.Add(1) }
func (c *Counter) Add(n int64)  { c.value.Add(n) }
func (c *Counter) Value() int64 { return c.value.Load() }

// Gauge is a value that can go up and down.
type Gauge struct {
	name   string
	help   string
	labels string
	value  atomic.Int64
}

func (g *Gauge) Set(v int64)  { g.value.Store(v) }
func (g *Gauge) Inc()         { g.value.Add(1) }
func (g *Gauge) Dec()         { g.value.Add(-1) }
func (g *Gauge) Value() int64 { return g.value.Load() }

// Histogram tracks the distribution of observed values. Bucket counts are
// cumulative, as the exposition format expects.
type Histogram struct {
	name    string
	help    string
	labels  string
	mu      sync.Mutex
	count   int64
	sum     float64
	buckets []histBucket
}

type histBucket struct {
	le    float64
	count int64
}

// Observe records a value in the histogram.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += v
	for i := range h.buckets {
		if v <= h.buckets[i].le {
			h.buckets[i].count++
		}
	}
}

// Count returns the number of observations.
func (h *Histogram) Count() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

// Labels formats label pairs as `k1="v1",k2="v2"`. Values are escaped.
func Labels(kv ...string) string {
	var sb strings.Builder
	for i := 0; i+1 < len(kv); i += 2 {
		if sb.Len() > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(kv[i])
		sb.WriteString("=")
		sb.WriteString(strconv.Quote(kv[i+1]))
	}
	return sb.String()
}

// Counter returns or creates a counter with the given name and labels.
func (c *MetricsCollector) Counter(name, help, labels string) *Counter {
	key := name + "{" + labels + "}"
	if v, ok := c.counters.Load(key); ok {
		return v.(*Counter)
	}
	ctr := &Counter{name: name, help: help, labels: labels}
	actual, _ := c.counters.LoadOrStore(key, ctr)
	return actual.(*Counter)
}

// Gauge returns or creates a gauge with the given name and labels.
func (c *MetricsCollector) Gauge(name, help, labels string) *Gauge {
	key := name + "{" + labels + "}"
	if v, ok := c.gauges.Load(key); ok {
		return v.(*Gauge)
	}
	g := &Gauge{name: name, help: help, labels: labels}
	actual, _ := c.gauges.LoadOrStore(key, g)
	return actual.(*Gauge)
}

// Histogram returns or creates a histogram. A +Inf bucket is always added.
func (c *MetricsCollector) Histogram(name, help, labels string, buckets []float64) *Histogram {
	key := name + "{" + labels + "}"
	if v, ok := c.histograms.Load(key); ok {
		return v.(*Histogram)
	}
	bounds := append([]float64(nil), buckets...)
	sort.Float64s(bounds)
	if len(bounds) == 0 || !math.IsInf(bounds[len(bounds)-1], 1) {
		bounds = append(bounds, math.Inf(1))
	}
	hb := make([]histBucket, len(bounds))
	for i, b := range bounds {
		hb[i] = histBucket{le: b}
	}
	h := &Histogram{name: name, help: help, labels: labels, buckets: hb}
	actual, _ := c.histograms.LoadOrStore(key, h)
	return actual.(*Histogram)
}

// Handler serves the metrics in Prometheus text format.
func (c *MetricsCollector) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		c.Render(w)
	}
}

// Render writes every metric, grouped by name in a stable order.
func (c *MetricsCollector) Render(w io.Writer) {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# HELP tripkit_uptime_seconds Time since start in seconds\n")
	fmt.Fprintf(&sb, "# TYPE tripkit_uptime_seconds gauge\n")
	fmt.Fprintf(&sb, "tripkit_uptime_seconds %d\n", int64(c.Uptime().Seconds()))

	var counters []*Counter
	c.counters.Range(func(_, v any) bool { counters = append(counters, v.(*Counter)); return true })
	sort.Slice(counters, func(i, j int) bool { return series(counters[i].name, counters[i].labels) < series(counters[j].name, counters[j].labels) })
	last := ""
	for _, ctr := range counters {
		if ctr.name != last {
			fmt.Fprintf(&sb, "# HELP %s %s\n# TYPE %s counter\n", ctr.name, ctr.help, ctr.name)
			last = ctr.name
		}
		fmt.Fprintf(&sb, "%s %d\n", series(ctr.name, ctr.labels), ctr.Value())
	}

	var gauges []*Gauge
	c.gauges.Range(func(_, v any) bool { gauges = append(gauges, v.(*Gauge)); return true })
	sort.Slice(gauges, func(i, j int) bool { return series(gauges[i].name, gauges[i].labels) < series(gauges[j].name, gauges[j].labels) })
	last = ""
	for _, g := range gauges {
		if g.name != last {
			fmt.Fprintf(&sb, "# HELP %s %s\n# TYPE %s gauge\n", g.name, g.help, g.name)
			last = g.name
		}
		fmt.Fprintf(&sb, "%s %d\n", series(g.name, g.labels), g.Value())
	}

	var hists []*Histogram
	c.histograms.Range(func(_, v any) bool { hists = append(hists, v.(*Histogram)); return true })
	sort.Slice(hists, func(i, j int) bool { return series(hists[i].name, hists[i].labels) < series(hists[j].name, hists[j].labels) })
	last = ""
	for _, h := range hists {
		if h.name != last {
			fmt.Fprintf(&sb, "# HELP %s %s\n# TYPE %s histogram\n", h.name, h.help, h.name)
			last = h.name
		}
		h.mu.Lock()
		for _, b := range h.buckets {
			le := strconv.FormatFloat(b.le, 'g', -1, 64)
			if math.IsInf(b.le, 1) {
				le = "+Inf"
			}
			lbl := `le="` + le + `"`
			if h.labels != "" {
				lbl = h.labels + "," + lbl
			}
			fmt.Fprintf(&sb, "%s_bucket{%s} %d\n", h.name, lbl, b.count)
		}
		fmt.Fprintf(&sb, "%s %d\n", series(h.name+"_count", h.labels), h.count)
		fmt.Fprintf(&sb, "%s %g\n", series(h.name+"_sum", h.labels), h.sum)
		h.mu.Unlock()
	}

	io.WriteString(w, sb.String())
}

func series(name, labels string) string {
	if labels == "" {
		return name
	}
	return name + "{" + labels + "}"
}

// --- Metrics used across the application ---

var (
	DocumentsSaved  = Collector.Counter("tripkit_documents_saved_total", "Itinerary documents committed", "")
	DocumentsFailed = Collector.Counter("tripkit_documents_failed_total", "Itinerary documents that could not be written", "")
	DocumentBytes   = Collector.Counter("tripkit_document_bytes_total", "Bytes written to committed itinerary documents", "")
	InFlight        = Collector.Gauge("tripkit_http_in_flight_requests", "Gateway requests currently being served", "")

	CapabilityLatency = Collector.Histogram("tripkit_capability_latency_seconds", "Capability invocation latency in seconds", "",
		[]float64{0.005, 0.05, 0.25, 1, 5, 15, 30})
	ProviderLatency = Collector.Histogram("tripkit_provider_latency_seconds", "Outbound provider request latency in seconds", "",
		[]float64{0.1, 0.5, 1, 2, 5, 15})
)

// CapabilityInvocation counts invocations of one capability by outcome.
func CapabilityInvocation(name, outcome string) *Counter {
	return Collector.Counter("tripkit_capability_invocations_total", "Capability invocations",
		Labels("capability", name, "outcome", outcome))
}

// ProviderRequest counts outbound provider requests by host and result.
func ProviderRequest(host, result string) *Counter {
	return Collector.Counter("tripkit_provider_requests_total", "Outbound provider requests",
		Labels("host", host, "result", result))
}

// HTTPRequest counts gateway requests by route and status code.
func HTTPRequest(route string, status int) *Counter {
	return Collector.Counter("tripkit_http_requests_total", "Gateway HTTP requests",
		Labels("route", route, "code", strconv.Itoa(status)))
}
