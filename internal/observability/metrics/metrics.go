// Package metrics exposes action and HTTP counters in the Prometheus text
// exposition format.
package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

var defaultBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

type histogram struct {
	counts []uint64
	sum    float64
	count  uint64
}

func (h *histogram) observe(buckets []float64, value float64) {
	h.count++
	h.sum += value
	for idx, bound := range buckets {
		if value <= bound {
			h.counts[idx]++
		}
	}
}

// family is one counter and one latency histogram sharing a label set.
type family struct {
	name    string
	help    string
	labels  []string
	mu      sync.Mutex
	counts  map[string]uint64
	latency map[string]*histogram
}

func newFamily(name, help string, labels ...string) *family {
	return &family{
		name:    name,
		help:    help,
		labels:  labels,
		counts:  make(map[string]uint64),
		latency: make(map[string]*histogram),
	}
}

// observe records one event. values must match labels; the last label is
// excluded from the histogram so outcomes share one latency series.
func (f *family) observe(duration time.Duration, values ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := f.key(values)
	f.counts[key]++

	latKey := f.key(values[:len(values)-1])
	hist := f.latency[latKey]
	if hist == nil {
		hist = &histogram{counts: make([]uint64, len(defaultBuckets))}
		f.latency[latKey] = hist
	}
	hist.observe(defaultBuckets, duration.Seconds())
}

func (f *family) key(values []string) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%s=\"%s\"", f.labels[i], escape(v))
	}
	return strings.Join(parts, ",")
}

func (f *family) render(builder *strings.Builder) {
	f.mu.Lock()
	defer f.mu.Unlock()

	fmt.Fprintf(builder, "# HELP %s_total %s\n", f.name, f.help)
	fmt.Fprintf(builder, "# TYPE %s_total counter\n", f.name)
	for _, key := range sortedKeys(f.counts) {
		fmt.Fprintf(builder, "%s_total{%s} %d\n", f.name, key, f.counts[key])
	}

	fmt.Fprintf(builder, "# HELP %s_duration_seconds Duration in seconds.\n", f.name)
	fmt.Fprintf(builder, "# TYPE %s_duration_seconds histogram\n", f.name)
	for _, key := range sortedKeys(f.latency) {
		hist := f.latency[key]
		prefix := key
		if prefix != "" {
			prefix += ","
		}
		for idx, bound := range defaultBuckets {
			fmt.Fprintf(builder, "%s_duration_seconds_bucket{%sle=\"%s\"} %d\n", f.name, prefix, formatFloat(bound), hist.counts[idx])
		}
		fmt.Fprintf(builder, "%s_duration_seconds_bucket{%sle=\"+Inf\"} %d\n", f.name, prefix, hist.count)
		fmt.Fprintf(builder, "%s_duration_seconds_sum{%s} %s\n", f.name, key, formatFloat(hist.sum))
		fmt.Fprintf(builder, "%s_duration_seconds_count{%s} %d\n", f.name, key, hist.count)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var (
	actionFamily = newFamily("arbitrum_action_invocations", "Action invocations by outcome.", "action", "status")
	errorFamily  = newFamily("arbitrum_action_errors", "Failed action invocations by error code.", "action", "code")
	httpFamily   = newFamily("arbitrum_http_requests", "HTTP requests processed.", "handler", "method", "code")
)

// ObserveAction records one action invocation. code is empty on success.
func ObserveAction(action, status, code string, duration time.Duration) {
	actionFamily.observe(duration, action, status)
	if code != "" {
		errorFamily.observe(duration, action, code)
	}
}

// ObserveHTTPRequest records metrics about an HTTP request lifecycle.
func ObserveHTTPRequest(handler, method string, status int, duration time.Duration) {
	httpFamily.observe(duration, handler, method, strconv.Itoa(status))
}

// Render returns every family in exposition format.
func Render() string {
	var builder strings.Builder
	builder.Grow(2048)
	for _, f := range []*family{actionFamily, errorFamily, httpFamily} {
		f.render(&builder)
	}
	return builder.String()
}

// Handler exposes the metrics in Prometheus text exposition format.
func Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		_, _ = fmt.Fprint(w, Render())
	})
}

func escape(value string) string {
	value = strings.ReplaceAll(value, "\\", "\\\\")
	value = strings.ReplaceAll(value, "\"", "\\\"")
	value = strings.ReplaceAll(value, "\n", "")
	return value
}

func formatFloat(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}
