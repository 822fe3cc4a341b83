package metrics

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
)

type requestLabel struct {
	method string
	path   string
	status string
}

// Recorder aggregates in-memory counters for HTTP requests, authentication
// events, and review mutations. It coordinates concurrent writers via a
// RWMutex and renders Prometheus text exposition on demand.
type Recorder struct {
	mu              sync.RWMutex
	requestCount    map[requestLabel]uint64
	requestDuration map[requestLabel]time.Duration
	authEvents      map[string]uint64
	reviewEvents    map[string]uint64
}

var defaultRecorder = New()

// New constructs an empty Recorder with initialized backing maps so callers
// can immediately record metrics without additional setup.
func New() *Recorder {
	return &Recorder{
		requestCount:    make(map[requestLabel]uint64),
		requestDuration: make(map[requestLabel]time.Duration),
		authEvents:      make(map[string]uint64),
		reviewEvents:    make(map[string]uint64),
	}
}

// Default returns the singleton Recorder shared by packages that do not
// require custom instrumentation pipelines.
func Default() *Recorder {
	return defaultRecorder
}

// ObserveRequest normalizes the request label set and accumulates totals for
// request count and cumulative duration by method, normalized path, and
// status code.
func (r *Recorder) ObserveRequest(method, path string, status int, duration time.Duration) {
	label := requestLabel{
		method: strings.ToUpper(method),
		path:   normalizePath(path),
		status: fmt.Sprintf("%d", status),
	}
	r.mu.Lock()
	r.requestCount[label]++
	r.requestDuration[label] += duration
	r.mu.Unlock()
}

// ObserveAuthEvent counts an authentication lifecycle event such as
// "register", "login_success", or "login_failure".
func (r *Recorder) ObserveAuthEvent(event string) {
	r.incrementEvent(r.authEvents, event)
}

// ObserveReviewEvent counts a review mutation, either "upsert" or "delete".
func (r *Recorder) ObserveReviewEvent(event string) {
	r.incrementEvent(r.reviewEvents, event)
}

func (r *Recorder) incrementEvent(events map[string]uint64, event string) {
	normalized := strings.ToLower(strings.TrimSpace(event))
	if normalized == "" {
		normalized = "unknown"
	}
	r.mu.Lock()
	events[normalized]++
	r.mu.Unlock()
}

// AuthEventCounts returns a copy of the auth event counters for tests and
// reporting.
func (r *Recorder) AuthEventCounts() map[string]uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	counts := make(map[string]uint64, len(r.authEvents))
	for k, v := range r.authEvents {
		counts[k] = v
	}
	return counts
}

// ReviewEventCounts returns a copy of the review event counters.
func (r *Recorder) ReviewEventCounts() map[string]uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	counts := make(map[string]uint64, len(r.reviewEvents))
	for k, v := range r.reviewEvents {
		counts[k] = v
	}
	return counts
}

// RequestCount returns the accumulated count for a method/path/status label.
func (r *Recorder) RequestCount(method, path string, status int) uint64 {
	label := requestLabel{
		method: strings.ToUpper(method),
		path:   normalizePath(path),
		status: fmt.Sprintf("%d", status),
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.requestCount[label]
}

// Reset clears all counters on the recorder. It is intended for test setups.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requestCount = make(map[requestLabel]uint64)
	r.requestDuration = make(map[requestLabel]time.Duration)
	r.authEvents = make(map[string]uint64)
	r.reviewEvents = make(map[string]uint64)
}

// Handler exposes the Recorder as an http.Handler that writes Prometheus
// text exposition data with the appropriate content type.
func (r *Recorder) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		r.Write(w)
	})
}

// Write renders the Recorder's metrics in Prometheus text format, sorting
// label sets to provide stable output for scrapes and tests.
func (r *Recorder) Write(w io.Writer) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	requestLabels := r.sortedRequestLabels()
	authEvents := sortedKeys(r.authEvents)
	reviewEvents := sortedKeys(r.reviewEvents)

	fmt.Fprintln(w, "# HELP shelfreads_http_requests_total Total number of HTTP requests processed by the API")
	fmt.Fprintln(w, "# TYPE shelfreads_http_requests_total counter")
	for _, label := range requestLabels {
		fmt.Fprintf(w, "shelfreads_http_requests_total{method=%q,path=%q,status=%q} %d\n", label.method, label.path, label.status, r.requestCount[label])
	}

	fmt.Fprintln(w, "# HELP shelfreads_http_request_duration_seconds_sum Cumulative duration of HTTP requests in seconds")
	fmt.Fprintln(w, "# TYPE shelfreads_http_request_duration_seconds_sum counter")
	for _, label := range requestLabels {
		fmt.Fprintf(w, "shelfreads_http_request_duration_seconds_sum{method=%q,path=%q,status=%q} %f\n", label.method, label.path, label.status, r.requestDuration[label].Seconds())
	}

	fmt.Fprintln(w, "# HELP shelfreads_auth_events_total Authentication lifecycle events by type")
	fmt.Fprintln(w, "# TYPE shelfreads_auth_events_total counter")
	for _, event := range authEvents {
		fmt.Fprintf(w, "shelfreads_auth_events_total{event=%q} %d\n", event, r.authEvents[event])
	}

	fmt.Fprintln(w, "# HELP shelfreads_review_events_total Review mutations by type")
	fmt.Fprintln(w, "# TYPE shelfreads_review_events_total counter")
	for _, event := range reviewEvents {
		fmt.Fprintf(w, "shelfreads_review_events_total{event=%q} %d\n", event, r.reviewEvents[event])
	}
}

func (r *Recorder) sortedRequestLabels() []requestLabel {
	labels := make([]requestLabel, 0, len(r.requestCount))
	for label := range r.requestCount {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool {
		if labels[i].path != labels[j].path {
			return labels[i].path < labels[j].path
		}
		if labels[i].method != labels[j].method {
			return labels[i].method < labels[j].method
		}
		return labels[i].status < labels[j].status
	})
	return labels
}

func sortedKeys(m map[string]uint64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// normalizePath collapses catalog IDs and free-text lookup segments so label
// cardinality stays bounded regardless of request volume.
func normalizePath(path string) string {
	if path == "" || path == "/" {
		return "/"
	}
	parts := strings.Split(strings.TrimSuffix(path, "/"), "/")
	for i := 0; i < len(parts); i++ {
		switch parts[i] {
		case "author", "title":
			if i+1 < len(parts) {
				parts[i+1] = ":query"
				i++
			}
		case "books":
			if i+1 < len(parts) && parts[i+1] != "author" && parts[i+1] != "title" {
				parts[i+1] = ":id"
				i++
			}
		}
	}
	normalized := strings.Join(parts, "/")
	if !strings.HasPrefix(normalized, "/") {
		normalized = "/" + normalized
	}
	return normalized
}
