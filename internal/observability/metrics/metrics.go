package metrics

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

type requestLabel struct {
	method string
	path   string
	status string
}

type durationLabel struct {
	method string
	path   string
}

// Recorder aggregates process-wide HTTP counters. A single mutex guards every
// counter and the in-flight gauge; no I/O happens while it is held.
type Recorder struct {
	mu            sync.Mutex
	requestCount  map[requestLabel]uint64
	durationSumMS map[durationLabel]float64
	durationCount map[durationLabel]uint64
	inflight      int64
	startedAt     time.Time
}

var (
	defaultMu       sync.RWMutex
	defaultRecorder = New()
)

// New constructs an empty Recorder whose start time is the current instant.
func New() *Recorder {
	return &Recorder{
		requestCount:  make(map[requestLabel]uint64),
		durationSumMS: make(map[durationLabel]float64),
		durationCount: make(map[durationLabel]uint64),
		startedAt:     time.Now(),
	}
}

// Default returns the process-wide Recorder.
func Default() *Recorder {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultRecorder
}

// SetDefault replaces the process-wide Recorder. Nil is ignored.
func SetDefault(r *Recorder) {
	if r == nil {
		return
	}
	defaultMu.Lock()
	defaultRecorder = r
	defaultMu.Unlock()
}

// ObserveRequest records one completed request. The method is uppercased and
// numeric path segments are collapsed so that label cardinality stays bounded.
func (r *Recorder) ObserveRequest(method, path string, status int, duration time.Duration) {
	m := strings.ToUpper(strings.TrimSpace(method))
	if m == "" {
		m = "UNKNOWN"
	}
	p := normalizePath(path)
	label := requestLabel{method: m, path: p, status: strconv.Itoa(status)}
	dl := durationLabel{method: m, path: p}
	ms := float64(duration) / float64(time.Millisecond)

	r.mu.Lock()
	r.requestCount[label]++
	r.durationSumMS[dl] += ms
	r.durationCount[dl]++
	r.mu.Unlock()
}

// IncInflight marks a request as started.
func (r *Recorder) IncInflight() {
	r.mu.Lock()
	r.inflight++
	r.mu.Unlock()
}

// DecInflight marks a request as finished. The gauge never drops below zero.
func (r *Recorder) DecInflight() {
	r.mu.Lock()
	if r.inflight > 0 {
		r.inflight--
	}
	r.mu.Unlock()
}

// Inflight reports the number of requests currently being served.
func (r *Recorder) Inflight() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inflight
}

// RequestCount returns the counter for a single label tuple.
func (r *Recorder) RequestCount(method, path string, status int) uint64 {
	label := requestLabel{
		method: strings.ToUpper(method),
		path:   normalizePath(path),
		status: strconv.Itoa(status),
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.requestCount[label]
}

// StartTime reports when the recorder was created.
func (r *Recorder) StartTime() time.Time {
	return r.startedAt
}

// Reset clears every counter and the in-flight gauge. The start time is kept.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requestCount = make(map[requestLabel]uint64)
	r.durationSumMS = make(map[durationLabel]float64)
	r.durationCount = make(map[durationLabel]uint64)
	r.inflight = 0
}

type snapshot struct {
	requests      []requestSample
	durations     []durationSample
	inflight      int64
	startUnixSecs float64
}

type requestSample struct {
	label requestLabel
	count uint64
}

type durationSample struct {
	label durationLabel
	sum   float64
	count uint64
}

// snapshot copies the counters under the lock so rendering can happen without it.
func (r *Recorder) snapshot() snapshot {
	r.mu.Lock()
	snap := snapshot{
		requests:      make([]requestSample, 0, len(r.requestCount)),
		durations:     make([]durationSample, 0, len(r.durationCount)),
		inflight:      r.inflight,
		startUnixSecs: float64(r.startedAt.UnixNano()) / float64(time.Second),
	}
	for label, count := range r.requestCount {
		snap.requests = append(snap.requests, requestSample{label: label, count: count})
	}
	for label, count := range r.durationCount {
		snap.durations = append(snap.durations, durationSample{label: label, sum: r.durationSumMS[label], count: count})
	}
	r.mu.Unlock()

	sort.Slice(snap.requests, func(i, j int) bool {
		a, b := snap.requests[i].label, snap.requests[j].label
		if a.method != b.method {
			return a.method < b.method
		}
		if a.path != b.path {
			return a.path < b.path
		}
		return a.status < b.status
	})
	sort.Slice(snap.durations, func(i, j int) bool {
		a, b := snap.durations[i].label, snap.durations[j].label
		if a.method != b.method {
			return a.method < b.method
		}
		return a.path < b.path
	})
	return snap
}

// Handler exposes the Recorder as an http.Handler that writes Prometheus text
// exposition data with the appropriate content type.
func (r *Recorder) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		r.Write(w)
	})
}

// Write renders the counters in Prometheus text format sorted by label tuple.
func (r *Recorder) Write(w io.Writer) {
	snap := r.snapshot()

	fmt.Fprintln(w, "# HELP motorsport_http_requests_total Total HTTP requests processed.")
	fmt.Fprintln(w, "# TYPE motorsport_http_requests_total counter")
	for _, s := range snap.requests {
		fmt.Fprintf(w, "motorsport_http_requests_total{method=\"%s\",path=\"%s\",status=\"%s\"} %d\n",
			escapeLabel(s.label.method), escapeLabel(s.label.path), escapeLabel(s.label.status), s.count)
	}

	fmt.Fprintln(w, "# HELP motorsport_http_request_duration_ms_sum Total request duration in milliseconds.")
	fmt.Fprintln(w, "# TYPE motorsport_http_request_duration_ms_sum counter")
	for _, s := range snap.durations {
		fmt.Fprintf(w, "motorsport_http_request_duration_ms_sum{method=\"%s\",path=\"%s\"} %s\n",
			escapeLabel(s.label.method), escapeLabel(s.label.path), formatFloat(s.sum))
	}

	fmt.Fprintln(w, "# HELP motorsport_http_request_duration_ms_count Total number of timed requests.")
	fmt.Fprintln(w, "# TYPE motorsport_http_request_duration_ms_count counter")
	for _, s := range snap.durations {
		fmt.Fprintf(w, "motorsport_http_request_duration_ms_count{method=\"%s\",path=\"%s\"} %d\n",
			escapeLabel(s.label.method), escapeLabel(s.label.path), s.count)
	}

	fmt.Fprintln(w, "# HELP motorsport_http_inflight_requests Current in-flight HTTP requests.")
	fmt.Fprintln(w, "# TYPE motorsport_http_inflight_requests gauge")
	fmt.Fprintf(w, "motorsport_http_inflight_requests %d\n", snap.inflight)

	fmt.Fprintln(w, "# HELP motorsport_process_start_time_seconds Process start time in unix epoch seconds.")
	fmt.Fprintln(w, "# TYPE motorsport_process_start_time_seconds gauge")
	fmt.Fprintf(w, "motorsport_process_start_time_seconds %s\n", formatFloat(snap.startUnixSecs))
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

var labelEscaper = strings.NewReplacer(`\`, `\\`, "\n", `\n`, `"`, `\"`)

func escapeLabel(value string) string {
	return labelEscaper.Replace(value)
}

// normalizePath replaces digit-only segments with ":id". Trailing slashes are
// kept because they are part of the canonical API routes.
func normalizePath(path string) string {
	if path == "" || path == "/" {
		return "/"
	}
	parts := strings.Split(path, "/")
	for i, part := range parts {
		if part != "" && isDigits(part) {
			parts[i] = ":id"
		}
	}
	normalized := strings.Join(parts, "/")
	if !strings.HasPrefix(normalized, "/") {
		normalized = "/" + normalized
	}
	return normalized
}

func isDigits(segment string) bool {
	for _, r := range segment {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
