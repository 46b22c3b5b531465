package metrics

import (
	"bytes"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNormalizePath(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{in: "", want: "/"},
		{in: "/", want: "/"},
		{in: "/api/v1/drivers/12/", want: "/api/v1/drivers/:id/"},
		{in: "/api/v1/drivers/by-team/3/", want: "/api/v1/drivers/by-team/:id/"},
		{in: "/api/v1/teams/abc123/", want: "/api/v1/teams/abc123/"},
		{in: "api/v1/races/7", want: "/api/v1/races/:id"},
		{in: "/api/health/", want: "/api/health/"},
	}
	for _, tc := range cases {
		if got := normalizePath(tc.in); got != tc.want {
			t.Errorf("normalizePath(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestObserveRequestAggregatesByLabel(t *testing.T) {
	recorder := New()
	recorder.ObserveRequest("get", "/api/v1/drivers/1/", 200, 10*time.Millisecond)
	recorder.ObserveRequest("GET", "/api/v1/drivers/2/", 200, 30*time.Millisecond)
	recorder.ObserveRequest("GET", "/api/v1/drivers/2/", 404, 5*time.Millisecond)

	if got := recorder.RequestCount("GET", "/api/v1/drivers/9/", 200); got != 2 {
		t.Fatalf("expected 2 requests for 200 label, got %d", got)
	}
	if got := recorder.RequestCount("GET", "/api/v1/drivers/9/", 404); got != 1 {
		t.Fatalf("expected 1 request for 404 label, got %d", got)
	}

	dl := durationLabel{method: "GET", path: "/api/v1/drivers/:id/"}
	if recorder.durationCount[dl] != 3 {
		t.Fatalf("expected duration count 3, got %d", recorder.durationCount[dl])
	}
	if recorder.durationSumMS[dl] != 45 {
		t.Fatalf("expected duration sum 45ms, got %f", recorder.durationSumMS[dl])
	}
}

func TestInflightGaugeConcurrent(t *testing.T) {
	recorder := New()

	var wg sync.WaitGroup
	incs := 100
	decs := 150

	wg.Add(incs)
	for i := 0; i < incs; i++ {
		go func() {
			defer wg.Done()
			recorder.IncInflight()
		}()
	}
	wg.Wait()

	wg.Add(decs)
	for i := 0; i < decs; i++ {
		go func() {
			defer wg.Done()
			recorder.DecInflight()
		}()
	}
	wg.Wait()

	if got := recorder.Inflight(); got != 0 {
		t.Fatalf("inflight gauge should not go negative; got %d", got)
	}
}

func TestResetClearsCounters(t *testing.T) {
	recorder := New()
	started := recorder.StartTime()
	recorder.ObserveRequest("GET", "/api/health/", 200, time.Millisecond)
	recorder.IncInflight()

	recorder.Reset()

	if got := recorder.RequestCount("GET", "/api/health/", 200); got != 0 {
		t.Fatalf("expected counters to reset, got %d", got)
	}
	if got := recorder.Inflight(); got != 0 {
		t.Fatalf("expected inflight to reset, got %d", got)
	}
	if !recorder.StartTime().Equal(started) {
		t.Fatalf("expected start time to survive reset")
	}
}

func TestWriteAndHandlerOutput(t *testing.T) {
	recorder := New()
	recorder.startedAt = time.Unix(1700000000, 0)

	recorder.ObserveRequest("GET", "/api/v1/teams/4/", 200, 150*time.Millisecond)
	recorder.ObserveRequest("get", "/api/v1/teams/5/", 200, 50*time.Millisecond)
	recorder.ObserveRequest("POST", "/api/v1/teams/", 201, time.Second)
	recorder.ObserveRequest("GET", "/api/health/", 200, 2*time.Millisecond)
	recorder.IncInflight()

	var buf bytes.Buffer
	recorder.Write(&buf)

	expected := `# HELP motorsport_http_requests_total Total HTTP requests processed.
# TYPE motorsport_http_requests_total counter
motorsport_http_requests_total{method="GET",path="/api/health/",status="200"} 1
motorsport_http_requests_total{method="GET",path="/api/v1/teams/:id/",status="200"} 2
motorsport_http_requests_total{method="POST",path="/api/v1/teams/",status="201"} 1
# HELP motorsport_http_request_duration_ms_sum Total request duration in milliseconds.
# TYPE motorsport_http_request_duration_ms_sum counter
motorsport_http_request_duration_ms_sum{method="GET",path="/api/health/"} 2.000
motorsport_http_request_duration_ms_sum{method="GET",path="/api/v1/teams/:id/"} 200.000
motorsport_http_request_duration_ms_sum{method="POST",path="/api/v1/teams/"} 1000.000
# HELP motorsport_http_request_duration_ms_count Total number of timed requests.
# TYPE motorsport_http_request_duration_ms_count counter
motorsport_http_request_duration_ms_count{method="GET",path="/api/health/"} 1
motorsport_http_request_duration_ms_count{method="GET",path="/api/v1/teams/:id/"} 2
motorsport_http_request_duration_ms_count{method="POST",path="/api/v1/teams/"} 1
# HELP motorsport_http_inflight_requests Current in-flight HTTP requests.
# TYPE motorsport_http_inflight_requests gauge
motorsport_http_inflight_requests 1
# HELP motorsport_process_start_time_seconds Process start time in unix epoch seconds.
# TYPE motorsport_process_start_time_seconds gauge
motorsport_process_start_time_seconds 1700000000.000`

	if diff := compareLines(buf.String(), expected); diff != "" {
		t.Fatalf("unexpected write output:\n%s", diff)
	}

	res := httptest.NewRecorder()
	recorder.Handler().ServeHTTP(res, httptest.NewRequest("GET", "/metrics", nil))

	if contentType := res.Result().Header.Get("Content-Type"); !strings.HasPrefix(contentType, "text/plain") {
		t.Fatalf("unexpected content type: %s", contentType)
	}
	if diff := compareLines(res.Body.String(), expected); diff != "" {
		t.Fatalf("unexpected handler output:\n%s", diff)
	}
}

func TestWriteEscapesLabelValues(t *testing.T) {
	recorder := New()
	recorder.ObserveRequest("GET", "/api/\"quoted\"\\path\n", 200, time.Millisecond)

	var buf bytes.Buffer
	recorder.Write(&buf)

	want := `path="/api/\"quoted\"\\path\n"`
	if !strings.Contains(buf.String(), want) {
		t.Fatalf("expected escaped label %s in %q", want, buf.String())
	}
}

func TestRecorderImplementsCollector(t *testing.T) {
	recorder := New()
	recorder.ObserveRequest("GET", "/api/v1/drivers/", 200, time.Millisecond)
	recorder.ObserveRequest("GET", "/api/v1/drivers/", 500, time.Millisecond)

	// two request series, one sum, one count, inflight, start time
	if got := testutil.CollectAndCount(recorder); got != 6 {
		t.Fatalf("expected 6 collected metrics, got %d", got)
	}

	expected := `
# HELP motorsport_http_requests_total Total HTTP requests processed.
# TYPE motorsport_http_requests_total counter
motorsport_http_requests_total{method="GET",path="/api/v1/drivers/",status="200"} 1
motorsport_http_requests_total{method="GET",path="/api/v1/drivers/",status="500"} 1
`
	if err := testutil.CollectAndCompare(recorder, strings.NewReader(expected), "motorsport_http_requests_total"); err != nil {
		t.Fatalf("unexpected collector output: %v", err)
	}
}

func compareLines(actual, expected string) string {
	actualLines := strings.Split(strings.TrimSpace(actual), "\n")
	expectedLines := strings.Split(strings.TrimSpace(expected), "\n")
	if len(actualLines) != len(expectedLines) {
		return formatDiff(actualLines, expectedLines)
	}
	for i := range actualLines {
		if actualLines[i] != expectedLines[i] {
			return formatDiff(actualLines, expectedLines)
		}
	}
	return ""
}

func formatDiff(actual, expected []string) string {
	var b strings.Builder
	b.WriteString("expected\n")
	for _, line := range expected {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteString("got\n")
	for _, line := range actual {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}
