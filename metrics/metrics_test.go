package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveSort(t *testing.T) {
	before := testutil.ToFloat64(CounterSortedElements.WithLabelValues("test"))
	passes := testutil.ToFloat64(CounterDigitPasses.WithLabelValues("test"))
	ObserveSort("test", 1000, 3*time.Millisecond, 3)

	if got := testutil.ToFloat64(CounterSortedElements.WithLabelValues("test")) - before; got != 1000 {
		t.Fatalf("sorted elements grew by %v, want 1000", got)
	}
	if got := testutil.ToFloat64(CounterDigitPasses.WithLabelValues("test")) - passes; got != 3 {
		t.Fatalf("digit passes grew by %v, want 3", got)
	}
}

func TestVerificationFailed(t *testing.T) {
	before := testutil.ToFloat64(CounterVerificationFailures.WithLabelValues("shm"))
	VerificationFailed("shm")
	if got := testutil.ToFloat64(CounterVerificationFailures.WithLabelValues("shm")); got != before+1 {
		t.Fatalf("got %v, want %v", got, before+1)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	ObserveSort("scrape", 5, time.Millisecond, 1)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	for _, name := range []string{
		`pradix_sorted_elements_total{mode="scrape"}`,
		"pradix_sort_duration_seconds_bucket",
	} {
		if !strings.Contains(string(body), name) {
			t.Fatalf("metrics output lacks %s", name)
		}
	}
}

func TestServe(t *testing.T) {
	srv, err := Serve("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Serve: %v", err)
	}
	defer srv.Close()

	if _, err := Serve("256.0.0.1:0"); err == nil {
		t.Fatal("expected error for invalid address")
	}
}
