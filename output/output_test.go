package output

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ChristianF88/pradix/bench"
	"github.com/ChristianF88/pradix/verify"
)

func TestReportToJSON(t *testing.T) {
	r := NewReport("sort", time.Now())
	r.Run = &Run{
		Mode:      "dist",
		N:         8,
		Workers:   4,
		Seed:      42,
		ElapsedS:  0.0012,
		Passes:    3,
		GlobalMax: 802,
		Verified:  true,
	}

	data, err := r.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	run := decoded["run"].(map[string]any)
	if run["mode"] != "dist" || run["global_max"].(float64) != 802 {
		t.Fatalf("unexpected run section: %v", run)
	}
	if _, ok := decoded["benchmark"]; ok {
		t.Fatal("empty benchmark section must be omitted")
	}
	if decoded["metadata"].(map[string]any)["command"] != "sort" {
		t.Fatal("metadata lacks command")
	}
}

func TestReportCompactJSON(t *testing.T) {
	r := NewReport("bench", time.Now())
	r.Benchmark = []bench.Measurement{{Mode: bench.Stdlib, Size: 10, Elapsed: time.Millisecond, Verified: true}}
	data, err := r.ToCompactJSON()
	if err != nil {
		t.Fatalf("ToCompactJSON: %v", err)
	}
	if bytes.Contains(data, []byte("\n")) {
		t.Fatal("compact JSON contains newlines")
	}
	if !bytes.Contains(data, []byte(`"mode":"stdlib"`)) {
		t.Fatalf("missing measurement: %s", data)
	}
}

func TestReportOK(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *Report)
		want   bool
	}{
		{"empty", func(r *Report) {}, true},
		{"verified run", func(r *Report) { r.Run = &Run{Verified: true} }, true},
		{"failed run", func(r *Report) { r.Run = &Run{} }, false},
		{"failed case", func(r *Report) {
			r.Correctness = NewCorrectness([]bench.CaseResult{{OK: true}, {OK: false}}, nil)
		}, false},
		{"unverified measurement", func(r *Report) {
			r.Benchmark = []bench.Measurement{{Verified: false}}
		}, false},
		{"error", func(r *Report) { r.AddError("transport", "peer gone") }, false},
		{"warning only", func(r *Report) { r.AddWarning("threads", "more threads than values") }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReport("x", time.Now())
			tt.mutate(r)
			if got := r.OK(); got != tt.want {
				t.Fatalf("OK() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewCorrectnessTallies(t *testing.T) {
	c := NewCorrectness([]bench.CaseResult{{OK: true}, {OK: true}, {OK: false}}, nil)
	if c.Passed != 2 || c.Failed != 1 {
		t.Fatalf("got %d passed, %d failed", c.Passed, c.Failed)
	}
}

func TestConcurrentWarningsAndErrors(t *testing.T) {
	r := NewReport("bench", time.Now())
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() { defer wg.Done(); r.AddWarning("w", "m") }()
		go func() { defer wg.Done(); r.AddError("e", "m") }()
	}
	wg.Wait()
	if len(r.Warnings) != 50 || len(r.Errors) != 50 {
		t.Fatalf("got %d warnings, %d errors", len(r.Warnings), len(r.Errors))
	}
}

func TestWritePlain(t *testing.T) {
	r := NewReport("sort", time.Now())
	r.Run = &Run{
		Mode:      "shm",
		N:         1000,
		Workers:   4,
		ElapsedS:  0.5,
		Verified:  false,
		Inversion: &verify.Report{Index: 7, Prev: 9, Next: 3},
	}
	r.Correctness = NewCorrectness([]bench.CaseResult{
		{Case: "three", Mode: bench.Sequential, Want: []uint32{1, 2, 3}, OK: true},
	}, &bench.Trace{
		Input:  []uint32{3, 1},
		Passes: []bench.Pass{{Place: 1, Data: []uint32{1, 3}}},
		Output: []uint32{1, 3},
	})
	r.Benchmark = []bench.Measurement{{Mode: bench.Pargo, Size: 100, Workers: 2, Elapsed: time.Second}}

	var buf bytes.Buffer
	if err := r.WritePlain(&buf); err != nil {
		t.Fatalf("WritePlain: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"Sorted 1000 integers (shm, 4 workers) in 0.500 s.",
		"Verification failed at index 7 (9 > 3).",
		"(n=3): PASS",
		"Unsorted: 3 1",
		"Sorted:   1 3",
		"(verify FAILED)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("plain output lacks %q:\n%s", want, out)
		}
	}
}

func TestPlotPerformance(t *testing.T) {
	results := []bench.Measurement{
		{Mode: bench.Sequential, Size: 100000, Elapsed: 4 * time.Millisecond},
		{Mode: bench.Sequential, Size: 10000, Elapsed: 400 * time.Microsecond},
		{Mode: bench.SharedMemory, Size: 10000, Elapsed: 200 * time.Microsecond},
		{Mode: bench.SharedMemory, Size: 0, Elapsed: time.Microsecond},
	}
	path := filepath.Join(t.TempDir(), "perf.html")
	if err := PlotPerformance(results, path); err != nil {
		t.Fatalf("PlotPerformance: %v", err)
	}
	html, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading chart: %v", err)
	}
	if !bytes.Contains(html, []byte("sequential")) || !bytes.Contains(html, []byte("shm")) {
		t.Fatal("chart lacks series names")
	}
}

func TestPlotPerformanceBadPath(t *testing.T) {
	if err := PlotPerformance(nil, filepath.Join(t.TempDir(), "missing", "perf.html")); err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestSeriesForSortsAndSkipsZero(t *testing.T) {
	results := []bench.Measurement{
		{Mode: bench.Stdlib, Size: 1000, Elapsed: time.Millisecond},
		{Mode: bench.Stdlib, Size: 10, Elapsed: time.Microsecond},
		{Mode: bench.Stdlib, Size: 0, Elapsed: time.Microsecond},
		{Mode: bench.Pargo, Size: 10, Elapsed: time.Microsecond},
	}
	pts := seriesFor(results, bench.Stdlib)
	if len(pts) != 2 {
		t.Fatalf("got %d points, want 2", len(pts))
	}
	if first := pts[0].Value.([]interface{})[0].(int); first != 10 {
		t.Fatalf("first point has size %d, want 10", first)
	}
	if got := modesOf(results); len(got) != 2 || got[0] != bench.Stdlib {
		t.Fatalf("modesOf = %v", got)
	}
}
