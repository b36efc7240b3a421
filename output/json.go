package output

import (
	"runtime"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/ChristianF88/pradix/bench"
	"github.com/ChristianF88/pradix/verify"
	"github.com/ChristianF88/pradix/version"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Report is the machine-readable result of one command.
type Report struct {
	Metadata    Metadata            `json:"metadata"`
	Run         *Run                `json:"run,omitempty"`
	Benchmark   []bench.Measurement `json:"benchmark,omitempty"`
	Correctness *Correctness        `json:"correctness,omitempty"`
	Warnings    []Warning           `json:"warnings"`
	Errors      []Error             `json:"errors"`

	// Mutex for thread-safe warning/error appending
	mu sync.Mutex `json:"-"`
}

// Metadata describes the invocation.
type Metadata struct {
	GeneratedAt time.Time `json:"generated_at"`
	Command     string    `json:"command"`
	Version     string    `json:"version"`
	GOMAXPROCS  int       `json:"gomaxprocs"`
	DurationMS  int64     `json:"duration_ms"`
}

// Run is a single sort.
type Run struct {
	Mode      string         `json:"mode"`
	N         int            `json:"n"`
	Workers   int            `json:"workers"`
	Seed      uint64         `json:"seed"`
	ElapsedS  float64        `json:"elapsed_s"`
	MergeS    float64        `json:"merge_s,omitempty"`
	Passes    int            `json:"passes"`
	GlobalMax uint32         `json:"global_max"`
	Verified  bool           `json:"verified"`
	Inversion *verify.Report `json:"inversion,omitempty"`
	// Head is a prefix of the sorted output.
	Head []uint32 `json:"head,omitempty"`
}

// Correctness summarizes the fixed-case suite.
type Correctness struct {
	Passed int                `json:"passed"`
	Failed int                `json:"failed"`
	Cases  []bench.CaseResult `json:"cases"`
	Sample *bench.Trace       `json:"sample,omitempty"`
}

// Warning represents a warning message
type Warning struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Error represents an error message
type Error struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// NewReport creates a report for command, timed from startTime.
func NewReport(command string, startTime time.Time) *Report {
	return &Report{
		Metadata: Metadata{
			GeneratedAt: time.Now().UTC(),
			Command:     command,
			Version:     version.Version,
			GOMAXPROCS:  runtime.GOMAXPROCS(0),
			DurationMS:  time.Since(startTime).Milliseconds(),
		},
		Warnings: []Warning{},
		Errors:   []Error{},
	}
}

// NewCorrectness tallies case results.
func NewCorrectness(cases []bench.CaseResult, sample *bench.Trace) *Correctness {
	c := &Correctness{Cases: cases, Sample: sample}
	for _, r := range cases {
		if r.OK {
			c.Passed++
		} else {
			c.Failed++
		}
	}
	return c
}

// OK reports whether the report carries no failure: no errors, a verified
// run and a clean correctness suite.
func (r *Report) OK() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.Errors) > 0 {
		return false
	}
	if r.Run != nil && !r.Run.Verified {
		return false
	}
	if r.Correctness != nil && r.Correctness.Failed > 0 {
		return false
	}
	for _, m := range r.Benchmark {
		if !m.Verified {
			return false
		}
	}
	return true
}

// ToJSON converts the report to pretty-printed JSON
func (r *Report) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// ToCompactJSON converts the report to compact JSON
func (r *Report) ToCompactJSON() ([]byte, error) {
	return json.Marshal(r)
}

// AddWarning adds a warning to the report (thread-safe)
func (r *Report) AddWarning(warningType, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Warnings = append(r.Warnings, Warning{Type: warningType, Message: message})
}

// AddError adds an error to the report (thread-safe)
func (r *Report) AddError(errorType, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Errors = append(r.Errors, Error{Type: errorType, Message: message})
}

// UpdateDuration updates the duration in metadata
func (r *Report) UpdateDuration(startTime time.Time) {
	r.Metadata.DurationMS = time.Since(startTime).Milliseconds()
}
