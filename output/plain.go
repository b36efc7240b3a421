package output

import (
	"fmt"
	"io"
	"strings"
)

// WritePlain writes the report in human-readable form.
func (r *Report) WritePlain(w io.Writer) error {
	var b strings.Builder

	if run := r.Run; run != nil {
		fmt.Fprintf(&b, "Sorted %d integers (%s, %d workers) in %.3f s.\n", run.N, run.Mode, run.Workers, run.ElapsedS)
		if run.MergeS > 0 {
			fmt.Fprintf(&b, "Merge took %.3f s.\n", run.MergeS)
		}
		if !run.Verified && run.Inversion != nil {
			fmt.Fprintf(&b, "Verification failed at index %d (%d > %d).\n", run.Inversion.Index, run.Inversion.Prev, run.Inversion.Next)
		}
		if len(run.Head) > 0 {
			fmt.Fprintf(&b, "First %d: %s\n", len(run.Head), join(run.Head))
		}
	}

	if c := r.Correctness; c != nil {
		for i, cr := range c.Cases {
			status := "PASS"
			if !cr.OK {
				status = "FAIL"
			}
			fmt.Fprintf(&b, "[correctness] test %d %-10s %-10s (n=%d): %s\n", i, cr.Case, cr.Mode, len(cr.Want), status)
		}
		fmt.Fprintf(&b, "%d passed, %d failed\n", c.Passed, c.Failed)
		if s := c.Sample; s != nil {
			fmt.Fprintf(&b, "\n=== Sample of %d integers ===\n", len(s.Input))
			fmt.Fprintf(&b, "Unsorted: %s\n", join(s.Input))
			for _, p := range s.Passes {
				fmt.Fprintf(&b, "place %-5d %s\n", p.Place, join(p.Data))
			}
			fmt.Fprintf(&b, "Sorted:   %s\n", join(s.Output))
		}
	}

	for _, m := range r.Benchmark {
		suffix := ""
		if !m.Verified {
			suffix = " (verify FAILED)"
		}
		fmt.Fprintf(&b, "n = %10d | %-10s | workers = %2d | time = %.6f s%s\n", m.Size, m.Mode, m.Workers, m.Elapsed.Seconds(), suffix)
	}

	for _, wn := range r.Warnings {
		fmt.Fprintf(&b, "warning: %s: %s\n", wn.Type, wn.Message)
	}
	for _, e := range r.Errors {
		fmt.Fprintf(&b, "error: %s: %s\n", e.Type, e.Message)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func join(values []uint32) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, " ")
}
