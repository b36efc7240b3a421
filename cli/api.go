package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"os/exec"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/toolkits/pkg/logger"

	"github.com/ChristianF88/pradix/bench"
	"github.com/ChristianF88/pradix/config"
	"github.com/ChristianF88/pradix/dist"
	"github.com/ChristianF88/pradix/gen"
	"github.com/ChristianF88/pradix/group"
	"github.com/ChristianF88/pradix/metrics"
	"github.com/ChristianF88/pradix/netgroup"
	"github.com/ChristianF88/pradix/output"
	"github.com/ChristianF88/pradix/tui"
	"github.com/ChristianF88/pradix/verify"
)

var (
	// ErrVerificationFailed is returned when a sorted output contains an
	// inversion.
	ErrVerificationFailed = errors.New("verification failed")
	// ErrCorrectnessFailed is returned when a correctness case mismatches.
	ErrCorrectnessFailed = errors.New("correctness check failed")
)

// stdout receives reports; tests replace it.
var stdout io.Writer = os.Stdout

// ============================================================================
// CONFIGURATION STRUCTS
// ============================================================================

// OutputConfig contains output formatting options
type OutputConfig struct {
	Compact bool
	Plain   bool
	TUI     bool
}

// CorrectnessConfig drives the correctness command.
type CorrectnessConfig struct {
	Modes   []bench.Mode
	Threads int
	Ranks   int
	Sample  int
	Seed    uint64
}

// LaunchConfig drives the launch command.
type LaunchConfig struct {
	Processes int
	Host      string
	// BasePort assigns ports BasePort+rank; 0 picks free ports.
	BasePort int
	LogLevel string
	// Args are passed to every worker after its rank and peers.
	Args []string
}

// ============================================================================
// MAIN ENTRY POINTS
// ============================================================================

// SortFromConfig sorts one input as described by cfg.Sort.
func SortFromConfig(ctx context.Context, cfg *config.Config, out OutputConfig) error {
	start := time.Now()
	stopMetrics, err := startMetrics(cfg.Metrics.Addr)
	if err != nil {
		return err
	}
	defer stopMetrics()

	s := cfg.Sort
	mode, err := bench.ParseMode(s.Mode)
	if err != nil {
		return err
	}

	n := s.N
	var input []uint32
	if s.Input != "" {
		if input, err = readInputFile(s.Input); err != nil {
			return err
		}
		n = len(input)
	}

	run := &output.Run{
		Mode:     string(mode),
		N:        n,
		Workers:  mode.Workers(s.Threads, s.Ranks),
		Seed:     s.Seed,
		Verified: true,
	}

	var sorted []uint32
	if mode == bench.Distributed {
		res, err := sortInProcessGroup(ctx, input, n, s)
		if err != nil {
			return err
		}
		fillRun(run, res)
		sorted = res.Sorted
	} else {
		if input == nil {
			input = gen.Values(n, s.Seed)
		}
		o, err := bench.SortWith(ctx, mode, input, s.Threads, s.Ranks)
		if err != nil {
			return err
		}
		sorted = input
		run.ElapsedS = o.Elapsed.Seconds()
		run.Passes = o.Passes
		if len(sorted) > 0 {
			run.GlobalMax = sorted[len(sorted)-1]
		}
		if s.Verify {
			if r := verify.Check(sorted); !r.OK {
				run.Verified = false
				run.Inversion = &r
			}
		}
	}
	run.Head = head(sorted, s.PrintLimit)

	metrics.ObserveSort(run.Mode, n, time.Duration(run.ElapsedS*float64(time.Second)), run.Passes)
	if !run.Verified {
		metrics.VerificationFailed(run.Mode)
	}

	report := output.NewReport("sort", start)
	report.Run = run
	if !run.Verified {
		report.AddError("verification", run.Inversion.String())
	}
	report.UpdateDuration(start)
	if err := outputResult(report, out, s.JSONFile); err != nil {
		return err
	}
	if !run.Verified {
		return ErrVerificationFailed
	}
	return nil
}

// BenchFromConfig runs the benchmark described by cfg.Bench.
func BenchFromConfig(ctx context.Context, cfg *config.Config, out OutputConfig) error {
	start := time.Now()
	stopMetrics, err := startMetrics(cfg.Metrics.Addr)
	if err != nil {
		return err
	}
	defer stopMetrics()

	opts, err := cfg.BenchOptions()
	if err != nil {
		return err
	}
	opts.Defaults()

	var results []bench.Measurement
	if out.TUI {
		results, err = executeTUI(ctx, opts)
	} else {
		results, err = bench.Run(ctx, opts, func(done, total int, m bench.Measurement) {
			logger.Infof("[%d/%d] %s n=%d %.6f s", done, total, m.Mode, m.Size, m.Elapsed.Seconds())
		})
	}
	if err != nil {
		return err
	}

	report := output.NewReport("bench", start)
	report.Benchmark = results
	if cfg.Bench.PlotPath != "" {
		if err := output.PlotPerformance(results, cfg.Bench.PlotPath); err != nil {
			report.AddWarning("plot", err.Error())
		}
	}
	report.UpdateDuration(start)

	// The dashboard already showed the results.
	if !out.TUI {
		if err := outputResult(report, out, cfg.Bench.JSONFile); err != nil {
			return err
		}
	} else if err := writeJSONFile(report, cfg.Bench.JSONFile); err != nil {
		return err
	}
	if !report.OK() {
		return ErrVerificationFailed
	}
	return nil
}

// Correctness runs the fixed-case suite and optionally traces a sample sort.
func Correctness(ctx context.Context, cc CorrectnessConfig, out OutputConfig) error {
	start := time.Now()
	cases, err := bench.Correctness(ctx, cc.Modes, cc.Threads, cc.Ranks)
	if err != nil {
		return err
	}
	var sample *bench.Trace
	if cc.Sample > 0 {
		tr := bench.Sample(cc.Sample, cc.Seed)
		sample = &tr
	}

	report := output.NewReport("correctness", start)
	report.Correctness = output.NewCorrectness(cases, sample)
	report.UpdateDuration(start)
	if err := outputResult(report, out, ""); err != nil {
		return err
	}
	if report.Correctness.Failed > 0 {
		return ErrCorrectnessFailed
	}
	return nil
}

// Worker joins a TCP process group as rank and takes part in one
// distributed sort. Only root reports.
func Worker(ctx context.Context, cfg *config.Config, rank, root int, out OutputConfig) error {
	start := time.Now()
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	stopMetrics, err := startMetrics(cfg.Metrics.Addr)
	if err != nil {
		return err
	}
	defer stopMetrics()

	s := cfg.Sort
	n := s.N
	var input []uint32
	if rank == root && s.Input != "" {
		if input, err = readInputFile(s.Input); err != nil {
			return err
		}
		n = len(input)
	}

	// The lumberjack server logs connection teardown through the log package.
	log.SetOutput(netgroup.LogWriter(logger.Debugf))
	log.SetFlags(0)
	defer func() {
		log.SetOutput(os.Stderr)
		log.SetFlags(log.LstdFlags)
	}()

	comm, err := netgroup.Dial(cfg.NetConfig(rank))
	if err != nil {
		return err
	}
	defer comm.Close()

	// Only root knows the length of a file input.
	nn, err := comm.Bcast(ctx, root, uint64(n))
	if err != nil {
		return err
	}
	n = int(nn)

	res, err := dist.Sort(ctx, comm, input, n, dist.Options{Root: root, Verify: s.Verify, Seed: s.Seed})
	if err != nil {
		return err
	}
	// Keep every listener up until all ranks are done sending.
	if err := comm.Barrier(ctx); err != nil {
		return err
	}

	if rank != root {
		logger.Infof("rank %d sorted share %d..%d", rank, res.Share.Offset, res.Share.End())
		return nil
	}

	run := &output.Run{
		Mode:     string(bench.Distributed),
		N:        n,
		Workers:  comm.Size(),
		Seed:     s.Seed,
		Verified: true,
	}
	fillRun(run, res)
	run.Head = head(res.Sorted, s.PrintLimit)
	metrics.ObserveSort(run.Mode, n, res.Elapsed, res.Passes)

	report := output.NewReport("worker", start)
	report.Run = run
	if !run.Verified {
		metrics.VerificationFailed(run.Mode)
		report.AddError("verification", run.Inversion.String())
	}
	report.UpdateDuration(start)
	if err := outputResult(report, out, s.JSONFile); err != nil {
		return err
	}
	if !run.Verified {
		return ErrVerificationFailed
	}
	return nil
}

// Launch starts lc.Processes worker processes of this executable on
// loopback-style addresses and waits for all of them. Rank 0 is root and
// writes the report; when any worker fails the rest are killed.
func Launch(ctx context.Context, lc LaunchConfig) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	peers, err := allocatePeers(lc.Host, lc.Processes, lc.BasePort)
	if err != nil {
		return err
	}
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to locate executable: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	for rank := 0; rank < lc.Processes; rank++ {
		args := []string{}
		if lc.LogLevel != "" {
			args = append(args, "--logLevel", lc.LogLevel)
		}
		args = append(args, "worker", "--rank", strconv.Itoa(rank), "--peers", strings.Join(peers, ","))
		args = append(args, lc.Args...)

		cmd := exec.CommandContext(ctx, exe, args...)
		cmd.Stderr = os.Stderr
		if rank == 0 {
			cmd.Stdout = stdout
		}
		if err := cmd.Start(); err != nil {
			cancel()
			wg.Wait()
			return fmt.Errorf("failed to start rank %d: %w", rank, err)
		}
		logger.Debugf("started rank %d (pid %d) on %s", rank, cmd.Process.Pid, peers[rank])

		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			if err := cmd.Wait(); err != nil {
				once.Do(func() {
					firstErr = fmt.Errorf("rank %d: %w", rank, err)
					cancel()
				})
			}
		}(rank)
	}
	wg.Wait()
	return firstErr
}

// ============================================================================
// EXECUTION HELPERS
// ============================================================================

func sortInProcessGroup(ctx context.Context, input []uint32, n int, s config.SortConfig) (*dist.Result, error) {
	comms, err := group.NewLocal(s.Ranks)
	if err != nil {
		return nil, err
	}
	var root *dist.Result
	err = group.Run(ctx, comms, func(ctx context.Context, c *group.Comm) error {
		var in []uint32
		if c.Rank() == 0 {
			in = input
		}
		res, err := dist.Sort(ctx, c, in, n, dist.Options{Verify: s.Verify, Seed: s.Seed})
		if err == nil && c.Rank() == 0 {
			root = res
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return root, nil
}

func fillRun(run *output.Run, res *dist.Result) {
	run.ElapsedS = res.Elapsed.Seconds()
	run.MergeS = res.Merge.Seconds()
	run.Passes = res.Passes
	run.GlobalMax = res.GlobalMax
	run.Verified = res.Verified
	if !res.Verified {
		inv := res.Inversion
		run.Inversion = &inv
	}
}

func executeTUI(ctx context.Context, opts bench.Options) ([]bench.Measurement, error) {
	app := tui.NewApp(opts)
	// Quitting the dashboard stops the benchmark.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		results []bench.Measurement
		runErr  error
		done    = make(chan struct{})
	)
	go func() {
		defer close(done)
		results, runErr = bench.Run(ctx, opts, app.Observe)
		app.Finish(runErr)
	}()

	if err := app.Run(); err != nil {
		cancel()
		<-done
		return nil, fmt.Errorf("tui failed: %w", err)
	}
	cancel()
	<-done
	return results, runErr
}

func startMetrics(addr string) (func(), error) {
	if addr == "" {
		return func() {}, nil
	}
	srv, err := metrics.Serve(addr)
	if err != nil {
		return nil, fmt.Errorf("failed to serve metrics: %w", err)
	}
	logger.Infof("serving metrics on %s", addr)
	return func() { _ = srv.Close() }, nil
}

// allocatePeers returns one listen address per rank. With basePort 0 it
// reserves free ports by briefly listening on them.
func allocatePeers(host string, n, basePort int) ([]string, error) {
	peers := make([]string, n)
	if basePort > 0 {
		for r := range peers {
			peers[r] = net.JoinHostPort(host, strconv.Itoa(basePort+r))
		}
		return peers, nil
	}

	listeners := make([]net.Listener, 0, n)
	defer func() {
		for _, ln := range listeners {
			ln.Close()
		}
	}()
	for r := range peers {
		ln, err := net.Listen("tcp", net.JoinHostPort(host, "0"))
		if err != nil {
			return nil, fmt.Errorf("failed to reserve a port on %s: %w", host, err)
		}
		listeners = append(listeners, ln)
		peers[r] = ln.Addr().String()
	}
	return peers, nil
}

func head(sorted []uint32, limit int) []uint32 {
	if limit <= 0 {
		return nil
	}
	return sorted[:min(limit, len(sorted))]
}

// ============================================================================
// INPUT
// ============================================================================

func readInputFile(path string) ([]uint32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	defer f.Close()
	return parseValues(f)
}

// parseValues reads whitespace-separated non-negative integers that fit in
// 32 bits.
func parseValues(r io.Reader) ([]uint32, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	sc.Split(bufio.ScanWords)

	var values []uint32
	for sc.Scan() {
		v, err := strconv.ParseUint(sc.Text(), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("value %d: invalid integer %q", len(values), sc.Text())
		}
		values = append(values, uint32(v))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	if values == nil {
		values = []uint32{}
	}
	return values, nil
}

// ============================================================================
// OUTPUT
// ============================================================================

func writeJSONFile(report *output.Report, path string) error {
	if path == "" {
		return nil
	}
	data, err := report.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

func outputResult(report *output.Report, out OutputConfig, jsonFile string) error {
	if err := writeJSONFile(report, jsonFile); err != nil {
		return err
	}
	if out.Plain {
		return report.WritePlain(stdout)
	}

	var (
		data []byte
		err  error
	)
	if out.Compact {
		data, err = report.ToCompactJSON()
	} else {
		data, err = report.ToJSON()
	}
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	_, err = fmt.Fprintln(stdout, string(data))
	return err
}
