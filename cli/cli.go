package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	cli "github.com/urfave/cli/v2"

	"github.com/ChristianF88/pradix/bench"
	"github.com/ChristianF88/pradix/config"
	"github.com/ChristianF88/pradix/logx"
	"github.com/ChristianF88/pradix/netgroup"
	"github.com/ChristianF88/pradix/version"
)

// parseDate attempts to parse the build date
func parseDate(d string) time.Time {
	t, err := time.Parse(time.RFC3339, d)
	if err != nil {
		return time.Now()
	}
	return t
}

// Shared flag definitions to eliminate duplication
var (
	// Global flags
	logLevelFlag = &cli.StringFlag{
		Name:  "logLevel",
		Usage: "Log severity: DEBUG, INFO, WARNING, ERROR",
		Value: "INFO",
	}

	// Configuration flags
	configFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "Path to configuration file (mutually exclusive with other flags)",
	}

	// Input flags
	nFlag = &cli.IntFlag{
		Name:  "n",
		Usage: "Number of random integers to sort",
		Value: 1_000_000,
	}
	seedFlag = &cli.Uint64Flag{
		Name:  "seed",
		Usage: "Seed of the random input",
		Value: 42,
	}
	inputFlag = &cli.StringFlag{
		Name:  "input",
		Usage: "File of whitespace-separated integers to sort instead of random input",
	}
	verifyFlag = &cli.BoolFlag{
		Name:  "verify",
		Usage: "Check that the output is sorted",
	}

	// Strategy flags
	modeFlag = &cli.StringFlag{
		Name:  "mode",
		Usage: "Sort strategy: sequential, shm, dist, pargo or stdlib",
		Value: string(bench.SharedMemory),
	}
	threadsFlag = &cli.IntFlag{
		Name:  "threads",
		Usage: "Worker goroutines of the shared-memory sort (default: GOMAXPROCS)",
	}
	ranksFlag = &cli.IntFlag{
		Name:  "ranks",
		Usage: "Members of the in-process group of a distributed sort",
		Value: 4,
	}

	// Benchmark flags
	sizesFlag = &cli.StringFlag{
		Name:  "sizes",
		Usage: "Comma-separated input sizes (e.g., '10000,100000')",
	}
	modesFlag = &cli.StringFlag{
		Name:  "modes",
		Usage: "Comma-separated sort strategies to compare (default: all)",
	}
	repeatFlag = &cli.IntFlag{
		Name:  "repeat",
		Usage: "Runs per size and mode; the fastest is reported",
		Value: 1,
	}
	sampleFlag = &cli.IntFlag{
		Name:  "sample",
		Usage: "Size of the traced sample sort (0 disables it)",
		Value: 20,
	}

	// Process group flags
	rankFlag = &cli.IntFlag{
		Name:  "rank",
		Usage: "Rank of this process in the group",
	}
	rootFlag = &cli.IntFlag{
		Name:  "root",
		Usage: "Rank that holds the input and receives the result",
	}
	peersFlag = &cli.StringFlag{
		Name:  "peers",
		Usage: "Comma-separated listen addresses of all ranks, in rank order",
	}
	npFlag = &cli.IntFlag{
		Name:  "np",
		Usage: "Number of worker processes to launch",
		Value: 4,
	}
	hostFlag = &cli.StringFlag{
		Name:  "host",
		Usage: "Address the launched workers listen on",
		Value: "127.0.0.1",
	}
	basePortFlag = &cli.IntFlag{
		Name:  "basePort",
		Usage: "First port of the launched workers (0 picks free ports)",
	}
	dialTimeoutFlag = &cli.DurationFlag{
		Name:  "dialTimeout",
		Usage: "How long to wait for peers to come up",
		Value: netgroup.DefaultDialTimeout,
	}
	readTimeoutFlag = &cli.DurationFlag{
		Name:  "readTimeout",
		Usage: "Idle timeout of peer connections",
		Value: netgroup.DefaultReadTimeout,
	}

	// Output flags
	jsonFileFlag = &cli.StringFlag{
		Name:  "jsonFile",
		Usage: "Also write the JSON report to this file",
	}
	plotPathFlag = &cli.StringFlag{
		Name:  "plotPath",
		Usage: "Path where to save the performance chart (e.g., '/path/to/perf.html')",
	}
	printFlag = &cli.IntFlag{
		Name:  "print",
		Usage: "Include the first N sorted values in the report",
	}
	compactFlag = &cli.BoolFlag{
		Name:  "compact",
		Usage: "Output compact JSON (no pretty printing)",
		Value: false,
	}
	plainFlag = &cli.BoolFlag{
		Name:  "plain",
		Usage: "Output plain text format for easy readability",
		Value: false,
	}
	tuiFlag = &cli.BoolFlag{
		Name:  "tui",
		Usage: "Show the benchmark in a terminal dashboard",
		Value: false,
	}
	metricsAddrFlag = &cli.StringFlag{
		Name:  "metricsAddr",
		Usage: "Serve Prometheus metrics on this address (e.g., ':9100')",
	}
)

// Shared validation functions
func validateConfigModeFlags(c *cli.Context, allowedFlags []string) error {
	allowed := make(map[string]bool)
	for _, flag := range allowedFlags {
		allowed[flag] = true
	}

	flagsToCheck := []string{
		"n", "seed", "input", "verify", "mode", "threads", "ranks",
		"sizes", "modes", "repeat", "root", "peers",
		"dialTimeout", "readTimeout", "jsonFile", "plotPath", "print",
		"compact", "plain", "tui", "metricsAddr",
	}

	for _, flag := range flagsToCheck {
		if c.IsSet(flag) && !allowed[flag] {
			return fmt.Errorf("when using --config, only %v flags are allowed", allowedFlags)
		}
	}
	return nil
}

func validateOutputPath(path string) error {
	if path != "" {
		dir := filepath.Dir(path)
		if dir == "." {
			dir, _ = os.Getwd()
		}
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			return fmt.Errorf("output directory does not exist: %s", dir)
		}
	}
	return nil
}

func validateInputFileExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("input file does not exist: %s", path)
	}
	return nil
}

// splitList splits a comma-separated flag value, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseSizes(s string) ([]int, error) {
	var sizes []int
	for _, part := range splitList(s) {
		var n int
		if _, err := fmt.Sscanf(part, "%d", &n); err != nil || fmt.Sprint(n) != part {
			return nil, fmt.Errorf("invalid size %q", part)
		}
		if n < 0 {
			return nil, fmt.Errorf("n must be non-negative, got %d", n)
		}
		sizes = append(sizes, n)
	}
	return sizes, nil
}

func outputConfig(c *cli.Context) OutputConfig {
	return OutputConfig{
		Compact: c.Bool("compact"),
		Plain:   c.Bool("plain"),
		TUI:     c.Bool("tui"),
	}
}

// loadConfig loads a config file and applies its [log] section.
func loadConfig(path string) (*config.Config, func(), error) {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	closeLog, err := logx.Init(cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log configuration: %w", err)
	}
	// Only file backends need flushing; stderr stays usable for later runs.
	if cfg.Log.Output != "file" {
		closeLog = func() {}
	}
	return cfg, closeLog, nil
}

// Command handler functions to reduce deep nesting

// handleSortCommand processes the sort command
func handleSortCommand(c *cli.Context) error {
	configPath := c.String("config")
	if configPath != "" {
		return handleSortConfigMode(c, configPath)
	}
	return handleSortFlagsMode(c)
}

func handleSortConfigMode(c *cli.Context, configPath string) error {
	if err := validateConfigModeFlags(c, []string{"compact", "plain", "metricsAddr"}); err != nil {
		return err
	}
	cfg, closeLog, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	defer closeLog()
	if c.IsSet("metricsAddr") {
		cfg.Metrics.Addr = c.String("metricsAddr")
	}
	if err := cfg.ValidateSort(); err != nil {
		return fmt.Errorf("invalid sort configuration: %w", err)
	}
	return SortFromConfig(c.Context, cfg, outputConfig(c))
}

func handleSortFlagsMode(c *cli.Context) error {
	cfg := config.Default()
	cfg.Sort.N = c.Int("n")
	cfg.Sort.Seed = c.Uint64("seed")
	cfg.Sort.Verify = c.Bool("verify")
	cfg.Sort.Mode = c.String("mode")
	if c.IsSet("threads") {
		cfg.Sort.Threads = c.Int("threads")
	}
	cfg.Sort.Ranks = c.Int("ranks")
	cfg.Sort.Input = c.String("input")
	cfg.Sort.JSONFile = c.String("jsonFile")
	cfg.Sort.PrintLimit = c.Int("print")
	cfg.Metrics.Addr = c.String("metricsAddr")

	if cfg.Sort.Input != "" && c.IsSet("n") {
		return fmt.Errorf("--n and --input are mutually exclusive")
	}
	if cfg.Sort.Input != "" {
		if err := validateInputFileExists(cfg.Sort.Input); err != nil {
			return err
		}
	}
	if err := validateOutputPath(cfg.Sort.JSONFile); err != nil {
		return err
	}
	if err := cfg.ValidateSort(); err != nil {
		return err
	}
	return SortFromConfig(c.Context, cfg, outputConfig(c))
}

// handleBenchCommand processes the bench command
func handleBenchCommand(c *cli.Context) error {
	configPath := c.String("config")
	if configPath != "" {
		return handleBenchConfigMode(c, configPath)
	}
	return handleBenchFlagsMode(c)
}

func handleBenchConfigMode(c *cli.Context, configPath string) error {
	if err := validateConfigModeFlags(c, []string{"tui", "compact", "plain", "metricsAddr"}); err != nil {
		return err
	}
	cfg, closeLog, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	defer closeLog()
	if c.IsSet("metricsAddr") {
		cfg.Metrics.Addr = c.String("metricsAddr")
	}
	if err := cfg.ValidateBench(); err != nil {
		return fmt.Errorf("invalid bench configuration: %w", err)
	}
	return BenchFromConfig(c.Context, cfg, outputConfig(c))
}

func handleBenchFlagsMode(c *cli.Context) error {
	cfg := config.Default()
	if s := c.String("sizes"); s != "" {
		sizes, err := parseSizes(s)
		if err != nil {
			return err
		}
		cfg.Bench.Sizes = sizes
	}
	cfg.Bench.Modes = splitList(c.String("modes"))
	if c.IsSet("threads") {
		cfg.Bench.Threads = c.Int("threads")
	}
	cfg.Bench.Ranks = c.Int("ranks")
	cfg.Bench.Repeat = c.Int("repeat")
	cfg.Bench.Seed = c.Uint64("seed")
	cfg.Bench.Verify = c.Bool("verify")
	cfg.Bench.JSONFile = c.String("jsonFile")
	cfg.Bench.PlotPath = c.String("plotPath")
	cfg.Metrics.Addr = c.String("metricsAddr")

	if err := cfg.ValidateBench(); err != nil {
		return err
	}
	return BenchFromConfig(c.Context, cfg, outputConfig(c))
}

// handleCorrectnessCommand runs the fixed-case suite
func handleCorrectnessCommand(c *cli.Context) error {
	modeNames := splitList(c.String("modes"))
	if len(modeNames) == 0 {
		modeNames = []string{string(bench.Sequential), string(bench.SharedMemory), string(bench.Distributed)}
	}
	modes, err := bench.ParseModes(modeNames)
	if err != nil {
		return err
	}
	threads := c.Int("threads")
	if !c.IsSet("threads") {
		threads = config.Default().Sort.Threads
	}
	if threads < 1 {
		return fmt.Errorf("threads must be >= 1, got %d", threads)
	}
	if c.Int("ranks") < 1 {
		return fmt.Errorf("ranks must be >= 1, got %d", c.Int("ranks"))
	}
	if c.Int("sample") < 0 {
		return fmt.Errorf("sample must be non-negative, got %d", c.Int("sample"))
	}
	return Correctness(c.Context, CorrectnessConfig{
		Modes:   modes,
		Threads: threads,
		Ranks:   c.Int("ranks"),
		Sample:  c.Int("sample"),
		Seed:    c.Uint64("seed"),
	}, outputConfig(c))
}

// handleWorkerCommand runs one member of a TCP process group
func handleWorkerCommand(c *cli.Context) error {
	var cfg *config.Config
	if configPath := c.String("config"); configPath != "" {
		if err := validateConfigModeFlags(c, []string{"root", "compact", "plain", "metricsAddr"}); err != nil {
			return err
		}
		loaded, closeLog, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		defer closeLog()
		cfg = loaded
	} else {
		cfg = config.Default()
		cfg.Sort.N = c.Int("n")
		cfg.Sort.Seed = c.Uint64("seed")
		cfg.Sort.Verify = c.Bool("verify")
		cfg.Sort.Input = c.String("input")
		cfg.Sort.JSONFile = c.String("jsonFile")
		cfg.Sort.PrintLimit = c.Int("print")
		cfg.Cluster.Peers = splitList(c.String("peers"))
		cfg.Cluster.DialTimeout = c.Duration("dialTimeout")
		cfg.Cluster.ReadTimeout = c.Duration("readTimeout")
	}
	cfg.Sort.Mode = string(bench.Distributed)
	if c.IsSet("metricsAddr") {
		cfg.Metrics.Addr = c.String("metricsAddr")
	}

	rank := c.Int("rank")
	if err := cfg.ValidateCluster(rank); err != nil {
		return err
	}
	cfg.Sort.Ranks = len(cfg.Cluster.Peers)
	if err := cfg.ValidateSort(); err != nil {
		return err
	}
	root := c.Int("root")
	if root < 0 || root >= len(cfg.Cluster.Peers) {
		return fmt.Errorf("root %d outside group of %d", root, len(cfg.Cluster.Peers))
	}
	return Worker(c.Context, cfg, rank, root, outputConfig(c))
}

// handleLaunchCommand starts a local TCP process group of worker processes
func handleLaunchCommand(c *cli.Context) error {
	np := c.Int("np")
	if np < 1 {
		return fmt.Errorf("np must be >= 1, got %d", np)
	}
	if c.Int("n") < 0 {
		return fmt.Errorf("n must be non-negative, got %d", c.Int("n"))
	}
	if c.String("input") != "" {
		if err := validateInputFileExists(c.String("input")); err != nil {
			return err
		}
	}

	workerArgs := []string{
		"--n", fmt.Sprint(c.Int("n")),
		"--seed", fmt.Sprint(c.Uint64("seed")),
		"--dialTimeout", c.Duration("dialTimeout").String(),
		"--readTimeout", c.Duration("readTimeout").String(),
	}
	if c.Bool("verify") {
		workerArgs = append(workerArgs, "--verify")
	}
	if c.String("input") != "" {
		workerArgs = append(workerArgs, "--input", c.String("input"))
	}
	if c.Int("print") > 0 {
		workerArgs = append(workerArgs, "--print", fmt.Sprint(c.Int("print")))
	}
	if c.Bool("compact") {
		workerArgs = append(workerArgs, "--compact")
	}
	if c.Bool("plain") {
		workerArgs = append(workerArgs, "--plain")
	}

	return Launch(c.Context, LaunchConfig{
		Processes: np,
		Host:      c.String("host"),
		BasePort:  c.Int("basePort"),
		LogLevel:  c.String("logLevel"),
		Args:      workerArgs,
	})
}

var App = &cli.App{
	Name:     "pradix",
	Usage:    "Parallel LSD radix sort on shared memory or across a process group",
	Version:  version.Version,
	Compiled: parseDate(version.Date),
	Flags: []cli.Flag{
		logLevelFlag,
	},
	Before: func(c *cli.Context) error {
		_, err := logx.Init(logx.Config{Level: strings.ToUpper(c.String("logLevel")), Output: "stderr"})
		return err
	},
	Commands: []*cli.Command{
		{
			Name:  "sort",
			Usage: "Sort one input and report time and verification",
			Flags: []cli.Flag{
				configFlag,
				nFlag,
				seedFlag,
				inputFlag,
				verifyFlag,
				modeFlag,
				threadsFlag,
				ranksFlag,
				jsonFileFlag,
				printFlag,
				compactFlag,
				plainFlag,
				metricsAddrFlag,
			},
			Action: handleSortCommand,
		},
		{
			Name:  "bench",
			Usage: "Time every sort strategy over a range of input sizes",
			Flags: []cli.Flag{
				configFlag,
				sizesFlag,
				modesFlag,
				threadsFlag,
				ranksFlag,
				repeatFlag,
				seedFlag,
				verifyFlag,
				jsonFileFlag,
				plotPathFlag,
				tuiFlag,
				compactFlag,
				plainFlag,
				metricsAddrFlag,
			},
			Action: handleBenchCommand,
		},
		{
			Name:  "correctness",
			Usage: "Check the radix sorts on fixed inputs and trace a small sample",
			Flags: []cli.Flag{
				modesFlag,
				threadsFlag,
				ranksFlag,
				sampleFlag,
				seedFlag,
				compactFlag,
				plainFlag,
			},
			Action: handleCorrectnessCommand,
		},
		{
			Name:  "worker",
			Usage: "Run one rank of a distributed sort over TCP",
			Flags: []cli.Flag{
				configFlag,
				rankFlag,
				rootFlag,
				peersFlag,
				nFlag,
				seedFlag,
				inputFlag,
				verifyFlag,
				dialTimeoutFlag,
				readTimeoutFlag,
				jsonFileFlag,
				printFlag,
				compactFlag,
				plainFlag,
				metricsAddrFlag,
			},
			Action: handleWorkerCommand,
		},
		{
			Name:  "launch",
			Usage: "Start a distributed sort as local worker processes",
			Flags: []cli.Flag{
				npFlag,
				hostFlag,
				basePortFlag,
				nFlag,
				seedFlag,
				inputFlag,
				verifyFlag,
				dialTimeoutFlag,
				readTimeoutFlag,
				printFlag,
				compactFlag,
				plainFlag,
			},
			Action: handleLaunchCommand,
		},
	},
}
