package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/ChristianF88/pradix/bench"
	"github.com/ChristianF88/pradix/logx"
	"github.com/ChristianF88/pradix/netgroup"
)

// Config is the content of a pradix TOML file.
type Config struct {
	Log     logx.Config   `toml:"log"`
	Sort    SortConfig    `toml:"sort"`
	Bench   BenchConfig   `toml:"bench"`
	Cluster ClusterConfig `toml:"cluster"`
	Metrics MetricsConfig `toml:"metrics"`
}

// SortConfig drives the sort command.
type SortConfig struct {
	N       int    `toml:"n"`
	Seed    uint64 `toml:"seed"`
	Verify  bool   `toml:"verify"`
	Mode    string `toml:"mode"`
	Threads int    `toml:"threads"`
	Ranks   int    `toml:"ranks"`
	// Input is an optional file of whitespace-separated integers.
	Input      string `toml:"input"`
	JSONFile   string `toml:"jsonFile"`
	PrintLimit int    `toml:"printLimit"`
}

// BenchConfig drives the bench command.
type BenchConfig struct {
	Sizes    []int    `toml:"sizes"`
	Modes    []string `toml:"modes"`
	Threads  int      `toml:"threads"`
	Ranks    int      `toml:"ranks"`
	Repeat   int      `toml:"repeat"`
	Seed     uint64   `toml:"seed"`
	Verify   bool     `toml:"verify"`
	JSONFile string   `toml:"jsonFile"`
	PlotPath string   `toml:"plotPath"`
}

// ClusterConfig describes a multi-process group for the worker and launch
// commands.
type ClusterConfig struct {
	Peers       []string      `toml:"peers"`
	DialTimeout time.Duration `toml:"dialTimeout"`
	ReadTimeout time.Duration `toml:"readTimeout"`
}

type MetricsConfig struct {
	Addr string `toml:"addr"`
}

// Default returns the configuration used when a file leaves fields unset.
func Default() *Config {
	return &Config{
		Log: logx.Default(),
		Sort: SortConfig{
			N:       1_000_000,
			Seed:    42,
			Mode:    string(bench.SharedMemory),
			Threads: runtime.GOMAXPROCS(0),
			Ranks:   4,
		},
		Bench: BenchConfig{
			Sizes:   bench.DefaultSizes,
			Threads: runtime.GOMAXPROCS(0),
			Ranks:   4,
			Repeat:  1,
			Seed:    42,
			Verify:  true,
		},
		Cluster: ClusterConfig{
			DialTimeout: netgroup.DefaultDialTimeout,
			ReadTimeout: netgroup.DefaultReadTimeout,
		},
	}
}

// LoadConfig reads a TOML file on top of the defaults. Unknown keys are
// rejected so that typos do not silently fall back to defaults.
func LoadConfig(configPath string) (*Config, error) {
	configData, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	md, err := toml.Decode(string(configData), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown config keys: %v", undecoded)
	}
	return cfg, nil
}

// ValidateSort checks the [sort] section.
func (c *Config) ValidateSort() error {
	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("invalid log configuration: %w", err)
	}
	s := c.Sort
	if s.N < 0 {
		return fmt.Errorf("n must be non-negative, got %d", s.N)
	}
	mode, err := bench.ParseMode(s.Mode)
	if err != nil {
		return err
	}
	if mode == bench.SharedMemory && s.Threads < 1 {
		return fmt.Errorf("threads must be >= 1, got %d", s.Threads)
	}
	if mode == bench.Distributed && s.Ranks < 1 {
		return fmt.Errorf("ranks must be >= 1, got %d", s.Ranks)
	}
	if s.Input != "" {
		if _, err := os.Stat(s.Input); os.IsNotExist(err) {
			return fmt.Errorf("input file does not exist: %s", s.Input)
		}
	}
	if s.PrintLimit < 0 {
		return fmt.Errorf("printLimit must be non-negative, got %d", s.PrintLimit)
	}
	return validateOutputPath(s.JSONFile)
}

// ValidateBench checks the [bench] section.
func (c *Config) ValidateBench() error {
	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("invalid log configuration: %w", err)
	}
	opts, err := c.BenchOptions()
	if err != nil {
		return err
	}
	if err := opts.Validate(); err != nil {
		return err
	}
	if err := validateOutputPath(c.Bench.JSONFile); err != nil {
		return err
	}
	return validateOutputPath(c.Bench.PlotPath)
}

// ValidateCluster checks the [cluster] section for the given rank.
func (c *Config) ValidateCluster(rank int) error {
	nc := c.NetConfig(rank)
	return nc.Validate()
}

// BenchOptions converts the [bench] section.
func (c *Config) BenchOptions() (bench.Options, error) {
	modes, err := bench.ParseModes(c.Bench.Modes)
	if err != nil {
		return bench.Options{}, err
	}
	return bench.Options{
		Sizes:   c.Bench.Sizes,
		Modes:   modes,
		Threads: c.Bench.Threads,
		Ranks:   c.Bench.Ranks,
		Repeat:  c.Bench.Repeat,
		Seed:    c.Bench.Seed,
		Verify:  c.Bench.Verify,
	}, nil
}

// NetConfig returns the transport configuration of one rank.
func (c *Config) NetConfig(rank int) netgroup.Config {
	return netgroup.Config{
		Rank:        rank,
		Peers:       c.Cluster.Peers,
		DialTimeout: c.Cluster.DialTimeout,
		ReadTimeout: c.Cluster.ReadTimeout,
	}
}

func validateOutputPath(path string) error {
	if path == "" {
		return nil
	}
	dir := filepath.Dir(path)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return fmt.Errorf("output directory does not exist: %s", dir)
	}
	return nil
}
