// Package logx configures the process-wide logger.
package logx

import (
	"github.com/pkg/errors"
	"github.com/toolkits/pkg/logger"
)

type Config struct {
	Dir        string `toml:"dir"`
	Level      string `toml:"level"`
	Output     string `toml:"output"`
	KeepHours  uint   `toml:"keepHours"`
	RotateNum  int    `toml:"rotateNum"`
	RotateSize uint64 `toml:"rotateSize"` // MiB
}

// Default logs INFO and above to stderr.
func Default() Config {
	return Config{Level: "INFO", Output: "stderr"}
}

func (c Config) Validate() error {
	switch c.Output {
	case "", "stderr":
	case "file":
		if c.Dir == "" {
			return errors.New("log dir is required for file output")
		}
		if c.KeepHours == 0 && c.RotateNum == 0 {
			return errors.New("keepHours and rotateNum both are 0")
		}
	default:
		return errors.Errorf("unknown log output %q", c.Output)
	}
	switch c.Level {
	case "", "DEBUG", "INFO", "WARNING", "ERROR", "FATAL":
	default:
		return errors.Errorf("unknown log level %q", c.Level)
	}
	return nil
}

// Init applies c and returns a function that flushes and closes the logger.
func Init(c Config) (func(), error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if c.Level == "" {
		c.Level = "INFO"
	}
	logger.SetSeverity(c.Level)

	switch c.Output {
	case "", "stderr":
		logger.LogToStderr()
	case "file":
		lb, err := logger.NewFileBackend(c.Dir)
		if err != nil {
			return nil, errors.WithMessage(err, "NewFileBackend failed")
		}
		if c.KeepHours != 0 {
			lb.SetRotateByHour(true)
			lb.SetKeepHours(c.KeepHours)
		} else {
			lb.Rotate(c.RotateNum, c.RotateSize*1024*1024)
		}
		logger.SetLogging(c.Level, lb)
	}

	return func() {
		logger.Close()
	}, nil
}
