package main

import (
	"fmt"
	"os"

	"github.com/toolkits/pkg/logger"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/ChristianF88/pradix/cli"
)

func main() {
	// Size GOMAXPROCS to the container's CPU quota before the default
	// worker counts are read.
	if _, err := maxprocs.Set(maxprocs.Logger(logger.Debugf)); err != nil {
		logger.Warningf("failed to set GOMAXPROCS: %v", err)
	}

	if err := cli.App.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error running CLI app:", err)
		os.Exit(1)
	}
}
