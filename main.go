// Copyright (c) Salesforce, Inc.
// SPDX-License-Identifier: BSD-3-Clause

// Pyplyn pulls time-series data from remote endpoints, reduces it through
// configured transforms and pushes the results to their sinks, on a schedule
// kept in sync with a directory of configuration files.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	hclog "github.com/hashicorp/go-hclog"

	"github.com/salesforce/pyplyn/app"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	flags := flag.NewFlagSet("pyplyn", flag.ContinueOnError)
	configPath := flags.String("config", "config/pyplyn.json", "path to the app configuration file")
	logLevel := flags.String("log-level", "info", "log level (trace, debug, info, warn, error)")
	if err := flags.Parse(args); err != nil {
		return 2
	}

	logger := hclog.New(&hclog.LoggerOptions{
		Name:       "pyplyn",
		Level:      hclog.LevelFromString(*logLevel),
		JSONFormat: true,
	})

	a, err := app.New(*configPath, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pyplyn: %v\n", err)
		return 1
	}

	if err := a.Run(context.Background()); err != nil {
		logger.Error("pyplyn exited with error", "error", err)
		return 1
	}
	return 0
}
