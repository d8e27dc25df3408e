// Copyright (C) 2025 ContractGuard AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command contractguard is the CLI for running and talking to a ContractGuard
// deployment.
//
// Configuration comes from config.yaml in the working directory when present;
// all values have defaults, so the CLI also works without one.
package main

import (
	"log"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/contractguard-ai/contractguard/pkg/logging"
)

var (
	config Config
	logger *logging.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}

func init() {
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if data, err := os.ReadFile("config.yaml"); err == nil {
			if err := yaml.Unmarshal(data, &config); err != nil {
				log.Fatalf("Error parsing config.yaml: %v", err)
			}
		}

		level := slog.LevelInfo
		if config.Logging.Level == "debug" {
			level = slog.LevelDebug
		}
		logger = logging.New(logging.Config{
			Level:   level,
			LogDir:  config.Logging.Dir,
			Service: "cli",
		})
		slog.SetDefault(logger.Logger)
	}
	rootCmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Close()
		}
	}
}
