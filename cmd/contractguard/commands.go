// Copyright (C) 2025 ContractGuard AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"github.com/spf13/cobra"
)

var (
	rootCmd = &cobra.Command{
		Use:   "contractguard",
		Short: "A cli to run and talk to a ContractGuard deployment",
		Long: `ContractGuard analyzes extracted contract clauses for risk,
generates tiered redline recommendations, and drives multi-round
negotiations against a counterparty.`,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the ContractGuard API server",
		Run:   runServe, // Defined in cmd_serve.go
	}

	healthCmd = &cobra.Command{
		Use:   "health",
		Short: "Check that the API server is up",
		Run:   runHealth, // Defined in cmd_client.go
	}

	contractCmd = &cobra.Command{
		Use:   "contract",
		Short: "Manage contracts on the server",
	}

	contractCreateCmd = &cobra.Command{
		Use:   "create [clauses.json]",
		Short: "Register an extracted contract from a JSON file",
		Args:  cobra.ExactArgs(1),
		Run:   runContractCreate, // Defined in cmd_client.go
	}

	contractAnalyzeCmd = &cobra.Command{
		Use:   "analyze [contract_id]",
		Short: "Run the risk analysis pipeline on a registered contract",
		Args:  cobra.ExactArgs(1),
		Run:   runContractAnalyze, // Defined in cmd_client.go
	}
)

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(contractCmd)
	contractCmd.AddCommand(contractCreateCmd)
	contractCmd.AddCommand(contractAnalyzeCmd)
}
