// Copyright (C) 2025 ContractGuard AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/contractguard-ai/contractguard/services/api"
)

func runServe(cmd *cobra.Command, args []string) {
	cfg := api.Config{
		Port:             config.Server.Port,
		ReasoningBackend: config.Server.ReasoningBackend,
		WeaviateURL:      config.Server.WeaviateURL,
		OTelEndpoint:     config.Server.OTelEndpoint,
		DataDir:          config.Server.DataDir,
		APIToken:         config.Server.APIToken,
	}

	svc, err := api.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create API service: %v", err)
	}
	if err := svc.Run(); err != nil {
		log.Fatalf("API server error: %v", err)
	}
}
