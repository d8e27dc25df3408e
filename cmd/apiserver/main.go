// Copyright (C) 2025 ContractGuard AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command apiserver starts the ContractGuard HTTP server.
//
// This is the entry point for the containerized API service. It reads
// configuration from environment variables and starts the server.
//
// # Environment Variables
//
//   - CONTRACTGUARD_PORT: HTTP server port (default: 12310)
//   - REASONING_BACKEND: reasoning provider - openai, ollama (default: openai)
//   - WEAVIATE_SERVICE_URL: knowledge base URL (optional)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OpenTelemetry collector (default: contractguard-otel-collector:4317)
//   - CONTRACTGUARD_DATA_DIR: persistent store directory (default: ./data/contractguard)
//   - CONTRACTGUARD_API_TOKEN: bearer token for /v1 routes (empty: development mode)
//
// # Usage
//
//	go build -o apiserver ./cmd/apiserver
//	./apiserver
package main

import (
	"log"
	"log/slog"
	"os"
	"strconv"

	"github.com/contractguard-ai/contractguard/services/api"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := api.Config{
		Port:             getEnvInt("CONTRACTGUARD_PORT", 12310),
		ReasoningBackend: getEnvString("REASONING_BACKEND", "openai"),
		WeaviateURL:      os.Getenv("WEAVIATE_SERVICE_URL"),
		OTelEndpoint:     getEnvString("OTEL_EXPORTER_OTLP_ENDPOINT", "contractguard-otel-collector:4317"),
		DataDir:          getEnvString("CONTRACTGUARD_DATA_DIR", "./data/contractguard"),
		APIToken:         os.Getenv("CONTRACTGUARD_API_TOKEN"),
		GinMode:          os.Getenv("GIN_MODE"),
	}

	slog.Info("Starting ContractGuard API",
		"port", cfg.Port,
		"reasoning_backend", cfg.ReasoningBackend,
		"weaviate_url", cfg.WeaviateURL,
	)

	svc, err := api.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create API service: %v", err)
	}

	if err := svc.Run(); err != nil {
		log.Fatalf("API server error: %v", err)
	}
}

// getEnvString returns the environment variable value or a default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable parsed as int, or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
		slog.Warn("Invalid integer in environment, using default", "key", key)
	}
	return defaultValue
}
