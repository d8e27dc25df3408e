// Copyright (C) 2025 ContractGuard AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package reasoning provides the client interface to the external
// natural-language reasoning service used for clause scoring, recommendation
// drafting, and response classification.
//
// The service is a black box: callers hand it a prompt plus session context
// and get back text (hopefully JSON) and an optional trace of sub-invocations.
// Backends are selected by configuration; see NewClient.
package reasoning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"
)

// Errors surfaced by all backends. Callers classify transient failures with
// errors.Is before deciding to retry.
var (
	// ErrServiceUnavailable indicates the reasoning service could not be
	// reached or returned a server-side failure.
	ErrServiceUnavailable = errors.New("reasoning service unavailable")

	// ErrServiceThrottled indicates the service rejected the call due to
	// rate limiting. Transient; retry with backoff.
	ErrServiceThrottled = errors.New("reasoning service throttled")

	// ErrEmptyCompletion indicates the service answered with no content.
	ErrEmptyCompletion = errors.New("reasoning service returned empty completion")
)

// Request is a single reasoning invocation.
type Request struct {
	// SessionID groups related invocations for the provider's session
	// tracking. Optional.
	SessionID string

	// System is the system/persona prompt. Optional.
	System string

	// Prompt is the user-facing task text. Required.
	Prompt string

	// MaxTokens caps the completion length. Zero uses the backend default.
	MaxTokens int

	// Temperature controls sampling. Zero uses the backend default.
	Temperature float32
}

// TraceEvent is one invocation record reported by the reasoning service
// alongside its completion. Fields are raw; the parser package maps them to
// typed tool-call events.
type TraceEvent struct {
	Tool      string    `json:"tool"`
	Input     string    `json:"input,omitempty"`
	Output    string    `json:"output,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// Response is the raw reasoning-service output.
type Response struct {
	Content string
	Trace   []TraceEvent
}

// Client is the standard interface for any reasoning backend.
type Client interface {
	Invoke(ctx context.Context, req Request) (*Response, error)
}

// NewClient creates a backend client by name.
//
// Supported backends: "openai" (default) and "ollama". Unknown names fall
// back to openai with a warning.
func NewClient(backend string) (Client, error) {
	switch backend {
	case "", "openai":
		return NewOpenAIClient()
	case "ollama":
		return NewOllamaClient()
	default:
		slog.Warn("Unknown reasoning backend, defaulting to openai", "backend", backend)
		return NewOpenAIClient()
	}
}

// getEnvString returns the environment variable value or a default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// requireEnv returns the environment variable value or an error naming it.
func requireEnv(key string) (string, error) {
	value := os.Getenv(key)
	if value == "" {
		return "", fmt.Errorf("%s environment variable not set", key)
	}
	return value, nil
}
