// Copyright (C) 2025 ContractGuard AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package reasoning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// OpenAIClient backs the reasoning interface with the OpenAI chat API.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

var _ Client = (*OpenAIClient)(nil)

// NewOpenAIClient builds a client from the environment. The API key comes from
// OPENAI_API_KEY or, failing that, the mounted container secret.
func NewOpenAIClient() (*OpenAIClient, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	model := os.Getenv("OPENAI_MODEL") // e.g., "gpt-4o"
	if apiKey == "" {
		secretPath := "/run/secrets/openai_api_key"
		apiKeyBytes, err := os.ReadFile(secretPath)
		if err == nil {
			apiKey = strings.TrimSpace(string(apiKeyBytes))
			slog.Info("Read the OpenAI API key from container secrets")
		} else {
			slog.Error("OPENAI_API_KEY environment variable not set and secret not found", "path", secretPath)
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
		}
	}
	if model == "" {
		model = "gpt-4o-mini"
		slog.Warn("OPENAI_MODEL not set, defaulting to gpt-4o-mini")
	}
	slog.Info("Initializing OpenAI reasoning client", "model", model)
	return &OpenAIClient{
		client: openai.NewClient(apiKey),
		model:  model,
	}, nil
}

// Invoke implements the Client interface.
func (o *OpenAIClient) Invoke(ctx context.Context, req Request) (*Response, error) {
	slog.Debug("Invoking OpenAI", "model", o.model, "session_id", req.SessionID)

	system := req.System
	if system == "" {
		system = "You are a contract analysis assistant. Answer with valid JSON when asked for JSON."
	}
	ccReq := openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
	}
	if req.Temperature > 0 {
		ccReq.Temperature = req.Temperature
	}
	if req.MaxTokens > 0 {
		ccReq.MaxCompletionTokens = req.MaxTokens
	}

	resp, err := o.client.CreateChatCompletion(ctx, ccReq)
	if err != nil {
		return nil, classifyOpenAIError(err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		slog.Warn("OpenAI returned no choices or empty content")
		return nil, ErrEmptyCompletion
	}
	slog.Debug("Received OpenAI completion", "finish_reason", resp.Choices[0].FinishReason)
	return &Response{Content: resp.Choices[0].Message.Content}, nil
}

// classifyOpenAIError maps API failures onto the package sentinels so callers
// can decide retryability without knowing the backend.
func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("%w: %v", ErrServiceThrottled, err)
		case apiErr.HTTPStatusCode >= 500:
			return fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
		}
		return fmt.Errorf("OpenAI API call failed: %w", err)
	}
	// Transport-level failures (connection refused, timeouts) are treated as
	// unavailability.
	return fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
}
