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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedClient struct {
	calls     int
	responses []func() (*Response, error)
}

func (s *scriptedClient) Invoke(_ context.Context, _ Request) (*Response, error) {
	idx := s.calls
	s.calls++
	if idx >= len(s.responses) {
		idx = len(s.responses) - 1
	}
	return s.responses[idx]()
}

func fastRetryConfig(attempts int) RetryConfig {
	return RetryConfig{
		Attempts:   attempts,
		Backoff:    time.Millisecond,
		MaxBackoff: 2 * time.Millisecond,
		Jitter:     0.1,
	}
}

func TestResilientClient_SucceedsAfterTransientFailure(t *testing.T) {
	inner := &scriptedClient{responses: []func() (*Response, error){
		func() (*Response, error) { return nil, ErrServiceUnavailable },
		func() (*Response, error) { return nil, ErrServiceThrottled },
		func() (*Response, error) { return &Response{Content: "ok"}, nil },
	}}
	client := NewResilientClient(inner, fastRetryConfig(3))

	resp, err := client.Invoke(context.Background(), Request{Prompt: "test"})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, 3, inner.calls)
}

func TestResilientClient_GivesUpAfterAttempts(t *testing.T) {
	inner := &scriptedClient{responses: []func() (*Response, error){
		func() (*Response, error) { return nil, ErrServiceUnavailable },
	}}
	client := NewResilientClient(inner, fastRetryConfig(2))

	_, err := client.Invoke(context.Background(), Request{Prompt: "test"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrServiceUnavailable))
	assert.Equal(t, 3, inner.calls) // 1 initial + 2 retries
}

func TestResilientClient_DoesNotRetryPermanentErrors(t *testing.T) {
	permanent := errors.New("bad request")
	inner := &scriptedClient{responses: []func() (*Response, error){
		func() (*Response, error) { return nil, permanent },
	}}
	client := NewResilientClient(inner, fastRetryConfig(3))

	_, err := client.Invoke(context.Background(), Request{Prompt: "test"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, permanent))
	assert.Equal(t, 1, inner.calls)
}

func TestResilientClient_RespectsContextCancellation(t *testing.T) {
	inner := &scriptedClient{responses: []func() (*Response, error){
		func() (*Response, error) { return nil, ErrServiceUnavailable },
	}}
	cfg := fastRetryConfig(5)
	cfg.Backoff = 200 * time.Millisecond
	client := NewResilientClient(inner, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := client.Invoke(ctx, Request{Prompt: "test"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestCalculateBackoff_Caps(t *testing.T) {
	client := NewResilientClient(nil, RetryConfig{
		Attempts:   10,
		Backoff:    100 * time.Millisecond,
		MaxBackoff: 400 * time.Millisecond,
		Jitter:     0.25,
	})
	for attempt := 1; attempt <= 10; attempt++ {
		b := client.calculateBackoff(attempt)
		assert.LessOrEqual(t, b, 500*time.Millisecond, "attempt %d", attempt)
		assert.GreaterOrEqual(t, b, 100*time.Millisecond, "attempt %d", attempt)
	}
}
