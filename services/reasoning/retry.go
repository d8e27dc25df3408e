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
	"math/rand"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

// RetryConfig controls the resilient wrapper around a backend client.
type RetryConfig struct {
	// Attempts is the number of retries after the first call. Total calls
	// are Attempts+1.
	Attempts int

	// Backoff is the initial delay between retries.
	Backoff time.Duration

	// MaxBackoff caps the exponential backoff.
	MaxBackoff time.Duration

	// Jitter adds randomness to backoff (0.0-1.0).
	Jitter float64

	// RatePerSecond limits outbound calls. Zero disables the limiter.
	RatePerSecond float64

	// Burst is the limiter burst size when rate limiting is enabled.
	Burst int
}

// DefaultRetryConfig matches the service defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		Attempts:      3,
		Backoff:       200 * time.Millisecond,
		MaxBackoff:    5 * time.Second,
		Jitter:        0.25,
		RatePerSecond: 5,
		Burst:         10,
	}
}

func (c *RetryConfig) applyDefaults() {
	defaults := DefaultRetryConfig()
	if c.Attempts == 0 {
		c.Attempts = defaults.Attempts
	}
	if c.Backoff == 0 {
		c.Backoff = defaults.Backoff
	}
	if c.MaxBackoff == 0 {
		c.MaxBackoff = defaults.MaxBackoff
	}
	if c.Jitter == 0 {
		c.Jitter = defaults.Jitter
	}
	if c.Burst == 0 {
		c.Burst = defaults.Burst
	}
}

// ResilientClient wraps a backend Client with bounded retry, exponential
// backoff with jitter, and an outbound rate limiter. Only transient errors
// (ErrServiceUnavailable, ErrServiceThrottled) are retried; everything else
// returns immediately.
type ResilientClient struct {
	inner   Client
	config  RetryConfig
	limiter *rate.Limiter
}

var _ Client = (*ResilientClient)(nil)

// NewResilientClient wraps inner with the given retry policy.
func NewResilientClient(inner Client, config RetryConfig) *ResilientClient {
	config.applyDefaults()
	var limiter *rate.Limiter
	if config.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.RatePerSecond), config.Burst)
	}
	return &ResilientClient{inner: inner, config: config, limiter: limiter}
}

// Invoke implements the Client interface.
func (r *ResilientClient) Invoke(ctx context.Context, req Request) (*Response, error) {
	ctx, span := tracer.Start(ctx, "ResilientClient.Invoke")
	defer span.End()

	var lastErr error
	for attempt := 0; attempt <= r.config.Attempts; attempt++ {
		if attempt > 0 {
			backoff := r.calculateBackoff(attempt)
			span.AddEvent("retry", trace.WithAttributes(
				attribute.Int("attempt", attempt),
				attribute.Int64("backoff_ms", backoff.Milliseconds()),
			))
			slog.Debug("Retrying reasoning call", "attempt", attempt, "backoff", backoff)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		resp, err := r.inner.Invoke(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !isTransient(err) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("reasoning call failed after %d attempts: %w",
		r.config.Attempts+1, lastErr)
}

func isTransient(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) || errors.Is(err, ErrServiceThrottled)
}

// calculateBackoff returns exponential backoff with jitter.
func (r *ResilientClient) calculateBackoff(attempt int) time.Duration {
	backoff := r.config.Backoff * time.Duration(1<<uint(attempt-1))
	if backoff > r.config.MaxBackoff {
		backoff = r.config.MaxBackoff
	}
	if r.config.Jitter > 0 {
		jitter := time.Duration(rand.Float64() * r.config.Jitter * float64(backoff))
		backoff += jitter
	}
	return backoff
}
