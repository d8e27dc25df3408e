// Copyright (C) 2025 ContractGuard AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package api provides the HTTP service for contract analysis and
// negotiation.
//
// The service wires together the persistent store, the reasoning client, the
// optional knowledge retriever, and the orchestrator, and exposes them over a
// Gin router with OpenTelemetry tracing and Prometheus metrics.
//
// Usage:
//
//	cfg := api.Config{Port: 12310, ReasoningBackend: "openai"}
//	svc, err := api.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Fatal(svc.Run())
package api

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/contractguard-ai/contractguard/services/agent"
	"github.com/contractguard-ai/contractguard/services/api/observability"
	"github.com/contractguard-ai/contractguard/services/api/routes"
	"github.com/contractguard-ai/contractguard/services/knowledge"
	"github.com/contractguard-ai/contractguard/services/reasoning"
	"github.com/contractguard-ai/contractguard/services/storage"
)

// Service defines the contract for the API service.
//
// Run blocks until the server stops. Router exposes the configured Gin
// engine for integration tests; callers must not modify it.
type Service interface {
	Run() error
	Router() *gin.Engine
}

// Config holds API service configuration. All fields have defaults applied
// by New.
type Config struct {
	// Port is the HTTP server port. Default: 12310
	Port int

	// ReasoningBackend selects the reasoning provider.
	// Valid values: "openai", "ollama". Default: "openai"
	ReasoningBackend string

	// WeaviateURL is the knowledge base URL. If empty, recommendations run
	// without retrieved precedent examples.
	WeaviateURL string

	// OTelEndpoint is the OpenTelemetry collector endpoint.
	// Default: "contractguard-otel-collector:4317"
	OTelEndpoint string

	// DataDir is the persistent store directory.
	// Default: "./data/contractguard"
	DataDir string

	// APIToken is the bearer token required on /v1 routes. Empty enables
	// development mode (all requests authenticated as the local user).
	APIToken string

	// GinMode sets the Gin framework mode ("debug", "release", "test").
	GinMode string

	// Pipeline configures the orchestrator. Zero value uses defaults.
	Pipeline agent.Config
}

type service struct {
	config        Config
	router        *gin.Engine
	store         *storage.Store
	orchestrator  *agent.Orchestrator
	tracerCleanup func(context.Context)
}

// New creates the API service: tracing, store, reasoning client, optional
// retriever, orchestrator, and router.
func New(cfg Config) (Service, error) {
	s := &service{
		config: applyConfigDefaults(cfg),
	}

	cleanup, err := s.initTracer()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}
	s.tracerCleanup = cleanup

	s.store, err = storage.Open(storage.DefaultConfig(s.config.DataDir))
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	client, err := s.initReasoningClient()
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize reasoning client: %w", err)
	}

	retriever := s.initRetriever()

	s.orchestrator, err = agent.New(s.config.Pipeline, s.store, client, retriever)
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize orchestrator: %w", err)
	}

	s.initRouter()

	return s, nil
}

// Run starts the HTTP server and blocks until it stops.
func (s *service) Run() error {
	defer s.cleanup()

	addr := fmt.Sprintf(":%d", s.config.Port)
	slog.Info("Starting API server", "port", s.config.Port)

	return s.router.Run(addr)
}

// Router returns the underlying Gin engine for testing.
func (s *service) Router() *gin.Engine {
	return s.router
}

func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = 12310
	}
	if cfg.ReasoningBackend == "" {
		cfg.ReasoningBackend = "openai"
	}
	if cfg.OTelEndpoint == "" {
		cfg.OTelEndpoint = "contractguard-otel-collector:4317"
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "./data/contractguard"
	}
	return cfg
}

// initTracer sets up the OTLP trace exporter. Uses an insecure gRPC
// connection, appropriate for internal networks.
func (s *service) initTracer() (func(context.Context), error) {
	ctx := context.Background()

	conn, err := grpc.NewClient(s.config.OTelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("contractguard-api")))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))

	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	cleanup := func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}

	return cleanup, nil
}

// initReasoningClient builds the provider client wrapped with retry and rate
// limiting.
func (s *service) initReasoningClient() (reasoning.Client, error) {
	inner, err := reasoning.NewClient(s.config.ReasoningBackend)
	if err != nil {
		return nil, err
	}
	slog.Info("Using reasoning backend", "backend", s.config.ReasoningBackend)
	return reasoning.NewResilientClient(inner, reasoning.DefaultRetryConfig()), nil
}

// initRetriever connects to the knowledge base if configured. Failures are
// not fatal: the recommendation engine degrades to prompts without retrieved
// examples.
func (s *service) initRetriever() knowledge.Retriever {
	if s.config.WeaviateURL == "" {
		slog.Info("Knowledge base not configured, running without precedent retrieval")
		return nil
	}
	retriever, err := knowledge.NewWeaviateRetriever(context.Background(), knowledge.Config{
		URL: s.config.WeaviateURL,
	})
	if err != nil {
		slog.Warn("Knowledge base initialization failed, running without precedent retrieval",
			"error", err)
		return nil
	}
	slog.Info("Knowledge base connected", "url", s.config.WeaviateURL)
	return retriever
}

func (s *service) initRouter() {
	if s.config.GinMode != "" {
		gin.SetMode(s.config.GinMode)
	}
	s.router = gin.Default()
	s.router.Use(otelgin.Middleware("contractguard-api"))
	s.router.Use(requestMetrics())

	routes.SetupRoutes(s.router, s.orchestrator, s.store, s.config.APIToken)
}

// requestMetrics records handler latency by route template, method, and
// status.
func requestMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		observability.RequestDuration.
			WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}

func (s *service) cleanup() {
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			slog.Warn("store close error", "error", err)
		}
	}
	if s.tracerCleanup != nil {
		s.tracerCleanup(context.Background())
	}
}

var _ Service = (*service)(nil)
