// Copyright (C) 2025 ContractGuard AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package knowledge retrieves similar-clause examples from the vector store.
// The retriever is optional: the analysis pipeline runs without it, it just
// produces recommendations with less grounding.
package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
)

// ClauseExampleClassName is the Weaviate class holding curated clause examples.
const ClauseExampleClassName = "ClauseExample"

// Example is one retrieved similar-clause example.
type Example struct {
	Text      string
	Category  string
	Source    string
	Certainty float64
}

// Retriever is the knowledge-retrieval contract consumed by the
// recommendation engine. An empty result slice is a valid response.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]Example, error)
}

// Config for the Weaviate-backed retriever.
type Config struct {
	// URL of the Weaviate instance, scheme optional ("http://weaviate:8080").
	URL string

	// DefaultLimit is used when a caller passes k <= 0.
	DefaultLimit int
}

// WeaviateRetriever implements Retriever over a Weaviate nearText query.
type WeaviateRetriever struct {
	client *weaviate.Client
	config Config
}

var _ Retriever = (*WeaviateRetriever)(nil)

// NewWeaviateRetriever connects to Weaviate and ensures the example schema
// exists.
func NewWeaviateRetriever(ctx context.Context, config Config) (*WeaviateRetriever, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("weaviate URL is required")
	}
	if config.DefaultLimit <= 0 {
		config.DefaultLimit = 5
	}

	cfg := weaviate.Config{Host: config.URL, Scheme: "http"}
	if strings.HasPrefix(config.URL, "https://") {
		cfg.Scheme = "https"
		cfg.Host = strings.TrimPrefix(config.URL, "https://")
	} else if strings.HasPrefix(config.URL, "http://") {
		cfg.Host = strings.TrimPrefix(config.URL, "http://")
	}

	client, err := weaviate.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create weaviate client: %w", err)
	}

	r := &WeaviateRetriever{client: client, config: config}
	if err := r.ensureSchema(ctx); err != nil {
		return nil, err
	}
	slog.Info("Connected knowledge retriever", "url", config.URL, "class", ClauseExampleClassName)
	return r, nil
}

// Retrieve runs a nearText search for clause examples similar to query.
func (r *WeaviateRetriever) Retrieve(ctx context.Context, query string, k int) ([]Example, error) {
	if query == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}
	if k <= 0 {
		k = r.config.DefaultLimit
	}

	nearText := r.client.GraphQL().NearTextArgBuilder().
		WithConcepts([]string{query})

	fields := []graphql.Field{
		{Name: "text"},
		{Name: "category"},
		{Name: "source"},
		{Name: "_additional { certainty }"},
	}

	result, err := r.client.GraphQL().Get().
		WithClassName(ClauseExampleClassName).
		WithFields(fields...).
		WithNearText(nearText).
		WithLimit(k).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("clause example search: %w", err)
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("clause example search: %s", result.Errors[0].Message)
	}

	data := make(map[string]interface{}, len(result.Data))
	for key, value := range result.Data {
		data[key] = value
	}
	return parseExamples(data), nil
}

func parseExamples(data map[string]interface{}) []Example {
	examples := []Example{}
	get, ok := data["Get"].(map[string]interface{})
	if !ok {
		return examples
	}
	objects, ok := get[ClauseExampleClassName].([]interface{})
	if !ok {
		return examples
	}
	for _, obj := range objects {
		m, ok := obj.(map[string]interface{})
		if !ok {
			continue // skip malformed objects
		}
		ex := Example{
			Text:     getString(m, "text"),
			Category: getString(m, "category"),
			Source:   getString(m, "source"),
		}
		if additional, ok := m["_additional"].(map[string]interface{}); ok {
			if certainty, ok := additional["certainty"].(float64); ok {
				ex.Certainty = certainty
			}
		}
		if ex.Text == "" {
			continue
		}
		examples = append(examples, ex)
	}
	return examples
}

func getString(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}
