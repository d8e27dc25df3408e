// Copyright (C) 2025 ContractGuard AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package knowledge

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/weaviate/weaviate/entities/models"
)

// clauseExampleSchema returns the Weaviate class definition for curated
// clause examples. The text field is vectorized; metadata fields are not.
func clauseExampleSchema() *models.Class {
	indexFilterable := new(bool)
	*indexFilterable = true

	indexSearchable := new(bool)
	*indexSearchable = true

	return &models.Class{
		Class:       ClauseExampleClassName,
		Description: "Curated examples of contract clause language for recommendation grounding",
		Vectorizer:  "text2vec-transformers",
		ModuleConfig: map[string]interface{}{
			"text2vec-transformers": map[string]interface{}{
				"vectorizeClassName": false,
			},
		},
		Properties: []*models.Property{
			{
				Name:            "text",
				DataType:        []string{"text"},
				Description:     "The example clause text",
				IndexSearchable: indexSearchable,
				Tokenization:    "word",
			},
			{
				Name:            "category",
				DataType:        []string{"text"},
				Description:     "Clause category the example belongs to",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
				ModuleConfig: map[string]interface{}{
					"text2vec-transformers": map[string]interface{}{
						"skip": true,
					},
				},
			},
			{
				Name:            "source",
				DataType:        []string{"text"},
				Description:     "Where the example language came from",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
				ModuleConfig: map[string]interface{}{
					"text2vec-transformers": map[string]interface{}{
						"skip": true,
					},
				},
			},
		},
	}
}

// ensureSchema creates the ClauseExample class if it does not exist.
func (r *WeaviateRetriever) ensureSchema(ctx context.Context) error {
	exists, err := r.client.Schema().ClassExistenceChecker().
		WithClassName(ClauseExampleClassName).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("check %s class: %w", ClauseExampleClassName, err)
	}
	if exists {
		return nil
	}

	if err := r.client.Schema().ClassCreator().
		WithClass(clauseExampleSchema()).
		Do(ctx); err != nil {
		return fmt.Errorf("create %s class: %w", ClauseExampleClassName, err)
	}
	slog.Info("Created Weaviate class", "class", ClauseExampleClassName)
	return nil
}
