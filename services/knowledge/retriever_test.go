// Copyright (C) 2025 ContractGuard AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package knowledge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseExamples(t *testing.T) {
	data := map[string]interface{}{
		"Get": map[string]interface{}{
			ClauseExampleClassName: []interface{}{
				map[string]interface{}{
					"text":     "Liability shall be capped at fees paid in the prior 12 months.",
					"category": "LIABILITY",
					"source":   "playbook",
					"_additional": map[string]interface{}{
						"certainty": 0.91,
					},
				},
				map[string]interface{}{
					// missing text: dropped
					"category": "PAYMENT",
				},
				"not-an-object",
			},
		},
	}

	examples := parseExamples(data)
	require.Len(t, examples, 1)
	assert.Equal(t, "LIABILITY", examples[0].Category)
	assert.Equal(t, 0.91, examples[0].Certainty)
	assert.Contains(t, examples[0].Text, "capped at fees paid")
}

func TestParseExamples_EmptyAndMalformed(t *testing.T) {
	assert.Empty(t, parseExamples(map[string]interface{}{}))
	assert.Empty(t, parseExamples(map[string]interface{}{"Get": "nope"}))
	assert.Empty(t, parseExamples(map[string]interface{}{
		"Get": map[string]interface{}{ClauseExampleClassName: []interface{}{}},
	}))
}
