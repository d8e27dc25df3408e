// Copyright (C) 2025 ContractGuard AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package parser

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contractguard-ai/contractguard/services/reasoning"
)

type assessment struct {
	RiskScore float64  `json:"risk_score"`
	Concerns  []string `json:"concerns"`
}

func TestDecode_StrictJSON(t *testing.T) {
	var out assessment
	err := Decode(`{"risk_score": 7.5, "concerns": ["unlimited liability"]}`, "risk assessment", &out)
	require.NoError(t, err)
	assert.Equal(t, 7.5, out.RiskScore)
	assert.Equal(t, []string{"unlimited liability"}, out.Concerns)
}

func TestDecode_FencedJSON(t *testing.T) {
	content := "Here is my analysis:\n```json\n{\"risk_score\": 4.0, \"concerns\": []}\n```\nLet me know if you need more."
	var out assessment
	err := Decode(content, "risk assessment", &out)
	require.NoError(t, err)
	assert.Equal(t, 4.0, out.RiskScore)
}

func TestDecode_JSONEmbeddedInProse(t *testing.T) {
	content := `After reviewing the clause I believe {"risk_score": 8.2, "concerns": ["uncapped indemnity", "one-sided"]} is the right assessment.`
	var out assessment
	err := Decode(content, "risk assessment", &out)
	require.NoError(t, err)
	assert.Equal(t, 8.2, out.RiskScore)
	assert.Len(t, out.Concerns, 2)
}

func TestDecode_BracesInsideStrings(t *testing.T) {
	content := `{"risk_score": 3.0, "concerns": ["clause uses {placeholder} text"]}`
	var out assessment
	err := Decode(content, "risk assessment", &out)
	require.NoError(t, err)
	assert.Equal(t, "clause uses {placeholder} text", out.Concerns[0])
}

func TestDecode_UnparsableProse(t *testing.T) {
	var out assessment
	err := Decode("I am sorry, I cannot assess this clause.", "risk assessment", &out)
	require.Error(t, err)

	var perr *UnparsableResponseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "risk assessment", perr.Expected)
	assert.NotEmpty(t, perr.Snippet)
}

func TestDecode_EmptyContent(t *testing.T) {
	var out assessment
	err := Decode("   ", "risk assessment", &out)
	var perr *UnparsableResponseError
	require.True(t, errors.As(err, &perr))
}

func TestExtractJSON_Array(t *testing.T) {
	raw, err := ExtractJSON(`The priorities are ["liability", "payment"] in that order.`)
	require.NoError(t, err)
	assert.JSONEq(t, `["liability", "payment"]`, string(raw))
}

func TestRecoverScore(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    float64
		ok      bool
	}{
		{"labeled", "The risk score is 7.5 due to unlimited liability.", 7.5, true},
		{"colon", "Risk Score: 4", 4, true},
		{"underscore", "risk_score = 9.25", 9.25, true},
		{"bare score word", "I'd score this 6 out of 10.", 6, true},
		{"no score", "This clause looks fine to me.", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := RecoverScore(tt.content)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestExtractToolCalls_OrderPreservedAndMalformedSkipped(t *testing.T) {
	now := time.Now()
	events := []reasoning.TraceEvent{
		{Tool: "risk_analyzer", Input: "clause-1", Timestamp: now},
		{Tool: ""}, // malformed: no tool name
		{Tool: "clause_recommender", Output: "3 tiers"},
		{Tool: "quantum_flux_capacitor"}, // unrecognized
		{Tool: "negotiation_strategist"},
	}

	calls, skipped := ExtractToolCalls(events)
	require.Len(t, calls, 3)
	assert.Equal(t, 2, skipped)
	assert.Equal(t, ToolRiskScored, calls[0].Kind)
	assert.Equal(t, ToolRecommendationMade, calls[1].Kind)
	assert.Equal(t, ToolStrategyPlanned, calls[2].Kind)
	assert.Equal(t, now, calls[0].Timestamp)
}

func TestExtractToolCalls_EmptyTrace(t *testing.T) {
	calls, skipped := ExtractToolCalls(nil)
	assert.Empty(t, calls)
	assert.Zero(t, skipped)
}
