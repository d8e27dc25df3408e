// Copyright (C) 2025 ContractGuard AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package risk

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contractguard-ai/contractguard/services/agent/datatypes"
)

func scored(id string, category datatypes.ClauseCategory, score float64, concerns ...string) datatypes.Clause {
	return datatypes.Clause{
		ClauseID:  id,
		Category:  category,
		Text:      "clause text",
		RiskScore: &score,
		RiskLevel: Level(score),
		Concerns:  concerns,
	}
}

func TestLevel_BoundaryTable(t *testing.T) {
	tests := []struct {
		score float64
		want  datatypes.RiskLevel
	}{
		{0, datatypes.RiskLevelLow},
		{2.999, datatypes.RiskLevelLow},
		{3.0, datatypes.RiskLevelMedium},
		{4.999, datatypes.RiskLevelMedium},
		{5.0, datatypes.RiskLevelHigh},
		{6.999, datatypes.RiskLevelHigh},
		{7.0, datatypes.RiskLevelCritical},
		{10, datatypes.RiskLevelCritical},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Level(tt.score), "score %v", tt.score)
	}
}

func TestClampScore(t *testing.T) {
	got, err := ClampScore("c1", -2.5)
	require.NoError(t, err)
	assert.Equal(t, 0.0, got)

	got, err = ClampScore("c1", 14)
	require.NoError(t, err)
	assert.Equal(t, 10.0, got)

	got, err = ClampScore("c1", 6.5)
	require.NoError(t, err)
	assert.Equal(t, 6.5, got)

	_, err = ClampScore("c1", math.NaN())
	var serr *InvalidScoreError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "c1", serr.ClauseID)

	_, err = ClampScore("c1", math.Inf(1))
	require.ErrorAs(t, err, &serr)
}

func TestAggregate_WeightedMean(t *testing.T) {
	clauses := []datatypes.Clause{
		scored("c1", datatypes.CategoryLiability, 8, "uncapped liability"),
		scored("c2", datatypes.CategoryPayment, 4),
		scored("c3", datatypes.CategoryConfidentiality, 2),
	}
	analysis := Aggregate(clauses)

	// weights: 8→3, 4→2, 2→1 → (24+8+2)/6
	assert.InDelta(t, 34.0/6.0, analysis.OverallRiskScore, 1e-9)
	assert.Equal(t, datatypes.RiskLevelHigh, analysis.RiskLevel)
	assert.Len(t, analysis.HighRiskClauses, 1)
	assert.Len(t, analysis.MediumRiskClauses, 1)
	assert.Len(t, analysis.LowRiskClauses, 1)
}

func TestAggregate_OrderIndependent(t *testing.T) {
	clauses := []datatypes.Clause{
		scored("c1", datatypes.CategoryLiability, 9.5),
		scored("c2", datatypes.CategoryIP, 6.2),
		scored("c3", datatypes.CategoryPayment, 3.3),
		scored("c4", datatypes.CategoryWarranty, 1.1),
		scored("c5", datatypes.CategoryOther, 7.0),
	}
	want := Aggregate(clauses).OverallRiskScore

	r := rand.New(rand.NewSource(42))
	for i := 0; i < 20; i++ {
		shuffled := make([]datatypes.Clause, len(clauses))
		copy(shuffled, clauses)
		r.Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})
		assert.InDelta(t, want, Aggregate(shuffled).OverallRiskScore, 1e-9)
	}
}

func TestAggregate_ZeroClauses(t *testing.T) {
	analysis := Aggregate(nil)
	assert.Equal(t, 0.0, analysis.OverallRiskScore)
	assert.Equal(t, datatypes.RiskLevelLow, analysis.RiskLevel)
	assert.Empty(t, analysis.HighRiskClauses)
	assert.NotEmpty(t, analysis.Summary)
}

func TestAggregate_IgnoresUnscoredClauses(t *testing.T) {
	clauses := []datatypes.Clause{
		scored("c1", datatypes.CategoryLiability, 6),
		{ClauseID: "c2", Category: datatypes.CategoryOther, Text: "never scored"},
	}
	analysis := Aggregate(clauses)
	assert.Equal(t, 6.0, analysis.OverallRiskScore)
	assert.Len(t, analysis.HighRiskClauses, 1)
	assert.Empty(t, analysis.LowRiskClauses)
}

func TestSummary_DescendingScoreWithTopConcern(t *testing.T) {
	clauses := []datatypes.Clause{
		scored("c1", datatypes.CategoryIP, 7.0, "perpetual assignment"),
		scored("c2", datatypes.CategoryLiability, 9.0, "uncapped liability", "no insurance floor"),
		scored("c3", datatypes.CategoryPayment, 2.0),
	}
	analysis := Aggregate(clauses)

	liabilityIdx := indexOf(t, analysis.Summary, "LIABILITY 9.0")
	ipIdx := indexOf(t, analysis.Summary, "IP 7.0")
	assert.Less(t, liabilityIdx, ipIdx, "higher score listed first")
	assert.Contains(t, analysis.Summary, "uncapped liability")
	assert.NotContains(t, analysis.Summary, "no insurance floor", "only the top concern is listed")
}

func indexOf(t *testing.T, s, substr string) int {
	t.Helper()
	idx := -1
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			idx = i
			break
		}
	}
	require.GreaterOrEqual(t, idx, 0, "summary %q missing %q", s, substr)
	return idx
}
