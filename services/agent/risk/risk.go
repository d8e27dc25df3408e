// Copyright (C) 2025 ContractGuard AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package risk converts per-clause reasoning assessments into scores, levels,
// and the contract-level aggregate analysis.
//
// The numeric functions here are pure and order-independent so callers may
// score clauses concurrently and aggregate afterwards.
package risk

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/contractguard-ai/contractguard/services/agent/datatypes"
)

// InvalidScoreError reports an upstream score that could not be coerced into
// a number. Scores that are numeric but out of range are clamped instead.
type InvalidScoreError struct {
	ClauseID string
	Raw      string
}

func (e *InvalidScoreError) Error() string {
	return fmt.Sprintf("invalid risk score for clause %s: %q is not a number in [0,10]", e.ClauseID, e.Raw)
}

// ClampScore coerces a raw numeric score into [0, 10]. NaN and infinities
// cannot be clamped meaningfully and return InvalidScoreError.
func ClampScore(clauseID string, raw float64) (float64, error) {
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		return 0, &InvalidScoreError{ClauseID: clauseID, Raw: fmt.Sprintf("%v", raw)}
	}
	if raw < 0 {
		return 0, nil
	}
	if raw > 10 {
		return 10, nil
	}
	return raw, nil
}

// Level maps a score onto the discrete risk bands. Boundaries are
// inclusive-lower/exclusive-upper except the top band, which is closed at 7.
func Level(score float64) datatypes.RiskLevel {
	switch {
	case score < 3:
		return datatypes.RiskLevelLow
	case score < 5:
		return datatypes.RiskLevelMedium
	case score < 7:
		return datatypes.RiskLevelHigh
	default:
		return datatypes.RiskLevelCritical
	}
}

// weight returns the aggregation weight for a clause score. Higher-risk
// clauses count more heavily than their number alone would suggest.
func weight(score float64) float64 {
	switch {
	case score < 4:
		return 1
	case score < 7:
		return 2
	default:
		return 3
	}
}

// Aggregate computes the contract-level RiskAnalysis from scored clauses.
// Unscored clauses are ignored. The weighted mean is order-independent; with
// zero scored clauses the overall score is 0 and the level Low.
func Aggregate(clauses []datatypes.Clause) *datatypes.RiskAnalysis {
	var weightedSum, totalWeight float64
	analysis := &datatypes.RiskAnalysis{
		HighRiskClauses:   []datatypes.Clause{},
		MediumRiskClauses: []datatypes.Clause{},
		LowRiskClauses:    []datatypes.Clause{},
		AnalyzedAt:        time.Now().UTC(),
	}

	for _, clause := range clauses {
		if !clause.Scored() {
			continue
		}
		score := *clause.RiskScore
		w := weight(score)
		weightedSum += score * w
		totalWeight += w

		switch Level(score) {
		case datatypes.RiskLevelHigh, datatypes.RiskLevelCritical:
			analysis.HighRiskClauses = append(analysis.HighRiskClauses, clause)
		case datatypes.RiskLevelMedium:
			analysis.MediumRiskClauses = append(analysis.MediumRiskClauses, clause)
		default:
			analysis.LowRiskClauses = append(analysis.LowRiskClauses, clause)
		}
	}

	if totalWeight > 0 {
		analysis.OverallRiskScore = weightedSum / totalWeight
	}
	analysis.RiskLevel = Level(analysis.OverallRiskScore)
	analysis.Summary = summarize(analysis)
	return analysis
}

// summarize builds the deterministic executive summary: High/Critical clauses
// by category with their top concern, in descending score order, ties broken
// by original clause order.
func summarize(analysis *datatypes.RiskAnalysis) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Overall risk %.1f/10 (%s). %d high-risk, %d medium-risk, %d low-risk clauses.",
		analysis.OverallRiskScore, analysis.RiskLevel,
		len(analysis.HighRiskClauses), len(analysis.MediumRiskClauses), len(analysis.LowRiskClauses))

	if len(analysis.HighRiskClauses) == 0 {
		return b.String()
	}

	ordered := make([]datatypes.Clause, len(analysis.HighRiskClauses))
	copy(ordered, analysis.HighRiskClauses)
	sort.SliceStable(ordered, func(i, j int) bool {
		return *ordered[i].RiskScore > *ordered[j].RiskScore
	})

	b.WriteString(" Key issues:")
	for _, clause := range ordered {
		fmt.Fprintf(&b, " [%s %.1f]", clause.Category, *clause.RiskScore)
		if concern := clause.TopConcern(); concern != "" {
			fmt.Fprintf(&b, " %s.", concern)
		}
	}
	return b.String()
}
