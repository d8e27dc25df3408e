// Copyright (C) 2025 ContractGuard AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package negotiation

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/contractguard-ai/contractguard/services/agent/datatypes"
	"github.com/contractguard-ai/contractguard/services/agent/parser"
	"github.com/contractguard-ai/contractguard/services/reasoning"
)

const strategySystemPrompt = "You are a contract negotiation strategist. " +
	"Plan a negotiation and answer only with the requested JSON."

// buildStrategy plans the negotiation from the High/Critical clauses. The
// reasoning service proposes the narrative plan; on failure a deterministic
// plan is derived from the clause data instead, so starting a negotiation
// never depends on service availability.
func (m *Machine) buildStrategy(ctx context.Context, contract *datatypes.Contract, analysis *datatypes.RiskAnalysis) datatypes.NegotiationStrategy {
	focus := prioritizeClauses(analysis.HighRiskClauses)

	resp, err := m.client.Invoke(ctx, reasoning.Request{
		SessionID:   contract.ContractID,
		System:      strategySystemPrompt,
		Prompt:      strategyPrompt(contract, analysis, focus),
		Temperature: 0.4,
	})
	if err == nil {
		var strategy datatypes.NegotiationStrategy
		if perr := parser.Decode(resp.Content, "negotiation strategy", &strategy); perr == nil {
			normalizeStrategy(&strategy, focus, m.config.DefaultEstimatedRounds)
			return strategy
		} else {
			slog.Warn("Unusable strategy output, deriving plan from clause data",
				"contract_id", contract.ContractID, "error", perr)
		}
	} else {
		slog.Warn("Reasoning service failed for strategy, deriving plan from clause data",
			"contract_id", contract.ContractID, "error", err)
	}

	return fallbackStrategy(focus, m.config.DefaultEstimatedRounds)
}

// prioritizeClauses orders clauses by descending risk score, ties broken by
// the fixed category order, then by original position.
func prioritizeClauses(clauses []datatypes.Clause) []datatypes.Clause {
	ordered := make([]datatypes.Clause, len(clauses))
	copy(ordered, clauses)
	sort.SliceStable(ordered, func(i, j int) bool {
		si, sj := scoreOf(&ordered[i]), scoreOf(&ordered[j])
		if si != sj {
			return si > sj
		}
		return ordered[i].Category.NegotiationRank() < ordered[j].Category.NegotiationRank()
	})
	return ordered
}

func scoreOf(clause *datatypes.Clause) float64 {
	if clause.RiskScore == nil {
		return 0
	}
	return *clause.RiskScore
}

// requestPriority maps a risk score onto the 1-10 request priority scale.
func requestPriority(score float64) int {
	priority := int(math.Round(score))
	if priority < 1 {
		priority = 1
	}
	if priority > 10 {
		priority = 10
	}
	return priority
}

func normalizeStrategy(strategy *datatypes.NegotiationStrategy, focus []datatypes.Clause, defaultRounds int) {
	if strategy.EstimatedRounds <= 0 {
		strategy.EstimatedRounds = defaultRounds
	}
	if len(strategy.Priorities) == 0 {
		for _, clause := range focus {
			strategy.Priorities = append(strategy.Priorities, string(clause.Category))
		}
	}
	if strategy.CompromisePositions == nil {
		strategy.CompromisePositions = map[string]string{}
	}
	if strategy.OverallApproach == "" {
		strategy.OverallApproach = "Address the highest-risk clauses first and trade flexibility on lower-priority terms."
	}
}

// fallbackStrategy derives a deterministic plan directly from the prioritized
// clauses.
func fallbackStrategy(focus []datatypes.Clause, defaultRounds int) datatypes.NegotiationStrategy {
	strategy := datatypes.NegotiationStrategy{
		OverallApproach:     "Address the highest-risk clauses first and trade flexibility on lower-priority terms.",
		CompromisePositions: map[string]string{},
		EstimatedRounds:     defaultRounds,
	}
	for _, clause := range focus {
		strategy.Priorities = append(strategy.Priorities, string(clause.Category))
		if scoreOf(&clause) >= 8 {
			strategy.WalkAwayConditions = append(strategy.WalkAwayConditions,
				fmt.Sprintf("No movement on the %s clause", clause.Category))
		}
		if rec := moderateRecommendation(&clause); rec != "" {
			strategy.CompromisePositions[string(clause.Category)] = rec
		}
	}
	return strategy
}

// moderateRecommendation returns the clause's Moderate-tier proposal, or the
// first available proposal.
func moderateRecommendation(clause *datatypes.Clause) string {
	for _, rec := range clause.Recommendations {
		if rec.Tier == datatypes.TierModerate {
			return rec.ProposedText
		}
	}
	if len(clause.Recommendations) > 0 {
		return clause.Recommendations[0].ProposedText
	}
	return ""
}

// minimalRecommendation returns the clause's Minimal-tier proposal, or the
// last available proposal.
func minimalRecommendation(clause *datatypes.Clause) string {
	for _, rec := range clause.Recommendations {
		if rec.Tier == datatypes.TierMinimal {
			return rec.ProposedText
		}
	}
	if n := len(clause.Recommendations); n > 0 {
		return clause.Recommendations[n-1].ProposedText
	}
	return ""
}

func strategyPrompt(contract *datatypes.Contract, analysis *datatypes.RiskAnalysis, focus []datatypes.Clause) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Plan a negotiation for a %s contract with overall risk %.1f/10.\n\n",
		contract.ContractType, analysis.OverallRiskScore)
	b.WriteString("High-risk clauses, most important first:\n")
	for _, clause := range focus {
		fmt.Fprintf(&b, "- %s (score %.1f)", clause.Category, scoreOf(&clause))
		if concern := clause.TopConcern(); concern != "" {
			fmt.Fprintf(&b, ": %s", concern)
		}
		b.WriteString("\n")
	}
	b.WriteString(`
Answer as JSON:
{
  "overall_approach": "...",
  "priorities": ["..."],
  "walk_away_conditions": ["..."],
  "compromise_positions": {"<category>": "<fallback position>"},
  "estimated_rounds": <number>
}`)
	return b.String()
}
