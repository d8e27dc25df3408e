// Copyright (C) 2025 ContractGuard AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package recommend generates tiered alternative-language proposals for risky
// clauses.
//
// The engine always returns exactly three tiers (Aggressive, Moderate,
// Minimal). Reasoning-service failure is masked by the embedded clause
// library, never surfaced as an error: a risky clause without alternatives is
// worse for the user than a library-standard alternative.
package recommend

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/contractguard-ai/contractguard/services/agent/datatypes"
	"github.com/contractguard-ai/contractguard/services/agent/parser"
	"github.com/contractguard-ai/contractguard/services/knowledge"
	"github.com/contractguard-ai/contractguard/services/reasoning"
)

var tracer = otel.Tracer("contractguard.agent.recommend")

const recommendSystemPrompt = "You are a contract negotiation expert. Propose " +
	"alternative clause language. Never promise or imply guaranteed legal " +
	"outcomes. Answer only with the requested JSON."

// certaintyPhrases flag proposed language that implies guaranteed legal
// outcomes. Tiers containing them are replaced with library text.
var certaintyPhrases = []string{
	"guarantee",
	"guaranteed",
	"guarantees",
	"will certainly",
	"certain to prevail",
	"assured outcome",
	"cannot lose",
	"will prevail",
	"risk-free",
}

// recommendationSet is the wire shape requested from the reasoning service.
type recommendationSet struct {
	Recommendations []struct {
		Tier         string `json:"tier"`
		ProposedText string `json:"proposed_text"`
		Rationale    string `json:"rationale"`
		Likelihood   string `json:"likelihood_accepted"`
	} `json:"recommendations"`
}

// Engine produces tiered recommendations for a clause.
type Engine struct {
	client    reasoning.Client
	retriever knowledge.Retriever
	library   *Library
}

// NewEngine builds the engine. retriever may be nil; the engine then prompts
// without similar-clause examples.
func NewEngine(client reasoning.Client, retriever knowledge.Retriever) (*Engine, error) {
	library, err := LoadLibrary()
	if err != nil {
		return nil, err
	}
	return &Engine{client: client, retriever: retriever, library: library}, nil
}

// Recommend returns exactly three tiers for the clause, in Aggressive,
// Moderate, Minimal order. usedFallback reports whether any tier came from
// the static library rather than the reasoning service.
func (e *Engine) Recommend(ctx context.Context, clause *datatypes.Clause, userCtx datatypes.UserContext, sessionID string) (recs []datatypes.TieredRecommendation, usedFallback bool) {
	ctx, span := tracer.Start(ctx, "Engine.Recommend")
	defer span.End()
	span.SetAttributes(
		attribute.String("clause.id", clause.ClauseID),
		attribute.String("clause.category", string(clause.Category)),
	)

	examples := e.retrieveExamples(ctx, clause)

	resp, err := e.client.Invoke(ctx, reasoning.Request{
		SessionID:   sessionID,
		System:      recommendSystemPrompt,
		Prompt:      recommendPrompt(clause, userCtx, examples),
		Temperature: 0.5,
	})
	if err != nil {
		slog.Warn("Reasoning service failed for recommendations, using clause library",
			"clause_id", clause.ClauseID, "error", err)
		span.SetAttributes(attribute.Bool("recommend.fallback", true))
		return e.library.Recommendations(clause.Category), true
	}

	var set recommendationSet
	if err := parser.Decode(resp.Content, "recommendation set", &set); err != nil {
		slog.Warn("Unusable recommendation output, using clause library",
			"clause_id", clause.ClauseID, "error", err)
		span.SetAttributes(attribute.Bool("recommend.fallback", true))
		return e.library.Recommendations(clause.Category), true
	}

	return e.normalize(clause, &set)
}

// normalize maps loose reasoning output onto the fixed three-tier shape. Any
// tier that is missing, empty, or violates the no-certainty content contract
// is substituted from the library.
func (e *Engine) normalize(clause *datatypes.Clause, set *recommendationSet) ([]datatypes.TieredRecommendation, bool) {
	byTier := map[datatypes.RecommendationTier]*datatypes.TieredRecommendation{}
	order := []datatypes.RecommendationTier{
		datatypes.TierAggressive, datatypes.TierModerate, datatypes.TierMinimal,
	}

	for i, raw := range set.Recommendations {
		tier := tierFromLabel(raw.Tier, i)
		if tier == "" || byTier[tier] != nil {
			continue
		}
		if strings.TrimSpace(raw.ProposedText) == "" {
			continue
		}
		if hasCertaintyLanguage(raw.ProposedText) || hasCertaintyLanguage(raw.Rationale) {
			slog.Warn("Dropping recommendation with certainty language",
				"clause_id", clause.ClauseID, "tier", tier)
			continue
		}
		byTier[tier] = &datatypes.TieredRecommendation{
			Tier:         tier,
			ProposedText: strings.TrimSpace(raw.ProposedText),
			Rationale:    strings.TrimSpace(raw.Rationale),
			Likelihood:   likelihoodFromLabel(raw.Likelihood, tier),
		}
	}

	usedFallback := false
	result := make([]datatypes.TieredRecommendation, 0, 3)
	for _, tier := range order {
		if rec := byTier[tier]; rec != nil {
			result = append(result, *rec)
			continue
		}
		usedFallback = true
		result = append(result, e.library.Tier(clause.Category, tier))
	}
	return result, usedFallback
}

func (e *Engine) retrieveExamples(ctx context.Context, clause *datatypes.Clause) []knowledge.Example {
	if e.retriever == nil {
		return nil
	}
	query := fmt.Sprintf("%s clause: %s", clause.Category, clause.Text)
	examples, err := e.retriever.Retrieve(ctx, query, 3)
	if err != nil {
		slog.Warn("Knowledge retrieval failed, recommending without examples",
			"clause_id", clause.ClauseID, "error", err)
		return nil
	}
	return examples
}

func tierFromLabel(label string, position int) datatypes.RecommendationTier {
	switch strings.ToUpper(strings.TrimSpace(label)) {
	case "AGGRESSIVE", "IDEAL":
		return datatypes.TierAggressive
	case "MODERATE", "BALANCED":
		return datatypes.TierModerate
	case "MINIMAL", "COMPROMISE":
		return datatypes.TierMinimal
	}
	// Unlabeled output: trust the requested order.
	switch position {
	case 0:
		return datatypes.TierAggressive
	case 1:
		return datatypes.TierModerate
	case 2:
		return datatypes.TierMinimal
	}
	return ""
}

func likelihoodFromLabel(label string, tier datatypes.RecommendationTier) datatypes.AcceptanceLikelihood {
	switch strings.ToUpper(strings.TrimSpace(label)) {
	case "LOW":
		return datatypes.LikelihoodLow
	case "MEDIUM", "MODERATE":
		return datatypes.LikelihoodMedium
	case "HIGH":
		return datatypes.LikelihoodHigh
	}
	// Missing likelihood: use the tendency of the tier, not a fixed mapping.
	if tier == datatypes.TierAggressive {
		return datatypes.LikelihoodLow
	}
	return datatypes.LikelihoodMedium
}

func hasCertaintyLanguage(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range certaintyPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// recommendPrompt renders the tiered-recommendation request.
func recommendPrompt(clause *datatypes.Clause, userCtx datatypes.UserContext, examples []knowledge.Example) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Analyze this %s clause and provide alternative language.\n\n", clause.Category)
	text := clause.FullText
	if text == "" {
		text = clause.Text
	}
	fmt.Fprintf(&b, "Current clause:\n%s\n\n", text)
	if clause.Scored() {
		fmt.Fprintf(&b, "Risk score: %.1f/10\n", *clause.RiskScore)
	}
	if len(clause.Concerns) > 0 {
		fmt.Fprintf(&b, "Concerns: %s\n", strings.Join(clause.Concerns, ", "))
	}
	fmt.Fprintf(&b, "\nOur side: a %s company in the %s industry with %s risk tolerance.\n",
		strings.ToLower(userCtx.CompanySize), userCtx.Industry, strings.ToLower(userCtx.RiskTolerance))

	if len(examples) > 0 {
		b.WriteString("\nIndustry-standard examples:\n")
		for i, ex := range examples {
			fmt.Fprintf(&b, "Example %d (relevance %.2f):\n%s\n\n", i+1, ex.Certainty, ex.Text)
		}
	}

	b.WriteString(`Provide exactly three alternatives as JSON:
{
  "recommendations": [
    {"tier": "AGGRESSIVE", "proposed_text": "...", "rationale": "...", "likelihood_accepted": "LOW/MEDIUM/HIGH"},
    {"tier": "MODERATE", "proposed_text": "...", "rationale": "...", "likelihood_accepted": "LOW/MEDIUM/HIGH"},
    {"tier": "MINIMAL", "proposed_text": "...", "rationale": "...", "likelihood_accepted": "LOW/MEDIUM/HIGH"}
  ]
}
AGGRESSIVE is the ideal position, MODERATE is balanced, MINIMAL is the smallest acceptable change.`)
	return b.String()
}
