// Copyright (C) 2025 ContractGuard AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package risk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/contractguard-ai/contractguard/services/agent/datatypes"
	"github.com/contractguard-ai/contractguard/services/agent/parser"
	"github.com/contractguard-ai/contractguard/services/reasoning"
)

var tracer = otel.Tracer("contractguard.agent.risk")

const scoringSystemPrompt = "You are a contract risk analyst. Assess the clause " +
	"you are given and answer with a JSON object of the form " +
	`{"risk_score": <number 0-10>, "concerns": [<strings>], "impact": <string>}. ` +
	"Do not include any other text."

// assessment is the wire shape the reasoning service is asked to produce.
type assessment struct {
	RiskScore float64  `json:"risk_score"`
	Concerns  []string `json:"concerns"`
	Impact    string   `json:"impact"`
}

// Engine scores individual clauses through the reasoning service.
type Engine struct {
	client reasoning.Client
}

// NewEngine returns an Engine backed by the given reasoning client. The
// client is expected to already carry the retry policy; the engine does not
// retry on its own.
func NewEngine(client reasoning.Client) *Engine {
	return &Engine{client: client}
}

// ScoreClause requests a risk assessment for one clause and fills the
// clause's risk fields in place. Safe to call concurrently for different
// clauses.
//
// Scores outside [0,10] are clamped; non-numeric scores surface as
// *InvalidScoreError. Output that yields no score at all surfaces as
// *parser.UnparsableResponseError.
func (e *Engine) ScoreClause(ctx context.Context, clause *datatypes.Clause, userCtx datatypes.UserContext, sessionID string) error {
	ctx, span := tracer.Start(ctx, "Engine.ScoreClause")
	defer span.End()
	span.SetAttributes(
		attribute.String("clause.id", clause.ClauseID),
		attribute.String("clause.category", string(clause.Category)),
	)

	resp, err := e.client.Invoke(ctx, reasoning.Request{
		SessionID: sessionID,
		System:    scoringSystemPrompt,
		Prompt:    scoringPrompt(clause, userCtx),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("risk assessment for clause %s: %w", clause.ClauseID, err)
	}

	if len(resp.Trace) > 0 {
		calls, skipped := parser.ExtractToolCalls(resp.Trace)
		span.SetAttributes(attribute.Int("reasoning.tool_calls", len(calls)))
		if skipped > 0 {
			slog.Warn("Skipped unrecognized reasoning trace events",
				"clause_id", clause.ClauseID,
				"tool_calls", len(calls),
				"skipped", skipped)
		}
	}

	result, err := e.parseAssessment(clause.ClauseID, resp.Content)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	score, err := ClampScore(clause.ClauseID, result.RiskScore)
	if err != nil {
		span.RecordError(err)
		return err
	}

	clause.RiskScore = &score
	clause.RiskLevel = Level(score)
	clause.Concerns = result.Concerns
	clause.Impact = result.Impact
	span.SetAttributes(attribute.Float64("clause.risk_score", score))
	return nil
}

// parseAssessment decodes the structured assessment, falling back to tolerant
// score recovery from prose before giving up.
func (e *Engine) parseAssessment(clauseID, content string) (*assessment, error) {
	var result assessment
	err := parser.Decode(content, "risk assessment", &result)
	if err == nil {
		return &result, nil
	}

	var perr *parser.UnparsableResponseError
	if !errors.As(err, &perr) {
		return nil, err
	}
	if score, ok := parser.RecoverScore(content); ok {
		slog.Warn("Recovered risk score from prose response", "clause_id", clauseID, "score", score)
		return &assessment{RiskScore: score}, nil
	}
	return nil, fmt.Errorf("clause %s: %w", clauseID, err)
}

// scoringPrompt renders the per-clause assessment request.
func scoringPrompt(clause *datatypes.Clause, userCtx datatypes.UserContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Clause category: %s\n", clause.Category)
	text := clause.FullText
	if text == "" {
		text = clause.Text
	}
	fmt.Fprintf(&b, "Clause text:\n%s\n\n", text)
	fmt.Fprintf(&b, "Our side: a %s company in the %s industry with %s risk tolerance.",
		strings.ToLower(userCtx.CompanySize), userCtx.Industry, strings.ToLower(userCtx.RiskTolerance))
	if userCtx.Jurisdiction != "" {
		fmt.Fprintf(&b, " Jurisdiction: %s.", userCtx.Jurisdiction)
	}
	b.WriteString("\nAssess the risk this clause poses to our side.")
	return b.String()
}
