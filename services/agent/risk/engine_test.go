// Copyright (C) 2025 ContractGuard AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package risk

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contractguard-ai/contractguard/services/agent/datatypes"
	"github.com/contractguard-ai/contractguard/services/agent/parser"
	"github.com/contractguard-ai/contractguard/services/reasoning"
)

type stubReasoner struct {
	content string
	trace   []reasoning.TraceEvent
	err     error
	lastReq reasoning.Request
}

func (s *stubReasoner) Invoke(_ context.Context, req reasoning.Request) (*reasoning.Response, error) {
	s.lastReq = req
	if s.err != nil {
		return nil, s.err
	}
	return &reasoning.Response{Content: s.content, Trace: s.trace}, nil
}

func testClause() *datatypes.Clause {
	return &datatypes.Clause{
		ClauseID: "c1",
		Category: datatypes.CategoryLiability,
		Text:     "Contractor shall be liable without limit.",
	}
}

func TestScoreClause_StructuredResponse(t *testing.T) {
	stub := &stubReasoner{content: `{"risk_score": 8.5, "concerns": ["uncapped"], "impact": "severe exposure"}`}
	engine := NewEngine(stub)

	clause := testClause()
	err := engine.ScoreClause(context.Background(), clause, datatypes.DefaultUserContext(), "s1")
	require.NoError(t, err)
	require.True(t, clause.Scored())
	assert.Equal(t, 8.5, *clause.RiskScore)
	assert.Equal(t, datatypes.RiskLevelCritical, clause.RiskLevel)
	assert.Equal(t, []string{"uncapped"}, clause.Concerns)
	assert.Equal(t, "severe exposure", clause.Impact)
	assert.Contains(t, stub.lastReq.Prompt, "liable without limit")
}

func TestScoreClause_ClampsOutOfRangeScore(t *testing.T) {
	stub := &stubReasoner{content: `{"risk_score": 12, "concerns": []}`}
	engine := NewEngine(stub)

	clause := testClause()
	require.NoError(t, engine.ScoreClause(context.Background(), clause, datatypes.DefaultUserContext(), "s1"))
	assert.Equal(t, 10.0, *clause.RiskScore)
	assert.Equal(t, datatypes.RiskLevelCritical, clause.RiskLevel)
}

func TestScoreClause_RecoversScoreFromProse(t *testing.T) {
	stub := &stubReasoner{content: "Given the unlimited exposure, I would put the risk score at 7.5 for this clause."}
	engine := NewEngine(stub)

	clause := testClause()
	require.NoError(t, engine.ScoreClause(context.Background(), clause, datatypes.DefaultUserContext(), "s1"))
	assert.Equal(t, 7.5, *clause.RiskScore)
	assert.Empty(t, clause.Concerns)
}

func TestScoreClause_LogsSkippedTraceEvents(t *testing.T) {
	stub := &stubReasoner{
		content: `{"risk_score": 6, "concerns": ["late fees"]}`,
		trace: []reasoning.TraceEvent{
			{Tool: "risk_analyzer", Input: "clause text"},
			{Tool: "mystery_tool"},
			{Tool: ""},
		},
	}
	engine := NewEngine(stub)

	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	defer slog.SetDefault(prev)

	clause := testClause()
	require.NoError(t, engine.ScoreClause(context.Background(), clause, datatypes.DefaultUserContext(), "s1"))
	assert.Equal(t, 6.0, *clause.RiskScore)
	// One recognized tool call; the two unrecognized events are counted, not fatal.
	assert.Contains(t, buf.String(), "skipped=2")
	assert.Contains(t, buf.String(), "tool_calls=1")
}

func TestScoreClause_UnparsableResponse(t *testing.T) {
	stub := &stubReasoner{content: "I cannot help with that."}
	engine := NewEngine(stub)

	clause := testClause()
	err := engine.ScoreClause(context.Background(), clause, datatypes.DefaultUserContext(), "s1")
	var perr *parser.UnparsableResponseError
	require.ErrorAs(t, err, &perr)
	assert.False(t, clause.Scored())
}

func TestScoreClause_ServiceErrorPropagates(t *testing.T) {
	stub := &stubReasoner{err: reasoning.ErrServiceUnavailable}
	engine := NewEngine(stub)

	clause := testClause()
	err := engine.ScoreClause(context.Background(), clause, datatypes.DefaultUserContext(), "s1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, reasoning.ErrServiceUnavailable))
	assert.False(t, clause.Scored())
}
