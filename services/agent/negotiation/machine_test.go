// Copyright (C) 2025 ContractGuard AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package negotiation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contractguard-ai/contractguard/services/agent/datatypes"
	"github.com/contractguard-ai/contractguard/services/reasoning"
)

// fakeReasoner answers strategy/draft/classification prompts from canned
// handlers keyed on the system prompt.
type fakeReasoner struct {
	classify func(req reasoning.Request) (*reasoning.Response, error)
	fail     bool
}

func (f *fakeReasoner) Invoke(_ context.Context, req reasoning.Request) (*reasoning.Response, error) {
	if f.fail {
		return nil, reasoning.ErrServiceUnavailable
	}
	switch req.System {
	case strategySystemPrompt:
		return &reasoning.Response{Content: `{
			"overall_approach": "Lead with liability.",
			"priorities": ["LIABILITY", "PAYMENT"],
			"walk_away_conditions": ["No movement on the LIABILITY clause"],
			"compromise_positions": {"LIABILITY": "Cap at 24 months of fees."},
			"estimated_rounds": 3
		}`}, nil
	case draftSystemPrompt:
		return &reasoning.Response{Content: "Dear counsel, please find our requested changes below."}, nil
	case classifySystemPrompt:
		if f.classify != nil {
			return f.classify(req)
		}
		return nil, fmt.Errorf("no classification handler")
	}
	return nil, fmt.Errorf("unexpected system prompt %q", req.System)
}

func classifyAll(status string) func(req reasoning.Request) (*reasoning.Response, error) {
	return func(req reasoning.Request) (*reasoning.Response, error) {
		// Recover request ids from the prompt the machine built.
		ids := requestIDsFromPrompt(req.Prompt)
		classification := map[string]any{
			"accepted_request_ids":  []string{},
			"rejected_request_ids":  []string{},
			"countered_request_ids": []string{},
			"sentiment":             "neutral",
		}
		switch status {
		case "accept":
			classification["accepted_request_ids"] = ids
			classification["sentiment"] = "positive"
		case "reject":
			classification["rejected_request_ids"] = ids
			classification["sentiment"] = "negative"
		case "counter":
			classification["countered_request_ids"] = ids
		}
		data, _ := json.Marshal(classification)
		return &reasoning.Response{Content: string(data)}, nil
	}
}

// requestIDsFromPrompt extracts the "- id <uuid>" lines the classify prompt
// lists.
func requestIDsFromPrompt(prompt string) []string {
	var ids []string
	for _, line := range splitLines(prompt) {
		var id string
		if n, _ := fmt.Sscanf(line, "- id %s", &id); n == 1 {
			ids = append(ids, id)
		}
	}
	return ids
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	return append(lines, s[start:])
}

func scoredClause(id string, category datatypes.ClauseCategory, score float64) datatypes.Clause {
	level := datatypes.RiskLevelLow
	switch {
	case score >= 7:
		level = datatypes.RiskLevelCritical
	case score >= 5:
		level = datatypes.RiskLevelHigh
	case score >= 3:
		level = datatypes.RiskLevelMedium
	}
	return datatypes.Clause{
		ClauseID:  id,
		Category:  category,
		Text:      "original " + id + " text",
		RiskScore: &score,
		RiskLevel: level,
		Concerns:  []string{"concern for " + id},
		Recommendations: []datatypes.TieredRecommendation{
			{Tier: datatypes.TierModerate, ProposedText: "moderate fix for " + id, Rationale: "standard", Likelihood: datatypes.LikelihoodHigh},
			{Tier: datatypes.TierMinimal, ProposedText: "minimal fix for " + id, Rationale: "small", Likelihood: datatypes.LikelihoodHigh},
		},
	}
}

func negotiableContract() (*datatypes.Contract, *datatypes.RiskAnalysis) {
	clauses := []datatypes.Clause{
		scoredClause("c-liability", datatypes.CategoryLiability, 8),
		scoredClause("c-payment", datatypes.CategoryPayment, 4),
		scoredClause("c-confidentiality", datatypes.CategoryConfidentiality, 2),
	}
	contract := &datatypes.Contract{
		ContractID:   "ct-1",
		UserID:       "user-1",
		ContractType: "service_agreement",
		Status:       datatypes.ContractNeedsNegotiation,
		Clauses:      clauses,
		UserContext:  datatypes.DefaultUserContext(),
	}
	analysis := &datatypes.RiskAnalysis{
		OverallRiskScore: 6.0,
		RiskLevel:        datatypes.RiskLevelHigh,
		HighRiskClauses:  []datatypes.Clause{clauses[0]},
	}
	return contract, analysis
}

func TestStart_CreatesRoundOneInPriorityOrder(t *testing.T) {
	machine := NewMachine(&fakeReasoner{}, DefaultConfig())
	contract, analysis := negotiableContract()

	session, err := machine.Start(context.Background(), contract, analysis)
	require.NoError(t, err)

	assert.Equal(t, datatypes.SessionAwaitingResponse, session.Status)
	require.Len(t, session.Rounds, 1)
	round := session.Rounds[0]
	assert.Equal(t, 1, round.RoundNumber)
	assert.NotEmpty(t, round.OutboundDraft)

	// Only Liability (8) and Payment (4) reach the Medium threshold, in that
	// priority order.
	require.Len(t, round.Requests, 2)
	assert.Equal(t, datatypes.CategoryLiability, round.Requests[0].Category)
	assert.Equal(t, datatypes.CategoryPayment, round.Requests[1].Category)
	assert.Equal(t, 8, round.Requests[0].Priority)
	assert.Equal(t, "moderate fix for c-liability", round.Requests[0].ProposedText)
}

func TestStart_NoNegotiableClauses(t *testing.T) {
	machine := NewMachine(&fakeReasoner{}, DefaultConfig())
	contract, analysis := negotiableContract()
	for i := range contract.Clauses {
		low := 1.0
		contract.Clauses[i].RiskScore = &low
		contract.Clauses[i].RiskLevel = datatypes.RiskLevelLow
	}

	_, err := machine.Start(context.Background(), contract, analysis)
	var rerr *InvalidRoundStateError
	require.ErrorAs(t, err, &rerr)
}

func TestStart_RequestCapRespected(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxRequestsPerRound = 1
	machine := NewMachine(&fakeReasoner{}, cfg)
	contract, analysis := negotiableContract()

	session, err := machine.Start(context.Background(), contract, analysis)
	require.NoError(t, err)
	require.Len(t, session.Rounds[0].Requests, 1)
	assert.Equal(t, datatypes.CategoryLiability, session.Rounds[0].Requests[0].Category)
}

func TestStart_StrategyFallbackWhenServiceDown(t *testing.T) {
	machine := NewMachine(&fakeReasoner{fail: true}, DefaultConfig())
	contract, analysis := negotiableContract()

	session, err := machine.Start(context.Background(), contract, analysis)
	require.NoError(t, err)
	assert.NotEmpty(t, session.Strategy.OverallApproach)
	assert.Equal(t, 3, session.Strategy.EstimatedRounds)
	assert.NotEmpty(t, session.Rounds[0].OutboundDraft, "template draft still produced")
}

func TestAdvance_AcceptAllEndsSession(t *testing.T) {
	reasoner := &fakeReasoner{classify: classifyAll("accept")}
	machine := NewMachine(reasoner, DefaultConfig())
	contract, analysis := negotiableContract()

	session, err := machine.Start(context.Background(), contract, analysis)
	require.NoError(t, err)
	require.NoError(t, machine.MarkSent(session))

	action, err := machine.Advance(context.Background(), session, "We accept all of your proposed changes.")
	require.NoError(t, err)
	assert.Equal(t, datatypes.ActionAccept, action)
	assert.Equal(t, datatypes.SessionAccepted, session.Status)
	assert.Equal(t, 1.0, session.SuccessRate)
	assert.Len(t, session.Rounds, 1, "no round 2 after full acceptance")
	assert.NotNil(t, session.CompletedAt)
}

func TestAdvance_RetriedCallAfterStallRejected(t *testing.T) {
	reasoner := &fakeReasoner{classify: classifyAll("reject")}
	machine := NewMachine(reasoner, DefaultConfig())
	contract, analysis := negotiableContract()

	session, err := machine.Start(context.Background(), contract, analysis)
	require.NoError(t, err)

	_, err = machine.Advance(context.Background(), session, "No. We decline all changes.")
	require.NoError(t, err)
	_, err = machine.Advance(context.Background(), session, "Still no.")
	require.NoError(t, err)
	require.Equal(t, datatypes.SessionStalled, session.Status)
	countersBefore := session.TotalRequests

	// A retried network call replays the same response text. The stalled
	// round is no longer AwaitingResponse, so the retry must be rejected
	// without double-counting anything.
	_, err = machine.Advance(context.Background(), session, "Still no.")
	var rerr *InvalidRoundStateError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, countersBefore, session.TotalRequests, "counters unchanged by rejected call")
}

func TestAdvance_TerminalSessionRejected(t *testing.T) {
	reasoner := &fakeReasoner{classify: classifyAll("accept")}
	machine := NewMachine(reasoner, DefaultConfig())
	contract, analysis := negotiableContract()

	session, err := machine.Start(context.Background(), contract, analysis)
	require.NoError(t, err)
	_, err = machine.Advance(context.Background(), session, "We accept everything.")
	require.NoError(t, err)

	_, err = machine.Advance(context.Background(), session, "We accept everything.")
	var rerr *InvalidRoundStateError
	require.ErrorAs(t, err, &rerr)
}

func TestAdvance_CounterCreatesContiguousRounds(t *testing.T) {
	reasoner := &fakeReasoner{classify: classifyAll("counter")}
	machine := NewMachine(reasoner, DefaultConfig())
	contract, analysis := negotiableContract()

	session, err := machine.Start(context.Background(), contract, analysis)
	require.NoError(t, err)

	action, err := machine.Advance(context.Background(), session, "We propose alternative language.")
	require.NoError(t, err)
	assert.Equal(t, datatypes.ActionContinue, action)
	assert.Equal(t, datatypes.SessionAwaitingResponse, session.Status)
	require.Len(t, session.Rounds, 2)
	for i, round := range session.Rounds {
		assert.Equal(t, i+1, round.RoundNumber)
	}
	assert.NotEmpty(t, session.Rounds[1].OutboundDraft)
	// Liability compromise comes from the strategy's compromise positions.
	assert.Equal(t, "Cap at 24 months of fees.", session.Rounds[1].Requests[0].ProposedText)
}

func TestAdvance_RejectionsStallAfterThreshold(t *testing.T) {
	reasoner := &fakeReasoner{classify: classifyAll("reject")}
	cfg := DefaultConfig()
	cfg.StallThreshold = 2
	machine := NewMachine(reasoner, cfg)
	contract, analysis := negotiableContract()

	session, err := machine.Start(context.Background(), contract, analysis)
	require.NoError(t, err)

	action, err := machine.Advance(context.Background(), session, "No. We decline all changes.")
	require.NoError(t, err)
	assert.Equal(t, datatypes.ActionContinue, action, "one hostile round is not yet a stall")

	action, err = machine.Advance(context.Background(), session, "Still no. Take it or leave it.")
	require.NoError(t, err)
	assert.Equal(t, datatypes.ActionStall, action)
	assert.Equal(t, datatypes.SessionStalled, session.Status)
	assert.False(t, session.Status.IsTerminal(), "stalled pauses for escalation, not terminal")
}

func TestAdvance_ConcludesAtRoundBudget(t *testing.T) {
	reasoner := &fakeReasoner{classify: classifyAll("counter")}
	machine := NewMachine(reasoner, DefaultConfig())
	contract, analysis := negotiableContract()

	session, err := machine.Start(context.Background(), contract, analysis)
	require.NoError(t, err)
	require.Equal(t, 3, session.Strategy.EstimatedRounds)

	for i := 0; i < 2; i++ {
		action, err := machine.Advance(context.Background(), session, "Counter again.")
		require.NoError(t, err)
		assert.Equal(t, datatypes.ActionContinue, action)
	}

	action, err := machine.Advance(context.Background(), session, "Counter once more.")
	require.NoError(t, err)
	assert.Equal(t, datatypes.ActionConclude, action)
	assert.Equal(t, datatypes.SessionCompleted, session.Status)
	assert.Contains(t, session.FinalRecommendation, "walking away",
		"liability at priority 8 unresolved crosses the walk-away bar")
	require.Len(t, session.Rounds, 3)
	for i, round := range session.Rounds {
		assert.Equal(t, i+1, round.RoundNumber)
	}
}

func TestAdvance_RejectedLowPriorityDropped(t *testing.T) {
	calls := 0
	reasoner := &fakeReasoner{}
	reasoner.classify = func(req reasoning.Request) (*reasoning.Response, error) {
		calls++
		ids := requestIDsFromPrompt(req.Prompt)
		// Reject everything, positive sentiment so the session continues.
		classification := map[string]any{
			"accepted_request_ids":  []string{},
			"rejected_request_ids":  ids,
			"countered_request_ids": []string{},
			"sentiment":             "positive",
		}
		data, _ := json.Marshal(classification)
		return &reasoning.Response{Content: string(data)}, nil
	}
	machine := NewMachine(reasoner, DefaultConfig())
	contract, analysis := negotiableContract()

	session, err := machine.Start(context.Background(), contract, analysis)
	require.NoError(t, err)

	_, err = machine.Advance(context.Background(), session, "We reject both changes.")
	require.NoError(t, err)
	require.Len(t, session.Rounds, 2)
	// Liability (priority 8) is re-proposed; Payment (priority 4) is dropped.
	require.Len(t, session.Rounds[1].Requests, 1)
	assert.Equal(t, datatypes.CategoryLiability, session.Rounds[1].Requests[0].Category)
}

func TestAdvance_NothingLeftToReproposeConcludes(t *testing.T) {
	reasoner := &fakeReasoner{}
	reasoner.classify = func(req reasoning.Request) (*reasoning.Response, error) {
		// Accept liability, reject everything else.
		var accepted, rejected []string
		for _, line := range splitLines(req.Prompt) {
			var id string
			if n, _ := fmt.Sscanf(line, "- id %s", &id); n != 1 {
				continue
			}
			if strings.Contains(line, string(datatypes.CategoryLiability)) {
				accepted = append(accepted, id)
			} else {
				rejected = append(rejected, id)
			}
		}
		classification := map[string]any{
			"accepted_request_ids":  accepted,
			"rejected_request_ids":  rejected,
			"countered_request_ids": []string{},
			"sentiment":             "positive",
		}
		data, _ := json.Marshal(classification)
		return &reasoning.Response{Content: string(data)}, nil
	}
	machine := NewMachine(reasoner, DefaultConfig())
	contract, analysis := negotiableContract()

	session, err := machine.Start(context.Background(), contract, analysis)
	require.NoError(t, err)

	// Liability (priority 8) is accepted and the rejected priority-4 payment
	// request is dropped, so a follow-up round would carry zero requests. The
	// session must conclude instead of awaiting a response to an empty round.
	action, err := machine.Advance(context.Background(), session,
		"We accept the liability change but decline the payment change.")
	require.NoError(t, err)
	assert.Equal(t, datatypes.ActionConclude, action)
	assert.Equal(t, datatypes.SessionCompleted, session.Status)
	require.Len(t, session.Rounds, 1, "no empty follow-up round appended")
	assert.Contains(t, session.FinalRecommendation, "signing as-is",
		"only a low-priority term was left unresolved")
}

func TestAdvance_UnparsableResponsePropagates(t *testing.T) {
	reasoner := &fakeReasoner{classify: func(reasoning.Request) (*reasoning.Response, error) {
		return &reasoning.Response{Content: "shrug"}, nil
	}}
	machine := NewMachine(reasoner, DefaultConfig())
	contract, analysis := negotiableContract()

	session, err := machine.Start(context.Background(), contract, analysis)
	require.NoError(t, err)

	_, err = machine.Advance(context.Background(), session, "something ambiguous")
	require.Error(t, err)
	assert.Equal(t, datatypes.SessionAwaitingResponse, session.Status, "session untouched")
	assert.Nil(t, session.Rounds[0].Classification)
}

func TestMarkSent_Twice(t *testing.T) {
	machine := NewMachine(&fakeReasoner{}, DefaultConfig())
	contract, analysis := negotiableContract()

	session, err := machine.Start(context.Background(), contract, analysis)
	require.NoError(t, err)

	require.NoError(t, machine.MarkSent(session))
	err = machine.MarkSent(session)
	var rerr *InvalidRoundStateError
	require.ErrorAs(t, err, &rerr)
}

func TestRecomputeCounters_Idempotent(t *testing.T) {
	reasoner := &fakeReasoner{classify: classifyAll("accept")}
	machine := NewMachine(reasoner, DefaultConfig())
	contract, analysis := negotiableContract()

	session, err := machine.Start(context.Background(), contract, analysis)
	require.NoError(t, err)
	_, err = machine.Advance(context.Background(), session, "We accept.")
	require.NoError(t, err)

	total, accepted := session.TotalRequests, session.AcceptedCount
	session.RecomputeCounters()
	session.RecomputeCounters()
	assert.Equal(t, total, session.TotalRequests)
	assert.Equal(t, accepted, session.AcceptedCount)
	assert.Equal(t, 1.0, session.SuccessRate)
}
