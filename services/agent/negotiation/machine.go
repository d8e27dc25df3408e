// Copyright (C) 2025 ContractGuard AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package negotiation runs the round-based negotiation state machine.
//
// A session moves through rounds: our side issues change requests with a
// drafted outbound message, the counterparty answers, the answer is
// classified against the outstanding requests, and the machine decides
// whether to continue with a revised round, accept, conclude, or stall.
//
// Invariants enforced here:
//   - round numbers are a gapless increasing sequence starting at 1
//   - at most one round awaits a response at any time
//   - a round is never mutated after being classified; new rounds are
//     appended, never rewritten
package negotiation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/contractguard-ai/contractguard/services/agent/datatypes"
	"github.com/contractguard-ai/contractguard/services/agent/parser"
	"github.com/contractguard-ai/contractguard/services/reasoning"
)

var tracer = otel.Tracer("contractguard.agent.negotiation")

const classifySystemPrompt = "You classify counterparty negotiation replies " +
	"against our outstanding requests. Answer only with the requested JSON."

// Config controls the negotiation state machine.
type Config struct {
	// MaxRequestsPerRound caps the change requests issued in one round.
	MaxRequestsPerRound int

	// RequestThreshold is the minimum clause risk level that gets a change
	// request.
	RequestThreshold datatypes.RiskLevel

	// StallThreshold is the number of consecutive rounds without any
	// acceptance that, combined with negative sentiment, stalls the session.
	StallThreshold int

	// DefaultEstimatedRounds is used when the strategy does not estimate a
	// round budget.
	DefaultEstimatedRounds int

	// DropPriorityBelow controls rejected-request handling in the next
	// round: rejected requests at or above this priority are re-proposed
	// with compromise language, below it they are dropped.
	DropPriorityBelow int
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		MaxRequestsPerRound:    10,
		RequestThreshold:       datatypes.RiskLevelMedium,
		StallThreshold:         2,
		DefaultEstimatedRounds: 3,
		DropPriorityBelow:      8,
	}
}

func (c *Config) applyDefaults() {
	defaults := DefaultConfig()
	if c.MaxRequestsPerRound <= 0 {
		c.MaxRequestsPerRound = defaults.MaxRequestsPerRound
	}
	if c.RequestThreshold == "" {
		c.RequestThreshold = defaults.RequestThreshold
	}
	if c.StallThreshold <= 0 {
		c.StallThreshold = defaults.StallThreshold
	}
	if c.DefaultEstimatedRounds <= 0 {
		c.DefaultEstimatedRounds = defaults.DefaultEstimatedRounds
	}
	if c.DropPriorityBelow <= 0 {
		c.DropPriorityBelow = defaults.DropPriorityBelow
	}
}

// Machine is the negotiation state machine. Stateless between calls; all
// session state lives in the NegotiationSession value.
type Machine struct {
	client reasoning.Client
	config Config
}

// NewMachine builds a state machine over the given reasoning client.
func NewMachine(client reasoning.Client, config Config) *Machine {
	config.applyDefaults()
	return &Machine{client: client, config: config}
}

// Start creates a new session for the contract: builds the strategy from the
// High/Critical clauses, issues Round 1 requests for every clause at or above
// the request threshold, drafts the outbound message, and leaves the session
// in AwaitingResponse.
func (m *Machine) Start(ctx context.Context, contract *datatypes.Contract, analysis *datatypes.RiskAnalysis) (*datatypes.NegotiationSession, error) {
	ctx, span := tracer.Start(ctx, "Machine.Start")
	defer span.End()
	span.SetAttributes(attribute.String("contract.id", contract.ContractID))

	candidates := prioritizeClauses(clausesAtOrAbove(contract.Clauses, m.config.RequestThreshold))
	if len(candidates) == 0 {
		return nil, &InvalidRoundStateError{
			SessionID: contract.NegotiationSessionID,
			Reason:    fmt.Sprintf("no clauses at or above %s risk to negotiate", m.config.RequestThreshold),
		}
	}

	strategy := m.buildStrategy(ctx, contract, analysis)

	now := time.Now().UTC()
	session := &datatypes.NegotiationSession{
		SessionID:  uuid.NewString(),
		ContractID: contract.ContractID,
		UserID:     contract.UserID,
		Strategy:   strategy,
		Status:     datatypes.SessionInProgress,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	requests := m.initialRequests(candidates)
	round := datatypes.NegotiationRound{
		RoundID:     uuid.NewString(),
		RoundNumber: 1,
		Requests:    requests,
		CreatedAt:   now,
	}
	round.OutboundDraft = m.draftMessage(ctx, session, &round)
	session.Rounds = append(session.Rounds, round)
	session.Status = datatypes.SessionAwaitingResponse
	session.RecomputeCounters()

	slog.Info("Started negotiation session",
		"session_id", session.SessionID,
		"contract_id", contract.ContractID,
		"requests", len(requests),
		"estimated_rounds", strategy.EstimatedRounds)
	return session, nil
}

// MarkSent records that the awaiting round's outbound message was actually
// sent. Sending is an external action; the machine only tracks it.
func (m *Machine) MarkSent(session *datatypes.NegotiationSession) error {
	round := session.AwaitingRound()
	if round == nil {
		return &InvalidRoundStateError{
			SessionID: session.SessionID,
			Reason:    "no round awaiting a response",
		}
	}
	if round.Sent {
		return &InvalidRoundStateError{
			SessionID:   session.SessionID,
			RoundNumber: round.RoundNumber,
			Reason:      "round already marked sent",
		}
	}
	now := time.Now().UTC()
	round.Sent = true
	round.SentAt = &now
	session.Touch()
	return nil
}

// Advance classifies the counterparty response against the awaiting round,
// updates request statuses and session counters, and executes the next-action
// decision. The returned action tells the caller what happened: Continue (a
// new round was appended), Accept, Conclude, or Stall.
//
// A retried call after the round was classified fails with
// *InvalidRoundStateError and leaves the session untouched.
func (m *Machine) Advance(ctx context.Context, session *datatypes.NegotiationSession, responseText string) (datatypes.NextAction, error) {
	ctx, span := tracer.Start(ctx, "Machine.Advance")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", session.SessionID))

	if session.Status.IsTerminal() {
		return "", &InvalidRoundStateError{
			SessionID: session.SessionID,
			Reason:    fmt.Sprintf("session is %s", session.Status),
		}
	}
	round := session.AwaitingRound()
	if round == nil {
		return "", &InvalidRoundStateError{
			SessionID: session.SessionID,
			Reason:    "no round awaiting a response",
		}
	}
	span.SetAttributes(attribute.Int("round.number", round.RoundNumber))

	classification, err := m.classifyResponse(ctx, round, responseText)
	if err != nil {
		return "", err
	}

	applyClassification(round, classification)
	now := time.Now().UTC()
	round.CounterpartyResponse = responseText
	round.Classification = classification
	round.CompletedAt = &now
	session.RecomputeCounters()

	action := m.decideNextAction(session, round)
	round.NextAction = action

	switch action {
	case datatypes.ActionAccept:
		session.Status = datatypes.SessionAccepted
		session.CompletedAt = &now
		session.FinalRecommendation = "All requested changes accepted. Proceed to signature."
	case datatypes.ActionStall:
		session.Status = datatypes.SessionStalled
		session.FinalRecommendation = "Counterparty is unwilling to move. Escalate or revisit walk-away conditions."
	case datatypes.ActionConclude:
		session.Status = datatypes.SessionCompleted
		session.CompletedAt = &now
		session.FinalRecommendation = m.finalRecommendation(session)
	case datatypes.ActionContinue:
		next := m.nextRound(ctx, session, round)
		session.Rounds = append(session.Rounds, next)
		session.Status = datatypes.SessionAwaitingResponse
	}
	session.Touch()

	slog.Info("Advanced negotiation session",
		"session_id", session.SessionID,
		"round", round.RoundNumber,
		"action", action,
		"accepted", session.AcceptedCount,
		"total", session.TotalRequests)
	return action, nil
}

// classifyResponse interprets the raw counterparty text against the round's
// outstanding requests.
func (m *Machine) classifyResponse(ctx context.Context, round *datatypes.NegotiationRound, responseText string) (*datatypes.ResponseClassification, error) {
	if strings.TrimSpace(responseText) == "" {
		return nil, &parser.UnparsableResponseError{
			Expected: "counterparty response",
			Err:      fmt.Errorf("empty response text"),
		}
	}

	resp, err := m.client.Invoke(ctx, reasoning.Request{
		System:      classifySystemPrompt,
		Prompt:      classifyPrompt(round, responseText),
		Temperature: 0.2,
	})
	if err != nil {
		return nil, fmt.Errorf("classify response for round %d: %w", round.RoundNumber, err)
	}

	var classification datatypes.ResponseClassification
	if err := parser.Decode(resp.Content, "response classification", &classification); err != nil {
		return nil, err
	}
	if classification.Sentiment == "" {
		classification.Sentiment = "neutral"
	}
	return &classification, nil
}

// applyClassification updates request statuses from the classification.
// Request ids the classification does not mention stay Pending; unknown ids
// are ignored.
func applyClassification(round *datatypes.NegotiationRound, classification *datatypes.ResponseClassification) {
	for _, id := range classification.AcceptedRequestIDs {
		if req := round.RequestByID(id); req != nil {
			req.Status = datatypes.RequestAccepted
		}
	}
	for _, id := range classification.RejectedRequestIDs {
		if req := round.RequestByID(id); req != nil {
			req.Status = datatypes.RequestRejected
		}
	}
	for _, id := range classification.CounteredRequestIDs {
		if req := round.RequestByID(id); req != nil {
			req.Status = datatypes.RequestCountered
			if counter, ok := classification.CounterProposals[id]; ok {
				req.CounterpartyPosition = counter
			}
		}
	}
}

// decideNextAction implements the explicit next-action decision.
func (m *Machine) decideNextAction(session *datatypes.NegotiationSession, round *datatypes.NegotiationRound) datatypes.NextAction {
	if allAccepted(round) {
		return datatypes.ActionAccept
	}
	if round.Classification.Sentiment == "negative" && m.noAcceptanceStreak(session) {
		return datatypes.ActionStall
	}
	if len(session.Rounds) >= session.Strategy.EstimatedRounds {
		return datatypes.ActionConclude
	}
	// Once accepted requests and dropped low-priority rejections are removed,
	// a follow-up round may have nothing left to ask for. Conclude instead of
	// appending an empty round.
	if !m.anyCarryForward(round) {
		return datatypes.ActionConclude
	}
	return datatypes.ActionContinue
}

// carriesForward reports whether a classified request survives into the next
// round. Accepted and withdrawn requests are settled; rejected requests below
// the drop priority are let go.
func (m *Machine) carriesForward(req *datatypes.NegotiationRequest) bool {
	switch req.Status {
	case datatypes.RequestAccepted, datatypes.RequestWithdrawn:
		return false
	case datatypes.RequestRejected:
		return req.Priority >= m.config.DropPriorityBelow
	}
	return true
}

func (m *Machine) anyCarryForward(round *datatypes.NegotiationRound) bool {
	for i := range round.Requests {
		if m.carriesForward(&round.Requests[i]) {
			return true
		}
	}
	return false
}

func allAccepted(round *datatypes.NegotiationRound) bool {
	for i := range round.Requests {
		if round.Requests[i].Status != datatypes.RequestAccepted {
			return false
		}
	}
	return len(round.Requests) > 0
}

// noAcceptanceStreak reports whether the last StallThreshold classified
// rounds produced zero accepted requests.
func (m *Machine) noAcceptanceStreak(session *datatypes.NegotiationSession) bool {
	classified := 0
	for i := len(session.Rounds) - 1; i >= 0; i-- {
		round := &session.Rounds[i]
		if round.Classification == nil {
			continue
		}
		for j := range round.Requests {
			if round.Requests[j].Status == datatypes.RequestAccepted {
				return false
			}
		}
		classified++
		if classified >= m.config.StallThreshold {
			return true
		}
	}
	return false
}

// finalRecommendation decides sign-as-is versus walk-away for a concluded
// session by weighing unresolved request priorities against the strategy's
// walk-away conditions.
func (m *Machine) finalRecommendation(session *datatypes.NegotiationSession) string {
	round := session.CurrentRound()
	highestUnresolved := 0
	var unresolvedCategories []string
	for i := range round.Requests {
		req := &round.Requests[i]
		if req.Status == datatypes.RequestAccepted || req.Status == datatypes.RequestWithdrawn {
			continue
		}
		if req.Priority > highestUnresolved {
			highestUnresolved = req.Priority
		}
		unresolvedCategories = append(unresolvedCategories, string(req.Category))
	}

	walkAway := highestUnresolved >= m.config.DropPriorityBelow
	if !walkAway {
		for _, condition := range session.Strategy.WalkAwayConditions {
			for _, category := range unresolvedCategories {
				if strings.Contains(strings.ToLower(condition), strings.ToLower(category)) {
					walkAway = true
				}
			}
		}
	}

	if walkAway {
		return fmt.Sprintf("Negotiation concluded with critical terms unresolved (%s). Recommend walking away.",
			strings.Join(unresolvedCategories, ", "))
	}
	return "Negotiation concluded. Remaining open terms are low priority; recommend signing as-is."
}

// nextRound builds the follow-up round: countered requests get a compromise
// proposal, high-priority rejected requests are re-proposed with compromise
// language, low-priority rejected requests are dropped.
func (m *Machine) nextRound(ctx context.Context, session *datatypes.NegotiationSession, prev *datatypes.NegotiationRound) datatypes.NegotiationRound {
	now := time.Now().UTC()
	next := datatypes.NegotiationRound{
		RoundID:     uuid.NewString(),
		RoundNumber: prev.RoundNumber + 1,
		CreatedAt:   now,
	}

	for i := range prev.Requests {
		req := &prev.Requests[i]
		if !m.carriesForward(req) {
			continue
		}
		revised := datatypes.NegotiationRequest{
			RequestID:    uuid.NewString(),
			ClauseID:     req.ClauseID,
			Category:     req.Category,
			OriginalText: req.OriginalText,
			ProposedText: m.compromiseFor(session, req),
			Rationale:    fmt.Sprintf("Revised position after round %d on the %s clause.", prev.RoundNumber, req.Category),
			Priority:     req.Priority,
			Status:       datatypes.RequestPending,
		}
		next.Requests = append(next.Requests, revised)
		if len(next.Requests) >= m.config.MaxRequestsPerRound {
			break
		}
	}

	next.OutboundDraft = m.draftMessage(ctx, session, &next)
	return next
}

// compromiseFor picks the revised proposal for an unresolved request: the
// strategy's compromise position for the category when present, otherwise the
// counterparty's counter as a starting point, otherwise the original ask.
func (m *Machine) compromiseFor(session *datatypes.NegotiationSession, req *datatypes.NegotiationRequest) string {
	if position, ok := session.Strategy.CompromisePositions[string(req.Category)]; ok && position != "" {
		return position
	}
	if req.Status == datatypes.RequestCountered && req.CounterpartyPosition != "" {
		return req.CounterpartyPosition
	}
	return req.ProposedText
}

// initialRequests converts prioritized clauses into Round 1 change requests.
func (m *Machine) initialRequests(candidates []datatypes.Clause) []datatypes.NegotiationRequest {
	requests := make([]datatypes.NegotiationRequest, 0, len(candidates))
	for i := range candidates {
		clause := &candidates[i]
		proposed := moderateRecommendation(clause)
		if proposed == "" {
			proposed = minimalRecommendation(clause)
		}
		rationale := clause.Impact
		if rationale == "" {
			rationale = clause.TopConcern()
		}
		requests = append(requests, datatypes.NegotiationRequest{
			RequestID:    uuid.NewString(),
			ClauseID:     clause.ClauseID,
			Category:     clause.Category,
			OriginalText: clause.Text,
			ProposedText: proposed,
			Rationale:    rationale,
			Priority:     requestPriority(scoreOf(clause)),
			Status:       datatypes.RequestPending,
		})
		if len(requests) >= m.config.MaxRequestsPerRound {
			break
		}
	}
	return requests
}

func clausesAtOrAbove(clauses []datatypes.Clause, threshold datatypes.RiskLevel) []datatypes.Clause {
	var out []datatypes.Clause
	for _, clause := range clauses {
		if clause.Scored() && clause.RiskLevel.AtLeast(threshold) {
			out = append(out, clause)
		}
	}
	return out
}

func classifyPrompt(round *datatypes.NegotiationRound, responseText string) string {
	var b strings.Builder
	b.WriteString("Our outstanding requests:\n")
	for i := range round.Requests {
		req := &round.Requests[i]
		fmt.Fprintf(&b, "- id %s (%s, priority %d): %s\n",
			req.RequestID, req.Category, req.Priority, req.ProposedText)
	}
	fmt.Fprintf(&b, "\nCounterparty response:\n%s\n", responseText)
	b.WriteString(`
Classify each request as accepted, rejected, or countered. Answer as JSON:
{
  "accepted_request_ids": ["..."],
  "rejected_request_ids": ["..."],
  "countered_request_ids": ["..."],
  "counter_proposals": {"<request id>": "<their counter text>"},
  "sentiment": "positive|neutral|negative",
  "analysis": "..."
}`)
	return b.String()
}
