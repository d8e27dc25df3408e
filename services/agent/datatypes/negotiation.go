// Copyright (C) 2025 ContractGuard AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"time"
)

// =============================================================================
// Enumerations
// =============================================================================

// SessionStatus tracks a negotiation session through its lifecycle.
//
// Valid transitions:
//
//	PENDING → IN_PROGRESS → AWAITING_RESPONSE ⇄ IN_PROGRESS
//	AWAITING_RESPONSE → {COMPLETED, ACCEPTED, REJECTED, STALLED}
//
// COMPLETED, ACCEPTED, and REJECTED are terminal. STALLED pauses the session
// for human escalation: it is not terminal, but no further responses are
// processed on it.
type SessionStatus string

const (
	SessionPending          SessionStatus = "PENDING"
	SessionInProgress       SessionStatus = "IN_PROGRESS"
	SessionAwaitingResponse SessionStatus = "AWAITING_RESPONSE"
	SessionCompleted        SessionStatus = "COMPLETED"
	SessionAccepted         SessionStatus = "ACCEPTED"
	SessionRejected         SessionStatus = "REJECTED"
	SessionStalled          SessionStatus = "STALLED"
)

// IsTerminal reports whether no further rounds may be created.
func (s SessionStatus) IsTerminal() bool {
	return s == SessionCompleted || s == SessionAccepted || s == SessionRejected
}

// RequestStatus tracks one change request through a round.
type RequestStatus string

const (
	RequestPending   RequestStatus = "PENDING"
	RequestAccepted  RequestStatus = "ACCEPTED"
	RequestRejected  RequestStatus = "REJECTED"
	RequestCountered RequestStatus = "COUNTERED"
	RequestWithdrawn RequestStatus = "WITHDRAWN"
)

// Resolved reports whether the counterparty has answered this request.
func (s RequestStatus) Resolved() bool {
	return s == RequestAccepted || s == RequestRejected || s == RequestCountered
}

// NextAction is the explicit decision produced after classifying a
// counterparty response. The state machine returns one of these rather than
// dispatching on free-form text.
type NextAction string

const (
	ActionContinue NextAction = "CONTINUE"   // create the next round
	ActionAccept   NextAction = "ACCEPT"     // all requests accepted, approve
	ActionConclude NextAction = "CONCLUDE"   // round budget exhausted, final recommendation
	ActionStall    NextAction = "STALL"      // counterparty unwilling, pause
)

// =============================================================================
// Entities
// =============================================================================

// NegotiationRequest is a single change request issued to the counterparty.
type NegotiationRequest struct {
	RequestID    string         `json:"request_id"`
	ClauseID     string         `json:"clause_id"`
	Category     ClauseCategory `json:"category"`
	OriginalText string         `json:"original_text"`
	ProposedText string         `json:"proposed_text"`
	Rationale    string         `json:"rationale"`
	// Priority ranges 1-10; higher means more important.
	Priority int           `json:"priority"`
	Status   RequestStatus `json:"status"`
	// CounterpartyPosition holds their counter-proposal text when Status is
	// COUNTERED.
	CounterpartyPosition string `json:"counterparty_position,omitempty"`
}

// NegotiationStrategy is the plan generated when a session starts.
type NegotiationStrategy struct {
	OverallApproach     string            `json:"overall_approach"`
	Priorities          []string          `json:"priorities"`
	WalkAwayConditions  []string          `json:"walk_away_conditions"`
	CompromisePositions map[string]string `json:"compromise_positions"`
	EstimatedRounds     int               `json:"estimated_rounds"`
}

// ResponseClassification is the typed result of interpreting a counterparty
// reply against a round's outstanding requests.
type ResponseClassification struct {
	AcceptedRequestIDs  []string          `json:"accepted_request_ids"`
	RejectedRequestIDs  []string          `json:"rejected_request_ids"`
	CounteredRequestIDs []string          `json:"countered_request_ids"`
	// CounterProposals maps request id to the counterparty's counter text.
	CounterProposals map[string]string `json:"counter_proposals,omitempty"`
	// Sentiment summarizes overall willingness: "positive", "neutral",
	// or "negative".
	Sentiment string `json:"sentiment"`
	Analysis  string `json:"analysis,omitempty"`
}

// NegotiationRound is one cycle of outbound requests plus the counterparty's
// reply. Once marked sent, a round is only ever updated with response data;
// its requests and draft are frozen.
type NegotiationRound struct {
	RoundID     string               `json:"round_id"`
	RoundNumber int                  `json:"round_number"`
	Requests    []NegotiationRequest `json:"requests"`

	OutboundDraft string     `json:"outbound_draft"`
	Sent          bool       `json:"sent"`
	SentAt        *time.Time `json:"sent_at,omitempty"`

	CounterpartyResponse string                  `json:"counterparty_response,omitempty"`
	Classification       *ResponseClassification `json:"classification,omitempty"`
	NextAction           NextAction              `json:"next_action,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Awaiting reports whether this round is the one waiting on a counterparty
// response: its reply has not yet been classified.
func (r *NegotiationRound) Awaiting() bool {
	return r.Classification == nil
}

// RequestByID returns a pointer to the request with the given id, or nil.
func (r *NegotiationRound) RequestByID(id string) *NegotiationRequest {
	for i := range r.Requests {
		if r.Requests[i].RequestID == id {
			return &r.Requests[i]
		}
	}
	return nil
}

// NegotiationSession is the complete negotiation record for one contract.
type NegotiationSession struct {
	SessionID  string `json:"session_id"`
	ContractID string `json:"contract_id"`
	UserID     string `json:"user_id"`

	Strategy NegotiationStrategy `json:"strategy"`
	Rounds   []NegotiationRound  `json:"rounds"`

	Status SessionStatus `json:"status"`

	TotalRequests int     `json:"total_requests"`
	AcceptedCount int     `json:"accepted_count"`
	RejectedCount int     `json:"rejected_count"`
	SuccessRate   float64 `json:"success_rate"`

	FinalRecommendation string `json:"final_recommendation,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// CurrentRound returns the latest round, or nil if no round exists yet.
func (s *NegotiationSession) CurrentRound() *NegotiationRound {
	if len(s.Rounds) == 0 {
		return nil
	}
	return &s.Rounds[len(s.Rounds)-1]
}

// AwaitingRound returns the single round awaiting a response, or nil.
// The state machine guarantees at most one such round exists.
func (s *NegotiationSession) AwaitingRound() *NegotiationRound {
	r := s.CurrentRound()
	if r != nil && r.Awaiting() && s.Status == SessionAwaitingResponse {
		return r
	}
	return nil
}

// RecomputeCounters rebuilds the aggregate request counters and success rate
// from the rounds. Idempotent: calling it twice yields the same counters.
func (s *NegotiationSession) RecomputeCounters() {
	total, accepted, rejected := 0, 0, 0
	for i := range s.Rounds {
		for j := range s.Rounds[i].Requests {
			req := &s.Rounds[i].Requests[j]
			if req.Status == RequestWithdrawn {
				continue
			}
			total++
			switch req.Status {
			case RequestAccepted:
				accepted++
			case RequestRejected:
				rejected++
			}
		}
	}
	s.TotalRequests = total
	s.AcceptedCount = accepted
	s.RejectedCount = rejected
	if total == 0 {
		s.SuccessRate = 0
		return
	}
	s.SuccessRate = float64(accepted) / float64(total)
}

// Touch bumps the UpdatedAt timestamp.
func (s *NegotiationSession) Touch() {
	s.UpdatedAt = time.Now().UTC()
}
