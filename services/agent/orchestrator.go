// Copyright (C) 2025 ContractGuard AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package agent coordinates the contract analysis pipeline and the
// negotiation lifecycle.
//
// The Orchestrator owns no authoritative in-memory state: every transition is
// persisted through the store immediately, and entities travel by identifier.
// It drives the risk engine and recommendation engine during analysis, and
// the negotiation state machine per negotiation turn.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/contractguard-ai/contractguard/services/agent/datatypes"
	"github.com/contractguard-ai/contractguard/services/agent/negotiation"
	"github.com/contractguard-ai/contractguard/services/agent/recommend"
	"github.com/contractguard-ai/contractguard/services/agent/risk"
	"github.com/contractguard-ai/contractguard/services/api/observability"
	"github.com/contractguard-ai/contractguard/services/knowledge"
	"github.com/contractguard-ai/contractguard/services/reasoning"
	"github.com/contractguard-ai/contractguard/services/storage"
)

var tracer = otel.Tracer("contractguard.agent")

// Config controls the orchestrator.
type Config struct {
	// MaxConcurrentScores bounds the per-clause scoring fan-out.
	MaxConcurrentScores int

	// AttentionThreshold is the minimum clause risk level that receives
	// recommendations.
	AttentionThreshold datatypes.RiskLevel

	// NegotiationThreshold is the minimum clause risk level that flips the
	// contract to NeedsNegotiation.
	NegotiationThreshold datatypes.RiskLevel

	// Negotiation configures the state machine.
	Negotiation negotiation.Config
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		MaxConcurrentScores:  4,
		AttentionThreshold:   datatypes.RiskLevelMedium,
		NegotiationThreshold: datatypes.RiskLevelHigh,
		Negotiation:          negotiation.DefaultConfig(),
	}
}

func (c *Config) applyDefaults() {
	defaults := DefaultConfig()
	if c.MaxConcurrentScores <= 0 {
		c.MaxConcurrentScores = defaults.MaxConcurrentScores
	}
	if c.AttentionThreshold == "" {
		c.AttentionThreshold = defaults.AttentionThreshold
	}
	if c.NegotiationThreshold == "" {
		c.NegotiationThreshold = defaults.NegotiationThreshold
	}
}

// Orchestrator drives contract analysis and negotiation.
//
// Thread Safety: safe for concurrent use. Negotiation mutations are
// serialized per session; concurrent losers receive
// *negotiation.ConcurrentModificationError.
type Orchestrator struct {
	config    Config
	store     *storage.Store
	riskEng   *risk.Engine
	recommend *recommend.Engine
	machine   *negotiation.Machine
	locks     *sessionLocks
}

// New wires the orchestrator. retriever may be nil (lightweight mode without
// a knowledge base).
func New(config Config, store *storage.Store, client reasoning.Client, retriever knowledge.Retriever) (*Orchestrator, error) {
	config.applyDefaults()
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if client == nil {
		return nil, fmt.Errorf("reasoning client is required")
	}
	recEngine, err := recommend.NewEngine(client, retriever)
	if err != nil {
		return nil, err
	}
	return &Orchestrator{
		config:    config,
		store:     store,
		riskEng:   risk.NewEngine(client),
		recommend: recEngine,
		machine:   negotiation.NewMachine(client, config.Negotiation),
		locks:     newSessionLocks(),
	}, nil
}

// ProcessContract runs the full analysis pipeline for an already-extracted
// contract: per-clause risk scoring, the aggregate RiskAnalysis,
// recommendations for clauses at or above the attention threshold, and the
// Reviewed/NeedsNegotiation status decision.
//
// Retrying after a *PartialAnalysisError resumes only the clauses that
// failed; clauses that already carry a score are not re-scored.
func (o *Orchestrator) ProcessContract(ctx context.Context, contractID string) (*datatypes.AnalysisSummary, error) {
	ctx, span := tracer.Start(ctx, "Orchestrator.ProcessContract")
	defer span.End()
	span.SetAttributes(attribute.String("contract.id", contractID))

	contract, err := o.store.LoadContract(contractID)
	if err != nil {
		return nil, err
	}
	if err := validateExtraction(contract); err != nil {
		observability.AnalysesTotal.WithLabelValues("failed").Inc()
		span.RecordError(err)
		return nil, err
	}

	contract.Status = datatypes.ContractAnalyzing
	contract.ClauseFailures = nil
	contract.Touch()
	if err := o.store.SaveContract(contract); err != nil {
		return nil, err
	}

	failures, scoreErr := o.scoreClauses(ctx, contract)
	if len(failures) > 0 {
		contract.Status = datatypes.ContractError
		contract.ClauseFailures = failures
		contract.Touch()
		if saveErr := o.store.SaveContract(contract); saveErr != nil {
			return nil, saveErr
		}
		if !anyScored(contract) {
			observability.AnalysesTotal.WithLabelValues("failed").Inc()
			span.SetStatus(codes.Error, "analysis failed")
			return nil, &AnalysisError{ContractID: contractID, Err: scoreErr}
		}
		observability.AnalysesTotal.WithLabelValues("partial_failure").Inc()
		span.SetStatus(codes.Error, "partial analysis failure")
		return nil, &PartialAnalysisError{ContractID: contractID, Failures: failures}
	}

	// Recommend before aggregating so the clause snapshots inside the
	// RiskAnalysis carry their recommendations.
	recommendations := o.recommendClauses(ctx, contract)
	contract.RiskAnalysis = risk.Aggregate(contract.Clauses)

	contract.Status = datatypes.ContractReviewed
	if o.anyClauseAtOrAbove(contract, o.config.NegotiationThreshold) {
		contract.Status = datatypes.ContractNeedsNegotiation
	}
	contract.Touch()
	if err := o.store.SaveContract(contract); err != nil {
		return nil, err
	}

	outcome := "reviewed"
	if contract.Status == datatypes.ContractNeedsNegotiation {
		outcome = "needs_negotiation"
	}
	observability.AnalysesTotal.WithLabelValues(outcome).Inc()

	summary := &datatypes.AnalysisSummary{
		ContractID:       contractID,
		Status:           contract.Status,
		OverallRiskScore: contract.RiskAnalysis.OverallRiskScore,
		RiskLevel:        contract.RiskAnalysis.RiskLevel,
		ClausesAnalyzed:  len(contract.Clauses),
		HighRiskCount:    len(contract.RiskAnalysis.HighRiskClauses),
		MediumRiskCount:  len(contract.RiskAnalysis.MediumRiskClauses),
		LowRiskCount:     len(contract.RiskAnalysis.LowRiskClauses),
		Recommendations:  recommendations,
	}
	slog.Info("Processed contract",
		"contract_id", contractID,
		"status", contract.Status,
		"overall_risk", summary.OverallRiskScore,
		"risk_level", summary.RiskLevel)
	return summary, nil
}

// scoreClauses fans the unscored clauses out to the risk engine with bounded
// concurrency. Aggregation later is order-independent, so completion order
// does not matter.
func (o *Orchestrator) scoreClauses(ctx context.Context, contract *datatypes.Contract) ([]datatypes.ClauseFailure, error) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(o.config.MaxConcurrentScores)

	var mu sync.Mutex
	var failures []datatypes.ClauseFailure
	var firstErr error

	for i := range contract.Clauses {
		clause := &contract.Clauses[i]
		if clause.Scored() {
			continue
		}
		g.Go(func() error {
			err := o.riskEng.ScoreClause(ctx, clause, contract.UserContext, contract.ContractID)
			if err != nil {
				observability.ClausesScoredTotal.WithLabelValues("failed").Inc()
				mu.Lock()
				failures = append(failures, datatypes.ClauseFailure{
					ClauseID: clause.ClauseID,
					Reason:   err.Error(),
				})
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return nil // collect failures, don't cancel siblings
			}
			observability.ClausesScoredTotal.WithLabelValues("ok").Inc()
			return nil
		})
	}
	_ = g.Wait()
	return failures, firstErr
}

// recommendClauses generates tiered recommendations for every clause at or
// above the attention threshold. Returns the number of clauses recommended.
func (o *Orchestrator) recommendClauses(ctx context.Context, contract *datatypes.Contract) int {
	count := 0
	for i := range contract.Clauses {
		clause := &contract.Clauses[i]
		if !clause.Scored() || !clause.RiskLevel.AtLeast(o.config.AttentionThreshold) {
			continue
		}
		recs, usedFallback := o.recommend.Recommend(ctx, clause, contract.UserContext, contract.ContractID)
		clause.Recommendations = recs
		if usedFallback {
			observability.RecommendationFallbacksTotal.Inc()
		}
		count++
	}
	return count
}

// StartNegotiation creates the negotiation session for a contract that needs
// one. Idempotent: if a session already exists it is returned unchanged.
func (o *Orchestrator) StartNegotiation(ctx context.Context, contractID string) (*datatypes.NegotiationSession, error) {
	ctx, span := tracer.Start(ctx, "Orchestrator.StartNegotiation")
	defer span.End()
	span.SetAttributes(attribute.String("contract.id", contractID))

	contract, err := o.store.LoadContract(contractID)
	if err != nil {
		return nil, err
	}
	if contract.NegotiationSessionID != "" {
		return o.store.LoadSession(contract.NegotiationSessionID)
	}
	if contract.RiskAnalysis == nil {
		return nil, &AnalysisError{ContractID: contractID, Err: errors.New("contract has not been analyzed")}
	}
	if contract.Status != datatypes.ContractNeedsNegotiation {
		return nil, &negotiation.InvalidRoundStateError{
			Reason: fmt.Sprintf("contract %s is %s, not %s",
				contractID, contract.Status, datatypes.ContractNeedsNegotiation),
		}
	}

	session, err := o.machine.Start(ctx, contract, contract.RiskAnalysis)
	if err != nil {
		return nil, err
	}
	if err := o.store.SaveSession(session); err != nil {
		return nil, err
	}

	contract.NegotiationSessionID = session.SessionID
	contract.Status = datatypes.ContractNegotiating
	contract.Touch()
	if err := o.store.SaveContract(contract); err != nil {
		return nil, err
	}
	return session, nil
}

// MarkRoundSent records that the current round's outbound message went out.
func (o *Orchestrator) MarkRoundSent(ctx context.Context, sessionID string) (*datatypes.NegotiationSession, error) {
	_, span := tracer.Start(ctx, "Orchestrator.MarkRoundSent")
	defer span.End()

	if !o.locks.tryAcquire(sessionID) {
		return nil, &negotiation.ConcurrentModificationError{SessionID: sessionID}
	}
	defer o.locks.release(sessionID)

	session, err := o.loadSession(sessionID)
	if err != nil {
		return nil, err
	}
	if err := o.machine.MarkSent(session); err != nil {
		return nil, err
	}
	if err := o.store.SaveSession(session); err != nil {
		return nil, err
	}
	return session, nil
}

// HandleNegotiationResponse classifies a counterparty reply, advances the
// state machine, and persists both the session and any contract status
// change. Concurrent calls for the same session are serialized; the loser
// fails with *negotiation.ConcurrentModificationError.
func (o *Orchestrator) HandleNegotiationResponse(ctx context.Context, contractID, sessionID, responseText string) (*datatypes.NegotiationSession, error) {
	ctx, span := tracer.Start(ctx, "Orchestrator.HandleNegotiationResponse")
	defer span.End()
	span.SetAttributes(
		attribute.String("contract.id", contractID),
		attribute.String("session.id", sessionID),
	)

	if !o.locks.tryAcquire(sessionID) {
		return nil, &negotiation.ConcurrentModificationError{SessionID: sessionID}
	}
	defer o.locks.release(sessionID)

	session, err := o.loadSession(sessionID)
	if err != nil {
		return nil, err
	}
	if session.ContractID != contractID {
		return nil, &negotiation.SessionNotFoundError{SessionID: sessionID}
	}

	action, err := o.machine.Advance(ctx, session, responseText)
	if err != nil {
		return nil, err
	}
	observability.NegotiationRoundsTotal.WithLabelValues(string(action)).Inc()

	if err := o.store.SaveSession(session); err != nil {
		return nil, err
	}
	if err := o.applySessionOutcome(contractID, session); err != nil {
		return nil, err
	}
	return session, nil
}

// applySessionOutcome maps terminal session states onto the contract:
// Accepted approves the contract, Rejected rejects it; Completed and Stalled
// leave the contract Negotiating with the final recommendation on record.
func (o *Orchestrator) applySessionOutcome(contractID string, session *datatypes.NegotiationSession) error {
	var status datatypes.ContractStatus
	switch session.Status {
	case datatypes.SessionAccepted:
		status = datatypes.ContractApproved
	case datatypes.SessionRejected:
		status = datatypes.ContractRejected
	default:
		return nil
	}

	contract, err := o.store.LoadContract(contractID)
	if err != nil {
		return err
	}
	contract.Status = status
	contract.Touch()
	return o.store.SaveContract(contract)
}

// loadSession translates a missing key into *SessionNotFoundError; other
// store failures stay *storage.PersistenceError.
func (o *Orchestrator) loadSession(sessionID string) (*datatypes.NegotiationSession, error) {
	session, err := o.store.LoadSession(sessionID)
	if err != nil {
		if storage.NotFound(err) {
			return nil, &negotiation.SessionNotFoundError{SessionID: sessionID}
		}
		return nil, err
	}
	return session, nil
}

func (o *Orchestrator) anyClauseAtOrAbove(contract *datatypes.Contract, threshold datatypes.RiskLevel) bool {
	for i := range contract.Clauses {
		clause := &contract.Clauses[i]
		if clause.Scored() && clause.RiskLevel.AtLeast(threshold) {
			return true
		}
	}
	return false
}

// validateExtraction checks the extraction collaborator's output before the
// pipeline touches it.
func validateExtraction(contract *datatypes.Contract) error {
	if len(contract.Clauses) == 0 {
		return &ExtractionUpstreamError{ContractID: contract.ContractID, Reason: "clause list is empty"}
	}
	for i := range contract.Clauses {
		clause := &contract.Clauses[i]
		if clause.ClauseID == "" || (clause.Text == "" && clause.FullText == "") {
			return &ExtractionUpstreamError{
				ContractID: contract.ContractID,
				Reason:     fmt.Sprintf("clause %d is malformed (missing id or text)", i),
			}
		}
	}
	return nil
}

func anyScored(contract *datatypes.Contract) bool {
	for i := range contract.Clauses {
		if contract.Clauses[i].Scored() {
			return true
		}
	}
	return false
}
