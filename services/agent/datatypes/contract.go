// Copyright (C) 2025 ContractGuard AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes defines the domain model shared by the analysis pipeline,
// the negotiation state machine, and the HTTP API.
//
// These structs are the stable wire contracts of the service: the JSON shapes
// returned to API callers and stored in the persistent store. Changing a field
// here requires a version bump on the API surface.
package datatypes

import (
	"time"
)

// =============================================================================
// Enumerations
// =============================================================================

// ContractStatus tracks a contract through its processing lifecycle.
type ContractStatus string

const (
	ContractPending          ContractStatus = "PENDING"
	ContractUploading        ContractStatus = "UPLOADING"
	ContractAnalyzing        ContractStatus = "ANALYZING"
	ContractReviewed         ContractStatus = "REVIEWED"
	ContractNeedsNegotiation ContractStatus = "NEEDS_NEGOTIATION"
	ContractNegotiating      ContractStatus = "NEGOTIATING"
	ContractApproved         ContractStatus = "APPROVED"
	ContractRejected         ContractStatus = "REJECTED"
	ContractError            ContractStatus = "ERROR"
)

// IsValid reports whether the status is one of the known lifecycle states.
func (s ContractStatus) IsValid() bool {
	switch s {
	case ContractPending, ContractUploading, ContractAnalyzing, ContractReviewed,
		ContractNeedsNegotiation, ContractNegotiating, ContractApproved,
		ContractRejected, ContractError:
		return true
	}
	return false
}

// IsTerminal reports whether the contract can no longer change status.
func (s ContractStatus) IsTerminal() bool {
	return s == ContractApproved || s == ContractRejected
}

// RiskLevel is the ordinal classification derived from a numeric risk score.
type RiskLevel string

const (
	RiskLevelLow      RiskLevel = "LOW"
	RiskLevelMedium   RiskLevel = "MEDIUM"
	RiskLevelHigh     RiskLevel = "HIGH"
	RiskLevelCritical RiskLevel = "CRITICAL"
)

// ordinal returns the rank of the level for comparisons. Unknown levels rank
// below LOW so they never satisfy a threshold check.
func (l RiskLevel) ordinal() int {
	switch l {
	case RiskLevelLow:
		return 1
	case RiskLevelMedium:
		return 2
	case RiskLevelHigh:
		return 3
	case RiskLevelCritical:
		return 4
	}
	return 0
}

// AtLeast reports whether l is at or above the given threshold level.
func (l RiskLevel) AtLeast(threshold RiskLevel) bool {
	return l.ordinal() >= threshold.ordinal()
}

// IsValid reports whether the level is one of the four known bands.
func (l RiskLevel) IsValid() bool {
	return l.ordinal() > 0
}

// ClauseCategory classifies an extracted contract provision.
type ClauseCategory string

const (
	CategoryLiability         ClauseCategory = "LIABILITY"
	CategoryIP                ClauseCategory = "IP"
	CategoryPayment           ClauseCategory = "PAYMENT"
	CategoryTermination       ClauseCategory = "TERMINATION"
	CategoryConfidentiality   ClauseCategory = "CONFIDENTIALITY"
	CategoryDataProtection    ClauseCategory = "DATA_PROTECTION"
	CategoryDisputeResolution ClauseCategory = "DISPUTE_RESOLUTION"
	CategoryWarranty          ClauseCategory = "WARRANTY"
	CategoryIndemnification   ClauseCategory = "INDEMNIFICATION"
	CategoryOther             ClauseCategory = "OTHER"
)

// IsValid reports whether the category is a known classification.
func (c ClauseCategory) IsValid() bool {
	switch c {
	case CategoryLiability, CategoryIP, CategoryPayment, CategoryTermination,
		CategoryConfidentiality, CategoryDataProtection, CategoryDisputeResolution,
		CategoryWarranty, CategoryIndemnification, CategoryOther:
		return true
	}
	return false
}

// NegotiationRank orders categories for priority tie-breaking: Liability
// outranks IP, which outranks Payment, then Termination, then everything else.
// Lower values rank first.
func (c ClauseCategory) NegotiationRank() int {
	switch c {
	case CategoryLiability:
		return 0
	case CategoryIP:
		return 1
	case CategoryPayment:
		return 2
	case CategoryTermination:
		return 3
	}
	return 4
}

// =============================================================================
// Core Entities
// =============================================================================

// UserContext carries the uploader's business context into analysis prompts.
type UserContext struct {
	Industry      string `json:"industry"`
	CompanySize   string `json:"company_size"`
	RiskTolerance string `json:"risk_tolerance"`
	Jurisdiction  string `json:"jurisdiction,omitempty"`
}

// DefaultUserContext matches the defaults assumed when a caller supplies none.
func DefaultUserContext() UserContext {
	return UserContext{
		Industry:      "General",
		CompanySize:   "Small",
		RiskTolerance: "Moderate",
	}
}

// Clause is a single extracted contract provision.
//
// Identity, category, text, and position are immutable after extraction.
// Risk and recommendation fields are filled by later pipeline stages.
type Clause struct {
	ClauseID      string         `json:"clause_id"`
	Category      ClauseCategory `json:"category"`
	Text          string         `json:"text"`
	FullText      string         `json:"full_text"`
	SectionNumber int            `json:"section_number"`

	RiskScore       *float64             `json:"risk_score,omitempty"`
	RiskLevel       RiskLevel            `json:"risk_level,omitempty"`
	Concerns        []string             `json:"concerns,omitempty"`
	Impact          string               `json:"impact,omitempty"`
	Recommendations []TieredRecommendation `json:"recommendations,omitempty"`
}

// Scored reports whether the risk stage has produced a score for this clause.
func (c *Clause) Scored() bool {
	return c.RiskScore != nil
}

// TopConcern returns the first recorded concern, or empty if none.
func (c *Clause) TopConcern() string {
	if len(c.Concerns) == 0 {
		return ""
	}
	return c.Concerns[0]
}

// RecommendationTier names one of the three alternative-language tiers.
type RecommendationTier string

const (
	TierAggressive RecommendationTier = "AGGRESSIVE"
	TierModerate   RecommendationTier = "MODERATE"
	TierMinimal    RecommendationTier = "MINIMAL"
)

// AcceptanceLikelihood is the ordinal estimate of counterparty acceptance.
type AcceptanceLikelihood string

const (
	LikelihoodLow    AcceptanceLikelihood = "LOW"
	LikelihoodMedium AcceptanceLikelihood = "MEDIUM"
	LikelihoodHigh   AcceptanceLikelihood = "HIGH"
)

// TieredRecommendation is one alternative clause proposal.
type TieredRecommendation struct {
	Tier         RecommendationTier   `json:"tier"`
	ProposedText string               `json:"proposed_text"`
	Rationale    string               `json:"rationale"`
	Likelihood   AcceptanceLikelihood `json:"likelihood_accepted"`
}

// RiskAnalysis is the contract-level aggregate produced by the risk stage.
// Exactly one per contract; re-analysis replaces it wholesale.
type RiskAnalysis struct {
	OverallRiskScore float64   `json:"overall_risk_score"`
	RiskLevel        RiskLevel `json:"risk_level"`
	HighRiskClauses  []Clause  `json:"high_risk_clauses"`
	MediumRiskClauses []Clause `json:"medium_risk_clauses"`
	LowRiskClauses   []Clause  `json:"low_risk_clauses"`
	Summary          string    `json:"summary"`
	AnalyzedAt       time.Time `json:"analyzed_at"`
}

// ClauseFailure records a clause whose risk assessment failed, so a retry can
// resume only the failed clauses.
type ClauseFailure struct {
	ClauseID string `json:"clause_id"`
	Reason   string `json:"reason"`
}

// Contract is the root entity of the pipeline.
type Contract struct {
	ContractID   string         `json:"contract_id"`
	UserID       string         `json:"user_id"`
	ContractType string         `json:"contract_type"`
	Title        string         `json:"title,omitempty"`
	Parties      []string       `json:"parties,omitempty"`
	Status       ContractStatus `json:"status"`

	// StorageRef is an opaque location reference to the uploaded document
	// (e.g. an object-store URI). The pipeline never dereferences it.
	StorageRef string `json:"storage_ref,omitempty"`

	Clauses      []Clause      `json:"clauses"`
	RiskAnalysis *RiskAnalysis `json:"risk_analysis,omitempty"`
	UserContext  UserContext   `json:"user_context"`

	// ClauseFailures is non-empty only after a partial analysis failure.
	ClauseFailures []ClauseFailure `json:"clause_failures,omitempty"`

	NegotiationSessionID string `json:"negotiation_session_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ClauseByID returns a pointer to the clause with the given id, or nil.
func (c *Contract) ClauseByID(id string) *Clause {
	for i := range c.Clauses {
		if c.Clauses[i].ClauseID == id {
			return &c.Clauses[i]
		}
	}
	return nil
}

// Touch bumps the UpdatedAt timestamp. Callers do this before persisting.
func (c *Contract) Touch() {
	c.UpdatedAt = time.Now().UTC()
}

// AnalysisSummary is the result returned by the processing pipeline.
type AnalysisSummary struct {
	ContractID       string         `json:"contract_id"`
	Status           ContractStatus `json:"status"`
	OverallRiskScore float64        `json:"overall_risk_score"`
	RiskLevel        RiskLevel      `json:"risk_level"`
	ClausesAnalyzed  int            `json:"clauses_analyzed"`
	HighRiskCount    int            `json:"high_risk_count"`
	MediumRiskCount  int            `json:"medium_risk_count"`
	LowRiskCount     int            `json:"low_risk_count"`
	Recommendations  int            `json:"recommendations_generated"`
}
