// Copyright (C) 2025 ContractGuard AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package agent

import (
	"fmt"
	"strings"

	"github.com/contractguard-ai/contractguard/services/agent/datatypes"
)

// ExtractionUpstreamError indicates the contract reached the pipeline without
// usable extracted clauses. Not recoverable locally; the extraction
// collaborator has to be re-run.
type ExtractionUpstreamError struct {
	ContractID string
	Reason     string
}

func (e *ExtractionUpstreamError) Error() string {
	return fmt.Sprintf("contract %s has no usable extracted clauses: %s", e.ContractID, e.Reason)
}

// AnalysisError indicates the analysis pipeline failed wholesale, typically
// because the reasoning service stayed unreachable past its retry budget.
type AnalysisError struct {
	ContractID string
	Err        error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("analysis of contract %s failed: %v", e.ContractID, e.Err)
}

func (e *AnalysisError) Unwrap() error { return e.Err }

// PartialAnalysisError indicates some clauses were scored and others were
// not. The contract is left in Error status with per-clause failure detail;
// a retry resumes only the failed clauses.
type PartialAnalysisError struct {
	ContractID string
	Failures   []datatypes.ClauseFailure
}

func (e *PartialAnalysisError) Error() string {
	ids := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		ids[i] = f.ClauseID
	}
	return fmt.Sprintf("analysis of contract %s partially failed: %d clauses unresolved (%s)",
		e.ContractID, len(e.Failures), strings.Join(ids, ", "))
}
