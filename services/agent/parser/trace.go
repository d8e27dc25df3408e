// Copyright (C) 2025 ContractGuard AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package parser

import (
	"strings"
	"time"

	"github.com/contractguard-ai/contractguard/services/reasoning"
)

// ToolCallKind classifies a reasoning-service sub-invocation.
type ToolCallKind string

const (
	ToolClauseExtracted     ToolCallKind = "CLAUSE_EXTRACTED"
	ToolRiskScored          ToolCallKind = "RISK_SCORED"
	ToolRecommendationMade  ToolCallKind = "RECOMMENDATION_GENERATED"
	ToolStrategyPlanned     ToolCallKind = "STRATEGY_PLANNED"
	ToolResponseClassified  ToolCallKind = "RESPONSE_CLASSIFIED"
	ToolMessageDrafted      ToolCallKind = "MESSAGE_DRAFTED"
	ToolKnowledgeRetrieved  ToolCallKind = "KNOWLEDGE_RETRIEVED"
)

// ToolCall is one typed event recovered from the reasoning service's trace.
type ToolCall struct {
	Kind      ToolCallKind `json:"kind"`
	Tool      string       `json:"tool"`
	Input     string       `json:"input,omitempty"`
	Output    string       `json:"output,omitempty"`
	Timestamp time.Time    `json:"timestamp,omitempty"`
}

// toolKinds maps tool-name substrings to kinds. Matching is case-insensitive
// and substring-based because backends report tool names inconsistently
// ("risk_analyzer", "RiskAnalyzer", "tools.risk_analyzer.score").
var toolKinds = []struct {
	substr string
	kind   ToolCallKind
}{
	{"extract", ToolClauseExtracted},
	{"risk", ToolRiskScored},
	{"recommend", ToolRecommendationMade},
	{"strateg", ToolStrategyPlanned},
	{"classif", ToolResponseClassified},
	{"draft", ToolMessageDrafted},
	{"email", ToolMessageDrafted},
	{"retriev", ToolKnowledgeRetrieved},
	{"search", ToolKnowledgeRetrieved},
}

// ExtractToolCalls walks the raw trace events in original order and maps each
// to a typed tool-call event. Malformed entries (no tool name) and entries
// whose tool is not recognized are skipped, never fatal; the skip count is
// returned so callers can log it.
func ExtractToolCalls(events []reasoning.TraceEvent) ([]ToolCall, int) {
	calls := make([]ToolCall, 0, len(events))
	skipped := 0
	for _, ev := range events {
		kind, ok := classifyTool(ev.Tool)
		if !ok {
			skipped++
			continue
		}
		calls = append(calls, ToolCall{
			Kind:      kind,
			Tool:      ev.Tool,
			Input:     ev.Input,
			Output:    ev.Output,
			Timestamp: ev.Timestamp,
		})
	}
	return calls, skipped
}

func classifyTool(tool string) (ToolCallKind, bool) {
	name := strings.ToLower(strings.TrimSpace(tool))
	if name == "" {
		return "", false
	}
	for _, tk := range toolKinds {
		if strings.Contains(name, tk.substr) {
			return tk.kind, true
		}
	}
	return "", false
}
