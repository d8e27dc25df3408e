// Copyright (C) 2025 ContractGuard AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package negotiation

import (
	"context"
	"log/slog"
	"strings"
	"text/template"

	"github.com/contractguard-ai/contractguard/services/agent/datatypes"
	"github.com/contractguard-ai/contractguard/services/reasoning"
)

const draftSystemPrompt = "You draft professional, courteous contract " +
	"negotiation messages. Write plain prose, no JSON. Never promise or " +
	"imply guaranteed outcomes."

// fallbackDraftTemplate produces a serviceable outbound message when the
// reasoning service cannot. A round must always carry a draft before the
// session goes back to AwaitingResponse.
var fallbackDraftTemplate = template.Must(template.New("draft").Parse(
	`Thank you for sharing the draft agreement. Having reviewed it, we would like to propose the following changes before proceeding:
{{range .Requests}}
{{.Index}}. {{.Category}} clause: {{.ProposedText}}{{if .Rationale}}
   Rationale: {{.Rationale}}{{end}}
{{end}}
We believe these changes bring the agreement in line with standard market terms. We are happy to discuss any of the points above.

Best regards`))

type draftRequestView struct {
	Index        int
	Category     datatypes.ClauseCategory
	ProposedText string
	Rationale    string
}

type draftView struct {
	Requests []draftRequestView
}

// draftMessage produces the round's outbound message. Reasoning-service
// failure falls back to the deterministic template, mirroring the
// recommendation fallback policy.
func (m *Machine) draftMessage(ctx context.Context, session *datatypes.NegotiationSession, round *datatypes.NegotiationRound) string {
	resp, err := m.client.Invoke(ctx, reasoning.Request{
		SessionID:   session.SessionID,
		System:      draftSystemPrompt,
		Prompt:      draftPrompt(session, round),
		Temperature: 0.6,
	})
	if err == nil && strings.TrimSpace(resp.Content) != "" {
		return strings.TrimSpace(resp.Content)
	}
	if err != nil {
		slog.Warn("Reasoning service failed for message draft, using template",
			"session_id", session.SessionID, "round", round.RoundNumber, "error", err)
	}
	return m.templateDraft(round)
}

func (m *Machine) templateDraft(round *datatypes.NegotiationRound) string {
	view := draftView{}
	for i := range round.Requests {
		req := &round.Requests[i]
		view.Requests = append(view.Requests, draftRequestView{
			Index:        i + 1,
			Category:     req.Category,
			ProposedText: req.ProposedText,
			Rationale:    req.Rationale,
		})
	}
	var b strings.Builder
	if err := fallbackDraftTemplate.Execute(&b, view); err != nil {
		// Template over a plain struct cannot fail; keep a last-resort line.
		slog.Error("Draft template execution failed", "error", err)
		return "Please see our requested changes attached."
	}
	return b.String()
}

func draftPrompt(session *datatypes.NegotiationSession, round *datatypes.NegotiationRound) string {
	var b strings.Builder
	if round.RoundNumber == 1 {
		b.WriteString("Draft an opening negotiation message requesting the following contract changes:\n")
	} else {
		b.WriteString("Draft a follow-up negotiation message. We have reviewed the counterparty's reply and now request:\n")
	}
	for i := range round.Requests {
		req := &round.Requests[i]
		b.WriteString("- ")
		b.WriteString(string(req.Category))
		b.WriteString(": ")
		b.WriteString(req.ProposedText)
		if req.Rationale != "" {
			b.WriteString(" (")
			b.WriteString(req.Rationale)
			b.WriteString(")")
		}
		b.WriteString("\n")
	}
	if session.Strategy.OverallApproach != "" {
		b.WriteString("\nTone guidance: ")
		b.WriteString(session.Strategy.OverallApproach)
	}
	return b.String()
}
