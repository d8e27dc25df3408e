// Copyright (C) 2025 ContractGuard AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/contractguard-ai/contractguard/services/agent"
	"github.com/contractguard-ai/contractguard/services/storage"
)

// respondRequest carries a counterparty reply into the state machine.
// ContractID guards against advancing a session with another contract's id.
type respondRequest struct {
	ContractID   string `json:"contract_id" binding:"required"`
	ResponseText string `json:"response_text" binding:"required"`
}

// StartNegotiation creates (or returns) the negotiation session for a
// contract.
func StartNegotiation(orch *agent.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		contractID := c.Param("contractId")
		session, err := orch.StartNegotiation(c.Request.Context(), contractID)
		if err != nil {
			respondError(c, err)
			return
		}
		slog.Info("Negotiation session ready",
			"contract_id", contractID,
			"session_id", session.SessionID,
			"rounds", len(session.Rounds))
		c.JSON(http.StatusOK, session)
	}
}

// GetNegotiation returns a negotiation session by id.
func GetNegotiation(store *storage.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, err := store.LoadSession(c.Param("sessionId"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, session)
	}
}

// MarkRoundSent records that the current round's message went out to the
// counterparty.
func MarkRoundSent(orch *agent.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, err := orch.MarkRoundSent(c.Request.Context(), c.Param("sessionId"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, session)
	}
}

// RespondNegotiation ingests a counterparty response and advances the
// session.
func RespondNegotiation(orch *agent.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req respondRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		sessionID := c.Param("sessionId")
		session, err := orch.HandleNegotiationResponse(c.Request.Context(),
			req.ContractID, sessionID, req.ResponseText)
		if err != nil {
			respondError(c, err)
			return
		}
		slog.Info("Advanced negotiation",
			"session_id", sessionID,
			"status", session.Status,
			"rounds", len(session.Rounds))
		c.JSON(http.StatusOK, session)
	}
}
