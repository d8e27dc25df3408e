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
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/contractguard-ai/contractguard/services/agent"
	"github.com/contractguard-ai/contractguard/services/agent/datatypes"
	"github.com/contractguard-ai/contractguard/services/api/middleware"
	"github.com/contractguard-ai/contractguard/services/storage"
)

// clausePayload is one extracted clause as submitted by the extraction
// collaborator.
type clausePayload struct {
	ClauseID      string `json:"clause_id"`
	Category      string `json:"category" binding:"required"`
	Text          string `json:"text" binding:"required"`
	FullText      string `json:"full_text"`
	SectionNumber int    `json:"section_number"`
}

// createContractRequest registers an already-extracted contract for analysis.
type createContractRequest struct {
	ContractType string                 `json:"contract_type" binding:"required"`
	Title        string                 `json:"title"`
	Parties      []string               `json:"parties"`
	StorageRef   string                 `json:"storage_ref"`
	Clauses      []clausePayload        `json:"clauses" binding:"required,min=1,dive"`
	UserContext  *datatypes.UserContext `json:"user_context"`
}

// CreateContract registers a contract and its extracted clauses.
func CreateContract(store *storage.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createContractRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		clauses := make([]datatypes.Clause, 0, len(req.Clauses))
		for i, p := range req.Clauses {
			category := datatypes.ClauseCategory(p.Category)
			if !category.IsValid() {
				c.JSON(http.StatusBadRequest, gin.H{
					"error": "unknown clause category: " + p.Category,
				})
				return
			}
			clauseID := p.ClauseID
			if clauseID == "" {
				clauseID = uuid.NewString()
			}
			sectionNumber := p.SectionNumber
			if sectionNumber == 0 {
				sectionNumber = i + 1
			}
			clauses = append(clauses, datatypes.Clause{
				ClauseID:      clauseID,
				Category:      category,
				Text:          p.Text,
				FullText:      p.FullText,
				SectionNumber: sectionNumber,
			})
		}

		userCtx := datatypes.DefaultUserContext()
		if req.UserContext != nil {
			userCtx = *req.UserContext
		}

		now := time.Now().UTC()
		contract := &datatypes.Contract{
			ContractID:   uuid.NewString(),
			UserID:       middleware.UserID(c),
			ContractType: req.ContractType,
			Title:        req.Title,
			Parties:      req.Parties,
			Status:       datatypes.ContractPending,
			StorageRef:   req.StorageRef,
			Clauses:      clauses,
			UserContext:  userCtx,
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		if err := store.SaveContract(contract); err != nil {
			respondError(c, err)
			return
		}

		slog.Info("Registered contract",
			"contract_id", contract.ContractID,
			"user_id", contract.UserID,
			"clauses", len(contract.Clauses))
		c.JSON(http.StatusCreated, contract)
	}
}

// GetContract returns a single contract by id.
func GetContract(store *storage.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		contract, err := store.LoadContract(c.Param("contractId"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, contract)
	}
}

// ListContracts returns all contracts belonging to the authenticated user.
func ListContracts(store *storage.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		contracts, err := store.ListContracts(middleware.UserID(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"contracts": contracts})
	}
}

// DeleteContract removes a contract and its negotiation session, if any.
func DeleteContract(store *storage.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		contractID := c.Param("contractId")
		if err := store.DeleteContract(contractID); err != nil {
			respondError(c, err)
			return
		}
		slog.Info("Deleted contract", "contract_id", contractID)
		c.JSON(http.StatusOK, gin.H{"status": "deleted", "contract_id": contractID})
	}
}

// AnalyzeContract runs the analysis pipeline on a registered contract.
func AnalyzeContract(orch *agent.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		summary, err := orch.ProcessContract(c.Request.Context(), c.Param("contractId"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, summary)
	}
}
