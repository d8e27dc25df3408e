// Copyright (C) 2025 ContractGuard AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/contractguard-ai/contractguard/services/agent"
	"github.com/contractguard-ai/contractguard/services/agent/negotiation"
	"github.com/contractguard-ai/contractguard/services/agent/parser"
	"github.com/contractguard-ai/contractguard/services/storage"
)

// respondError maps pipeline and store errors onto HTTP status codes and
// writes a JSON error body.
//
// Mapping:
//
//	404  missing contract or session
//	409  round-state conflicts and concurrent modification
//	422  contract reached the pipeline without usable clauses
//	502  reasoning service failures and unusable completions
//	500  everything else, including persistence failures
func respondError(c *gin.Context, err error) {
	var (
		notFoundSession *negotiation.SessionNotFoundError
		invalidRound    *negotiation.InvalidRoundStateError
		concurrent      *negotiation.ConcurrentModificationError
		extraction      *agent.ExtractionUpstreamError
		analysis        *agent.AnalysisError
		partial         *agent.PartialAnalysisError
		unparsable      *parser.UnparsableResponseError
		persistence     *storage.PersistenceError
	)

	switch {
	case storage.NotFound(err), errors.As(err, &notFoundSession):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})

	case errors.As(err, &invalidRound), errors.As(err, &concurrent):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})

	case errors.As(err, &extraction):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})

	case errors.As(err, &partial):
		c.JSON(http.StatusBadGateway, gin.H{
			"error":           err.Error(),
			"clause_failures": partial.Failures,
		})

	case errors.As(err, &analysis), errors.As(err, &unparsable):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})

	case errors.As(err, &persistence):
		slog.Error("persistence failure", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage failure"})

	default:
		slog.Error("unhandled handler error", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
