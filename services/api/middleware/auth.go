// Copyright (C) 2025 ContractGuard AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package middleware provides HTTP middleware for the API service.
//
// The auth middleware extracts a bearer token from the Authorization header
// and compares it against the configured API token. When no token is
// configured the service runs in development mode: every request is
// authenticated as the local demo user, which lets the CLI work without any
// auth infrastructure.
package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// userIDKey is the context key for the authenticated user id.
const userIDKey = "contractguard_user_id"

// LocalUser is the identity assigned in development mode.
const LocalUser = "local-user"

// SetUserID stores the authenticated user id in the Gin context.
func SetUserID(c *gin.Context, userID string) {
	c.Set(userIDKey, userID)
}

// UserID retrieves the authenticated user id from the Gin context.
// Returns LocalUser if the auth middleware did not run.
func UserID(c *gin.Context) string {
	if v, exists := c.Get(userIDKey); exists {
		if id, ok := v.(string); ok && id != "" {
			return id
		}
	}
	return LocalUser
}

// Auth creates a Gin middleware that authenticates requests.
//
// With a non-empty expectedToken, requests must carry
// "Authorization: Bearer <token>" with a matching token or they are rejected
// with 401. With an empty expectedToken the middleware runs in development
// mode and accepts everything.
//
// The caller's identity comes from the X-User-ID header when present,
// falling back to LocalUser.
func Auth(expectedToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if expectedToken != "" {
			token := extractBearerToken(c)
			if subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) != 1 {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error": "unauthorized",
				})
				return
			}
		}

		userID := strings.TrimSpace(c.GetHeader("X-User-ID"))
		if userID == "" {
			userID = LocalUser
		}
		SetUserID(c, userID)

		c.Next()
	}
}

// extractBearerToken parses "Authorization: Bearer <token>". Returns empty
// string if the header is missing or malformed. The scheme is
// case-insensitive per RFC 7235.
func extractBearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
