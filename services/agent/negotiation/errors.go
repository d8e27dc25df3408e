// Copyright (C) 2025 ContractGuard AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package negotiation

import "fmt"

// SessionNotFoundError indicates the referenced negotiation session does not
// exist.
type SessionNotFoundError struct {
	SessionID string
}

func (e *SessionNotFoundError) Error() string {
	return fmt.Sprintf("negotiation session %s not found", e.SessionID)
}

// InvalidRoundStateError indicates an operation that violates the round
// lifecycle, e.g. advancing a session with no round awaiting a response.
// Never retried automatically: a retry would re-violate the same invariant.
type InvalidRoundStateError struct {
	SessionID   string
	RoundNumber int
	Reason      string
}

func (e *InvalidRoundStateError) Error() string {
	return fmt.Sprintf("invalid round state in session %s (round %d): %s",
		e.SessionID, e.RoundNumber, e.Reason)
}

// ConcurrentModificationError indicates a caller lost the per-session
// serialization race to another in-flight mutation.
type ConcurrentModificationError struct {
	SessionID string
}

func (e *ConcurrentModificationError) Error() string {
	return fmt.Sprintf("negotiation session %s is being modified by another request", e.SessionID)
}
