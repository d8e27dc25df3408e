// Copyright (C) 2025 ContractGuard AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package agent

import "sync"

// sessionLocks serializes mutations per negotiation session. Losers of the
// race fail fast instead of queueing: a queued advance would classify a round
// that no longer awaits a response.
type sessionLocks struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{held: make(map[string]struct{})}
}

// tryAcquire reports whether the caller now holds the session lock.
func (l *sessionLocks) tryAcquire(sessionID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, taken := l.held[sessionID]; taken {
		return false
	}
	l.held[sessionID] = struct{}{}
	return true
}

func (l *sessionLocks) release(sessionID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, sessionID)
}
