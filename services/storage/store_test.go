// Copyright (C) 2025 ContractGuard AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contractguard-ai/contractguard/services/agent/datatypes"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleContract(id, userID string) *datatypes.Contract {
	return &datatypes.Contract{
		ContractID:   id,
		UserID:       userID,
		ContractType: "service_agreement",
		Status:       datatypes.ContractPending,
		UserContext:  datatypes.DefaultUserContext(),
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}
}

func TestStore_SaveLoadContract(t *testing.T) {
	store := openTestStore(t)

	contract := sampleContract("ct-1", "user-1")
	contract.Clauses = []datatypes.Clause{
		{ClauseID: "c1", Category: datatypes.CategoryLiability, Text: "liable without limit"},
	}
	require.NoError(t, store.SaveContract(contract))

	loaded, err := store.LoadContract("ct-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", loaded.UserID)
	require.Len(t, loaded.Clauses, 1)
	assert.Equal(t, datatypes.CategoryLiability, loaded.Clauses[0].Category)
}

func TestStore_LoadMissingContract(t *testing.T) {
	store := openTestStore(t)

	_, err := store.LoadContract("nope")
	require.Error(t, err)
	assert.True(t, NotFound(err))

	var perr *PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "contract", perr.Kind)
	assert.Equal(t, "nope", perr.EntityID)
}

func TestStore_ListContractsByUser(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.SaveContract(sampleContract("ct-1", "alice")))
	require.NoError(t, store.SaveContract(sampleContract("ct-2", "bob")))
	require.NoError(t, store.SaveContract(sampleContract("ct-3", "alice")))

	contracts, err := store.ListContracts("alice")
	require.NoError(t, err)
	assert.Len(t, contracts, 2)
	for _, c := range contracts {
		assert.Equal(t, "alice", c.UserID)
	}
}

func TestStore_DeleteContractRemovesSession(t *testing.T) {
	store := openTestStore(t)

	contract := sampleContract("ct-1", "alice")
	contract.NegotiationSessionID = "ns-1"
	require.NoError(t, store.SaveContract(contract))
	require.NoError(t, store.SaveSession(&datatypes.NegotiationSession{
		SessionID:  "ns-1",
		ContractID: "ct-1",
		Status:     datatypes.SessionInProgress,
	}))

	require.NoError(t, store.DeleteContract("ct-1"))

	_, err := store.LoadContract("ct-1")
	assert.True(t, NotFound(err))
	_, err = store.LoadSession("ns-1")
	assert.True(t, NotFound(err))
}

func TestStore_SaveLoadSession(t *testing.T) {
	store := openTestStore(t)

	session := &datatypes.NegotiationSession{
		SessionID:  "ns-1",
		ContractID: "ct-1",
		UserID:     "alice",
		Status:     datatypes.SessionAwaitingResponse,
		Rounds: []datatypes.NegotiationRound{
			{RoundID: "r1", RoundNumber: 1, Requests: []datatypes.NegotiationRequest{
				{RequestID: "req-1", ClauseID: "c1", Status: datatypes.RequestPending},
			}},
		},
	}
	require.NoError(t, store.SaveSession(session))

	loaded, err := store.LoadSession("ns-1")
	require.NoError(t, err)
	assert.Equal(t, datatypes.SessionAwaitingResponse, loaded.Status)
	require.Len(t, loaded.Rounds, 1)
	assert.True(t, loaded.Rounds[0].Awaiting())
}
