// Copyright (C) 2025 ContractGuard AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package storage persists contracts and negotiation sessions in an embedded
// BadgerDB instance.
//
// The store is the only durable state in the system: every pipeline and
// negotiation transition is saved through it immediately. Values are
// JSON-encoded under "contract/<id>" and "session/<id>" keys.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"

	"github.com/contractguard-ai/contractguard/services/agent/datatypes"
)

const (
	contractPrefix = "contract/"
	sessionPrefix  = "session/"
)

// ErrNotFound indicates the requested entity does not exist. Wrapped inside
// *PersistenceError; test with NotFound().
var ErrNotFound = errors.New("entity not found")

// PersistenceError wraps any store failure with the entity it concerns.
// The store never retries; retry policy belongs to the caller.
type PersistenceError struct {
	Op       string
	Kind     string
	EntityID string
	Err      error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s %s %s: %v", e.Op, e.Kind, e.EntityID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// NotFound reports whether err is a missing-entity failure.
func NotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Config holds configuration for the store's BadgerDB instance.
type Config struct {
	// Path is the directory for BadgerDB files. Required unless InMemory.
	Path string

	// InMemory enables in-memory mode (no disk persistence). For tests.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool

	// Logger receives BadgerDB's internal logging. If nil, it is disabled.
	Logger *slog.Logger
}

// DefaultConfig returns production defaults: durable synchronous writes.
func DefaultConfig(path string) Config {
	return Config{Path: path, SyncWrites: true}
}

// InMemoryConfig returns a configuration for tests: no disk I/O.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Store is the contract/session repository. Safe for concurrent use.
type Store struct {
	db *badger.DB
}

// Open opens the store, creating the directory if needed.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	slog.Info("Opened contract store", "path", cfg.Path, "in_memory", cfg.InMemory)
	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveContract persists a contract record.
func (s *Store) SaveContract(contract *datatypes.Contract) error {
	return s.save("contract", contractPrefix+contract.ContractID, contract.ContractID, contract)
}

// LoadContract returns the contract with the given id.
func (s *Store) LoadContract(contractID string) (*datatypes.Contract, error) {
	var contract datatypes.Contract
	if err := s.load("contract", contractPrefix+contractID, contractID, &contract); err != nil {
		return nil, err
	}
	return &contract, nil
}

// ListContracts returns all contracts belonging to userID, unordered.
func (s *Store) ListContracts(userID string) ([]*datatypes.Contract, error) {
	contracts := []*datatypes.Contract{}
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(contractPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var contract datatypes.Contract
				if err := json.Unmarshal(val, &contract); err != nil {
					key := string(it.Item().Key())
					slog.Warn("Skipping undecodable contract record", "key", key, "error", err)
					return nil
				}
				if contract.UserID == userID {
					contracts = append(contracts, &contract)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, &PersistenceError{Op: "list", Kind: "contract", EntityID: userID, Err: err}
	}
	return contracts, nil
}

// DeleteContract removes a contract and, when present, its negotiation
// session.
func (s *Store) DeleteContract(contractID string) error {
	contract, err := s.LoadContract(contractID)
	if err != nil {
		return err
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(contractPrefix + contractID)); err != nil {
			return err
		}
		if contract.NegotiationSessionID != "" {
			if err := txn.Delete([]byte(sessionPrefix + contract.NegotiationSessionID)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return &PersistenceError{Op: "delete", Kind: "contract", EntityID: contractID, Err: err}
	}
	return nil
}

// SaveSession persists a negotiation session record.
func (s *Store) SaveSession(session *datatypes.NegotiationSession) error {
	return s.save("session", sessionPrefix+session.SessionID, session.SessionID, session)
}

// LoadSession returns the negotiation session with the given id.
func (s *Store) LoadSession(sessionID string) (*datatypes.NegotiationSession, error) {
	var session datatypes.NegotiationSession
	if err := s.load("session", sessionPrefix+sessionID, sessionID, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *Store) save(kind, key, id string, entity any) error {
	data, err := json.Marshal(entity)
	if err != nil {
		return &PersistenceError{Op: "save", Kind: kind, EntityID: id, Err: err}
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
	if err != nil {
		return &PersistenceError{Op: "save", Kind: kind, EntityID: id, Err: err}
	}
	return nil
}

func (s *Store) load(kind, key, id string, out any) error {
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, out)
		})
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			err = fmt.Errorf("%w: %s %s", ErrNotFound, kind, id)
		}
		return &PersistenceError{Op: "load", Kind: kind, EntityID: id, Err: err}
	}
	return nil
}
