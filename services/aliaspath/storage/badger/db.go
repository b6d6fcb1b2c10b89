// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package badger wraps an embedded BadgerDB instance with context-aware
// transaction helpers.
package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	dgbadger "github.com/dgraph-io/badger/v4"
)

// ErrClosed is returned by transaction helpers after Close.
var ErrClosed = errors.New("badger db closed")

// Config configures OpenDB.
type Config struct {
	// Path is the directory holding the database files. Ignored when InMemory.
	Path string

	// InMemory keeps all data in memory; nothing touches disk.
	InMemory bool

	// SyncWrites fsyncs every write. Off by default; the data is a cache.
	SyncWrites bool

	// ValueLogFileSize caps each value log file, in bytes. Zero uses 64 MiB.
	ValueLogFileSize int64
}

// DefaultConfig returns an on-disk configuration. Path must be set.
func DefaultConfig() Config {
	return Config{ValueLogFileSize: 64 << 20}
}

// InMemoryConfig returns a configuration for tests.
func InMemoryConfig() Config {
	return Config{InMemory: true, ValueLogFileSize: 64 << 20}
}

// DB is an opened BadgerDB.
//
// Thread Safety: Safe for concurrent use.
type DB struct {
	db   *dgbadger.DB
	path string

	mu     sync.RWMutex
	closed bool
}

// OpenDB opens (creating if needed) the database described by cfg.
//
// Outputs:
//
//	*DB - The opened database. Call Close when done.
//	error - Non-nil if Path is empty for an on-disk config, or Badger fails.
func OpenDB(cfg Config) (*DB, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("badger: path is required for an on-disk database")
	}
	path := cfg.Path
	if cfg.InMemory {
		path = ""
	}
	opts := dgbadger.DefaultOptions(path).
		WithInMemory(cfg.InMemory).
		WithSyncWrites(cfg.SyncWrites).
		WithLogger(nil)
	if cfg.ValueLogFileSize > 0 {
		opts = opts.WithValueLogFileSize(cfg.ValueLogFileSize)
	}

	db, err := dgbadger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger at %q: %w", path, err)
	}
	slog.Debug("badger opened", slog.String("path", path), slog.Bool("in_memory", cfg.InMemory))
	return &DB{db: db, path: path}, nil
}

// Path returns the database directory, or "" when in memory.
func (d *DB) Path() string { return d.path }

// WithTxn runs fn in a read-write transaction and commits it.
func (d *DB) WithTxn(ctx context.Context, fn func(txn *dgbadger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}
	return d.db.Update(fn)
}

// WithReadTxn runs fn in a read-only transaction.
func (d *DB) WithReadTxn(ctx context.Context, fn func(txn *dgbadger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}
	return d.db.View(fn)
}

// DropPrefix deletes every key starting with prefix.
func (d *DB) DropPrefix(ctx context.Context, prefix []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}
	return d.db.DropPrefix(prefix)
}

// Close closes the database. Further calls are no-ops.
func (d *DB) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	return d.db.Close()
}
