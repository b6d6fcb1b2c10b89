// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package index

// =============================================================================
// TokenCache: parsed-token persistence between builds and restarts
// =============================================================================
//
// Every rebuild of the active document re-parses each resolved dependency,
// although dependencies rarely change while the user types. The cache keys
// a file's tokens by everything that determines them: path, size, mtime,
// the bound name of its default export, and the parser routing and size
// limit derived from config. A change to any of these yields a new key; the
// stale entry simply expires.
//
// Storage layout:
//
//	aliaspath/tokens/v1/{sha256}  →  gob-encoded []ast.SymbolToken
//	                                 TTL: 24 hours

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	dgbadger "github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/aliaspath/services/aliaspath/ast"
	"github.com/AleutianAI/aliaspath/services/aliaspath/config"
	badgerstore "github.com/AleutianAI/aliaspath/services/aliaspath/storage/badger"
)

// tokenCacheDefaultTTL is the lifetime of a cached entry.
const tokenCacheDefaultTTL = 24 * time.Hour

// tokenCacheKeyPrefix is versioned so a format change cannot collide.
const tokenCacheKeyPrefix = "aliaspath/tokens/v1/"

var errCacheMiss = errors.New("cache miss")

// TokenCache persists the parsed tokens of dependency files.
//
// Load returns (nil, false, nil) on a miss. Errors are storage failures; the
// Builder logs them and parses as if the cache were absent.
type TokenCache interface {
	Load(ctx context.Context, key string) ([]ast.SymbolToken, bool, error)
	Save(ctx context.Context, key string, tokens []ast.SymbolToken) error
}

// BadgerTokenCache implements TokenCache on an embedded BadgerDB.
//
// The caller owns the DB and must keep it open while the cache is in use.
//
// Thread Safety: Safe for concurrent use.
type BadgerTokenCache struct {
	db  *badgerstore.DB
	ttl time.Duration
}

// NewBadgerTokenCache creates a cache on db. A ttl of zero uses 24 hours.
func NewBadgerTokenCache(db *badgerstore.DB, ttl time.Duration) *BadgerTokenCache {
	if db == nil {
		panic("NewBadgerTokenCache: db must not be nil")
	}
	if ttl <= 0 {
		ttl = tokenCacheDefaultTTL
	}
	return &BadgerTokenCache{db: db, ttl: ttl}
}

// Load retrieves the tokens stored under key.
func (c *BadgerTokenCache) Load(ctx context.Context, key string) ([]ast.SymbolToken, bool, error) {
	var raw []byte
	err := c.db.WithReadTxn(ctx, func(txn *dgbadger.Txn) error {
		item, err := txn.Get(tokenCacheKey(key))
		if errors.Is(err, dgbadger.ErrKeyNotFound) {
			return errCacheMiss
		}
		if err != nil {
			return fmt.Errorf("get cache key: %w", err)
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, errCacheMiss) {
		tokenCacheTotal.WithLabelValues("miss").Inc()
		return nil, false, nil
	}
	if err != nil {
		tokenCacheTotal.WithLabelValues("error").Inc()
		return nil, false, fmt.Errorf("token cache load: %w", err)
	}

	var tokens []ast.SymbolToken
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&tokens); err != nil {
		tokenCacheTotal.WithLabelValues("error").Inc()
		return nil, false, fmt.Errorf("token cache decode: %w", err)
	}
	tokenCacheTotal.WithLabelValues("hit").Inc()
	return tokens, true, nil
}

// Save stores tokens under key with the cache's TTL. An empty token list is
// stored too; a file without exports is still worth not re-parsing.
func (c *BadgerTokenCache) Save(ctx context.Context, key string, tokens []ast.SymbolToken) error {
	if tokens == nil {
		tokens = []ast.SymbolToken{}
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(tokens); err != nil {
		return fmt.Errorf("token cache encode: %w", err)
	}
	err := c.db.WithTxn(ctx, func(txn *dgbadger.Txn) error {
		return txn.SetEntry(dgbadger.NewEntry(tokenCacheKey(key), buf.Bytes()).WithTTL(c.ttl))
	})
	if err != nil {
		return fmt.Errorf("token cache save: %w", err)
	}
	return nil
}

// Purge drops every cached entry.
func (c *BadgerTokenCache) Purge(ctx context.Context) error {
	return c.db.DropPrefix(ctx, []byte(tokenCacheKeyPrefix))
}

// TokenCacheStats summarises the cache contents.
type TokenCacheStats struct {
	Entries int   `json:"entries"`
	Tokens  int   `json:"tokens"`
	Bytes   int64 `json:"bytes"`

	// NextExpiry is the earliest expiry among the entries, zero when empty.
	NextExpiry time.Time `json:"next_expiry,omitempty"`
}

// Stats walks the cached entries. Entries that fail to decode are counted
// without tokens.
func (c *BadgerTokenCache) Stats(ctx context.Context) (TokenCacheStats, error) {
	var stats TokenCacheStats
	err := c.db.WithReadTxn(ctx, func(txn *dgbadger.Txn) error {
		opts := dgbadger.DefaultIteratorOptions
		opts.Prefix = []byte(tokenCacheKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			stats.Entries++
			stats.Bytes += item.EstimatedSize()
			if exp := item.ExpiresAt(); exp > 0 {
				t := time.Unix(int64(exp), 0)
				if stats.NextExpiry.IsZero() || t.Before(stats.NextExpiry) {
					stats.NextExpiry = t
				}
			}
			err := item.Value(func(val []byte) error {
				var tokens []ast.SymbolToken
				if derr := gob.NewDecoder(bytes.NewReader(val)).Decode(&tokens); derr == nil {
					stats.Tokens += len(tokens)
				}
				return nil
			})
			if err != nil {
				return fmt.Errorf("read cache value: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return TokenCacheStats{}, fmt.Errorf("token cache stats: %w", err)
	}
	return stats, nil
}

// TokenCacheKey derives the cache key of a file from everything its tokens
// depend on.
func TokenCacheKey(path string, info fs.FileInfo, boundName string, cfg config.ResolutionConfig) string {
	h := sha256.New()
	fmt.Fprintf(h, "path=%s\nsize=%d\nmtime=%d\nbound=%s\n",
		path, info.Size(), info.ModTime().UnixNano(), boundName)
	fmt.Fprintf(h, "script=%t\nstyle=%t\nmax=%d\n",
		cfg.IsScriptTokenFile(path), cfg.IsStyleTokenFile(path), cfg.MaxDependFileBytes())
	return hex.EncodeToString(h.Sum(nil))
}

func tokenCacheKey(key string) []byte {
	return []byte(tokenCacheKeyPrefix + key)
}

// cachedParse consults cache before parsing a file read from disk.
func cachedParse(ctx context.Context, cache TokenCache, key string, parse func() ([]ast.SymbolToken, error)) ([]ast.SymbolToken, error) {
	if tokens, ok, err := cache.Load(ctx, key); err != nil {
		slog.Debug("token cache unavailable", slog.String("error", err.Error()))
	} else if ok {
		return tokens, nil
	}

	tokens, err := parse()
	if err != nil {
		return nil, err
	}
	if err := cache.Save(ctx, key, tokens); err != nil {
		slog.Debug("token cache save failed", slog.String("error", err.Error()))
	}
	return tokens, nil
}
