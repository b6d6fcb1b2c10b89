// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command aliaspath resolves alias import paths in JavaScript, TypeScript
// and Vue projects and serves go-to-definition and completion over them.
//
// Usage:
//
//	aliaspath resolve @/util --from src/main.ts
//	aliaspath definition src/main.ts 3 4
//	aliaspath lsp                  # language server on stdio
//	aliaspath http --addr :8080    # JSON API
//
// Environment (a .env file in the working directory is read first):
//
//	ALIASPATH_SETTINGS   host settings file (.json, .yaml or .toml)
//	ALIASPATH_CACHE_DIR  persistent token cache directory
//	ALIASPATH_DEBUG      debug logging when "1" or "true"
//
// Example requests against the HTTP server:
//
//	curl http://localhost:8080/v1/aliaspath/health
//
//	curl -X POST http://localhost:8080/v1/aliaspath/definition \
//	  -H "Content-Type: application/json" \
//	  -d '{"document_path": "/proj/src/main.ts", "line": 3, "character": 4}'
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
)

func main() {
	// A missing .env is normal.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
