// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package lsp

import "errors"

var (
	// ErrShutdown is reported for requests received after "shutdown".
	ErrShutdown = errors.New("server is shutting down")

	// ErrExitWithoutShutdown is returned by Serve when "exit" arrives
	// before "shutdown".
	ErrExitWithoutShutdown = errors.New("exit received before shutdown")

	// ErrBadHeader is returned for malformed message framing.
	ErrBadHeader = errors.New("malformed message header")

	// ErrInvalidURI is returned for document URIs that are not file URIs.
	ErrInvalidURI = errors.New("not a file URI")
)
