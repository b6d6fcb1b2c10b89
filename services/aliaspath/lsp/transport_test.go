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

import (
	"bytes"
	"io"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConn_WriteThenRead(t *testing.T) {
	var buf bytes.Buffer
	w := NewConn(nil, &buf)
	require.NoError(t, w.Write(map[string]string{"a": "é"}))
	require.NoError(t, w.Write(map[string]int{"b": 2}))

	assert.True(t, strings.HasPrefix(buf.String(), "Content-Length: 10\r\n\r\n"))

	r := NewConn(&buf, io.Discard)
	body, err := r.Read()
	require.NoError(t, err)
	assert.Equal(t, `{"a":"é"}`, string(body))

	body, err = r.Read()
	require.NoError(t, err)
	assert.Equal(t, `{"b":2}`, string(body))

	_, err = r.Read()
	assert.ErrorIs(t, err, io.EOF)
}

func TestConn_ReadHeaders(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{
			name:  "extra header and lowercase key",
			input: "content-length: 2\r\nContent-Type: application/vscode-jsonrpc; charset=utf-8\r\n\r\n{}",
			want:  "{}",
		},
		{
			name:  "bare newlines",
			input: "Content-Length: 2\n\n{}",
			want:  "{}",
		},
		{
			name:    "missing length",
			input:   "Content-Type: x\r\n\r\n{}",
			wantErr: ErrBadHeader,
		},
		{
			name:    "bad length",
			input:   "Content-Length: abc\r\n\r\n{}",
			wantErr: ErrBadHeader,
		},
		{
			name:    "no colon",
			input:   "garbage\r\n\r\n",
			wantErr: ErrBadHeader,
		},
		{
			name:    "truncated body",
			input:   "Content-Length: 10\r\n\r\n{}",
			wantErr: io.ErrUnexpectedEOF,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, err := NewConn(strings.NewReader(tt.input), io.Discard).Read()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(body))
		})
	}
}

func TestURIRoundTrip(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("posix paths")
	}
	path := filepath.Join("/tmp", "my project", "a.ts")
	uri := PathToURI(path)
	assert.Equal(t, "file:///tmp/my%20project/a.ts", uri)

	got, err := URIToPath(uri)
	require.NoError(t, err)
	assert.Equal(t, path, got)

	_, err = URIToPath("untitled:Untitled-1")
	assert.ErrorIs(t, err, ErrInvalidURI)
}
