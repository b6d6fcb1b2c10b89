// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package debounce coalesces bursts of triggers into one call after a quiet
// interval.
package debounce

import (
	"sync"
	"time"
)

// Token identifies one Trigger call.
//
// A token is current until the next Trigger or Cancel on the same
// Debouncer. Work started for a token can poll Superseded to decide whether
// its result is still wanted.
type Token struct {
	gen uint64
	d   *Debouncer
}

// Superseded reports whether a newer Trigger or a Cancel happened after this
// token was issued.
func (t Token) Superseded() bool {
	if t.d == nil {
		return true
	}
	t.d.mu.Lock()
	defer t.d.mu.Unlock()
	return t.gen != t.d.gen
}

// Generation returns the token's sequence number. Later triggers have
// higher generations.
func (t Token) Generation() uint64 {
	return t.gen
}

// Debouncer runs the most recent triggered function once the trigger stream
// has been quiet for the configured delay.
//
// Description:
//
//	Each Trigger invalidates the token of any pending, not yet started call
//	and restarts the quiet interval. A call that has already started is never
//	interrupted; it runs to completion and the next call waits for it.
//	Calls are therefore serialised.
//
// Thread Safety:
//
//	All methods are safe for concurrent use.
type Debouncer struct {
	delay time.Duration

	mu     sync.Mutex
	gen    uint64
	timer  *time.Timer
	closed bool

	run      sync.Mutex
	inflight sync.WaitGroup
}

// New creates a Debouncer with the given quiet interval.
func New(delay time.Duration) *Debouncer {
	if delay < 0 {
		delay = 0
	}
	return &Debouncer{delay: delay}
}

// Delay returns the quiet interval.
func (d *Debouncer) Delay() time.Duration {
	return d.delay
}

// Trigger schedules fn after the quiet interval, replacing any pending call.
//
// Returns the token fn will receive. After Close, fn never runs.
func (d *Debouncer) Trigger(fn func(Token)) Token {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.gen++
	tok := Token{gen: d.gen, d: d}
	if d.timer != nil {
		if d.timer.Stop() {
			d.inflight.Done()
		}
		d.timer = nil
	}
	if d.closed {
		return tok
	}
	d.inflight.Add(1)
	d.timer = time.AfterFunc(d.delay, func() { d.fire(tok, fn) })
	return tok
}

func (d *Debouncer) fire(tok Token, fn func(Token)) {
	defer d.inflight.Done()

	d.mu.Lock()
	stale := tok.gen != d.gen || d.closed
	if !stale {
		d.timer = nil
	}
	d.mu.Unlock()
	if stale {
		return
	}

	d.run.Lock()
	defer d.run.Unlock()
	fn(tok)
}

// Cancel drops the pending call, if any, and supersedes every issued token.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gen++
	if d.timer != nil {
		if d.timer.Stop() {
			d.inflight.Done()
		}
		d.timer = nil
	}
}

// Wait blocks until no call is pending or running.
func (d *Debouncer) Wait() {
	d.inflight.Wait()
}

// Close cancels the pending call, waits for a running one, and rejects
// further triggers.
func (d *Debouncer) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.Cancel()
	d.Wait()
}
