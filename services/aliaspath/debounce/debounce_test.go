// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package debounce

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestDebouncer_LastTriggerWins(t *testing.T) {
	d := New(30 * time.Millisecond)
	defer d.Close()

	var mu sync.Mutex
	var ran []int
	for i := 1; i <= 3; i++ {
		i := i
		d.Trigger(func(Token) {
			mu.Lock()
			ran = append(ran, i)
			mu.Unlock()
		})
	}
	d.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(ran) != 1 || ran[0] != 3 {
		t.Fatalf("ran = %v, want [3]", ran)
	}
}

func TestDebouncer_TokenSuperseded(t *testing.T) {
	d := New(time.Hour)
	defer d.Close()

	first := d.Trigger(func(Token) {})
	if first.Superseded() {
		t.Fatal("fresh token must be current")
	}
	second := d.Trigger(func(Token) {})
	if !first.Superseded() {
		t.Error("first token should be superseded by the second trigger")
	}
	if second.Superseded() {
		t.Error("second token should still be current")
	}
	if second.Generation() <= first.Generation() {
		t.Error("generations must increase")
	}

	d.Cancel()
	if !second.Superseded() {
		t.Error("Cancel should supersede the pending token")
	}
	if !(Token{}).Superseded() {
		t.Error("zero token is always superseded")
	}
}

func TestDebouncer_CancelDropsPending(t *testing.T) {
	d := New(20 * time.Millisecond)
	defer d.Close()

	var calls atomic.Int32
	d.Trigger(func(Token) { calls.Add(1) })
	d.Cancel()
	d.Wait()
	time.Sleep(40 * time.Millisecond)

	if got := calls.Load(); got != 0 {
		t.Fatalf("calls = %d, want 0", got)
	}
}

func TestDebouncer_RunningCallCompletes(t *testing.T) {
	d := New(time.Millisecond)
	defer d.Close()

	started := make(chan struct{})
	release := make(chan struct{})
	var firstSawSuperseded atomic.Bool
	var secondRan atomic.Bool

	d.Trigger(func(tok Token) {
		close(started)
		<-release
		firstSawSuperseded.Store(tok.Superseded())
	})
	<-started

	d.Trigger(func(Token) { secondRan.Store(true) })
	close(release)
	d.Wait()

	if !firstSawSuperseded.Load() {
		t.Error("running call should observe that it was superseded")
	}
	if !secondRan.Load() {
		t.Error("trigger issued during a running call must still run afterwards")
	}
}

func TestDebouncer_SerialisesCalls(t *testing.T) {
	d := New(0)
	defer d.Close()

	var active, maxActive atomic.Int32
	for i := 0; i < 5; i++ {
		d.Trigger(func(Token) {
			n := active.Add(1)
			for {
				m := maxActive.Load()
				if n <= m || maxActive.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			active.Add(-1)
		})
		time.Sleep(2 * time.Millisecond)
	}
	d.Wait()

	if maxActive.Load() > 1 {
		t.Fatalf("observed %d concurrent calls, want at most 1", maxActive.Load())
	}
}

func TestDebouncer_ClosedRejectsTriggers(t *testing.T) {
	d := New(time.Millisecond)
	d.Close()

	var ran atomic.Bool
	d.Trigger(func(Token) { ran.Store(true) })
	d.Wait()
	time.Sleep(5 * time.Millisecond)

	if ran.Load() {
		t.Error("trigger after Close must not run")
	}
}
