// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package arbiter

import "testing"

func TestPriorityAlwaysPicksLowest(t *testing.T) {
	a, err := New(Priority, 3)
	if err != nil {
		t.Fatal(err)
	}
	idx, ok := a.Pick([]bool{false, true, true})
	if !ok || idx != 1 {
		t.Fatalf("got idx=%d ok=%v, want idx=1 ok=true", idx, ok)
	}
	idx, ok = a.Pick([]bool{true, true, true})
	if !ok || idx != 0 {
		t.Fatalf("got idx=%d ok=%v, want idx=0 ok=true", idx, ok)
	}
}

func TestRoundRobinAdvancesRegardlessOfTransfer(t *testing.T) {
	a, err := New(RoundRobin, 2)
	if err != nil {
		t.Fatal(err)
	}
	// Only channel 0 valid: picked every time, but the pointer still
	// advances so it doesn't simply always win once channel 1 becomes
	// live too.
	idx, ok := a.Pick([]bool{true, false})
	if !ok || idx != 0 {
		t.Fatalf("cycle 1: got idx=%d ok=%v", idx, ok)
	}
	// Now both valid: pointer should have advanced to 1.
	idx, ok = a.Pick([]bool{true, true})
	if !ok || idx != 1 {
		t.Fatalf("cycle 2: got idx=%d ok=%v, want idx=1", idx, ok)
	}
}

func TestRoundRobinFairnessOver1000Cycles(t *testing.T) {
	a, err := New(RoundRobin, 2)
	if err != nil {
		t.Fatal(err)
	}
	counts := [2]int{}
	for i := 0; i < 1000; i++ {
		idx, ok := a.Pick([]bool{true, true})
		if !ok {
			t.Fatalf("cycle %d: expected a winner", i)
		}
		counts[idx]++
	}
	diff := counts[0] - counts[1]
	if diff < -1 || diff > 1 {
		t.Fatalf("unfair arbitration: counts=%v", counts)
	}
}

func TestPickNoneValid(t *testing.T) {
	a, err := New(RoundRobin, 3)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := a.Pick([]bool{false, false, false}); ok {
		t.Fatalf("expected no winner when nothing is valid")
	}
}

func TestNewZeroChannels(t *testing.T) {
	if _, err := New(RoundRobin, 0); err != ErrZeroChannels {
		t.Fatalf("got %v, want ErrZeroChannels", err)
	}
}
