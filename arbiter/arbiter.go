// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package arbiter selects, on each cycle, at most one of K channels
// requesting a shared resource. It is the synchronization point for every
// shared-port component in the system (see memctl, which runs one arbiter
// per port).
package arbiter

import "errors"

// Policy is the tie-break rule used when more than one channel requests
// the resource on the same cycle.
type Policy int

const (
	// RoundRobin rotates a pointer across channels regardless of whether a
	// transfer happened on the previous cycle, so no channel is starved
	// indefinitely by persistently-valid neighbors.
	RoundRobin Policy = iota
	// Priority always favors the lowest-numbered valid channel.
	Priority
)

// ErrZeroChannels is returned by New when asked to arbitrate over no
// channels at all.
var ErrZeroChannels = errors.New("arbiter: channel count must be > 0")

// Arbiter picks one of K channels per cycle under a Policy.
type Arbiter struct {
	policy Policy
	k      int
	rr     int // round-robin pointer, advances every cycle
}

// New builds an Arbiter over k channels.
func New(policy Policy, k int) (*Arbiter, error) {
	if k <= 0 {
		return nil, ErrZeroChannels
	}
	return &Arbiter{policy: policy, k: k}, nil
}

// Pick selects one channel index among those with valid[i] == true. It
// returns ok=false if no channel is valid. Pick always advances the
// round-robin pointer by one (mod k) before returning, whether or not a
// channel was selected and regardless of whether a transfer subsequently
// completes — this matches spec.md §4.1's tie-break rule: "advances by one
// modulo K after each cycle regardless of whether a transfer occurred."
func (a *Arbiter) Pick(valid []bool) (idx int, ok bool) {
	if len(valid) != a.k {
		panic("arbiter: valid slice length must match channel count")
	}
	defer func() {
		if a.policy == RoundRobin {
			a.rr = (a.rr + 1) % a.k
		}
	}()

	switch a.policy {
	case Priority:
		for i := 0; i < a.k; i++ {
			if valid[i] {
				return i, true
			}
		}
		return 0, false
	default: // RoundRobin
		for off := 0; off < a.k; off++ {
			i := (a.rr + off) % a.k
			if valid[i] {
				return i, true
			}
		}
		return 0, false
	}
}

// Reset returns the arbiter to its initial round-robin position. Priority
// arbiters have no state to reset, consistent with spec.md §4.1
// ("independent of past activity").
func (a *Arbiter) Reset() {
	a.rr = 0
}
