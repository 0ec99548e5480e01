// Package dispatch implements the master's core: worker registration and
// selection, busy/free tracking, pending-task queueing, request-to-worker
// correlation, and response routing back to the originating submitter.
/*
 * Copyright (c) 2024, ReadySKAHF. All rights reserved.
 */
package dispatch

import (
	"fmt"
	"sync"
)

// policy names (deploy-time choice, not a per-request parameter)
const (
	PolicyRoundRobin = "roundrobin"
	PolicyMinLatency = "minlatency"
)

const rrCounterWrap = 1_000_000

type (
	// Policy returns one currently-free worker or nil. The free sublist is
	// always materialized in registry order, so tie-breaks are stable.
	Policy interface {
		Name() string
		Select(free []*WorkerRecord) *WorkerRecord
	}

	roundRobin struct {
		mu      sync.Mutex
		counter int
	}

	minLatency struct{}
)

func NewPolicy(name string) (Policy, error) {
	switch name {
	case PolicyRoundRobin, "":
		return &roundRobin{}, nil
	case PolicyMinLatency:
		return minLatency{}, nil
	}
	return nil, fmt.Errorf("unknown selection policy %q", name)
}

func (*roundRobin) Name() string { return PolicyRoundRobin }

func (rr *roundRobin) Select(free []*WorkerRecord) *WorkerRecord {
	if len(free) == 0 {
		return nil
	}
	rr.mu.Lock()
	w := free[rr.counter%len(free)]
	rr.counter++
	if rr.counter > rrCounterWrap {
		rr.counter = 0
	}
	rr.mu.Unlock()
	return w
}

func (minLatency) Name() string { return PolicyMinLatency }

// workers with zero completed tasks take priority over any tested worker;
// ties resolve to the first in registry order
func (minLatency) Select(free []*WorkerRecord) (best *WorkerRecord) {
	for _, w := range free {
		if w.CachedStats.TasksCompleted == 0 {
			return w
		}
		if best == nil || w.CachedStats.AverageProcessingTime < best.CachedStats.AverageProcessingTime {
			best = w
		}
	}
	return
}
