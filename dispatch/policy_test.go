// Package dispatch implements the master's core.
/*
 * Copyright (c) 2024, ReadySKAHF. All rights reserved.
 */
package dispatch

import (
	"testing"

	"github.com/ReadySKAHF/gaussnet/api/wire"
	"github.com/ReadySKAHF/gaussnet/tools/tassert"
)

func mkWorkers(n int) []*WorkerRecord {
	workers := make([]*WorkerRecord, n)
	for i := range workers {
		workers[i] = &WorkerRecord{IP: "127.0.0.1", Port: 9100 + i}
	}
	return workers
}

// N workers all free, 10*N sequential requests: exactly 10 per worker
func TestRoundRobinEvenDistribution(t *testing.T) {
	const n = 3
	var (
		workers = mkWorkers(n)
		policy  = &roundRobin{}
		counts  = make(map[*WorkerRecord]int, n)
	)
	for i := 0; i < 10*n; i++ {
		w := policy.Select(workers)
		tassert.Fatalf(t, w != nil, "no worker selected")
		counts[w]++
	}
	for i, w := range workers {
		tassert.Errorf(t, counts[w] == 10, "worker #%d got %d requests, want 10", i+1, counts[w])
	}
}

func TestRoundRobinSequence(t *testing.T) {
	var (
		workers = mkWorkers(2)
		policy  = &roundRobin{}
	)
	// even index (0-based counter starting at 0) to the first worker
	for i := 0; i < 6; i++ {
		w := policy.Select(workers)
		want := workers[i%2]
		tassert.Errorf(t, w == want, "request %d: selected %v, want %v", i, w.Port, want.Port)
	}
}

func TestRoundRobinEmpty(t *testing.T) {
	policy := &roundRobin{}
	tassert.Errorf(t, policy.Select(nil) == nil, "selected a worker from an empty free list")
}

func TestRoundRobinCounterWrap(t *testing.T) {
	var (
		workers = mkWorkers(3)
		policy  = &roundRobin{counter: rrCounterWrap}
	)
	policy.Select(workers) // counter exceeds the wrap threshold here
	w := policy.Select(workers)
	tassert.Errorf(t, w == workers[0], "after the wrap, selection must restart at the first free worker")
}

// zero-task workers take priority; afterwards the smallest average wins
func TestMinLatencySelection(t *testing.T) {
	var (
		workers = mkWorkers(3)
		policy  = minLatency{}
	)
	workers[0].CachedStats = wire.Stats{TasksCompleted: 1, AverageProcessingTime: 5.0}
	workers[1].CachedStats = wire.Stats{TasksCompleted: 1, AverageProcessingTime: 2.0}
	// workers[2]: zero completed tasks

	w := policy.Select(workers)
	tassert.Errorf(t, w == workers[2], "zero-task worker must be selected first, got port %d", w.Port)

	workers[2].CachedStats = wire.Stats{TasksCompleted: 1, AverageProcessingTime: 4.0}
	w = policy.Select(workers)
	tassert.Errorf(t, w == workers[1], "smallest average must win, got port %d", w.Port)
}

func TestMinLatencyTieBreak(t *testing.T) {
	var (
		workers = mkWorkers(2)
		policy  = minLatency{}
	)
	workers[0].CachedStats = wire.Stats{TasksCompleted: 1, AverageProcessingTime: 3.0}
	workers[1].CachedStats = wire.Stats{TasksCompleted: 1, AverageProcessingTime: 3.0}
	w := policy.Select(workers)
	tassert.Errorf(t, w == workers[0], "ties must resolve to the first in registry order")
}

func TestPolicyNames(t *testing.T) {
	for _, name := range []string{PolicyRoundRobin, PolicyMinLatency, ""} {
		_, err := NewPolicy(name)
		tassert.CheckFatal(t, err)
	}
	_, err := NewPolicy("bogus")
	tassert.Errorf(t, err != nil, "expected an error for an unknown policy")
}
