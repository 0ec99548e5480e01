// Package stats provides methods and functionality to register, track, log,
// and Prometheus-export statistics that, for the most part, include "counter"
// and "latency" kinds.
/*
 * Copyright (c) 2024, ReadySKAHF. All rights reserved.
 */
package stats

// enum: `statsValue` kinds
const (
	// lockless
	KindCounter = "counter"
	KindGauge   = "gauge"
	KindLatency = "latency"
)

// master metric names
const (
	JobsReceived  = "jobs.received.n"
	JobsCompleted = "jobs.completed.n"
	JobsDropped   = "jobs.dropped.n"
	JobsLost      = "jobs.lost.n"
	JobsOrphaned  = "jobs.orphaned.n"
	JobsDuplicate = "jobs.duplicate.n"
	JobsQueued    = "jobs.queued.n"
	QueueDepth    = "queue.depth"
	WorkersTotal  = "workers.total"
	WorkersBusy   = "workers.busy"
	JobLatency    = "job.latency.ns"
)

// worker metric names
const (
	TasksCompleted = "tasks.completed.n"
	TaskErrors     = "tasks.err.n"
	TaskLatency    = "task.latency.ns"
)

type (
	Tracker interface {
		Inc(name string)
		Add(name string, val int64)
		Set(name string, val int64)
		AddLatency(name string, nanos int64)
		Get(name string) int64
	}
)
