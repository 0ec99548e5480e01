// Package dispatch implements the master's core: worker registration and
// selection, busy/free tracking, pending-task queueing, request-to-worker
// correlation, and response routing back to the originating submitter.
/*
 * Copyright (c) 2024, ReadySKAHF. All rights reserved.
 */
package dispatch

import (
	"time"

	"github.com/ReadySKAHF/gaussnet/api/wire"
	"github.com/ReadySKAHF/gaussnet/transport"
)

type (
	// WorkerRecord lives from registration until process exit; there is no
	// deregistration. The busy flag is owned by the dispatcher (see registry).
	WorkerRecord struct {
		ID          string // stable identifier, minted at registration
		IP          string
		Port        int
		RegTime     time.Time
		CachedStats wire.Stats // worker-reported, updated on every SlaveStatistics
		completed   int64      // master-side count, for the final summary
	}

	// PendingRequest correlates an in-flight job with its originating
	// submitter; keyed by packetId, created and removed under the master lock.
	PendingRequest struct {
		Conn         *transport.Conn // submitter connection (a reference, never a copy)
		SenderIP     string
		FileName     string
		CreatedAt    int64 // mono ns
		DispatchedAt int64 // mono ns; zero until assigned (t0 for per-job latency)
	}

	// PendingTask exists only when all workers were busy at request time;
	// dequeued FIFO when any worker frees.
	PendingTask struct {
		PacketID string
		Data     []byte // the original unmodified request payload
		Preq     *PendingRequest
	}
)

func (w *WorkerRecord) Key() string { return workerKey(w.IP, w.Port) }
