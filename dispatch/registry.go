// Package dispatch implements the master's core: worker registration and
// selection, busy/free tracking, pending-task queueing, request-to-worker
// correlation, and response routing back to the originating submitter.
/*
 * Copyright (c) 2024, ReadySKAHF. All rights reserved.
 */
package dispatch

import (
	"time"

	"github.com/ReadySKAHF/gaussnet/cmn/cos"
	"github.com/ReadySKAHF/gaussnet/transport"
)

func workerKey(ip string, port int) string { return cos.JoinHostPort(ip, port) }

// registry holds the ordered worker list plus the per-worker connection and
// busy maps. Insertion order determines "Slave #N" numbering and is the
// iteration order for selection policies. Not goroutine-safe: every access
// happens under the master lock, which is what makes (selectWorker, markBusy)
// atomic.
type registry struct {
	ordered []*WorkerRecord
	byKey   map[string]*WorkerRecord
	conns   map[string]*transport.Conn
	busy    map[string]bool
}

func newRegistry() *registry {
	return &registry{
		byKey: make(map[string]*WorkerRecord, 8),
		conns: make(map[string]*transport.Conn, 8),
		busy:  make(map[string]bool, 8),
	}
}

func (reg *registry) len() int { return len(reg.ordered) }

// add appends a new record unless (ip, port) is already registered, in which
// case registration is idempotent and the existing record is returned.
func (reg *registry) add(ip string, port int, conn *transport.Conn) (w *WorkerRecord, existed bool) {
	key := workerKey(ip, port)
	if w, existed = reg.byKey[key]; existed {
		reg.conns[key] = conn // reconnecting worker: refresh the live handle
		return
	}
	w = &WorkerRecord{
		ID:      cos.HashWorkerKey(key),
		IP:      ip,
		Port:    port,
		RegTime: time.Now(),
	}
	reg.ordered = append(reg.ordered, w)
	reg.byKey[key] = w
	reg.conns[key] = conn
	reg.busy[key] = false
	return
}

func (reg *registry) get(ip string, port int) *WorkerRecord { return reg.byKey[workerKey(ip, port)] }

func (reg *registry) conn(w *WorkerRecord) *transport.Conn { return reg.conns[w.Key()] }

func (reg *registry) isBusy(w *WorkerRecord) bool { return reg.busy[w.Key()] }

func (reg *registry) setBusy(w *WorkerRecord, b bool) { reg.busy[w.Key()] = b }

func (reg *registry) numBusy() (n int) {
	for _, b := range reg.busy {
		if b {
			n++
		}
	}
	return
}

// free materializes the sublist of selectable workers in registry order:
// not busy, with a live connection to deliver jobs on.
func (reg *registry) free() (free []*WorkerRecord) {
	for _, w := range reg.ordered {
		key := w.Key()
		if reg.busy[key] {
			continue
		}
		if c, ok := reg.conns[key]; !ok || c == nil || !c.Connected() {
			continue
		}
		free = append(free, w)
	}
	return
}

// byConn resolves the worker a (failed or closed) connection belongs to.
func (reg *registry) byConn(conn *transport.Conn) *WorkerRecord {
	for key, c := range reg.conns {
		if c == conn {
			return reg.byKey[key]
		}
	}
	return nil
}

func (reg *registry) dropConn(w *WorkerRecord) { delete(reg.conns, w.Key()) }

// number reports the 1-based "Slave #N" display numbering.
func (reg *registry) number(w *WorkerRecord) int {
	for i, o := range reg.ordered {
		if o == w {
			return i + 1
		}
	}
	return 0
}
