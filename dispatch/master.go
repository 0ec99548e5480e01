// Package dispatch implements the master's core: worker registration and
// selection, busy/free tracking, pending-task queueing, request-to-worker
// correlation, and response routing back to the originating submitter.
/*
 * Copyright (c) 2024, ReadySKAHF. All rights reserved.
 */
package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/ReadySKAHF/gaussnet/api/wire"
	"github.com/ReadySKAHF/gaussnet/cmn/cos"
	"github.com/ReadySKAHF/gaussnet/cmn/debug"
	"github.com/ReadySKAHF/gaussnet/cmn/mono"
	"github.com/ReadySKAHF/gaussnet/cmn/nlog"
	"github.com/ReadySKAHF/gaussnet/hk"
	"github.com/ReadySKAHF/gaussnet/stats"
	"github.com/ReadySKAHF/gaussnet/transport"
	cuckoo "github.com/seiflotfy/cuckoofilter"
)

const (
	orphanHorizon = 15 * time.Minute // pending entries older than this are swept
	orphanHKName  = "orphan-sweep" + hk.NameSuffix

	seenCapacity = 1 << 20 // cuckoo filter sizing (packetIds ever observed)
)

type (
	Config struct {
		Port          int
		Policy        string
		AdminPort     int // 0 disables the admin endpoint
		OrphanHorizon time.Duration
	}

	// Master routes every ImageRequest to exactly one worker, enforces
	// at-most-one-in-flight per worker, and delivers every ImageResponse to
	// exactly the submitter that originated its packetId.
	Master struct {
		cfg    Config
		ctx    context.Context
		rx     *transport.Rx
		srv    *transport.Server
		policy Policy
		statsR *stats.Runner

		// a single coarse critical section guards worker selection, busy-flag
		// transitions, the pending map, the queue, and the counters - so that
		// (selectWorker, markBusy) is atomic and no two concurrent requests
		// can pick the same free worker
		mu        sync.Mutex
		reg       *registry
		pending   map[string]*PendingRequest
		queue     []*PendingTask
		seen      *cuckoo.Filter
		received  int64
		completed int64
		firstJob  time.Time
		lastEvent time.Time

		admin *adminServer
	}
)

// interface guard
var _ cos.Runner = (*Master)(nil)

func NewMaster(ctx context.Context, cfg Config) (*Master, error) {
	if cfg.OrphanHorizon == 0 {
		cfg.OrphanHorizon = orphanHorizon
	}
	policy, err := NewPolicy(cfg.Policy)
	if err != nil {
		return nil, err
	}
	rx := transport.NewRx()
	srv, err := transport.NewServer(ctx, cfg.Port, rx)
	if err != nil {
		return nil, err
	}
	m := &Master{
		cfg:     cfg,
		ctx:     ctx,
		rx:      rx,
		srv:     srv,
		policy:  policy,
		reg:     newRegistry(),
		pending: make(map[string]*PendingRequest, 64),
		seen:    cuckoo.NewFilter(seenCapacity),
	}
	m.statsR = stats.NewRunner("master", cos.GenDaemonID())
	for _, name := range []string{
		stats.JobsReceived, stats.JobsCompleted, stats.JobsDropped, stats.JobsLost,
		stats.JobsOrphaned, stats.JobsDuplicate, stats.JobsQueued,
	} {
		m.statsR.Reg(name, stats.KindCounter)
	}
	for _, name := range []string{stats.QueueDepth, stats.WorkersTotal, stats.WorkersBusy} {
		m.statsR.Reg(name, stats.KindGauge)
	}
	m.statsR.Reg(stats.JobLatency, stats.KindLatency)
	if cfg.AdminPort > 0 {
		m.admin = newAdminServer(m, cfg.AdminPort)
	}
	return m, nil
}

func (m *Master) Name() string { return "master" }
func (m *Master) Port() int    { return m.srv.Port() }

// Snapshot reports the dispatch counters (admin endpoint, tests).
func (m *Master) Snapshot() (received, completed int64, queued, workers int) {
	m.mu.Lock()
	received, completed, queued, workers = m.received, m.completed, len(m.queue), m.reg.len()
	m.mu.Unlock()
	return
}

// NumBusy reports the number of busy workers.
func (m *Master) NumBusy() int {
	m.mu.Lock()
	n := m.reg.numBusy()
	m.mu.Unlock()
	return n
}

// Run starts the accept loop and consumes transport events until Stop. The
// dispatcher owns its loop: the transport publishes (message, connection)
// pairs into a bounded channel, and no callbacks are registered with the
// transport.
func (m *Master) Run() error {
	go m.srv.Run()
	m.statsR.Start()
	hk.Reg(orphanHKName, m.sweepOrphans, m.cfg.OrphanHorizon)
	if m.admin != nil {
		go m.admin.run()
	}
	nlog.Infof("%s: dispatching with policy %q", m.Name(), m.policy.Name())
	for {
		select {
		case <-m.ctx.Done():
			return nil
		case rxm, ok := <-m.rx.MsgCh:
			if !ok {
				return nil
			}
			m.dispatch(rxm.Msg, rxm.Conn)
		case ev, ok := <-m.rx.ErrCh:
			if !ok {
				return nil
			}
			m.handleConnError(ev)
		}
	}
}

func (m *Master) Stop(err error) {
	hk.Unreg(orphanHKName)
	m.statsR.Stop()
	if m.admin != nil {
		m.admin.stop()
	}
	m.srv.Stop(err)
}

func (m *Master) dispatch(msg *wire.Msg, conn *transport.Conn) {
	switch msg.Type {
	case wire.SlaveRegister:
		m.registerWorker(msg, conn)
	case wire.ImageRequest:
		m.acceptJob(msg, conn)
	case wire.ImageResponse:
		m.handleResult(msg)
	case wire.SlaveStatistics:
		m.handleStats(msg)
	case wire.Acknowledgment:
		// not expected inbound; harmless
		nlog.Warningf("%s: unexpected %s from %s", m.Name(), msg, conn)
	default:
		nlog.Errorf("%s: unknown message type in %s from %s - discarded", m.Name(), msg, conn)
	}
}

// registerWorker is idempotent per (ip, port). A new worker gets a freshly
// minted identifier, an Acknowledgment on the same connection, and the queue
// is drained against the added capacity.
func (m *Master) registerWorker(msg *wire.Msg, conn *transport.Conn) {
	reg, err := msg.Registration()
	if err != nil {
		nlog.Errorln(err)
		return
	}
	m.mu.Lock()
	w, existed := m.reg.add(reg.IPAddress, reg.Port, conn)
	if !existed {
		m.statsR.Set(stats.WorkersTotal, int64(m.reg.len()))
		nlog.Infof("%s: Slave #%d registered: %s (id=%s)", m.Name(), m.reg.number(w), w.Key(), w.ID)
	}
	m.mu.Unlock()

	if err := conn.Send(wire.NewAck()); err != nil {
		nlog.Errorf("%s: ack to %s failed: %v", m.Name(), w.Key(), err)
	}
	m.drainQueue()
}

// acceptJob records the originating submitter, then either assigns the job to
// a free worker or enqueues it FIFO. With an empty registry the job is dropped
// with a warning (no queueing before the first worker joins).
func (m *Master) acceptJob(msg *wire.Msg, conn *transport.Conn) {
	packet, err := msg.Packet()
	if err != nil {
		nlog.Errorln(err)
		return
	}
	m.mu.Lock()
	if m.reg.len() == 0 {
		m.mu.Unlock()
		m.statsR.Inc(stats.JobsDropped)
		nlog.Warningf("%s: no workers registered - dropping job %q (%s)", m.Name(), packet.PacketID, packet.FileName)
		return
	}
	if !m.seen.InsertUnique([]byte(packet.PacketID)) {
		m.statsR.Inc(stats.JobsDuplicate)
		nlog.Warningf("%s: duplicate packetId %q - accepting anyway", m.Name(), packet.PacketID)
	}
	m.received++
	m.statsR.Inc(stats.JobsReceived)
	if m.received == 1 || m.firstJob.IsZero() {
		m.firstJob = time.Now()
	}
	preq := &PendingRequest{
		Conn:      conn,
		SenderIP:  msg.SenderIP,
		FileName:  packet.FileName,
		CreatedAt: mono.NanoTime(),
	}
	m.pending[packet.PacketID] = preq
	task := &PendingTask{PacketID: packet.PacketID, Data: msg.Data, Preq: preq}

	if w := m.selectWorker(); w != nil {
		m.assign(task, w)
		m.mu.Unlock()
		return
	}
	m.queue = append(m.queue, task)
	m.statsR.Inc(stats.JobsQueued)
	m.statsR.Set(stats.QueueDepth, int64(len(m.queue)))
	m.mu.Unlock()
}

// selectWorker returns one currently-free worker or nil; must be called under
// the master lock (the busy-flag transition that follows is part of the same
// critical section).
func (m *Master) selectWorker() *WorkerRecord {
	debug.AssertMutexLocked(&m.mu)
	return m.policy.Select(m.reg.free())
}

// assign marks the worker busy, stamps the dispatch time (the t0 for per-job
// latency), and forwards the original payload. A failed send reverts the busy
// flag; the task is not re-enqueued - it is lost and counted.
// Called under the master lock.
func (m *Master) assign(task *PendingTask, w *WorkerRecord) {
	debug.AssertMutexLocked(&m.mu)
	m.reg.setBusy(w, true)
	m.statsR.Set(stats.WorkersBusy, int64(m.reg.numBusy()))
	task.Preq.DispatchedAt = mono.NanoTime()
	conn := m.reg.conn(w)
	req := wire.NewMsg(wire.ImageRequest, task.Data)
	if err := conn.Send(req); err != nil {
		m.reg.setBusy(w, false)
		m.statsR.Set(stats.WorkersBusy, int64(m.reg.numBusy()))
		m.statsR.Inc(stats.JobsLost)
		// the pending entry remains and falls to the orphan sweep
		nlog.Errorf("%s: send to Slave #%d (%s) failed: %v - job %q lost",
			m.Name(), m.reg.number(w), w.Key(), err, task.PacketID)
		return
	}
	nlog.Infof("%s: job %q => Slave #%d (%s)", m.Name(), task.PacketID, m.reg.number(w), w.Key())
}

// handleResult frees the responsible worker, forwards the response verbatim to
// the originating submitter, and drains the queue against the freed capacity.
func (m *Master) handleResult(msg *wire.Msg) {
	packet, err := msg.Packet()
	if err != nil {
		nlog.Errorln(err)
		return
	}
	m.mu.Lock()
	m.completed++
	m.statsR.Inc(stats.JobsCompleted)
	m.lastEvent = time.Now()

	preq, ok := m.pending[packet.PacketID]
	if !ok {
		m.mu.Unlock()
		// do NOT free any worker here: the busy flag would be unowned
		nlog.Warningf("%s: unknown packetId %q on response - discarded", m.Name(), packet.PacketID)
		return
	}
	delete(m.pending, packet.PacketID)

	// the responsible worker: slavePort as echoed by the worker, ip as observed
	// on the worker connection
	if w := m.reg.get(msg.SenderIP, packet.SlavePort); w != nil {
		m.reg.setBusy(w, false)
		w.completed++
		m.statsR.Set(stats.WorkersBusy, int64(m.reg.numBusy()))
	} else {
		nlog.Warningf("%s: response %q from unregistered worker %s:%d",
			m.Name(), packet.PacketID, msg.SenderIP, packet.SlavePort)
	}
	if preq.DispatchedAt != 0 {
		m.statsR.AddLatency(stats.JobLatency, mono.SinceNano(preq.DispatchedAt))
	}
	final := m.completed == m.received && m.received > 0
	m.mu.Unlock()

	if preq.Conn != nil && preq.Conn.Connected() {
		if err := preq.Conn.Send(wire.NewMsg(wire.ImageResponse, msg.Data)); err != nil {
			nlog.Errorf("%s: forwarding %q to submitter failed: %v", m.Name(), packet.PacketID, err)
		}
	} else {
		// submitter is gone; the worker is still freed
		nlog.Warningf("%s: submitter disconnected - dropping response %q", m.Name(), packet.PacketID)
	}
	if final {
		m.logSummary()
	}
	m.drainQueue()
}

// handleStats caches worker-reported statistics (used by the min-latency policy).
func (m *Master) handleStats(msg *wire.Msg) {
	st, err := msg.Stats()
	if err != nil {
		nlog.Errorln(err)
		return
	}
	m.mu.Lock()
	if w := m.reg.get(msg.SenderIP, st.Port); w != nil {
		w.CachedStats = *st
	}
	m.mu.Unlock()
}

// drainQueue dispatches queued tasks while free capacity lasts; called after
// every event that may free a worker (registration, result handling).
func (m *Master) drainQueue() {
	m.mu.Lock()
	for len(m.queue) > 0 {
		w := m.selectWorker()
		if w == nil {
			break
		}
		task := m.queue[0]
		m.queue = m.queue[1:]
		m.assign(task, w)
	}
	m.statsR.Set(stats.QueueDepth, int64(len(m.queue)))
	m.mu.Unlock()
}

// handleConnError reacts to a terminated reader. For a worker connection the
// busy flag is reverted so capacity accounting stays truthful; the record
// itself remains (no deregistration). In-flight jobs fall to the orphan sweep.
func (m *Master) handleConnError(ev transport.ErrEvent) {
	m.mu.Lock()
	w := m.reg.byConn(ev.Conn)
	if w != nil {
		m.reg.dropConn(w)
		m.reg.setBusy(w, false)
		m.statsR.Set(stats.WorkersBusy, int64(m.reg.numBusy()))
		if cos.IsEOF(ev.Err) || cos.IsRetriableConnErr(ev.Err) {
			nlog.Warningf("%s: Slave #%d (%s) disconnected: %v", m.Name(), m.reg.number(w), w.Key(), ev.Err)
		} else {
			nlog.Errorf("%s: Slave #%d (%s) connection failed: %v", m.Name(), m.reg.number(w), w.Key(), ev.Err)
		}
	}
	m.mu.Unlock()
	if w == nil && !cos.IsEOF(ev.Err) && !cos.IsRetriableConnErr(ev.Err) {
		nlog.Warningf("%s: %s reader terminated: %v", m.Name(), ev.Conn, ev.Err)
	}
}

// sweepOrphans removes pending entries whose job was dispatched (or accepted)
// too long ago with no response in sight. The owning worker's busy flag is not
// touched - it is owned by result handling.
func (m *Master) sweepOrphans() time.Duration {
	var swept int
	horizon := m.cfg.OrphanHorizon.Nanoseconds()
	now := mono.NanoTime()
	m.mu.Lock()
	for packetID, preq := range m.pending {
		t0 := preq.DispatchedAt
		if t0 == 0 {
			t0 = preq.CreatedAt
		}
		if now-t0 > horizon {
			delete(m.pending, packetID)
			swept++
		}
	}
	m.mu.Unlock()
	if swept > 0 {
		m.statsR.Add(stats.JobsOrphaned, int64(swept))
		nlog.Warningf("%s: swept %d orphaned request%s", m.Name(), swept, cos.Plural(swept))
	}
	return m.cfg.OrphanHorizon
}

// logSummary emits the end-to-end statistics once all received jobs have
// completed; a subsequent new job reopens the cycle.
func (m *Master) logSummary() {
	m.mu.Lock()
	var (
		total    = m.completed
		span     = m.lastEvent.Sub(m.firstJob)
		minShare = int64(-1)
		maxShare int64
	)
	nlog.Infof("%s: all %d job%s completed in %v", m.Name(), total, cos.Plural(int(total)), span)
	for i, w := range m.reg.ordered {
		share := w.completed
		if share < minShare || minShare < 0 {
			minShare = share
		}
		if share > maxShare {
			maxShare = share
		}
		pct := float64(0)
		if total > 0 {
			pct = float64(share) * 100 / float64(total)
		}
		nlog.Infof("  Slave #%d (%s): %d job%s (%.1f%%), avg %.3fs",
			i+1, w.Key(), share, cos.Plural(int(share)), pct, w.CachedStats.AverageProcessingTime)
	}
	if m.reg.len() > 0 && minShare >= 0 {
		nlog.Infof("  balancing deviation: %d", maxShare-minShare)
	}
	m.mu.Unlock()
}
