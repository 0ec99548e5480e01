// Package worker implements the filter-executing node: it dials the master,
// registers, then serves a loop of inbound job frames, replying with the
// processed bytes plus self-statistics.
/*
 * Copyright (c) 2024, ReadySKAHF. All rights reserved.
 */
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/ReadySKAHF/gaussnet/api/wire"
	"github.com/ReadySKAHF/gaussnet/cmn/cos"
	"github.com/ReadySKAHF/gaussnet/cmn/mono"
	"github.com/ReadySKAHF/gaussnet/cmn/nlog"
	"github.com/ReadySKAHF/gaussnet/filter"
	"github.com/ReadySKAHF/gaussnet/hk"
	"github.com/ReadySKAHF/gaussnet/stats"
	"github.com/ReadySKAHF/gaussnet/sys"
	"github.com/ReadySKAHF/gaussnet/transport"
)

const (
	jobBurst      = 16 // transport-layer slack; the master won't dispatch to a busy worker
	selfLogPeriod = time.Minute
	selfLogHKName = "worker-selflog" + hk.NameSuffix
)

type (
	Config struct {
		MasterAddr string
		Port       int // own advertised (listening) port; echoed in every response
		Mode       filter.Mode
	}

	// Worker processes one job at a time; the decode-filter-encode transform
	// runs on a background task so the connection reader is never blocked.
	Worker struct {
		cfg    Config
		rx     *transport.Rx
		conn   *transport.Conn
		statsR *stats.Runner
		ctx    context.Context

		// running statistics, reported to the master after every job
		mu              sync.Mutex
		tasksCompleted  int64
		totalProcessing time.Duration

		jobCh      chan *wire.Msg
		registered bool
	}
)

// interface guard
var _ cos.Runner = (*Worker)(nil)

func New(ctx context.Context, cfg Config) *Worker {
	w := &Worker{
		cfg:   cfg,
		rx:    transport.NewRx(),
		ctx:   ctx,
		jobCh: make(chan *wire.Msg, jobBurst),
	}
	w.statsR = stats.NewRunner("worker", cos.GenDaemonID())
	w.statsR.Reg(stats.TasksCompleted, stats.KindCounter)
	w.statsR.Reg(stats.TaskErrors, stats.KindCounter)
	w.statsR.Reg(stats.TaskLatency, stats.KindLatency)
	return w
}

func (*Worker) Name() string { return "worker" }

// Run dials the master, registers, and serves jobs until cancellation or a
// transport failure on the master connection.
func (w *Worker) Run() error {
	conn, err := transport.Dial(w.ctx, w.cfg.MasterAddr, w.rx)
	if err != nil {
		return err
	}
	w.conn = conn
	if err := conn.Send(wire.NewRegistration(conn.LocalIP(), w.cfg.Port)); err != nil {
		return err
	}
	nlog.Infof("%s: registering with master %s (port=%d, mode=%s, cpus=%d)",
		w.Name(), w.cfg.MasterAddr, w.cfg.Port, w.cfg.Mode, sys.NumCPU())

	w.statsR.Start()
	hk.Reg(selfLogHKName, w.selfLog, selfLogPeriod)
	go w.processLoop()

	for {
		select {
		case <-w.ctx.Done():
			return nil
		case rxm, ok := <-w.rx.MsgCh:
			if !ok {
				return nil
			}
			w.handle(rxm.Msg)
		case ev, ok := <-w.rx.ErrCh:
			if !ok {
				return nil
			}
			// master connection is gone; a reset/EOF is a plain shutdown signal
			if cos.IsEOF(ev.Err) || cos.IsRetriableConnErr(ev.Err) {
				nlog.Warningf("%s: master connection lost: %v", w.Name(), ev.Err)
			}
			return ev.Err
		}
	}
}

func (w *Worker) Stop(err error) {
	hk.Unreg(selfLogHKName)
	w.statsR.Stop()
	if w.conn != nil {
		w.conn.Close()
	}
	nlog.Infof("Stopping %s, err: %v", w.Name(), err)
}

func (w *Worker) handle(msg *wire.Msg) {
	switch msg.Type {
	case wire.Acknowledgment:
		if msg.IsAck() && !w.registered {
			w.registered = true
			nlog.Infof("%s: registration acknowledged", w.Name())
		}
	case wire.ImageRequest:
		// hand off; never filter inline on the reader path
		select {
		case w.jobCh <- msg:
		case <-w.ctx.Done():
		}
	default:
		nlog.Warningf("%s: unexpected %s - discarded", w.Name(), msg)
	}
}

// processLoop serves jobs one at a time, in arrival order.
func (w *Worker) processLoop() {
	for {
		select {
		case <-w.ctx.Done():
			return
		case msg := <-w.jobCh:
			w.process(msg)
		}
	}
}

func (w *Worker) process(msg *wire.Msg) {
	packet, err := msg.Packet()
	if err != nil {
		nlog.Errorln(err)
		return
	}
	started := mono.NanoTime()
	result, _, err := filter.Process(packet.ImageData, w.cfg.Mode, packet.FilterSize)
	if err != nil {
		// no response is sent on a pipeline failure
		w.statsR.Inc(stats.TaskErrors)
		nlog.Errorf("%s: job %q (%s) failed: %v", w.Name(), packet.PacketID, packet.FileName, err)
		return
	}
	elapsed := mono.Since(started)
	w.statsR.Inc(stats.TasksCompleted)
	w.statsR.AddLatency(stats.TaskLatency, elapsed.Nanoseconds())

	st := w.updateStats(elapsed)
	resp := &wire.ImagePacket{
		PacketID:   packet.PacketID,
		FileName:   packet.FileName,
		ImageData:  result,
		Width:      packet.Width,
		Height:     packet.Height,
		Format:     packet.Format,
		FilterSize: packet.FilterSize,
		SlavePort:  w.cfg.Port,
	}
	// statistics first, then the response (the master tolerates either order)
	if err := w.conn.Send(wire.NewStats(st)); err != nil {
		nlog.Errorf("%s: sending statistics failed: %v", w.Name(), err)
	}
	if err := w.conn.Send(wire.NewImageResponse(resp)); err != nil {
		nlog.Errorf("%s: sending response %q failed: %v", w.Name(), packet.PacketID, err)
		return
	}
	nlog.Infof("%s: job %q done in %v", w.Name(), packet.PacketID, elapsed)
}

func (w *Worker) updateStats(elapsed time.Duration) *wire.Stats {
	w.mu.Lock()
	w.tasksCompleted++
	w.totalProcessing += elapsed
	st := &wire.Stats{
		Port:                  w.cfg.Port,
		TasksCompleted:        w.tasksCompleted,
		TotalProcessingTime:   w.totalProcessing.Seconds(),
		AverageProcessingTime: w.totalProcessing.Seconds() / float64(w.tasksCompleted),
	}
	w.mu.Unlock()
	return st
}

// periodic self-statistics, including process resource usage
func (w *Worker) selfLog() time.Duration {
	w.mu.Lock()
	completed, total := w.tasksCompleted, w.totalProcessing
	w.mu.Unlock()
	if completed == 0 {
		return selfLogPeriod
	}
	avg := total / time.Duration(completed)
	if ru, err := sys.GetRUsage(); err == nil {
		nlog.Infof("%s: completed=%d avg=%v maxrss=%dKiB utime=%v",
			w.Name(), completed, avg, ru.MaxRSS, ru.UserTime)
	} else {
		nlog.Infof("%s: completed=%d avg=%v", w.Name(), completed, avg)
	}
	return selfLogPeriod
}
