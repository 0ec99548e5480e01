// Package dispatch implements the master's core: worker registration and
// selection, busy/free tracking, pending-task queueing, request-to-worker
// correlation, and response routing back to the originating submitter.
/*
 * Copyright (c) 2024, ReadySKAHF. All rights reserved.
 */
package dispatch

import (
	"net/http"
	"time"

	"github.com/ReadySKAHF/gaussnet/cmn/cos"
	"github.com/ReadySKAHF/gaussnet/cmn/nlog"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

type (
	adminServer struct {
		m         *Master
		srv       *fasthttp.Server
		port      int
		startedAt time.Time
		metricsH  fasthttp.RequestHandler
	}

	workerInfo struct {
		ID        string    `json:"id"`
		Address   string    `json:"address"`
		Number    int       `json:"number"`
		Busy      bool      `json:"busy"`
		Connected bool      `json:"connected"`
		RegTime   time.Time `json:"reg_time"`
		Completed int64     `json:"completed"`
		AvgTime   float64   `json:"avg_processing_time"`
	}

	healthInfo struct {
		State     string `json:"state"`
		UptimeSec int64  `json:"uptime_sec"`
		Workers   int    `json:"workers"`
		Received  int64  `json:"received"`
		Completed int64  `json:"completed"`
		Queued    int    `json:"queued"`
	}
)

// read-only observability; never on the dispatch hot path
func newAdminServer(m *Master, port int) *adminServer {
	a := &adminServer{
		m:         m,
		port:      port,
		startedAt: time.Now(),
		metricsH:  fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler()),
	}
	a.srv = &fasthttp.Server{Handler: a.handle, Name: "gaussnet-admin"}
	return a
}

func (a *adminServer) run() {
	addr := cos.JoinHostPort("", a.port)
	nlog.Infof("admin: listening on %s", addr)
	if err := a.srv.ListenAndServe(addr); err != nil {
		nlog.Errorf("admin: %v", err)
	}
}

func (a *adminServer) stop() { a.srv.Shutdown() }

func (a *adminServer) handle(ctx *fasthttp.RequestCtx) {
	switch string(ctx.Path()) {
	case "/health":
		a.health(ctx)
	case "/v1/workers":
		a.workers(ctx)
	case "/metrics":
		a.metricsH(ctx)
	default:
		ctx.Error("not found", http.StatusNotFound)
	}
}

func (a *adminServer) health(ctx *fasthttp.RequestCtx) {
	received, completed, queued, workers := a.m.Snapshot()
	a.writeJSON(ctx, healthInfo{
		State:     "ok",
		UptimeSec: int64(time.Since(a.startedAt).Seconds()),
		Workers:   workers,
		Received:  received,
		Completed: completed,
		Queued:    queued,
	})
}

func (a *adminServer) workers(ctx *fasthttp.RequestCtx) {
	m := a.m
	m.mu.Lock()
	infos := make([]workerInfo, 0, m.reg.len())
	for i, w := range m.reg.ordered {
		c := m.reg.conn(w)
		infos = append(infos, workerInfo{
			ID:        w.ID,
			Address:   w.Key(),
			Number:    i + 1,
			Busy:      m.reg.isBusy(w),
			Connected: c != nil && c.Connected(),
			RegTime:   w.RegTime,
			Completed: w.completed,
			AvgTime:   w.CachedStats.AverageProcessingTime,
		})
	}
	m.mu.Unlock()
	a.writeJSON(ctx, infos)
}

func (*adminServer) writeJSON(ctx *fasthttp.RequestCtx, v any) {
	b, err := cos.JSON().Marshal(v)
	if err != nil {
		ctx.Error(err.Error(), http.StatusInternalServerError)
		return
	}
	ctx.SetContentType("application/json")
	ctx.SetBody(b)
}
