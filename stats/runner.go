// Package stats provides methods and functionality to register, track, log,
// and Prometheus-export statistics that, for the most part, include "counter"
// and "latency" kinds.
/*
 * Copyright (c) 2024, ReadySKAHF. All rights reserved.
 */
package stats

import (
	"strconv"
	"strings"
	ratomic "sync/atomic"
	"time"

	"github.com/ReadySKAHF/gaussnet/cmn/debug"
	"github.com/ReadySKAHF/gaussnet/cmn/nlog"
	"github.com/ReadySKAHF/gaussnet/hk"
	"github.com/prometheus/client_golang/prometheus"
)

const promNamespace = "gaussnet"

const logInterval = 30 * time.Second

type (
	// tracked via a map of stats names (key) and statsValue (values)
	statsValue struct {
		promCounter prometheus.Counter
		promGauge   prometheus.Gauge
		promHist    prometheus.Histogram
		Value       int64 `json:"v,string"`
		numSamples  int64 // average latency over the log interval
		prev        int64 // last logged value (counters)
		kind        string
	}

	// Runner tracks a node's runtime metrics, mirrors them into Prometheus,
	// and logs a one-line snapshot at every interval (when not idle).
	Runner struct {
		tracker map[string]*statsValue
		role    string
		id      string
		hkName  string
	}
)

// interface guard
var _ Tracker = (*Runner)(nil)

func NewRunner(role, id string) *Runner {
	return &Runner{
		tracker: make(map[string]*statsValue, 16),
		role:    role,
		id:      id,
		hkName:  "stats." + role + hk.NameSuffix,
	}
}

// Reg registers a named metric; all registrations happen at startup, before
// any Add/Inc (the tracker map is read-only afterwards).
func (r *Runner) Reg(name, kind string) {
	debug.Assert(kind == KindCounter || kind == KindGauge || kind == KindLatency, kind)
	v := &statsValue{kind: kind}
	promName := strings.NewReplacer(".", "_", ":", "_").Replace(strings.TrimSuffix(name, ".n"))
	constLabels := prometheus.Labels{"role": r.role, "id": r.id}
	switch kind {
	case KindCounter:
		v.promCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: promNamespace, Name: promName + "_total", ConstLabels: constLabels,
		})
		prometheus.MustRegister(v.promCounter)
	case KindGauge:
		v.promGauge = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: promNamespace, Name: promName, ConstLabels: constLabels,
		})
		prometheus.MustRegister(v.promGauge)
	case KindLatency:
		promName = strings.TrimSuffix(promName, "_ns") + "_seconds"
		v.promHist = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: promNamespace, Name: promName, ConstLabels: constLabels,
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		})
		prometheus.MustRegister(v.promHist)
	}
	r.tracker[name] = v
}

// Start registers the periodic snapshot logger with the housekeeper.
func (r *Runner) Start() {
	hk.Reg(r.hkName, r.housekeep, logInterval)
}

func (r *Runner) Stop() { hk.Unreg(r.hkName) }

func (r *Runner) Inc(name string) { r.Add(name, 1) }

func (r *Runner) Add(name string, val int64) {
	v, ok := r.tracker[name]
	debug.Assertf(ok, "invalid metric name %q", name)
	if !ok {
		return
	}
	ratomic.AddInt64(&v.Value, val)
	if v.promCounter != nil {
		v.promCounter.Add(float64(val))
	}
}

func (r *Runner) Set(name string, val int64) {
	v, ok := r.tracker[name]
	debug.Assertf(ok, "invalid metric name %q", name)
	if !ok {
		return
	}
	ratomic.StoreInt64(&v.Value, val)
	if v.promGauge != nil {
		v.promGauge.Set(float64(val))
	}
}

func (r *Runner) AddLatency(name string, nanos int64) {
	v, ok := r.tracker[name]
	debug.Assertf(ok, "invalid metric name %q", name)
	if !ok {
		return
	}
	ratomic.AddInt64(&v.Value, nanos)
	ratomic.AddInt64(&v.numSamples, 1)
	if v.promHist != nil {
		v.promHist.Observe(float64(nanos) / float64(time.Second))
	}
}

func (r *Runner) Get(name string) int64 {
	v, ok := r.tracker[name]
	if !ok {
		return 0
	}
	return ratomic.LoadInt64(&v.Value)
}

// one-line snapshot; latency values are averaged over the elapsed interval
// and reset, counters and gauges are cumulative
func (r *Runner) housekeep() time.Duration {
	var (
		sb   strings.Builder
		idle = true
	)
	for name, v := range r.tracker {
		switch v.kind {
		case KindLatency:
			num := ratomic.SwapInt64(&v.numSamples, 0)
			if num == 0 {
				continue
			}
			lat := time.Duration(ratomic.SwapInt64(&v.Value, 0) / num)
			sb.WriteString(name + "=" + lat.String() + " ")
			idle = false
		default:
			val := ratomic.LoadInt64(&v.Value)
			if val == 0 {
				continue
			}
			sb.WriteString(name + "=" + strconv.FormatInt(val, 10) + " ")
			if v.kind == KindCounter && val != ratomic.SwapInt64(&v.prev, val) {
				idle = false
			}
		}
	}
	if !idle {
		nlog.Infof("%s[%s]: %s", r.role, r.id, strings.TrimSpace(sb.String()))
	}
	return logInterval
}
