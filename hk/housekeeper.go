// Package hk provides mechanism for registering cleanup
// functions which are invoked at specified intervals.
/*
 * Copyright (c) 2024, ReadySKAHF. All rights reserved.
 */
package hk

import (
	"container/heap"
	"sync"
	"time"

	"github.com/ReadySKAHF/gaussnet/cmn/cos"
	"github.com/ReadySKAHF/gaussnet/cmn/debug"
	"github.com/ReadySKAHF/gaussnet/cmn/mono"
)

const NameSuffix = ".gc" // reg name suffix

const (
	// minimal time to wait before the next firing
	minInterval = 10 * time.Millisecond
	// when no callbacks are registered
	idleInterval = time.Minute
)

type (
	// CleanupFunc is executed at (or after) its interval; the returned duration
	// schedules the next firing
	CleanupFunc func() time.Duration

	request struct {
		f               CleanupFunc
		name            string
		initialInterval time.Duration
		registering     bool
	}

	timedAction struct {
		f          CleanupFunc
		name       string
		updateTime int64 // mono ns
	}
	timedActions []timedAction

	housekeeper struct {
		stopCh  *cos.StopCh
		sigCh   chan request
		actions *timedActions
		timer   *time.Timer
		running sync.WaitGroup
	}
)

var DefaultHK *housekeeper

// interface guard
var _ cos.Runner = (*housekeeper)(nil)

func init() {
	initCleaner()
}

func initCleaner() {
	DefaultHK = &housekeeper{
		stopCh:  cos.NewStopCh(),
		sigCh:   make(chan request),
		actions: &timedActions{},
	}
	DefaultHK.running.Add(1)
	heap.Init(DefaultHK.actions)
}

func TestInit() { initCleaner() }

func WaitStarted() { DefaultHK.running.Wait() }

func Reg(name string, f CleanupFunc, initialInterval ...time.Duration) {
	var interval time.Duration
	if len(initialInterval) > 0 {
		interval = initialInterval[0]
	}
	DefaultHK.sigCh <- request{
		registering:     true,
		name:            name,
		f:               f,
		initialInterval: interval,
	}
}

func Unreg(name string) {
	DefaultHK.sigCh <- request{registering: false, name: name}
}

//
// timedActions min-heap
//

func (tc timedActions) Len() int           { return len(tc) }
func (tc timedActions) Less(i, j int) bool { return tc[i].updateTime < tc[j].updateTime }
func (tc timedActions) Swap(i, j int)      { tc[i], tc[j] = tc[j], tc[i] }
func (tc timedActions) Peek() *timedAction { return &tc[0] }
func (tc *timedActions) Push(x any)        { *tc = append(*tc, x.(timedAction)) }
func (tc *timedActions) Pop() any {
	old := *tc
	n := len(old)
	item := old[n-1]
	*tc = old[0 : n-1]
	return item
}

//
// housekeeper
//

func (hk *housekeeper) Name() string { return "housekeeper" }

func (hk *housekeeper) Run() (err error) {
	hk.timer = time.NewTimer(idleInterval)
	hk.running.Done()
	defer hk.timer.Stop()
	for {
		select {
		case <-hk.stopCh.Listen():
			return
		case <-hk.timer.C:
			// a callback may take a while; the ones behind it fire when it returns
			now := mono.NanoTime()
			for hk.actions.Len() > 0 && hk.actions.Peek().updateTime <= now {
				item := hk.actions.Peek()
				interval := item.f()
				item.updateTime = mono.NanoTime() + interval.Nanoseconds()
				heap.Fix(hk.actions, 0)
			}
			hk.updateTimer()
		case req := <-hk.sigCh:
			if req.registering {
				debug.AssertFunc(func() bool { return hk.byName(req.name) == -1 }, req.name)
				initial := req.initialInterval
				if initial == 0 {
					initial = minInterval
				}
				heap.Push(hk.actions, timedAction{
					name:       req.name,
					f:          req.f,
					updateTime: mono.NanoTime() + initial.Nanoseconds(),
				})
			} else {
				idx := hk.byName(req.name)
				if idx >= 0 {
					heap.Remove(hk.actions, idx)
				} else {
					debug.Assert(false, req.name)
				}
			}
			hk.updateTimer()
		}
	}
}

func (hk *housekeeper) Stop(_ error) { hk.stopCh.Close() }

func (hk *housekeeper) updateTimer() {
	if hk.actions.Len() == 0 {
		hk.timer.Reset(idleInterval)
		return
	}
	d := time.Duration(hk.actions.Peek().updateTime - mono.NanoTime())
	if d < minInterval {
		d = minInterval
	}
	hk.timer.Reset(d)
}

func (hk *housekeeper) byName(name string) int {
	for i, tc := range *hk.actions {
		if tc.name == name {
			return i
		}
	}
	return -1
}
