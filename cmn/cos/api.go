// Package cos provides common low-level types and utilities for gaussnet nodes
/*
 * Copyright (c) 2024, ReadySKAHF. All rights reserved.
 */
package cos

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/ReadySKAHF/gaussnet/cmn/debug"
	jsoniter "github.com/json-iterator/go"
)

type (
	// usage: nonblocking close of a control channel (see hk)
	StopCh struct {
		ch   chan struct{}
		once sync.Once
	}
	// long-lived goroutine with a name (master, worker, transport server, housekeeper)
	Runner interface {
		Name() string
		Run() error
		Stop(err error)
	}
)

func NewStopCh() *StopCh { return &StopCh{ch: make(chan struct{})} }

func (s *StopCh) Listen() <-chan struct{} { return s.ch }
func (s *StopCh) Close()                  { s.once.Do(func() { close(s.ch) }) }

func Plural(num int) (s string) {
	if num != 1 {
		s = "s"
	}
	return
}

//
// JSON (jsoniter, compatible config)
//

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

func JSON() jsoniter.API { return jsonAPI }

func MustMarshal(v any) []byte {
	b, err := jsonAPI.Marshal(v)
	if err != nil {
		debug.AssertNoErr(err)
		panic(err)
	}
	return b
}

func MorphUnmarshal(data []byte, v any) error { return jsonAPI.Unmarshal(data, v) }

//
// host:port
//

func JoinHostPort(host string, port int) string { return host + ":" + strconv.Itoa(port) }

func ParsePort(s string) (int, error) {
	port, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	return ValidatePort(port)
}

func ValidatePort(port int) (int, error) {
	if port <= 0 || port >= (1<<16) {
		return 0, fmt.Errorf("port %d outside the valid range (0, 65536)", port)
	}
	return port, nil
}
