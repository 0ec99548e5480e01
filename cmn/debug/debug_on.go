//go:build debug

// Package debug provides assertions and verbose tracing that compile away in production builds
/*
 * Copyright (c) 2024, ReadySKAHF. All rights reserved.
 */
package debug

import (
	"fmt"
	"os"
	"reflect"
	"sync"
	"unsafe"
)

func ON() bool { return true }

func Infof(format string, a ...any) {
	fmt.Fprintf(os.Stderr, "[DEBUG] "+format+"\n", a...)
}

func Func(f func()) { f() }

func Assert(cond bool, a ...any) {
	if !cond {
		if len(a) > 0 {
			panic("assertion failed: " + fmt.Sprint(a...))
		}
		panic("assertion failed")
	}
}

func AssertFunc(f func() bool, a ...any) { Assert(f(), a...) }

func AssertNoErr(err error) {
	if err != nil {
		panic(err)
	}
}

func Assertf(cond bool, format string, a ...any) {
	if !cond {
		panic("assertion failed: " + fmt.Sprintf(format, a...))
	}
}

// via unexported state field - locked mutex has the lowest state bit set
func AssertMutexLocked(m *sync.Mutex) {
	state := reflect.ValueOf(m).Elem().FieldByName("state")
	Assert(*(*int32)(unsafe.Pointer(state.UnsafeAddr()))&1 == 1, "Mutex not locked")
}
