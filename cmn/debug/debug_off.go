//go:build !debug

// Package debug provides assertions and verbose tracing that compile away in production builds
/*
 * Copyright (c) 2024, ReadySKAHF. All rights reserved.
 */
package debug

import "sync"

func ON() bool { return false }

func Infof(_ string, _ ...any) {}

func Func(_ func()) {}

func Assert(_ bool, _ ...any)            {}
func AssertFunc(_ func() bool, _ ...any) {}
func AssertNoErr(_ error)                {}
func Assertf(_ bool, _ string, _ ...any) {}

func AssertMutexLocked(_ *sync.Mutex) {}
