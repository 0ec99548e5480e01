//go:build !mono

// Package mono provides low-level monotonic time
/*
 * Copyright (c) 2024, ReadySKAHF. All rights reserved.
 */
package mono

import "time"

var started = time.Now()

// monotonic via time.Since (the runtime clock); unaffected by wall-clock steps
func NanoTime() int64 { return int64(time.Since(started)) }
