//go:build linux

// Package sys provides methods to read system information
/*
 * Copyright (c) 2024, ReadySKAHF. All rights reserved.
 */
package sys

import (
	"time"

	"golang.org/x/sys/unix"
)

type RUsage struct {
	MaxRSS   int64 // KiB
	UserTime time.Duration
	SysTime  time.Duration
}

// self resource usage; used by the worker's periodic self-statistics log
func GetRUsage() (ru RUsage, err error) {
	var u unix.Rusage
	if err = unix.Getrusage(unix.RUSAGE_SELF, &u); err != nil {
		return
	}
	ru.MaxRSS = u.Maxrss
	ru.UserTime = time.Duration(u.Utime.Nano())
	ru.SysTime = time.Duration(u.Stime.Nano())
	return
}
