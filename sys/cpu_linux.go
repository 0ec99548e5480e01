//go:build linux

// Package sys provides methods to read system information
/*
 * Copyright (c) 2024, ReadySKAHF. All rights reserved.
 */
package sys

import (
	"errors"
	"io"
	"runtime"
	"strconv"
	"strings"

	"github.com/ReadySKAHF/gaussnet/cmn/cos"
	"github.com/ReadySKAHF/gaussnet/cmn/nlog"
)

const (
	rootProcess     = "/proc/1/cgroup"
	contCPULimit    = "/sys/fs/cgroup/cpu/cpu.cfs_quota_us"
	contCPUPeriod   = "/sys/fs/cgroup/cpu/cpu.cfs_period_us"
	hostLoadAvgPath = "/proc/loadavg"
)

// isContainerized returns true if the application is running
// inside a container (docker/lxc/k8s)
func isContainerized() (yes bool) {
	err := cos.ReadLines(rootProcess, func(line string) error {
		if strings.Contains(line, "docker") || strings.Contains(line, "lxc") || strings.Contains(line, "kube") {
			yes = true
			return io.EOF
		}
		return nil
	})
	if err != nil {
		nlog.Errorf("Failed to read system info: %v", err)
	}
	return
}

// Returns an approximate number of CPUs allocated for the container,
// rounded up. A negative cfs quota means 'unlimited'.
func containerNumCPU() (int, error) {
	quotaInt, err := cos.ReadOneInt64(contCPULimit)
	if err != nil {
		return 0, err
	}
	if quotaInt <= 0 {
		return runtime.NumCPU(), nil
	}
	period, err := cos.ReadOneUint64(contCPUPeriod)
	if err != nil {
		return 0, err
	}
	if period == 0 {
		return 0, errors.New("failed to read container CPU info")
	}
	approx := (uint64(quotaInt) + period - 1) / period
	return int(max(approx, 1)), nil
}

// LoadAverage returns the system load average
func LoadAverage() (avg LoadAvg, err error) {
	line, err := cos.ReadOneLine(hostLoadAvgPath)
	if err != nil {
		return avg, err
	}
	fields := strings.Fields(line)
	avg.One, err = strconv.ParseFloat(fields[0], 64)
	if err == nil {
		avg.Five, err = strconv.ParseFloat(fields[1], 64)
	}
	if err == nil {
		avg.Fifteen, err = strconv.ParseFloat(fields[2], 64)
	}
	return avg, err
}
