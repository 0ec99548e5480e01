// Package main is the gaussnet batch submitter.
/*
 * Copyright (c) 2024, ReadySKAHF. All rights reserved.
 */
package main

import (
	"context"
	"flag"
	"time"

	"github.com/ReadySKAHF/gaussnet/cmn/cos"
	"github.com/ReadySKAHF/gaussnet/cmn/mono"
	"github.com/ReadySKAHF/gaussnet/cmn/nlog"
	"github.com/ReadySKAHF/gaussnet/submit"
)

var (
	masterAddr string
	inputDir   string
	outputDir  string
	filterSize int
	timeout    time.Duration
)

func init() {
	flag.StringVar(&masterAddr, "master", "127.0.0.1:9000", "master address (ip:port)")
	flag.StringVar(&inputDir, "in", ".", "directory of images to submit")
	flag.StringVar(&outputDir, "out", "", "directory for processed artifacts (empty: discard)")
	flag.IntVar(&filterSize, "filter-size", 3, "Gaussian kernel dimension (odd)")
	flag.DurationVar(&timeout, "timeout", 10*time.Minute, "overall run deadline")
	nlog.InitFlags(flag.CommandLine)
}

func main() {
	flag.Parse()
	nlog.SetLogDirRole("", "submit")
	cos.InitShortID(uint64(mono.NanoTime()))

	err := submit.Run(context.Background(), submit.Config{
		MasterAddr: masterAddr,
		InputDir:   inputDir,
		OutputDir:  outputDir,
		FilterSize: filterSize,
		Timeout:    timeout,
	})
	nlog.Flush(true)
	if err != nil {
		cos.ExitLogf("Submit failed: %v", err)
	}
}
