// Package main is the gaussnet worker (filter-executing) daemon.
/*
 * Copyright (c) 2024, ReadySKAHF. All rights reserved.
 */
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ReadySKAHF/gaussnet/cmn/cos"
	"github.com/ReadySKAHF/gaussnet/cmn/mono"
	"github.com/ReadySKAHF/gaussnet/cmn/nlog"
	"github.com/ReadySKAHF/gaussnet/filter"
	"github.com/ReadySKAHF/gaussnet/hk"
	"github.com/ReadySKAHF/gaussnet/sys"
	"github.com/ReadySKAHF/gaussnet/worker"
)

var (
	build     string
	buildtime string

	masterAddr string
	port       int
	mode       string
	logDir     string
)

func init() {
	flag.StringVar(&masterAddr, "master", "127.0.0.1:9000", "master address (ip:port)")
	flag.IntVar(&port, "port", 9100, "own advertised port")
	flag.StringVar(&mode, "mode", "light", "filter pipeline mode: light | heavy")
	flag.StringVar(&logDir, "log-dir", "", "log directory (empty: stderr)")
	nlog.InitFlags(flag.CommandLine)
}

func logFlush() {
	for {
		time.Sleep(time.Minute)
		nlog.Flush()
	}
}

func main() {
	if len(os.Args) == 2 && os.Args[1] == "version" {
		fmt.Printf("version %s (build %s)\n", build, buildtime)
		os.Exit(0)
	}
	flag.Parse()
	if logDir != "" {
		if err := cos.CreateDir(logDir); err != nil {
			cos.Exitf("Failed to create log dir %q: %v", logDir, err)
		}
	}
	nlog.SetLogDirRole(logDir, "worker")
	cos.InitShortID(uint64(mono.NanoTime()))
	sys.SetMaxProcs()

	filterMode, err := filter.ParseMode(mode)
	if err != nil {
		cos.ExitLogf("%v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	installSignalHandler(cancel)

	go hk.DefaultHK.Run()
	hk.WaitStarted()
	go logFlush()

	w := worker.New(ctx, worker.Config{
		MasterAddr: masterAddr,
		Port:       port,
		Mode:       filterMode,
	})
	nlog.Infof("Version %s (build %s)", build, buildtime)

	go func() {
		<-ctx.Done()
		w.Stop(nil)
	}()
	err = w.Run()

	nlog.Flush(true)
	if err != nil {
		cos.ExitLogf("Worker failed: %v", err)
	}
}

func installSignalHandler(cancel context.CancelFunc) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-c
		cancel()
	}()
}
