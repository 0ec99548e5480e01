// Package main is the gaussnet master (coordinator) daemon.
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
	"github.com/ReadySKAHF/gaussnet/dispatch"
	"github.com/ReadySKAHF/gaussnet/hk"
)

var (
	build     string
	buildtime string

	port      int
	adminPort int
	policy    string
	logDir    string
)

func init() {
	flag.IntVar(&port, "port", 9000, "TCP port to accept submitters and workers on")
	flag.IntVar(&adminPort, "admin-port", 0, "HTTP admin/metrics port (0 disables)")
	flag.StringVar(&policy, "policy", dispatch.PolicyRoundRobin, "worker selection policy: roundrobin | minlatency")
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
		printVer()
		os.Exit(0)
	}
	flag.Parse()
	if logDir != "" {
		if err := cos.CreateDir(logDir); err != nil {
			cos.Exitf("Failed to create log dir %q: %v", logDir, err)
		}
	}
	nlog.SetLogDirRole(logDir, "master")
	cos.InitShortID(uint64(mono.NanoTime()))

	ctx, cancel := context.WithCancel(context.Background())
	installSignalHandler(cancel)

	go hk.DefaultHK.Run()
	hk.WaitStarted()
	go logFlush()

	m, err := dispatch.NewMaster(ctx, dispatch.Config{
		Port:      port,
		Policy:    policy,
		AdminPort: adminPort,
	})
	if err != nil {
		cos.ExitLogf("Failed to initialize master: %v", err)
	}
	nlog.Infof("Version %s (build %s)", build, buildtime)

	go func() {
		<-ctx.Done()
		m.Stop(nil)
	}()
	err = m.Run()

	nlog.Flush(true)
	if err != nil {
		cos.ExitLogf("Master failed: %v", err)
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

func printVer() {
	fmt.Printf("version %s (build %s)\n", build, buildtime)
}
