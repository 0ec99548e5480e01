// Package nlog - gaussnet logger: buffering, timestamping, writing, flushing and rotating
/*
 * Copyright (c) 2024, ReadySKAHF. All rights reserved.
 */
package nlog

import (
	"flag"
)

func InitFlags(flset *flag.FlagSet) {
	flset.BoolVar(&toStderr, "logtostderr", false, "log to standard error instead of files")
	flset.BoolVar(&alsoToStderr, "alsologtostderr", false, "log to standard error as well as files")
}

func InfoDepth(depth int, args ...any)    { log(sevInfo, depth, "", args...) }
func Infoln(args ...any)                  { log(sevInfo, 0, "", args...) }
func Infof(format string, args ...any)    { log(sevInfo, 0, format, args...) }
func Warningln(args ...any)               { log(sevWarn, 0, "", args...) }
func Warningf(format string, args ...any) { log(sevWarn, 0, format, args...) }
func ErrorDepth(depth int, args ...any)   { log(sevErr, depth, "", args...) }
func Errorln(args ...any)                 { log(sevErr, 0, "", args...) }
func Errorf(format string, args ...any)   { log(sevErr, 0, format, args...) }

func SetLogDirRole(dir, r string) { logDir, role = dir, r }
func SetTitle(s string)           { title = s }

// Flush writes out whatever is buffered; Flush(true) also syncs and closes on exit.
func Flush(exit ...bool) {
	ex := len(exit) > 0 && exit[0]
	for _, nlog := range nlogs {
		nlog.mw.Lock()
		nlog.doFlush()
		if ex && nlog.file != nil {
			nlog.file.Sync()
			nlog.file.Close()
			nlog.file = nil
		}
		nlog.mw.Unlock()
	}
}
