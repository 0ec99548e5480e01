// Package nlog - gaussnet logger: buffering, timestamping, writing, flushing and rotating
/*
 * Copyright (c) 2024, ReadySKAHF. All rights reserved.
 */
package nlog

import "os"

// fixed-capacity write buffer; overflow is dropped at the line level (see write())
type fixed struct {
	buf  []byte
	woff int
}

func (fb *fixed) Write(p []byte) (int, error) {
	n := copy(fb.buf[fb.woff:], p)
	fb.woff += n
	return len(p), nil // silently truncate at capacity
}

func (fb *fixed) writeString(s string) {
	fb.woff += copy(fb.buf[fb.woff:], s)
}

func (fb *fixed) writeByte(c byte) {
	if fb.woff < len(fb.buf) {
		fb.buf[fb.woff] = c
		fb.woff++
	}
}

func (fb *fixed) eol() {
	if fb.woff == 0 || fb.buf[fb.woff-1] != '\n' {
		fb.writeByte('\n')
	}
}

func (fb *fixed) reset()      { fb.woff = 0 }
func (fb *fixed) length() int { return fb.woff }
func (fb *fixed) avail() int  { return len(fb.buf) - fb.woff }

func (fb *fixed) flush(f *os.File) (int, error) { return f.Write(fb.buf[:fb.woff]) }
