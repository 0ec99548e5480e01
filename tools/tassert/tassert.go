// Package tassert provides common asserts for tests
/*
 * Copyright (c) 2024, ReadySKAHF. All rights reserved.
 */
package tassert

import (
	"testing"
)

func CheckFatal(tb testing.TB, err error) {
	if err != nil {
		tb.Helper()
		tb.Fatal(err.Error())
	}
}

func CheckError(tb testing.TB, err error) {
	if err != nil {
		tb.Helper()
		tb.Error(err.Error())
	}
}

func Fatalf(tb testing.TB, cond bool, msg string, args ...any) {
	if !cond {
		tb.Helper()
		tb.Fatalf(msg, args...)
	}
}

func Errorf(tb testing.TB, cond bool, msg string, args ...any) {
	if !cond {
		tb.Helper()
		tb.Errorf(msg, args...)
	}
}
