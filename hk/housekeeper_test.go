// Package hk provides mechanism for registering cleanup
// functions which are invoked at specified intervals.
/*
 * Copyright (c) 2024, ReadySKAHF. All rights reserved.
 */
package hk_test

import (
	"time"

	"github.com/ReadySKAHF/gaussnet/hk"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Housekeeper", func() {
	It("should register the callback and fire it", func() {
		fired := false
		hk.Reg("fire", func() time.Duration {
			fired = true
			return time.Second
		})

		time.Sleep(50 * time.Millisecond)
		Expect(fired).To(BeTrue()) // callback fires at the start
		fired = false

		time.Sleep(500 * time.Millisecond)
		Expect(fired).To(BeFalse())

		time.Sleep(600 * time.Millisecond)
		Expect(fired).To(BeTrue())
		hk.Unreg("fire")
	})

	It("should register the callback and fire it after initial interval", func() {
		fired := false
		hk.Reg("initial", func() time.Duration {
			fired = true
			return time.Second
		}, time.Second)

		time.Sleep(500 * time.Millisecond)
		Expect(fired).To(BeFalse())

		time.Sleep(600 * time.Millisecond)
		Expect(fired).To(BeTrue())
		hk.Unreg("initial")
	})

	It("should unregister callback", func() {
		fired := make([]bool, 2)
		hk.Reg("bar", func() time.Duration {
			fired[0] = true
			return 400 * time.Millisecond
		}, 400*time.Millisecond)
		hk.Reg("foo", func() time.Duration {
			fired[1] = true
			return 200 * time.Millisecond
		}, 200*time.Millisecond)

		time.Sleep(500 * time.Millisecond)
		Expect(fired[0] && fired[1]).To(BeTrue())

		fired[0] = false
		fired[1] = false
		hk.Unreg("foo")

		time.Sleep(time.Second)
		Expect(fired[1]).To(BeFalse())
		Expect(fired[0]).To(BeTrue())

		hk.Unreg("bar")
	})
})
