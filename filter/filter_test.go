// Package filter implements the deterministic Gaussian-convolution pipeline.
/*
 * Copyright (c) 2024, ReadySKAHF. All rights reserved.
 */
package filter_test

import (
	"bytes"
	"image"
	"image/color"
	"image/png"

	"github.com/ReadySKAHF/gaussnet/filter"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

func constImage(w, h int, b, g, r byte) *filter.Image {
	img := filter.NewImage(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, b, g, r)
		}
	}
	return img
}

var _ = Describe("Kernel", func() {
	It("should normalize every generated kernel to sum 1", func() {
		for _, tc := range []struct {
			size  int
			sigma float64
		}{
			{3, 2.0}, {5, 1.0}, {11, 2.0}, {15, 3.5},
		} {
			k, err := filter.NewGaussianKernel(tc.size, tc.sigma)
			Expect(err).NotTo(HaveOccurred())
			var sum float64
			for _, row := range k.Values {
				for _, v := range row {
					sum += v
				}
			}
			Expect(sum).To(BeNumerically("~", 1.0, 1e-9))
		}
	})

	It("should put the largest weight at the center", func() {
		k, err := filter.NewGaussianKernel(5, 1.5)
		Expect(err).NotTo(HaveOccurred())
		center := k.Values[2][2]
		for ky, row := range k.Values {
			for kx, v := range row {
				if ky == 2 && kx == 2 {
					continue
				}
				Expect(v).To(BeNumerically("<", center))
			}
		}
	})

	It("should reject even and non-positive sizes", func() {
		for _, size := range []int{-1, 0, 2, 4} {
			_, err := filter.NewGaussianKernel(size, 2.0)
			Expect(err).To(HaveOccurred())
		}
	})
})

var _ = Describe("Convolve", func() {
	It("should preserve a constant color under the mirror boundary", func() {
		img := constImage(8, 8, 100, 150, 200)
		k, err := filter.NewGaussianKernel(5, 2.0)
		Expect(err).NotTo(HaveOccurred())
		out := filter.Convolve(img, k, filter.Mirror)
		for y := 0; y < out.H; y++ {
			for x := 0; x < out.W; x++ {
				b, g, r := out.At(x, y)
				// up to rounding (truncation after floating-point summation)
				Expect(int(b)).To(BeNumerically("~", 100, 1))
				Expect(int(g)).To(BeNumerically("~", 150, 1))
				Expect(int(r)).To(BeNumerically("~", 200, 1))
			}
		}
	})

	It("should be the identity for a 1x1 kernel", func() {
		img := constImage(4, 4, 10, 20, 30)
		img.Set(2, 1, 99, 88, 77)
		k, err := filter.NewGaussianKernel(1, 2.0)
		Expect(err).NotTo(HaveOccurred())
		out := filter.Convolve(img, k, filter.Mirror)
		Expect(out.Pix).To(Equal(img.Pix))
	})

	It("should be deterministic regardless of parallel row split", func() {
		img := constImage(16, 16, 0, 0, 0)
		for y := 0; y < img.H; y++ {
			for x := 0; x < img.W; x++ {
				img.Set(x, y, byte(x*16), byte(y*16), byte((x+y)*8))
			}
		}
		k, err := filter.NewGaussianKernel(5, 2.0)
		Expect(err).NotTo(HaveOccurred())
		first := filter.Convolve(img, k, filter.Mirror)
		for i := 0; i < 4; i++ {
			again := filter.Convolve(img, k, filter.Mirror)
			Expect(again.Pix).To(Equal(first.Pix))
		}
	})
})

var _ = Describe("Adjustments", func() {
	It("should stretch contrast around the midpoint", func() {
		img := constImage(2, 2, 0, 128, 255)
		img.Contrast(1.2)
		b, g, r := img.At(0, 0)
		Expect(b).To(BeEquivalentTo(0))               // clamped low
		Expect(int(g)).To(BeNumerically("~", 128, 1)) // midpoint stays put
		Expect(r).To(BeEquivalentTo(255))             // clamped high
	})

	It("should scale brightness with clamping", func() {
		img := constImage(1, 1, 100, 200, 250)
		img.Brightness(1.05)
		b, g, r := img.At(0, 0)
		Expect(b).To(BeEquivalentTo(105))
		Expect(g).To(BeEquivalentTo(210))
		Expect(r).To(BeEquivalentTo(255)) // 262.5 clamps
	})
})

var _ = Describe("Pipeline", func() {
	encodePNG := func(w, h int) []byte {
		src := image.NewRGBA(image.Rect(0, 0, w, h))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				src.SetRGBA(x, y, color.RGBA{R: byte(x * 25), G: byte(y * 25), B: 128, A: 0xff})
			}
		}
		var buf bytes.Buffer
		Expect(png.Encode(&buf, src)).To(Succeed())
		return buf.Bytes()
	}

	It("should produce identical bytes for identical input", func() {
		encoded := encodePNG(10, 10)
		first, format, err := filter.Process(encoded, filter.Light, 3)
		Expect(err).NotTo(HaveOccurred())
		Expect(format).To(Equal("png"))
		again, _, err := filter.Process(encoded, filter.Light, 3)
		Expect(err).NotTo(HaveOccurred())
		Expect(again).To(Equal(first))
	})

	It("should run the heavy composition and preserve dimensions", func() {
		img := constImage(10, 10, 50, 100, 150)
		out, err := filter.Apply(img, filter.Heavy, 3 /* not honored in heavy mode */)
		Expect(err).NotTo(HaveOccurred())
		Expect(out.W).To(Equal(10))
		Expect(out.H).To(Equal(10))
	})

	It("should reject an input smaller than the heavy kernel radius", func() {
		img := constImage(6, 6, 50, 100, 150)
		_, err := filter.Apply(img, filter.Heavy, 3)
		Expect(err).To(HaveOccurred())
	})

	It("should reject an even filterSize in light mode", func() {
		img := constImage(4, 4, 0, 0, 0)
		_, err := filter.Apply(img, filter.Light, 4)
		Expect(err).To(HaveOccurred())
	})

	It("should decode, filter, and re-encode as PNG", func() {
		result, format, err := filter.Process(encodePNG(10, 10), filter.Light, 3)
		Expect(err).NotTo(HaveOccurred())
		Expect(format).To(Equal("png"))
		decoded, err := png.Decode(bytes.NewReader(result))
		Expect(err).NotTo(HaveOccurred())
		Expect(decoded.Bounds().Dx()).To(Equal(10))
		Expect(decoded.Bounds().Dy()).To(Equal(10))
	})
})
