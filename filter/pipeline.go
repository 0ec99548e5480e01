// Package filter implements the deterministic Gaussian-convolution pipeline:
// kernel generation, mirrored-boundary convolution, and the light/heavy
// multi-pass compositions. Given byte-identical input the output is
// byte-identical.
/*
 * Copyright (c) 2024, ReadySKAHF. All rights reserved.
 */
package filter

import (
	"fmt"
)

// Mode selects the pipeline composition; a deploy-time property of the worker
// binary, not a per-request parameter.
type Mode int

const (
	Light Mode = iota // one Gaussian pass at the requested filterSize, sigma=2.0
	Heavy             // fixed five-step composition (see applyHeavy); filterSize is not honored
)

const (
	lightSigma = 2.0

	heavyBlurPasses = 5
	heavyBlurSize   = 15
	heavyBlurSigma  = 3.5
	heavyPostSize   = 11
	heavyPostSigma  = 2.0
	heavyContrast   = 1.2
	heavyBrightness = 1.05

	// artifacts above this re-encode as JPEG for transport
	MaxPNGSize  = 500_000
	JPEGQuality = 75
)

func ParseMode(s string) (Mode, error) {
	switch s {
	case "light", "":
		return Light, nil
	case "heavy":
		return Heavy, nil
	}
	return 0, fmt.Errorf("unknown filter mode %q", s)
}

func (m Mode) String() string {
	if m == Heavy {
		return "heavy"
	}
	return "light"
}

// Apply runs the configured composition and returns a new buffer.
func Apply(img *Image, mode Mode, filterSize int) (*Image, error) {
	if mode == Light {
		k, err := NewGaussianKernel(filterSize, lightSigma)
		if err != nil {
			return nil, err
		}
		return Convolve(img, k, Mirror), nil
	}
	return applyHeavy(img)
}

// the fixed heavy composition, in order:
// 1. five consecutive Gaussian passes (k=15, sigma=3.5)
// 2. one 3x3 sharpen with edge-clamp boundary
// 3. contrast 1.2 around the midpoint
// 4. one Gaussian pass (k=11, sigma=2.0)
// 5. brightness scale 1.05
//
// The mirror boundary reflects once, so both dimensions must exceed the
// largest kernel radius (heavyBlurSize/2); smaller inputs are rejected.
func applyHeavy(img *Image) (*Image, error) {
	if radius := heavyBlurSize / 2; img.W <= radius || img.H <= radius {
		return nil, fmt.Errorf("image %dx%d too small for the %dx%d kernel", img.W, img.H, heavyBlurSize, heavyBlurSize)
	}
	blur, err := NewGaussianKernel(heavyBlurSize, heavyBlurSigma)
	if err != nil {
		return nil, err
	}
	out := img
	for i := 0; i < heavyBlurPasses; i++ {
		out = Convolve(out, blur, Mirror)
	}
	out = Convolve(out, sharpenKernel(), Clamp)
	out.Contrast(heavyContrast)
	post, err := NewGaussianKernel(heavyPostSize, heavyPostSigma)
	if err != nil {
		return nil, err
	}
	out = Convolve(out, post, Mirror)
	out.Brightness(heavyBrightness)
	return out, nil
}

// Process is the worker's per-job transform: decode, apply, encode as PNG,
// falling back to JPEG when the encoded artifact exceeds MaxPNGSize.
func Process(encoded []byte, mode Mode, filterSize int) (result []byte, format string, err error) {
	img, _, err := Decode(encoded)
	if err != nil {
		return nil, "", err
	}
	out, err := Apply(img, mode, filterSize)
	if err != nil {
		return nil, "", err
	}
	result, err = out.EncodePNG()
	if err != nil {
		return nil, "", err
	}
	if len(result) > MaxPNGSize {
		result, err = out.EncodeJPEG(JPEGQuality)
		if err != nil {
			return nil, "", err
		}
		return result, "jpeg", nil
	}
	return result, "png", nil
}
