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
	"math"
)

// Kernel is a square convolution matrix; entry access is [ky][kx].
type Kernel struct {
	Size   int
	Values [][]float64
}

// NewGaussianKernel produces a size x size matrix where the entry at offset
// (dx, dy) from center is exp(-(dx^2+dy^2)/(2*sigma^2)), normalized so the
// sum of all entries equals 1. Size must be odd.
func NewGaussianKernel(size int, sigma float64) (*Kernel, error) {
	if size <= 0 || size%2 == 0 {
		return nil, fmt.Errorf("kernel size must be an odd positive integer, got %d", size)
	}
	var (
		center = size / 2
		sum    float64
		values = make([][]float64, size)
	)
	for ky := range values {
		values[ky] = make([]float64, size)
		dy := ky - center
		for kx := range values[ky] {
			dx := kx - center
			v := math.Exp(-float64(dx*dx+dy*dy) / (2 * sigma * sigma))
			values[ky][kx] = v
			sum += v
		}
	}
	for ky := range values {
		for kx := range values[ky] {
			values[ky][kx] /= sum
		}
	}
	return &Kernel{Size: size, Values: values}, nil
}

// sharpen kernel used by the heavy pipeline (edge-clamp boundary, not mirror)
func sharpenKernel() *Kernel {
	return &Kernel{
		Size: 3,
		Values: [][]float64{
			{-1, -1, -1},
			{-1, 9, -1},
			{-1, -1, -1},
		},
	}
}
