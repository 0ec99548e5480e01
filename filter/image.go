// Package filter implements the deterministic Gaussian-convolution pipeline:
// kernel generation, mirrored-boundary convolution, and the light/heavy
// multi-pass compositions. Given byte-identical input the output is
// byte-identical.
/*
 * Copyright (c) 2024, ReadySKAHF. All rights reserved.
 */
package filter

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"

	"github.com/pkg/errors"
)

const bytesPerPixel = 3 // 24-bit BGR layout

// Image is a pixel buffer in 24-bit BGR layout (blue, green, red per pixel).
type Image struct {
	W, H int
	Pix  []byte // len = W*H*3, row-major
}

func NewImage(w, h int) *Image {
	return &Image{W: w, H: h, Pix: make([]byte, w*h*bytesPerPixel)}
}

func (img *Image) offset(x, y int) int { return (y*img.W + x) * bytesPerPixel }

// At returns (b, g, r) at (x, y).
func (img *Image) At(x, y int) (b, g, r byte) {
	off := img.offset(x, y)
	return img.Pix[off], img.Pix[off+1], img.Pix[off+2]
}

func (img *Image) Set(x, y int, b, g, r byte) {
	off := img.offset(x, y)
	img.Pix[off], img.Pix[off+1], img.Pix[off+2] = b, g, r
}

// Decode parses encoded image bytes (PNG, JPEG, ...) into a BGR buffer.
func Decode(encoded []byte) (*Image, string, error) {
	src, format, err := image.Decode(bytes.NewReader(encoded))
	if err != nil {
		return nil, "", errors.Wrap(err, "decode image")
	}
	bounds := src.Bounds()
	img := NewImage(bounds.Dx(), bounds.Dy())
	for y := 0; y < img.H; y++ {
		for x := 0; x < img.W; x++ {
			r, g, b, _ := src.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			img.Set(x, y, byte(b>>8), byte(g>>8), byte(r>>8))
		}
	}
	return img, format, nil
}

// EncodePNG encodes the buffer as PNG.
func (img *Image) EncodePNG() ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img.toRGBA()); err != nil {
		return nil, errors.Wrap(err, "encode png")
	}
	return buf.Bytes(), nil
}

// EncodeJPEG encodes the buffer as JPEG at the given quality.
func (img *Image) EncodeJPEG(quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img.toRGBA(), &jpeg.Options{Quality: quality}); err != nil {
		return nil, errors.Wrap(err, "encode jpeg")
	}
	return buf.Bytes(), nil
}

func (img *Image) toRGBA() *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, img.W, img.H))
	for y := 0; y < img.H; y++ {
		for x := 0; x < img.W; x++ {
			b, g, r := img.At(x, y)
			out.SetRGBA(x, y, color.RGBA{R: r, G: g, B: b, A: 0xff})
		}
	}
	return out
}
