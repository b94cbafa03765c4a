// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package glyph builds 5x8 custom character bitmaps for the character
// generator RAM of HD44780 compatible controllers.
//
// A Glyph can be written literally, converted from any image.Image, drawn
// with a gg.Context or rasterized from a TrueType rune.
package glyph

import (
	"image"
	"image/color"
	"strings"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
)

const (
	// Width is the number of pixels per glyph row.
	Width = 5
	// Height is the number of rows in a glyph.
	Height = 8

	rowMask    = 0x1f
	oversample = 4
)

// Glyph is one custom character. Each byte is a pixel row, top row first.
// Bit 4 is the leftmost pixel, only the low 5 bits are used by the
// controller.
type Glyph [Height]byte

// Bit returns true if the pixel at x, y is lit.
func (g Glyph) Bit(x, y int) bool {
	if x < 0 || x >= Width || y < 0 || y >= Height {
		return false
	}
	return g[y]&(1<<(Width-1-x)) != 0
}

// Empty returns true if no pixel is lit.
func (g Glyph) Empty() bool {
	for _, row := range g {
		if row&rowMask != 0 {
			return false
		}
	}
	return true
}

// Image returns the glyph as a 5x8 gray image, lit pixels are white.
func (g Glyph) Image() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, Width, Height))
	for y := range Height {
		for x := range Width {
			if g.Bit(x, y) {
				img.SetGray(x, y, color.Gray{Y: 0xff})
			}
		}
	}
	return img
}

// String renders the glyph as 8 lines of '#' and '.'.
func (g Glyph) String() string {
	var sb strings.Builder
	for y := range Height {
		if y > 0 {
			sb.WriteByte('\n')
		}
		for x := range Width {
			if g.Bit(x, y) {
				sb.WriteByte('#')
			} else {
				sb.WriteByte('.')
			}
		}
	}
	return sb.String()
}

// FromImage converts img to a glyph. Images that are not 5x8 are scaled
// first. A pixel is lit when its luminance is at least half.
func FromImage(img image.Image) Glyph {
	r := img.Bounds()
	if r.Dx() != Width || r.Dy() != Height {
		dst := image.NewGray(image.Rect(0, 0, Width, Height))
		draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, r, draw.Src, nil)
		img = dst
		r = dst.Bounds()
	}
	var g Glyph
	for y := range Height {
		for x := range Width {
			c := color.GrayModel.Convert(img.At(r.Min.X+x, r.Min.Y+y)).(color.Gray)
			if c.Y >= 0x80 {
				g[y] |= 1 << (Width - 1 - x)
			}
		}
	}
	return g
}

// Draw calls fn with a 5x8 context whose current color is white and
// returns what was drawn.
func Draw(fn func(dc *gg.Context)) Glyph {
	dc := gg.NewContext(Width, Height)
	dc.SetRGB(1, 1, 1)
	fn(dc)
	return FromImage(dc.Image())
}

// LoadFace parses a TrueType font and returns a face of the given size.
func LoadFace(ttf []byte, points float64) (font.Face, error) {
	f, err := truetype.Parse(ttf)
	if err != nil {
		return nil, err
	}
	return truetype.NewFace(f, &truetype.Options{Size: points, Hinting: font.HintingFull}), nil
}

// FromRune rasterizes r centered on an oversampled canvas. Each 4x4 block
// of the canvas becomes one glyph pixel, lit if any of its pixels is.
//
// The face should be sized for a 32 pixel high canvas.
func FromRune(face font.Face, r rune) Glyph {
	w, h := Width*oversample, Height*oversample
	dc := gg.NewContext(w, h)
	dc.SetFontFace(face)
	dc.SetRGB(1, 1, 1)
	dc.DrawStringAnchored(string(r), float64(w)/2, float64(h)/2, 0.5, 0.5)
	img := dc.Image()

	var g Glyph
	for y := range Height {
		for x := range Width {
			if cellLit(img, x*oversample, y*oversample) {
				g[y] |= 1 << (Width - 1 - x)
			}
		}
	}
	return g
}

func cellLit(img image.Image, x0, y0 int) bool {
	for y := y0; y < y0+oversample; y++ {
		for x := x0; x < x0+oversample; x++ {
			if color.GrayModel.Convert(img.At(x, y)).(color.Gray).Y >= 0x80 {
				return true
			}
		}
	}
	return false
}
