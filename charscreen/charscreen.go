// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package charscreen renders a character display to the terminal using ANSI
// color codes.
//
// Useful to look at what a driver did to a simulated panel while the real
// one is still on its way.
package charscreen

import (
	"bytes"
	"fmt"
	"image/color"
	"io"

	"github.com/GermanBionicSystems/charoled/glyph"
	"github.com/maruel/ansi256"
	"github.com/mattn/go-colorable"
)

// Opts represents the options available for this screen.
type Opts struct {
	// W receives the output. Defaults to a colorable stdout.
	W       io.Writer
	Palette *ansi256.Palette
	// On and Off are the colors of lit and dark pixels. They default to an
	// amber OLED on black.
	On  color.Color
	Off color.Color

	_ struct{}
}

// Dev draws a character panel on the console.
type Dev struct {
	w       io.Writer
	palette ansi256.Palette
	on      color.Color
	off     color.Color

	buf bytes.Buffer
}

// New returns a Dev that displays at the console.
func New(opts *Opts) *Dev {
	if opts == nil {
		opts = &Opts{}
	}
	p := opts.Palette
	if p == nil {
		p = ansi256.Default
	}
	d := &Dev{
		w:       opts.W,
		palette: *p,
		on:      opts.On,
		off:     opts.Off,
	}
	if d.w == nil {
		d.w = colorable.NewColorableStdout()
	}
	if d.on == nil {
		d.on = color.NRGBA{0xff, 0xb0, 0x00, 0xff}
	}
	if d.off == nil {
		d.off = color.NRGBA{0, 0, 0, 0xff}
	}
	return d
}

func (d *Dev) String() string {
	return "CharScreen"
}

// Halt implements conn.Resource.
//
// It resets the terminal attributes.
func (d *Dev) Halt() error {
	_, err := d.w.Write([]byte("\n\033[0m"))
	return err
}

// Render draws the text rows in a frame. Character codes 0 to 7 refer to
// custom glyphs, they are shown as their slot number in reverse video.
// Non empty glyphs are then drawn pixel by pixel under the frame.
func (d *Dev) Render(rows []string, glyphs []glyph.Glyph) error {
	// This code is designed to minimize the amount of memory allocated per call.
	d.buf.Reset()
	width := 0
	for _, r := range rows {
		width = max(width, len(r))
	}
	border := d.palette.Block(d.off)
	d.frame(border, width)
	for _, r := range rows {
		_, _ = d.buf.WriteString(border)
		_, _ = d.buf.WriteString("\033[0m")
		for i := range width {
			c := byte(' ')
			if i < len(r) {
				c = r[i]
			}
			switch {
			case c < 8:
				_, _ = fmt.Fprintf(&d.buf, "\033[7m%d\033[27m", c)
			case c < 0x20 || c > 0x7e:
				_ = d.buf.WriteByte('?')
			default:
				_ = d.buf.WriteByte(c)
			}
		}
		_, _ = d.buf.WriteString(border)
		_, _ = d.buf.WriteString("\033[0m\n")
	}
	d.frame(border, width)
	d.glyphs(glyphs)
	_, err := d.buf.WriteTo(d.w)
	return err
}

func (d *Dev) frame(border string, width int) {
	for range width + 2 {
		_, _ = d.buf.WriteString(border)
	}
	_, _ = d.buf.WriteString("\033[0m\n")
}

func (d *Dev) glyphs(glyphs []glyph.Glyph) {
	var shown []int
	for i, g := range glyphs {
		if !g.Empty() {
			shown = append(shown, i)
		}
	}
	if len(shown) == 0 {
		return
	}
	for _, i := range shown {
		_, _ = fmt.Fprintf(&d.buf, "%-*d", glyph.Width+1, i)
	}
	_ = d.buf.WriteByte('\n')
	on, off := d.palette.Block(d.on), d.palette.Block(d.off)
	for y := range glyph.Height {
		for _, i := range shown {
			for x := range glyph.Width {
				if glyphs[i].Bit(x, y) {
					_, _ = d.buf.WriteString(on)
				} else {
					_, _ = d.buf.WriteString(off)
				}
			}
			_, _ = d.buf.WriteString("\033[0m ")
		}
		_ = d.buf.WriteByte('\n')
	}
}

var _ fmt.Stringer = &Dev{}
