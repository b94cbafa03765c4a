// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package charscreen

import (
	"bytes"
	"image/color"
	"strings"
	"testing"

	"github.com/GermanBionicSystems/charoled/glyph"
	"github.com/maruel/ansi256"
)

func TestRender(t *testing.T) {
	var buf bytes.Buffer
	d := New(&Opts{W: &buf})
	if d.String() != "CharScreen" {
		t.Errorf("String() = %q", d.String())
	}
	if err := d.Render([]string{"Hi\x01", "Yo\xff"}, nil); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"Hi\033[7m1\033[27m", "Yo?"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q does not contain %q", out, want)
		}
	}
	// Two frame lines and two text rows.
	if n := strings.Count(out, "\n"); n != 4 {
		t.Errorf("%d lines, want 4", n)
	}
}

func TestRenderGlyphs(t *testing.T) {
	var buf bytes.Buffer
	on := color.NRGBA{0, 0xff, 0, 0xff}
	d := New(&Opts{W: &buf, On: on})
	glyphs := make([]glyph.Glyph, 8)
	glyphs[2] = glyph.Glyph{0x1f, 0x1f, 0x1f, 0x1f, 0x1f, 0x1f, 0x1f, 0x1f}
	if err := d.Render([]string{"ab"}, glyphs); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	lit := ansi256.Default.Block(on)
	if n := strings.Count(out, lit); n != glyph.Width*glyph.Height {
		t.Errorf("%d lit pixels, want %d", n, glyph.Width*glyph.Height)
	}
	if !strings.Contains(out, "2     \n") {
		t.Error("glyph slot label missing")
	}
}

func TestHalt(t *testing.T) {
	var buf bytes.Buffer
	d := New(&Opts{W: &buf})
	if err := d.Halt(); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "\n\033[0m" {
		t.Errorf("Halt() wrote %q", buf.String())
	}
}
