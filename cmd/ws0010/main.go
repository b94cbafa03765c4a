// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// ws0010 writes text to a Winstar character OLED.
//
// With -sim the display is simulated and rendered to the terminal, which
// needs no hardware.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/GermanBionicSystems/charoled/charscreen"
	"github.com/GermanBionicSystems/charoled/glyph"
	"github.com/GermanBionicSystems/charoled/ws0010"
	"github.com/GermanBionicSystems/charoled/ws0010/ws0010test"
	"golang.org/x/image/font/gofont/goregular"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

var heart = glyph.Glyph{0x00, 0x0a, 0x1f, 0x1f, 0x0e, 0x04, 0x00, 0x00}

func main() {
	configPath := flag.String("config", "", "YAML file with the geometry and pin assignment")
	variant := flag.Int("variant", 2, "display generation, 1 or 2")
	cols := flag.Int("cols", 16, "number of columns")
	rows := flag.Int("rows", 2, "number of rows")
	timeout := flag.Duration("timeout", 0, "busy flag timeout, 0 waits forever")
	text := flag.String("text", "Hello \x00\nfrom Go \x01", `text to write, "\n" starts the next row`)
	sim := flag.Bool("sim", false, "drive a simulated display and render it to the terminal")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "variant":
			cfg.Variant = *variant
		case "cols":
			cfg.Cols = *cols
		case "rows":
			cfg.Rows = *rows
		case "timeout":
			cfg.Timeout = *timeout
		}
	})
	if err := run(cfg, strings.ReplaceAll(*text, `\n`, "\n"), *sim, nil); err != nil {
		log.Fatal(err)
	}
}

// run writes text on the display. In sim mode the result is rendered to w,
// or stdout when w is nil.
func run(cfg *config, text string, sim bool, w io.Writer) error {
	if err := cfg.validate(); err != nil {
		return err
	}
	opts := &ws0010.Opts{Cols: cfg.Cols, Rows: cfg.Rows, BusyTimeout: cfg.Timeout}
	var pins *ws0010.Pins
	var c *ws0010test.Controller
	if sim {
		c = ws0010test.New(&ws0010test.Opts{Cols: cfg.Cols, BusyReads: 1})
		pins = &ws0010.Pins{RS: c.RS, RW: c.RW, E: c.E, D4: c.D4, D5: c.D5, D6: c.D6, D7: c.D7}
		opts.Sleep = c.Sleep
	} else {
		var err error
		if pins, err = hostPins(&cfg.Pins); err != nil {
			return err
		}
	}

	dev, err := ws0010.New(ws0010.Variant(cfg.Variant), pins, opts)
	if err != nil {
		return err
	}
	log.Printf("%s", dev)
	if err := defineGlyphs(dev); err != nil {
		return err
	}
	if err := dev.Clear(); err != nil {
		return err
	}
	for row, line := range strings.Split(text, "\n") {
		if row >= cfg.Rows {
			break
		}
		if err := dev.SetCursor(0, row); err != nil {
			return err
		}
		if _, err := dev.WriteString(line); err != nil {
			return err
		}
	}
	if !sim {
		return nil
	}

	screen := charscreen.New(&charscreen.Opts{W: w})
	var lines []string
	for row := range cfg.Rows {
		lines = append(lines, c.Text(row))
	}
	glyphs := make([]glyph.Glyph, 8)
	for slot := range glyphs {
		glyphs[slot] = c.CGRAM(slot)
	}
	if err := screen.Render(lines, glyphs); err != nil {
		return err
	}
	return screen.Halt()
}

// defineGlyphs stores a heart in slot 0 and a 'G' rasterized from Go
// Regular in slot 1.
func defineGlyphs(dev *ws0010.Dev) error {
	if err := dev.CreateChar(0, heart); err != nil {
		return err
	}
	face, err := glyph.LoadFace(goregular.TTF, 28)
	if err != nil {
		return err
	}
	defer face.Close()
	return dev.CreateChar(1, glyph.FromRune(face, 'G'))
}

func hostPins(m *pinMap) (*ws0010.Pins, error) {
	if _, err := host.Init(); err != nil {
		return nil, err
	}
	var errs []string
	pin := func(role, name string) gpio.PinIO {
		p := gpioreg.ByName(name)
		if p == nil {
			errs = append(errs, fmt.Sprintf("%s pin %q not found", role, name))
		}
		return p
	}
	pins := &ws0010.Pins{
		RS: pin("RS", m.RS),
		RW: pin("RW", m.RW),
		E:  pin("E", m.E),
		D4: pin("D4", m.D4),
		D5: pin("D5", m.D5),
		D6: pin("D6", m.D6),
		D7: pin("D7", m.D7),
	}
	if len(errs) != 0 {
		return nil, fmt.Errorf("ws0010: %s", strings.Join(errs, ", "))
	}
	return pins, nil
}
