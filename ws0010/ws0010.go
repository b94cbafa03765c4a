// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package ws0010 controls character OLED displays built on the Winstar
// WS0010 controller, such as the Winstar WEH001602 16x2 modules.
//
// The display is wired with a 4-bit data bus and the R/W line, so instead of
// waiting a worst case delay after each transfer the driver reads the busy
// flag on D7 until the controller reports it is ready.
//
// The WS0010 does not reset itself when the host restarts. On V2 modules
// Begin sends an extra nibble so that the sequence realigns a controller
// already running in 4-bit mode as well as one fresh from power on. The V1
// sequence only works from power on: after a warm restart the controller
// pairs the nibbles off by one and the module has to be power cycled.
package ws0010

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/GermanBionicSystems/charoled/glyph"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/display"
	"periph.io/x/conn/v3/gpio"
)

type writeMode bool

const (
	modeCommand writeMode = false
	modeData    writeMode = true

	packageName = "ws0010"
)

// Variant is the hardware generation of the display module.
type Variant byte

const (
	// V1 is the older module generation.
	V1 Variant = 0x01
	// V2 is the newer module generation. It needs an extra nibble during
	// initialization.
	V2 Variant = 0x02
)

func (v Variant) String() string {
	switch v {
	case V1:
		return "V1"
	case V2:
		return "V2"
	}
	return fmt.Sprintf("Variant(%d)", byte(v))
}

// FontTable selects one of the character ROM tables of the controller.
type FontTable byte

const (
	FontEnglishJapanese   FontTable = 0x00
	FontWesternEuropeanI  FontTable = 0x01
	FontRussian           FontTable = 0x02
	FontWesternEuropeanII FontTable = 0x03
)

// Instructions.
const (
	cmdClear        byte = 0x01
	cmdHome         byte = 0x02
	cmdEntryMode    byte = 0x04
	cmdControl      byte = 0x08
	cmdShift        byte = 0x10
	cmdFunction     byte = 0x20
	cmdSetCGRAMAddr byte = 0x40
	cmdSetDDRAMAddr byte = 0x80
)

// Instruction flags.
const (
	entryIncrement byte = 0x02
	entryShift     byte = 0x01

	controlDisplay byte = 0x04
	controlCursor  byte = 0x02
	controlBlink   byte = 0x01

	shiftDisplay byte = 0x08
	shiftRight   byte = 0x04

	functionTwoLines byte = 0x08
	functionFontMask byte = 0x03
)

const (
	powerOnDelay time.Duration = 50 * time.Millisecond
	initDelay    time.Duration = 5 * time.Millisecond
	settleDelay  time.Duration = 50 * time.Microsecond
	pulseWidth   time.Duration = 50 * time.Microsecond
	statusDelay  time.Duration = 10 * time.Microsecond
)

// DefaultRowOffsets are the display data RAM addresses of the first column
// of each row.
var DefaultRowOffsets = [4]byte{0x00, 0x40, 0x14, 0x54}

var (
	// ErrNotImplemented is returned for operations the controller can't do.
	ErrNotImplemented = fmt.Errorf("%s: %w", packageName, display.ErrNotImplemented)
	// ErrNotResponding is returned when Opts.BusyTimeout is set and the busy
	// flag did not clear in time.
	ErrNotResponding = errors.New("ws0010: device not responding")
)

// Pins is the assignment of the display lines to GPIO pins.
//
// D7 is also read back as the busy flag, so it must be bidirectional.
type Pins struct {
	RS gpio.PinOut // register select: low for instructions, high for data.
	RW gpio.PinOut // low to write, high to read.
	E  gpio.PinOut // enable, the controller latches on its pulse.
	D4 gpio.PinOut
	D5 gpio.PinOut
	D6 gpio.PinOut
	D7 gpio.PinIO
}

// Opts holds the optional settings of the display. The zero value is a
// 16x2 display with an unbounded busy wait.
type Opts struct {
	Cols int
	Rows int
	// RowOffsets replaces DefaultRowOffsets for controllers with another
	// DDRAM layout.
	RowOffsets [4]byte
	// BusyTimeout bounds the busy flag polling. Zero waits forever.
	BusyTimeout time.Duration
	// Sleep blocks for the given duration. Defaults to time.Sleep.
	Sleep func(time.Duration)
}

// Dev is a handle to a WS0010 display. It is not safe for concurrent use.
//
// Implements periph.io/x/conn/v3/display.TextDisplay.
type Dev struct {
	rs, rw, e  gpio.PinOut
	data       [4]gpio.PinOut
	busy       gpio.PinIO
	variant    Variant
	rowOffsets [4]byte
	timeout    time.Duration
	sleep      func(time.Duration)

	// Copies of the last function set, display control and entry mode
	// flags sent to the controller.
	function byte
	control  byte
	entry    byte

	cols int
	rows int
	row  int
}

// New returns a display handle and runs Begin with the geometry in opts.
//
// Any variant other than V1 or V2 is handled as V2.
func New(variant Variant, pins *Pins, opts *Opts) (*Dev, error) {
	if pins == nil || pins.RS == nil || pins.RW == nil || pins.E == nil ||
		pins.D4 == nil || pins.D5 == nil || pins.D6 == nil || pins.D7 == nil {
		return nil, errors.New("ws0010: RS, RW, E and D4 to D7 pins are required")
	}
	if variant != V1 && variant != V2 {
		variant = V2
	}
	o := Opts{}
	if opts != nil {
		o = *opts
	}
	d := &Dev{
		rs:         pins.RS,
		rw:         pins.RW,
		e:          pins.E,
		data:       [4]gpio.PinOut{pins.D4, pins.D5, pins.D6, pins.D7},
		busy:       pins.D7,
		variant:    variant,
		rowOffsets: o.RowOffsets,
		timeout:    o.BusyTimeout,
		sleep:      o.Sleep,
	}
	if d.rowOffsets == [4]byte{} {
		d.rowOffsets = DefaultRowOffsets
	}
	if d.sleep == nil {
		d.sleep = time.Sleep
	}
	if o.Cols <= 0 {
		o.Cols = 16
	}
	if o.Rows <= 0 {
		o.Rows = 2
	}
	if err := d.Begin(o.Cols, o.Rows); err != nil {
		return nil, err
	}
	return d, nil
}

// Begin sets the display geometry and runs the full reset sequence. It can
// be called again at any time, the controller ends in the same state
// whatever it was doing before.
func (d *Dev) Begin(cols, rows int) error {
	d.cols = cols
	d.rows = rows
	d.row = 0

	for _, p := range []gpio.PinOut{d.rs, d.e, d.rw} {
		if err := p.Out(gpio.Low); err != nil {
			return wrap(err)
		}
	}
	d.sleep(powerOnDelay)
	for _, p := range d.data {
		if err := p.Out(gpio.Low); err != nil {
			return wrap(err)
		}
	}

	// 0x03 puts the interface back in 8-bit mode whatever its state. V2
	// modules need 0x08 next to complete a pending 4-bit instruction.
	nibbles := []byte{0x03}
	if d.variant == V2 {
		nibbles = append(nibbles, 0x08)
	}
	nibbles = append(nibbles, 0x02, 0x02, 0x08)
	for _, n := range nibbles {
		if err := d.write4Bits(n); err != nil {
			return wrap(err)
		}
		d.sleep(initDelay)
	}

	d.function = functionTwoLines
	d.entry = entryIncrement
	d.control = controlDisplay
	for _, cmd := range []byte{
		cmdControl,
		cmdClear,
		cmdEntryMode | d.entry,
		cmdHome,
		cmdControl | d.control,
	} {
		if err := d.Command(cmd); err != nil {
			return err
		}
		d.sleep(initDelay)
	}
	return nil
}

// Variant returns the hardware generation used by the handle.
func (d *Dev) Variant() Variant {
	return d.variant
}

// Command sends a raw instruction and waits for the controller.
func (d *Dev) Command(cmd byte) error {
	if err := d.send(cmd, modeCommand); err != nil {
		return err
	}
	return d.waitReady()
}

// WriteByte sends one data byte to the display and waits for the controller.
// The byte goes to DDRAM or CGRAM depending on the last address set.
func (d *Dev) WriteByte(c byte) error {
	if err := d.send(c, modeData); err != nil {
		return err
	}
	return d.waitReady()
}

// Write sends each byte of p as data.
func (d *Dev) Write(p []byte) (n int, err error) {
	for _, c := range p {
		if err = d.WriteByte(c); err != nil {
			return
		}
		n++
	}
	return
}

// WriteString writes text to the display.
func (d *Dev) WriteString(text string) (int, error) {
	return d.Write([]byte(text))
}

// Clear clears the screen and moves the cursor to the first position.
func (d *Dev) Clear() error {
	return d.Command(cmdClear)
}

// Home moves the cursor to the first position and undoes any scrolling.
func (d *Dev) Home() error {
	return d.Command(cmdHome)
}

// SetCursor moves the cursor to a zero based column and row. A row outside
// the display geometry selects row 0.
func (d *Dev) SetCursor(col, row int) error {
	if row < 0 || row >= d.rows || row >= len(d.rowOffsets) {
		row = 0
	}
	d.row = row
	return d.Command(cmdSetDDRAMAddr | (byte(col) + d.rowOffsets[row]))
}

// Display turns the display on or off. The content is kept.
func (d *Dev) Display(on bool) error {
	return d.setControl(controlDisplay, on)
}

// ShowCursor turns the underline cursor on or off.
func (d *Dev) ShowCursor(on bool) error {
	return d.setControl(controlCursor, on)
}

// Blink turns the blinking block cursor on or off.
func (d *Dev) Blink(on bool) error {
	return d.setControl(controlBlink, on)
}

// ScrollDisplayLeft shifts the whole display one position to the left
// without changing its content.
func (d *Dev) ScrollDisplayLeft() error {
	return d.Command(cmdShift | shiftDisplay)
}

// ScrollDisplayRight shifts the whole display one position to the right
// without changing its content.
func (d *Dev) ScrollDisplayRight() error {
	return d.Command(cmdShift | shiftDisplay | shiftRight)
}

// LeftToRight makes the cursor advance to the right after each write.
func (d *Dev) LeftToRight() error {
	return d.setEntry(entryIncrement, true)
}

// RightToLeft makes the cursor advance to the left after each write.
func (d *Dev) RightToLeft() error {
	return d.setEntry(entryIncrement, false)
}

// AutoScroll shifts the display on each write when enabled, so text appears
// to be pushed from the cursor.
func (d *Dev) AutoScroll(enabled bool) error {
	return d.setEntry(entryShift, enabled)
}

// SetFontTable selects the character ROM table.
func (d *Dev) SetFontTable(ft FontTable) error {
	d.function = d.function&^functionFontMask | byte(ft)&functionFontMask
	return d.Command(cmdFunction | d.function)
}

// CreateChar stores a custom glyph in one of the 8 CGRAM slots. Only the
// lower 3 bits of slot are used. Write the slot number as data to show it.
//
// The address counter is left in CGRAM, call SetCursor, Home or Clear
// before writing text.
func (d *Dev) CreateChar(slot byte, g glyph.Glyph) error {
	slot &= 0x07
	if err := d.Command(cmdSetCGRAMAddr | slot<<3); err != nil {
		return err
	}
	for _, row := range g {
		if err := d.WriteByte(row); err != nil {
			return err
		}
	}
	return nil
}

// Cursor sets the cursor mode. You can pass multiple arguments.
// Cursor(display.CursorOff, display.CursorUnderline)
func (d *Dev) Cursor(modes ...display.CursorMode) error {
	control := d.control
	for _, mode := range modes {
		switch mode {
		case display.CursorOff:
			control &^= controlCursor | controlBlink
		case display.CursorUnderline:
			control |= controlCursor
		case display.CursorBlink, display.CursorBlock:
			control |= controlBlink
		default:
			return fmt.Errorf("%s: unexpected cursor: %d", packageName, mode)
		}
	}
	d.control = control
	return d.Command(cmdControl | d.control)
}

// Move the cursor forward or backward.
func (d *Dev) Move(dir display.CursorDirection) error {
	switch dir {
	case display.Backward:
		return d.Command(cmdShift)
	case display.Forward:
		return d.Command(cmdShift | shiftRight)
	}
	return ErrNotImplemented
}

// MoveTo moves the cursor to a one based row and column. Unlike SetCursor,
// out of range values are an error.
func (d *Dev) MoveTo(row, col int) error {
	if row < d.MinRow() || row > d.rows || row > len(d.rowOffsets) || col < d.MinCol() || col > d.cols {
		return fmt.Errorf("%s: MoveTo(%d,%d) value out of range", packageName, row, col)
	}
	return d.SetCursor(col-1, row-1)
}

// Cols returns the number of columns the display supports.
func (d *Dev) Cols() int {
	return d.cols
}

// Rows returns the number of rows the display supports.
func (d *Dev) Rows() int {
	return d.rows
}

// Row returns the zero based row last selected by SetCursor, after clamping.
func (d *Dev) Row() int {
	return d.row
}

// MinCol returns the min column position.
func (d *Dev) MinCol() int {
	return 1
}

// MinRow returns the min row position.
func (d *Dev) MinRow() int {
	return 1
}

func (d *Dev) String() string {
	return fmt.Sprintf("WS0010{%s, Rows: %d, Cols: %d}", d.variant, d.rows, d.cols)
}

// Halt clears the display and turns it off. The lines keep their last
// level.
func (d *Dev) Halt() error {
	if err := d.Clear(); err != nil {
		return err
	}
	return d.Display(false)
}

func (d *Dev) setControl(flag byte, on bool) error {
	if on {
		d.control |= flag
	} else {
		d.control &^= flag
	}
	return d.Command(cmdControl | d.control)
}

func (d *Dev) setEntry(flag byte, on bool) error {
	if on {
		d.entry |= flag
	} else {
		d.entry &^= flag
	}
	return d.Command(cmdEntryMode | d.entry)
}

// send writes a byte as two nibbles, high nibble first.
func (d *Dev) send(value byte, mode writeMode) error {
	if err := d.rs.Out(gpio.Level(mode)); err != nil {
		return wrap(err)
	}
	if err := d.rw.Out(gpio.Low); err != nil {
		return wrap(err)
	}
	if err := d.write4Bits(value >> 4); err != nil {
		return wrap(err)
	}
	return wrap(d.write4Bits(value))
}

func (d *Dev) write4Bits(value byte) error {
	for i, p := range d.data {
		if err := p.Out(gpio.Level((value>>i)&0x01 != 0)); err != nil {
			return err
		}
	}
	d.sleep(settleDelay)
	return d.pulseEnable()
}

func (d *Dev) pulseEnable() error {
	if err := d.e.Out(gpio.High); err != nil {
		return err
	}
	d.sleep(pulseWidth)
	return d.e.Out(gpio.Low)
}

// waitReady polls the busy flag until the controller is done with the last
// transfer, then puts the bus back in write mode.
func (d *Dev) waitReady() error {
	if err := d.busy.In(gpio.PullNoChange, gpio.NoEdge); err != nil {
		return wrap(err)
	}
	err := d.pollBusy()
	if err2 := d.busy.Out(gpio.Low); err == nil {
		err = err2
	}
	if err2 := d.rw.Out(gpio.Low); err == nil {
		err = err2
	}
	return wrap(err)
}

func (d *Dev) pollBusy() error {
	if err := d.rs.Out(gpio.Low); err != nil {
		return err
	}
	if err := d.rw.Out(gpio.High); err != nil {
		return err
	}
	var waited time.Duration
	for {
		if err := d.e.Out(gpio.Low); err != nil {
			return err
		}
		if err := d.e.Out(gpio.High); err != nil {
			return err
		}
		d.sleep(statusDelay)
		busy := d.busy.Read()
		if err := d.e.Out(gpio.Low); err != nil {
			return err
		}
		// The status is read in two nibbles, clock out the unused low one.
		if err := d.pulseEnable(); err != nil {
			return err
		}
		if busy == gpio.Low {
			return nil
		}
		waited += statusDelay + pulseWidth
		if d.timeout > 0 && waited >= d.timeout {
			return ErrNotResponding
		}
	}
}

func wrap(err error) error {
	if err == nil || strings.HasPrefix(err.Error(), packageName) {
		return err
	}
	return fmt.Errorf("%s: %w", packageName, err)
}

var _ display.TextDisplay = &Dev{}
var _ conn.Resource = &Dev{}
