// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package ws0010test is meant to be used to test drivers for WS0010 and other
// HD44780 compatible controllers wired on a 4-bit bus.
//
// Controller models the chip at the line level. It exposes seven gpio.PinIO
// lines, decodes the enable strobes into nibbles, instructions, data writes
// and busy flag reads, and records everything it sees in order.
package ws0010test

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/GermanBionicSystems/charoled/glyph"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

type lineID int

const (
	lineRS lineID = iota
	lineRW
	lineE
	lineD4
	lineD5
	lineD6
	lineD7
	numLines
)

var lineNames = [numLines]string{"RS", "RW", "E", "D4", "D5", "D6", "D7"}

var rowOffsets = [4]byte{0x00, 0x40, 0x14, 0x54}

// Kind is the type of a decoded bus Event.
type Kind int

const (
	// Nibble is one write cycle latched by the falling edge of E.
	Nibble Kind = iota
	// Command is a complete instruction byte.
	Command
	// Data is a complete data byte.
	Data
	// Status is one busy flag / address counter read.
	Status
)

func (k Kind) String() string {
	switch k {
	case Nibble:
		return "Nibble"
	case Command:
		return "Command"
	case Data:
		return "Data"
	case Status:
		return "Status"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Event is a bus cycle decoded by the Controller.
type Event struct {
	Kind Kind
	// RS is the register select level when the cycle was latched.
	RS bool
	// Value is the nibble, the byte or the status byte.
	Value byte
	// Busy is the busy flag presented on D7. Only set for Status.
	Busy bool
}

func (e Event) String() string {
	switch e.Kind {
	case Status:
		return fmt.Sprintf("Status(busy=%t)", e.Busy)
	case Nibble:
		return fmt.Sprintf("Nibble(rs=%t, 0x%X)", e.RS, e.Value)
	}
	return fmt.Sprintf("%s(0x%02X)", e.Kind, e.Value)
}

// LineOp is one call made by the host on a line, or a delay.
type LineOp struct {
	// Line is the line name, empty for a delay.
	Line string
	// Op is one of "in", "out", "read" or "sleep".
	Op    string
	Level gpio.Level
	D     time.Duration
}

func (o LineOp) String() string {
	if o.Op == "sleep" {
		return fmt.Sprintf("sleep(%s)", o.D)
	}
	if o.Op == "in" {
		return o.Line + ".in"
	}
	return fmt.Sprintf("%s.%s(%s)", o.Line, o.Op, o.Level)
}

// Opts configures the Controller.
type Opts struct {
	// FourBit starts the controller already in 4-bit mode, as after a host
	// reset that did not power cycle the display. The default is the 8-bit
	// power on state.
	FourBit bool
	// BusyReads is the number of status reads that report busy after each
	// instruction or data write.
	BusyReads int
	// Cols is the number of columns returned by Text. Defaults to 16.
	Cols int
}

// Line is a gpio.PinIO connected to the simulated controller.
type Line struct {
	gpiotest.Pin
	c  *Controller
	id lineID
}

// In implements gpio.PinIn. Only gpio.NoEdge is supported.
func (l *Line) In(pull gpio.Pull, edge gpio.Edge) error {
	if edge != gpio.NoEdge {
		return errors.New("ws0010test: edge detection is not supported")
	}
	l.c.in(l.id)
	return nil
}

// Read implements gpio.PinIn.
func (l *Line) Read() gpio.Level {
	return l.c.read(l.id)
}

// Out implements gpio.PinOut.
func (l *Line) Out(level gpio.Level) error {
	l.c.out(l.id, level)
	return nil
}

// Controller is a simulated WS0010 with 4 data lines wired.
//
// It is safe for concurrent use so a test can release a stuck busy flag
// while a driver is polling it.
type Controller struct {
	RS, RW, E, D4, D5, D6, D7 *Line

	mu     sync.Mutex
	lines  [numLines]*Line
	levels [numLines]gpio.Level
	input  [numLines]bool
	driven [numLines]gpio.Level
	ops    []LineOp
	events []Event

	cols      int
	busyReads int
	busyLeft  int
	stuck     bool
	polls     int

	fourBit    bool
	pending    bool
	high       byte
	readNibble int

	ddram    [0x80]byte
	cgram    [0x40]byte
	ac       byte
	cgMode   bool
	function byte
	control  byte
	entry    byte
	shift    int
}

// New returns a Controller in its power on state.
func New(opts *Opts) *Controller {
	if opts == nil {
		opts = &Opts{}
	}
	c := &Controller{
		cols:      opts.Cols,
		busyReads: opts.BusyReads,
		fourBit:   opts.FourBit,
		function:  0x30,
		entry:     0x02,
	}
	if c.cols <= 0 {
		c.cols = 16
	}
	if c.fourBit {
		c.function = 0x28
	}
	for i := range c.ddram {
		c.ddram[i] = ' '
	}
	for i := range numLines {
		c.lines[i] = &Line{Pin: gpiotest.Pin{N: lineNames[i], Num: int(i)}, c: c, id: i}
	}
	c.RS, c.RW, c.E = c.lines[lineRS], c.lines[lineRW], c.lines[lineE]
	c.D4, c.D5, c.D6, c.D7 = c.lines[lineD4], c.lines[lineD5], c.lines[lineD6], c.lines[lineD7]
	return c
}

// PowerCycle puts the controller back in its power on state: 8-bit
// interface, display off, data RAM blank. Recorded traces are kept.
func (c *Controller) PowerCycle() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fourBit = false
	c.pending = false
	c.high = 0
	c.readNibble = 0
	c.busyLeft = 0
	c.function = 0x30
	c.control = 0
	c.entry = 0x02
	c.ac = 0
	c.cgMode = false
	c.shift = 0
	for i := range c.ddram {
		c.ddram[i] = ' '
	}
	c.cgram = [0x40]byte{}
}

// Sleep records a delay without blocking. Use it as the driver's sleep
// function.
func (c *Controller) Sleep(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ops = append(c.ops, LineOp{Op: "sleep", D: d})
}

// SetStuck makes every status read report busy until cleared.
func (c *Controller) SetStuck(stuck bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stuck = stuck
}

// Polls returns the number of complete status reads so far.
func (c *Controller) Polls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.polls
}

// Ops returns every line operation and delay recorded so far.
func (c *Controller) Ops() []LineOp {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]LineOp(nil), c.ops...)
}

// Events returns every decoded bus cycle recorded so far.
func (c *Controller) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Event(nil), c.events...)
}

// Transfers returns only the Command and Data events.
func (c *Controller) Transfers() []Event {
	var out []Event
	for _, e := range c.Events() {
		if e.Kind == Command || e.Kind == Data {
			out = append(out, e)
		}
	}
	return out
}

// ResetTrace drops the recorded operations and events. The controller state
// is kept.
func (c *Controller) ResetTrace() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ops = nil
	c.events = nil
}

// FourBit returns true if the controller is in 4-bit interface mode.
func (c *Controller) FourBit() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fourBit
}

// Pending returns true if a 4-bit write latched its high nibble and waits
// for the low one.
func (c *Controller) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// Function returns the last function set instruction.
func (c *Controller) Function() byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.function
}

// Control returns the display, cursor and blink bits.
func (c *Controller) Control() byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.control
}

// Entry returns the increment and shift bits of the entry mode.
func (c *Controller) Entry() byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entry
}

// Address returns the address counter.
func (c *Controller) Address() byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ac
}

// Shift returns the display shift, positive to the right.
func (c *Controller) Shift() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.shift
}

// Text returns the content of the display data RAM for row, ignoring the
// display shift.
func (c *Controller) Text(row int) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if row < 0 || row >= len(rowOffsets) {
		return ""
	}
	b := make([]byte, c.cols)
	for i := range b {
		b[i] = c.ddram[(int(rowOffsets[row])+i)&0x7f]
	}
	return string(b)
}

// CGRAM returns the bitmap stored in a custom character slot.
func (c *Controller) CGRAM(slot int) glyph.Glyph {
	c.mu.Lock()
	defer c.mu.Unlock()
	var g glyph.Glyph
	copy(g[:], c.cgram[(slot&7)*8:])
	return g
}

func (c *Controller) in(id lineID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ops = append(c.ops, LineOp{Line: lineNames[id], Op: "in"})
	c.input[id] = true
}

func (c *Controller) read(id lineID) gpio.Level {
	c.mu.Lock()
	defer c.mu.Unlock()
	l := c.levels[id]
	if c.input[id] && id >= lineD4 && c.levels[lineRW] == gpio.High {
		l = c.driven[id]
	}
	c.ops = append(c.ops, LineOp{Line: lineNames[id], Op: "read", Level: l})
	return l
}

func (c *Controller) out(id lineID, l gpio.Level) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ops = append(c.ops, LineOp{Line: lineNames[id], Op: "out", Level: l})
	prev := c.levels[id]
	c.levels[id] = l
	c.input[id] = false
	if id != lineE || prev == l {
		return
	}
	if l == gpio.High {
		c.risingE()
	} else {
		c.fallingE()
	}
}

// risingE puts the requested nibble on the data lines during a read.
func (c *Controller) risingE() {
	if c.levels[lineRW] == gpio.Low {
		return
	}
	var v byte
	if c.levels[lineRS] == gpio.Low {
		busy := c.stuck || c.busyLeft > 0
		v = c.ac & 0x7f
		if busy {
			v |= 0x80
		}
		if c.readNibble == 0 {
			c.events = append(c.events, Event{Kind: Status, Value: v, Busy: busy})
		}
	}
	if c.fourBit && c.readNibble == 1 {
		v <<= 4
	}
	for i := range 4 {
		c.driven[lineD4+lineID(i)] = gpio.Level(v&(0x10<<i) != 0)
	}
}

// fallingE latches a write, or completes a read cycle.
func (c *Controller) fallingE() {
	rs := c.levels[lineRS] == gpio.High
	if c.levels[lineRW] == gpio.High {
		if c.fourBit && c.readNibble == 0 {
			c.readNibble = 1
			return
		}
		c.readNibble = 0
		if !rs {
			c.polls++
			if c.busyLeft > 0 {
				c.busyLeft--
			}
		}
		return
	}
	var n byte
	for i := range 4 {
		if c.levels[lineD4+lineID(i)] == gpio.High {
			n |= 1 << i
		}
	}
	c.events = append(c.events, Event{Kind: Nibble, RS: rs, Value: n})
	switch {
	case !c.fourBit:
		c.exec(rs, n<<4)
	case !c.pending:
		c.high = n
		c.pending = true
	default:
		c.pending = false
		c.exec(rs, c.high<<4|n)
	}
}

func (c *Controller) exec(rs bool, b byte) {
	c.busyLeft = c.busyReads
	if rs {
		c.events = append(c.events, Event{Kind: Data, RS: true, Value: b})
		c.writeData(b)
		return
	}
	c.events = append(c.events, Event{Kind: Command, Value: b})
	switch {
	case b&0x80 != 0:
		c.ac = b & 0x7f
		c.cgMode = false
	case b&0x40 != 0:
		c.ac = b & 0x3f
		c.cgMode = true
	case b&0x20 != 0:
		c.function = b
		c.fourBit = b&0x10 == 0
	case b&0x10 != 0:
		step := -1
		if b&0x04 != 0 {
			step = 1
		}
		if b&0x08 != 0 {
			c.shift += step
		} else {
			c.ac = byte(int(c.ac)+step) & 0x7f
		}
	case b&0x08 != 0:
		c.control = b & 0x07
	case b&0x04 != 0:
		c.entry = b & 0x03
	case b&0x02 != 0:
		c.ac = 0
		c.cgMode = false
		c.shift = 0
	case b&0x01 != 0:
		for i := range c.ddram {
			c.ddram[i] = ' '
		}
		c.ac = 0
		c.cgMode = false
		c.shift = 0
	}
}

func (c *Controller) writeData(b byte) {
	step := -1
	if c.entry&0x02 != 0 {
		step = 1
	}
	if c.cgMode {
		c.cgram[c.ac&0x3f] = b
		c.ac = byte(int(c.ac)+step) & 0x3f
		return
	}
	c.ddram[c.ac&0x7f] = b
	c.ac = byte(int(c.ac)+step) & 0x7f
	if c.entry&0x01 != 0 {
		c.shift -= step
	}
}

var _ gpio.PinIO = &Line{}
