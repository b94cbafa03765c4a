// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package charoled is a container for the Winstar character OLED driver and
// its tooling.
//
// ws0010 is the device driver, ws0010/ws0010test a line level simulator of
// the controller, glyph builds custom characters and charscreen renders a
// panel to the terminal.
package charoled
