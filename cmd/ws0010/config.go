// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/GermanBionicSystems/charoled/ws0010"
	"gopkg.in/yaml.v3"
)

// pinMap names the GPIO pin of each display line, as known to gpioreg.
type pinMap struct {
	RS string `yaml:"rs"`
	RW string `yaml:"rw"`
	E  string `yaml:"e"`
	D4 string `yaml:"d4"`
	D5 string `yaml:"d5"`
	D6 string `yaml:"d6"`
	D7 string `yaml:"d7"`
}

type config struct {
	Variant int           `yaml:"variant"`
	Cols    int           `yaml:"cols"`
	Rows    int           `yaml:"rows"`
	Timeout time.Duration `yaml:"timeout"`
	Pins    pinMap        `yaml:"pins"`
}

// defaultConfig matches the wiring of the Adafruit 16x2 OLED tutorial on a
// Raspberry Pi.
func defaultConfig() *config {
	return &config{
		Variant: 2,
		Cols:    16,
		Rows:    2,
		Pins: pinMap{
			RS: "GPIO25",
			RW: "GPIO24",
			E:  "GPIO23",
			D4: "GPIO17",
			D5: "GPIO18",
			D6: "GPIO27",
			D7: "GPIO22",
		},
	}
}

// loadConfig reads path over the defaults. An empty path returns the
// defaults.
func loadConfig(path string) (*config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// validate checks the geometry against what the controller can address.
func (c *config) validate() error {
	if c.Cols <= 0 || c.Rows <= 0 || c.Rows > len(ws0010.DefaultRowOffsets) {
		return fmt.Errorf("invalid geometry %dx%d", c.Cols, c.Rows)
	}
	return nil
}
