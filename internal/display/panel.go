// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package display shows the latest reading on an SSD1306 OLED panel.
package display

import (
	"context"
	"fmt"
	"image"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/envlogger/internal/collector"
	"github.com/relabs-tech/envlogger/internal/env"
)

// Device is the part of ssd1306.Dev the panel draws through.
type Device interface {
	Bounds() image.Rectangle
	Draw(r image.Rectangle, src image.Image, sp image.Point) error
	Halt() error
}

// snapshot is what the panel shows; copied out under the lock.
type snapshot struct {
	state    collector.State
	reading  env.Reading
	slp      float64
	haveData bool
	holdoff  time.Duration
}

// Panel is a collector.Observer that redraws an OLED on its own goroutine.
type Panel struct {
	dev    Device
	bus    io.Closer
	logger *zap.SugaredLogger

	mu   sync.RWMutex
	data snapshot
}

// Open initializes periph and the SSD1306 at addr on the named I2C bus.
func Open(busName string, addr uint16, logger *zap.SugaredLogger) (*Panel, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph: %w", err)
	}

	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("failed to open I2C bus: %w", err)
	}

	dev, err := ssd1306.NewI2C(bus, addr, &ssd1306.DefaultOpts)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("failed to initialize display: %w", err)
	}
	logger.Infof("display: initialized at 0x%02X", addr)

	p := New(dev, logger)
	p.bus = bus
	return p, nil
}

// New wraps an already opened device.
func New(dev Device, logger *zap.SugaredLogger) *Panel {
	return &Panel{dev: dev, logger: logger}
}

func (p *Panel) StateChanged(s collector.State) {
	p.mu.Lock()
	p.data.state = s
	p.mu.Unlock()
}

func (p *Panel) Published(t collector.Tick) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.data.reading = t.Reading
	p.data.haveData = true
	p.data.holdoff = t.Holdoff
	for _, pt := range t.Points {
		if pt.Name == env.MeasurementSeaLevelPressure {
			p.data.slp = pt.Value
		}
	}
}

func (p *Panel) Failed(f collector.Failure) {
	p.mu.Lock()
	p.data.holdoff = f.Holdoff
	p.mu.Unlock()
}

// Run redraws every interval until ctx is done, then blanks the panel.
func (p *Panel) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("display: update interval must be positive, got %v", interval)
	}
	if err := p.dev.Draw(p.dev.Bounds(), render([]string{"", "  envlogger", "  starting..."}), image.Point{}); err != nil {
		p.logger.Warnf("display: error showing splash: %v", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return p.close()
		case <-ticker.C:
			if err := p.redraw(); err != nil {
				p.logger.Warnf("display: error updating display: %v", err)
			}
		}
	}
}

func (p *Panel) redraw() error {
	p.mu.RLock()
	s := p.data
	p.mu.RUnlock()

	return p.dev.Draw(p.dev.Bounds(), render(lines(s)), image.Point{})
}

func (p *Panel) close() error {
	err := p.dev.Halt()
	if p.bus != nil {
		if cerr := p.bus.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// lines lays out up to four rows of at most 18 characters.
func lines(s snapshot) []string {
	var status string
	switch s.state {
	case collector.StatePublishing:
		status = "OK"
	case collector.StateIdle, collector.StateBackoff:
		status = fmt.Sprintf("retry %s", s.holdoff)
	default:
		status = s.state.String()
	}

	if !s.haveData {
		return []string{"Environment", "Waiting...", "", status}
	}

	r := s.reading
	return []string{
		fmt.Sprintf("T:%5.1fC  H:%3.0f%%", r.Temperature, r.Humidity),
		fmt.Sprintf("P:  %7.1f hPa", r.Pressure),
		fmt.Sprintf("SLP:%7.1f hPa", s.slp),
		fmt.Sprintf("CPU:%5.1fC %s", r.CPUTemperature, status),
	}
}

func render(rows []string) *image1bit.VerticalLSB {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, 128, 64))

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}

	for i, row := range rows {
		drawer.Dot = fixed.P(0, 13*(i+1))
		drawer.DrawBytes([]byte(row))
	}
	return img
}
