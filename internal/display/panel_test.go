// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package display

import (
	"context"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"periph.io/x/devices/v3/ssd1306/image1bit"

	"github.com/relabs-tech/envlogger/internal/collector"
	"github.com/relabs-tech/envlogger/internal/env"
)

type fakeDevice struct {
	mu     sync.Mutex
	frames []image.Image
	halted bool
}

func (d *fakeDevice) Bounds() image.Rectangle { return image.Rect(0, 0, 128, 64) }

func (d *fakeDevice) Draw(r image.Rectangle, src image.Image, sp image.Point) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.frames = append(d.frames, src)
	return nil
}

func (d *fakeDevice) Halt() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.halted = true
	return nil
}

func (d *fakeDevice) frameCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.frames)
}

func litPixels(img image.Image) int {
	n := 0
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if img.At(x, y) == image1bit.On {
				n++
			}
		}
	}
	return n
}

func TestLinesWaiting(t *testing.T) {
	got := lines(snapshot{state: collector.StateConnecting})
	assert.Equal(t, []string{"Environment", "Waiting...", "", "CONNECTING"}, got)
}

func TestLinesReading(t *testing.T) {
	got := lines(snapshot{
		state:    collector.StatePublishing,
		reading:  env.Reading{Temperature: 20.0, Humidity: 45.0, Pressure: 1000.0, CPUTemperature: 45.23},
		slp:      1008.4211176559312,
		haveData: true,
	})
	assert.Equal(t, []string{
		"T: 20.0C  H: 45%",
		"P:   1000.0 hPa",
		"SLP: 1008.4 hPa",
		"CPU: 45.2C OK",
	}, got)
	for _, l := range got {
		assert.LessOrEqual(t, len(l), 18)
	}
}

func TestLinesBackoff(t *testing.T) {
	got := lines(snapshot{state: collector.StateBackoff, holdoff: 4 * time.Second})
	assert.Equal(t, "retry 4s", got[3])
}

func TestRenderDrawsText(t *testing.T) {
	assert.Zero(t, litPixels(render(nil)))
	assert.NotZero(t, litPixels(render([]string{"T: 20.0C"})))
}

func TestPanelObservesTicks(t *testing.T) {
	dev := &fakeDevice{}
	p := New(dev, zaptest.NewLogger(t).Sugar())

	points, err := env.Transformer{Altitude: 72}.Points(env.Reading{Temperature: 20, Humidity: 45, Pressure: 1000})
	require.NoError(t, err)
	p.StateChanged(collector.StatePublishing)
	p.Published(collector.Tick{Reading: env.Reading{Temperature: 20, Humidity: 45, Pressure: 1000}, Points: points, Holdoff: time.Second})

	assert.InDelta(t, 1008.42, p.data.slp, 0.01)
	assert.True(t, p.data.haveData)

	p.Failed(collector.Failure{Holdoff: 2 * time.Second})
	assert.Equal(t, 2*time.Second, p.data.holdoff)

	require.NoError(t, p.redraw())
	assert.Equal(t, 1, dev.frameCount())
}

func TestPanelRunHaltsOnCancel(t *testing.T) {
	dev := &fakeDevice{}
	p := New(dev, zaptest.NewLogger(t).Sugar())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx, time.Millisecond) }()

	require.Eventually(t, func() bool { return dev.frameCount() >= 3 }, time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	dev.mu.Lock()
	defer dev.mu.Unlock()
	assert.True(t, dev.halted)
}

func TestPanelRunRejectsNonPositiveInterval(t *testing.T) {
	dev := &fakeDevice{}
	p := New(dev, zaptest.NewLogger(t).Sugar())

	assert.Error(t, p.Run(context.Background(), 0))
	assert.Error(t, p.Run(context.Background(), -5*time.Millisecond))
	assert.Zero(t, dev.frameCount())
}
