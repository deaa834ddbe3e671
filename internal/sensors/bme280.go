// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"
	"io"

	"go.uber.org/multierr"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/bmxx80"
	"periph.io/x/host/v3"
)

// BME280Options selects the bus a BME280 hangs off.
type BME280Options struct {
	Bus       string // "spi" or "i2c"
	SPIDevice string // e.g. "SPI0.0"
	I2CBus    string // empty picks the first bus
	I2CAddr   uint16
}

// BME280 reads a Bosch BME280 through periph.
type BME280 struct {
	dev *bmxx80.Dev
	bus io.Closer
}

// OpenBME280 initializes the periph host and opens the sensor.
func OpenBME280(opts BME280Options) (*BME280, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}

	switch opts.Bus {
	case "i2c":
		bus, err := i2creg.Open(opts.I2CBus)
		if err != nil {
			return nil, fmt.Errorf("BME280 I2C open: %w", err)
		}
		dev, err := bmxx80.NewI2C(bus, opts.I2CAddr, &bmxx80.DefaultOpts)
		if err != nil {
			bus.Close()
			return nil, fmt.Errorf("BME280 init: %w", err)
		}
		return &BME280{dev: dev, bus: bus}, nil
	case "spi", "":
		port, err := spireg.Open(opts.SPIDevice)
		if err != nil {
			return nil, fmt.Errorf("BME280 SPI open: %w", err)
		}
		dev, err := bmxx80.NewSPI(port, &bmxx80.DefaultOpts)
		if err != nil {
			port.Close()
			return nil, fmt.Errorf("BME280 init: %w", err)
		}
		return &BME280{dev: dev, bus: port}, nil
	default:
		return nil, fmt.Errorf("unknown BME280 bus %q", opts.Bus)
	}
}

func (b *BME280) sense() (physic.Env, error) {
	var e physic.Env
	if err := b.dev.Sense(&e); err != nil {
		return physic.Env{}, fmt.Errorf("BME280 sense: %w", err)
	}
	return e, nil
}

// Temperature returns °C.
func (b *BME280) Temperature() (float64, error) {
	e, err := b.sense()
	if err != nil {
		return 0, err
	}
	return e.Temperature.Celsius(), nil
}

// Humidity returns %RH.
func (b *BME280) Humidity() (float64, error) {
	e, err := b.sense()
	if err != nil {
		return 0, err
	}
	return float64(e.Humidity) / float64(physic.PercentRH), nil
}

// Pressure returns hPa.
func (b *BME280) Pressure() (float64, error) {
	e, err := b.sense()
	if err != nil {
		return 0, err
	}
	pressurePa := float64(e.Pressure) / float64(physic.Pascal)
	return pressurePa / 100.0, nil // 1 hPa = 100 Pa
}

// Close halts the device and releases the bus.
func (b *BME280) Close() error {
	return multierr.Append(b.dev.Halt(), b.bus.Close())
}
