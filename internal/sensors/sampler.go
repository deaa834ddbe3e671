// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/relabs-tech/envlogger/internal/env"
	"github.com/relabs-tech/envlogger/internal/fault"
)

// Sensor reads ambient conditions. Every accessor is a separate bus
// transaction and may fail independently.
type Sensor interface {
	Temperature() (float64, error) // °C
	Humidity() (float64, error)    // %RH
	Pressure() (float64, error)    // hPa
	Close() error
}

// ThermalReader reads a host temperature in °C.
type ThermalReader interface {
	Celsius() (float64, error)
}

// ThermalZone reads a sysfs thermal zone file holding millidegrees Celsius.
type ThermalZone struct {
	Path string
}

// Celsius reads and converts the zone temperature.
func (z ThermalZone) Celsius() (float64, error) {
	raw, err := os.ReadFile(z.Path)
	if err != nil {
		return 0, err
	}
	milli, err := strconv.ParseFloat(strings.TrimSpace(string(raw)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", z.Path, err)
	}
	return milli / 1000.0, nil
}

// Sampler takes one Reading per call from a sensor and the host CPU.
type Sampler struct {
	sensor Sensor
	cpu    ThermalReader
}

// NewSampler returns a Sampler over the given sources.
func NewSampler(sensor Sensor, cpu ThermalReader) *Sampler {
	return &Sampler{sensor: sensor, cpu: cpu}
}

// Sample reads temperature, humidity, pressure and CPU temperature, in that
// order. The first failure aborts the sample.
func (s *Sampler) Sample() (env.Reading, error) {
	temperature, err := s.sensor.Temperature()
	if err != nil {
		return env.Reading{}, fault.Sensor("read temperature", err)
	}
	humidity, err := s.sensor.Humidity()
	if err != nil {
		return env.Reading{}, fault.Sensor("read humidity", err)
	}
	pressure, err := s.sensor.Pressure()
	if err != nil {
		return env.Reading{}, fault.Sensor("read pressure", err)
	}
	cpu, err := s.cpu.Celsius()
	if err != nil {
		return env.Reading{}, fault.SystemRead("read cpu temperature", err)
	}

	return env.Reading{
		Temperature:    temperature,
		Humidity:       humidity,
		Pressure:       pressure,
		CPUTemperature: cpu,
	}, nil
}
