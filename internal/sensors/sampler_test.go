// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/envlogger/internal/env"
	"github.com/relabs-tech/envlogger/internal/fault"
)

type fakeSensor struct {
	temperature, humidity, pressure float64
	failOn                          string
	calls                           []string
}

func (f *fakeSensor) read(name string, v float64) (float64, error) {
	f.calls = append(f.calls, name)
	if f.failOn == name {
		return 0, errors.New("bus timeout")
	}
	return v, nil
}

func (f *fakeSensor) Temperature() (float64, error) { return f.read("temperature", f.temperature) }
func (f *fakeSensor) Humidity() (float64, error)    { return f.read("humidity", f.humidity) }
func (f *fakeSensor) Pressure() (float64, error)    { return f.read("pressure", f.pressure) }
func (f *fakeSensor) Close() error                  { return nil }

func writeZone(t *testing.T, data string) ThermalZone {
	t.Helper()
	path := filepath.Join(t.TempDir(), "temp")
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))
	return ThermalZone{Path: path}
}

func TestThermalZoneCelsius(t *testing.T) {
	c, err := writeZone(t, "45230\n").Celsius()
	require.NoError(t, err)
	assert.Equal(t, 45.23, c)
}

func TestThermalZoneErrors(t *testing.T) {
	_, err := ThermalZone{Path: filepath.Join(t.TempDir(), "missing")}.Celsius()
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = writeZone(t, "hot\n").Celsius()
	assert.Error(t, err)
}

func TestSample(t *testing.T) {
	sensor := &fakeSensor{temperature: 20.0, humidity: 45.0, pressure: 1000.0}
	s := NewSampler(sensor, writeZone(t, "45230"))

	r, err := s.Sample()
	require.NoError(t, err)
	assert.Equal(t, env.Reading{Temperature: 20.0, Humidity: 45.0, Pressure: 1000.0, CPUTemperature: 45.23}, r)
	assert.Equal(t, []string{"temperature", "humidity", "pressure"}, sensor.calls)
}

func TestSampleSensorFailureAborts(t *testing.T) {
	sensor := &fakeSensor{failOn: "humidity"}
	s := NewSampler(sensor, writeZone(t, "45230"))

	_, err := s.Sample()
	require.Error(t, err)
	assert.Equal(t, fault.KindSensor, fault.KindOf(err))
	assert.Contains(t, err.Error(), "read humidity")
	assert.Equal(t, []string{"temperature", "humidity"}, sensor.calls)
}

func TestSampleCPUFailure(t *testing.T) {
	s := NewSampler(&fakeSensor{}, writeZone(t, "n/a"))

	_, err := s.Sample()
	require.Error(t, err)
	assert.Equal(t, fault.KindSystemRead, fault.KindOf(err))
}
