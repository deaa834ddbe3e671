// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package env

import (
	"fmt"
	"math"

	"github.com/relabs-tech/envlogger/internal/fault"
)

// LapseRate is the standard atmospheric temperature lapse rate in K/m.
const LapseRate = 0.0065

// SeaLevelPressure reduces station pressure (hPa) measured at altitude metres
// and temperature °C to mean sea level using the ICAO barometric formula.
//
//	slp = p * (1 - (L*H) / (T + L*H + 273.15)) ^ -5.257
func SeaLevelPressure(pressure, temperature, altitude float64) float64 {
	lh := LapseRate * altitude
	return pressure * math.Pow(1-(lh/(temperature+lh+273.15)), -5.257)
}

// Transformer shapes readings into points. Altitude is the sensor height above
// sea level in metres.
type Transformer struct {
	Altitude float64
	Tags     Tags
}

// Points expands r into the five measurement points of a tick.
func (t Transformer) Points(r Reading) ([]Point, error) {
	slp := SeaLevelPressure(r.Pressure, r.Temperature, t.Altitude)

	points := []Point{
		{Name: MeasurementCPUTemperature, Value: r.CPUTemperature},
		{Name: MeasurementTemperature, Value: r.Temperature},
		{Name: MeasurementPressure, Value: r.Pressure},
		{Name: MeasurementSeaLevelPressure, Value: slp},
		{Name: MeasurementHumidity, Value: r.Humidity},
	}
	for i := range points {
		if math.IsNaN(points[i].Value) || math.IsInf(points[i].Value, 0) {
			return nil, fault.Transform("shape points", fmt.Errorf("%s is not finite: %v", points[i].Name, points[i].Value))
		}
		points[i].Tags = t.Tags.Clone()
	}
	return points, nil
}
