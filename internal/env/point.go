// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package env

// Measurement names, one point each per tick.
const (
	MeasurementCPUTemperature   = "cpu_temperature"
	MeasurementTemperature      = "temperature"
	MeasurementPressure         = "pressure"
	MeasurementSeaLevelPressure = "sea_level_pressure"
	MeasurementHumidity         = "humidity"
)

// Tags is the fixed tag set attached to every point.
type Tags map[string]string

// Clone returns a copy that can be handed to a point without aliasing.
func (t Tags) Clone() Tags {
	out := make(Tags, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

// Point is a single named, tagged value ready for time-series storage.
type Point struct {
	Name  string  `json:"measurement"`
	Tags  Tags    `json:"tags"`
	Value float64 `json:"value"`
}

// Fields returns the point's field set as written to the database.
func (p Point) Fields() map[string]interface{} {
	return map[string]interface{}{"value": p.Value}
}
