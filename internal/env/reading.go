// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package env

// Reading is one tick's snapshot of the environment sensor and the host CPU.
// The database assigns the timestamp at write time.
type Reading struct {
	Temperature    float64 `json:"temp_c"`       // °C
	Humidity       float64 `json:"humidity_rh"`  // %RH
	Pressure       float64 `json:"pressure_hpa"` // hPa
	CPUTemperature float64 `json:"cpu_temp_c"`   // °C
}
