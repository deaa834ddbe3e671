// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	nmea "github.com/adrianmo/go-nmea"
	serial "github.com/jacobsa/go-serial/serial"
)

// DefaultSentenceBudget bounds how many lines one accessor may consume
// looking for its transducer.
const DefaultSentenceBudget = 64

// XDR transducer types.
const (
	xdrTemperature = "C"
	xdrHumidity    = "H"
	xdrPressure    = "P"
)

// XDRSensor reads a weather transducer that emits NMEA 0183 XDR sentences.
type XDRSensor struct {
	port   io.ReadCloser
	reader *bufio.Reader
	budget int
}

// OpenXDR opens the serial port the transducer is attached to.
func OpenXDR(portName string, baudRate uint) (*XDRSensor, error) {
	serialOpts := serial.OpenOptions{
		PortName:              portName,
		BaudRate:              baudRate,
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}

	port, err := serial.Open(serialOpts)
	if err != nil {
		return nil, fmt.Errorf("XDR serial open %s: %w", portName, err)
	}
	return NewXDRSensor(port, DefaultSentenceBudget), nil
}

// NewXDRSensor reads sentences from port. A budget <= 0 uses
// DefaultSentenceBudget.
func NewXDRSensor(port io.ReadCloser, budget int) *XDRSensor {
	if budget <= 0 {
		budget = DefaultSentenceBudget
	}
	return &XDRSensor{port: port, reader: bufio.NewReader(port), budget: budget}
}

// Temperature returns °C from the first C transducer.
func (x *XDRSensor) Temperature() (float64, error) {
	m, err := x.next(xdrTemperature)
	if err != nil {
		return 0, err
	}
	switch m.Unit {
	case "C":
		return m.Value, nil
	case "F":
		return (m.Value - 32) * 5 / 9, nil
	case "K":
		return m.Value - 273.15, nil
	default:
		return 0, fmt.Errorf("XDR temperature unit %q not supported", m.Unit)
	}
}

// Humidity returns %RH from the first H transducer.
func (x *XDRSensor) Humidity() (float64, error) {
	m, err := x.next(xdrHumidity)
	if err != nil {
		return 0, err
	}
	if m.Unit != "P" {
		return 0, fmt.Errorf("XDR humidity unit %q not supported", m.Unit)
	}
	return m.Value, nil
}

// Pressure returns hPa from the first P transducer.
func (x *XDRSensor) Pressure() (float64, error) {
	m, err := x.next(xdrPressure)
	if err != nil {
		return 0, err
	}
	switch m.Unit {
	case "B":
		return m.Value * 1000.0, nil // 1 bar = 1000 hPa
	case "P":
		return m.Value / 100.0, nil // 1 hPa = 100 Pa
	default:
		return 0, fmt.Errorf("XDR pressure unit %q not supported", m.Unit)
	}
}

// Close closes the serial port.
func (x *XDRSensor) Close() error {
	return x.port.Close()
}

// next consumes lines until an XDR sentence carries the wanted transducer.
func (x *XDRSensor) next(transducer string) (nmea.XDRMeasurement, error) {
	for i := 0; i < x.budget; i++ {
		line, err := x.reader.ReadString('\n')
		line = strings.TrimSpace(line)
		if err != nil && line == "" {
			return nmea.XDRMeasurement{}, fmt.Errorf("XDR read: %w", err)
		}

		// NMEA sentences usually start with '$'
		if !strings.HasPrefix(line, "$") {
			continue
		}

		sentence, perr := nmea.Parse(line)
		if perr != nil {
			// noisy line or partial sentence
			continue
		}
		if sentence.DataType() != nmea.TypeXDR {
			continue
		}

		for _, m := range sentence.(nmea.XDR).Measurements {
			if m.TransducerType == transducer {
				return m, nil
			}
		}
	}
	return nmea.XDRMeasurement{}, fmt.Errorf("no %s transducer within %d sentences", transducer, x.budget)
}
