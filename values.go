// Copyright (C) 2025  yangyuqing
//
// This program is free software; you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation; either version 2 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License along
// with this program; if not, see <https://www.gnu.org/licenses/>.

package tevaa

import (
	"encoding/json"
	"fmt"
)

// SensorValues is one decoded snapshot of the sensor's live readings,
// read as a single 3-word block starting at RegTEVValue.
type SensorValues struct {
	TEVValue          uint16 `json:"tev_value"`           // dB
	TEVDischargeCount uint16 `json:"tev_discharge_count"` // cumulative
	AAValue           uint16 `json:"aa_value"`            // dB/mV
}

// To string
func (v SensorValues) String() string {
	jsonData, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}
	return string(jsonData)
}

// decodeSensorValues maps the 3-word sensor data block to typed readings.
func decodeSensorValues(words []uint16) (SensorValues, error) {
	if len(words) != int(SensorDataRange.Count) {
		return SensorValues{}, &ProtocolError{
			Reason: fmt.Sprintf("sensor data block has %d words, expected %d", len(words), SensorDataRange.Count),
		}
	}
	return SensorValues{
		TEVValue:          words[0],
		TEVDischargeCount: words[1],
		AAValue:           words[2],
	}, nil
}

// Waveform is one ordered waveform block of exactly WaveformLen samples.
// Sample i corresponds to register start+i of the source range.
type Waveform []uint16

// decodeWaveform validates the sample count of a waveform read.
func decodeWaveform(words []uint16) (Waveform, error) {
	if len(words) != WaveformLen {
		return nil, &ProtocolError{
			Reason: fmt.Sprintf("waveform block has %d samples, expected %d", len(words), WaveformLen),
		}
	}
	wf := make(Waveform, WaveformLen)
	copy(wf, words)
	return wf, nil
}

// WaveformKind selects which waveform block to read.
type WaveformKind int

const (
	WaveformTEV WaveformKind = iota
	WaveformAA
)

func (k WaveformKind) String() string {
	switch k {
	case WaveformTEV:
		return "TEV"
	case WaveformAA:
		return "AA"
	default:
		return fmt.Sprintf("WaveformKind(%d)", int(k))
	}
}

// registerRange returns the register block backing the waveform kind.
func (k WaveformKind) registerRange() (RegisterRange, error) {
	switch k {
	case WaveformTEV:
		return TEVWaveformRange, nil
	case WaveformAA:
		return AAWaveformRange, nil
	default:
		return RegisterRange{}, &ValidationError{Field: "waveform kind", Reason: fmt.Sprintf("unknown kind %d", int(k))}
	}
}

// ThresholdKind selects the TEV or AA background threshold register.
type ThresholdKind int

const (
	ThresholdTEV ThresholdKind = iota
	ThresholdAA
)

func (k ThresholdKind) String() string {
	switch k {
	case ThresholdTEV:
		return "TEV"
	case ThresholdAA:
		return "AA"
	default:
		return fmt.Sprintf("ThresholdKind(%d)", int(k))
	}
}

func (k ThresholdKind) register() (uint16, error) {
	switch k {
	case ThresholdTEV:
		return RegTEVThreshold, nil
	case ThresholdAA:
		return RegAAThreshold, nil
	default:
		return 0, &ValidationError{Field: "threshold kind", Reason: fmt.Sprintf("unknown kind %d", int(k))}
	}
}

// baudRates is the enumerated set the sensor accepts, in register-code
// order. The register stores the code, not the rate: 115200 does not fit
// in a 16-bit word.
var baudRates = []int{1200, 2400, 4800, 9600, 19200, 38400, 57600, 115200}

// SupportedBaudRates returns the enumerated baud rate set.
func SupportedBaudRates() []int {
	out := make([]int, len(baudRates))
	copy(out, baudRates)
	return out
}

// ValidateBaudRate checks membership in the enumerated set.
func ValidateBaudRate(rate int) error {
	for _, r := range baudRates {
		if r == rate {
			return nil
		}
	}
	return &ValidationError{
		Field:  "baud rate",
		Reason: fmt.Sprintf("%d is not one of %v", rate, baudRates),
	}
}

// encodeBaudRate converts a baud rate to its register code.
func encodeBaudRate(rate int) (uint16, error) {
	for i, r := range baudRates {
		if r == rate {
			return uint16(i), nil
		}
	}
	return 0, &ValidationError{
		Field:  "baud rate",
		Reason: fmt.Sprintf("%d is not one of %v", rate, baudRates),
	}
}

// decodeBaudRate converts a register code back to a baud rate.
func decodeBaudRate(code uint16) (int, error) {
	if int(code) >= len(baudRates) {
		return 0, &ProtocolError{Reason: fmt.Sprintf("unknown baud rate code %d", code)}
	}
	return baudRates[code], nil
}

// ValidateDeviceAddr checks a Modbus device address.
func ValidateDeviceAddr(addr uint8) error {
	if addr < 1 || addr > 247 {
		return &ValidationError{
			Field:  "device address",
			Reason: fmt.Sprintf("%d outside 1-247", addr),
		}
	}
	return nil
}
