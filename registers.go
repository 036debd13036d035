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

// Holding register addresses of the TEV/AA combined sensor, in the
// 1-based numbering used by the device documentation. The single
// conversion to 0-based wire addresses happens in the Packager.
const (
	RegTEVValue          uint16 = 5003 // TEV reading (dB), read-only
	RegTEVDischargeCount uint16 = 5004 // cumulative discharge count, read-only
	RegAAValue           uint16 = 5005 // AA/AE reading (dB/mV), read-only

	RegTEVWaveformStart uint16 = 201 // TEV waveform samples, 201..300
	RegTEVWaveformEnd   uint16 = 300
	RegAAWaveformStart  uint16 = 301 // AA waveform samples, 301..400
	RegAAWaveformEnd    uint16 = 400

	RegDeviceAddr   uint16 = 401 // device address 1-247, read/write
	RegBaudRate     uint16 = 402 // baud rate code, read/write
	RegTEVThreshold uint16 = 404 // TEV background threshold, read/write
	RegAAThreshold  uint16 = 405 // AA background threshold, read/write
)

// WaveformLen is the number of samples in one waveform block.
const WaveformLen = int(RegTEVWaveformEnd - RegTEVWaveformStart + 1)

// Modbus limits for function codes 0x03 and 0x10.
const (
	maxReadCount  = 125
	maxWriteCount = 123
)

// RegisterRange is a contiguous block of holding registers, addressed in
// documentation numbering.
type RegisterRange struct {
	Start uint16 // first register, 1-based
	Count uint16 // number of 16-bit words
}

// Validate checks that the range is non-empty, starts at a documented
// address and fits in a single read request.
func (r RegisterRange) Validate() error {
	if r.Start == 0 {
		return &ValidationError{Field: "register range", Reason: "start address 0 (documentation numbering starts at 1)"}
	}
	if r.Count == 0 {
		return &ValidationError{Field: "register range", Reason: "count must be at least 1"}
	}
	if r.Count > maxReadCount {
		return &ValidationError{Field: "register range", Reason: "count exceeds 125 registers"}
	}
	if uint32(r.Start)+uint32(r.Count)-1 > 0xFFFF {
		return &ValidationError{Field: "register range", Reason: "range exceeds register address space"}
	}
	return nil
}

// Named ranges used by the typed session operations.
var (
	// SensorDataRange covers TEV value, TEV discharge count and AA value
	// in one 3-word read.
	SensorDataRange = RegisterRange{Start: RegTEVValue, Count: 3}

	TEVWaveformRange = RegisterRange{Start: RegTEVWaveformStart, Count: uint16(WaveformLen)}
	AAWaveformRange  = RegisterRange{Start: RegAAWaveformStart, Count: uint16(WaveformLen)}
)
