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
	"fmt"
	"time"
)

// ConnectError reports a failure to open the transport or a hard I/O
// failure on an established link. Callers should tear the session down.
type ConnectError struct {
	Port string
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("tevaa: connection failure on %s: %v", e.Port, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// TimeoutError reports that the device did not answer within the
// configured timeout. Safe to retry.
type TimeoutError struct {
	Op      string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("tevaa: %s timed out after %v", e.Op, e.Timeout)
}

// ProtocolError reports a malformed or corrupted response frame: wrong
// length, wrong function code, wrong byte count, or CRC mismatch.
// Safe to retry.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("tevaa: protocol error: %s", e.Reason)
}

// DeviceError is a Modbus exception response: the sensor understood the
// request and rejected it. Not automatically retryable.
type DeviceError struct {
	FunctionCode  uint8 // requested function code, high bit stripped
	ExceptionCode uint8
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("tevaa: device exception (func %02X): code 0x%02X - %s",
		e.FunctionCode, e.ExceptionCode, exceptionMessage(e.ExceptionCode))
}

// ValidationError reports a caller-supplied parameter out of range.
// Produces no wire traffic.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("tevaa: invalid %s: %s", e.Field, e.Reason)
}

// exceptionMessage returns a human-readable message for a Modbus exception code.
func exceptionMessage(exceptionCode uint8) string {
	switch exceptionCode {
	case 0x01:
		return "Illegal function"
	case 0x02:
		return "Illegal data address"
	case 0x03:
		return "Illegal data value"
	case 0x04:
		return "Slave device failure"
	case 0x05:
		return "Acknowledge"
	case 0x06:
		return "Slave device busy"
	case 0x08:
		return "Memory parity error"
	case 0x0A:
		return "Gateway path unavailable"
	case 0x0B:
		return "Gateway target device failed to respond"
	default:
		return "Unknown exception code"
	}
}
