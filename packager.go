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
	"encoding/binary"
	"fmt"
)

// Modbus function codes used by the sensor. All writes use 0x10, even
// for a single register, so request and response shapes stay uniform.
const (
	FuncCodeReadHoldingRegisters   uint8 = 0x03
	FuncCodeWriteMultipleRegisters uint8 = 0x10

	exceptionFlag uint8 = 0x80
)

// Frame geometry for the two supported function codes.
const (
	readRequestLen       = 8 // addr + func + start(2) + count(2) + crc(2)
	writeResponseLen     = 8 // addr + func + start(2) + count(2) + crc(2)
	exceptionResponseLen = 5 // addr + func|0x80 + code + crc(2)
)

// readResponseLen returns the expected length of a read response
// carrying count registers: addr + func + byte count + data + crc.
func readResponseLen(count uint16) int {
	return 5 + 2*int(count)
}

// Packager builds Modbus RTU request frames and parses response frames
// for the sensor. Register addresses are taken in documentation
// numbering (1-based) and converted to 0-based wire addresses here,
// and only here.
type Packager struct {
	crcTable [256]uint16 // pre-calculated CRC table for response checking
}

// NewPackager creates a Packager with a pre-calculated CRC table.
func NewPackager() *Packager {
	p := &Packager{}
	p.initCRCTable()
	return p
}

// initCRCTable initializes the CRC-16 lookup table (polynomial 0xA001).
func (p *Packager) initCRCTable() {
	const polynomial = 0xA001

	for i := 0; i < 256; i++ {
		crc := uint16(i)
		for j := 0; j < 8; j++ {
			if crc&1 != 0 {
				crc = (crc >> 1) ^ polynomial
			} else {
				crc >>= 1
			}
		}
		p.crcTable[i] = crc
	}
}

// calculateCRC calculates CRC-16 for given data using the lookup table.
func (p *Packager) calculateCRC(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		tableIndex := uint8(crc) ^ b
		crc = (crc >> 8) ^ p.crcTable[tableIndex]
	}
	return crc
}

// VerifyCRC checks the trailing CRC of a frame against the CRC computed
// over all preceding bytes.
func (p *Packager) VerifyCRC(frame []byte) bool {
	if len(frame) < 4 {
		return false
	}
	dataLen := len(frame) - 2
	calculated := p.calculateCRC(frame[:dataLen])
	received := uint16(frame[dataLen]) | (uint16(frame[dataLen+1]) << 8)
	return calculated == received
}

// wireAddress converts a documentation register number to its 0-based
// wire address.
func wireAddress(register uint16) uint16 {
	return register - 1
}

// BuildReadRequest builds a Read Holding Registers (0x03) request for
// count registers starting at startRegister (documentation numbering).
func (p *Packager) BuildReadRequest(deviceAddr uint8, startRegister, count uint16) ([]byte, error) {
	if err := ValidateDeviceAddr(deviceAddr); err != nil {
		return nil, err
	}
	if err := (RegisterRange{Start: startRegister, Count: count}).Validate(); err != nil {
		return nil, err
	}

	frame := make([]byte, 6, readRequestLen)
	frame[0] = deviceAddr
	frame[1] = FuncCodeReadHoldingRegisters
	binary.BigEndian.PutUint16(frame[2:4], wireAddress(startRegister))
	binary.BigEndian.PutUint16(frame[4:6], count)
	return p.appendCRC(frame), nil
}

// BuildWriteRequest builds a Write Multiple Registers (0x10) request
// for values starting at startRegister (documentation numbering).
func (p *Packager) BuildWriteRequest(deviceAddr uint8, startRegister uint16, values []uint16) ([]byte, error) {
	if err := ValidateDeviceAddr(deviceAddr); err != nil {
		return nil, err
	}
	count := uint16(len(values))
	if count == 0 || count > maxWriteCount {
		return nil, &ValidationError{
			Field:  "register values",
			Reason: fmt.Sprintf("%d values, must be 1-%d", count, maxWriteCount),
		}
	}
	if err := (RegisterRange{Start: startRegister, Count: count}).Validate(); err != nil {
		return nil, err
	}

	byteCount := 2 * count
	frame := make([]byte, 7+byteCount, 9+byteCount)
	frame[0] = deviceAddr
	frame[1] = FuncCodeWriteMultipleRegisters
	binary.BigEndian.PutUint16(frame[2:4], wireAddress(startRegister))
	binary.BigEndian.PutUint16(frame[4:6], count)
	frame[6] = byte(byteCount)
	for i, v := range values {
		binary.BigEndian.PutUint16(frame[7+2*i:9+2*i], v)
	}
	return p.appendCRC(frame), nil
}

// appendCRC appends the frame CRC, low byte first.
func (p *Packager) appendCRC(frame []byte) []byte {
	crc := p.calculateCRC(frame)
	return append(frame, byte(crc&0xFF), byte(crc>>8))
}

// parseException checks whether frame is an exception response to the
// given function code and, if so, decodes it. An exception frame that
// fails its own CRC is reported as a ProtocolError, not a DeviceError.
func (p *Packager) parseException(frame []byte, funcCode uint8) error {
	if len(frame) < 2 || frame[1] != funcCode|exceptionFlag {
		return nil
	}
	if len(frame) != exceptionResponseLen {
		return &ProtocolError{
			Reason: fmt.Sprintf("exception response length %d, expected %d", len(frame), exceptionResponseLen),
		}
	}
	if !p.VerifyCRC(frame) {
		return &ProtocolError{Reason: "CRC mismatch on exception response"}
	}
	return &DeviceError{FunctionCode: funcCode, ExceptionCode: frame[2]}
}

// ParseReadResponse validates a Read Holding Registers response and
// decodes its register values. Any validation failure yields a typed
// error and no decoded values.
func (p *Packager) ParseReadResponse(frame []byte, deviceAddr uint8, count uint16) ([]uint16, error) {
	if err := p.parseException(frame, FuncCodeReadHoldingRegisters); err != nil {
		return nil, err
	}

	expectedLen := readResponseLen(count)
	if len(frame) != expectedLen {
		return nil, &ProtocolError{
			Reason: fmt.Sprintf("read response length %d, expected %d", len(frame), expectedLen),
		}
	}
	if !p.VerifyCRC(frame) {
		return nil, &ProtocolError{Reason: "CRC mismatch on read response"}
	}
	if frame[0] != deviceAddr {
		return nil, &ProtocolError{
			Reason: fmt.Sprintf("response device address %d, expected %d", frame[0], deviceAddr),
		}
	}
	if frame[1] != FuncCodeReadHoldingRegisters {
		return nil, &ProtocolError{
			Reason: fmt.Sprintf("response function code %02X, expected %02X", frame[1], FuncCodeReadHoldingRegisters),
		}
	}
	if int(frame[2]) != 2*int(count) {
		return nil, &ProtocolError{
			Reason: fmt.Sprintf("response byte count %d, expected %d", frame[2], 2*count),
		}
	}

	values := make([]uint16, count)
	for i := range values {
		values[i] = binary.BigEndian.Uint16(frame[3+2*i : 5+2*i])
	}
	return values, nil
}

// ParseWriteResponse validates a Write Multiple Registers response,
// checking the echoed start address and register count.
func (p *Packager) ParseWriteResponse(frame []byte, deviceAddr uint8, startRegister, count uint16) error {
	if err := p.parseException(frame, FuncCodeWriteMultipleRegisters); err != nil {
		return err
	}

	if len(frame) != writeResponseLen {
		return &ProtocolError{
			Reason: fmt.Sprintf("write response length %d, expected %d", len(frame), writeResponseLen),
		}
	}
	if !p.VerifyCRC(frame) {
		return &ProtocolError{Reason: "CRC mismatch on write response"}
	}
	if frame[0] != deviceAddr {
		return &ProtocolError{
			Reason: fmt.Sprintf("response device address %d, expected %d", frame[0], deviceAddr),
		}
	}
	if frame[1] != FuncCodeWriteMultipleRegisters {
		return &ProtocolError{
			Reason: fmt.Sprintf("response function code %02X, expected %02X", frame[1], FuncCodeWriteMultipleRegisters),
		}
	}

	echoedAddr := binary.BigEndian.Uint16(frame[2:4])
	if echoedAddr != wireAddress(startRegister) {
		return &ProtocolError{
			Reason: fmt.Sprintf("write response echoed address %d, expected %d", echoedAddr, wireAddress(startRegister)),
		}
	}
	echoedCount := binary.BigEndian.Uint16(frame[4:6])
	if echoedCount != count {
		return &ProtocolError{
			Reason: fmt.Sprintf("write response echoed count %d, expected %d", echoedCount, count),
		}
	}
	return nil
}
