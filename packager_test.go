package tevaa

import (
	"errors"
	"testing"
)

func TestBuildReadRequest(t *testing.T) {
	p := NewPackager()

	// Register 5003 (documentation numbering) is wire address 5002 = 0x138A.
	frame, err := p.BuildReadRequest(1, RegTEVValue, 3)
	if err != nil {
		t.Fatalf("BuildReadRequest failed: %v", err)
	}
	assertBytesEqual(t, []byte{0x01, 0x03, 0x13, 0x8A, 0x00, 0x03, 0x20, 0xA5}, frame)

	// Register 201 is wire address 200 = 0x00C8.
	frame, err = p.BuildReadRequest(1, RegTEVWaveformStart, 100)
	if err != nil {
		t.Fatalf("BuildReadRequest failed: %v", err)
	}
	assertBytesEqual(t, []byte{0x01, 0x03, 0x00, 0xC8, 0x00, 0x64, 0xC5, 0xDF}, frame)
}

func TestBuildReadRequestInvalid(t *testing.T) {
	p := NewPackager()
	var vErr *ValidationError

	testCases := []struct {
		name  string
		addr  uint8
		start uint16
		count uint16
	}{
		{"device address 0", 0, 5003, 1},
		{"device address 248", 248, 5003, 1},
		{"start register 0", 1, 0, 1},
		{"count 0", 1, 5003, 0},
		{"count 126", 1, 5003, 126},
		{"range past address space", 1, 0xFFFF, 2},
	}
	for _, tc := range testCases {
		_, err := p.BuildReadRequest(tc.addr, tc.start, tc.count)
		if err == nil {
			t.Errorf("%s: BuildReadRequest should fail", tc.name)
			continue
		}
		if !errors.As(err, &vErr) {
			t.Errorf("%s: expected ValidationError, got %T: %v", tc.name, err, err)
		}
	}
}

func TestBuildWriteRequest(t *testing.T) {
	p := NewPackager()

	// Register 401 is wire address 400 = 0x0190.
	frame, err := p.BuildWriteRequest(1, RegDeviceAddr, []uint16{5})
	if err != nil {
		t.Fatalf("BuildWriteRequest failed: %v", err)
	}
	want := appendCRC([]byte{0x01, 0x10, 0x01, 0x90, 0x00, 0x01, 0x02, 0x00, 0x05})
	assertBytesEqual(t, want, frame)
}

func TestBuildWriteRequestInvalid(t *testing.T) {
	p := NewPackager()
	var vErr *ValidationError

	if _, err := p.BuildWriteRequest(1, RegDeviceAddr, nil); !errors.As(err, &vErr) {
		t.Errorf("empty value list: expected ValidationError, got %v", err)
	}
	if _, err := p.BuildWriteRequest(1, RegDeviceAddr, make([]uint16, 124)); !errors.As(err, &vErr) {
		t.Errorf("124 values: expected ValidationError, got %v", err)
	}
	if _, err := p.BuildWriteRequest(0, RegDeviceAddr, []uint16{1}); !errors.As(err, &vErr) {
		t.Errorf("device address 0: expected ValidationError, got %v", err)
	}
}

func TestParseReadResponse(t *testing.T) {
	p := NewPackager()

	// 3 registers: 50, 5, 40.
	frame := []byte{0x01, 0x03, 0x06, 0x00, 0x32, 0x00, 0x05, 0x00, 0x28, 0x08, 0xAE}
	values, err := p.ParseReadResponse(frame, 1, 3)
	if err != nil {
		t.Fatalf("ParseReadResponse failed: %v", err)
	}
	assertUint16Equal(t, []uint16{50, 5, 40}, values)
}

func TestParseReadResponseLength(t *testing.T) {
	p := NewPackager()
	frame := appendCRC([]byte{0x01, 0x03, 0x06, 0x00, 0x32, 0x00, 0x05, 0x00, 0x28})

	var pErr *ProtocolError
	if _, err := p.ParseReadResponse(frame[:len(frame)-1], 1, 3); !errors.As(err, &pErr) {
		t.Errorf("truncated frame: expected ProtocolError, got %v", err)
	}
	if _, err := p.ParseReadResponse(append(append([]byte{}, frame...), 0x00), 1, 3); !errors.As(err, &pErr) {
		t.Errorf("overlong frame: expected ProtocolError, got %v", err)
	}
	// Valid frame, but the caller asked for a different count.
	if _, err := p.ParseReadResponse(frame, 1, 2); !errors.As(err, &pErr) {
		t.Errorf("count mismatch: expected ProtocolError, got %v", err)
	}
}

// Corrupting any single bit of a valid response must make the parser
// reject the frame instead of returning wrong register values.
func TestParseReadResponseBitFlips(t *testing.T) {
	p := NewPackager()
	valid := appendCRC([]byte{0x01, 0x03, 0x06, 0x00, 0x32, 0x00, 0x05, 0x00, 0x28})

	for i := range valid {
		for bit := 0; bit < 8; bit++ {
			frame := make([]byte, len(valid))
			copy(frame, valid)
			frame[i] ^= 1 << bit

			if _, err := p.ParseReadResponse(frame, 1, 3); err == nil {
				t.Errorf("flipped bit %d of byte %d: frame % X should be rejected", bit, i, frame)
			}
		}
	}
}

func TestParseReadResponseWrongHeader(t *testing.T) {
	p := NewPackager()
	var pErr *ProtocolError

	// Valid CRC, wrong device address.
	frame := appendCRC([]byte{0x02, 0x03, 0x06, 0x00, 0x32, 0x00, 0x05, 0x00, 0x28})
	if _, err := p.ParseReadResponse(frame, 1, 3); !errors.As(err, &pErr) {
		t.Errorf("wrong device address: expected ProtocolError, got %v", err)
	}

	// Valid CRC, wrong function code.
	frame = appendCRC([]byte{0x01, 0x04, 0x06, 0x00, 0x32, 0x00, 0x05, 0x00, 0x28})
	if _, err := p.ParseReadResponse(frame, 1, 3); !errors.As(err, &pErr) {
		t.Errorf("wrong function code: expected ProtocolError, got %v", err)
	}

	// Valid CRC, byte count disagrees with the register count.
	frame = appendCRC([]byte{0x01, 0x03, 0x04, 0x00, 0x32, 0x00, 0x05, 0x00, 0x28})
	if _, err := p.ParseReadResponse(frame, 1, 3); !errors.As(err, &pErr) {
		t.Errorf("wrong byte count: expected ProtocolError, got %v", err)
	}
}

// An exception response is 5 bytes no matter how many registers the
// request asked for; it must decode to a DeviceError, not a length error.
func TestParseReadResponseException(t *testing.T) {
	p := NewPackager()
	frame := []byte{0x01, 0x83, 0x02, 0xC0, 0xF1}

	for _, count := range []uint16{1, 3, 100} {
		_, err := p.ParseReadResponse(frame, 1, count)
		var dErr *DeviceError
		if !errors.As(err, &dErr) {
			t.Fatalf("count %d: expected DeviceError, got %v", count, err)
		}
		if dErr.FunctionCode != FuncCodeReadHoldingRegisters {
			t.Errorf("count %d: FunctionCode = %02X, want %02X", count, dErr.FunctionCode, FuncCodeReadHoldingRegisters)
		}
		if dErr.ExceptionCode != 0x02 {
			t.Errorf("count %d: ExceptionCode = %02X, want 02", count, dErr.ExceptionCode)
		}
	}
}

func TestParseReadResponseExceptionBadCRC(t *testing.T) {
	p := NewPackager()
	frame := []byte{0x01, 0x83, 0x02, 0x00, 0x00}

	var pErr *ProtocolError
	if _, err := p.ParseReadResponse(frame, 1, 3); !errors.As(err, &pErr) {
		t.Errorf("exception with bad CRC: expected ProtocolError, got %v", err)
	}
}

func TestParseWriteResponse(t *testing.T) {
	p := NewPackager()

	// Echo for a 1-register write at register 401 (wire 0x0190).
	frame := []byte{0x01, 0x10, 0x01, 0x90, 0x00, 0x01, 0x00, 0x18}
	if err := p.ParseWriteResponse(frame, 1, RegDeviceAddr, 1); err != nil {
		t.Fatalf("ParseWriteResponse failed: %v", err)
	}

	var pErr *ProtocolError
	// Echoed start address off by one.
	bad := appendCRC([]byte{0x01, 0x10, 0x01, 0x91, 0x00, 0x01})
	if err := p.ParseWriteResponse(bad, 1, RegDeviceAddr, 1); !errors.As(err, &pErr) {
		t.Errorf("wrong echoed address: expected ProtocolError, got %v", err)
	}
	// Echoed register count mismatch.
	bad = appendCRC([]byte{0x01, 0x10, 0x01, 0x90, 0x00, 0x02})
	if err := p.ParseWriteResponse(bad, 1, RegDeviceAddr, 1); !errors.As(err, &pErr) {
		t.Errorf("wrong echoed count: expected ProtocolError, got %v", err)
	}
}

func TestParseWriteResponseException(t *testing.T) {
	p := NewPackager()
	frame := appendCRC([]byte{0x01, 0x90, 0x03})

	err := p.ParseWriteResponse(frame, 1, RegDeviceAddr, 1)
	var dErr *DeviceError
	if !errors.As(err, &dErr) {
		t.Fatalf("expected DeviceError, got %v", err)
	}
	if dErr.FunctionCode != FuncCodeWriteMultipleRegisters || dErr.ExceptionCode != 0x03 {
		t.Errorf("DeviceError = func %02X code %02X, want func 10 code 03", dErr.FunctionCode, dErr.ExceptionCode)
	}
}

// Round trip: every request the Packager builds must verify its own CRC
// and carry the 0-based wire address.
func TestBuildRequestRoundTrip(t *testing.T) {
	p := NewPackager()
	for _, rng := range []RegisterRange{SensorDataRange, TEVWaveformRange, AAWaveformRange, {Start: RegBaudRate, Count: 1}} {
		frame, err := p.BuildReadRequest(1, rng.Start, rng.Count)
		if err != nil {
			t.Fatalf("BuildReadRequest(%v) failed: %v", rng, err)
		}
		if len(frame) != readRequestLen {
			t.Errorf("request for %v has length %d, want %d", rng, len(frame), readRequestLen)
		}
		if !p.VerifyCRC(frame) {
			t.Errorf("request for %v fails its own CRC", rng)
		}
		wire := uint16(frame[2])<<8 | uint16(frame[3])
		if wire != rng.Start-1 {
			t.Errorf("request for %v carries wire address %d, want %d", rng, wire, rng.Start-1)
		}
	}
}
