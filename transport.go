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
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	serial "github.com/hootrhino/goserial"
)

// Transport is a half-duplex byte stream to the sensor. At most one
// request may be outstanding at a time; the Session enforces that.
type Transport interface {
	Open() error
	Write(p []byte) error
	// Read collects up to maxLen response bytes. It returns what arrived
	// when the frame ends or the timeout elapses; a short or empty
	// result with nil error means the device went quiet.
	Read(maxLen int, timeout time.Duration) ([]byte, error)
	Close() error
}

// interCharTimeout is the quiet interval after which a started frame is
// considered complete (3.5 chars at 9600 baud and above).
const interCharTimeout = 5 * time.Millisecond

// SerialTransport implements Transport over a serial port, 8 data bits,
// no parity, 1 stop bit.
type SerialTransport struct {
	mu       sync.Mutex
	port     io.ReadWriteCloser
	portName string
	baudRate int
}

// NewSerialTransport creates a transport for the named port at the given
// baud rate. The port is not opened until Open is called.
func NewSerialTransport(portName string, baudRate int) *SerialTransport {
	return &SerialTransport{
		portName: portName,
		baudRate: baudRate,
	}
}

// Open opens the serial port. Calling Open on an open transport is a
// no-op.
func (t *SerialTransport) Open() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.port != nil {
		return nil
	}

	port, err := serial.Open(&serial.Config{
		Address:  t.portName,
		BaudRate: t.baudRate,
		DataBits: 8,
		StopBits: 1,
		Parity:   "N",
		Timeout:  interCharTimeout,
	})
	if err != nil {
		return fmt.Errorf("open %s: %w", t.portName, err)
	}
	t.port = port
	return nil
}

// Write writes the whole frame to the port.
func (t *SerialTransport) Write(p []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.port == nil {
		return fmt.Errorf("serial port %s not open", t.portName)
	}
	if len(p) == 0 {
		return fmt.Errorf("cannot write empty frame")
	}

	written := 0
	for written < len(p) {
		n, err := t.port.Write(p[written:])
		if err != nil {
			return fmt.Errorf("write failed after %d bytes: %w", written, err)
		}
		written += n
	}
	return nil
}

// Read accumulates response bytes until maxLen bytes arrived, the frame
// goes quiet for interCharTimeout, or the overall timeout elapses. The
// per-read timeout is configured on the port at Open, so each Read call
// on the port returns after at most interCharTimeout of silence.
func (t *SerialTransport) Read(maxLen int, timeout time.Duration) ([]byte, error) {
	t.mu.Lock()
	port := t.port
	t.mu.Unlock()
	if port == nil {
		return nil, fmt.Errorf("serial port %s not open", t.portName)
	}

	frame := make([]byte, 0, maxLen)
	buf := make([]byte, maxLen)
	deadline := time.Now().Add(timeout)

	for len(frame) < maxLen {
		n, err := port.Read(buf[:maxLen-len(frame)])
		if n > 0 {
			frame = append(frame, buf[:n]...)
			continue
		}
		if len(frame) > 0 {
			// Frame started and the line went quiet: frame complete.
			// Exception responses are shorter than maxLen, so a quiet
			// line is the only end-of-frame signal.
			return frame, nil
		}
		if !time.Now().Before(deadline) {
			return frame, nil
		}
		if err != nil && !isTimeoutErr(err) {
			return nil, fmt.Errorf("read failed: %w", err)
		}
	}
	return frame, nil
}

// isTimeoutErr reports whether a port read error is a timeout rather
// than a hard I/O failure.
func isTimeoutErr(err error) bool {
	type timeouter interface{ Timeout() bool }
	var te timeouter
	if errors.As(err, &te) {
		return te.Timeout()
	}
	return strings.Contains(err.Error(), "timeout")
}

// Close closes the serial port. Idempotent.
func (t *SerialTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.port == nil {
		return nil
	}
	err := t.port.Close()
	t.port = nil
	return err
}
