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
	"sync"
	"time"
)

// State is the connection state of a Session.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Config holds the connection parameters of a sensor session.
type Config struct {
	Port       string        // serial port name, e.g. "/dev/ttyUSB0" or "COM3"
	BaudRate   int           // one of SupportedBaudRates, default 9600
	DeviceAddr uint8         // Modbus device address 1-247, default 1
	Timeout    time.Duration // per-exchange response timeout, default 1s
}

// withDefaults fills zero fields with the sensor's factory settings.
func (c Config) withDefaults() Config {
	if c.BaudRate == 0 {
		c.BaudRate = 9600
	}
	if c.DeviceAddr == 0 {
		c.DeviceAddr = 1
	}
	if c.Timeout == 0 {
		c.Timeout = time.Second
	}
	return c
}

func (c Config) validate() error {
	if c.Port == "" {
		return &ValidationError{Field: "port", Reason: "port name is empty"}
	}
	if err := ValidateBaudRate(c.BaudRate); err != nil {
		return err
	}
	return ValidateDeviceAddr(c.DeviceAddr)
}

var errNotConnected = errors.New("session not connected")

// exchange is one request/response cycle submitted to the worker.
type exchange struct {
	op      string
	frame   []byte
	respLen int
	reply   chan exchangeResult
}

type exchangeResult struct {
	frame []byte
	err   error
}

// Session owns the connection to one sensor and serializes every
// request/response cycle against its half-duplex Transport. A dedicated
// worker goroutine owns the Transport; concurrent callers queue on an
// unbuffered channel, so partial frames can never interleave on the wire.
type Session struct {
	cfg      Config
	packager *Packager

	mu         sync.Mutex // guards state, deviceAddr, transport, worker channels
	state      State
	deviceAddr uint8
	transport  Transport
	reqCh      chan *exchange
	closeCh    chan struct{}
	wg         sync.WaitGroup

	logger io.Writer
}

// NewSession creates a session over a serial transport built from cfg.
// The transport is not opened until Connect.
func NewSession(cfg Config) (*Session, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return newSession(cfg, NewSerialTransport(cfg.Port, cfg.BaudRate)), nil
}

// NewSessionWithTransport creates a session over a caller-supplied
// Transport. Used for custom links and for testing against a simulated
// sensor.
func NewSessionWithTransport(cfg Config, t Transport) (*Session, error) {
	cfg = cfg.withDefaults()
	if cfg.Port == "" {
		cfg.Port = "custom"
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if t == nil {
		return nil, &ValidationError{Field: "transport", Reason: "transport is nil"}
	}
	return newSession(cfg, t), nil
}

func newSession(cfg Config, t Transport) *Session {
	return &Session{
		cfg:        cfg,
		packager:   NewPackager(),
		state:      StateDisconnected,
		deviceAddr: cfg.DeviceAddr,
		transport:  t,
	}
}

// SetLogger sets the debug log destination. A nil writer disables logging.
func (s *Session) SetLogger(w io.Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger = w
}

func (s *Session) logf(format string, args ...any) {
	s.mu.Lock()
	w := s.logger
	s.mu.Unlock()
	if w != nil {
		fmt.Fprintf(w, format, args...)
	}
}

// State returns the current connection state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// DeviceAddr returns the active device address used for request frames.
func (s *Session) DeviceAddr() uint8 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deviceAddr
}

// Connect opens the transport and starts the exchange worker.
// Idempotent: calling Connect on a connected session is a no-op.
func (s *Session) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateConnected {
		return nil
	}

	s.state = StateConnecting
	if err := s.transport.Open(); err != nil {
		s.state = StateDisconnected
		return &ConnectError{Port: s.cfg.Port, Err: err}
	}

	s.reqCh = make(chan *exchange) // unbuffered: a send hands off to the worker
	s.closeCh = make(chan struct{})
	s.wg.Add(1)
	go s.worker(s.reqCh, s.closeCh)

	s.state = StateConnected
	if s.logger != nil {
		fmt.Fprintf(s.logger, "tevaa: connected to %s (device %d, %d baud)\n", s.cfg.Port, s.deviceAddr, s.cfg.BaudRate)
	}
	return nil
}

// Disconnect stops the worker and closes the transport. Always succeeds
// and is idempotent. An in-flight exchange finishes before the worker
// exits; queued callers get a connection error.
func (s *Session) Disconnect() error {
	s.mu.Lock()
	if s.state != StateConnected {
		s.mu.Unlock()
		return nil
	}
	s.state = StateDisconnected
	close(s.closeCh)
	s.mu.Unlock()

	s.wg.Wait()
	if err := s.transport.Close(); err != nil {
		s.logf("WARNING: tevaa: closing transport: %v\n", err)
	}
	s.logf("tevaa: disconnected from %s\n", s.cfg.Port)
	return nil
}

// worker owns the Transport: it performs one exchange at a time until
// the session disconnects.
func (s *Session) worker(reqCh chan *exchange, closeCh chan struct{}) {
	defer s.wg.Done()
	for {
		select {
		case <-closeCh:
			return
		case ex := <-reqCh:
			frame, err := s.roundTrip(ex)
			ex.reply <- exchangeResult{frame: frame, err: err}
		}
	}
}

// roundTrip writes one request frame and collects the response. Hard
// transport failures surface as ConnectError, silence as TimeoutError.
func (s *Session) roundTrip(ex *exchange) ([]byte, error) {
	if err := s.transport.Write(ex.frame); err != nil {
		return nil, &ConnectError{Port: s.cfg.Port, Err: err}
	}
	resp, err := s.transport.Read(ex.respLen, s.cfg.Timeout)
	if err != nil {
		return nil, &ConnectError{Port: s.cfg.Port, Err: err}
	}
	if len(resp) == 0 {
		return nil, &TimeoutError{Op: ex.op, Timeout: s.cfg.Timeout}
	}
	return resp, nil
}

// submit queues an exchange on the worker and waits for its result.
func (s *Session) submit(op string, frame []byte, respLen int) ([]byte, error) {
	s.mu.Lock()
	if s.state != StateConnected {
		s.mu.Unlock()
		return nil, &ConnectError{Port: s.cfg.Port, Err: errNotConnected}
	}
	reqCh, closeCh := s.reqCh, s.closeCh
	s.mu.Unlock()

	ex := &exchange{op: op, frame: frame, respLen: respLen, reply: make(chan exchangeResult, 1)}
	select {
	case reqCh <- ex:
	case <-closeCh:
		return nil, &ConnectError{Port: s.cfg.Port, Err: errNotConnected}
	}
	res := <-ex.reply
	if res.err != nil {
		s.logf("ERROR: tevaa: %s: %v\n", op, res.err)
	}
	return res.frame, res.err
}

// ReadRegisters reads a contiguous register range and returns its words.
func (s *Session) ReadRegisters(rng RegisterRange) ([]uint16, error) {
	addr := s.DeviceAddr()
	frame, err := s.packager.BuildReadRequest(addr, rng.Start, rng.Count)
	if err != nil {
		return nil, err
	}

	op := fmt.Sprintf("read %d registers at %d", rng.Count, rng.Start)
	resp, err := s.submit(op, frame, readResponseLen(rng.Count))
	if err != nil {
		return nil, err
	}
	values, err := s.packager.ParseReadResponse(resp, addr, rng.Count)
	if err != nil {
		s.logf("ERROR: tevaa: %s: %v\n", op, err)
		return nil, err
	}
	s.logf("DEBUG: tevaa: %s ok\n", op)
	return values, nil
}

// WriteRegisters writes values to a contiguous block starting at
// startRegister (documentation numbering). All writes use function
// code 0x10, even for a single register.
func (s *Session) WriteRegisters(startRegister uint16, values []uint16) error {
	addr := s.DeviceAddr()
	frame, err := s.packager.BuildWriteRequest(addr, startRegister, values)
	if err != nil {
		return err
	}

	op := fmt.Sprintf("write %d registers at %d", len(values), startRegister)
	resp, err := s.submit(op, frame, writeResponseLen)
	if err != nil {
		return err
	}
	if err := s.packager.ParseWriteResponse(resp, addr, startRegister, uint16(len(values))); err != nil {
		s.logf("ERROR: tevaa: %s: %v\n", op, err)
		return err
	}
	s.logf("DEBUG: tevaa: %s ok\n", op)
	return nil
}

// GetAllSensorValues reads TEV value, TEV discharge count and AA value
// in a single 3-word exchange.
func (s *Session) GetAllSensorValues() (SensorValues, error) {
	words, err := s.ReadRegisters(SensorDataRange)
	if err != nil {
		return SensorValues{}, err
	}
	return decodeSensorValues(words)
}

// GetTEVValue reads the current TEV reading (dB).
func (s *Session) GetTEVValue() (uint16, error) {
	return s.readSingle(RegTEVValue)
}

// GetTEVDischargeCount reads the cumulative TEV discharge count.
func (s *Session) GetTEVDischargeCount() (uint16, error) {
	return s.readSingle(RegTEVDischargeCount)
}

// GetAAValue reads the current AA/AE reading.
func (s *Session) GetAAValue() (uint16, error) {
	return s.readSingle(RegAAValue)
}

// GetWaveform reads the 100-sample waveform block for the given kind in
// one contiguous exchange.
func (s *Session) GetWaveform(kind WaveformKind) (Waveform, error) {
	rng, err := kind.registerRange()
	if err != nil {
		return nil, err
	}
	words, err := s.ReadRegisters(rng)
	if err != nil {
		return nil, err
	}
	return decodeWaveform(words)
}

// GetDeviceAddress reads the device address register.
func (s *Session) GetDeviceAddress() (uint8, error) {
	word, err := s.readSingle(RegDeviceAddr)
	if err != nil {
		return 0, err
	}
	if word < 1 || word > 247 {
		return 0, &ProtocolError{Reason: fmt.Sprintf("device reported address %d outside 1-247", word)}
	}
	return uint8(word), nil
}

// SetDeviceAddress writes a new device address and, on success, switches
// the session's active address so subsequent frames target the device
// at its new address.
func (s *Session) SetDeviceAddress(addr uint8) error {
	if err := ValidateDeviceAddr(addr); err != nil {
		return err
	}
	if err := s.WriteRegisters(RegDeviceAddr, []uint16{uint16(addr)}); err != nil {
		return err
	}

	s.mu.Lock()
	s.deviceAddr = addr
	s.mu.Unlock()
	s.logf("tevaa: device address changed to %d\n", addr)
	return nil
}

// GetBaudRate reads the baud rate register and decodes its code.
func (s *Session) GetBaudRate() (int, error) {
	word, err := s.readSingle(RegBaudRate)
	if err != nil {
		return 0, err
	}
	return decodeBaudRate(word)
}

// SetBaudRate writes a new baud rate to the device. This reconfigures
// the device only; the session's own serial speed is unchanged, so the
// caller must disconnect and reconnect at the new rate.
func (s *Session) SetBaudRate(rate int) error {
	code, err := encodeBaudRate(rate)
	if err != nil {
		return err
	}
	if err := s.WriteRegisters(RegBaudRate, []uint16{code}); err != nil {
		return err
	}
	s.logf("tevaa: device baud rate set to %d; reconnect required\n", rate)
	return nil
}

// GetThreshold reads the TEV or AA background threshold.
func (s *Session) GetThreshold(kind ThresholdKind) (uint16, error) {
	reg, err := kind.register()
	if err != nil {
		return 0, err
	}
	return s.readSingle(reg)
}

// SetThreshold writes the TEV or AA background threshold. Any 16-bit
// value is accepted; narrower ranges are presentation policy.
func (s *Session) SetThreshold(kind ThresholdKind, value uint16) error {
	reg, err := kind.register()
	if err != nil {
		return err
	}
	return s.WriteRegisters(reg, []uint16{value})
}

// readSingle reads one register word.
func (s *Session) readSingle(register uint16) (uint16, error) {
	words, err := s.ReadRegisters(RegisterRange{Start: register, Count: 1})
	if err != nil {
		return 0, err
	}
	return words[0], nil
}
