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
	"sync"
	"sync/atomic"
	"time"
)

// OnDataFunc receives each decoded sensor snapshot.
type OnDataFunc func(SensorValues)

// OnWaveformFunc receives decoded waveform blocks.
type OnWaveformFunc func(WaveformKind, Waveform)

// OnErrorFunc receives poll errors.
type OnErrorFunc func(error)

// Poller periodically reads the live sensor values, and optionally the
// waveform blocks, through a Session. Each poll is one unit of work
// submitted to the session's worker, so pollers and ad-hoc callers never
// interleave frames on the wire. Stop cancels future polls; it never
// aborts an exchange already in flight.
type Poller struct {
	session  *Session
	interval time.Duration

	// waveformEvery reads both waveforms every Nth tick; 0 disables.
	waveformEvery int

	onData     atomic.Value // OnDataFunc
	onWaveform atomic.Value // OnWaveformFunc
	onError    atomic.Value // OnErrorFunc

	mu      sync.Mutex
	stopCh  chan struct{}
	wg      sync.WaitGroup
	started bool
}

// NewPoller creates a Poller reading sensor values every interval.
func NewPoller(session *Session, interval time.Duration) *Poller {
	return &Poller{
		session:  session,
		interval: interval,
	}
}

// SetWaveformEvery also reads the TEV and AA waveforms every n ticks.
// n <= 0 disables waveform polling.
func (p *Poller) SetWaveformEvery(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.waveformEvery = n
}

// SetOnData sets the callback for sensor snapshots.
func (p *Poller) SetOnData(fn OnDataFunc) {
	p.onData.Store(fn)
}

// SetOnWaveform sets the callback for waveform blocks.
func (p *Poller) SetOnWaveform(fn OnWaveformFunc) {
	p.onWaveform.Store(fn)
}

// SetOnError sets the callback for poll errors.
func (p *Poller) SetOnError(fn OnErrorFunc) {
	p.onError.Store(fn)
}

// Start launches the polling loop. Calling Start on a running poller is
// a no-op.
func (p *Poller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true
	p.stopCh = make(chan struct{})
	p.wg.Add(1)
	go p.poll(p.stopCh)
}

// Stop cancels future polls and waits for the loop to exit. Idempotent.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	close(p.stopCh)
	p.mu.Unlock()
	p.wg.Wait()
}

// poll is the polling loop.
func (p *Poller) poll(stopCh chan struct{}) {
	defer p.wg.Done()
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	tick := 0
	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			tick++
			p.pollOnce(tick)
		}
	}
}

// pollOnce performs one round of reads and dispatches the callbacks.
func (p *Poller) pollOnce(tick int) {
	values, err := p.session.GetAllSensorValues()
	if err != nil {
		p.dispatchError(err)
	} else if cb := p.onData.Load(); cb != nil {
		cb.(OnDataFunc)(values)
	}

	p.mu.Lock()
	every := p.waveformEvery
	p.mu.Unlock()
	if every <= 0 || tick%every != 0 {
		return
	}

	for _, kind := range []WaveformKind{WaveformTEV, WaveformAA} {
		wf, err := p.session.GetWaveform(kind)
		if err != nil {
			p.dispatchError(err)
			continue
		}
		if cb := p.onWaveform.Load(); cb != nil {
			cb.(OnWaveformFunc)(kind, wf)
		}
	}
}

func (p *Poller) dispatchError(err error) {
	if cb := p.onError.Load(); cb != nil {
		cb.(OnErrorFunc)(err)
	}
}
