package tevaa

import (
	"errors"
	"testing"
	"time"
)

func TestPollerDeliversData(t *testing.T) {
	f := newFakeSensor(t)
	s := newTestSession(t, f)

	dataCh := make(chan SensorValues, 16)
	p := NewPoller(s, 5*time.Millisecond)
	p.SetOnData(func(v SensorValues) {
		select {
		case dataCh <- v:
		default:
		}
	})

	p.Start()
	defer p.Stop()

	for i := 0; i < 3; i++ {
		select {
		case v := <-dataCh:
			if v.TEVValue != 50 || v.TEVDischargeCount != 5 || v.AAValue != 40 {
				t.Fatalf("poll %d delivered %+v, want {50 5 40}", i, v)
			}
		case <-time.After(time.Second):
			t.Fatal("poller delivered no data within 1s")
		}
	}
}

func TestPollerDeliversWaveforms(t *testing.T) {
	f := newFakeSensor(t)
	s := newTestSession(t, f)

	type block struct {
		kind WaveformKind
		wf   Waveform
	}
	wfCh := make(chan block, 16)

	p := NewPoller(s, 5*time.Millisecond)
	p.SetWaveformEvery(2)
	p.SetOnWaveform(func(kind WaveformKind, wf Waveform) {
		select {
		case wfCh <- block{kind, wf}:
		default:
		}
	})

	p.Start()
	defer p.Stop()

	seen := map[WaveformKind]bool{}
	for len(seen) < 2 {
		select {
		case b := <-wfCh:
			if len(b.wf) != WaveformLen {
				t.Fatalf("%v waveform has %d samples, want %d", b.kind, len(b.wf), WaveformLen)
			}
			seen[b.kind] = true
		case <-time.After(time.Second):
			t.Fatalf("waveforms seen within 1s: %v", seen)
		}
	}
}

func TestPollerReportsErrors(t *testing.T) {
	f := newFakeSensor(t)
	f.silent = true
	s := newTestSession(t, f)

	errCh := make(chan error, 16)
	p := NewPoller(s, 5*time.Millisecond)
	p.SetOnError(func(err error) {
		select {
		case errCh <- err:
		default:
		}
	})

	p.Start()
	defer p.Stop()

	select {
	case err := <-errCh:
		var tErr *TimeoutError
		if !errors.As(err, &tErr) {
			t.Fatalf("expected TimeoutError, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("poller reported no error within 1s")
	}
}

func TestPollerStop(t *testing.T) {
	f := newFakeSensor(t)
	s := newTestSession(t, f)

	p := NewPoller(s, 5*time.Millisecond)
	p.SetOnData(func(SensorValues) {})

	// Idempotent in both directions.
	p.Start()
	p.Start()
	time.Sleep(30 * time.Millisecond)
	p.Stop()
	p.Stop()

	before := f.writeCount()
	time.Sleep(30 * time.Millisecond)
	if after := f.writeCount(); after != before {
		t.Errorf("poller still polling after Stop: %d -> %d exchanges", before, after)
	}

	// A stopped poller can be restarted.
	p.Start()
	time.Sleep(30 * time.Millisecond)
	p.Stop()
	if f.writeCount() == before {
		t.Error("restarted poller produced no exchanges")
	}
}
