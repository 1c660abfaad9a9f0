package pca9685

import (
	"errors"
	"testing"
	"time"
)

type fakeBus struct {
	writes map[byte][]byte
	failOn map[byte]bool
	reads  map[byte][]byte
}

func newFakeBus() *fakeBus {
	return &fakeBus{writes: map[byte][]byte{}, failOn: map[byte]bool{}, reads: map[byte][]byte{}}
}

func (f *fakeBus) WriteBytes(chipAddress byte, register byte, data []byte) error {
	if f.failOn[register] {
		return errors.New("simulated bus failure")
	}
	f.writes[register] = append([]byte(nil), data...)
	return nil
}

func (f *fakeBus) ReadBytes(chipAddress byte, register byte, length int) ([]byte, error) {
	if v, ok := f.reads[register]; ok {
		return v, nil
	}
	return make([]byte, length), nil
}

func TestComputePrescale(t *testing.T) {
	// round(27_000_000 / (4096 * 52000)) - 1 = round(0.1267...) - 1 -> floors to 3.
	got := computePrescale(27_000_000, 52_000)
	if got != 3 {
		t.Fatalf("expected floor of 3, got %d", got)
	}
	// A slower target frequency exercises the general formula.
	got = computePrescale(25_000_000, 200)
	want := byte(int(30) - 0) // round(25e6/(4096*200))-1 = round(30.52)-1 = 30
	if got != want {
		t.Fatalf("computePrescale(25e6,200) = %d, want %d", got, want)
	}
}

func TestInitializeSequencesRegisters(t *testing.T) {
	fb := newFakeBus()
	d := New(fb, 0x40, 0)
	d.sleep = func(time.Duration) {}

	if err := d.Initialize(52_000); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if _, ok := fb.writes[regPreScale]; !ok {
		t.Fatalf("expected PRE_SCALE register written")
	}
	last := fb.writes[regMode1]
	if len(last) != 1 || last[0]&bitAI == 0 {
		t.Fatalf("expected final MODE1 write to set auto-increment, got %v", last)
	}
}

func TestSetChannelFullOnFullOff(t *testing.T) {
	fb := newFakeBus()
	d := New(fb, 0x40, 0)
	d.sleep = func(time.Duration) {}
	if err := d.Initialize(52_000); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	if err := d.SetBrightness(0, 0); err != nil {
		t.Fatalf("SetBrightness(0): %v", err)
	}
	got := fb.writes[regLed0OnL]
	want := []byte{0, 0, 0, bitFull}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("full-off encoding = %v, want %v", got, want)
		}
	}

	if err := d.SetBrightness(0, 4095); err != nil {
		t.Fatalf("SetBrightness(4095): %v", err)
	}
	got = fb.writes[regLed0OnL]
	want = []byte{0, bitFull, 0, 0}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("full-on encoding = %v, want %v", got, want)
		}
	}
}

func TestDegradedAfterBusError(t *testing.T) {
	fb := newFakeBus()
	d := New(fb, 0x40, 0)
	d.sleep = func(time.Duration) {}
	if err := d.Initialize(52_000); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	fb.failOn[regLed0OnL] = true
	if err := d.SetBrightness(0, 100); err == nil {
		t.Fatalf("expected error from failing bus")
	}
	if !d.Degraded() {
		t.Fatalf("expected device to be marked degraded")
	}

	fb.failOn[regLed0OnL] = false
	// Further writes are no-ops (not forwarded to the bus) until Probe succeeds.
	delete(fb.writes, regLed0OnL)
	if err := d.SetBrightness(0, 100); err != nil {
		t.Fatalf("expected suppressed write to return nil, got %v", err)
	}
	if _, ok := fb.writes[regLed0OnL]; ok {
		t.Fatalf("expected write to be suppressed while degraded")
	}

	if !d.Probe() {
		t.Fatalf("expected probe to succeed")
	}
	if err := d.SetBrightness(0, 100); err != nil {
		t.Fatalf("SetBrightness after recovery: %v", err)
	}
	if _, ok := fb.writes[regLed0OnL]; !ok {
		t.Fatalf("expected write to resume after successful probe")
	}
}
