package i2cbus

import (
	"errors"
	"testing"
)

type fakeBus struct {
	writes  [][]byte
	readVal []byte
	err     error
}

func (f *fakeBus) Tx(addr uint16, w, r []byte) error {
	if f.err != nil {
		return f.err
	}
	if r == nil {
		cp := append([]byte(nil), w...)
		f.writes = append(f.writes, cp)
		return nil
	}
	copy(r, f.readVal)
	return nil
}

func TestWriteBytesPrependsRegister(t *testing.T) {
	fb := &fakeBus{}
	g := NewFromBus(fb)

	if err := g.WriteBytes(0x40, 0x06, []byte{0x01, 0x02}); err != nil {
		t.Fatalf("WriteBytes: %v", err)
	}
	if len(fb.writes) != 1 {
		t.Fatalf("expected 1 write, got %d", len(fb.writes))
	}
	want := []byte{0x06, 0x01, 0x02}
	got := fb.writes[0]
	if len(got) != len(want) {
		t.Fatalf("write mismatch: got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("write mismatch: got %v want %v", got, want)
		}
	}
}

func TestReadBytes(t *testing.T) {
	fb := &fakeBus{readVal: []byte{0x11}}
	g := NewFromBus(fb)

	b, err := g.ReadBytes(0x40, 0x00, 1)
	if err != nil {
		t.Fatalf("ReadBytes: %v", err)
	}
	if len(b) != 1 || b[0] != 0x11 {
		t.Fatalf("unexpected read result: %v", b)
	}
}

func TestProbe(t *testing.T) {
	ok := NewFromBus(&fakeBus{readVal: []byte{0x20}})
	if !ok.Probe(0x40) {
		t.Fatalf("expected probe success")
	}

	bad := NewFromBus(&fakeBus{err: errors.New("nack")})
	if bad.Probe(0x40) {
		t.Fatalf("expected probe failure")
	}
}
