// Package i2cbus serializes byte-level access to one I²C bus (spec C1).
// It wraps a periph.io/x/conn/v3/i2c.Bus the way kou-tkbys-ht16k33's
// driver wraps its own minimal I2CBus interface — a single Tx(addr, w, r)
// method — but adds serialization: all operations are blocking and run one
// at a time behind a single sync.Mutex, with zero retries at this layer.
// Concurrent callers are served in the order the mutex grants the lock,
// which is not guaranteed to be their arrival order.
package i2cbus

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3/i2c"
)

// Bus is the transaction primitive periph.io's i2c package exposes; the
// gateway depends on this narrow interface rather than a concrete driver
// so tests can substitute a fake.
type Bus interface {
	Tx(addr uint16, w, r []byte) error
}

// Gateway serializes calls onto one underlying I²C bus.
type Gateway struct {
	mu  sync.Mutex
	bus Bus
}

// New wraps an already-opened periph i2c.Bus (e.g. from i2creg.Open).
func New(bus i2c.Bus) *Gateway {
	return &Gateway{bus: bus}
}

// NewFromBus wraps any Bus implementation; used by tests with a fake.
func NewFromBus(bus Bus) *Gateway {
	return &Gateway{bus: bus}
}

// WriteBytes writes register followed by bytes as a single I²C transaction.
func (g *Gateway) WriteBytes(chipAddress byte, register byte, data []byte) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	w := make([]byte, 0, len(data)+1)
	w = append(w, register)
	w = append(w, data...)
	if err := g.bus.Tx(uint16(chipAddress), w, nil); err != nil {
		return fmt.Errorf("i2c write chip 0x%02X reg 0x%02X: %w", chipAddress, register, err)
	}
	return nil
}

// ReadBytes reads length bytes starting at register.
func (g *Gateway) ReadBytes(chipAddress byte, register byte, length int) ([]byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]byte, length)
	if err := g.bus.Tx(uint16(chipAddress), []byte{register}, out); err != nil {
		return nil, fmt.Errorf("i2c read chip 0x%02X reg 0x%02X: %w", chipAddress, register, err)
	}
	return out, nil
}

// Probe attempts a one-byte MODE1 (register 0x00) read and reports success.
func (g *Gateway) Probe(chipAddress byte) bool {
	_, err := g.ReadBytes(chipAddress, 0x00, 1)
	return err == nil
}
