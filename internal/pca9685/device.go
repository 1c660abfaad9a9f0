// Package pca9685 implements the per-chip register protocol of a PCA9685
// 12-bit PWM controller (spec C2), built directly on the I²C gateway
// rather than a generic device library — the PRE_SCALE rounding formula
// and full-on/full-off special-case bits in §4.2 need byte-level control
// that a wrapped device abstraction wouldn't expose. See DESIGN.md.
package pca9685

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/SchizoDuckie/stairled-server/internal/apperr"
	"github.com/SchizoDuckie/stairled-server/internal/ratelog"
)

// Register addresses (PCA9685 datasheet).
const (
	regMode1        = 0x00
	regMode2        = 0x01
	regLed0OnL      = 0x06
	regAllLedOnL    = 0xFA
	regAllLedOnH    = 0xFB
	regAllLedOffL   = 0xFC
	regAllLedOffH   = 0xFD
	regPreScale     = 0xFE

	bitRestart = 0x80
	bitSleep   = 0x10
	bitAI      = 0x20 // auto-increment
	bitAllCall = 0x01

	bitFull = 0x10 // full-on/full-off bit in the *_H byte
)

// DefaultOscillatorHz is the PCA9685 internal oscillator frequency on the
// original board this system targets. Exposed so an external board
// revision can override it.
const DefaultOscillatorHz = 27_000_000

// I2CWriter/I2CReader are the operations Device needs from the bus
// gateway (spec C1); narrowed here so tests can substitute a fake without
// pulling in the real gateway/periph stack.
type I2CWriter interface {
	WriteBytes(chipAddress byte, register byte, data []byte) error
}
type I2CReader interface {
	ReadBytes(chipAddress byte, register byte, length int) ([]byte, error)
}
type I2C interface {
	I2CWriter
	I2CReader
}

// Device is one PCA9685 chip at a fixed I²C address.
type Device struct {
	bus  I2C
	addr byte

	oscillatorHz int
	targetHz     int

	degraded bool
	rateLog  *ratelog.Gate

	sleep func(time.Duration)
}

// New constructs a Device. oscillatorHz <= 0 defaults to DefaultOscillatorHz.
func New(bus I2C, addr byte, oscillatorHz int) *Device {
	if oscillatorHz <= 0 {
		oscillatorHz = DefaultOscillatorHz
	}
	return &Device{
		bus:          bus,
		addr:         addr,
		oscillatorHz: oscillatorHz,
		rateLog:      ratelog.New(30 * time.Second),
		sleep:        time.Sleep,
	}
}

// Address returns the chip's I²C address.
func (d *Device) Address() byte { return d.addr }

// Degraded reports whether the device is currently bypassed after a bus
// error, per §4.2's failure model.
func (d *Device) Degraded() bool { return d.degraded }

// Initialize resets MODE1, sleeps the oscillator, programs PRE_SCALE for
// targetPwmHz, restarts, and enables register auto-increment, per §4.2.
func (d *Device) Initialize(targetPwmHz int) error {
	if targetPwmHz <= 0 {
		return &apperr.ConfigInvalid{Field: "pwm_hz", Reason: "must be > 0"}
	}
	d.targetHz = targetPwmHz

	prescale := computePrescale(d.oscillatorHz, targetPwmHz)

	if err := d.write(regMode1, 0x00); err != nil {
		return d.fail(err)
	}
	if err := d.write(regMode1, bitSleep); err != nil {
		return d.fail(err)
	}
	if err := d.write(regPreScale, prescale); err != nil {
		return d.fail(err)
	}
	if err := d.write(regMode1, bitRestart|bitAllCall); err != nil {
		return d.fail(err)
	}
	d.sleep(500 * time.Microsecond)
	if err := d.write(regMode1, bitRestart|bitAllCall|bitAI); err != nil {
		return d.fail(err)
	}
	if err := d.write(regMode2, 0x04); err != nil { // totem-pole output, datasheet default
		return d.fail(err)
	}

	d.degraded = false
	d.rateLog.Reset()
	return nil
}

// computePrescale implements round(oscillator_hz / (4096 * target_hz)) - 1.
func computePrescale(oscillatorHz, targetHz int) byte {
	val := math.Round(float64(oscillatorHz)/(4096.0*float64(targetHz))) - 1
	if val < 3 {
		val = 3 // datasheet floor
	}
	if val > 255 {
		val = 255
	}
	return byte(val)
}

// SetChannel writes the ON/OFF counts for one of the 16 channels. The
// common brightness form is on=0, off=brightness, with full-on/full-off
// handled via the special-case bit when brightness is 0 or 4095.
func (d *Device) SetChannel(ch int, onCount, offCount uint16) error {
	if ch < 0 || ch > 15 {
		return fmt.Errorf("pca9685: channel %d out of range", ch)
	}
	if d.degraded {
		if d.rateLog.Allow(fmt.Sprintf("degraded-write-%02x", d.addr)) {
			log.Warn().Uint8("chip", d.addr).Msg("pca9685: write suppressed, chip degraded")
		}
		return nil
	}

	onL, onH, offL, offH := encodeCounts(onCount, offCount)
	base := byte(regLed0OnL + 4*ch)
	if err := d.write(base, onL, onH, offL, offH); err != nil {
		return d.fail(err)
	}
	return nil
}

// SetBrightness is the convenience form: on=0, off=brightness in [0,4095].
func (d *Device) SetBrightness(ch int, brightness int) error {
	if brightness < 0 {
		brightness = 0
	}
	if brightness > 4095 {
		brightness = 4095
	}
	return d.SetChannel(ch, 0, uint16(brightness))
}

func encodeCounts(onCount, offCount uint16) (onL, onH, offL, offH byte) {
	if offCount == 0 {
		// full off
		return 0, 0, 0, bitFull
	}
	if offCount >= 4095 {
		// full on
		return 0, bitFull, 0, 0
	}
	onL = byte(onCount & 0xFF)
	onH = byte((onCount >> 8) & 0x0F)
	offL = byte(offCount & 0xFF)
	offH = byte((offCount >> 8) & 0x0F)
	return onL, onH, offL, offH
}

// AllOff writes the ALL_LED_OFF registers, extinguishing every channel on
// this chip in one transaction.
func (d *Device) AllOff() error {
	if err := d.write(regAllLedOnL, 0, 0, 0, bitFull); err != nil {
		return d.fail(err)
	}
	return nil
}

// Close performs AllOff. It does not close the gateway, which is shared
// and outlives individual devices.
func (d *Device) Close() error {
	return d.AllOff()
}

// Probe re-reads MODE1 and clears the degraded flag on success, letting
// the device rejoin normal writes.
func (d *Device) Probe() bool {
	b, err := d.bus.ReadBytes(d.addr, regMode1, 1)
	ok := err == nil && len(b) == 1
	if ok {
		d.degraded = false
		d.rateLog.Reset()
	}
	return ok
}

func (d *Device) fail(err error) error {
	d.degraded = true
	wrapped := &apperr.BusIo{Chip: d.addr, Cause: err}
	if d.rateLog.Allow(fmt.Sprintf("bus-error-%02x", d.addr)) {
		log.Warn().Err(wrapped).Uint8("chip", d.addr).Msg("pca9685: chip marked degraded")
	}
	return wrapped
}

func (d *Device) write(register byte, data ...byte) error {
	return d.bus.WriteBytes(d.addr, register, data)
}
