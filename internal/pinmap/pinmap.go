// Package pinmap implements the pin mapper (spec C3): the authoritative
// step → (chip, channel) map, brightness fan-out, and I²C bus discovery.
// It is the sole writer to PCA9685 devices, matching the teacher's single
// process-wide render.Engine owning its Driver — here generalized to own
// N devices behind one mutex instead of one SPI/PWM strip.
package pinmap

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/SchizoDuckie/stairled-server/internal/apperr"
	"github.com/SchizoDuckie/stairled-server/internal/i2cbus"
	"github.com/SchizoDuckie/stairled-server/internal/pca9685"
	"github.com/SchizoDuckie/stairled-server/internal/ratelog"
)

// PhysicalChannel is a chip/channel pair (spec "Physical channel").
type PhysicalChannel struct {
	Chip    byte
	Channel int
}

// Entry is one row of the pin map (spec "Pin map").
type Entry struct {
	Step    int
	Chip    byte
	Channel int
}

// Device is the subset of pca9685.Device the mapper depends on, narrowed
// for testability.
type Device interface {
	Initialize(targetPwmHz int) error
	SetBrightness(ch int, brightness int) error
	AllOff() error
	Probe() bool
	Degraded() bool
	Address() byte
	Close() error
}

// DeviceFactory constructs a Device for a discovered chip address. Tests
// inject a fake; production wires pca9685.New bound to a real i2cbus.Gateway.
type DeviceFactory func(addr byte) Device

// Mapper owns the pin map and every discovered PCA9685 device.
type Mapper struct {
	mu sync.Mutex

	newDevice DeviceFactory
	devices   map[byte]Device
	order     []byte // discovery order, used for default sequential mapping

	mapping map[int]PhysicalChannel
	cache   map[int]int // last-written brightness per step

	pwmHz int

	unknownStepLog *ratelog.Gate
}

// New constructs a Mapper. factory builds a Device for a discovered
// address; pwmHz is the target PWM frequency programmed into every chip.
func New(factory DeviceFactory, pwmHz int) *Mapper {
	if pwmHz <= 0 {
		pwmHz = 52000
	}
	return &Mapper{
		newDevice:      factory,
		devices:        map[byte]Device{},
		mapping:        map[int]PhysicalChannel{},
		cache:          map[int]int{},
		pwmHz:          pwmHz,
		unknownStepLog: ratelog.New(0),
	}
}

// NewFromGateway wires a Mapper whose devices are real PCA9685 chips
// speaking through gw.
func NewFromGateway(gw *i2cbus.Gateway, pwmHz int, oscillatorHz int) *Mapper {
	return New(func(addr byte) Device {
		return pca9685.New(gwAdapter{gw}, addr, oscillatorHz)
	}, pwmHz)
}

// gwAdapter narrows *i2cbus.Gateway to pca9685.I2C.
type gwAdapter struct{ gw *i2cbus.Gateway }

func (a gwAdapter) WriteBytes(chip, reg byte, data []byte) error {
	return a.gw.WriteBytes(chip, reg, data)
}
func (a gwAdapter) ReadBytes(chip, reg byte, n int) ([]byte, error) {
	return a.gw.ReadBytes(chip, reg, n)
}

// Prober is the bus operation Discover needs.
type Prober interface {
	ReadBytes(chipAddress byte, register byte, length int) ([]byte, error)
}

// falsePositiveAddress is a known false-positive on Raspberry Pi buses.
const falsePositiveAddress = 0x70

// Discover scans 0x40..0x7F, excluding the known Pi false-positive
// address, accepting a candidate only if a MODE1 read succeeds and
// returns a value <= 0x7F.
func Discover(bus Prober) []byte {
	var found []byte
	for addr := byte(0x40); addr <= 0x7F; addr++ {
		if addr == falsePositiveAddress {
			continue
		}
		b, err := bus.ReadBytes(addr, 0x00, 1)
		if err != nil || len(b) != 1 {
			continue
		}
		if b[0] <= 0x7F {
			found = append(found, addr)
		}
	}
	return found
}

// Initialize constructs devices for the discovered addresses and installs
// storedMap, or — if storedMap is empty — a sequential default mapping
// ascending step index across each device's 16 channels in discovery
// order.
func (m *Mapper) Initialize(discovered []byte, storedMap []Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.devices = map[byte]Device{}
	m.order = append([]byte(nil), discovered...)
	for _, addr := range discovered {
		dev := m.newDevice(addr)
		if err := dev.Initialize(m.pwmHz); err != nil {
			return &apperr.Fatal{Cause: fmt.Errorf("initialize chip 0x%02X: %w", addr, err)}
		}
		m.devices[addr] = dev
	}

	if len(storedMap) > 0 {
		m.installMappingLocked(storedMap)
		return nil
	}

	var seq []Entry
	step := 1
	for _, addr := range discovered {
		for ch := 0; ch < 16; ch++ {
			seq = append(seq, Entry{Step: step, Chip: addr, Channel: ch})
			step++
		}
	}
	m.installMappingLocked(seq)
	return nil
}

func (m *Mapper) installMappingLocked(entries []Entry) {
	mapping := make(map[int]PhysicalChannel, len(entries))
	for _, e := range entries {
		mapping[e.Step] = PhysicalChannel{Chip: e.Chip, Channel: e.Channel}
	}
	m.mapping = mapping
	m.cache = map[int]int{}
}

// SetMapping atomically replaces the pin map: it first zeroes every
// channel in the current map, swaps to the new map, then zeroes every
// channel newly introduced by it — so no channel from the previous
// mapping is left lit (§4.3 invariant).
func (m *Mapper) SetMapping(entries []Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	old := m.mapping
	for _, phys := range old {
		m.writeLocked(phys, 0)
	}

	m.installMappingLocked(entries)

	for _, phys := range m.mapping {
		m.writeLocked(phys, 0)
	}
	return nil
}

// GetMappedPin returns the physical channel for step, if mapped.
func (m *Mapper) GetMappedPin(step int) (PhysicalChannel, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	phys, ok := m.mapping[step]
	return phys, ok
}

// GetBrightness satisfies timeline.BrightnessSource: it returns the
// last-written brightness for step, or 0 if never written or unmapped.
func (m *Mapper) GetBrightness(step int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cache[step]
}

// SetBrightness clamps to [0,4095], records it in the per-step cache, and
// writes it to the mapped device. Unknown steps are logged once per
// (step, error) pair and otherwise ignored.
func (m *Mapper) SetBrightness(step int, value int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	phys, ok := m.mapping[step]
	if !ok {
		err := &apperr.UnknownStep{Step: step}
		if m.unknownStepLog.Allow(fmt.Sprintf("step-%d-%v", step, err)) {
			log.Warn().Int("step", step).Err(err).Msg("pinmap: write to unmapped step")
		}
		return err
	}
	if value < 0 {
		value = 0
	}
	if value > 4095 {
		value = 4095
	}
	m.cache[step] = value
	return m.writeLocked(phys, value)
}

func (m *Mapper) writeLocked(phys PhysicalChannel, value int) error {
	dev, ok := m.devices[phys.Chip]
	if !ok {
		return nil
	}
	return dev.SetBrightness(phys.Channel, value)
}

// SetAll fans a single brightness value out over every mapped step, in
// ascending (chip, channel) order per the §5 ordering guarantee.
func (m *Mapper) SetAll(value int) error {
	m.mu.Lock()
	steps := m.orderedStepsLocked(m.allStepsLocked())
	m.mu.Unlock()

	var firstErr error
	for _, step := range steps {
		if err := m.SetBrightness(step, value); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m *Mapper) allStepsLocked() []int {
	steps := make([]int, 0, len(m.mapping))
	for s := range m.mapping {
		steps = append(steps, s)
	}
	return steps
}

// OrderedSteps sorts the given steps by ascending (chip, channel) as
// mapped, dropping any that aren't mapped. The animation engine uses this
// to give every tick's PWM writes a deterministic order (§5), preventing
// visual tearing between adjacent steps served by different chips.
func (m *Mapper) OrderedSteps(steps []int) []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orderedStepsLocked(steps)
}

func (m *Mapper) orderedStepsLocked(steps []int) []int {
	type keyed struct {
		step int
		phys PhysicalChannel
	}
	var mapped []keyed
	for _, s := range steps {
		if phys, ok := m.mapping[s]; ok {
			mapped = append(mapped, keyed{s, phys})
		}
	}
	sort.Slice(mapped, func(i, j int) bool {
		if mapped[i].phys.Chip != mapped[j].phys.Chip {
			return mapped[i].phys.Chip < mapped[j].phys.Chip
		}
		return mapped[i].phys.Channel < mapped[j].phys.Channel
	})
	out := make([]int, len(mapped))
	for i, k := range mapped {
		out[i] = k.step
	}
	return out
}

// Test sequentially ramps each mapped step to a visible value then back
// to zero with a short inter-step delay, as a startup self-test.
func (m *Mapper) Test() {
	m.mu.Lock()
	steps := m.orderedStepsLocked(m.allStepsLocked())
	m.mu.Unlock()

	const visible = 2048
	for _, step := range steps {
		_ = m.SetBrightness(step, visible)
		time.Sleep(50 * time.Millisecond)
		_ = m.SetBrightness(step, 0)
	}
}

// ChipMapping is one row of the driver_mappings() read-only view: 16
// channel slots, each either a step number or nil if unassigned.
type ChipMapping struct {
	Chip     byte
	Channels [16]*int
}

// DriverMappings returns the read-only per-chip view the external UI
// consumes (spec C3): for every discovered chip, its 16 channels each
// showing the step mapped to them, or nil.
func (m *Mapper) DriverMappings() map[byte]ChipMapping {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[byte]ChipMapping, len(m.devices))
	for addr := range m.devices {
		out[addr] = ChipMapping{Chip: addr}
	}
	for step, phys := range m.mapping {
		cm, ok := out[phys.Chip]
		if !ok {
			cm = ChipMapping{Chip: phys.Chip}
		}
		s := step
		cm.Channels[phys.Channel] = &s
		out[phys.Chip] = cm
	}
	return out
}

// Cleanup best-effort all_off()s every known device, retrying up to three
// times at 100ms intervals per device on failure. Safe to call more than
// once; concurrent calls are serialized by the mapper's lock.
func (m *Mapper) Cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, d := range m.devices {
		var err error
		for attempt := 0; attempt <= 3; attempt++ { // first try plus three retries
			if err = d.AllOff(); err == nil {
				break
			}
			time.Sleep(100 * time.Millisecond)
		}
		if err != nil {
			log.Warn().Err(err).Uint8("chip", d.Address()).Msg("pinmap: cleanup all_off failed")
		}
	}

	for step := range m.cache {
		m.cache[step] = 0
	}
}
