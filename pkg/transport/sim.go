package transport

import (
	"fmt"
	"sync"
	"time"

	"github.com/siliconforge/dutlink/pkg/console"
	"github.com/siliconforge/dutlink/pkg/jtag"
)

// ResetEvent records one target reset for inspection in tests.
type ResetEvent struct {
	Pulse     time.Duration
	WaitReady bool
}

// SimSPI is an in-memory SPI device. It records every transfer and serves
// zeroed receive data, which flash status polls read as "not busy".
type SimSPI struct {
	mu        sync.Mutex
	Transfers [][]byte
}

func (s *SimSPI) Transfer(tx, rx []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Transfers = append(s.Transfers, append([]byte(nil), tx...))
	for i := range rx {
		rx[i] = 0
	}
	return nil
}

// Sent returns a copy of all transmitted payloads in order.
func (s *SimSPI) Sent() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.Transfers))
	for i, t := range s.Transfers {
		out[i] = append([]byte(nil), t...)
	}
	return out
}

// SimBackend is the in-memory stand-in for the hardware adapter. Tests
// pre-load console scripts and a JTAG factory, then assert on the recorded
// pin, reset, and transfer history.
type SimBackend struct {
	mu sync.Mutex

	// pins holds currently driven pins by name.
	pins map[string]bool

	// Consoles serves OpenConsole by backend device name.
	Consoles map[string]*console.ScriptLink
	// SPIs serves OpenSPI by device name; devices appear on first use.
	SPIs map[string]*SimSPI

	// JtagFactory builds handles for OpenJtag. Defaults to a fresh Fake
	// per connection.
	JtagFactory func(params jtag.Params, tap jtag.Tap) (jtag.Handle, error)

	Resets            []ResetEvent
	Bitstreams        [][]byte
	BitstreamsCleared int
	DefaultsApplied   bool
	Closed            bool

	// Fail points. Each, when set, is returned by the matching method.
	SetPinErr     error
	ReleasePinErr error
	ResetErr      error
	RomReadyErr   error
}

// NewSimBackend returns an empty simulator.
func NewSimBackend() *SimBackend {
	return &SimBackend{
		pins:     make(map[string]bool),
		Consoles: make(map[string]*console.ScriptLink),
		SPIs:     make(map[string]*SimSPI),
	}
}

func (b *SimBackend) Name() string { return "sim" }

func (b *SimBackend) ApplyDefaults() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.DefaultsApplied = true
	return nil
}

func (b *SimBackend) SetPin(name string, level bool) error {
	if b.SetPinErr != nil {
		return b.SetPinErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pins[name] = level
	return nil
}

func (b *SimBackend) ReleasePin(name string) error {
	if b.ReleasePinErr != nil {
		return b.ReleasePinErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.pins, name)
	return nil
}

func (b *SimBackend) PinLevel(name string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pins[name], nil
}

// DrivenPins returns the names of all pins currently driven, for asserting
// that straps were fully removed.
func (b *SimBackend) DrivenPins() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var names []string
	for name := range b.pins {
		names = append(names, name)
	}
	return names
}

func (b *SimBackend) Reset(pulse time.Duration, waitReady bool) error {
	if b.ResetErr != nil {
		return b.ResetErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Resets = append(b.Resets, ResetEvent{Pulse: pulse, WaitReady: waitReady})
	return nil
}

func (b *SimBackend) SPI(device string) (console.SPIDevice, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	dev, ok := b.SPIs[device]
	if !ok {
		dev = &SimSPI{}
		b.SPIs[device] = dev
	}
	return dev, nil
}

func (b *SimBackend) UART(device string, baudrate int) (console.Link, error) {
	return b.Console(device)
}

// Console serves the scripted link registered for device.
func (b *SimBackend) Console(device string) (console.Link, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	link, ok := b.Consoles[device]
	if !ok {
		return nil, fmt.Errorf("sim: no console scripted for device %q", device)
	}
	return link, nil
}

func (b *SimBackend) Jtag(params jtag.Params, tap jtag.Tap) (jtag.Handle, error) {
	if b.JtagFactory != nil {
		return b.JtagFactory(params, tap)
	}
	return jtag.NewFake(tap), nil
}

func (b *SimBackend) ClearBitstream() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.BitstreamsCleared++
	return nil
}

func (b *SimBackend) LoadBitstream(data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Bitstreams = append(b.Bitstreams, append([]byte(nil), data...))
	return nil
}

func (b *SimBackend) WaitRomReady(timeout time.Duration) error {
	return b.RomReadyErr
}

func (b *SimBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Closed = true
	return nil
}

var (
	_ Backend         = (*SimBackend)(nil)
	_ Fpga            = (*SimBackend)(nil)
	_ ConsoleProvider = (*SimBackend)(nil)
)
