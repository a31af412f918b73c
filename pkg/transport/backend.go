// Package transport owns the physical debug interface to the DUT: backend
// selection, pin straps, target reset, and factories for console links and
// JTAG connections. A Session is the explicit handle every provisioning
// operation takes; there is no process-wide state.
package transport

import (
	"time"

	"github.com/siliconforge/dutlink/pkg/console"
	"github.com/siliconforge/dutlink/pkg/jtag"
)

// Backend is one physical (or simulated) debug adapter. All operations are
// blocking; callers serialize access.
type Backend interface {
	Name() string

	// ApplyDefaults drives the adapter into its default hardware
	// configuration (pin directions, clocks, voltage rails).
	ApplyDefaults() error

	// SetPin drives a named pin to a level; ReleasePin returns it to
	// high impedance. PinLevel samples an input pin.
	SetPin(name string, level bool) error
	ReleasePin(name string) error
	PinLevel(name string) (bool, error)

	// Reset pulses the DUT reset line for the given duration and, when
	// waitReady is set, blocks until the target is responsive again.
	Reset(pulse time.Duration, waitReady bool) error

	// SPI opens a full-duplex SPI channel by backend device name.
	SPI(device string) (console.SPIDevice, error)
	// UART opens a serial byte channel.
	UART(device string, baudrate int) (console.Link, error)

	// Jtag connects to the given TAP. The strap configuration exposing
	// that TAP must already be applied.
	Jtag(params jtag.Params, tap jtag.Tap) (jtag.Handle, error)

	Close() error
}

// Fpga is implemented by backends that carry the DUT design in
// reprogrammable logic.
type Fpga interface {
	ClearBitstream() error
	LoadBitstream(data []byte) error
	// WaitRomReady blocks until the post-load ROM signals readiness.
	WaitRomReady(timeout time.Duration) error
}

// ConsoleProvider is implemented by backends that resolve console channels
// themselves instead of going through the generic SPI/UART construction.
// The simulator uses it to hand out scripted links.
type ConsoleProvider interface {
	Console(device string) (console.Link, error)
}
