// Package config describes the physical interface wiring between the debug
// adapter and the DUT: USB identifiers, named strap pin groups, and the
// logical console channels the session can open.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PinLevel assigns a logic level to one named adapter pin.
type PinLevel struct {
	Pin   string `yaml:"pin"`
	Level bool   `yaml:"level"`
}

// Strap is an ordered set of pin assignments applied together before a
// target reset. Straps sharing a pin are mutually exclusive by construction;
// the session does not police double application.
type Strap []PinLevel

// Channel resolves a logical console name to a physical byte transport.
type Channel struct {
	// Kind selects the transport: "spi" or "uart".
	Kind string `yaml:"kind"`
	// Device is the backend channel identifier (SPI port name or serial
	// device path).
	Device string `yaml:"device"`
	// ReadyPin, when set for SPI channels, names the GPIO the DUT raises
	// when console TX data is pending.
	ReadyPin string `yaml:"ready_pin,omitempty"`
	// Baudrate applies to UART channels only. Zero selects the default.
	Baudrate int `yaml:"baudrate,omitempty"`
}

// USB identifies the debug adapter on the bus.
type USB struct {
	VendorID  uint16 `yaml:"vendor_id"`
	ProductID uint16 `yaml:"product_id"`
	Serial    string `yaml:"serial,omitempty"`
}

// Interface is the full wiring description for one test station.
type Interface struct {
	USB      USB                `yaml:"usb"`
	Straps   map[string]Strap   `yaml:"straps"`
	Channels map[string]Channel `yaml:"channels"`
}

// Well-known strap and channel names. These match the names burned into the
// DUT test firmware and must not be changed independently of it.
const (
	StrapRomBootstrap = "ROM_BOOTSTRAP"
	StrapTapLc        = "PINMUX_TAP_LC"
	StrapTapRiscv     = "PINMUX_TAP_RISCV"

	ChannelBootstrap = "BOOTSTRAP"
	ChannelConsole   = "console"
)

// Default returns the built-in wiring for the hyper310-class test station.
func Default() *Interface {
	return &Interface{
		USB: USB{VendorID: 0x2B3E, ProductID: 0xC310},
		Straps: map[string]Strap{
			StrapRomBootstrap: {
				{Pin: "SW_STRAP0", Level: true},
				{Pin: "SW_STRAP1", Level: true},
				{Pin: "SW_STRAP2", Level: true},
			},
			StrapTapLc: {
				{Pin: "TAP_STRAP0", Level: true},
				{Pin: "TAP_STRAP1", Level: false},
			},
			StrapTapRiscv: {
				{Pin: "TAP_STRAP0", Level: false},
				{Pin: "TAP_STRAP1", Level: true},
			},
		},
		Channels: map[string]Channel{
			ChannelBootstrap: {Kind: "spi", Device: "BOOTSTRAP", ReadyPin: "IOA5"},
			ChannelConsole:   {Kind: "uart", Device: "/dev/ttyACM1", Baudrate: 115200},
		},
	}
}

// Load reads an interface description from a YAML file. Entries present in
// the file override the built-in defaults; straps and channels are replaced
// wholesale by name, not merged field by field.
func Load(path string) (*Interface, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	iface := Default()
	var overlay Interface
	if err := yaml.Unmarshal(raw, &overlay); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if overlay.USB.VendorID != 0 {
		iface.USB = overlay.USB
	}
	for name, strap := range overlay.Straps {
		iface.Straps[name] = strap
	}
	for name, ch := range overlay.Channels {
		iface.Channels[name] = ch
	}
	return iface, nil
}

// Strap returns the named strap or an error naming the missing entry.
func (i *Interface) Strap(name string) (Strap, error) {
	strap, ok := i.Straps[name]
	if !ok {
		return nil, fmt.Errorf("config: unknown strap %q", name)
	}
	return strap, nil
}

// Channel returns the named console channel or an error naming the missing
// entry.
func (i *Interface) Channel(name string) (Channel, error) {
	ch, ok := i.Channels[name]
	if !ok {
		return Channel{}, fmt.Errorf("config: unknown console channel %q", name)
	}
	return ch, nil
}
