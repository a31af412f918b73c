// Package jtag defines the debug-port boundary the provisioning flows drive:
// TAP selection, life-cycle controller register access, and the core
// run-control operations the SRAM loader needs. The hardware implementation
// delegates to an OpenOCD server; a scriptable fake backs unit tests.
package jtag

import "errors"

// Tap selects which on-chip debug domain a connection targets. The DUT
// multiplexes its TAPs behind pin straps, so exactly one is reachable per
// reset.
type Tap int

const (
	// TapRiscv is the RISC-V core debug TAP.
	TapRiscv Tap = iota
	// TapLc is the life-cycle controller TAP.
	TapLc
)

func (t Tap) String() string {
	switch t {
	case TapRiscv:
		return "riscv"
	case TapLc:
		return "lc"
	}
	return "unknown"
}

// DefaultAdapterSpeedKHz is the JTAG clock used when Params leaves the
// speed unset.
const DefaultAdapterSpeedKHz = 1000

// Params configures one JTAG connection.
type Params struct {
	// OpenOCDPath locates the OpenOCD binary driving the adapter.
	OpenOCDPath string
	// AdapterConfig and TargetConfig are OpenOCD script paths. Empty
	// values fall back to whatever the server's search path provides.
	AdapterConfig string
	TargetConfig  string
	// AdapterSpeedKHz is the TCK frequency; zero selects the default.
	AdapterSpeedKHz int
	// LogStdio forwards the OpenOCD process output to this process's
	// stderr for debugging.
	LogStdio bool
}

// ErrWrongTap indicates an operation that is only defined on the other TAP.
var ErrWrongTap = errors.New("jtag: operation not available on this TAP")

// Handle is one live connection to a DUT TAP. Operations are blocking and
// must be serialized by the caller; Disconnect releases the underlying
// adapter so the session can be re-strapped.
type Handle interface {
	// Tap reports which TAP this connection targets.
	Tap() Tap

	// ReadLcReg and WriteLcReg access the life-cycle controller register
	// file. Valid only on TapLc.
	ReadLcReg(reg LcReg) (uint32, error)
	WriteLcReg(reg LcReg, value uint32) error

	// Run control. Valid only on TapRiscv.
	Halt() error
	Resume() error
	// Reset resets the core, leaving it running or halted.
	Reset(run bool) error

	ReadReg(name string) (uint32, error)
	WriteReg(name string, value uint32) error

	ReadMem32(addr uint32) (uint32, error)
	WriteMem32(addr uint32, value uint32) error
	ReadMemBlock(addr uint32, n int) ([]byte, error)
	WriteMemBlock(addr uint32, data []byte) error

	Disconnect() error
}
