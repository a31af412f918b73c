package transport

import (
	"errors"
	"fmt"
	"time"

	"github.com/siliconforge/dutlink/internal/config"
)

// Kind names a transport backend family.
type Kind string

const (
	// KindCW310 is the hyper310-class USB debug adapter, the only
	// hardware backend supported in this deployment.
	KindCW310 Kind = "cw310"
	// KindSim is the in-memory simulator backend used by tests.
	KindSim Kind = "sim"

	// Recognized but disabled in this deployment.
	KindVerilator Kind = "verilator"
	KindProxy     Kind = "proxy"
	KindEmulator  Kind = "ti50emulator"
)

// ErrUnsupportedBackend is returned for backend kinds that are recognized
// but not enabled in this deployment.
var ErrUnsupportedBackend = errors.New("transport: backend not supported in this deployment")

// CW310Options selects a specific adapter when several are attached.
type CW310Options struct {
	Serial string
}

// SimOptions injects a prepared simulator backend.
type SimOptions struct {
	Backend *SimBackend
}

// VerilatorOptions configures the (disabled) RTL simulation backend. The
// struct exists so configurations can name the backend explicitly as
// disabled rather than omitting it.
type VerilatorOptions struct {
	Bin     string
	Rom     string
	Flash   []string
	Otp     string
	Timeout time.Duration
	Args    []string
}

// ProxyOptions configures the (disabled) remote-proxy backend.
type ProxyOptions struct {
	Proxy string
	Port  uint16
}

// EmulatorOptions configures the (disabled) chip emulator backend.
type EmulatorOptions struct {
	InstancePrefix      string
	ExecutableDirectory string
	Executable          string
}

// Config selects and parameterizes exactly one backend. Only the variant
// matching Kind is consulted; the disabled variants are carried as explicit
// zero values so a configuration can never reference a backend that is not
// active.
type Config struct {
	Kind Kind

	CW310     *CW310Options
	Sim       *SimOptions
	Verilator *VerilatorOptions
	Proxy     *ProxyOptions
	Emulator  *EmulatorOptions

	// Interface describes straps, channels, and USB identifiers. Nil
	// selects the built-in station defaults.
	Interface *config.Interface
}

// ParseKind maps a backend-selection string onto a Kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindCW310, KindSim, KindVerilator, KindProxy, KindEmulator:
		return Kind(s), nil
	}
	return "", fmt.Errorf("transport: unknown backend %q", s)
}
