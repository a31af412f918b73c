package transport

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang/glog"

	"github.com/siliconforge/dutlink/internal/config"
	"github.com/siliconforge/dutlink/pkg/console"
	"github.com/siliconforge/dutlink/pkg/jtag"
)

// ErrJtagBusy is returned when a second JTAG connection is requested while
// one is live. The DUT exposes one TAP per strap/reset cycle, so the first
// handle must be disconnected before the session can be re-strapped.
var ErrJtagBusy = errors.New("transport: a JTAG connection is already open")

// Session is the exclusive owner of one debug interface. Strap apply/remove
// and connect/disconnect pairing is caller discipline; the session does not
// guard against double application (spec'd behavior, kept deliberately).
type Session struct {
	backend  Backend
	iface    *config.Interface
	jtagLive bool
}

// Open selects and constructs exactly one backend from the configuration,
// then applies the adapter's default hardware configuration.
func Open(cfg Config) (*Session, error) {
	iface := cfg.Interface
	if iface == nil {
		iface = config.Default()
	}

	var backend Backend
	var err error
	switch cfg.Kind {
	case KindCW310:
		opts := cfg.CW310
		if opts == nil {
			opts = &CW310Options{}
		}
		backend, err = openCW310(iface.USB, *opts)
	case KindSim:
		if cfg.Sim != nil && cfg.Sim.Backend != nil {
			backend = cfg.Sim.Backend
		} else {
			backend = NewSimBackend()
		}
	case KindVerilator, KindProxy, KindEmulator:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedBackend, cfg.Kind)
	default:
		return nil, fmt.Errorf("transport: unknown backend kind %q", cfg.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("transport: constructing %s backend: %w", cfg.Kind, err)
	}

	if err := backend.ApplyDefaults(); err != nil {
		backend.Close()
		return nil, fmt.Errorf("transport: applying default configuration: %w", err)
	}
	glog.V(1).Infof("transport: %s backend ready", backend.Name())
	return &Session{backend: backend, iface: iface}, nil
}

// Backend exposes the underlying backend for capability assertions
// (e.g. bitstream loading).
func (s *Session) Backend() Backend { return s.backend }

// Interface returns the active wiring description.
func (s *Session) Interface() *config.Interface { return s.iface }

// ApplyStrap drives every pin of the named strap. Calling apply twice
// without an intervening remove is undefined; orchestration layers own that
// discipline.
func (s *Session) ApplyStrap(name string) error {
	strap, err := s.iface.Strap(name)
	if err != nil {
		return err
	}
	glog.V(1).Infof("transport: applying strap %s", name)
	for _, pl := range strap {
		if err := s.backend.SetPin(pl.Pin, pl.Level); err != nil {
			return fmt.Errorf("transport: applying strap %s (pin %s): %w", name, pl.Pin, err)
		}
	}
	return nil
}

// RemoveStrap releases every pin of the named strap.
func (s *Session) RemoveStrap(name string) error {
	strap, err := s.iface.Strap(name)
	if err != nil {
		return err
	}
	glog.V(1).Infof("transport: removing strap %s", name)
	for _, pl := range strap {
		if err := s.backend.ReleasePin(pl.Pin); err != nil {
			return fmt.Errorf("transport: removing strap %s (pin %s): %w", name, pl.Pin, err)
		}
	}
	return nil
}

// WithStraps applies the named straps in order, runs fn, and always removes
// the straps in reverse order, including on failure. Removal failures are
// logged and reported only when fn itself succeeded, so they never mask the
// original error.
func (s *Session) WithStraps(names []string, fn func() error) error {
	applied := make([]string, 0, len(names))
	remove := func(prior error) error {
		result := prior
		for i := len(applied) - 1; i >= 0; i-- {
			if err := s.RemoveStrap(applied[i]); err != nil {
				glog.Warningf("transport: removing strap %s: %v", applied[i], err)
				if result == nil {
					result = err
				}
			}
		}
		return result
	}

	for _, name := range names {
		if err := s.ApplyStrap(name); err != nil {
			return remove(err)
		}
		applied = append(applied, name)
	}
	return remove(fn())
}

// ResetTarget pulses the DUT reset for the given duration and optionally
// waits for the target to come back up.
func (s *Session) ResetTarget(pulse time.Duration, waitReady bool) error {
	glog.V(1).Infof("transport: resetting target (pulse %s)", pulse)
	if err := s.backend.Reset(pulse, waitReady); err != nil {
		return fmt.Errorf("transport: resetting target: %w", err)
	}
	return nil
}

// readyPin adapts a backend input pin to the console's pacing interface.
type readyPin struct {
	backend Backend
	name    string
}

func (r *readyPin) Level() (bool, error) { return r.backend.PinLevel(r.name) }

// OpenConsole resolves a logical channel name ("BOOTSTRAP", "console") to a
// console link over the backend.
func (s *Session) OpenConsole(channel string) (console.Link, error) {
	ch, err := s.iface.Channel(channel)
	if err != nil {
		return nil, err
	}
	if provider, ok := s.backend.(ConsoleProvider); ok {
		return provider.Console(ch.Device)
	}
	switch ch.Kind {
	case "spi":
		dev, err := s.backend.SPI(ch.Device)
		if err != nil {
			return nil, fmt.Errorf("transport: opening SPI channel %s: %w", channel, err)
		}
		var ready console.ReadyPin
		if ch.ReadyPin != "" {
			ready = &readyPin{backend: s.backend, name: ch.ReadyPin}
		}
		return console.NewSPILink(dev, ready, true), nil
	case "uart":
		link, err := s.backend.UART(ch.Device, ch.Baudrate)
		if err != nil {
			return nil, fmt.Errorf("transport: opening UART channel %s: %w", channel, err)
		}
		return link, nil
	}
	return nil, fmt.Errorf("transport: channel %s has unknown kind %q", channel, ch.Kind)
}

// OpenSPI opens the raw SPI device behind a logical channel, bypassing the
// console framing. The flash bootstrap path uses this.
func (s *Session) OpenSPI(channel string) (console.SPIDevice, error) {
	ch, err := s.iface.Channel(channel)
	if err != nil {
		return nil, err
	}
	if ch.Kind != "spi" {
		return nil, fmt.Errorf("transport: channel %s is not SPI", channel)
	}
	dev, err := s.backend.SPI(ch.Device)
	if err != nil {
		return nil, fmt.Errorf("transport: opening SPI channel %s: %w", channel, err)
	}
	return dev, nil
}

// trackedHandle clears the session's connection flag on disconnect.
type trackedHandle struct {
	jtag.Handle
	session *Session
}

func (t *trackedHandle) Disconnect() error {
	t.session.jtagLive = false
	return t.Handle.Disconnect()
}

// OpenJtag connects to the given TAP. At most one connection may be live
// per session; the handle must be disconnected before the next one opens.
func (s *Session) OpenJtag(params jtag.Params, tap jtag.Tap) (jtag.Handle, error) {
	if s.jtagLive {
		return nil, ErrJtagBusy
	}
	h, err := s.backend.Jtag(params, tap)
	if err != nil {
		return nil, fmt.Errorf("transport: connecting to %s TAP: %w", tap, err)
	}
	s.jtagLive = true
	return &trackedHandle{Handle: h, session: s}, nil
}

// Fpga returns the bitstream interface or an error when the backend has no
// reprogrammable logic.
func (s *Session) Fpga() (Fpga, error) {
	f, ok := s.backend.(Fpga)
	if !ok {
		return nil, fmt.Errorf("transport: %s backend does not support bitstream loading", s.backend.Name())
	}
	return f, nil
}

// Close releases the backend.
func (s *Session) Close() error {
	return s.backend.Close()
}
