package transport

import (
	"fmt"
	"time"

	"github.com/golang/glog"
	"github.com/google/gousb"

	"github.com/siliconforge/dutlink/internal/config"
	"github.com/siliconforge/dutlink/pkg/console"
	"github.com/siliconforge/dutlink/pkg/jtag"
)

// Vendor control requests understood by the CW310 control firmware. Pin
// names travel as ASCII in the request payload; the firmware resolves them
// against its pin table.
const (
	cwReqDefaults     = 0x10
	cwReqSetPin       = 0x20
	cwReqReleasePin   = 0x21
	cwReqReadPin      = 0x22
	cwReqReset        = 0x23
	cwReqFpgaClear    = 0x30
	cwReqFpgaProgram  = 0x31
	cwReqFpgaStatus   = 0x32
	cwReqSpiSelect    = 0x40
	cwReqSpiTransfer  = 0x41
	cwReqTargetStatus = 0x50
)

const (
	cwBitstreamChunk  = 4096
	cwRomPollInterval = 50 * time.Millisecond
)

// CW310 drives the hyper310-class test board over USB: strap pins, DUT
// reset, FPGA bitstream programming, and the SPI channel the DUT console
// rides on. The UART console goes through the board's CDC serial device.
type CW310 struct {
	ctx  *gousb.Context
	dev  *gousb.Device
	intf *gousb.Interface
	done func()

	epOut *gousb.OutEndpoint
	epIn  *gousb.InEndpoint
}

func openCW310(usb config.USB, opts CW310Options) (*CW310, error) {
	ctx := gousb.NewContext()

	var dev *gousb.Device
	devs, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return uint16(desc.Vendor) == usb.VendorID && uint16(desc.Product) == usb.ProductID
	})
	if err != nil {
		for _, d := range devs {
			d.Close()
		}
		ctx.Close()
		return nil, fmt.Errorf("enumerating USB devices: %w", err)
	}
	for _, d := range devs {
		if opts.Serial != "" {
			serial, _ := d.SerialNumber()
			if serial != opts.Serial {
				d.Close()
				continue
			}
		}
		if dev == nil {
			dev = d
		} else {
			d.Close()
		}
	}
	if dev == nil {
		ctx.Close()
		return nil, fmt.Errorf("adapter not found (VID:0x%04X PID:0x%04X serial:%q)",
			usb.VendorID, usb.ProductID, opts.Serial)
	}

	if err := dev.SetAutoDetach(true); err != nil {
		// Not fatal on all platforms.
		glog.V(1).Infof("transport: SetAutoDetach: %v", err)
	}

	intf, done, err := dev.DefaultInterface()
	if err != nil {
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("claiming control interface: %w", err)
	}

	b := &CW310{ctx: ctx, dev: dev, intf: intf, done: done}
	if err := b.findEndpoints(); err != nil {
		b.Close()
		return nil, err
	}
	return b, nil
}

// findEndpoints discovers the bulk pair used for SPI data transfers.
func (b *CW310) findEndpoints() error {
	for _, ep := range b.intf.Setting.Endpoints {
		if ep.TransferType != gousb.TransferTypeBulk {
			continue
		}
		if ep.Direction == gousb.EndpointDirectionOut && b.epOut == nil {
			out, err := b.intf.OutEndpoint(ep.Number)
			if err != nil {
				return fmt.Errorf("opening OUT endpoint: %w", err)
			}
			b.epOut = out
		}
		if ep.Direction == gousb.EndpointDirectionIn && b.epIn == nil {
			in, err := b.intf.InEndpoint(ep.Number)
			if err != nil {
				return fmt.Errorf("opening IN endpoint: %w", err)
			}
			b.epIn = in
		}
	}
	if b.epOut == nil || b.epIn == nil {
		return fmt.Errorf("bulk endpoint pair not found")
	}
	return nil
}

func (b *CW310) Name() string { return "cw310" }

func (b *CW310) control(request uint8, value uint16, payload []byte) error {
	_, err := b.dev.Control(gousb.ControlOut|gousb.ControlVendor|gousb.ControlInterface,
		request, value, 0, payload)
	return err
}

func (b *CW310) controlIn(request uint8, value uint16, payload []byte, n int) ([]byte, error) {
	buf := make([]byte, n)
	// Request-specific selector data rides in a preceding OUT transfer.
	if len(payload) > 0 {
		if err := b.control(request, value, payload); err != nil {
			return nil, err
		}
	}
	read, err := b.dev.Control(gousb.ControlIn|gousb.ControlVendor|gousb.ControlInterface,
		request, value, 0, buf)
	if err != nil {
		return nil, err
	}
	return buf[:read], nil
}

// ApplyDefaults puts clocks, rails, and pin directions into the station
// default state.
func (b *CW310) ApplyDefaults() error {
	if err := b.control(cwReqDefaults, 0, nil); err != nil {
		return fmt.Errorf("cw310: applying defaults: %w", err)
	}
	return nil
}

func (b *CW310) SetPin(name string, level bool) error {
	var v uint16
	if level {
		v = 1
	}
	if err := b.control(cwReqSetPin, v, []byte(name)); err != nil {
		return fmt.Errorf("cw310: driving pin %s: %w", name, err)
	}
	return nil
}

func (b *CW310) ReleasePin(name string) error {
	if err := b.control(cwReqReleasePin, 0, []byte(name)); err != nil {
		return fmt.Errorf("cw310: releasing pin %s: %w", name, err)
	}
	return nil
}

func (b *CW310) PinLevel(name string) (bool, error) {
	out, err := b.controlIn(cwReqReadPin, 0, []byte(name), 1)
	if err != nil {
		return false, fmt.Errorf("cw310: reading pin %s: %w", name, err)
	}
	return len(out) == 1 && out[0] != 0, nil
}

func (b *CW310) Reset(pulse time.Duration, waitReady bool) error {
	if err := b.control(cwReqReset, 1, nil); err != nil {
		return fmt.Errorf("cw310: asserting reset: %w", err)
	}
	time.Sleep(pulse)
	if err := b.control(cwReqReset, 0, nil); err != nil {
		return fmt.Errorf("cw310: releasing reset: %w", err)
	}
	if waitReady {
		deadline := time.Now().Add(2 * time.Second)
		for {
			out, err := b.controlIn(cwReqTargetStatus, 0, nil, 1)
			if err == nil && len(out) == 1 && out[0] != 0 {
				return nil
			}
			if time.Now().After(deadline) {
				return fmt.Errorf("cw310: target not ready after reset")
			}
			time.Sleep(cwRomPollInterval)
		}
	}
	return nil
}

// cwSPI performs SPI transfers through the bulk endpoint pair. Only one SPI
// device is selectable at a time; the select request routes the mux.
type cwSPI struct {
	backend *CW310
}

func (s *cwSPI) Transfer(tx, rx []byte) error {
	if _, err := s.backend.epOut.Write(tx); err != nil {
		return fmt.Errorf("cw310: SPI write: %w", err)
	}
	if rx == nil {
		return nil
	}
	read := 0
	for read < len(rx) {
		n, err := s.backend.epIn.Read(rx[read:])
		if err != nil {
			return fmt.Errorf("cw310: SPI read: %w", err)
		}
		read += n
	}
	return nil
}

func (b *CW310) SPI(device string) (console.SPIDevice, error) {
	if err := b.control(cwReqSpiSelect, 0, []byte(device)); err != nil {
		return nil, fmt.Errorf("cw310: selecting SPI device %s: %w", device, err)
	}
	return &cwSPI{backend: b}, nil
}

func (b *CW310) UART(device string, baudrate int) (console.Link, error) {
	return console.OpenUART(device, baudrate)
}

func (b *CW310) Jtag(params jtag.Params, tap jtag.Tap) (jtag.Handle, error) {
	return jtag.Connect(params, tap)
}

// ClearBitstream erases the currently loaded FPGA design.
func (b *CW310) ClearBitstream() error {
	if err := b.control(cwReqFpgaClear, 0, nil); err != nil {
		return fmt.Errorf("cw310: clearing bitstream: %w", err)
	}
	return nil
}

// LoadBitstream programs the FPGA over the bulk pipe in fixed chunks.
func (b *CW310) LoadBitstream(data []byte) error {
	if err := b.control(cwReqFpgaProgram, 0, nil); err != nil {
		return fmt.Errorf("cw310: entering program mode: %w", err)
	}
	for off := 0; off < len(data); off += cwBitstreamChunk {
		end := off + cwBitstreamChunk
		if end > len(data) {
			end = len(data)
		}
		if _, err := b.epOut.Write(data[off:end]); err != nil {
			return fmt.Errorf("cw310: writing bitstream at offset %d: %w", off, err)
		}
	}
	if err := b.control(cwReqFpgaProgram, 1, nil); err != nil {
		return fmt.Errorf("cw310: finishing program mode: %w", err)
	}
	return nil
}

// WaitRomReady polls the FPGA status until the post-load ROM reports done.
func (b *CW310) WaitRomReady(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		out, err := b.controlIn(cwReqFpgaStatus, 0, nil, 1)
		if err == nil && len(out) == 1 && out[0] != 0 {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("cw310: ROM not ready within %s", timeout)
		}
		time.Sleep(cwRomPollInterval)
	}
}

func (b *CW310) Close() error {
	if b.done != nil {
		b.done()
		b.done = nil
	}
	if b.dev != nil {
		b.dev.Close()
		b.dev = nil
	}
	if b.ctx != nil {
		b.ctx.Close()
		b.ctx = nil
	}
	return nil
}
