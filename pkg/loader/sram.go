package loader

import (
	"debug/elf"
	"fmt"
	"hash/crc32"
	"io"
	"time"

	"github.com/golang/glog"

	"github.com/siliconforge/dutlink/internal/config"
	"github.com/siliconforge/dutlink/pkg/jtag"
	"github.com/siliconforge/dutlink/pkg/transport"
)

// The on-device test runtime writes its exit status to a fixed word near
// the top of main SRAM. Pass and fail values are burned into the runtime.
const (
	execStatusAddr uint32 = 0x1001FFF8
	execStatusPass uint32 = 0x900D
	execStatusFail uint32 = 0xBAAD
)

const execPollInterval = 10 * time.Millisecond

// SramProgram describes one program to load into the DUT's main SRAM.
type SramProgram struct {
	// ElfPath locates the executable. Loadable segments are written to
	// their physical addresses.
	ElfPath string
	// SkipVerify skips the CRC readback of written segments.
	SkipVerify bool
}

type segment struct {
	addr uint32
	data []byte
}

// readProgram extracts the loadable segments and entry point from the ELF
// at path.
func readProgram(path string) ([]segment, uint32, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("loader: reading %s: %w", path, err)
	}
	defer f.Close()

	var segs []segment
	for _, p := range f.Progs {
		if p.Type != elf.PT_LOAD || p.Filesz == 0 {
			continue
		}
		data := make([]byte, p.Filesz)
		if _, err := io.ReadFull(p.Open(), data); err != nil {
			return nil, 0, fmt.Errorf("loader: reading segment at 0x%08X from %s: %w", p.Paddr, path, err)
		}
		segs = append(segs, segment{addr: uint32(p.Paddr), data: data})
	}
	if len(segs) == 0 {
		return nil, 0, fmt.Errorf("loader: %s has no loadable segments", path)
	}
	return segs, uint32(f.Entry), nil
}

// LoadSramProgram writes the program's segments into SRAM over the RISC-V
// debug port and starts it at its entry point. In JumpAndWait mode it then
// polls the execution status word until the program reports pass or fail,
// or timeout elapses (ErrExecTimeout). The strap and the debug connection
// are released on every exit path.
func LoadSramProgram(sess *transport.Session, params jtag.Params, prog SramProgram, mode ExecutionMode, timeout time.Duration) error {
	// Parse the image before touching any hardware.
	segs, entry, err := readProgram(prog.ElfPath)
	if err != nil {
		return err
	}

	return sess.WithStraps([]string{config.StrapTapRiscv}, func() (err error) {
		if err := sess.ResetTarget(resetPulse, true); err != nil {
			return err
		}
		h, err := sess.OpenJtag(params, jtag.TapRiscv)
		if err != nil {
			return err
		}
		defer func() {
			if derr := h.Disconnect(); derr != nil {
				glog.Warningf("loader: disconnecting JTAG: %v", derr)
				if err == nil {
					err = derr
				}
			}
		}()

		// Halt at the reset vector so the ROM cannot race the writes.
		if err := h.Reset(false); err != nil {
			return err
		}

		for _, seg := range segs {
			glog.V(1).Infof("loader: writing %d bytes at 0x%08X", len(seg.data), seg.addr)
			if err := h.WriteMemBlock(seg.addr, seg.data); err != nil {
				return err
			}
			if prog.SkipVerify {
				continue
			}
			readback, err := h.ReadMemBlock(seg.addr, len(seg.data))
			if err != nil {
				return err
			}
			if crc32.ChecksumIEEE(readback) != crc32.ChecksumIEEE(seg.data) {
				return fmt.Errorf("loader: segment at 0x%08X failed readback verification", seg.addr)
			}
		}

		if err := h.WriteMem32(execStatusAddr, 0); err != nil {
			return err
		}
		if err := h.WriteReg("pc", entry); err != nil {
			return err
		}
		if err := h.Resume(); err != nil {
			return err
		}
		glog.V(1).Infof("loader: %s running at 0x%08X (%s)", prog.ElfPath, entry, mode)
		if mode == Jump {
			return nil
		}

		deadline := time.Now().Add(timeout)
		for {
			status, err := h.ReadMem32(execStatusAddr)
			if err != nil {
				return err
			}
			switch status {
			case execStatusPass:
				return nil
			case execStatusFail:
				return &ExecutionFaultError{Status: status}
			}
			if time.Now().After(deadline) {
				return ErrExecTimeout
			}
			time.Sleep(execPollInterval)
		}
	})
}
