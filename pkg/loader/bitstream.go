package loader

import (
	"fmt"
	"os"
	"time"

	"github.com/golang/glog"

	"github.com/siliconforge/dutlink/pkg/transport"
)

// romBootTimeout bounds how long the ROM may take to signal readiness after
// a fresh bitstream comes up.
const romBootTimeout = 2 * time.Second

// LoadBitstream clears any design already in the backend's reprogrammable
// logic, programs the bitstream at path, resets the target, and waits for
// the ROM to come up.
func LoadBitstream(sess *transport.Session, path string) error {
	fpga, err := sess.Fpga()
	if err != nil {
		return fmt.Errorf("loader: load bitstream: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("loader: load bitstream: %w", err)
	}

	glog.V(1).Infof("loader: programming %d-byte bitstream from %s", len(data), path)
	if err := fpga.ClearBitstream(); err != nil {
		return fmt.Errorf("loader: clearing bitstream: %w", err)
	}
	if err := fpga.LoadBitstream(data); err != nil {
		return fmt.Errorf("loader: programming bitstream: %w", err)
	}
	if err := sess.ResetTarget(resetPulse, true); err != nil {
		return fmt.Errorf("loader: load bitstream: %w", err)
	}
	if err := fpga.WaitRomReady(romBootTimeout); err != nil {
		return fmt.Errorf("loader: waiting for ROM after bitstream load: %w", err)
	}
	return nil
}
