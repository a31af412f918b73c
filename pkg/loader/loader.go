// Package loader moves firmware onto the DUT: FPGA bitstreams, SRAM test
// programs pushed over the debug port, and flash images pushed through the
// ROM's serial bootstrap. It also verifies that a freshly loaded image
// actually boots by watching the console for the boot banners.
package loader

import (
	"errors"
	"fmt"
	"time"
)

const (
	// resetPulse is the standard reset pulse before loading or booting.
	resetPulse = 50 * time.Millisecond

	// bootstrapResetDelay is the longer pulse the ROM needs to sample the
	// bootstrap strap reliably.
	bootstrapResetDelay = 100 * time.Millisecond
)

// ExecutionMode selects what happens after an SRAM program starts running.
type ExecutionMode int

const (
	// Jump starts the program and returns immediately.
	Jump ExecutionMode = iota
	// JumpAndWait starts the program and blocks until it reports an exit
	// status or the timeout passes.
	JumpAndWait
)

func (m ExecutionMode) String() string {
	switch m {
	case Jump:
		return "jump"
	case JumpAndWait:
		return "jump-and-wait"
	}
	return "unknown"
}

// ErrExecTimeout indicates an SRAM program never reported completion.
var ErrExecTimeout = errors.New("loader: SRAM program did not report completion before timeout")

// ExecutionFaultError reports that an SRAM program ran to an explicit
// failure, carrying the status word it wrote on exit.
type ExecutionFaultError struct {
	Status uint32
}

func (e *ExecutionFaultError) Error() string {
	return fmt.Sprintf("loader: SRAM program reported fault status 0x%08X", e.Status)
}
