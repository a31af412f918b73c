package console

import (
	"errors"
	"fmt"
)

// ErrSyncTimeout indicates the configured sync marker never appeared on the
// console before the deadline.
var ErrSyncTimeout = errors.New("console: sync marker not observed before timeout")

// ErrTimeout indicates neither the success nor the failure response marker
// appeared before the deadline. The link remains open and reusable.
var ErrTimeout = errors.New("console: no response marker observed before timeout")

// CRCMismatchError reports that the CRC declared by the DUT does not match
// the checksum computed over the received payload.
type CRCMismatchError struct {
	Declared uint32
	Computed uint32
}

func (e *CRCMismatchError) Error() string {
	return fmt.Sprintf("console: CRC mismatch: payload computes to %d, response declared %d",
		e.Computed, e.Declared)
}

// FrameCapacityError reports that the caller supplied fewer frames than the
// payload requires. It is raised before any frame is written.
type FrameCapacityError struct {
	Need int
	Have int
}

func (e *FrameCapacityError) Error() string {
	return fmt.Sprintf("console: payload needs %d frames of %d bytes, caller supplied %d",
		e.Need, FrameCapacity, e.Have)
}

// RemoteError carries the payload of a RESP_ERR response. The payload has
// already passed the CRC check when this error is returned.
type RemoteError struct {
	Payload string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("console: DUT rejected request: %s", e.Payload)
}
