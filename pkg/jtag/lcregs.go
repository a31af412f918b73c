package jtag

// LcReg is a byte offset into the life-cycle controller register file.
type LcReg uint32

// Life-cycle controller registers, accessed over the LC TAP's debug module
// interface (word addressed, offset/4).
const (
	LcRegAlertTest               LcReg = 0x00
	LcRegStatus                  LcReg = 0x04
	LcRegClaimTransitionIfRegwen LcReg = 0x08
	LcRegClaimTransitionIf       LcReg = 0x0C
	LcRegTransitionRegwen        LcReg = 0x10
	LcRegTransitionCmd           LcReg = 0x14
	LcRegTransitionCtrl          LcReg = 0x18
	LcRegTransitionToken0        LcReg = 0x1C
	LcRegTransitionToken1        LcReg = 0x20
	LcRegTransitionToken2        LcReg = 0x24
	LcRegTransitionToken3        LcReg = 0x28
	LcRegTransitionTarget        LcReg = 0x2C
	LcRegOtpVendorTestCtrl       LcReg = 0x30
	LcRegOtpVendorTestStatus     LcReg = 0x34
	LcRegLcState                 LcReg = 0x38
	LcRegLcTransitionCnt         LcReg = 0x3C
	LcRegLcIdState               LcReg = 0x40
)

// Status register bits.
const (
	LcStatusInitialized          uint32 = 1 << 0
	LcStatusReady                uint32 = 1 << 1
	LcStatusExtClockSwitched     uint32 = 1 << 2
	LcStatusTransitionSuccessful uint32 = 1 << 3
	LcStatusTransitionCountError uint32 = 1 << 4
	LcStatusTransitionError      uint32 = 1 << 5
	LcStatusTokenError           uint32 = 1 << 6
	LcStatusFlashRmaError        uint32 = 1 << 7
	LcStatusOtpError             uint32 = 1 << 8
	LcStatusStateError           uint32 = 1 << 9
	LcStatusBusIntegError        uint32 = 1 << 10
	LcStatusOtpPartitionError    uint32 = 1 << 11
)

// lcStatusErrorMask covers every error bit the transition poll must treat
// as fatal.
const lcStatusErrorMask = LcStatusTransitionCountError | LcStatusTransitionError |
	LcStatusTokenError | LcStatusFlashRmaError | LcStatusOtpError |
	LcStatusStateError | LcStatusBusIntegError | LcStatusOtpPartitionError

// LcStatusHasError reports whether status carries any transition error bit.
func LcStatusHasError(status uint32) bool {
	return status&lcStatusErrorMask != 0
}

// Mubi8True is the multi-bit boolean "true" encoding the life-cycle
// controller expects in its claim-mutex register.
const Mubi8True uint32 = 0x96

// TransitionCmdStart kicks off a programmed life-cycle transition.
const TransitionCmdStart uint32 = 0x1
