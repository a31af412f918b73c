package jtag

import (
	"bytes"
	"errors"
	"testing"
)

func TestParseHexWord(t *testing.T) {
	cases := []struct {
		in   string
		want uint32
		ok   bool
	}{
		{"0x00000552", 0x552, true},
		{"pc (/32): 0x00010080", 0x10080, true},
		{"0xDEADBEEF", 0xDEADBEEF, true},
		{"no value here", 0, false},
	}
	for _, tc := range cases {
		got, err := parseHexWord(tc.in)
		if tc.ok && (err != nil || got != tc.want) {
			t.Errorf("parseHexWord(%q) = (0x%X, %v), want 0x%X", tc.in, got, err, tc.want)
		}
		if !tc.ok && err == nil {
			t.Errorf("parseHexWord(%q) succeeded, want error", tc.in)
		}
	}
}

func TestLcStatusHasError(t *testing.T) {
	if LcStatusHasError(LcStatusInitialized | LcStatusReady | LcStatusTransitionSuccessful) {
		t.Fatal("success status flagged as error")
	}
	for _, bit := range []uint32{
		LcStatusTransitionCountError, LcStatusTransitionError, LcStatusTokenError,
		LcStatusFlashRmaError, LcStatusOtpError, LcStatusStateError,
		LcStatusBusIntegError, LcStatusOtpPartitionError,
	} {
		if !LcStatusHasError(bit) {
			t.Fatalf("error bit 0x%X not flagged", bit)
		}
	}
}

func TestFakeMemoryRoundTrip(t *testing.T) {
	f := NewFake(TapRiscv)
	data := []byte{0x11, 0x22, 0x33, 0x44, 0x55}
	if err := f.WriteMemBlock(0x1000, data); err != nil {
		t.Fatalf("WriteMemBlock: %v", err)
	}
	got, err := f.ReadMemBlock(0x1000, len(data))
	if err != nil {
		t.Fatalf("ReadMemBlock: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("ReadMemBlock = %x, want %x", got, data)
	}
	word, err := f.ReadMem32(0x1000)
	if err != nil {
		t.Fatalf("ReadMem32: %v", err)
	}
	if word != 0x44332211 {
		t.Fatalf("ReadMem32 = 0x%08X, want 0x44332211", word)
	}
}

func TestFakeTapGuards(t *testing.T) {
	riscv := NewFake(TapRiscv)
	if _, err := riscv.ReadLcReg(LcRegLcState); !errors.Is(err, ErrWrongTap) {
		t.Fatalf("ReadLcReg on RISC-V TAP = %v, want ErrWrongTap", err)
	}
	lc := NewFake(TapLc)
	if err := lc.WriteLcReg(LcRegTransitionCmd, TransitionCmdStart); err != nil {
		t.Fatalf("WriteLcReg: %v", err)
	}
	if got := lc.LcWriteValues(LcRegTransitionCmd); len(got) != 1 || got[0] != TransitionCmdStart {
		t.Fatalf("LcWriteValues = %v, want [1]", got)
	}
}
