package jtag

import "fmt"

// LcWrite records one life-cycle register write for inspection in tests.
type LcWrite struct {
	Reg   LcReg
	Value uint32
}

// Fake is an in-memory Handle for unit tests. Register and memory state
// live in maps, writes are recorded in order, and hooks let a test script
// the controller's reaction to writes.
type Fake struct {
	TapKind Tap

	// LcRegs serves ReadLcReg and absorbs WriteLcReg.
	LcRegs map[LcReg]uint32
	// OnLcWrite, when set, runs after every life-cycle register write so
	// tests can emulate controller state machines.
	OnLcWrite func(f *Fake, reg LcReg, value uint32)

	Regs map[string]uint32
	Mem  map[uint32]byte

	// OnResume, when set, runs after Resume so tests can emulate the
	// program the core starts executing.
	OnResume func(f *Fake)

	LcWrites    []LcWrite
	Halted      bool
	Resumed     bool
	Resets      int
	Disconnects int

	// Err, when set, is returned by every operation.
	Err error
}

// NewFake returns a Fake attached to the given TAP with empty state.
func NewFake(tap Tap) *Fake {
	return &Fake{
		TapKind: tap,
		LcRegs:  make(map[LcReg]uint32),
		Regs:    make(map[string]uint32),
		Mem:     make(map[uint32]byte),
	}
}

func (f *Fake) Tap() Tap { return f.TapKind }

func (f *Fake) ReadLcReg(reg LcReg) (uint32, error) {
	if f.Err != nil {
		return 0, f.Err
	}
	if f.TapKind != TapLc {
		return 0, ErrWrongTap
	}
	return f.LcRegs[reg], nil
}

func (f *Fake) WriteLcReg(reg LcReg, value uint32) error {
	if f.Err != nil {
		return f.Err
	}
	if f.TapKind != TapLc {
		return ErrWrongTap
	}
	f.LcRegs[reg] = value
	f.LcWrites = append(f.LcWrites, LcWrite{Reg: reg, Value: value})
	if f.OnLcWrite != nil {
		f.OnLcWrite(f, reg, value)
	}
	return nil
}

func (f *Fake) Halt() error {
	if f.Err != nil {
		return f.Err
	}
	f.Halted = true
	return nil
}

func (f *Fake) Resume() error {
	if f.Err != nil {
		return f.Err
	}
	f.Halted = false
	f.Resumed = true
	if f.OnResume != nil {
		f.OnResume(f)
	}
	return nil
}

func (f *Fake) Reset(run bool) error {
	if f.Err != nil {
		return f.Err
	}
	f.Resets++
	f.Halted = !run
	return nil
}

func (f *Fake) ReadReg(name string) (uint32, error) {
	if f.Err != nil {
		return 0, f.Err
	}
	return f.Regs[name], nil
}

func (f *Fake) WriteReg(name string, value uint32) error {
	if f.Err != nil {
		return f.Err
	}
	f.Regs[name] = value
	return nil
}

func (f *Fake) ReadMem32(addr uint32) (uint32, error) {
	if f.Err != nil {
		return 0, f.Err
	}
	b, err := f.ReadMemBlock(addr, 4)
	if err != nil {
		return 0, err
	}
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24, nil
}

func (f *Fake) WriteMem32(addr uint32, value uint32) error {
	return f.WriteMemBlock(addr, []byte{
		byte(value), byte(value >> 8), byte(value >> 16), byte(value >> 24),
	})
}

func (f *Fake) ReadMemBlock(addr uint32, n int) ([]byte, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	data := make([]byte, n)
	for i := range data {
		data[i] = f.Mem[addr+uint32(i)]
	}
	return data, nil
}

func (f *Fake) WriteMemBlock(addr uint32, data []byte) error {
	if f.Err != nil {
		return f.Err
	}
	for i, b := range data {
		f.Mem[addr+uint32(i)] = b
	}
	return nil
}

func (f *Fake) Disconnect() error {
	f.Disconnects++
	return nil
}

// LcWriteValues returns the values written to reg in order, for asserting
// token programming sequences.
func (f *Fake) LcWriteValues(reg LcReg) []uint32 {
	var vals []uint32
	for _, w := range f.LcWrites {
		if w.Reg == reg {
			vals = append(vals, w.Value)
		}
	}
	return vals
}

var _ Handle = (*Fake)(nil)

func (f *Fake) String() string {
	return fmt.Sprintf("jtag.Fake(%s)", f.TapKind)
}
