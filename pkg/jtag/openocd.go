package jtag

import (
	"bytes"
	"fmt"
	"net"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/golang/glog"
)

// tclTerminator ends every command and reply on OpenOCD's TCL RPC port.
const tclTerminator = 0x1a

const (
	tclConnectRetry   = 100 * time.Millisecond
	tclConnectTimeout = 5 * time.Second
)

// OpenOCD drives one TAP through a dedicated OpenOCD server process,
// speaking the TCL RPC protocol over a loopback socket.
type OpenOCD struct {
	tap  Tap
	proc *exec.Cmd
	conn net.Conn
}

var hexValue = regexp.MustCompile(`0x[0-9a-fA-F]+`)

// Connect launches OpenOCD against the adapter described by params and
// attaches to the selected TAP. The strap configuration exposing that TAP
// must already be applied and the target reset.
func Connect(params Params, tap Tap) (*OpenOCD, error) {
	speed := params.AdapterSpeedKHz
	if speed == 0 {
		speed = DefaultAdapterSpeedKHz
	}

	port, err := freeLoopbackPort()
	if err != nil {
		return nil, fmt.Errorf("jtag: allocating TCL port: %w", err)
	}

	args := []string{
		"-c", fmt.Sprintf("tcl_port %d", port),
		"-c", "gdb_port disabled",
		"-c", "telnet_port disabled",
	}
	if params.AdapterConfig != "" {
		args = append(args, "-f", params.AdapterConfig)
	}
	args = append(args, "-c", fmt.Sprintf("adapter speed %d", speed))
	if params.TargetConfig != "" {
		args = append(args, "-f", params.TargetConfig)
	}
	args = append(args, "-c", "init")

	proc := exec.Command(params.OpenOCDPath, args...)
	if params.LogStdio {
		proc.Stdout = os.Stderr
		proc.Stderr = os.Stderr
	}
	if err := proc.Start(); err != nil {
		return nil, fmt.Errorf("jtag: starting openocd: %w", err)
	}
	glog.V(1).Infof("jtag: openocd pid %d, tcl port %d, tap %s", proc.Process.Pid, port, tap)

	conn, err := dialTCL(port)
	if err != nil {
		proc.Process.Kill()
		proc.Wait()
		return nil, err
	}

	o := &OpenOCD{tap: tap, proc: proc, conn: conn}
	if _, err := o.eval("capture version"); err != nil {
		o.Disconnect()
		return nil, fmt.Errorf("jtag: openocd handshake: %w", err)
	}
	return o, nil
}

func freeLoopbackPort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()
	return port, nil
}

func dialTCL(port int) (net.Conn, error) {
	deadline := time.Now().Add(tclConnectTimeout)
	for {
		conn, err := net.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", port))
		if err == nil {
			return conn, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("jtag: connecting to openocd TCL port %d: %w", port, err)
		}
		time.Sleep(tclConnectRetry)
	}
}

// eval sends one TCL command and returns its textual reply.
func (o *OpenOCD) eval(cmd string) (string, error) {
	glog.V(2).Infof("jtag: tcl> %s", cmd)
	if _, err := o.conn.Write(append([]byte(cmd), tclTerminator)); err != nil {
		return "", fmt.Errorf("jtag: sending %q: %w", cmd, err)
	}
	var reply []byte
	buf := make([]byte, 256)
	for {
		n, err := o.conn.Read(buf)
		if err != nil {
			return "", fmt.Errorf("jtag: reading reply to %q: %w", cmd, err)
		}
		reply = append(reply, buf[:n]...)
		if i := bytes.IndexByte(reply, tclTerminator); i >= 0 {
			out := strings.TrimSpace(string(reply[:i]))
			glog.V(2).Infof("jtag: tcl< %s", out)
			return out, nil
		}
	}
}

func parseHexWord(out string) (uint32, error) {
	m := hexValue.FindString(out)
	if m == "" {
		return 0, fmt.Errorf("jtag: no value in reply %q", out)
	}
	v, err := strconv.ParseUint(m[2:], 16, 32)
	if err != nil {
		return 0, fmt.Errorf("jtag: parsing %q: %w", m, err)
	}
	return uint32(v), nil
}

// Tap reports the connected TAP.
func (o *OpenOCD) Tap() Tap { return o.tap }

// ReadLcReg reads a life-cycle controller register over the LC TAP's debug
// module interface.
func (o *OpenOCD) ReadLcReg(reg LcReg) (uint32, error) {
	if o.tap != TapLc {
		return 0, ErrWrongTap
	}
	out, err := o.eval(fmt.Sprintf("riscv dmi_read 0x%x", uint32(reg)/4))
	if err != nil {
		return 0, err
	}
	return parseHexWord(out)
}

// WriteLcReg writes a life-cycle controller register.
func (o *OpenOCD) WriteLcReg(reg LcReg, value uint32) error {
	if o.tap != TapLc {
		return ErrWrongTap
	}
	_, err := o.eval(fmt.Sprintf("riscv dmi_write 0x%x 0x%x", uint32(reg)/4, value))
	return err
}

// Halt stops the core.
func (o *OpenOCD) Halt() error {
	if o.tap != TapRiscv {
		return ErrWrongTap
	}
	_, err := o.eval("halt")
	return err
}

// Resume lets the core run from its current PC.
func (o *OpenOCD) Resume() error {
	if o.tap != TapRiscv {
		return ErrWrongTap
	}
	_, err := o.eval("resume")
	return err
}

// Reset resets the core, leaving it running or halted at the reset vector.
func (o *OpenOCD) Reset(run bool) error {
	if o.tap != TapRiscv {
		return ErrWrongTap
	}
	cmd := "reset halt"
	if run {
		cmd = "reset run"
	}
	_, err := o.eval(cmd)
	return err
}

// ReadReg reads a named core register.
func (o *OpenOCD) ReadReg(name string) (uint32, error) {
	out, err := o.eval(fmt.Sprintf("reg %s", name))
	if err != nil {
		return 0, err
	}
	return parseHexWord(out)
}

// WriteReg writes a named core register.
func (o *OpenOCD) WriteReg(name string, value uint32) error {
	_, err := o.eval(fmt.Sprintf("reg %s 0x%08x", name, value))
	return err
}

// ReadMem32 reads one 32-bit word from target memory.
func (o *OpenOCD) ReadMem32(addr uint32) (uint32, error) {
	out, err := o.eval(fmt.Sprintf("read_memory 0x%08x 32 1", addr))
	if err != nil {
		return 0, err
	}
	return parseHexWord(out)
}

// WriteMem32 writes one 32-bit word to target memory.
func (o *OpenOCD) WriteMem32(addr uint32, value uint32) error {
	_, err := o.eval(fmt.Sprintf("write_memory 0x%08x 32 {0x%08x}", addr, value))
	return err
}

// ReadMemBlock reads n bytes from target memory.
func (o *OpenOCD) ReadMemBlock(addr uint32, n int) ([]byte, error) {
	out, err := o.eval(fmt.Sprintf("read_memory 0x%08x 8 %d", addr, n))
	if err != nil {
		return nil, err
	}
	fields := hexValue.FindAllString(out, -1)
	if len(fields) != n {
		return nil, fmt.Errorf("jtag: read_memory returned %d bytes, want %d", len(fields), n)
	}
	data := make([]byte, n)
	for i, f := range fields {
		v, err := strconv.ParseUint(f[2:], 16, 8)
		if err != nil {
			return nil, fmt.Errorf("jtag: parsing %q: %w", f, err)
		}
		data[i] = byte(v)
	}
	return data, nil
}

// writeBlockChunkBytes bounds one write_memory command so the TCL line stays
// well under OpenOCD's input limit.
const writeBlockChunkBytes = 1024

// WriteMemBlock writes data to target memory starting at addr.
func (o *OpenOCD) WriteMemBlock(addr uint32, data []byte) error {
	for off := 0; off < len(data); off += writeBlockChunkBytes {
		end := off + writeBlockChunkBytes
		if end > len(data) {
			end = len(data)
		}
		var sb strings.Builder
		for _, b := range data[off:end] {
			fmt.Fprintf(&sb, "0x%02x ", b)
		}
		cmd := fmt.Sprintf("write_memory 0x%08x 8 {%s}", addr+uint32(off), strings.TrimSpace(sb.String()))
		if _, err := o.eval(cmd); err != nil {
			return err
		}
	}
	return nil
}

// Disconnect shuts the OpenOCD server down and reaps the process.
func (o *OpenOCD) Disconnect() error {
	var firstErr error
	if o.conn != nil {
		if _, err := o.eval("shutdown"); err != nil {
			firstErr = err
		}
		o.conn.Close()
		o.conn = nil
	}
	if o.proc != nil {
		done := make(chan error, 1)
		go func() { done <- o.proc.Wait() }()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			o.proc.Process.Kill()
			<-done
		}
		o.proc = nil
	}
	return firstErr
}
