package console

import (
	"fmt"

	serial "github.com/albenik/go-serial/v2"
)

// DefaultBaudrate is used when the channel configuration leaves the rate
// unset.
const DefaultBaudrate = 115200

// uartReadTimeoutMs bounds each serial read so protocol-level timeouts stay
// cooperative; it is not the operation timeout.
const uartReadTimeoutMs = 10

// UARTLink is a console link over a host serial port.
type UARTLink struct {
	port *serial.Port
}

// OpenUART opens the serial device at the given baudrate (0 selects
// DefaultBaudrate) with bounded reads suitable for polling loops.
func OpenUART(device string, baudrate int) (*UARTLink, error) {
	if baudrate == 0 {
		baudrate = DefaultBaudrate
	}
	port, err := serial.Open(device,
		serial.WithBaudrate(baudrate),
		serial.WithReadTimeout(uartReadTimeoutMs),
	)
	if err != nil {
		return nil, fmt.Errorf("console: opening UART %s: %w", device, err)
	}
	return &UARTLink{port: port}, nil
}

// Read returns up to len(p) bytes, or (0, nil) when the port is idle.
func (l *UARTLink) Read(p []byte) (int, error) {
	n, err := l.port.Read(p)
	if err != nil {
		return n, fmt.Errorf("console: UART read: %w", err)
	}
	return n, nil
}

// Write sends p verbatim.
func (l *UARTLink) Write(p []byte) (int, error) {
	n, err := l.port.Write(p)
	if err != nil {
		return n, fmt.Errorf("console: UART write: %w", err)
	}
	return n, nil
}

// Close releases the serial port.
func (l *UARTLink) Close() error {
	return l.port.Close()
}
