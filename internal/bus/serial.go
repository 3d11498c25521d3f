package bus

import (
	"fmt"
	"time"

	"github.com/tarm/serial"
)

// Serial reads sensor frames from a UART-attached sensor module.
type Serial struct {
	port *serial.Port
}

// NewSerial opens the serial port at the given baud rate. The read
// timeout bounds how long a partial frame can stall a poll cycle.
func NewSerial(device string, baud int) (*Serial, error) {
	port, err := serial.OpenPort(&serial.Config{
		Name:        device,
		Baud:        baud,
		ReadTimeout: 500 * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial port %q: %w", device, err)
	}
	return &Serial{port: port}, nil
}

// ReadFrame writes the command byte and accumulates reads until length
// bytes arrived or the port's read timeout expires. A short count is
// reported as-is; the caller treats it as a transport failure.
func (s *Serial) ReadFrame(cmd byte, length int) (int, []byte, error) {
	if _, err := s.port.Write([]byte{cmd}); err != nil {
		return 0, nil, fmt.Errorf("serial write: %w", err)
	}

	buf := make([]byte, length)
	n := 0
	for n < length {
		m, err := s.port.Read(buf[n:])
		if err != nil {
			return n, buf[:n], fmt.Errorf("serial read: %w", err)
		}
		if m == 0 {
			// Read timeout expired with a partial frame.
			break
		}
		n += m
	}
	return n, buf[:n], nil
}

// Close releases the port.
func (s *Serial) Close() error {
	return s.port.Close()
}
