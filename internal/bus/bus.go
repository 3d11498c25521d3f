// Package bus provides raw frame reads from a sensor bus with
// hardware abstraction. The real implementations talk I2C or a UART;
// the fake allows testing the acquisition pipeline without hardware.
package bus

// Reader reads raw sensor frames.
type Reader interface {
	// ReadFrame issues the command byte and reads up to length bytes.
	// It returns the number of bytes actually read and the buffer.
	// Callers treat any count other than length as a transport
	// failure; bus-level error codes are not interpreted here.
	ReadFrame(cmd byte, length int) (int, []byte, error)

	// Close releases the bus device.
	Close() error
}
