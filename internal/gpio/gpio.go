// Package gpio provides digital I/O with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The simulated implementation backs pins with an in-memory registry
// that a TCP simulator client can inspect and drive.
package gpio

// Callback is invoked with the pin number after a pin's value changes.
// It runs on the goroutine that performed the write, after the pin
// table lock has been released, so it may safely read or write pins.
type Callback func(pin int)

// Interface is the digital I/O surface shared by the real and
// simulated backends.
type Interface interface {
	// Setup registers a pin as an input line with value 0.
	// Setting up a pin again clears any watch callback on it.
	Setup(pin int) error

	// Read returns the current value of the pin.
	Read(pin int) (byte, error)

	// Write sets the value of the pin. Writes to pins that were never
	// set up are dropped.
	Write(pin int, value byte) error

	// Watch attaches a change callback to a pin, replacing any
	// previous one. The equivalent of edge detection on real hardware.
	Watch(pin int, cb Callback) error

	// Close releases all hardware resources.
	Close() error
}
