//go:build !linux

package gpio

import "errors"

// Real is not available on non-Linux platforms.
type Real struct{}

// NewReal returns an error on non-Linux platforms.
func NewReal(chipName string) (*Real, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// Setup is not implemented on non-Linux platforms.
func (r *Real) Setup(pin int) error {
	return errors.New("gpio: not supported")
}

// Read is not implemented on non-Linux platforms.
func (r *Real) Read(pin int) (byte, error) {
	return 0, errors.New("gpio: not supported")
}

// Write is not implemented on non-Linux platforms.
func (r *Real) Write(pin int, value byte) error {
	return errors.New("gpio: not supported")
}

// Watch is not implemented on non-Linux platforms.
func (r *Real) Watch(pin int, cb Callback) error {
	return errors.New("gpio: not supported")
}

// Close is not implemented on non-Linux platforms.
func (r *Real) Close() error {
	return nil
}
