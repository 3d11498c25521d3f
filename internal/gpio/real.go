//go:build linux

package gpio

import (
	"fmt"
	"sync"

	"github.com/warthog618/go-gpiocdev"
)

// Real drives actual pins through the Linux GPIO character device.
type Real struct {
	chip *gpiocdev.Chip

	mu    sync.Mutex
	lines map[int]*gpiocdev.Line
	cbs   map[int]Callback
}

// NewReal opens the given GPIO chip (e.g. "gpiochip0").
func NewReal(chipName string) (*Real, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	return &Real{
		chip:  chip,
		lines: make(map[int]*gpiocdev.Line),
		cbs:   make(map[int]Callback),
	}, nil
}

// Setup requests the pin as an input line with pull-down, matching Pi
// boot defaults. Requesting again drops any existing watch callback.
func (r *Real) Setup(pin int) error {
	r.mu.Lock()
	old := r.lines[pin]
	delete(r.lines, pin)
	delete(r.cbs, pin)
	r.mu.Unlock()

	if old != nil {
		old.Close()
	}

	line, err := r.chip.RequestLine(pin,
		gpiocdev.AsInput,
		gpiocdev.WithPullDown,
		gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(r.handleEvent))
	if err != nil {
		return fmt.Errorf("request pin %d: %w", pin, err)
	}

	r.mu.Lock()
	r.lines[pin] = line
	r.mu.Unlock()
	return nil
}

// Read returns the current value of the pin.
func (r *Real) Read(pin int) (byte, error) {
	r.mu.Lock()
	line := r.lines[pin]
	r.mu.Unlock()

	if line == nil {
		return 0, fmt.Errorf("pin %d not set up", pin)
	}
	v, err := line.Value()
	if err != nil {
		return 0, fmt.Errorf("read pin %d: %w", pin, err)
	}
	return byte(v), nil
}

// Write sets the value of the pin. Desk sensors are inputs, so this is
// only exercised by loopback wiring on test rigs.
func (r *Real) Write(pin int, value byte) error {
	r.mu.Lock()
	line := r.lines[pin]
	r.mu.Unlock()

	if line == nil {
		return nil // unregistered writes are dropped, as in the sim
	}
	if err := line.SetValue(int(value)); err != nil {
		return fmt.Errorf("write pin %d: %w", pin, err)
	}
	return nil
}

// Watch attaches a callback invoked on edge events for the pin.
func (r *Real) Watch(pin int, cb Callback) error {
	r.mu.Lock()
	_, ok := r.lines[pin]
	if ok {
		r.cbs[pin] = cb
	}
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("pin %d not set up", pin)
	}
	return nil
}

// handleEvent runs on the gpiocdev event goroutine.
func (r *Real) handleEvent(evt gpiocdev.LineEvent) {
	r.mu.Lock()
	cb := r.cbs[evt.Offset]
	r.mu.Unlock()

	if cb != nil {
		cb(evt.Offset)
	}
}

// Close releases all requested lines and the chip. Lines are
// reconfigured to input with pull-down first so external hardware sees
// Pi boot defaults across restarts.
func (r *Real) Close() error {
	r.mu.Lock()
	lines := r.lines
	r.lines = make(map[int]*gpiocdev.Line)
	r.cbs = make(map[int]Callback)
	r.mu.Unlock()

	var errs []error
	for pin, line := range lines {
		if err := line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure pin %d: %w", pin, err))
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pin %d: %w", pin, err))
		}
	}
	if err := r.chip.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close chip: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
