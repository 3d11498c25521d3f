package gpio

import "sync"

// pinState is the value and optional change callback of one pin.
type pinState struct {
	value byte
	cb    Callback
}

// PinValue is one entry of a registry snapshot.
type PinValue struct {
	Pin   int
	Value byte
}

// Registry is the in-memory pin table shared by the simulated facade
// and the simulator network server. A single mutex guards the whole
// table; it is held for table access only and never across a callback
// invocation or a socket write, so callbacks may re-enter the registry
// without deadlocking.
type Registry struct {
	mu   sync.Mutex
	pins map[int]pinState
}

// NewRegistry creates an empty pin registry.
func NewRegistry() *Registry {
	return &Registry{pins: make(map[int]pinState)}
}

// Setup registers a pin with value 0 and no callback. Setting up a pin
// that already exists resets its value and clears its callback.
func (r *Registry) Setup(pin int) {
	r.mu.Lock()
	r.pins[pin] = pinState{}
	r.mu.Unlock()
}

// Read returns the current value of the pin. ok is false if the pin
// was never set up.
func (r *Registry) Read(pin int) (value byte, ok bool) {
	r.mu.Lock()
	st, ok := r.pins[pin]
	r.mu.Unlock()
	return st.value, ok
}

// Write replaces the pin's value, preserving its callback, and then
// invokes the callback (if any) with the lock released. Writes to pins
// that were never set up are silently dropped.
func (r *Registry) Write(pin int, value byte) (ok bool) {
	var cb Callback

	r.mu.Lock()
	st, ok := r.pins[pin]
	if ok {
		cb = st.cb
		st.value = value
		r.pins[pin] = st
	}
	r.mu.Unlock()

	// Invoked outside the critical section so a callback that reads or
	// writes a pin does not deadlock.
	if cb != nil {
		cb(pin)
	}
	return ok
}

// Watch attaches a callback to an already registered pin, preserving
// its current value. Returns false if the pin was never set up.
func (r *Registry) Watch(pin int, cb Callback) (ok bool) {
	r.mu.Lock()
	st, ok := r.pins[pin]
	if ok {
		st.cb = cb
		r.pins[pin] = st
	}
	r.mu.Unlock()
	return ok
}

// Snapshot returns a copy of the whole table in ascending pin order,
// taken under a single lock acquisition.
func (r *Registry) Snapshot() []PinValue {
	r.mu.Lock()
	out := make([]PinValue, 0, len(r.pins))
	for pin, st := range r.pins {
		out = append(out, PinValue{Pin: pin, Value: st.value})
	}
	r.mu.Unlock()

	// Map iteration order is random; sort so full syncs are stable.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Pin < out[j-1].Pin; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// Len returns the number of registered pins.
func (r *Registry) Len() int {
	r.mu.Lock()
	n := len(r.pins)
	r.mu.Unlock()
	return n
}
