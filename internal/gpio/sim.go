package gpio

import "sync"

// Syncer is the simulator server surface the facade needs: it is told
// when the pin table changed and is shut down on Close. Kept as an
// interface so gpio does not import the simulator package.
type Syncer interface {
	// MarkDirty records that the connected client owes a full sync.
	MarkDirty()
	// Shutdown stops the server and joins its goroutine.
	Shutdown()
}

// Sim is the simulated hardware backend. It speaks the vocabulary of a
// real digital I/O interface and delegates all state to a Registry
// shared with the simulator network server.
type Sim struct {
	reg *Registry

	mu     sync.Mutex // guards syncer; writes come from two goroutines
	syncer Syncer
}

// NewSim creates a simulated backend over the given registry.
func NewSim(reg *Registry) *Sim {
	return &Sim{reg: reg}
}

// Attach connects a simulator server. Writes after this point mark the
// server dirty, and Close shuts it down.
func (s *Sim) Attach(syncer Syncer) {
	s.mu.Lock()
	s.syncer = syncer
	s.mu.Unlock()
}

func (s *Sim) attached() Syncer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.syncer
}

// Registry returns the shared pin table.
func (s *Sim) Registry() *Registry {
	return s.reg
}

// Setup registers the pin in the simulated pin table.
func (s *Sim) Setup(pin int) error {
	s.reg.Setup(pin)
	return nil
}

// Read returns the simulated value of the pin. Reading a pin that was
// never set up yields 0, mirroring the permissive behavior of writes.
func (s *Sim) Read(pin int) (byte, error) {
	v, _ := s.reg.Read(pin)
	return v, nil
}

// Write sets the simulated value of the pin, firing any watch callback,
// and flags the simulator client for a full sync.
func (s *Sim) Write(pin int, value byte) error {
	s.reg.Write(pin, value)
	if sy := s.attached(); sy != nil {
		sy.MarkDirty()
	}
	return nil
}

// Watch attaches a change callback to the pin.
func (s *Sim) Watch(pin int, cb Callback) error {
	s.reg.Watch(pin, cb)
	return nil
}

// Close shuts down the attached simulator server, if any.
func (s *Sim) Close() error {
	if sy := s.attached(); sy != nil {
		sy.Shutdown()
	}
	return nil
}
