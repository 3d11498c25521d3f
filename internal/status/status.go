// Package status provides a thread-safe status tracker for the
// desk-sensor daemon. It is read by HTTP handlers while the poll loop
// updates it.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/desk-sensor/internal/logic"
)

// NetworkInfo contains network state as reported by pi-helper.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	PollMs        int64
	DebounceMs    int64
	HeartbeatMs   int64
	Broker        string
	HTTPAddr      string
	Backend       string // "gpiocdev" or "sim"
	SimulatorPort int    // 0 = simulator disabled
}

// DeskStatus is the displayed state of one desk.
type DeskStatus struct {
	ID        int
	Name      string
	State     logic.State
	Baselined bool
	Counts    logic.EventCounts
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type — safe to use after the lock is released.
type Snapshot struct {
	Desks         []DeskStatus
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// OccupiedCount returns how many desks are currently occupied.
func (s Snapshot) OccupiedCount() int {
	n := 0
	for _, d := range s.Desks {
		if d.State == logic.StateOccupied {
			n++
		}
	}
	return n
}

// TotalCounts sums event counts across desks.
func (s Snapshot) TotalCounts() logic.EventCounts {
	var total logic.EventCounts
	for _, d := range s.Desks {
		total.Add(d.Counts)
	}
	return total
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// UpdateDesks replaces the per-desk states. Called from the poll loop
// on every tick; the slice is copied.
func (t *Tracker) UpdateDesks(desks []DeskStatus) {
	cp := make([]DeskStatus, len(desks))
	copy(cp, desks)

	t.mu.Lock()
	t.snap.Desks = cp
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	desks := make([]DeskStatus, len(s.Desks))
	copy(desks, s.Desks)
	t.mu.RUnlock()

	s.Desks = desks
	s.Now = time.Now()
	return s
}
