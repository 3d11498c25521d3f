// Package desk maps configured desks to their occupancy sensors and
// drives the per-cycle poll. It is used from the main loop goroutine
// only; cross-thread reads go through the status tracker.
package desk

import (
	"log"
	"time"

	"github.com/sweeney/desk-sensor/internal/gpio"
	"github.com/sweeney/desk-sensor/internal/logic"
)

// Sensor reports whether a desk is currently occupied. Implemented by
// thermal.Sensor and PinSensor.
type Sensor interface {
	OccupiedStatus() bool
}

// Desk identifies one physical desk.
type Desk struct {
	ID   int
	Name string
}

// Entry pairs a desk with its sensor and transition detector.
type Entry struct {
	Desk     Desk
	Sensor   Sensor
	Detector *logic.Detector
}

// Table holds every configured desk.
type Table struct {
	entries  []*Entry
	debounce time.Duration

	startTime     time.Time
	lastHeartbeat time.Time
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    logic.EventCounts
}

// NewTable creates an empty desk table. startTime anchors uptime in
// heartbeats; debounce applies to every desk's detector.
func NewTable(startTime time.Time, debounce time.Duration) *Table {
	return &Table{
		debounce:      debounce,
		startTime:     startTime,
		lastHeartbeat: startTime,
	}
}

// Add registers a desk with its sensor.
func (t *Table) Add(d Desk, s Sensor) {
	t.entries = append(t.entries, &Entry{
		Desk:     d,
		Sensor:   s,
		Detector: logic.NewDetector(t.debounce),
	})
	log.Printf("desk: added desk %d (%s)", d.ID, d.Name)
}

// Entries returns the desks in configuration order.
func (t *Table) Entries() []*Entry {
	return t.entries
}

// Lookup finds a desk by id.
func (t *Table) Lookup(id int) (*Entry, bool) {
	for _, e := range t.entries {
		if e.Desk.ID == id {
			return e, true
		}
	}
	return nil, false
}

// Poll reads every sensor once and returns the occupancy transitions
// this cycle produced.
func (t *Table) Poll(now time.Time) []logic.Event {
	var events []logic.Event
	for _, e := range t.entries {
		occupied := e.Sensor.OccupiedStatus()
		ev := e.Detector.Process(logic.Input{Occupied: occupied, Time: now})
		if ev == nil {
			continue
		}
		events = append(events, logic.Event{
			Timestamp: now,
			DeskID:    e.Desk.ID,
			DeskName:  e.Desk.Name,
			Type:      *ev,
			State:     e.Detector.CurrentState(),
		})
	}
	return events
}

// AllBaselined reports whether every desk's detector has established
// its baseline.
func (t *Table) AllBaselined() bool {
	for _, e := range t.entries {
		if !e.Detector.IsBaselined() {
			return false
		}
	}
	return true
}

// TotalCounts sums event counts across all desks.
func (t *Table) TotalCounts() logic.EventCounts {
	var total logic.EventCounts
	for _, e := range t.entries {
		total.Add(e.Detector.Counts())
	}
	return total
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed
// since the last heartbeat (or startup). Returns nil before every desk
// is baselined, before the interval elapses, or if interval <= 0
// (disabled).
func (t *Table) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}
	if !t.AllBaselined() {
		return nil
	}
	if now.Sub(t.lastHeartbeat) < interval {
		return nil
	}

	t.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(t.startTime),
		Counts:    t.TotalCounts(),
	}
}

// PinSensor reads occupancy from a digital presence line (e.g. a PIR
// module): any non-zero value means occupied.
type PinSensor struct {
	hw  gpio.Interface
	pin int
}

// NewPinSensor sets the pin up on the given backend.
func NewPinSensor(hw gpio.Interface, pin int) (*PinSensor, error) {
	if err := hw.Setup(pin); err != nil {
		return nil, err
	}
	return &PinSensor{hw: hw, pin: pin}, nil
}

// OccupiedStatus reads the line. Read errors report unoccupied, the
// same safe default as an absent thermal frame.
func (p *PinSensor) OccupiedStatus() bool {
	v, err := p.hw.Read(p.pin)
	if err != nil {
		log.Printf("desk: pin %d read error: %v", p.pin, err)
		return false
	}
	return v != 0
}
