// Package logic contains pure business logic for desk occupancy
// tracking. This package has NO external dependencies (no GPIO, bus,
// MQTT, OS, or time.Sleep). Time is always injectable via time.Time
// parameters.
package logic

import "time"

// State represents the logical occupancy state of a desk.
type State string

const (
	StateOccupied State = "OCCUPIED"
	StateVacant   State = "VACANT"
)

// EventType represents an occupancy transition event.
type EventType string

const (
	EventOccupied EventType = "DESK_OCCUPIED"
	EventVacated  EventType = "DESK_VACATED"
)

// Event represents a desk occupancy transition to be published.
type Event struct {
	Timestamp time.Time
	DeskID    int
	DeskName  string
	Type      EventType
	State     State
}

// Input represents a single occupancy sample for one desk.
type Input struct {
	Occupied bool
	Time     time.Time
}

// EventCounts tracks the number of each event type since startup.
type EventCounts struct {
	Occupied int
	Vacated  int
}

// Add accumulates other into c. Used for the daemon-wide heartbeat.
func (c *EventCounts) Add(other EventCounts) {
	c.Occupied += other.Occupied
	c.Vacated += other.Vacated
}
