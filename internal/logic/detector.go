package logic

import "time"

// Detector tracks one desk's occupancy and detects debounced
// transitions. Thermal sensors flicker around the threshold when
// someone leans away, so a reading must hold for the debounce
// duration before it becomes the stable state.
type Detector struct {
	debounceDuration time.Duration

	stable       State
	pending      State
	pendingSince time.Time
	baselined    bool

	counts EventCounts
}

// NewDetector creates a transition detector with the given debounce
// duration.
func NewDetector(debounceDuration time.Duration) *Detector {
	return &Detector{debounceDuration: debounceDuration}
}

// Process takes a new occupancy sample and returns the transition it
// completes, or nil. No events are emitted until a baseline is
// established.
func (d *Detector) Process(input Input) *EventType {
	newState := boolToState(input.Occupied)

	// Establishing baseline: the first state must hold for the
	// debounce duration before transitions are reported.
	if !d.baselined {
		if d.pending == "" || d.pending != newState {
			d.pending = newState
			d.pendingSince = input.Time
			return nil
		}
		if input.Time.Sub(d.pendingSince) >= d.debounceDuration {
			d.stable = newState
			d.baselined = true
			d.pending = ""
		}
		return nil
	}

	// Already baselined - detect transitions.
	if newState == d.stable {
		// No change from stable state, clear any pending bounce.
		d.pending = ""
		return nil
	}

	if d.pending != newState {
		d.pending = newState
		d.pendingSince = input.Time
		return nil
	}

	if input.Time.Sub(d.pendingSince) < d.debounceDuration {
		return nil
	}

	d.stable = newState
	d.pending = ""

	var event EventType
	if newState == StateOccupied {
		event = EventOccupied
		d.counts.Occupied++
	} else {
		event = EventVacated
		d.counts.Vacated++
	}
	return &event
}

// IsBaselined returns whether the detector has established a baseline.
func (d *Detector) IsBaselined() bool {
	return d.baselined
}

// CurrentState returns the current stable state.
func (d *Detector) CurrentState() State {
	return d.stable
}

// Counts returns the event counts since startup.
func (d *Detector) Counts() EventCounts {
	return d.counts
}

func boolToState(b bool) State {
	if b {
		return StateOccupied
	}
	return StateVacant
}
