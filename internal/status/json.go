package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Desks         []DeskJSON   `json:"desks"`
	OccupiedCount int          `json:"occupied_count"`
	Ready         bool         `json:"ready"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"event_counts"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// DeskJSON is the JSON representation of one desk.
type DeskJSON struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	State    string `json:"state"`
	Ready    bool   `json:"ready"`
	Occupied int    `json:"occupied_events"`
	Vacated  int    `json:"vacated_events"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of aggregate event counts.
type CountsJSON struct {
	Occupied int `json:"occupied"`
	Vacated  int `json:"vacated"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PollMs        int64  `json:"poll_ms"`
	DebounceMs    int64  `json:"debounce_ms"`
	HeartbeatMs   int64  `json:"heartbeat_ms"`
	Broker        string `json:"broker"`
	HTTPAddr      string `json:"http_addr"`
	Backend       string `json:"backend"`
	SimulatorPort int    `json:"simulator_port,omitempty"`
}

func buildInner(snap Snapshot) StatusInner {
	desks := make([]DeskJSON, 0, len(snap.Desks))
	ready := true
	for _, d := range snap.Desks {
		state := string(d.State)
		if state == "" {
			state = "UNKNOWN"
		}
		if !d.Baselined {
			ready = false
		}
		desks = append(desks, DeskJSON{
			ID:       d.ID,
			Name:     d.Name,
			State:    state,
			Ready:    d.Baselined,
			Occupied: d.Counts.Occupied,
			Vacated:  d.Counts.Vacated,
		})
	}
	if len(snap.Desks) == 0 {
		ready = false
	}

	total := snap.TotalCounts()
	return StatusInner{
		Desks:         desks,
		OccupiedCount: snap.OccupiedCount(),
		Ready:         ready,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts:        CountsJSON{Occupied: total.Occupied, Vacated: total.Vacated},
		Config: ConfigJSON{
			PollMs:        snap.Config.PollMs,
			DebounceMs:    snap.Config.DebounceMs,
			HeartbeatMs:   snap.Config.HeartbeatMs,
			Broker:        snap.Config.Broker,
			HTTPAddr:      snap.Config.HTTPAddr,
			Backend:       snap.Config.Backend,
			SimulatorPort: snap.Config.SimulatorPort,
		},
	}
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
