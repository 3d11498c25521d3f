package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/desk-sensor/internal/status"
)

type deskView struct {
	Name     string
	State    string
	Class    string
	Settling bool
}

type indexView struct {
	Desks         []deskView
	OccupiedCount int
	MQTTConnected bool
	Broker        string
	Network       *status.NetworkInfo
	Occupied      int
	Vacated       int
	Uptime        string
	Started       string
	Backend       string
	SimulatorPort int
	PollMs        int64
	DebounceMs    int64
	HeartbeatMs   int64
	HTTPAddr      string
}

var indexTmpl = template.Must(template.New("index").Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Desk Sensor</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.occupied { color: green; font-weight: bold; }
.vacant { color: #888; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Desk Sensor</h1>

<h2>Desks ({{.OccupiedCount}} of {{len .Desks}} occupied)</h2>
<table>
{{range .Desks}}<tr><th>{{.Name}}</th><td class="{{.Class}}">{{.State}}{{if .Settling}} (settling){{end}}</td></tr>
{{end}}</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Broker}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Event Counts</h2>
<table>
<tr><th>Occupied</th><td>{{.Occupied}}</td></tr>
<tr><th>Vacated</th><td>{{.Vacated}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{.Uptime}}</td></tr>
<tr><th>Started</th><td>{{.Started}}</td></tr>
<tr><th>Backend</th><td>{{.Backend}}{{if .SimulatorPort}} (simulator port {{.SimulatorPort}}){{end}}</td></tr>
<tr><th>Poll</th><td>{{.PollMs}}ms</td></tr>
<tr><th>Debounce</th><td>{{.DebounceMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .HeartbeatMs 0}}disabled{{else}}{{.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
</body>
</html>
`

func formatUptime(d time.Duration) string {
	d = d.Truncate(time.Second)
	days := int(d.Hours()) / 24
	h := int(d.Hours()) % 24
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
	case h > 0:
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}

func buildView(snap status.Snapshot) indexView {
	desks := make([]deskView, 0, len(snap.Desks))
	for _, d := range snap.Desks {
		state := string(d.State)
		class := "unknown"
		switch state {
		case "OCCUPIED":
			class = "occupied"
		case "VACANT":
			class = "vacant"
		case "":
			state = "UNKNOWN"
		}
		desks = append(desks, deskView{
			Name:     d.Name,
			State:    state,
			Class:    class,
			Settling: !d.Baselined,
		})
	}

	total := snap.TotalCounts()
	return indexView{
		Desks:         desks,
		OccupiedCount: snap.OccupiedCount(),
		MQTTConnected: snap.MQTTConnected,
		Broker:        snap.Config.Broker,
		Network:       snap.Network,
		Occupied:      total.Occupied,
		Vacated:       total.Vacated,
		Uptime:        formatUptime(snap.Uptime()),
		Started:       snap.StartTime.UTC().Format(time.RFC3339),
		Backend:       snap.Config.Backend,
		SimulatorPort: snap.Config.SimulatorPort,
		PollMs:        snap.Config.PollMs,
		DebounceMs:    snap.Config.DebounceMs,
		HeartbeatMs:   snap.Config.HeartbeatMs,
		HTTPAddr:      snap.Config.HTTPAddr,
	}
}

func renderHTML(w io.Writer, snap status.Snapshot) {
	indexTmpl.Execute(w, buildView(snap))
}
