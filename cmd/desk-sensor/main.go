// Command desk-sensor monitors desk occupancy sensors and publishes
// transitions to MQTT.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/sweeney/desk-sensor/internal/bus"
	"github.com/sweeney/desk-sensor/internal/config"
	"github.com/sweeney/desk-sensor/internal/desk"
	"github.com/sweeney/desk-sensor/internal/gpio"
	"github.com/sweeney/desk-sensor/internal/logic"
	"github.com/sweeney/desk-sensor/internal/mqtt"
	"github.com/sweeney/desk-sensor/internal/simulator"
	"github.com/sweeney/desk-sensor/internal/status"
	"github.com/sweeney/desk-sensor/internal/thermal"
	"github.com/sweeney/desk-sensor/internal/web"
)

func main() {
	configPath := flag.String("config", "", "YAML config file (built-in defaults when empty)")
	printState := flag.Bool("print-state", false, "Print current occupancy and exit")
	flag.Parse()

	// Optional .env alongside the binary, same mechanism pi-helper uses
	// for the network vars. Missing file is fine.
	if err := godotenv.Load(); err == nil {
		log.Printf("loaded .env")
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatalf("fatal: %v", err)
		}
	}
	if broker := os.Getenv("MQTT_BROKER"); broker != "" {
		cfg.Broker = broker
	}

	if err := run(cfg, *printState); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(cfg config.Config, printState bool) error {
	hw, err := newBackend(cfg)
	if err != nil {
		return fmt.Errorf("init backend: %w", err)
	}
	defer hw.Close()

	startTime := time.Now()
	table := desk.NewTable(startTime, cfg.Debounce.Std())
	var closers []io.Closer
	defer func() {
		for _, c := range closers {
			c.Close()
		}
	}()
	for _, dc := range cfg.Desks {
		sensor, closer, err := newSensor(hw, dc.Sensor)
		if err != nil {
			return fmt.Errorf("desk %q: %w", dc.Name, err)
		}
		if closer != nil {
			closers = append(closers, closer)
		}
		table.Add(desk.Desk{ID: dc.ID, Name: dc.Name}, sensor)
	}

	// Print state mode
	if printState {
		for _, e := range table.Entries() {
			fmt.Printf("%s: %s\n", e.Desk.Name, occupancyString(e.Sensor.OccupiedStatus()))
		}
		return nil
	}

	// Initialize MQTT
	publisher := mqtt.NewRealPublisher(cfg.Broker)
	defer publisher.Close()

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(startTime, statusConfig(cfg))
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}
	updateTracker(tracker, table, publisher)

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else {
		log.Printf("published startup event")
	}

	// Start HTTP status server
	if cfg.HTTPAddr != "" {
		srv := web.New(cfg.HTTPAddr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", cfg.HTTPAddr)
	}

	log.Printf("started: desks=%d poll=%v debounce=%v broker=%s heartbeat=%v backend=%s",
		len(cfg.Desks), cfg.Poll.Std(), cfg.Debounce.Std(), cfg.Broker, cfg.Heartbeat.Std(), cfg.Backend)

	ticker := time.NewTicker(cfg.Poll.Std())
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(table, publisher, publisher, tracker, cfg.Heartbeat.Std(), time.Now, ticker.C, sigCh)
}

// newBackend builds the hardware interface the config asks for. With
// the sim backend the simulator socket server is started and attached
// so external writes reach the pin table.
func newBackend(cfg config.Config) (gpio.Interface, error) {
	switch cfg.Backend {
	case config.BackendSim:
		sim := gpio.NewSim(gpio.NewRegistry())
		if cfg.Simulator.Enabled {
			srv, err := simulator.New(cfg.Simulator.Port, sim.Registry(), sim)
			if err != nil {
				return nil, fmt.Errorf("start simulator: %w", err)
			}
			sim.Attach(srv)
			log.Printf("simulator listening on %s", srv.Addr())
		}
		return sim, nil
	case config.BackendGPIOCdev:
		return gpio.NewReal(cfg.Chip)
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

// newSensor builds the sensor a desk's config describes. The returned
// closer, if any, owns the sensor's bus handle.
func newSensor(hw gpio.Interface, sc config.SensorConfig) (desk.Sensor, io.Closer, error) {
	switch sc.Type {
	case config.SensorPin:
		s, err := desk.NewPinSensor(hw, sc.Pin)
		return s, nil, err
	case config.SensorD6T:
		var (
			rd  bus.Reader
			err error
		)
		if sc.Port != "" {
			rd, err = bus.NewSerial(sc.Port, sc.Baud)
		} else {
			rd, err = bus.NewI2C(sc.Bus, uint16(sc.Address))
		}
		if err != nil {
			return nil, nil, err
		}
		return thermal.New(rd), rd, nil
	default:
		return nil, nil, fmt.Errorf("unknown sensor type %q", sc.Type)
	}
}

func runLoop(table *desk.Table, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, heartbeat time.Duration, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			event := mqtt.SystemEvent{
				Timestamp: now(),
				Event:     "SHUTDOWN",
				Reason:    signalName,
				Retained:  true,
			}
			if tracker != nil {
				updateTracker(tracker, table, mqttStatus)
				snap := tracker.Snapshot()
				event.RawPayload = status.FormatStatusEvent(snap, "SHUTDOWN", signalName)
			}
			if err := publisher.PublishSystem(event); err != nil {
				log.Printf("failed to publish shutdown event: %v", err)
			} else {
				log.Printf("published shutdown event")
			}
			return nil

		case <-tick:
			t := now()
			events := table.Poll(t)

			for _, event := range events {
				log.Printf("event: %s desk=%d (%s)", event.Type, event.DeskID, event.DeskName)
				if err := publisher.Publish(event); err != nil {
					log.Printf("publish error: %v", err)
					// Don't crash on publish failure
				}
			}

			if tracker != nil {
				updateTracker(tracker, table, mqttStatus)
			}

			// Check for heartbeat
			if hbData := table.CheckHeartbeat(t, heartbeat); hbData != nil {
				log.Printf("heartbeat: uptime=%v occupied=%d vacated=%d",
					hbData.Uptime, hbData.Counts.Occupied, hbData.Counts.Vacated)

				hbEvent := mqtt.SystemEvent{
					Timestamp: hbData.Timestamp,
					Event:     "HEARTBEAT",
				}
				if tracker != nil {
					// Refresh network info for heartbeat
					if net := readNetworkInfo(); net != nil {
						tracker.SetNetwork(net)
					}
					updateTracker(tracker, table, mqttStatus)
					snap := tracker.Snapshot()
					hbEvent.RawPayload = status.FormatStatusEvent(snap, "HEARTBEAT", "")
				}
				if err := publisher.PublishSystem(hbEvent); err != nil {
					log.Printf("heartbeat publish error: %v", err)
				}
			}
		}
	}
}

// updateTracker pushes the table's per-desk state into the tracker for
// HTTP consumers.
func updateTracker(tracker *status.Tracker, table *desk.Table, mqttStatus mqtt.ConnectionStatus) {
	entries := table.Entries()
	desks := make([]status.DeskStatus, 0, len(entries))
	for _, e := range entries {
		desks = append(desks, status.DeskStatus{
			ID:        e.Desk.ID,
			Name:      e.Desk.Name,
			State:     e.Detector.CurrentState(),
			Baselined: e.Detector.IsBaselined(),
			Counts:    e.Detector.Counts(),
		})
	}
	tracker.UpdateDesks(desks)
	if mqttStatus != nil {
		tracker.SetMQTTConnected(mqttStatus.IsConnected())
	}
}

func statusConfig(cfg config.Config) status.Config {
	simPort := 0
	if cfg.Simulator.Enabled {
		simPort = cfg.Simulator.Port
	}
	return status.Config{
		PollMs:        cfg.Poll.Std().Milliseconds(),
		DebounceMs:    cfg.Debounce.Std().Milliseconds(),
		HeartbeatMs:   cfg.Heartbeat.Std().Milliseconds(),
		Broker:        cfg.Broker,
		HTTPAddr:      cfg.HTTPAddr,
		Backend:       cfg.Backend,
		SimulatorPort: simPort,
	}
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}

func occupancyString(occupied bool) string {
	if occupied {
		return string(logic.StateOccupied)
	}
	return string(logic.StateVacant)
}
