// Package config loads daemon configuration from a YAML file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Sensor backends.
const (
	BackendGPIOCdev = "gpiocdev"
	BackendSim      = "sim"
)

// Sensor types.
const (
	SensorD6T = "d6t"
	SensorPin = "pin"
)

// Duration wraps time.Duration so YAML values like "250ms" parse.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// SimulatorConfig controls the hardware simulator socket server.
type SimulatorConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// SensorConfig describes how one desk's sensor is attached.
type SensorConfig struct {
	Type    string `yaml:"type"`    // "d6t" or "pin"
	Bus     string `yaml:"bus"`     // i2c bus name for d6t, e.g. "1"
	Address int    `yaml:"address"` // i2c address for d6t, e.g. 0x0a
	Port    string `yaml:"port"`    // serial device for d6t over serial
	Baud    int    `yaml:"baud"`    // serial baud rate
	Pin     int    `yaml:"pin"`     // GPIO pin for pin sensors
}

// DeskConfig describes one monitored desk.
type DeskConfig struct {
	ID     int          `yaml:"id"`
	Name   string       `yaml:"name"`
	Sensor SensorConfig `yaml:"sensor"`
}

// Config is the full daemon configuration.
type Config struct {
	Broker    string          `yaml:"broker"`
	HTTPAddr  string          `yaml:"http_addr"`
	Poll      Duration        `yaml:"poll"`
	Debounce  Duration        `yaml:"debounce"`
	Heartbeat Duration        `yaml:"heartbeat"`
	Backend   string          `yaml:"backend"`
	Chip      string          `yaml:"chip"` // gpiochip name for the gpiocdev backend
	Simulator SimulatorConfig `yaml:"simulator"`
	Desks     []DeskConfig    `yaml:"desks"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Broker:    "tcp://localhost:1883",
		HTTPAddr:  ":8080",
		Poll:      Duration(time.Second),
		Debounce:  Duration(250 * time.Millisecond),
		Heartbeat: Duration(15 * time.Minute),
		Backend:   BackendSim,
		Chip:      "gpiochip0",
		Simulator: SimulatorConfig{Enabled: true, Port: 9000},
		Desks: []DeskConfig{
			{ID: 1, Name: "Desk 1", Sensor: SensorConfig{Type: SensorPin, Pin: 17}},
		},
	}
}

// Load reads and validates a config file. Fields absent from the file
// keep their defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	// The default desk list only applies when the file defines none.
	cfg.Desks = nil
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if len(cfg.Desks) == 0 {
		cfg.Desks = Default().Desks
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration for consistency.
func (c Config) Validate() error {
	if c.Backend != BackendGPIOCdev && c.Backend != BackendSim {
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if c.Poll <= 0 {
		return fmt.Errorf("poll interval must be positive, got %v", c.Poll.Std())
	}
	if c.Debounce < 0 {
		return fmt.Errorf("debounce must not be negative, got %v", c.Debounce.Std())
	}
	if c.Simulator.Enabled {
		if c.Backend != BackendSim {
			return fmt.Errorf("simulator requires the %q backend, got %q", BackendSim, c.Backend)
		}
		if c.Simulator.Port < 0 || c.Simulator.Port > 65535 {
			return fmt.Errorf("invalid simulator port %d", c.Simulator.Port)
		}
	}

	seen := make(map[int]bool)
	for i, d := range c.Desks {
		if d.Name == "" {
			return fmt.Errorf("desk %d: name is required", i)
		}
		if d.ID == 0 {
			return fmt.Errorf("desk %q: id is required", d.Name)
		}
		if seen[d.ID] {
			return fmt.Errorf("desk %q: duplicate id %d", d.Name, d.ID)
		}
		seen[d.ID] = true

		s := d.Sensor
		switch s.Type {
		case SensorPin:
			// Pin ids travel as a single byte on the simulator wire.
			if s.Pin < 0 || s.Pin > 255 {
				return fmt.Errorf("desk %q: pin %d out of range 0-255", d.Name, s.Pin)
			}
		case SensorD6T:
			if s.Bus == "" && s.Port == "" {
				return fmt.Errorf("desk %q: d6t sensor needs a bus or a serial port", d.Name)
			}
			if s.Bus != "" && s.Port != "" {
				return fmt.Errorf("desk %q: d6t sensor cannot have both a bus and a serial port", d.Name)
			}
			if s.Port != "" && s.Baud <= 0 {
				return fmt.Errorf("desk %q: serial sensor needs a baud rate", d.Name)
			}
		default:
			return fmt.Errorf("desk %q: unknown sensor type %q", d.Name, s.Type)
		}
	}
	return nil
}
