// Package thermal acquires frames from an Omron D6T thermal array
// sensor and derives desk occupancy from them.
//
// A raw frame is 35 bytes: a little-endian 16-bit room temperature,
// sixteen little-endian 16-bit pixel temperatures, and a trailing PEC
// byte. Temperatures are fixed-point with one decimal place. The PEC
// is a CRC-8 over a fixed prefix byte plus the frame body; see the
// Omron D6T datasheet.
package thermal

import (
	"encoding/binary"
	"log"
	"time"

	"github.com/sigurn/crc8"

	"github.com/sweeney/desk-sensor/internal/bus"
)

const (
	// startCommand triggers a measurement readout.
	startCommand = 0x4c

	// FrameLength is the fixed raw frame size in bytes.
	FrameLength = 35

	// PixelCount is the number of cells in the thermal array.
	PixelCount = 16

	// pecPrefix is prepended to the frame body before computing the
	// PEC, per the datasheet.
	pecPrefix = 0x15

	// occupiedCellCount is how many cells must read strictly above
	// room temperature to call the desk occupied.
	occupiedCellCount = 10

	maxRetries   = 5
	retryBackoff = 50 * time.Millisecond
)

var crcTable = crc8.MakeTable(crc8.CRC8)

// Frame is one decoded sensor reading.
type Frame struct {
	// RoomTemp is the ambient temperature in degrees Celsius.
	RoomTemp float64

	// Pixels are the cell temperatures in physical sensor layout
	// order.
	Pixels [PixelCount]float64
}

// CellsAboveRoom counts pixels strictly warmer than room temperature.
func (f Frame) CellsAboveRoom() int {
	n := 0
	for _, p := range f.Pixels {
		if p > f.RoomTemp {
			n++
		}
	}
	return n
}

// Occupied reports whether enough cells read above room temperature
// for a person to be at the desk.
func (f Frame) Occupied() bool {
	return f.CellsAboveRoom() >= occupiedCellCount
}

// Sensor drives the acquisition pipeline for one D6T device.
// It holds no cross-call state; concurrent calls sharing one bus
// device must be serialized by the caller.
type Sensor struct {
	bus bus.Reader

	// sleep is the retry backoff; injectable for tests.
	sleep func(time.Duration)
}

// New creates a Sensor reading from the given bus device.
func New(b bus.Reader) *Sensor {
	return &Sensor{bus: b, sleep: time.Sleep}
}

// Acquire reads one valid frame, retrying on transport and integrity
// failures with a fixed backoff. Returns ok=false once retries are
// exhausted; no partial frame is ever returned.
func (s *Sensor) Acquire() (Frame, bool) {
	for i := 0; i < maxRetries; i++ {
		n, raw, err := s.bus.ReadFrame(startCommand, FrameLength)
		if err != nil || n != FrameLength {
			if err != nil {
				log.Printf("thermal: bus read error: %v", err)
			} else {
				log.Printf("thermal: byte count mismatch: read %d of %d", n, FrameLength)
			}
			s.sleep(retryBackoff)
			continue
		}

		if pec(raw[:FrameLength-1]) != raw[FrameLength-1] {
			log.Printf("thermal: PEC mismatch, retrying")
			s.sleep(retryBackoff)
			continue
		}

		return decode(raw), true
	}

	return Frame{}, false
}

// OccupiedStatus acquires a frame and evaluates occupancy. If no valid
// frame could be read, the desk is reported unoccupied as the safe
// default.
func (s *Sensor) OccupiedStatus() bool {
	frame, ok := s.Acquire()
	if !ok {
		log.Printf("thermal: no valid frame after %d attempts, reporting unoccupied", maxRetries)
		return false
	}
	return frame.Occupied()
}

// decode converts a checksum-verified raw frame. raw must be
// FrameLength bytes.
func decode(raw []byte) Frame {
	var f Frame
	f.RoomTemp = float64(binary.LittleEndian.Uint16(raw[0:2])) / 10

	for i := 0; i < PixelCount; i++ {
		off := 2 + 2*i
		f.Pixels[i] = float64(binary.LittleEndian.Uint16(raw[off:off+2])) / 10
	}
	return f
}

// pec computes the CRC-8 packet error check over the prefix byte
// followed by the frame body.
func pec(body []byte) byte {
	buf := make([]byte, 0, len(body)+1)
	buf = append(buf, pecPrefix)
	buf = append(buf, body...)
	return crc8.Checksum(buf, crcTable)
}
