// Package simulator exposes the simulated pin table to an external
// visualizer/controller over a small binary TCP protocol. The server
// accepts exactly one client, pushes full pin-table syncs to it, and
// applies inbound pin updates through the simulated hardware facade so
// watch callbacks fire exactly as they would on real hardware.
package simulator

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"sync"
	"time"

	"github.com/sweeney/desk-sensor/internal/gpio"
)

// Wire protocol commands. Messages are 1-3 bytes with no framing.
const (
	// CmdSetPin is followed by a pin byte and a value byte. Sent in
	// both directions.
	CmdSetPin = 0x35

	// CmdSyncRequest asks the server for a full pin-table sync.
	// Client to server only.
	CmdSyncRequest = 0x10
)

const (
	// acceptTimeout bounds how long the accept loop blocks before
	// re-checking the running flag. This is the shutdown latency with
	// no client connected.
	acceptTimeout = 100 * time.Millisecond

	// readTimeout bounds each receive; expiry is the expected
	// would-block outcome, not an error.
	readTimeout = 100 * time.Millisecond

	// loopPause paces the receive loop after a non-timeout read
	// error (EOF included) so a dead client cannot spin the CPU.
	loopPause = 100 * time.Millisecond
)

// PinWriter applies an inbound pin update. In normal wiring this is
// the gpio.Sim facade, so registered callbacks run and the dirty flag
// is set for the sync back to the client.
type PinWriter interface {
	Write(pin int, value byte) error
}

// Server owns the listening socket and the accept/receive goroutine.
type Server struct {
	ln  net.Listener
	reg *gpio.Registry
	hw  PinWriter

	runMu   sync.Mutex
	running bool

	syncMu   sync.Mutex
	needSync bool

	client net.Conn
	done   chan struct{}
}

// New binds 127.0.0.1:<port> and starts the accept loop. Port 0 picks
// a free port; see Addr.
func New(port int, reg *gpio.Registry, hw PinWriter) (*Server, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return nil, fmt.Errorf("simulator listen: %w", err)
	}

	s := &Server{
		ln:      ln,
		reg:     reg,
		hw:      hw,
		running: true,
		done:    make(chan struct{}),
	}

	log.Printf("simulator: waiting for client on %s", ln.Addr())
	go s.run()
	return s, nil
}

// Addr returns the bound listen address.
func (s *Server) Addr() net.Addr {
	return s.ln.Addr()
}

// MarkDirty records that the connected client owes a full sync. Safe
// to call from any goroutine.
func (s *Server) MarkDirty() {
	s.syncMu.Lock()
	s.needSync = true
	s.syncMu.Unlock()
}

func (s *Server) clearDirty() {
	s.syncMu.Lock()
	s.needSync = false
	s.syncMu.Unlock()
}

func (s *Server) dirty() bool {
	s.syncMu.Lock()
	d := s.needSync
	s.syncMu.Unlock()
	return d
}

func (s *Server) canRun() bool {
	s.runMu.Lock()
	r := s.running
	s.runMu.Unlock()
	return r
}

// Shutdown stops the server: it flips the running flag, waits for the
// accept/receive goroutine to observe it and exit, then closes the
// sockets. Safe to call more than once, including concurrently; every
// call returns only after the goroutine has exited.
func (s *Server) Shutdown() {
	s.runMu.Lock()
	first := s.running
	s.running = false
	s.runMu.Unlock()

	<-s.done

	if !first {
		return
	}

	s.ln.Close()
	if s.client != nil {
		s.client.Close()
	}
	log.Printf("simulator: server stopped")
}

// run is the dedicated server goroutine: accept one client, sync it,
// then receive and process messages until shutdown.
func (s *Server) run() {
	defer close(s.done)

	conn := s.acceptClient()
	if conn == nil {
		return // shut down before a client arrived
	}
	s.client = conn
	log.Printf("simulator: client connected: %s", conn.RemoteAddr())

	// The new client starts from nothing; send the whole table.
	s.syncClient()

	buf := make([]byte, 1024)
	for s.canRun() {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		n, err := conn.Read(buf)
		if n > 0 {
			s.processMessage(buf[:n])
		}

		switch {
		case err == nil, wouldBlock(err):
			// Data processed, or nothing available this interval.
		case errors.Is(err, io.EOF):
			// Client went away. Non-fatal: keep checking the
			// running flag so shutdown stays timely.
			time.Sleep(loopPause)
		default:
			log.Printf("simulator: read error: %v", err)
			time.Sleep(loopPause)
		}

		if s.dirty() {
			s.syncClient()
		}
	}
}

// acceptClient polls for a connection with a bounded deadline so the
// running flag is observed at least every acceptTimeout. Returns nil
// once shutdown is requested.
func (s *Server) acceptClient() net.Conn {
	tl := s.ln.(*net.TCPListener)

	for s.canRun() {
		tl.SetDeadline(time.Now().Add(acceptTimeout))
		conn, err := tl.Accept()
		if err == nil {
			return conn
		}
		if wouldBlock(err) {
			continue
		}
		log.Printf("simulator: accept error: %v", err)
		time.Sleep(acceptTimeout)
	}
	return nil
}

// processMessage validates and dispatches one inbound message.
// Malformed messages are dropped without effect; unknown commands are
// ignored. Protocol violations never terminate the session.
func (s *Server) processMessage(msg []byte) {
	if len(msg) < 1 || len(msg) > 3 {
		return
	}

	switch msg[0] {
	case CmdSetPin:
		if len(msg) < 3 {
			return
		}
		s.hw.Write(int(msg[1]), msg[2])

	case CmdSyncRequest:
		log.Printf("simulator: client requested sync")
		s.syncClient()
	}
}

// syncClient serializes the whole pin table as CmdSetPin triples and
// sends it in a single write. The registry snapshot is taken under the
// table lock; the socket write happens after release.
//
// The dirty flag is cleared before the snapshot: a write that lands
// while the sync is on the wire re-marks the flag and gets a follow-up
// sync. Clearing afterwards would erase that mark and leave the client
// holding the stale value.
func (s *Server) syncClient() {
	s.clearDirty()
	snap := s.reg.Snapshot()

	out := make([]byte, 0, len(snap)*3)
	for _, pv := range snap {
		out = append(out, CmdSetPin, byte(pv.Pin), pv.Value)
	}

	s.client.SetWriteDeadline(time.Now().Add(time.Second))
	if _, err := s.client.Write(out); err != nil {
		log.Printf("simulator: sync write error: %v", err)
	}
}

// wouldBlock reports whether err is the expected "no data available
// yet" outcome of a bounded-deadline accept or read, as opposed to a
// genuine I/O error.
func wouldBlock(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
