package simulator

import (
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/desk-sensor/internal/gpio"
)

// newTestServer starts a server on a free loopback port with the
// standard wiring: registry shared between the facade and the server,
// facade attached so writes mark the server dirty.
func newTestServer(t *testing.T) (*Server, *gpio.Sim, *gpio.Registry) {
	t.Helper()

	reg := gpio.NewRegistry()
	sim := gpio.NewSim(reg)

	srv, err := New(0, reg, sim)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	sim.Attach(srv)
	t.Cleanup(srv.Shutdown)
	return srv, sim, reg
}

func dialServer(t *testing.T, srv *Server) net.Conn {
	t.Helper()
	conn, err := net.Dial("tcp", srv.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readSync reads one full sync (3 bytes per pin) from the client side.
func readSync(t *testing.T, conn net.Conn, pins int) []byte {
	t.Helper()
	buf := make([]byte, pins*3)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := io.ReadFull(conn, buf); err != nil {
		t.Fatalf("read sync: %v", err)
	}
	return buf
}

func waitForPin(t *testing.T, reg *gpio.Registry, pin int, want byte) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if v, ok := reg.Read(pin); ok && v == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	v, ok := reg.Read(pin)
	t.Fatalf("pin %d: expected %d, got (%d, %v)", pin, want, v, ok)
}

func TestInitialSyncOnConnect(t *testing.T) {
	srv, sim, _ := newTestServer(t)
	sim.Setup(4)
	sim.Setup(17)
	sim.Setup(22)
	sim.Write(17, 1)

	conn := dialServer(t, srv)

	// One triple per registered pin, ascending pin order.
	got := readSync(t, conn, 3)
	want := []byte{
		CmdSetPin, 4, 0,
		CmdSetPin, 17, 1,
		CmdSetPin, 22, 0,
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sync byte %d: expected %#x, got %#x\nfull: % x", i, want[i], got[i], got)
		}
	}
}

func TestInboundSetPin(t *testing.T) {
	srv, sim, reg := newTestServer(t)
	sim.Setup(17)

	fired := make(chan int, 1)
	sim.Watch(17, func(pin int) { fired <- pin })

	conn := dialServer(t, srv)
	readSync(t, conn, 1)

	if _, err := conn.Write([]byte{CmdSetPin, 17, 1}); err != nil {
		t.Fatalf("write: %v", err)
	}

	waitForPin(t, reg, 17, 1)

	select {
	case pin := <-fired:
		if pin != 17 {
			t.Errorf("callback pin: expected 17, got %d", pin)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watch callback did not fire for inbound pin update")
	}

	// The write marks the server dirty, so the change syncs back.
	got := readSync(t, conn, 1)
	if got[0] != CmdSetPin || got[1] != 17 || got[2] != 1 {
		t.Errorf("sync after inbound write: got % x", got)
	}
}

func TestInboundSetPinUnregisteredDropped(t *testing.T) {
	srv, sim, reg := newTestServer(t)
	sim.Setup(17)

	conn := dialServer(t, srv)
	readSync(t, conn, 1)

	// Pin 99 was never set up; the write must be dropped.
	conn.Write([]byte{CmdSetPin, 99, 1})
	time.Sleep(300 * time.Millisecond)

	if _, ok := reg.Read(99); ok {
		t.Error("inbound write must not create an unregistered pin")
	}
	if n := reg.Len(); n != 1 {
		t.Errorf("expected 1 pin, got %d", n)
	}
}

func TestSyncRequest(t *testing.T) {
	srv, sim, _ := newTestServer(t)
	sim.Setup(4)
	sim.Setup(17)

	conn := dialServer(t, srv)
	readSync(t, conn, 2)

	if _, err := conn.Write([]byte{CmdSyncRequest}); err != nil {
		t.Fatalf("write: %v", err)
	}

	got := readSync(t, conn, 2)
	want := []byte{CmdSetPin, 4, 0, CmdSetPin, 17, 0}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("requested sync byte %d: expected %#x, got %#x", i, want[i], got[i])
		}
	}
}

func TestShortSetPinIgnored(t *testing.T) {
	srv, sim, reg := newTestServer(t)
	sim.Setup(17)

	conn := dialServer(t, srv)
	readSync(t, conn, 1)

	// CmdSetPin with a missing value byte must leave the table alone.
	conn.Write([]byte{CmdSetPin, 17})
	time.Sleep(300 * time.Millisecond)

	if v, _ := reg.Read(17); v != 0 {
		t.Errorf("pin 17 changed by a truncated message: %d", v)
	}
}

func TestUnknownCommandIgnored(t *testing.T) {
	srv, sim, reg := newTestServer(t)
	sim.Setup(17)

	conn := dialServer(t, srv)
	readSync(t, conn, 1)

	conn.Write([]byte{0x99, 17, 1})
	time.Sleep(300 * time.Millisecond)

	if v, _ := reg.Read(17); v != 0 {
		t.Errorf("pin 17 changed by an unknown command: %d", v)
	}
}

func TestFacadeWriteSyncsToClient(t *testing.T) {
	srv, sim, _ := newTestServer(t)
	sim.Setup(17)

	conn := dialServer(t, srv)
	readSync(t, conn, 1)

	// A write from the daemon side must be pushed to the client.
	sim.Write(17, 1)

	got := readSync(t, conn, 1)
	if got[0] != CmdSetPin || got[1] != 17 || got[2] != 1 {
		t.Errorf("expected sync 35 11 01, got % x", got)
	}
}

func TestShutdownWithoutClient(t *testing.T) {
	reg := gpio.NewRegistry()
	sim := gpio.NewSim(reg)
	srv, err := New(0, reg, sim)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	addr := srv.Addr().String()

	start := time.Now()
	srv.Shutdown()
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("shutdown with no client took %v", elapsed)
	}

	// The listening socket must be released.
	if conn, err := net.Dial("tcp", addr); err == nil {
		conn.Close()
		t.Error("listener still accepting after shutdown")
	}
}

func TestShutdownWithClient(t *testing.T) {
	srv, sim, _ := newTestServer(t)
	sim.Setup(17)

	conn := dialServer(t, srv)
	readSync(t, conn, 1)

	start := time.Now()
	srv.Shutdown()
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("shutdown with client took %v", elapsed)
	}

	// Server closed its end; the client eventually sees EOF.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 16)
	if _, err := conn.Read(buf); err == nil {
		t.Error("expected read error after server shutdown")
	}
}

func TestShutdownIdempotent(t *testing.T) {
	srv, _, _ := newTestServer(t)
	srv.Shutdown()
	srv.Shutdown() // second call must return immediately
}

func TestShutdownConcurrent(t *testing.T) {
	srv, _, _ := newTestServer(t)
	addr := srv.Addr().String()

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			srv.Shutdown()
		}()
	}
	wg.Wait()

	// Every returned call means the server goroutine has exited and
	// the first caller has released the sockets.
	select {
	case <-srv.done:
	default:
		t.Fatal("server goroutine still running after Shutdown returned")
	}
	if conn, err := net.Dial("tcp", addr); err == nil {
		conn.Close()
		t.Error("listener still accepting after concurrent shutdown")
	}
}

// hookConn is a client stub whose Write runs a callback, standing in
// for the window where a sync is on the wire.
type hookConn struct {
	net.Conn
	onWrite func()
}

func (c *hookConn) Write(b []byte) (int, error) {
	if c.onWrite != nil {
		c.onWrite()
	}
	return len(b), nil
}

func (c *hookConn) SetWriteDeadline(time.Time) error { return nil }

func TestWriteDuringSyncLeavesDirty(t *testing.T) {
	reg := gpio.NewRegistry()
	reg.Setup(17)
	reg.Write(17, 1)

	s := &Server{reg: reg}
	s.client = &hookConn{onWrite: func() {
		// A facade write lands after the snapshot was taken. Its mark
		// must survive the sync so a follow-up sync carries 17=0.
		reg.Write(17, 0)
		s.MarkDirty()
	}}

	s.MarkDirty()
	s.syncClient()

	if !s.dirty() {
		t.Fatal("concurrent write lost: no follow-up sync pending")
	}
}

func TestSyncWithoutConcurrentWriteClearsDirty(t *testing.T) {
	reg := gpio.NewRegistry()
	reg.Setup(17)

	s := &Server{reg: reg, client: &hookConn{}}
	s.MarkDirty()
	s.syncClient()

	if s.dirty() {
		t.Fatal("dirty flag not cleared by an uncontended sync")
	}
}
