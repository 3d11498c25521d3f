package gpio

import (
	"sync"
	"testing"
)

func TestSetupAndRead(t *testing.T) {
	r := NewRegistry()
	r.Setup(17)

	v, ok := r.Read(17)
	if !ok {
		t.Fatal("pin 17 should be registered after Setup")
	}
	if v != 0 {
		t.Errorf("fresh pin: expected value 0, got %d", v)
	}
}

func TestWriteThenRead(t *testing.T) {
	r := NewRegistry()
	r.Setup(17)

	if !r.Write(17, 1) {
		t.Fatal("write to registered pin should report ok")
	}

	v, ok := r.Read(17)
	if !ok || v != 1 {
		t.Errorf("expected (1, true), got (%d, %v)", v, ok)
	}

	r.Write(17, 0)
	v, _ = r.Read(17)
	if v != 0 {
		t.Errorf("value should hold until next write, got %d", v)
	}
}

func TestReadUnregisteredPin(t *testing.T) {
	r := NewRegistry()

	_, ok := r.Read(4)
	if ok {
		t.Error("reading a pin that was never set up should report !ok")
	}
}

func TestWriteUnregisteredPinDropped(t *testing.T) {
	r := NewRegistry()
	r.Setup(17)

	if r.Write(4, 1) {
		t.Error("write to unregistered pin should report !ok")
	}
	if n := r.Len(); n != 1 {
		t.Errorf("dropped write must not create a pin, got %d pins", n)
	}
}

func TestCallbackInvokedOncePerWrite(t *testing.T) {
	r := NewRegistry()
	r.Setup(17)

	calls := 0
	var gotPin int
	if !r.Watch(17, func(pin int) {
		calls++
		gotPin = pin
	}) {
		t.Fatal("Watch on registered pin should report ok")
	}

	r.Write(17, 1)
	if calls != 1 {
		t.Fatalf("expected 1 callback invocation, got %d", calls)
	}
	if gotPin != 17 {
		t.Errorf("callback pin: expected 17, got %d", gotPin)
	}

	r.Write(17, 0)
	if calls != 2 {
		t.Errorf("expected 2 invocations after second write, got %d", calls)
	}
}

// The callback must run with the table lock released: a callback that
// itself reads and writes pins would deadlock otherwise.
func TestCallbackMayReenterRegistry(t *testing.T) {
	r := NewRegistry()
	r.Setup(17)
	r.Setup(18)

	r.Watch(17, func(pin int) {
		if v, _ := r.Read(pin); v != 1 {
			t.Errorf("callback should observe the new value, got %d", v)
		}
		r.Write(18, 1) // mirror onto a second pin
	})

	done := make(chan struct{})
	go func() {
		r.Write(17, 1)
		close(done)
	}()
	<-done

	if v, _ := r.Read(18); v != 1 {
		t.Errorf("re-entrant write from callback lost, pin 18 = %d", v)
	}
}

func TestResetupClearsCallback(t *testing.T) {
	r := NewRegistry()
	r.Setup(17)

	calls := 0
	r.Watch(17, func(int) { calls++ })

	r.Setup(17)
	r.Write(17, 1)

	if calls != 0 {
		t.Errorf("re-setup should clear the callback, got %d calls", calls)
	}
}

func TestWritePreservesCallback(t *testing.T) {
	r := NewRegistry()
	r.Setup(17)

	calls := 0
	r.Watch(17, func(int) { calls++ })

	r.Write(17, 1)
	r.Write(17, 0)
	r.Write(17, 1)

	if calls != 3 {
		t.Errorf("callback should survive writes, got %d calls", calls)
	}
}

func TestWatchUnregisteredPin(t *testing.T) {
	r := NewRegistry()

	if r.Watch(4, func(int) {}) {
		t.Error("Watch on unregistered pin should report !ok")
	}
}

func TestSnapshotOrderAndValues(t *testing.T) {
	r := NewRegistry()
	r.Setup(22)
	r.Setup(4)
	r.Setup(17)
	r.Write(17, 1)
	r.Write(22, 1)

	snap := r.Snapshot()
	want := []PinValue{{4, 0}, {17, 1}, {22, 1}}
	if len(snap) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(snap))
	}
	for i, pv := range want {
		if snap[i] != pv {
			t.Errorf("entry %d: expected %+v, got %+v", i, pv, snap[i])
		}
	}
}

func TestConcurrentWriters(t *testing.T) {
	r := NewRegistry()
	for pin := 0; pin < 8; pin++ {
		r.Setup(pin)
	}

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				pin := i % 8
				r.Write(pin, byte(i%2))
				r.Read(pin)
				r.Snapshot()
			}
		}()
	}
	wg.Wait()

	if n := r.Len(); n != 8 {
		t.Errorf("expected 8 pins after concurrent access, got %d", n)
	}
}
