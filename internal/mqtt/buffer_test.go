package mqtt

import "testing"

func TestRingBufferEmptyDrain(t *testing.T) {
	r := newRingBuffer(4)

	if msgs := r.drainAll(); msgs != nil {
		t.Errorf("expected nil from empty drain, got %d messages", len(msgs))
	}
}

func TestRingBufferPushAndDrain(t *testing.T) {
	r := newRingBuffer(4)
	r.push(bufferedMsg{topic: "a", payload: []byte("1")})
	r.push(bufferedMsg{topic: "b", payload: []byte("2")})

	if r.len() != 2 {
		t.Errorf("expected len 2, got %d", r.len())
	}

	msgs := r.drainAll()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].topic != "a" || msgs[1].topic != "b" {
		t.Errorf("drain order wrong: %s, %s", msgs[0].topic, msgs[1].topic)
	}
	if r.len() != 0 {
		t.Errorf("buffer should be empty after drain, len %d", r.len())
	}
}

func TestRingBufferOverflowDropsOldest(t *testing.T) {
	r := newRingBuffer(3)
	for _, topic := range []string{"a", "b", "c", "d", "e"} {
		r.push(bufferedMsg{topic: topic})
	}

	msgs := r.drainAll()
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	want := []string{"c", "d", "e"}
	for i, w := range want {
		if msgs[i].topic != w {
			t.Errorf("message %d: expected %s, got %s", i, w, msgs[i].topic)
		}
	}
}

func TestRingBufferMultipleCycles(t *testing.T) {
	r := newRingBuffer(2)

	r.push(bufferedMsg{topic: "a"})
	r.drainAll()
	r.push(bufferedMsg{topic: "b"})
	r.push(bufferedMsg{topic: "c"})

	msgs := r.drainAll()
	if len(msgs) != 2 || msgs[0].topic != "b" || msgs[1].topic != "c" {
		t.Errorf("unexpected second cycle contents: %+v", msgs)
	}
}

func TestRingBufferPreservesFields(t *testing.T) {
	r := newRingBuffer(2)
	r.push(bufferedMsg{topic: "t", payload: []byte("p"), qos: 1, retained: true})

	msgs := r.drainAll()
	m := msgs[0]
	if m.topic != "t" || string(m.payload) != "p" || m.qos != 1 || !m.retained {
		t.Errorf("fields not preserved: %+v", m)
	}
}
