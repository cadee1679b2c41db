package broadcast

import (
	"encoding/json"
	"testing"

	"github.com/park285/chess-arena/pkg/arenadto"
)

func drain(t *testing.T, c *Client) []arenadto.Frame {
	t.Helper()
	var out []arenadto.Frame
	for {
		select {
		case raw, ok := <-c.Outbound():
			if !ok {
				return out
			}
			var f arenadto.Frame
			if err := json.Unmarshal(raw, &f); err != nil {
				t.Fatalf("bad frame %s: %v", raw, err)
			}
			out = append(out, f)
		default:
			return out
		}
	}
}

func TestSendToAllConnectionsInOrder(t *testing.T) {
	h := NewHub(8)
	a1 := h.Subscribe("A@x.io", false)
	a2 := h.Subscribe("a@x.io", false)
	b := h.Subscribe("b@x.io", false)
	for i := 1; i <= 3; i++ {
		if err := h.SendTo("a@x.io", arenadto.EventGame, map[string]int{"version": i}); err != nil {
			t.Fatalf("SendTo: %v", err)
		}
	}
	for _, c := range []*Client{a1, a2} {
		frames := drain(t, c)
		if len(frames) != 3 {
			t.Fatalf("want 3 frames, got %d", len(frames))
		}
		for i, f := range frames {
			var v struct{ Version int }
			_ = json.Unmarshal(f.Data, &v)
			if f.Event != "game" || v.Version != i+1 {
				t.Fatalf("frame %d out of order: %+v", i, f)
			}
		}
	}
	if got := drain(t, b); len(got) != 0 {
		t.Fatalf("b received %v", got)
	}
	if h.Count() != 3 {
		t.Fatalf("count=%d", h.Count())
	}
}

func TestSendAdmins(t *testing.T) {
	h := NewHub(4)
	admin := h.Subscribe("root@x.io", true)
	user := h.Subscribe("u@x.io", false)
	if err := h.SendAdmins(arenadto.EventUsers, []string{"u@x.io"}); err != nil {
		t.Fatalf("SendAdmins: %v", err)
	}
	if len(drain(t, admin)) != 1 || len(drain(t, user)) != 0 {
		t.Fatalf("users roster must only reach admins")
	}
}

func TestSlowConsumerIsDisconnected(t *testing.T) {
	h := NewHub(2)
	slow := h.Subscribe("s@x.io", false)
	for i := 0; i < 3; i++ {
		_ = h.SendTo("s@x.io", arenadto.EventInputError, "x")
	}
	if h.Connected("s@x.io") {
		t.Fatalf("slow consumer should have been dropped")
	}
	n := 0
	for range slow.Outbound() {
		n++
	}
	if n != 2 {
		t.Fatalf("buffered frames before drop: %d", n)
	}
	if left := h.Unsubscribe(slow); left != 0 {
		t.Fatalf("remaining=%d", left)
	}
}

func TestUnsubscribeCountsRemaining(t *testing.T) {
	h := NewHub(1)
	c1 := h.Subscribe("a@x.io", false)
	c2 := h.Subscribe("a@x.io", false)
	if left := h.Unsubscribe(c1); left != 1 {
		t.Fatalf("remaining=%d", left)
	}
	if left := h.Unsubscribe(c1); left != 1 {
		t.Fatalf("double unsubscribe changed count: %d", left)
	}
	if left := h.Unsubscribe(c2); left != 0 || h.Connected("a@x.io") {
		t.Fatalf("remaining=%d", left)
	}
	if _, ok := <-c2.Outbound(); ok {
		t.Fatalf("outbound must be closed")
	}
}
