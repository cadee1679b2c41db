// Package broadcast fans push channel frames out to the connections of each
// user. Every connection owns a FIFO outbound buffer drained by a single
// writer, so frames sent to it in order arrive in order.
package broadcast

import (
	"sync"

	"go.uber.org/zap"

	"github.com/park285/chess-arena/internal/domain"
	"github.com/park285/chess-arena/internal/metrics"
	"github.com/park285/chess-arena/internal/obslog"
	"github.com/park285/chess-arena/pkg/arenadto"
)

// DefaultBuffer is the outbound capacity used when NewHub gets size <= 0.
const DefaultBuffer = 64

// Client is one connection of a user. Outbound is closed when the client
// leaves the hub, either by Unsubscribe or because its buffer filled up.
type Client struct {
	id      uint64
	email   string
	isAdmin bool
	out     chan []byte
}

func (c *Client) Email() string           { return c.email }
func (c *Client) IsAdmin() bool           { return c.isAdmin }
func (c *Client) Outbound() <-chan []byte { return c.out }

type Hub struct {
	mu     sync.Mutex
	users  map[string]map[*Client]struct{}
	buffer int
	nextID uint64
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Hub{users: make(map[string]map[*Client]struct{}), buffer: buffer}
}

func (h *Hub) Subscribe(email string, isAdmin bool) *Client {
	email = domain.NormalizeEmail(email)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	c := &Client{id: h.nextID, email: email, isAdmin: isAdmin, out: make(chan []byte, h.buffer)}
	set, ok := h.users[email]
	if !ok {
		set = make(map[*Client]struct{})
		h.users[email] = set
	}
	set[c] = struct{}{}
	metrics.Connections.Inc()
	return c
}

// Unsubscribe removes c and returns how many connections its user still has.
// Calling it for a client that was already dropped is allowed.
func (h *Hub) Unsubscribe(c *Client) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(c)
	return len(h.users[c.email])
}

func (h *Hub) dropLocked(c *Client) {
	set, ok := h.users[c.email]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	close(c.out)
	metrics.Connections.Dec()
	if len(set) == 0 {
		delete(h.users, c.email)
	}
}

// deliverLocked never blocks. A client whose buffer is full is disconnected
// instead of silently losing a frame.
func (h *Hub) deliverLocked(c *Client, frame []byte) {
	select {
	case c.out <- frame:
	default:
		obslog.L().Warn("hub_slow_consumer",
			zap.String("email", c.email),
			zap.Uint64("client_id", c.id),
			zap.Int("buffer", cap(c.out)),
		)
		metrics.SlowConsumersTotal.Inc()
		h.dropLocked(c)
	}
}

// SendTo delivers an event to every connection of email.
func (h *Hub) SendTo(email, event string, data any) error {
	frame, err := arenadto.Encode(event, data)
	if err != nil {
		return err
	}
	email = domain.NormalizeEmail(email)
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.users[email] {
		h.deliverLocked(c, frame)
	}
	return nil
}

// SendClient delivers an event to a single connection.
func (h *Hub) SendClient(c *Client, event string, data any) error {
	frame, err := arenadto.Encode(event, data)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.users[c.email][c]; ok {
		h.deliverLocked(c, frame)
	}
	return nil
}

// SendAdmins delivers an event to every admin connection.
func (h *Hub) SendAdmins(event string, data any) error {
	frame, err := arenadto.Encode(event, data)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, set := range h.users {
		for c := range set {
			if c.isAdmin {
				h.deliverLocked(c, frame)
			}
		}
	}
	return nil
}

func (h *Hub) Connected(email string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.users[domain.NormalizeEmail(email)]) > 0
}

// Count returns the number of open connections.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, set := range h.users {
		n += len(set)
	}
	return n
}
