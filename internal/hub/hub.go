package hub

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/healthverse/care-relay/internal/config"
	"github.com/healthverse/care-relay/internal/metrics"
	pkglog "github.com/healthverse/care-relay/pkg/log"
)

// ErrHubClosed is returned when registering against a stopped hub.
var ErrHubClosed = errors.New("hub closed")

// JoinResult reports the outcome of JoinRoom.
type JoinResult int

const (
	Joined JoinResult = iota
	AlreadyMember
	RoomFull
	NotConnected
)

func (r JoinResult) String() string {
	switch r {
	case Joined:
		return "joined"
	case AlreadyMember:
		return "already_member"
	case RoomFull:
		return "room_full"
	default:
		return "not_connected"
	}
}

// Stats is a point-in-time snapshot of a hub.
type Stats struct {
	Pool        string `json:"pool"`
	Connections int    `json:"connections"`
	Rooms       int    `json:"rooms"`
	RoomMembers int    `json:"room_members"`
}

// Hub owns the connection registry and room membership of one pool.
// All state is confined to the Run goroutine; public methods submit
// closures to it.
type Hub struct {
	pool       string
	config     config.WebSocketConfig
	maxMembers int
	metrics    *metrics.Metrics

	clients map[string]*Client
	rooms   map[string]map[string]*Client // roomID -> clientID -> client

	ops  chan func()
	done chan struct{}
}

// NewHub creates a new Hub. maxMembers <= 0 leaves rooms uncapped.
func NewHub(pool string, cfg config.WebSocketConfig, maxMembers int, m *metrics.Metrics) *Hub {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 256
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = 60 * time.Second
	}
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = 10 * time.Second
	}
	return &Hub{
		pool:       pool,
		config:     cfg,
		maxMembers: maxMembers,
		metrics:    m,
		clients:    make(map[string]*Client),
		rooms:      make(map[string]map[string]*Client),
		ops:        make(chan func(), 256),
		done:       make(chan struct{}),
	}
}

// Pool returns the pool name used in logs and metrics.
func (h *Hub) Pool() string { return h.pool }

// MaxMembers returns the room capacity, 0 when uncapped.
func (h *Hub) MaxMembers() int {
	if h.maxMembers < 0 {
		return 0
	}
	return h.maxMembers
}

// Run starts the hub's main loop. It returns when ctx is cancelled, after
// closing every client's send channel.
func (h *Hub) Run(ctx context.Context) error {
	l := pkglog.L().With().Str(pkglog.FieldPool, h.pool).Logger()
	l.Info().Msg("hub started")

	for {
		select {
		case <-ctx.Done():
			for _, c := range h.clients {
				close(c.Send)
				c.roomID = ""
			}
			h.clients = make(map[string]*Client)
			h.rooms = make(map[string]map[string]*Client)
			h.updateGauges()
			close(h.done)
			l.Info().Msg("hub stopped")
			return nil
		case op := <-h.ops:
			op()
		}
	}
}

// exec queues op on the hub goroutine. It reports false once the hub stopped.
func (h *Hub) exec(op func()) bool {
	select {
	case <-h.done:
		return false
	default:
	}
	select {
	case h.ops <- op:
		return true
	case <-h.done:
		return false
	}
}

// call runs op on the hub goroutine and waits for it to finish.
func (h *Hub) call(op func()) bool {
	finished := make(chan struct{})
	if !h.exec(func() {
		op()
		close(finished)
	}) {
		return false
	}
	select {
	case <-finished:
		return true
	case <-h.done:
		return false
	}
}

// Register adds a client to the hub. Registering a live client is a no-op.
func (h *Hub) Register(client *Client) error {
	ok := h.call(func() {
		if _, exists := h.clients[client.ID]; exists {
			return
		}
		h.clients[client.ID] = client
		h.updateGauges()
		l := pkglog.L()
		l.Info().
			Str(pkglog.FieldPool, h.pool).
			Str(pkglog.FieldConnID, client.ID).
			Int("connections", len(h.clients)).
			Msg("client registered")
	})
	if !ok {
		return ErrHubClosed
	}
	return nil
}

// Unregister removes a client from its room and the registry and closes its
// send channel. Unknown or already removed clients are ignored.
func (h *Hub) Unregister(client *Client) {
	h.call(func() {
		h.remove(client, "disconnected")
	})
}

// JoinRoom moves client into roomID. A client already in another room
// leaves it first. announce, when non-nil, is delivered to the members that
// were present before the join.
func (h *Hub) JoinRoom(client *Client, roomID string, announce []byte) JoinResult {
	result := NotConnected
	h.call(func() {
		if h.clients[client.ID] != client {
			result = NotConnected
			return
		}
		if client.roomID == roomID {
			result = AlreadyMember
			return
		}

		members := h.rooms[roomID]
		if h.maxMembers > 0 && len(members) >= h.maxMembers {
			result = RoomFull
			return
		}

		h.leaveRoom(client)

		if members == nil {
			members = make(map[string]*Client)
			h.rooms[roomID] = members
		}
		members[client.ID] = client
		client.roomID = roomID

		if announce != nil {
			for id, member := range members {
				if id == client.ID {
					continue
				}
				h.deliver(member, announce)
			}
		}

		h.updateGauges()
		l := pkglog.L()
		l.Info().
			Str(pkglog.FieldPool, h.pool).
			Str(pkglog.FieldConnID, client.ID).
			Str(pkglog.FieldRoomID, roomID).
			Int("members", len(members)).
			Msg("client joined room")
		result = Joined
	})
	return result
}

// LeaveRoom removes client from its current room, if any.
func (h *Hub) LeaveRoom(client *Client) {
	h.call(func() {
		if h.leaveRoom(client) {
			h.updateGauges()
		}
	})
}

// SendTo delivers data to a single connection. It reports false when the
// target is unknown or its buffer was full.
func (h *Hub) SendTo(targetID string, data []byte) bool {
	delivered := false
	h.call(func() {
		target, ok := h.clients[targetID]
		if !ok {
			h.metrics.IncDropped(h.pool, metrics.ReasonTargetOffline)
			l := pkglog.L()
			l.Debug().
				Str(pkglog.FieldPool, h.pool).
				Str(pkglog.FieldTargetID, targetID).
				Msg("target not connected, message dropped")
			return
		}
		delivered = h.deliver(target, data)
	})
	return delivered
}

// Broadcast delivers data to every live connection of the pool and returns
// the number of successful deliveries.
func (h *Hub) Broadcast(data []byte) int {
	n := 0
	h.call(func() {
		for _, c := range h.clients {
			if h.deliver(c, data) {
				n++
			}
		}
	})
	return n
}

// IsLive reports whether id is a registered connection.
func (h *Hub) IsLive(id string) bool {
	live := false
	h.call(func() {
		_, live = h.clients[id]
	})
	return live
}

// RoomOf returns the room the connection is in, or "".
func (h *Hub) RoomOf(id string) string {
	room := ""
	h.call(func() {
		if c, ok := h.clients[id]; ok {
			room = c.roomID
		}
	})
	return room
}

// RoomMembers returns the sorted connection ids in roomID.
func (h *Hub) RoomMembers(roomID string) []string {
	var ids []string
	h.call(func() {
		for id := range h.rooms[roomID] {
			ids = append(ids, id)
		}
	})
	sort.Strings(ids)
	return ids
}

// Stats returns a snapshot of the hub.
func (h *Hub) Stats() Stats {
	s := Stats{Pool: h.pool}
	h.call(func() {
		s.Connections = len(h.clients)
		s.Rooms = len(h.rooms)
		for _, members := range h.rooms {
			s.RoomMembers += len(members)
		}
	})
	return s
}

// deliver performs a non-blocking send. A client whose buffer is full is
// considered dead and removed. Must run on the hub goroutine.
func (h *Hub) deliver(c *Client, data []byte) bool {
	select {
	case c.Send <- data:
		return true
	default:
		h.metrics.IncDropped(h.pool, metrics.ReasonBufferFull)
		l := pkglog.L()
		l.Warn().
			Str(pkglog.FieldPool, h.pool).
			Str(pkglog.FieldConnID, c.ID).
			Msg("send buffer full, dropping client")
		h.remove(c, "slow consumer")
		return false
	}
}

// remove must run on the hub goroutine.
func (h *Hub) remove(c *Client, reason string) {
	if h.clients[c.ID] != c {
		return
	}
	h.leaveRoom(c)
	delete(h.clients, c.ID)
	close(c.Send)
	h.updateGauges()
	l := pkglog.L()
	l.Info().
		Str(pkglog.FieldPool, h.pool).
		Str(pkglog.FieldConnID, c.ID).
		Str("reason", reason).
		Msg("client unregistered")
}

// leaveRoom must run on the hub goroutine.
func (h *Hub) leaveRoom(c *Client) bool {
	if c.roomID == "" {
		return false
	}
	roomID := c.roomID
	if members, ok := h.rooms[roomID]; ok {
		delete(members, c.ID)
		if len(members) == 0 {
			delete(h.rooms, roomID)
		}
	}
	c.roomID = ""
	l := pkglog.L()
	l.Debug().
		Str(pkglog.FieldPool, h.pool).
		Str(pkglog.FieldConnID, c.ID).
		Str(pkglog.FieldRoomID, roomID).
		Msg("client left room")
	return true
}

func (h *Hub) updateGauges() {
	h.metrics.SetConnections(h.pool, len(h.clients))
	h.metrics.SetRooms(h.pool, len(h.rooms))
}
