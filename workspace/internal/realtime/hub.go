package realtime

import "sync"

// Hub tracks which connections have joined which rooms.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*client]struct{}
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[*client]struct{})}
}

func (h *Hub) join(room string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*client]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
}

func (h *Hub) leave(room string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(room, c)
}

func (h *Hub) leaveAll(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for room := range h.rooms {
		h.removeLocked(room, c)
	}
}

func (h *Hub) removeLocked(room string, c *client) {
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, c)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

// Broadcast queues data for every connection in room. Connections whose
// buffer is full are dropped from the hub and closed.
func (h *Hub) Broadcast(room string, data []byte) {
	var slow []*client

	h.mu.RLock()
	for c := range h.rooms[room] {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.leaveAll(c)
		c.close()
	}
}

// Members returns the number of connections in room.
func (h *Hub) Members(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}
