package ws

import (
	"sync"
)

// Hub keeps member sets per room name. Rooms come into being on first
// join; an empty room entry is just an idle map slot (the Redis
// subscription behind it is torn down separately by the subscription
// manager).
type Hub struct {
	rooms sync.Map // room name -> *room
}

func NewHub() *Hub { return &Hub{} }

// Broadcast is called by the Redis subscriber.
func (h *Hub) Broadcast(roomName string, msg []byte) {
	if v, ok := h.rooms.Load(roomName); ok {
		v.(*room).broadcast(msg)
	}
}

// Join is idempotent per member: the member set is a set.
func (h *Hub) Join(roomName string, m member) {
	r, _ := h.rooms.LoadOrStore(roomName, newRoom())
	r.(*room).add(m)
}

func (h *Hub) Leave(roomName string, m member) {
	if v, ok := h.rooms.Load(roomName); ok {
		v.(*room).remove(m)
	}
}

// Members reports how many connections are currently in the room.
func (h *Hub) Members(roomName string) int {
	if v, ok := h.rooms.Load(roomName); ok {
		return v.(*room).size()
	}
	return 0
}
