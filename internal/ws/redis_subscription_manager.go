package ws

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
)

// roomEventsChannel is the pub/sub channel carrying a room's fan-out
// traffic. Every instance publishes here and every instance with at
// least one member in the room subscribes, so the mechanism works
// unchanged for one process or many.
func roomEventsChannel(room string) string { return "room:" + room + ":events" }

// subscriptionManager guarantees that we have **exactly one** Redis
// subscription per room channel ― no matter how many websocket
// clients of this process join the same room.
type subscriptionManager struct {
	rdb  *redis.Client
	hub  *Hub
	mu   sync.Mutex
	subs map[string]*subEntry // room name ➜ subscription data
}

type subEntry struct {
	refCnt int
	cancel context.CancelFunc
}

func newSubscriptionManager(rdb *redis.Client, hub *Hub) *subscriptionManager {
	return &subscriptionManager{
		rdb:  rdb,
		hub:  hub,
		subs: make(map[string]*subEntry),
	}
}

// Subscribe ensures that the process is subscribed to the room's
// channel; subsequent calls for the same room only increment the
// ref-counter.
func (sm *subscriptionManager) Subscribe(room string) {
	sm.mu.Lock()
	if e, ok := sm.subs[room]; ok {
		e.refCnt++
		sm.mu.Unlock()
		return
	}

	// First member → create Redis SUB and fan-out loop.
	ctx, cancel := context.WithCancel(context.Background())
	ps := sm.rdb.Subscribe(ctx, roomEventsChannel(room))

	sm.subs[room] = &subEntry{refCnt: 1, cancel: cancel}
	sm.mu.Unlock()

	go func() {
		defer ps.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ps.Channel():
				if !ok { // Redis connection closed.
					return
				}
				// Payloads are already wire-shaped frames; hand them
				// straight to the local member set. One goroutine per
				// room keeps per-room delivery order equal to publish
				// order.
				sm.hub.Broadcast(room, []byte(m.Payload))
			}
		}
	}()
}

// Unsubscribe decrements the ref-counter and tears the Redis SUB down
// when the last websocket client leaves the room.
func (sm *subscriptionManager) Unsubscribe(room string) {
	sm.mu.Lock()
	e, ok := sm.subs[room]
	if !ok {
		sm.mu.Unlock()
		return
	}
	e.refCnt--
	if e.refCnt > 0 {
		sm.mu.Unlock()
		return
	}
	delete(sm.subs, room)
	sm.mu.Unlock()

	// Outside the lock → stop the fan-out goroutine.
	e.cancel()
}
