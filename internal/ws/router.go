package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
)

// handler processes one inbound frame's pointer payload.
type handler func(ctx context.Context, c *ConnContext, pointer json.RawMessage) error

// errUnknownType marks frames with an unrecognized message_type. The
// reader drops them silently: a malformed or future-versioned client
// message must not terminate the session.
var errUnknownType = errors.New("unknown message_type")

// Router keeps a map[message_type]handler, à-la gin.Engine.
type Router struct {
	mu       sync.RWMutex
	handlers map[string]handler
}

func NewRouter() *Router { return &Router{handlers: make(map[string]handler)} }

// Register binds a message_type to its handler.
func (r *Router) Register(messageType string, h handler) {
	if messageType == "" {
		panic("ws router: empty message_type")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[messageType] = h
}

// dispatch is called by the server's reader loop.
func (r *Router) dispatch(ctx context.Context, c *ConnContext, frame Frame) error {
	r.mu.RLock()
	h, ok := r.handlers[frame.MessageType]
	r.mu.RUnlock()
	if !ok {
		return errUnknownType
	}
	return h(ctx, c, frame.Pointer)
}
