package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"sketchrelay/internal/services/strokelog"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10 // must be < pongWait
	maxMessageSize = 64 << 10

	replayTimeout   = 4 * time.Second
	dispatchTimeout = 1900 * time.Millisecond
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true }, // dev-only
}

// ConnContext is what a message handler knows about its session: the
// room it joined for its whole lifetime, and the connection handle the
// fan-out uses to address it individually.
type ConnContext struct {
	Room string
	Conn member
}

type WsServer struct {
	hub     *Hub
	subMgr  *subscriptionManager
	router  *Router
	rdc     *redis.Client
	strokes strokelog.IStrokeLog
}

func NewWsServer(h *Hub, rdc *redis.Client, strokes strokelog.IStrokeLog) *WsServer {
	srv := &WsServer{
		hub:     h,
		subMgr:  newSubscriptionManager(rdc, h),
		router:  NewRouter(),
		rdc:     rdc,
		strokes: strokes,
	}
	srv.registerHandlers() // ← all WS message types configured here
	return srv
}

// ---------------------------------------------------------------------------
//  Public: Gin entry-point
// ---------------------------------------------------------------------------

// Handle runs a session through its whole life: upgrade, join the
// room, replay history to this connection alone, then read frames
// until the socket dies, at which point the session leaves the room.
func (s *WsServer) Handle(ginCtx *gin.Context) {
	roomName := ginCtx.Param("room")
	if roomName == "" {
		ginCtx.JSON(http.StatusBadRequest, gin.H{"error": "room is required"})
		return
	}

	rawConn, err := upgrader.Upgrade(ginCtx.Writer, ginCtx.Request, nil)
	if err != nil {
		zap.L().Warn("ws.accept", zap.Error(err))
		return
	}
	rawConn.SetReadLimit(maxMessageSize)

	// ─────────────────── Client joined ────────────────────────
	wsConn := &clientConn{rawConn: rawConn}

	// The write lock is taken before the member is broadcast-addressable
	// and held until the whole history batch is on the wire. Joining
	// first means no append is missed; holding the lock means a live
	// broadcast fired during the history read queues behind the replay.
	wsConn.mu.Lock()
	s.hub.Join(roomName, wsConn)
	s.subMgr.Subscribe(roomName) // may be a no-op (already subscribed)

	err = s.replayLocked(ginCtx.Request.Context(), roomName, wsConn)
	wsConn.mu.Unlock()
	if err != nil {
		zap.L().Warn("ws.replay", zap.String("room", roomName), zap.Error(err))
		s.hub.Leave(roomName, wsConn)
		s.subMgr.Unsubscribe(roomName)
		return
	}

	done := make(chan struct{})
	go s.reader(roomName, wsConn, done)
	go s.pinger(wsConn, done)
}

// ---------------------------------------------------------------------------
//  Private helpers
// ---------------------------------------------------------------------------

func (s *WsServer) registerHandlers() {
	// 🔹 draw: in-progress stroke ── relay only, never persisted.
	// Intermediate pointer samples are superseded moments later; only
	// the completed stroke matters for replay.
	s.router.Register(MsgDraw,
		func(ctx context.Context, cc *ConnContext, pointer json.RawMessage) error {
			frame, err := json.Marshal(Frame{MessageType: MsgDraw, Pointer: pointer})
			if err != nil {
				return err
			}
			return s.publish(ctx, cc.Room, frame)
		},
	)

	// 🔹 end: completed stroke ── persist first, then fan out the
	// record with its assigned ID.
	s.router.Register(MsgEnd,
		func(ctx context.Context, cc *ConnContext, pointer json.RawMessage) error {
			rec, err := s.strokes.Append(ctx, cc.Room, pointer)
			if err != nil {
				return err
			}
			frame, err := json.Marshal(EndFrame{MessageType: MsgEnd, Data: rec})
			if err != nil {
				return err
			}
			return s.publish(ctx, cc.Room, frame)
		},
	)
}

// publish pushes a wire-ready frame onto the room's pub/sub channel;
// the subscription manager of every interested instance (this one
// included) delivers it to local members. The sender's own session is
// a member like any other and receives the echo.
func (s *WsServer) publish(ctx context.Context, room string, frame []byte) error {
	return s.rdc.Publish(ctx, roomEventsChannel(room), frame).Err()
}

// replayLocked sends the room's stroke history, oldest first, to the
// new connection alone; the caller must hold the connection's write
// lock. Records go out as "draw" frames: replay rebuilds visual state
// and must not re-trigger client logic tied to "end".
func (s *WsServer) replayLocked(ctx context.Context, room string, conn *clientConn) error {
	ctx, cancel := context.WithTimeout(ctx, replayTimeout)
	defer cancel()

	frames, err := s.historyFrames(ctx, room)
	if err != nil {
		return err
	}
	for _, frame := range frames {
		if err := conn.sendLocked(frame); err != nil {
			return err
		}
	}
	return nil
}

func (s *WsServer) historyFrames(ctx context.Context, room string) ([][]byte, error) {
	records, err := s.strokes.Replay(ctx, room)
	if err != nil {
		return nil, err
	}

	frames := make([][]byte, 0, len(records))
	for _, rec := range records {
		frame, err := json.Marshal(Frame{MessageType: MsgDraw, Pointer: rec.Pointer})
		if err != nil {
			return nil, err
		}
		frames = append(frames, frame)
	}
	return frames, nil
}

func (s *WsServer) reader(roomName string, conn *clientConn, done chan<- struct{}) {
	defer func() {
		s.hub.Leave(roomName, conn)
		s.subMgr.Unsubscribe(roomName)
		close(done)
	}()

	cc := &ConnContext{Room: roomName, Conn: conn}

	_ = conn.rawConn.SetReadDeadline(time.Now().Add(pongWait))
	conn.rawConn.SetPongHandler(func(string) error {
		return conn.rawConn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.rawConn.ReadMessage()
		if err != nil {
			return // client closed or errored
		}

		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			// Permissive parsing: log and keep the session open.
			zap.L().Debug("ws.malformed", zap.String("room", roomName), zap.Error(err))
			continue
		}

		// The dispatch context is independent of the socket: an append
		// already submitted finishes even if the client disconnects
		// right after sending.
		ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		err = s.router.dispatch(ctx, cc, frame)
		cancel()

		if err == nil || errors.Is(err, errUnknownType) {
			continue
		}

		// ---- failure is the originator's alone ---------------------
		// Other members never hear about an append they didn't cause.
		_ = conn.send(errorReply(err))
	}
}

// errorReply maps a dispatch failure onto the wire as a stable code;
// raw error text never reaches the client.
func errorReply(err error) []byte {
	code := "internal_error"
	if errors.Is(err, strokelog.ErrStoreUnavailable) {
		code = "store_unavailable"
	}
	reply, _ := json.Marshal(ErrorFrame{MessageType: MsgError, Error: code})
	return reply
}

func (s *WsServer) pinger(conn *clientConn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			err := conn.rawConn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			if err != nil {
				_ = conn.rawConn.Close()
				return
			}
		}
	}
}
