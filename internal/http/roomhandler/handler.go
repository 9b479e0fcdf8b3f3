package roomhandler

import (
	"errors"
	"net/http"

	"sketchrelay/internal/services/strokelog"
	"sketchrelay/internal/ws"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc strokelog.IStrokeLog
	hub *ws.Hub
}

func New(svc strokelog.IStrokeLog, hub *ws.Hub) *Handler { return &Handler{svc: svc, hub: hub} }

func (h *Handler) Register(r gin.IRoutes) {
	r.GET("/rooms", h.list)
	r.GET("/rooms/:room", h.info)
	r.GET("/rooms/:room/strokes", h.strokes)
}

// @Summary		List rooms
// @Description	Returns the names of all rooms that have at least one recorded stroke.
// @Tags			Rooms
// @Success		200	{array}		string
// @Failure		503	{object}	ErrorResponse
// @Router			/rooms [get]
func (h *Handler) list(c *gin.Context) {
	rooms, err := h.svc.ActiveRooms(c)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, rooms)
}

// @Summary		Room stats
// @Description	Current member count and recorded stroke count for one room.
// @Tags			Rooms
// @Param			room	path		string	true	"Room name"	default(lobby)
// @Success		200		{object}	RoomInfo
// @Failure		503		{object}	ErrorResponse
// @Router			/rooms/{room} [get]
func (h *Handler) info(c *gin.Context) {
	roomName := c.Param("room")
	records, err := h.svc.Replay(c, roomName)
	if err != nil {
		c.JSON(h.status(err), ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, RoomInfo{
		Room:    roomName,
		Members: h.hub.Members(roomName),
		Strokes: len(records),
	})
}

// @Summary		Stroke history
// @Description	All completed strokes of a room in original drawing order, oldest first. This is the feed the room landing page renders from.
// @Tags			Rooms
// @Param			room	path		string	true	"Room name"	default(lobby)
// @Success		200		{array}		strokelog.StrokeRecord
// @Failure		503		{object}	ErrorResponse
// @Router			/rooms/{room}/strokes [get]
func (h *Handler) strokes(c *gin.Context) {
	records, err := h.svc.Replay(c, c.Param("room"))
	if err != nil {
		c.JSON(h.status(err), ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, records)
}

func (h *Handler) status(err error) int {
	if errors.Is(err, strokelog.ErrStoreUnavailable) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
