package chathandler

import (
	"net/http"

	"chatrelay/internal/registry"
	"chatrelay/internal/services/history"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc history.IHistoryService
	reg *registry.Registry
}

func New(svc history.IHistoryService, reg *registry.Registry) *Handler {
	return &Handler{svc: svc, reg: reg}
}

func (h *Handler) Register(r gin.IRoutes) {
	r.GET("/rooms", h.rooms)
	r.GET("/rooms/:id", h.room)
	if h.svc != nil {
		r.GET("/chats/:id/messages", h.messages)
	}
}

// @Summary		List live rooms
// @Description	Rooms that currently have at least one member.
// @Tags			Rooms
// @Success		200	{array}	RoomResponse
// @Router			/rooms [get]
func (h *Handler) rooms(c *gin.Context) {
	rooms := h.reg.Rooms()
	out := make([]RoomResponse, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, toResponse(r))
	}
	c.JSON(http.StatusOK, out)
}

// @Summary		Get room presence
// @Description	Members currently present in a room.
// @Tags			Rooms
// @Param			id	path		string	true	"Room ID"	default(r1)
// @Success		200	{object}	RoomResponse
// @Failure		404	{object}	ErrorResponse
// @Router			/rooms/{id} [get]
func (h *Handler) room(c *gin.Context) {
	r, ok := h.reg.FindRoom(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "room not found"})
		return
	}
	c.JSON(http.StatusOK, toResponse(r))
}

// @Summary		Message history
// @Description	Newest-first page of stored messages older than `before`.
// @Tags			Chats
// @Param			id		path		string	true	"Chat ID"	default(r1)
// @Param			before	query		string	false	"RFC3339 cursor, defaults to now"
// @Param			limit	query		int		false	"Max results (0‑100)"	minimum(0)	maximum(100)	default(50)
// @Success		200		{array}		history.MessageDTO
// @Failure		400		{object}	ErrorResponse
// @Failure		500		{object}	ErrorResponse
// @Router			/chats/{id}/messages [get]
func (h *Handler) messages(c *gin.Context) {
	var q ListMessagesQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	out, err := h.svc.List(c.Request.Context(), c.Param("id"), q.Before, q.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, out)
}

func toResponse(r registry.Room) RoomResponse {
	return RoomResponse{RoomID: r.ID, Members: r.Members, MemberCount: len(r.Members)}
}
