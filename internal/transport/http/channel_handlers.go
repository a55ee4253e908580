package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/seenup/seenup-server/internal/core"
	"github.com/seenup/seenup-server/internal/store"
)

// ChannelHandlers provides HTTP handlers for channel endpoints.
type ChannelHandlers struct {
	store    store.Store
	channels *core.Channels
	log      *zerolog.Logger
}

// NewChannelHandlers creates a new channel handlers instance.
func NewChannelHandlers(st store.Store, channels *core.Channels, logger *zerolog.Logger) *ChannelHandlers {
	return &ChannelHandlers{
		store:    st,
		channels: channels,
		log:      logger,
	}
}

// CreateChannelRequest represents the create channel request body.
type CreateChannelRequest struct {
	Name      string `json:"name" binding:"required,min=1,max=64"`
	IsPrivate bool   `json:"isPrivate"`
}

// ChannelResponse represents a channel in API responses.
type ChannelResponse struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	IsPrivate bool   `json:"isPrivate"`
	AdminID   *int64 `json:"adminId,omitempty"`
	CreatedAt string `json:"createdAt"`
}

// CreateChannel handles channel creation with the caller as admin.
// POST /api/channels
func (h *ChannelHandlers) CreateChannel(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	var req CreateChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid create channel request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	ch, err := h.store.CreateChannel(c.Request.Context(), strings.TrimSpace(req.Name), req.IsPrivate, uid)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			c.JSON(http.StatusConflict, ErrorResponse{Error: "channel with this name already exists"})
			return
		}
		h.log.Error().Err(err).Str("channel", req.Name).Msg("failed to create channel")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	if err := h.store.AddMember(c.Request.Context(), ch.ID, uid); err != nil {
		h.log.Error().Err(err).Str("channel", ch.Name).Msg("failed to attach admin membership")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusCreated, channelResponse(ch))
}

// ListChannels returns the caller's channels, banned memberships excluded.
// GET /api/channels
func (h *ChannelHandlers) ListChannels(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	channels, err := h.store.MembershipsOf(c.Request.Context(), uid, true)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", uid).Msg("failed to list channels")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	resp := make([]ChannelResponse, 0, len(channels))
	for _, ch := range channels {
		resp = append(resp, channelResponse(ch))
	}
	c.JSON(http.StatusOK, resp)
}

// IsAdmin reports whether the caller administers the named channel.
// GET /api/channels/:name/admin
func (h *ChannelHandlers) IsAdmin(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	admin, err := h.channels.IsAdmin(c.Request.Context(), uid, c.Param("name"))
	if err != nil {
		var ce *core.CoreError
		if errors.As(err, &ce) && ce.Code == core.ErrCodeNotFound {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "channel not found"})
			return
		}
		h.log.Error().Err(err).Str("channel", c.Param("name")).Msg("failed to check admin")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, admin)
}

func channelResponse(ch *store.Channel) ChannelResponse {
	return ChannelResponse{
		ID:        ch.ID,
		Name:      ch.Name,
		IsPrivate: ch.IsPrivate,
		AdminID:   ch.AdminID,
		CreatedAt: ch.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}
