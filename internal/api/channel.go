package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/huddlehq/huddle/internal/middleware"
	"github.com/huddlehq/huddle/internal/models"
	"github.com/huddlehq/huddle/internal/repository"
)

type ChannelHandler struct {
	channels    repository.ChannelRepository
	memberships repository.MembershipRepository
	logger      *zap.Logger
}

func NewChannelHandler(
	channels repository.ChannelRepository,
	memberships repository.MembershipRepository,
	logger *zap.Logger,
) *ChannelHandler {
	return &ChannelHandler{channels: channels, memberships: memberships, logger: logger}
}

type createChannelRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	IsPrivate   bool   `json:"is_private"`
}

// Create handles POST /v1/channels. The name is normalized before the
// insert, so "Exam Schedules" collides with an existing "exam-schedules"
// and comes back as a 409.
func (h *ChannelHandler) Create(c *gin.Context) {
	var req createChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	name := models.NormalizeChannelName(req.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "channel name is required"})
		return
	}

	userID := middleware.GetUserID(c)
	ch, err := h.channels.Create(c.Request.Context(), name, req.Description, req.IsPrivate, userID)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			c.JSON(http.StatusConflict, gin.H{"error": "channel with this name already exists"})
			return
		}
		h.logger.Error("failed to create channel", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create channel"})
		return
	}

	// The creator is the first member.
	if err := h.memberships.Add(c.Request.Context(), ch.ID, userID); err != nil && !errors.Is(err, repository.ErrConflict) {
		h.logger.Error("failed to add creator membership", zap.Error(err), zap.Int64("channel", ch.ID))
	}

	c.JSON(http.StatusCreated, ch)
}

// List handles GET /v1/channels
func (h *ChannelHandler) List(c *gin.Context) {
	channels, err := h.channels.List(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err, "failed to list channels")
		return
	}
	c.JSON(http.StatusOK, gin.H{"channels": channels})
}

// GetByID handles GET /v1/channels/:id
func (h *ChannelHandler) GetByID(c *gin.Context) {
	channelID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid channel id"})
		return
	}

	ch, err := h.channels.GetByID(c.Request.Context(), channelID)
	if err != nil {
		respondError(c, h.logger, err, "failed to get channel")
		return
	}

	members, err := h.memberships.ListMembers(c.Request.Context(), channelID)
	if err != nil {
		respondError(c, h.logger, err, "failed to list members")
		return
	}

	c.JSON(http.StatusOK, gin.H{"channel": ch, "members": members})
}
