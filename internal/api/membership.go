package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/huddlehq/huddle/internal/middleware"
	"github.com/huddlehq/huddle/internal/repository"
)

type MembershipHandler struct {
	channels    repository.ChannelRepository
	memberships repository.MembershipRepository
	logger      *zap.Logger
}

func NewMembershipHandler(
	channels repository.ChannelRepository,
	memberships repository.MembershipRepository,
	logger *zap.Logger,
) *MembershipHandler {
	return &MembershipHandler{channels: channels, memberships: memberships, logger: logger}
}

// Join handles POST /v1/channels/:id/join. Joining twice is a 409: the
// membership pair is set-like and the client treats the conflict as "you
// are already in".
func (h *MembershipHandler) Join(c *gin.Context) {
	channelID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid channel id"})
		return
	}

	if _, err := h.channels.GetByID(c.Request.Context(), channelID); err != nil {
		respondError(c, h.logger, err, "failed to get channel")
		return
	}

	userID := middleware.GetUserID(c)
	if err := h.memberships.Add(c.Request.Context(), channelID, userID); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			c.JSON(http.StatusConflict, gin.H{"error": "already a member of this channel"})
			return
		}
		h.logger.Error("failed to join channel", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to join channel"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"joined": true})
}

// Leave handles DELETE /v1/channels/:id/leave. Leaving a channel you are
// not in succeeds quietly.
func (h *MembershipHandler) Leave(c *gin.Context) {
	channelID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid channel id"})
		return
	}

	userID := middleware.GetUserID(c)
	if err := h.memberships.Remove(c.Request.Context(), channelID, userID); err != nil {
		h.logger.Error("failed to leave channel", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to leave channel"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"left": true})
}
