package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/huddlehq/huddle/internal/middleware"
	"github.com/huddlehq/huddle/internal/models"
	"github.com/huddlehq/huddle/internal/realtime"
	"github.com/huddlehq/huddle/internal/repository"
)

type ReactionHandler struct {
	reactions repository.ReactionRepository
	messages  repository.MessageRepository
	rt        *realtime.Handler
	logger    *zap.Logger
}

func NewReactionHandler(
	reactions repository.ReactionRepository,
	messages repository.MessageRepository,
	rt *realtime.Handler,
	logger *zap.Logger,
) *ReactionHandler {
	return &ReactionHandler{reactions: reactions, messages: messages, rt: rt, logger: logger}
}

// groupReactions folds raw reactions into per-emoji groups. Group order is
// first-encountered order of each emoji in insertion order; it carries no
// meaning beyond being stable.
func groupReactions(reactions []models.Reaction, viewerID int64) []models.ReactionGroup {
	groups := make([]models.ReactionGroup, 0)
	index := make(map[string]int)

	for _, r := range reactions {
		i, ok := index[r.Emoji]
		if !ok {
			i = len(groups)
			index[r.Emoji] = i
			groups = append(groups, models.ReactionGroup{Emoji: r.Emoji})
		}
		groups[i].Count++
		groups[i].Users = append(groups[i].Users, r.User)
		if r.UserID == viewerID {
			groups[i].UserReacted = true
		}
	}
	return groups
}

// List handles GET /v1/messages/:id/reactions
func (h *ReactionHandler) List(c *gin.Context) {
	messageID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return
	}

	reactions, err := h.reactions.ListByMessage(c.Request.Context(), messageID)
	if err != nil {
		respondError(c, h.logger, err, "failed to list reactions")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"reactions": groupReactions(reactions, middleware.GetUserID(c)),
	})
}

type toggleReactionRequest struct {
	Emoji string `json:"emoji" binding:"required"`
}

// Toggle handles POST /v1/messages/:id/reactions. An existing triple is
// removed, a missing one is created; the outcome is fanned out to the
// message's channel room after the commit.
func (h *ReactionHandler) Toggle(c *gin.Context) {
	messageID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return
	}

	var req toggleReactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.messages.GetByID(c.Request.Context(), messageID)
	if err != nil {
		respondError(c, h.logger, err, "failed to get message")
		return
	}

	userID := middleware.GetUserID(c)
	reaction, added, err := h.reactions.Toggle(c.Request.Context(), messageID, userID, req.Emoji)
	if err != nil {
		respondError(c, h.logger, err, "failed to toggle reaction")
		return
	}

	action := lo.Ternary(added, "added", "removed")
	h.rt.PublishToRoom(
		realtime.ChannelRoom(msg.ChannelID),
		realtime.EventReactionChanged,
		realtime.ReactionChangedPayload{
			MessageID: messageID,
			UserID:    userID,
			Emoji:     req.Emoji,
			Action:    action,
		},
		excludedSession(c),
	)

	if added {
		c.JSON(http.StatusOK, gin.H{"added": true, "reaction": reaction})
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": true, "emoji": req.Emoji})
}
