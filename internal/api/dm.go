package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/huddlehq/huddle/internal/middleware"
	"github.com/huddlehq/huddle/internal/realtime"
	"github.com/huddlehq/huddle/internal/repository"
)

type DMHandler struct {
	dms    repository.DirectMessageRepository
	users  repository.UserRepository
	rt     *realtime.Handler
	logger *zap.Logger
}

func NewDMHandler(
	dms repository.DirectMessageRepository,
	users repository.UserRepository,
	rt *realtime.Handler,
	logger *zap.Logger,
) *DMHandler {
	return &DMHandler{dms: dms, users: users, rt: rt, logger: logger}
}

// Conversations handles GET /v1/dm — the DM sidebar.
func (h *DMHandler) Conversations(c *gin.Context) {
	userID := middleware.GetUserID(c)

	conversations, err := h.dms.Conversations(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, err, "failed to list conversations")
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversations": conversations})
}

// List handles GET /v1/dm/:userID?before=&limit=. Reading a conversation
// marks the peer's unread messages read — after the page is computed, so
// the returned page still shows the pre-read state.
func (h *DMHandler) List(c *gin.Context) {
	otherID, err := strconv.ParseInt(c.Param("userID"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	before, limit, ok := pageParams(c)
	if !ok {
		return
	}

	userID := middleware.GetUserID(c)
	messages, err := h.dms.ListBetween(c.Request.Context(), userID, otherID, before, limit)
	if err != nil {
		respondError(c, h.logger, err, "failed to list direct messages")
		return
	}

	if err := h.dms.MarkRead(c.Request.Context(), userID, otherID); err != nil {
		// The page is already correct; a failed read-marker just means the
		// unread counter lags until the next fetch.
		h.logger.Error("failed to mark messages read", zap.Error(err), zap.Int64("peer", otherID))
	}

	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

// Create handles POST /v1/dm/:userID. Fan-out goes to the canonical pair
// room after the store commit, skipping the author's own session.
func (h *DMHandler) Create(c *gin.Context) {
	otherID, err := strconv.ParseInt(c.Param("userID"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	var req createMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, err := h.users.GetByID(c.Request.Context(), otherID); err != nil {
		respondError(c, h.logger, err, "failed to get recipient")
		return
	}

	userID := middleware.GetUserID(c)
	dm, err := h.dms.Create(c.Request.Context(), userID, otherID, req.Content, req.FileURL)
	if err != nil {
		respondError(c, h.logger, err, "failed to create direct message")
		return
	}

	h.rt.PublishToRoom(realtime.DirectRoom(userID, otherID), realtime.EventNewMessage, dm, excludedSession(c))

	c.JSON(http.StatusCreated, gin.H{"message": dm})
}
