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

const (
	defaultPageSize = 50
	maxPageSize     = 100
)

type MessageHandler struct {
	messages repository.MessageRepository
	channels repository.ChannelRepository
	rt       *realtime.Handler
	logger   *zap.Logger
}

func NewMessageHandler(
	messages repository.MessageRepository,
	channels repository.ChannelRepository,
	rt *realtime.Handler,
	logger *zap.Logger,
) *MessageHandler {
	return &MessageHandler{messages: messages, channels: channels, rt: rt, logger: logger}
}

// pageParams parses the cursor pagination query: before (message id, 0 when
// absent) and limit (default 50, capped at 100). Malformed values are a 400;
// the caller gets ok=false and the response is already written.
func pageParams(c *gin.Context) (before int64, limit int, ok bool) {
	if b := c.Query("before"); b != "" {
		var err error
		before, err = strconv.ParseInt(b, 10, 64)
		if err != nil || before < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'before' parameter"})
			return 0, 0, false
		}
	}

	limit = defaultPageSize
	if l := c.Query("limit"); l != "" {
		var err error
		limit, err = strconv.Atoi(l)
		if err != nil || limit < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'limit' parameter"})
			return 0, 0, false
		}
		if limit > maxPageSize {
			limit = maxPageSize
		}
	}
	return before, limit, true
}

// List handles GET /v1/channels/:id/messages?before=123&limit=50
func (h *MessageHandler) List(c *gin.Context) {
	channelID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid channel id"})
		return
	}

	before, limit, ok := pageParams(c)
	if !ok {
		return
	}

	messages, err := h.messages.ListByChannel(c.Request.Context(), channelID, before, limit)
	if err != nil {
		respondError(c, h.logger, err, "failed to list messages")
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

type createMessageRequest struct {
	Content string `json:"content"`
	FileURL string `json:"file_url"`
}

// Create handles POST /v1/channels/:id/messages. The fan-out runs only
// after the store has committed and assigned the id — never before, and
// never re-issued by the client.
func (h *MessageHandler) Create(c *gin.Context) {
	channelID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid channel id"})
		return
	}

	var req createMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, err := h.channels.GetByID(c.Request.Context(), channelID); err != nil {
		respondError(c, h.logger, err, "failed to get channel")
		return
	}

	userID := middleware.GetUserID(c)
	msg, err := h.messages.Create(c.Request.Context(), channelID, userID, req.Content, req.FileURL)
	if err != nil {
		respondError(c, h.logger, err, "failed to create message")
		return
	}

	h.rt.PublishToRoom(realtime.ChannelRoom(channelID), realtime.EventNewMessage, msg, excludedSession(c))

	c.JSON(http.StatusCreated, gin.H{"message": msg})
}

// Search handles GET /v1/search?q=&channel_id=&limit=
func (h *MessageHandler) Search(c *gin.Context) {
	query := c.Query("q")
	if len(query) < 2 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "search query must be at least 2 characters"})
		return
	}

	var channelID int64
	if raw := c.Query("channel_id"); raw != "" {
		var err error
		channelID, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'channel_id' parameter"})
			return
		}
	}

	limit := 20
	if l := c.Query("limit"); l != "" {
		var err error
		limit, err = strconv.Atoi(l)
		if err != nil || limit < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'limit' parameter"})
			return
		}
		if limit > maxPageSize {
			limit = maxPageSize
		}
	}

	messages, err := h.messages.Search(c.Request.Context(), query, channelID, limit)
	if err != nil {
		respondError(c, h.logger, err, "failed to search messages")
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": messages})
}
