package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// OnlineReader is the read side of the presence mirror.
type OnlineReader interface {
	OnlineUserIDs(ctx context.Context) ([]int64, error)
}

type PresenceHandler struct {
	online OnlineReader
	logger *zap.Logger
}

func NewPresenceHandler(online OnlineReader, logger *zap.Logger) *PresenceHandler {
	return &PresenceHandler{online: online, logger: logger}
}

// List handles GET /v1/presence — the ids of every user with at least one
// live connection, read from the mirror the hub maintains.
func (h *PresenceHandler) List(c *gin.Context) {
	ids, err := h.online.OnlineUserIDs(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err, "failed to read presence")
		return
	}
	if ids == nil {
		ids = []int64{}
	}
	c.JSON(http.StatusOK, gin.H{"online": ids})
}
