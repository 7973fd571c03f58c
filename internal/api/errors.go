package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/huddlehq/huddle/internal/repository"
)

// respondError maps repository sentinels onto the HTTP taxonomy: validation
// 400, conflict 409, not found 404, anything else a logged 500 with the
// fallback message.
func respondError(c *gin.Context, logger *zap.Logger, err error, fallback string) {
	switch {
	case errors.Is(err, repository.ErrEmptyMessage):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, repository.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": fallback + ": already exists"})
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": fallback + ": not found"})
	default:
		logger.Error(fallback, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}

// excludedSession reads the optional X-Session-ID header, which a client
// passes on REST writes so the fan-out of its own write skips its live
// websocket session. Absent or malformed means exclude nobody.
func excludedSession(c *gin.Context) uuid.UUID {
	raw := c.GetHeader("X-Session-ID")
	if raw == "" {
		return uuid.Nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil
	}
	return id
}
