package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/huddlehq/huddle/internal/middleware"
	"github.com/huddlehq/huddle/internal/models"
	"github.com/huddlehq/huddle/internal/repository"
)

type UserHandler struct {
	users  repository.UserRepository
	logger *zap.Logger
}

func NewUserHandler(users repository.UserRepository, logger *zap.Logger) *UserHandler {
	return &UserHandler{users: users, logger: logger}
}

// List handles GET /v1/users — the workspace directory.
func (h *UserHandler) List(c *gin.Context) {
	users, err := h.users.List(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err, "failed to list users")
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

type updateProfileRequest struct {
	DisplayName string `json:"display_name" binding:"required"`
	AvatarURL   string `json:"avatar_url"`
	Status      string `json:"status"`
}

// UpdateProfile handles PUT /v1/profile. Status here covers the manual
// online/away toggle; the offline transition belongs to presence.
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	switch req.Status {
	case "", models.StatusOnline, models.StatusAway:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
		return
	}

	userID := middleware.GetUserID(c)
	if req.Status == "" {
		current, err := h.users.GetByID(c.Request.Context(), userID)
		if err != nil {
			respondError(c, h.logger, err, "failed to load user")
			return
		}
		req.Status = current.Status
	}

	user, err := h.users.UpdateProfile(c.Request.Context(), userID, req.DisplayName, req.AvatarURL, req.Status)
	if err != nil {
		respondError(c, h.logger, err, "failed to update profile")
		return
	}
	c.JSON(http.StatusOK, user)
}
