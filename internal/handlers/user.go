package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"spinwheel-backend/internal/services"
)

type UserHandler struct {
	auth       *services.AuthService
	gameEngine *services.GameEngine
}

func NewUserHandler(auth *services.AuthService, gameEngine *services.GameEngine) *UserHandler {
	return &UserHandler{
		auth:       auth,
		gameEngine: gameEngine,
	}
}

func (h *UserHandler) GetCurrentUser(c *gin.Context) {
	address := c.GetString("address")
	sessionID := c.GetString("session_id")

	session, err := h.auth.Session(c.Request.Context(), address, sessionID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Session expired or invalid"})
		return
	}

	resp := gin.H{
		"address": address,
		"session": gin.H{
			"session_id":    session.SessionID,
			"created_at":    session.CreatedAt,
			"last_accessed": session.LastAccessed,
		},
	}

	// The game may not be initialized yet; the session is still valid.
	if balance, err := h.gameEngine.Balance(c.Request.Context(), address); err == nil {
		resp["balance"] = balance
	}

	c.JSON(http.StatusOK, resp)
}

func (h *UserHandler) Logout(c *gin.Context) {
	address := c.GetString("address")
	sessionID := c.GetString("session_id")

	if err := h.auth.Logout(c.Request.Context(), address, sessionID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to logout"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Successfully logged out"})
}
