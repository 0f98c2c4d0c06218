package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"spinwheel-backend/internal/models"
	"spinwheel-backend/internal/services"
)

type AuthHandler struct {
	auth *services.AuthService
}

func NewAuthHandler(auth *services.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// Challenge issues the message the wallet at ?address= must sign.
func (h *AuthHandler) Challenge(c *gin.Context) {
	address := c.Query("address")
	if address == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "address is required"})
		return
	}

	ch, err := h.auth.IssueChallenge(c.Request.Context(), address)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"address":    ch.Address,
		"nonce":      ch.Nonce,
		"message":    ch.Message,
		"expires_at": ch.ExpiresAt,
	})
}

func (h *AuthHandler) Verify(c *gin.Context) {
	var req models.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	token, session, err := h.auth.Verify(c.Request.Context(), req.Address, req.Signature)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"token":   token,
		"session": session,
	})
}
