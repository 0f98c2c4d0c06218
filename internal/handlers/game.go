package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"spinwheel-backend/internal/config"
	"spinwheel-backend/internal/models"
	"spinwheel-backend/internal/services"
	"spinwheel-backend/internal/wheel"
)

type GameHandler struct {
	gameEngine *services.GameEngine
	sessions   services.SessionStore
	policy     config.Policy
}

func NewGameHandler(gameEngine *services.GameEngine, sessions services.SessionStore, policy config.Policy) *GameHandler {
	return &GameHandler{
		gameEngine: gameEngine,
		sessions:   sessions,
		policy:     policy,
	}
}

func (h *GameHandler) GetState(c *gin.Context) {
	resp, err := h.gameEngine.State(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"state":           resp.State,
		"pool":            resp.Pool,
		"dev_fee_bps":     h.gameEngine.FeeBps(),
		"expected_return": wheel.ExpectedReturn(),
	})
}

func (h *GameHandler) GetBalance(c *gin.Context) {
	address := c.GetString("address")

	balance, err := h.gameEngine.Balance(c.Request.Context(), address)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"balance": balance,
	})
}

func (h *GameHandler) GetHistory(c *gin.Context) {
	address := c.GetString("address")

	limitStr := c.DefaultQuery("limit", strconv.FormatInt(h.policy.HistoryLimit, 10))
	limit, err := strconv.ParseInt(limitStr, 10, 64)
	if err != nil || limit <= 0 || limit > 100 {
		limit = h.policy.HistoryLimit
	}

	spins, err := h.gameEngine.SpinHistory(c.Request.Context(), address, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"spins":   spins,
		"count":   len(spins),
	})
}

func (h *GameHandler) Spin(c *gin.Context) {
	address := c.GetString("address")

	var req models.SpinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	req.Player = address

	allowed, err := h.sessions.CheckRateLimit(c.Request.Context(), address, "spin", h.policy.RateLimitSpins, time.Minute)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Rate limit check failed"})
		return
	}
	if !allowed {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many spins. Please wait."})
		return
	}

	result, err := h.gameEngine.Spin(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"won":     result.Won(),
		"spin":    result,
	})
}

func (h *GameHandler) Fund(c *gin.Context) {
	var req models.FundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	req.Funder = c.GetString("address")

	pool, err := h.gameEngine.FundPool(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"pool":    pool,
	})
}
