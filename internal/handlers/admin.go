package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"spinwheel-backend/internal/models"
	"spinwheel-backend/internal/services"
	"spinwheel-backend/internal/wheel"
)

type AdminHandler struct {
	gameEngine *services.GameEngine
	tokens     *services.TokenService
	recorder   services.Recorder

	// faucetMint and faucetAuthority are empty when the faucet is disabled.
	faucetMint      string
	faucetAuthority string
	faucetAmount    uint64
}

func NewAdminHandler(gameEngine *services.GameEngine, tokens *services.TokenService, recorder services.Recorder) *AdminHandler {
	return &AdminHandler{
		gameEngine: gameEngine,
		tokens:     tokens,
		recorder:   recorder,
	}
}

// EnableFaucet lets any signed-in wallet mint amount test tokens per call.
func (h *AdminHandler) EnableFaucet(mint, authority string, amount uint64) {
	h.faucetMint = mint
	h.faucetAuthority = authority
	h.faucetAmount = amount
}

func (h *AdminHandler) Initialize(c *gin.Context) {
	var req models.InitializeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	req.Authority = c.GetString("address")

	state, err := h.gameEngine.Initialize(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"state":   state,
	})
}

func (h *AdminHandler) Withdraw(c *gin.Context) {
	var req models.WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	req.Caller = c.GetString("address")

	pool, err := h.gameEngine.WithdrawProfits(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"pool":    pool,
	})
}

// Summary reports recorded totals. Only the authority may read it.
func (h *AdminHandler) Summary(c *gin.Context) {
	resp, err := h.gameEngine.State(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	if c.GetString("address") != resp.State.Authority {
		respondError(c, wheel.ErrUnauthorized)
		return
	}

	summary, err := h.recorder.Summary()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"summary": summary,
		"pool":    resp.Pool,
	})
}

func (h *AdminHandler) Faucet(c *gin.Context) {
	if h.faucetMint == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "Faucet disabled"})
		return
	}
	address := c.GetString("address")

	account, err := h.tokens.MintTo(c.Request.Context(), h.faucetAuthority, h.faucetMint, address, h.faucetAmount)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"account": account,
		"display": wheel.FormatTokens(account.Amount),
	})
}
