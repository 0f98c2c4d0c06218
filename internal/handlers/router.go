package handlers

import (
	"github.com/gin-gonic/gin"

	"spinwheel-backend/internal/middleware"
	"spinwheel-backend/internal/services"
)

type RouterConfig struct {
	JWT      *services.JWTService
	Sessions services.SessionStore

	Auth  *AuthHandler
	User  *UserHandler
	Game  *GameHandler
	Admin *AdminHandler
	WS    *WebSocketHandler

	// EnableFaucet mounts POST /api/faucet. Never set in production.
	EnableFaucet bool
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	auth := router.Group("/auth")
	{
		auth.GET("/challenge", cfg.Auth.Challenge)
		auth.POST("/verify", cfg.Auth.Verify)
	}

	protected := router.Group("/api")
	protected.Use(middleware.AuthMiddleware(cfg.JWT, cfg.Sessions))
	protected.Use(middleware.RateLimitMiddleware(cfg.Sessions))
	{
		protected.GET("/me", cfg.User.GetCurrentUser)
		protected.POST("/logout", cfg.User.Logout)

		protected.GET("/ws", cfg.WS.HandleWebSocket)

		game := protected.Group("/game")
		{
			game.GET("/state", cfg.Game.GetState)
			game.GET("/balance", cfg.Game.GetBalance)
			game.GET("/history", cfg.Game.GetHistory)
			game.POST("/spin", cfg.Game.Spin)
			game.POST("/fund", cfg.Game.Fund)
		}

		admin := protected.Group("/admin")
		{
			admin.POST("/initialize", cfg.Admin.Initialize)
			admin.POST("/withdraw", cfg.Admin.Withdraw)
			admin.GET("/summary", cfg.Admin.Summary)
		}

		if cfg.EnableFaucet {
			protected.POST("/faucet", cfg.Admin.Faucet)
		}
	}

	return router
}
