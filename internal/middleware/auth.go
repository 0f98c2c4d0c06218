package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"spinwheel-backend/internal/services"
)

// AuthMiddleware accepts a bearer token, or ?token= for WebSocket upgrades,
// and requires its session to still exist.
func AuthMiddleware(jwtService *services.JWTService, sessions services.SessionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		var tokenString string

		if authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization format"})
				c.Abort()
				return
			}
			tokenString = parts[1]
		} else {
			tokenString = c.Query("token")
			if tokenString == "" {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
				c.Abort()
				return
			}
		}

		claims, err := jwtService.ValidateToken(tokenString)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		if _, err := sessions.GetUserSession(c.Request.Context(), claims.Address, claims.SessionID); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Session expired or invalid"})
			c.Abort()
			return
		}

		c.Set("address", claims.Address)
		c.Set("session_id", claims.SessionID)

		c.Next()
	}
}

// RateLimitMiddleware throttles the funding and admin routes per address.
// Spins are limited by the game handler using the configured policy.
func RateLimitMiddleware(sessions services.SessionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		address := c.GetString("address")
		if address == "" {
			c.Next()
			return
		}

		path := c.Request.URL.Path

		var limit int
		var window time.Duration
		var action string

		switch {
		case strings.HasSuffix(path, "/game/fund"):
			action, limit, window = "fund", 30, time.Minute
		case strings.HasSuffix(path, "/admin/withdraw"):
			action, limit, window = "withdraw", 10, time.Minute
		case strings.HasSuffix(path, "/faucet"):
			action, limit, window = "faucet", 5, time.Hour
		default:
			c.Next()
			return
		}

		allowed, err := sessions.CheckRateLimit(c.Request.Context(), address, action, limit, window)
		if err != nil || !allowed {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"retry_after": window.Seconds(),
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
