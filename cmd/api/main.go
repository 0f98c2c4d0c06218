package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"spinwheel-backend/internal/config"
	"spinwheel-backend/internal/handlers"
	"spinwheel-backend/internal/models"
	"spinwheel-backend/internal/services"
	"spinwheel-backend/internal/wheel"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logs, err := config.NewLogBackend(os.Stdout, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	httpLog := logs.Logger(config.SubsystemHTTP)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		store    services.Store
		sessions services.SessionStore
	)
	switch cfg.StoreBackend {
	case "memory":
		mem := services.NewMemoryStore()
		store, sessions = mem, mem
		httpLog.Warn("Using in-memory store; state is lost on restart")
	default:
		redisService, err := services.NewRedisService(cfg, logs.Logger(config.SubsystemStore))
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisService.Close()
		store, sessions = redisService, redisService
	}

	var recorder services.Recorder = services.NewNoopRecorder()
	if cfg.SQLitePath != "" {
		sqlite, err := services.NewSQLiteRecorder(cfg.SQLitePath, logs.Logger(config.SubsystemRecorder))
		if err != nil {
			log.Fatalf("Failed to open recorder: %v", err)
		}
		recorder = sqlite
	}
	defer recorder.Close()

	jwtService := services.NewJWTService(cfg)
	authService := services.NewAuthService(sessions, jwtService,
		cfg.Policy.ChallengeTTL, cfg.Policy.SessionTTL, httpLog)
	tokenService := services.NewTokenService(store, logs.Logger(config.SubsystemStore))

	gameEngine := services.NewGameEngine(store, services.EngineConfig{
		ProgramID: cfg.ProgramID,
		DevFeeBps: cfg.Policy.DevFeeBps,
		Seeds:     services.NewSlotSeedSource(),
		Recorder:  recorder,
		Log:       logs.Logger(config.SubsystemSpin),
	})
	wsHandler := handlers.NewWebSocketHandler(gameEngine, logs.Logger(config.SubsystemWebSocket))
	gameEngine.SetBroadcaster(wsHandler)

	adminHandler := handlers.NewAdminHandler(gameEngine, tokenService, recorder)
	if !cfg.IsProduction() {
		// The faucet authority is derived, so only this server can sign for it.
		faucetAuthority := models.DeriveAddress(cfg.ProgramID, "faucet")
		mint, err := tokenService.EnsureMint(ctx, faucetAuthority, "faucet", wheel.TokenDecimals)
		if err != nil {
			log.Fatalf("Failed to create faucet mint: %v", err)
		}
		adminHandler.EnableFaucet(mint.Address, faucetAuthority, cfg.FaucetAmount)
		httpLog.Infof("Faucet enabled: mint=%s amount=%s", mint.Address, wheel.FormatTokens(cfg.FaucetAmount))
	}

	scheduler := services.NewScheduler(ctx, gameEngine, recorder, logs.Logger(config.SubsystemCron))
	if err := scheduler.Register(cfg.SnapshotCron); err != nil {
		log.Fatalf("Failed to register scheduler: %v", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := handlers.NewRouter(handlers.RouterConfig{
		JWT:          jwtService,
		Sessions:     sessions,
		Auth:         handlers.NewAuthHandler(authService),
		User:         handlers.NewUserHandler(authService, gameEngine),
		Game:         handlers.NewGameHandler(gameEngine, sessions, cfg.Policy),
		Admin:        adminHandler,
		WS:           wsHandler,
		EnableFaucet: !cfg.IsProduction(),
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		httpLog.Infof("Server starting on port %s (program %s, fee %d bps)",
			cfg.Port, cfg.ProgramID, cfg.Policy.DevFeeBps)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	httpLog.Info("Shutdown signal received, stopping...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		httpLog.Errorf("Server shutdown: %v", err)
	}
}
