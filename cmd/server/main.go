package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/luisclicio/fastzap-chat-app-tech-test/broker"
	"github.com/luisclicio/fastzap-chat-app-tech-test/config"
	"github.com/luisclicio/fastzap-chat-app-tech-test/handlers"
	"github.com/luisclicio/fastzap-chat-app-tech-test/repository"
	"github.com/luisclicio/fastzap-chat-app-tech-test/services"
	"github.com/luisclicio/fastzap-chat-app-tech-test/ws"
)

func main() {
	cfg := config.Load()

	logger := newLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("starting chat server", zap.String("port", cfg.Port))

	// --- stores ---
	var (
		userRepo       repository.UserRepository
		roomRepo       repository.RoomRepository
		membershipRepo repository.MembershipRepository
		messageRepo    repository.MessageRepository
	)
	if cfg.DatabaseDSN != "" {
		db, err := repository.OpenGorm(cfg.DatabaseDSN)
		if err != nil {
			logger.Fatal("database open failed", zap.Error(err))
		}
		userRepo = repository.NewGormUserRepo(db)
		roomRepo = repository.NewGormRoomRepo(db)
		membershipRepo = repository.NewGormMembershipRepo(db)
		messageRepo = repository.NewGormMessageRepo(db)
		logger.Info("using sqlite stores", zap.String("dsn", cfg.DatabaseDSN))
	} else {
		inMemUsers := repository.NewInMemoryUserRepo()
		userRepo = inMemUsers
		roomRepo = repository.NewInMemoryRoomRepo()
		membershipRepo = repository.NewInMemoryMembershipRepo(inMemUsers)
		messageRepo = repository.NewInMemoryMessageRepo()
		logger.Info("using in-memory stores")
	}

	// --- broker ---
	var eventBroker broker.Broker
	if cfg.RedisAddr != "" {
		redisBroker := broker.NewRedisBroker(cfg.RedisAddr)
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisBroker.Ping(pingCtx); err != nil {
			cancel()
			logger.Fatal("redis unreachable", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		}
		cancel()
		eventBroker = redisBroker
		logger.Info("using redis broker", zap.String("addr", cfg.RedisAddr))
	} else {
		eventBroker = broker.NewMemoryBroker()
		logger.Info("using in-process broker")
	}

	// --- moderation pipeline ---
	if cfg.ModerationURL == "" {
		logger.Fatal("MODERATION_URL is required; messages are never approved without a classifier")
	}
	classifier := services.NewHTTPClassifier(cfg.ModerationURL, cfg.ModerationAPIKey, cfg.ModerationTimeout)
	moderation := services.NewModerationService(messageRepo, userRepo, eventBroker, classifier, services.ModerationConfig{
		MaxAttempts: cfg.ModerationMaxAttempts,
		Timeout:     cfg.ModerationTimeout,
	}, logger)

	// --- hub ---
	hub := ws.NewHub(eventBroker, membershipRepo, moderation, ws.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		MaxFrameSize:     cfg.MaxFrameSize,
		MaxMessageLength: cfg.MaxMessageLength,
	}, logger)
	go hub.Run()

	// --- services ---
	authSvc := services.NewAuthService(userRepo, &cfg)
	roomSvc := services.NewRoomService(roomRepo, membershipRepo, userRepo)
	msgSvc := services.NewMessageService(messageRepo, membershipRepo, userRepo)

	seed(cfg, userRepo, roomSvc, logger)

	router := handlers.NewRouter(handlers.RouterDeps{
		AuthService:    authSvc,
		RoomService:    roomSvc,
		MessageService: msgSvc,
		Users:          userRepo,
		Hub:            hub,
		Log:            logger,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("server forced to shutdown", zap.Error(err))
	}
	if err := hub.Shutdown(10 * time.Second); err != nil {
		logger.Warn("hub shutdown timed out", zap.Error(err))
	}
	moderation.Close()
	if err := eventBroker.Close(); err != nil {
		logger.Warn("broker close failed", zap.Error(err))
	}

	logger.Info("server exited")
}

// seed creates the staff account and default room on a fresh store.
// Skipped unless ADMIN_PASSWORD is set.
func seed(cfg config.Config, users repository.UserRepository, rooms *services.RoomService, logger *zap.Logger) {
	if cfg.AdminPassword == "" {
		return
	}
	if _, err := users.FindByUsername(cfg.AdminUsername); err == nil {
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(cfg.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		logger.Error("admin seed failed", zap.Error(err))
		return
	}
	admin, err := users.Create(cfg.AdminUsername, string(hashed), true)
	if err != nil {
		logger.Error("admin seed failed", zap.Error(err))
		return
	}
	logger.Info("seeded staff user", zap.String("username", admin.Username))

	if room, err := rooms.CreateRoom("General", "Default public room", false, admin); err == nil {
		logger.Info("seeded default room", zap.Int("room_id", room.ID))
	}
}

func newLogger(level string) *zap.Logger {
	var cfg zap.Config
	if level == "debug" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	logger, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return logger
}
