package main

import (
	"context"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/huddlehq/huddle/internal/api"
	"github.com/huddlehq/huddle/internal/config"
	"github.com/huddlehq/huddle/internal/db"
	"github.com/huddlehq/huddle/internal/middleware"
	"github.com/huddlehq/huddle/internal/observ"
	"github.com/huddlehq/huddle/internal/realtime"
	"github.com/huddlehq/huddle/internal/repository/postgres"
	redisrepo "github.com/huddlehq/huddle/internal/repository/redis"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	// Startup has no deadline to inherit; requests get their own contexts.
	database, err := db.New(context.Background(), cfg.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer database.Close()

	presence, err := redisrepo.Connect(context.Background(), cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer presence.Close()

	// A previous crash may have left ghosts in the mirror.
	if err := presence.Reset(context.Background()); err != nil {
		return fmt.Errorf("reset presence mirror: %w", err)
	}

	pool := database.Pool()
	userRepo := postgres.NewUserStore(pool)
	channelRepo := postgres.NewChannelStore(pool)
	membershipRepo := postgres.NewMembershipStore(pool)
	messageRepo := postgres.NewMessageStore(pool)
	dmRepo := postgres.NewDirectMessageStore(pool)
	reactionRepo := postgres.NewReactionStore(pool)

	hub := realtime.NewHub(logger)

	// The tracker publishes the stop itself when a typing flag lapses
	// without one, so a crashed client's flag still clears for everyone.
	// The typist's own sessions are skipped, same as an explicit stop.
	tracker := realtime.NewTypingTracker(cfg.TypingTTL, func(room realtime.Room, userID int64) {
		env, err := realtime.NewEnvelope(realtime.EventUserStoppedTyping, room.Key(), realtime.TypingPayload{UserID: userID})
		if err != nil {
			logger.Error("encode typing expiry", zap.Error(err))
			return
		}
		hub.PublishExcludingUser(room, env, userID)
	})
	defer tracker.Close()

	rt := realtime.NewHandler(hub, tracker, userRepo, membershipRepo, messageRepo, dmRepo, presence, cfg.JWTSecret, logger)

	authHandler := api.NewAuthHandler(userRepo, cfg.JWTSecret, logger)
	userHandler := api.NewUserHandler(userRepo, logger)
	channelHandler := api.NewChannelHandler(channelRepo, membershipRepo, logger)
	membershipHandler := api.NewMembershipHandler(channelRepo, membershipRepo, logger)
	messageHandler := api.NewMessageHandler(messageRepo, channelRepo, rt, logger)
	dmHandler := api.NewDMHandler(dmRepo, userRepo, rt, logger)
	reactionHandler := api.NewReactionHandler(reactionRepo, messageRepo, rt, logger)
	uploadHandler := api.NewUploadHandler(cfg.UploadDir, logger)
	presenceHandler := api.NewPresenceHandler(presence, logger)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := gin.New()
	srv.Use(gin.Logger(), gin.Recovery())

	srv.GET("/v1/health", func(c *gin.Context) {
		if err := database.Health(c.Request.Context()); err != nil {
			c.JSON(503, gin.H{"status": "degraded"})
			return
		}
		c.JSON(200, gin.H{"status": "ok"})
	})

	srv.POST("/v1/auth/register", authHandler.Register)
	srv.POST("/v1/auth/login", authHandler.Login)

	// The websocket endpoint verifies its token itself (query parameter),
	// so it sits outside the middleware group.
	srv.GET("/ws", rt.Serve)

	srv.Static("/uploads", cfg.UploadDir)

	v1 := srv.Group("/v1")
	v1.Use(middleware.AuthMiddleware(cfg.JWTSecret))

	v1.GET("/auth/me", authHandler.Me)
	v1.GET("/users", userHandler.List)
	v1.PUT("/profile", userHandler.UpdateProfile)

	v1.POST("/channels", channelHandler.Create)
	v1.GET("/channels", channelHandler.List)
	v1.GET("/channels/:id", channelHandler.GetByID)
	v1.POST("/channels/:id/join", membershipHandler.Join)
	v1.DELETE("/channels/:id/leave", membershipHandler.Leave)

	v1.GET("/channels/:id/messages", messageHandler.List)
	v1.POST("/channels/:id/messages", messageHandler.Create)
	v1.GET("/search", messageHandler.Search)

	v1.GET("/dm", dmHandler.Conversations)
	v1.GET("/dm/:userID", dmHandler.List)
	v1.POST("/dm/:userID", dmHandler.Create)

	v1.GET("/messages/:id/reactions", reactionHandler.List)
	v1.POST("/messages/:id/reactions", reactionHandler.Toggle)

	v1.POST("/upload", uploadHandler.Upload)
	v1.GET("/presence", presenceHandler.List)

	logger.Info("starting huddle",
		zap.String("port", cfg.Port),
		zap.String("env", cfg.Env),
	)

	if err := srv.Run(":" + cfg.Port); err != nil {
		return fmt.Errorf("run server: %w", err)
	}
	return nil
}
