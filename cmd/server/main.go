// Package main provides the HTTP server entry point for the paper reader.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arxiv-daily/internal/api"
	"github.com/arxiv-daily/internal/auth"
	"github.com/arxiv-daily/internal/config"
	"github.com/arxiv-daily/internal/logging"
	"github.com/arxiv-daily/internal/papers"
	"github.com/arxiv-daily/internal/search"
	"github.com/arxiv-daily/internal/service"
	"github.com/arxiv-daily/internal/storage"
	"github.com/arxiv-daily/internal/worker"
)

func main() {
	fmt.Println("arXiv Daily Reader")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize structured logging
	logging.InitGlobalLogger(logging.ParseLogLevel(cfg.Logging.Level), logging.ParseLogFormat(cfg.Logging.Format))
	logger := logging.GetGlobalLogger()
	logger.WithFields(map[string]interface{}{
		"level":  cfg.Logging.Level,
		"format": cfg.Logging.Format,
	}).Info("Structured logging initialized")

	if cfg.Auth.SecretKey == "dev-secret-key" && !cfg.Auth.NoAuthMode {
		logger.Warn("SECRET_KEY is not set; sessions are signed with the development key")
	}

	// Schema first, then the connection pool
	if err := storage.RunMigrations(cfg.Database.Path); err != nil {
		logger.WithError(err).Fatal("Failed to apply migrations")
	}
	db, err := storage.NewSQLiteDB(&cfg.Database)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open database")
	}
	defer db.Close()

	// Initialize repositories
	favoriteRepo := storage.NewFavoriteRepository(db)
	userRepo := storage.NewUserRepository(db)
	historyRepo := storage.NewHistoryRepository(db)
	filterRepo := storage.NewFilterRepository(db)

	users, err := userRepo.Count(context.Background())
	if err != nil {
		logger.WithError(err).Fatal("Failed to read users")
	}
	logger.WithFields(map[string]interface{}{
		"path":  db.Path(),
		"users": users,
	}).Info("Database ready")

	// Redis is an optional second cache level for parsed day files
	var shared papers.SharedCache
	if cfg.Redis.Enabled() {
		redis, err := storage.NewRedisCache(&cfg.Redis)
		if err != nil {
			logger.WithError(err).Warn("Redis unavailable, using the in-process cache only")
		} else {
			defer redis.Close()
			shared = storage.NewCacheService(redis, cfg.Cache.TTL)
			logger.WithFields(map[string]interface{}{
				"addr":      cfg.Redis.Addr,
				"pool_size": cfg.Redis.PoolSize,
				"ttl":       cfg.Cache.TTL.String(),
			}).Info("Redis cache connected")
		}
	}

	store, err := papers.NewStore(&cfg.Papers, shared)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open paper data directory")
	}
	logger.WithField("dir", store.Dir()).Info("Paper store ready")

	index, err := search.NewIndex()
	if err != nil {
		logger.WithError(err).Fatal("Failed to create search index")
	}
	defer index.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reindexer, err := worker.NewReindexWorker(&worker.ReindexWorkerConfig{
		Index:    index,
		Source:   store,
		Interval: cfg.Papers.ReindexInterval,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to create reindex worker")
	}
	if err := reindexer.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Failed to start reindex worker")
	}

	// Initialize services
	userService := service.NewUserService(userRepo)
	filterService := service.NewFilterService(filterRepo)
	historyService := service.NewHistoryService(historyRepo, filterService)
	favoriteService := service.NewFavoriteService(favoriteRepo, store, filterService)
	feedService := service.NewFeedService(store, favoriteRepo, historyService, filterService)

	if cfg.Auth.NoAuthMode {
		user, err := userService.EnsureDefaultUser(ctx, cfg.Auth.DefaultUsername, cfg.Auth.DefaultPassword)
		if err != nil {
			logger.WithError(err).Fatal("Failed to create default user")
		}
		logger.WithField("username", user.Username).Info("No-auth mode enabled")
	}

	serverConfig := &api.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    30 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		NoAuthMode:      cfg.Auth.NoAuthMode,
		DefaultUsername: cfg.Auth.DefaultUsername,
		DefaultPassword: cfg.Auth.DefaultPassword,
		AuthRPS:         cfg.RateLimit.AuthRPS,
		AuthBurst:       cfg.RateLimit.AuthBurst,
	}

	server, err := api.NewServer(serverConfig, &api.Services{
		Users:     userService,
		Favorites: favoriteService,
		Filters:   filterService,
		History:   historyService,
		Feed:      feedService,
		Papers:    store,
		Search:    index,
		Reindex:   reindexer,
		Sessions:  auth.NewSessionManager(cfg.Auth.SecretKey, cfg.Auth.SessionTTL, false),
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to create server")
	}

	// Start server in a goroutine
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	logger.WithFields(map[string]interface{}{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Server started successfully")

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), serverConfig.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}
	if err := reindexer.Stop(shutdownCtx); err != nil {
		logger.WithError(err).Warn("Reindex worker did not stop cleanly")
	}

	logger.Info("Server exited")
}
