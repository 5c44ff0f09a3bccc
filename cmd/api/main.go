package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/TWLS151/Soootudy-sub000/internal/app"
	"github.com/TWLS151/Soootudy-sub000/internal/artifact"
	"github.com/TWLS151/Soootudy-sub000/internal/backend"
	"github.com/TWLS151/Soootudy-sub000/internal/config"
	"github.com/TWLS151/Soootudy-sub000/internal/identity"
	"github.com/TWLS151/Soootudy-sub000/internal/logging"
	"github.com/TWLS151/Soootudy-sub000/internal/notify"
	"github.com/TWLS151/Soootudy-sub000/internal/realtime"
	"github.com/TWLS151/Soootudy-sub000/internal/store"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()
	logger := logging.New(cfg.LogLevel)

	db, err := store.Open(ctx, cfg.DatabaseURL, store.PoolOptions(cfg.DBPool))
	if err != nil {
		logger.Error(ctx, "database connection failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := store.ApplyMigrations(db); err != nil {
		logger.Error(ctx, "migrations failed", "error", err)
		os.Exit(1)
	}

	feed, err := realtime.NewFeed(cfg.RedisURL, logger)
	if err != nil {
		logger.Error(ctx, "redis connection failed", "error", err)
		os.Exit(1)
	}
	defer feed.Close()

	members, err := identity.LoadMembers(cfg.MembersFile)
	if err != nil {
		logger.Warn(ctx, "members file unavailable, owners cannot be notified", "path", cfg.MembersFile, "error", err)
		members = nil
	}

	source, err := artifact.Configure(artifact.Options{
		RepoDir:   cfg.SourceRepoDir,
		Branch:    cfg.SourceBranch,
		Endpoint:  cfg.S3Endpoint,
		Bucket:    cfg.S3Bucket,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		UseSSL:    cfg.S3UseSSL,
	})
	if err != nil {
		logger.Error(ctx, "artifact source failed", "error", err)
		os.Exit(1)
	}
	if source == nil {
		logger.Warn(ctx, "no artifact source configured, export is disabled")
	}

	dataStore := store.NewPostgresStore(db)
	comments := backend.New(dataStore, feed, logger)
	directory := identity.NewDirectory(members, dataStore, cfg.IdentityCacheTTL)
	dispatcher := notify.NewDispatcher(directory, comments, logger)

	service := app.New(cfg, app.Deps{
		Backend:  comments,
		Profiles: dataStore,
		Notifier: dispatcher,
		People:   directory,
		Source:   source,
		Checks: map[string]app.Check{
			"database": dataStore.Ping,
			"redis":    feed.Ping,
		},
		Logger: logger,
	})

	server := app.NewServer(cfg.Addr, service, cfg.CORSOrigin)

	go func() {
		logger.Info(ctx, "annotation API listening", "addr", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error(ctx, "server failed", "error", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn(ctx, "shutdown error", "error", err)
	}
}
