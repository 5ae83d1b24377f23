// Command communityd boots the community core: configuration, logging, the
// SQLite store with migrations, tracing, and an ops listener for /metrics and
// /healthz. The web presentation layer (routing, views, sessions) is provided
// by the embedding deployment and mounts the services constructed here.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dvorik/go-community-backend/internal/config"
	"github.com/dvorik/go-community-backend/internal/observability"
	"github.com/dvorik/go-community-backend/internal/repo"
	"github.com/dvorik/go-community-backend/internal/services"
	"github.com/dvorik/go-community-backend/internal/session"
	"github.com/dvorik/go-community-backend/internal/sysutil"
)

const version = "1.0.0"

func main() {
	_ = godotenv.Load()
	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}
	defer func() {
		c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownOTel(c)
	}()

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}

	properties := &services.PropertyService{DB: db}
	votings := services.NewVotingService(db, properties)
	access := services.NewAccessService(db, session.NewMemory(cfg.GrantTTL), cfg.GrantTTL, cfg.BlurRatio)
	notifications := &services.NotificationService{DB: db}
	forum := &services.ForumService{DB: db, Access: access, Notifications: notifications}
	posts := &services.PostService{DB: db, Access: access}

	// Startup self-check: one page of each listing proves the schema and the
	// service wiring before the process reports ready.
	if _, nVotings, err := votings.ListPage(ctx, 1, cfg.PageSize); err != nil {
		log.Fatal().Err(err).Msg("voting listing self-check failed")
	} else if _, nTopics, err := forum.ListTopicsPage(ctx, 1, cfg.PageSize); err != nil {
		log.Fatal().Err(err).Msg("forum listing self-check failed")
	} else if _, nPosts, err := posts.ListPage(ctx, 1, cfg.PageSize); err != nil {
		log.Fatal().Err(err).Msg("blog listing self-check failed")
	} else {
		log.Info().
			Int64("votings", nVotings).
			Int64("topics", nTopics).
			Int64("posts", nPosts).
			Msg("store reachable")
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if sqlDB, err := db.DB(); err != nil || sqlDB.Ping() != nil {
			http.Error(w, "db unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info().Str("addr", cfg.MetricsAddr).Msg("ops listener up")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("ops listener failed")
		}
	}()

	log.Info().Str("db", cfg.DBPath).Str("version", version).Msg("community core ready")
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("ops listener shutdown")
	}
	log.Info().Msg("bye")
}
