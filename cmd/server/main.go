package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/wadjakorntonsri/atf-link-tracker/pkg/adapters/handler"
	"github.com/wadjakorntonsri/atf-link-tracker/pkg/adapters/repository/sqlite"
	"github.com/wadjakorntonsri/atf-link-tracker/pkg/adapters/scheduler"
	"github.com/wadjakorntonsri/atf-link-tracker/pkg/config"
	"github.com/wadjakorntonsri/atf-link-tracker/pkg/core/services"
	"github.com/wadjakorntonsri/atf-link-tracker/pkg/logger"
	"github.com/wadjakorntonsri/atf-link-tracker/pkg/security"
)

// App holds all dependencies for the server
type App struct {
	Config    *config.Config
	Server    *http.Server
	Repo      *sqlite.SQLiteRepository
	Retention *services.RetentionService
}

func main() {
	logger.Init()
	cfg := config.Load()

	repo, err := sqlite.NewSQLiteRepository(cfg.DatabaseURL)
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer repo.Close()

	app := NewApp(cfg, repo)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var scheduleDone <-chan struct{}
	if cfg.RetentionScheduleEnabled {
		scheduleDone = scheduler.NewTicker(app.Retention, cfg.RetentionInterval).Start(ctx)
		zlog.Info().Dur("interval", cfg.RetentionInterval).Msg("retention schedule enabled")
	} else {
		zlog.Info().Msg("retention schedule disabled: trigger cleanup via CLI or POST /atf/v1/retention")
	}

	go func() {
		zlog.Info().Str("port", cfg.Port).Msg("server starting")
		if err := app.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal().Err(err).Msg("server crashed")
		}
	}()

	<-ctx.Done()
	zlog.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.Server.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Err(err).Msg("graceful shutdown failed")
	}
	if scheduleDone != nil {
		<-scheduleDone
	}
}

// NewApp wires services and transport around an open repository.
func NewApp(cfg *config.Config, repo *sqlite.SQLiteRepository) *App {
	nonces := security.NewNonceManager(cfg.NonceSecret, cfg.NonceTTL)

	ingestion := services.NewIngestionService(repo, nonces)
	retention := services.NewRetentionService(repo)

	mux := handler.NewRouter(cfg, ingestion, retention, nonces)

	return &App{
		Config: cfg,
		Server: &http.Server{
			Addr:         ":" + cfg.Port,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Repo:      repo,
		Retention: retention,
	}
}
