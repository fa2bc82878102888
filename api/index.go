package handler

import (
	"net/http"

	"github.com/wadjakorntonsri/atf-link-tracker/pkg/adapters/handler"
	"github.com/wadjakorntonsri/atf-link-tracker/pkg/adapters/repository/sqlite"
	"github.com/wadjakorntonsri/atf-link-tracker/pkg/config"
	"github.com/wadjakorntonsri/atf-link-tracker/pkg/core/services"
	"github.com/wadjakorntonsri/atf-link-tracker/pkg/logger"
	"github.com/wadjakorntonsri/atf-link-tracker/pkg/security"
)

var mux http.Handler

func init() {
	logger.Init()
	cfg := config.Load()

	// Note: On Vercel, a local sqlite file is ephemeral; point DATABASE_URL at Turso (libsql://)
	repo, err := sqlite.NewSQLiteRepository(cfg.DatabaseURL)
	if err != nil {
		panic(err)
	}

	nonces := security.NewNonceManager(cfg.NonceSecret, cfg.NonceTTL)
	mux = handler.NewRouter(cfg,
		services.NewIngestionService(repo, nonces),
		services.NewRetentionService(repo),
		nonces,
	)
}

// Handler is the entrypoint for Vercel. With no long-lived process there is
// no retention schedule; trigger POST /atf/v1/retention instead.
func Handler(w http.ResponseWriter, r *http.Request) {
	mux.ServeHTTP(w, r)
}
