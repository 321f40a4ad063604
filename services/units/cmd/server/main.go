package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"

	"grantlane/pkg/authn"
	"grantlane/pkg/config"
	"grantlane/pkg/db"
	"grantlane/pkg/domain"
	"grantlane/pkg/httpx"
	"grantlane/pkg/logger"
	"grantlane/services/units/internal/unitledger"
	"grantlane/services/units/internal/unitstore"
)

type server struct {
	engine *unitledger.Engine
	log    *slog.Logger
	cfg    *config.UnitsConfig
}

func main() {
	cfg, err := config.LoadUnits(os.Getenv("UNITS_CONFIG"))
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	logger.Init(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	log := slog.Default()

	ctx := context.Background()
	st, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Error("open store", "error", err)
		os.Exit(1)
	}

	engine := unitledger.New(st, unitledger.Config{Log: log})
	if err := bootstrap(ctx, engine, cfg); err != nil {
		log.Error("bootstrap", "error", err)
		os.Exit(1)
	}

	s := &server{engine: engine, log: log, cfg: cfg}
	log.Info("units listening", "addr", cfg.Server.Addr)
	if err := http.ListenAndServe(cfg.Server.Addr, s.routes()); err != nil {
		log.Error("serve", "error", err)
		os.Exit(1)
	}
}

func openStore(ctx context.Context, cfg *config.UnitsConfig, log *slog.Logger) (unitstore.Store, error) {
	if cfg.Database.URL == "" {
		log.Warn("no database configured; using volatile in-memory store")
		return unitstore.NewMem(), nil
	}
	pool, err := db.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return nil, err
	}
	pg := unitstore.NewPG(pool)
	if err := pg.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	return pg, nil
}

func bootstrap(ctx context.Context, engine *unitledger.Engine, cfg *config.UnitsConfig) error {
	var lockup time.Time
	if cfg.LockupUntil != "" {
		t, err := time.Parse(time.RFC3339, cfg.LockupUntil)
		if err != nil {
			return err
		}
		lockup = t
	}
	admin := domain.Principal{
		PrincipalID: cfg.Bootstrap.AuthorityID,
		DisplayName: cfg.Bootstrap.AuthorityName,
		TokenHash:   authn.HashToken(cfg.Bootstrap.AuthorityToken),
		Status:      domain.PrincipalActive,
		CreatedAt:   time.Now().UTC(),
	}
	return engine.Bootstrap(ctx, admin, cfg.InitialCap, lockup)
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(httpx.RequestIDMiddleware)
	r.Use(httpx.LoggingMiddleware(s.log))
	r.Use(httpx.RecoverMiddleware(s.log))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	r.Route("/v1", func(api chi.Router) {
		registerReadRoutes(api, s)

		api.Group(func(authed chi.Router) {
			authed.Use(s.requireAuth)
			registerAdminRoutes(authed, s)
			registerTransferRoutes(authed, s)
		})
	})
	return r
}
