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
	"grantlane/services/ledger/internal/docstore"
	"grantlane/services/ledger/internal/ledger"
	"grantlane/services/ledger/internal/notify"
	"grantlane/services/ledger/internal/store"
)

type server struct {
	coord   *ledger.Coordinator
	log     *slog.Logger
	cfg     *config.LedgerConfig
	docs    *docstore.Store
	limiter *fixedWindowLimiter
}

func main() {
	cfg, err := config.LoadLedger(os.Getenv("LEDGER_CONFIG"))
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

	coord := ledger.New(st, ledger.Config{
		Realm:        cfg.Identity.Realm,
		IssuerEntity: cfg.Identity.IssuerEntity,
		Log:          log,
	})
	if err := bootstrap(ctx, coord, cfg); err != nil {
		log.Error("bootstrap", "error", err)
		os.Exit(1)
	}

	var docs *docstore.Store
	if cfg.Docs.Enabled() {
		docs, err = docstore.New(cfg.Docs)
		if err != nil {
			log.Error("document archive", "error", err)
			os.Exit(1)
		}
		if err := docs.EnsureBucket(ctx); err != nil {
			log.Error("document archive bucket", "error", err)
			os.Exit(1)
		}
	}

	s := &server{
		coord:   coord,
		log:     log,
		cfg:     cfg,
		docs:    docs,
		limiter: newFixedWindowLimiter(cfg.Admin.RateLimitPerMinute, time.Minute),
	}

	if cfg.Webhook.Enabled() {
		notifier := notify.New(coord, notify.Config{
			URL:      cfg.Webhook.URL,
			Secret:   cfg.Webhook.Secret,
			Interval: time.Duration(cfg.Webhook.IntervalSeconds) * time.Second,
		}, log)
		go notifier.Run(ctx)
		log.Info("audit webhook enabled", "url", cfg.Webhook.URL)
	}

	log.Info("ledger listening", "addr", cfg.Server.Addr, "issuer_id", coord.IssuerID())
	if err := http.ListenAndServe(cfg.Server.Addr, s.routes()); err != nil {
		log.Error("serve", "error", err)
		os.Exit(1)
	}
}

// openStore picks Postgres when a database URL is configured, otherwise the
// in-memory store. Memory mode loses everything on restart; it exists for
// local runs and tests, and the startup log says so.
func openStore(ctx context.Context, cfg *config.LedgerConfig, log *slog.Logger) (store.Store, error) {
	if cfg.Database.URL == "" {
		log.Warn("no database configured; using volatile in-memory store")
		return store.NewMem(), nil
	}
	pool, err := db.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return nil, err
	}
	pg := store.NewPG(pool)
	if err := pg.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	return pg, nil
}

func bootstrap(ctx context.Context, coord *ledger.Coordinator, cfg *config.LedgerConfig) error {
	now := time.Now().UTC()
	authority := domain.Principal{
		PrincipalID: cfg.Bootstrap.AuthorityID,
		DisplayName: cfg.Bootstrap.AuthorityName,
		TokenHash:   authn.HashToken(cfg.Bootstrap.AuthorityToken),
		Status:      domain.PrincipalActive,
		CreatedAt:   now,
	}
	var vault *domain.Principal
	if cfg.Bootstrap.VaultID != "" && cfg.Bootstrap.VaultToken != "" {
		vault = &domain.Principal{
			PrincipalID: cfg.Bootstrap.VaultID,
			DisplayName: cfg.Bootstrap.VaultName,
			TokenHash:   authn.HashToken(cfg.Bootstrap.VaultToken),
			Status:      domain.PrincipalActive,
			CreatedAt:   now,
		}
	}
	return coord.Bootstrap(ctx, authority, vault)
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(httpx.RequestIDMiddleware)
	r.Use(httpx.LoggingMiddleware(s.log))
	r.Use(httpx.RecoverMiddleware(s.log))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	r.Route("/v1", func(api chi.Router) {
		registerReadRoutes(api, s)

		api.Route("/admin", func(admin chi.Router) {
			admin.Use(s.requireAuth)
			admin.Use(s.rateLimit)
			registerPactRoutes(admin, s)
			registerClaimRoutes(admin, s)
			registerStakeRoutes(admin, s)
			registerControlRoutes(admin, s)
			registerDocumentRoutes(admin, s)
		})

		api.Route("/custody", func(custody chi.Router) {
			custody.Use(s.requireAuth)
			registerCustodyRoutes(custody, s)
		})
	})
	return r
}
