package app

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	_ "github.com/lib/pq"

	"github.com/thekrishnasarathe/DexiFi-Bridge/internal/app/events"
	"github.com/thekrishnasarathe/DexiFi-Bridge/internal/app/httpapi"
	"github.com/thekrishnasarathe/DexiFi-Bridge/internal/app/metrics"
	svc "github.com/thekrishnasarathe/DexiFi-Bridge/internal/app/services/bridge"
	"github.com/thekrishnasarathe/DexiFi-Bridge/internal/app/storage"
	"github.com/thekrishnasarathe/DexiFi-Bridge/internal/app/storage/memory"
	"github.com/thekrishnasarathe/DexiFi-Bridge/internal/app/storage/postgres"
	"github.com/thekrishnasarathe/DexiFi-Bridge/internal/app/system"
	"github.com/thekrishnasarathe/DexiFi-Bridge/internal/chain"
	"github.com/thekrishnasarathe/DexiFi-Bridge/internal/config"
	"github.com/thekrishnasarathe/DexiFi-Bridge/internal/middleware"
	"github.com/thekrishnasarathe/DexiFi-Bridge/pkg/logger"
)

// Application wires the bridge coordinator, its storage backends, the asset
// ledger client and the HTTP surface into one runnable unit.
type Application struct {
	cfg     *config.Config
	log     *logger.Logger
	bridge  *svc.Service
	bus     *events.Bus
	manager *system.Manager
	server  *http.Server
	db      *sql.DB
	rdb     *redis.Client
}

// New builds the application from configuration.
func New(cfg *config.Config) (*Application, error) {
	log := logger.New(cfg.Logging).WithComponent("app")

	app := &Application{
		cfg:     cfg,
		log:     log,
		bus:     events.NewBus(log.WithComponent("events")),
		manager: system.NewManager(),
	}

	locks, trail, err := app.buildStores()
	if err != nil {
		return nil, err
	}

	ledger, err := app.buildLedger()
	if err != nil {
		return nil, err
	}

	policy := svc.NewOperatorPolicy(cfg.Bridge.Operator)
	app.bridge = svc.New(locks, trail, ledger, policy, app.bus, log.WithComponent("bridge"))

	if cfg.Redis.Addr != "" {
		app.rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		publisher := events.NewRedisPublisher(app.bus, app.rdb, cfg.Redis.Channel, log.WithComponent("events-redis"))
		if err := app.manager.Register(publisher); err != nil {
			return nil, err
		}
	}

	app.server = &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      app.buildRouter(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return app, nil
}

// Bridge exposes the coordinator service, mainly for tests and tooling.
func (a *Application) Bridge() *svc.Service { return a.bridge }

func (a *Application) buildStores() (storage.LockStore, storage.EventStore, error) {
	switch a.cfg.Database.Driver {
	case "memory":
		store := memory.New()
		return store, store, nil
	case "postgres":
		db, err := sql.Open("postgres", a.cfg.Database.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open database: %w", err)
		}
		if err := db.Ping(); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("ping database: %w", err)
		}
		if err := postgres.Apply(context.Background(), db); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("apply migrations: %w", err)
		}
		a.db = db
		store := postgres.New(db)
		return store, store, nil
	default:
		return nil, nil, fmt.Errorf("unknown database driver %q", a.cfg.Database.Driver)
	}
}

func (a *Application) buildLedger() (chain.Ledger, error) {
	switch a.cfg.Chain.Mode {
	case "memory":
		return chain.NewMemoryLedger(a.cfg.Bridge.Custody), nil
	case "rpc":
		client, err := chain.NewClient(chain.ClientConfig{
			RPCURL:  a.cfg.Chain.RPCURL,
			Timeout: a.cfg.Chain.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("init chain client: %w", err)
		}
		return chain.NewRPCLedger(client, chain.RPCLedgerConfig{
			Custody:      a.cfg.Bridge.Custody,
			PollInterval: a.cfg.Chain.PollInterval,
			WaitTimeout:  a.cfg.Chain.WaitTimeout,
		})
	default:
		return nil, fmt.Errorf("unknown chain mode %q", a.cfg.Chain.Mode)
	}
}

func (a *Application) buildRouter() http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"status":"ok"}`)
	}).Methods(http.MethodGet)
	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	api := httpapi.NewHandler(a.bridge, a.bus, a.log.WithComponent("httpapi"))
	api.Register(router)

	auth := middleware.NewAuth(middleware.AuthConfig{
		Secret:    a.cfg.Auth.Secret,
		SkipPaths: []string{"/healthz", "/metrics"},
		Logger:    a.log.WithComponent("auth"),
	})
	limiter := middleware.NewRateLimiter(a.cfg.Server.RateLimit, a.cfg.Server.RateBurst, a.log.WithComponent("ratelimit"))

	var handler http.Handler = router
	handler = limiter.Handler(handler)
	handler = auth.Handler(handler)
	handler = metrics.InstrumentHandler(handler)
	return handler
}

// Start brings up the registered background services and the HTTP listener.
// It blocks until the listener stops.
func (a *Application) Start(ctx context.Context) error {
	if err := a.manager.Start(ctx); err != nil {
		return err
	}

	a.log.WithField("addr", a.server.Addr).Info("bridge API listening")
	if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully shuts down the HTTP server, background services and
// connections.
func (a *Application) Stop(ctx context.Context) error {
	var firstErr error

	if err := a.server.Shutdown(ctx); err != nil {
		firstErr = err
	}
	if err := a.manager.Stop(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	a.log.Info("bridge stopped")
	return firstErr
}
