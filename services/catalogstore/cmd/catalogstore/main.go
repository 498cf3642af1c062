package main

import (
	"context"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/example/fiction-portal/internal/platform/auth"
	platformconfig "github.com/example/fiction-portal/internal/platform/config"
	"github.com/example/fiction-portal/internal/platform/db"
	"github.com/example/fiction-portal/internal/platform/httpserver"
	"github.com/example/fiction-portal/internal/platform/logging"
	"github.com/example/fiction-portal/internal/platform/natsconn"
	"github.com/example/fiction-portal/internal/platform/run"
	"github.com/example/fiction-portal/services/catalogstore/internal/config"
	"github.com/example/fiction-portal/services/catalogstore/internal/handlers"
	"github.com/example/fiction-portal/services/catalogstore/internal/outbox"
	"github.com/example/fiction-portal/services/catalogstore/internal/sanitize"
	"github.com/example/fiction-portal/services/catalogstore/internal/store"
)

type backends struct {
	catalog  store.CatalogStore
	profiles store.ProfileStore
	pool     *pgxpool.Pool
}

func main() {
	appCfg, err := platformconfig.Load()
	if err != nil {
		panic(err)
	}
	log, err := logging.NewService(appCfg.LogLevel, appCfg.ServiceName)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	cfg := config.Load()

	be := initStores(log, cfg)
	if be.pool != nil {
		defer be.pool.Close()
	}

	policy := sanitize.NewStoryPolicy()

	r := chi.NewRouter()
	httpserver.SetupRouter(r, httpserver.RouterConfig{ReadyFunc: func() error {
		if be.pool == nil {
			return nil
		}
		return be.pool.Ping(context.Background())
	}})

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireToken(cfg.StoreToken))

		r.Get("/v1/series", handlers.ListSeries(be.catalog))
		r.Post("/v1/series", handlers.CreateSeries(be.catalog))
		r.Get("/v1/series/{series_id}", handlers.GetSeries(be.catalog))
		r.Delete("/v1/series/{series_id}", handlers.DeleteSeries(be.catalog))
		r.Post("/v1/series/{series_id}/chapters", handlers.AppendChapter(be.catalog, policy))
		r.Delete("/v1/series/{series_id}/chapters/{chapter_id}", handlers.RemoveChapter(be.catalog))
		r.Patch("/v1/series/{series_id}/chapters/{chapter_id}", handlers.PatchChapter(be.catalog, policy))

		r.Get("/v1/profiles/{user_id}", handlers.GetProfile(be.profiles))
		r.Put("/v1/profiles/{user_id}", handlers.EnsureProfile(be.profiles))
		r.Patch("/v1/profiles/{user_id}", handlers.PatchProfile(be.profiles))
	})

	srv := httpserver.New(httpserver.Options{Addr: appCfg.HTTP.Addr, ServiceName: appCfg.ServiceName, Logger: log, Router: r})

	runner := run.New(log)
	code := runner.WithSignals(func(ctx context.Context) error {
		// The outbox publisher only runs against Postgres; the in-memory
		// store has no durable events to drain.
		if be.pool != nil {
			nc, err := natsconn.Connect(natsconn.Options{URL: cfg.NATSURL})
			if err != nil {
				if cfg.Production {
					return err
				}
				log.Warn("nats unavailable, catalog events disabled", zap.Error(err))
			} else {
				defer nc.Close()
				pub, err := outbox.NewPublisher(log, be.pool, nc)
				if err != nil {
					return err
				}
				go func() {
					if err := pub.Run(ctx); err != nil {
						log.Error("outbox publisher stopped", zap.Error(err))
					}
				}()
			}
		}

		go func() {
			<-ctx.Done()
			_ = srv.Shutdown(context.Background())
		}()
		return srv.Start(log)
	})

	log.Info("exit", zap.Int("code", code))
	run.Exit(code)
}

// initStores selects the persistence backend. Production requires Postgres
// and terminates the process when it is unreachable.
func initStores(log *zap.Logger, cfg config.Config) backends {
	if cfg.DatabaseURL == "" {
		if cfg.Production {
			log.Error("DATABASE_URL is required in production")
			_ = log.Sync()
			run.Exit(1)
		}
		log.Warn("DATABASE_URL not set, using in-memory store (development only)")
		mem := store.NewInMemoryStore()
		return backends{catalog: mem, profiles: mem}
	}

	pool, err := db.Open(context.Background())
	if err != nil {
		if cfg.Production {
			log.Error("postgres is required in production but unavailable", zap.Error(err))
			_ = log.Sync()
			run.Exit(1)
		}
		log.Warn("postgres unavailable, falling back to in-memory store", zap.Error(err))
		mem := store.NewInMemoryStore()
		return backends{catalog: mem, profiles: mem}
	}

	if err := store.Migrate(pool); err != nil {
		log.Error("migrations failed", zap.Error(err))
		pool.Close()
		_ = log.Sync()
		run.Exit(1)
	}

	log.Info("catalog store: postgres")
	pg := store.NewPostgresStore(pool)
	return backends{catalog: pg, profiles: pg, pool: pool}
}
