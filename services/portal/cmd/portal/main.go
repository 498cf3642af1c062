package main

import (
	"context"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/example/fiction-portal/internal/platform/analytics"
	"github.com/example/fiction-portal/internal/platform/auth"
	platformconfig "github.com/example/fiction-portal/internal/platform/config"
	"github.com/example/fiction-portal/internal/platform/httpserver"
	"github.com/example/fiction-portal/internal/platform/logging"
	"github.com/example/fiction-portal/internal/platform/metrics"
	"github.com/example/fiction-portal/internal/platform/natsconn"
	"github.com/example/fiction-portal/internal/platform/ratelimit"
	"github.com/example/fiction-portal/internal/platform/run"
	"github.com/example/fiction-portal/internal/platform/signing"
	"github.com/example/fiction-portal/services/portal/internal/catalog"
	"github.com/example/fiction-portal/services/portal/internal/config"
	"github.com/example/fiction-portal/services/portal/internal/gateway"
	"github.com/example/fiction-portal/services/portal/internal/handlers"
	"github.com/example/fiction-portal/services/portal/internal/readingstate"
)

// invalidationSubject carries the catalog store's change events. Any message
// on it drops this replica's cached catalog.
const invalidationSubject = "catalog.>"

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

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	gw := initGateway(log, cfg, collector)

	nc := connectNATS(log, cfg)
	if nc != nil {
		defer nc.Close()
	}
	var events *analytics.Publisher
	if nc != nil {
		js, err := nc.JetStream()
		if err != nil {
			log.Warn("jetstream unavailable, analytics disabled", zap.Error(err))
		} else {
			events = analytics.New(js, log)
		}
	}

	catOpts := []catalog.Option{catalog.WithLogger(log), catalog.WithMetrics(collector)}
	if nc != nil {
		catOpts = append(catOpts, catalog.WithInvalidationBus(nc, invalidationSubject))
	}
	cache := catalog.New(gw, catOpts...)

	rs := readingstate.New(gw, readingstate.WithLogger(log))
	signer := signing.New(cfg.PlaybackSecret)
	verifier := auth.JWTVerifier{Secret: []byte(cfg.JWTSecret)}
	progressLimiter := ratelimit.NewPerUser(rate.Limit(cfg.ProgressRPS), cfg.ProgressBurst)
	defer progressLimiter.Stop()

	r := chi.NewRouter()
	httpserver.SetupRouter(r)
	r.Handle("/metrics", metrics.Handler(reg))

	r.Get("/v1/catalog", handlers.GetCatalog(cache))
	r.Get("/v1/catalog/snapshot", handlers.GetCatalogSnapshot(cache))
	r.Get("/v1/series/{series_id}", handlers.GetSeries(cache, events))
	r.Get("/v1/play", handlers.Play(signer))

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireUser(verifier))

		r.Get("/v1/series/{series_id}/chapters/{chapter_id}/source", handlers.GetChapterSource(cache, signer, collector, events))

		r.Put("/v1/me", handlers.EnsureMe(rs))
		r.Get("/v1/me", handlers.GetMe(rs))
		r.Post("/v1/me/bookmarks/{series_id}/toggle", handlers.ToggleBookmark(rs, events))
		r.Get("/v1/me/bookmarks", handlers.ListBookmarks(rs, cache))
		r.Post("/v1/me/history", handlers.RecordHistory(rs, events))
		r.Get("/v1/me/history", handlers.GetHistory(rs))
		r.Get("/v1/me/continue", handlers.ContinueReading(rs))
		r.Put("/v1/me/theme", handlers.SetTheme(rs))

		r.With(progressLimiter.Middleware()).Put("/v1/me/progress/{chapter_id}", handlers.UpdateProgress(rs))

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAdmin)

			r.Post("/v1/admin/series", handlers.AdminCreateSeries(cache))
			r.Delete("/v1/admin/series/{series_id}", handlers.AdminDeleteSeries(cache))
			r.Post("/v1/admin/series/{series_id}/chapters", handlers.AdminAddChapter(cache))
			r.Delete("/v1/admin/series/{series_id}/chapters/{chapter_id}", handlers.AdminDeleteChapter(cache))
			r.Patch("/v1/admin/series/{series_id}/chapters/{chapter_id}", handlers.AdminPatchChapter(cache))
		})
	})

	srv := httpserver.New(httpserver.Options{Addr: appCfg.HTTP.Addr, ServiceName: appCfg.ServiceName, Logger: log, Router: r})

	runner := run.New(log)
	code := runner.WithSignals(func(ctx context.Context) error {
		go func() {
			<-ctx.Done()
			_ = srv.Shutdown(context.Background())
		}()
		return srv.Start(log)
	})

	log.Info("exit", zap.Int("code", code))
	run.Exit(code)
}

// initGateway selects the catalog store client. Production requires the HTTP
// store; the in-process store is a development convenience only.
func initGateway(log *zap.Logger, cfg config.Config, collector *metrics.Collector) gateway.Gateway {
	if cfg.StoreURL == "" {
		if cfg.Production {
			log.Error("STORE_URL is required in production")
			_ = log.Sync()
			run.Exit(1)
		}
		log.Warn("STORE_URL not set, using in-process store (development only)")
		return gateway.NewMemory()
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "catalogstore",
		MaxRequests: 3,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state change",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return gateway.NewClient(cfg.StoreURL, gateway.ClientConfig{Token: cfg.StoreToken},
		gateway.WithCircuitBreaker(cb),
		gateway.WithLogger(log),
		gateway.WithMetrics(collector))
}

// connectNATS is best-effort outside production. Without it the portal still
// serves traffic, it just loses cross-replica invalidation and analytics.
func connectNATS(log *zap.Logger, cfg config.Config) *nats.Conn {
	nc, err := natsconn.Connect(natsconn.Options{URL: cfg.NATSURL})
	if err != nil {
		if cfg.Production {
			log.Error("nats is required in production but unavailable", zap.Error(err))
			_ = log.Sync()
			run.Exit(1)
		}
		log.Warn("nats unavailable, invalidation bus and analytics disabled", zap.Error(err))
		return nil
	}
	return nc
}
