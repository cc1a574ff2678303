package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/angeloszaimis/currency-exchange/config"
	"github.com/angeloszaimis/currency-exchange/internal/cache"
	"github.com/angeloszaimis/currency-exchange/internal/database"
	"github.com/angeloszaimis/currency-exchange/internal/exchange"
	"github.com/angeloszaimis/currency-exchange/internal/handler"
	"github.com/angeloszaimis/currency-exchange/internal/healthcheck"
	"github.com/angeloszaimis/currency-exchange/internal/httpserver"
	"github.com/angeloszaimis/currency-exchange/internal/metrics"
	"github.com/angeloszaimis/currency-exchange/internal/rediscache"
	"github.com/angeloszaimis/currency-exchange/pkg/logger"
)

const janitorInterval = 30 * time.Second

var errCircuitOpen = errors.New("cache circuit is open")

type app struct {
	log           *slog.Logger
	cfg           *config.Config
	db            *database.DB
	redis         *rediscache.Manager
	memory        *cache.MemoryManager
	caches        *cache.ResilientManager
	collector     *metrics.Collector
	prometheus    *metrics.Prometheus
	monitor       *healthcheck.Monitor
	server        *httpserver.Server
	router        *http.ServeMux
	cacheProvider string
}

func newApp(ctx context.Context, cfg *config.Config, log *slog.Logger) (*app, error) {
	a := &app{log: log, cfg: cfg}

	db, err := database.Open(ctx, database.Config{
		Driver:       cfg.Database.Driver,
		DSN:          cfg.Database.DSN,
		MaxOpenConns: cfg.Database.MaxOpenConns,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	a.db = db

	// The gauge callback only runs on scrape, after caches is set.
	a.prometheus, err = metrics.NewPrometheus(logger.ServiceName, func() bool {
		return a.caches.Breaker().IsOpen()
	})
	if err != nil {
		a.close()
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}
	a.collector = metrics.NewCollector(cfg.Metrics.BufferSize, log, metrics.WithRecorder(a.prometheus))

	store := a.cacheStore()
	a.caches = cache.NewResilientManager(store,
		cache.WithRetryInterval(config.Duration(cfg.Cache.RetryInterval)),
		cache.WithLogger(log),
		cache.WithObserver(a.collector),
	)

	svc, err := exchange.NewService(exchange.NewSQLRepository(db), a.caches, log)
	if err != nil {
		a.close()
		return nil, err
	}

	a.monitor = healthcheck.NewMonitor(config.Duration(cfg.HealthCheck.Interval), log, a.probes()...)

	mux := http.NewServeMux()
	a.server, err = httpserver.New(cfg.Server.Address, mux,
		httpserver.WithReadTimeout(config.Duration(cfg.Server.ReadTimeout)),
		httpserver.WithWriteTimeout(config.Duration(cfg.Server.WriteTimeout)),
		httpserver.WithShutdownTimeout(config.Duration(cfg.Server.ShutdownTimeout)),
	)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("create server: %w", err)
	}

	exchangeHandler := handler.NewExchangeHandler(log, svc, a.server.Port())
	a.router = setupRouter(mux, exchangeHandler, handler.NewRequestLogger(log, a.collector), a)

	return a, nil
}

func (a *app) cacheStore() cache.Manager {
	cc := a.cfg.Cache
	if !cc.Enabled {
		a.cacheProvider = "none"
		return cache.NewNoOpManager()
	}

	ttl := config.Duration(cc.TTL)
	switch cc.Provider {
	case config.CacheProviderMemory:
		a.cacheProvider = config.CacheProviderMemory
		a.memory = cache.NewMemoryManager(
			cache.WithTTL(ttl),
			cache.WithTimeToIdle(cc.TimeToIdle),
			cache.WithCacheNames(exchange.CacheName),
		)
		return a.memory
	default:
		a.cacheProvider = config.CacheProviderRedis
		client := rediscache.NewClient(cc.Redis.Address, cc.Redis.Password, cc.Redis.DB,
			config.Duration(cc.OperationTimeout))
		a.redis = rediscache.NewManager(client,
			rediscache.WithPrefix(cc.Prefix),
			rediscache.WithTTL(ttl),
			rediscache.WithTimeToIdle(cc.TimeToIdle),
			rediscache.WithOperationTimeout(config.Duration(cc.OperationTimeout)),
			rediscache.WithCacheNames(exchange.CacheName),
		)
		return a.redis
	}
}

func (a *app) probes() []healthcheck.Probe {
	probes := []healthcheck.Probe{
		{Name: "database", Critical: true, Check: a.db.Ping},
		{Name: "cache_circuit", Check: func(context.Context) error {
			if a.caches.Breaker().IsOpen() {
				return errCircuitOpen
			}
			return nil
		}},
	}
	if a.redis != nil {
		probes = append(probes, healthcheck.Probe{Name: "cache", Check: a.redis.Ping})
	}

	return probes
}

func (a *app) circuitState() string {
	return a.caches.Breaker().State().String()
}

// run blocks until ctx is cancelled or a component fails.
func (a *app) run(ctx context.Context) error {
	defer a.close()

	a.collector.Start(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.server.Run(gctx)
	})
	g.Go(func() error {
		a.monitor.Run(gctx)
		return nil
	})
	if a.memory != nil {
		g.Go(func() error {
			a.memory.Run(gctx, janitorInterval)
			return nil
		})
	}

	err := g.Wait()
	<-a.collector.Done()

	return err
}

func (a *app) close() {
	if a.prometheus != nil {
		if err := a.prometheus.Shutdown(context.Background()); err != nil {
			a.log.Warn("Failed to shut down prometheus exporter", slog.Any("err", err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Client().Close(); err != nil {
			a.log.Warn("Failed to close redis client", slog.Any("err", err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Warn("Failed to close database", slog.Any("err", err))
		}
	}
}
