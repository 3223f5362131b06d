// Command dispersiond serves the dispersion engine over HTTP.
//
// Redis result caching and Postgres report storage are optional and enabled
// in the config; when Kafka result consumption is enabled, analyses done by
// dispersion-worker are folded into GET /api/v1/stats as well.
//
// Usage:
//
//	go run ./cmd/dispersiond [-config configs/development.yaml]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/lexical-dispersion/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/lexical-dispersion/internal/api"
	"github.com/Adithya-Monish-Kumar-K/lexical-dispersion/internal/cache"
	"github.com/Adithya-Monish-Kumar-K/lexical-dispersion/internal/dispersion/batch"
	"github.com/Adithya-Monish-Kumar-K/lexical-dispersion/internal/store"
	"github.com/Adithya-Monish-Kumar-K/lexical-dispersion/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/lexical-dispersion/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/lexical-dispersion/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/lexical-dispersion/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/lexical-dispersion/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/lexical-dispersion/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/lexical-dispersion/pkg/redis"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting dispersion service", "port", cfg.Server.Port, "workers", cfg.Engine.Workers)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.DefaultRegisterer)
	if cfg.Metrics.Enabled {
		go func() {
			if err := metrics.NewServer(cfg.Metrics.Port).Run(ctx); err != nil {
				slog.Error("metrics server error", "error", err)
			}
		}()
	}

	checker := health.NewChecker()
	checker.Register("engine", health.Static(health.StatusUp, fmt.Sprintf("%d workers", cfg.Engine.Workers)))

	deps := api.Deps{
		Runner:     batch.NewRunner(cfg.Engine, m),
		Aggregator: analytics.NewAggregator(),
	}

	if cfg.Redis.Enabled {
		redisClient, err := pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, result caching disabled", "error", err)
			checker.Register("redis", health.Static(health.StatusDegraded, "unreachable at startup"))
		} else {
			defer redisClient.Close()
			deps.Cache = cache.New(redisClient, cfg.Redis, m)
			checker.Register("redis", health.Ping(redisClient.Ping, false))
			slog.Info("result cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	if cfg.Postgres.Enabled {
		db, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		reports := store.New(db, m)
		if err := reports.Migrate(ctx); err != nil {
			slog.Error("failed to migrate report schema", "error", err)
			os.Exit(1)
		}
		deps.Store = reports
		checker.Register("postgres", health.Ping(db.Ping, true))
		slog.Info("report store enabled", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
	}

	if cfg.Kafka.ConsumeResults {
		kcfg := cfg.Kafka
		kcfg.ConsumerGroup = cfg.Kafka.ResultsGroup
		consumer := kafka.NewConsumer(kcfg, cfg.Kafka.Topics.AnalysisResults, analytics.HandleEvent(deps.Aggregator))
		go func() {
			if err := deps.Aggregator.Consume(ctx, consumer); err != nil {
				slog.Error("results consumer error", "error", err)
			}
		}()
		slog.Info("consuming worker results", "topic", cfg.Kafka.Topics.AnalysisResults, "group", kcfg.ConsumerGroup)
	}

	h, err := api.NewHandler(cfg.Engine, deps)
	if err != nil {
		slog.Error("failed to create handler", "error", err)
		os.Exit(1)
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      api.NewRouter(h, analytics.NewHandler(deps.Aggregator), checker, m, cfg.Server),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("dispersion service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("dispersion service stopped")
}
