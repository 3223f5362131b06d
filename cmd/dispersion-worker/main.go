// Command dispersion-worker consumes batch analysis requests from Kafka and
// publishes one result per request to the results topic.
//
// Usage:
//
//	go run ./cmd/dispersion-worker [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/lexical-dispersion/internal/dispersion/batch"
	"github.com/Adithya-Monish-Kumar-K/lexical-dispersion/internal/stream"
	"github.com/Adithya-Monish-Kumar-K/lexical-dispersion/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/lexical-dispersion/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/lexical-dispersion/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/lexical-dispersion/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/lexical-dispersion/pkg/metrics"
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
	slog.Info("starting dispersion worker",
		"brokers", cfg.Kafka.Brokers,
		"requests", cfg.Kafka.Topics.AnalysisRequests,
		"results", cfg.Kafka.Topics.AnalysisResults,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.DefaultRegisterer)

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalysisResults)
	defer producer.Close()
	publisher := stream.NewBatchPublisher(producer, cfg.Kafka.BatchSize, cfg.Kafka.FlushInterval)
	publisher.Start(ctx)

	if cfg.Metrics.Enabled {
		checker := health.NewChecker()
		checker.Register("publisher", publisher.Health)
		srv := metrics.NewServer(cfg.Metrics.Port,
			metrics.Endpoint{Path: "/health", Handler: checker.LiveHandler()},
			metrics.Endpoint{Path: "/ready", Handler: checker.ReadyHandler()},
		)
		go func() {
			if err := srv.Run(ctx); err != nil {
				slog.Error("metrics server error", "error", err)
			}
		}()
	}

	worker, err := stream.NewWorker(batch.NewRunner(cfg.Engine, m), publisher, cfg.Engine)
	if err != nil {
		slog.Error("failed to create worker", "error", err)
		os.Exit(1)
	}

	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.AnalysisRequests, worker.Handler())
	if err := consumer.Start(ctx); err != nil {
		slog.Error("consumer error", "error", err)
	}

	publisher.Close()
	slog.Info("dispersion worker stopped")
}
