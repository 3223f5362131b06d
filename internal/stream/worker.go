// Package stream runs batch analyses requested over Kafka and publishes
// their records to a results topic.
package stream

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/lexical-dispersion/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/lexical-dispersion/internal/dispersion"
	"github.com/Adithya-Monish-Kumar-K/lexical-dispersion/internal/dispersion/batch"
	"github.com/Adithya-Monish-Kumar-K/lexical-dispersion/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/lexical-dispersion/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/lexical-dispersion/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/lexical-dispersion/pkg/tracing"
)

// Request is one job on the requests topic. ID is echoed on the result and
// defaults to the message key.
type Request struct {
	ID      string            `json:"id"`
	Sizes   []float64         `json:"sizes"`
	Words   []batch.WordInput `json:"words"`
	Indices []string          `json:"indices,omitempty"`
}

// Result is published for every consumed request. Error is set when the
// request as a whole was rejected; per-word problems stay in Records.
type Result struct {
	ID          string                   `json:"id"`
	Indices     []dispersion.Index       `json:"indices,omitempty"`
	Records     []batch.Record           `json:"records,omitempty"`
	Error       string                   `json:"error,omitempty"`
	Event       *analytics.AnalysisEvent `json:"event,omitempty"`
	CompletedAt time.Time                `json:"completed_at"`
}

// Sink receives results. *BatchPublisher satisfies it. A nil Deliver means
// the result is durable and the request may be committed.
type Sink interface {
	Deliver(ctx context.Context, key string, value any) error
}

type Worker struct {
	runner   *batch.Runner
	sink     Sink
	engine   config.EngineConfig
	defaults []dispersion.Index
	logger   *slog.Logger
}

func NewWorker(runner *batch.Runner, sink Sink, cfg config.EngineConfig) (*Worker, error) {
	defaults, err := dispersion.ParseIndices(cfg.DefaultIndices)
	if err != nil {
		return nil, err
	}
	return &Worker{
		runner:   runner,
		sink:     sink,
		engine:   cfg,
		defaults: defaults,
		logger:   slog.Default().With("component", "stream-worker"),
	}, nil
}

// Handler adapts the worker to the Kafka consumer.
func (w *Worker) Handler() kafka.MessageHandler {
	return w.Handle
}

// Handle processes one message. Malformed or rejected requests produce an
// error result and are committed. Cancellation and a failed delivery leave
// the message uncommitted, so results are at-least-once and consumers
// should deduplicate on Result.ID.
func (w *Worker) Handle(ctx context.Context, key []byte, value []byte) error {
	start := time.Now()
	req, err := kafka.DecodeJSON[Request](value)
	if req.ID == "" {
		req.ID = string(key)
	}
	if err != nil {
		return w.reject(ctx, req.ID, err)
	}

	ctx, span := tracing.StartSpan(ctx, "stream.request", req.ID)
	defer func() {
		span.End()
		span.Log(w.logger)
	}()

	records, indices, err := w.analyze(ctx, req)
	if err != nil {
		if batch.IsCancelled(err) {
			return err
		}
		return w.reject(ctx, req.ID, err)
	}

	event := analytics.AnalysisEvent{
		Type:      analytics.EventBatch,
		Source:    "stream",
		Parts:     len(req.Sizes),
		RequestID: req.ID,
		Timestamp: time.Now().UTC(),
		LatencyMs: float64(time.Since(start).Microseconds()) / 1000,
	}
	for _, rec := range records {
		if rec.Error != "" {
			event.Invalid++
			continue
		}
		event.Words++
		for idx := range rec.Undefined {
			if event.Undefined == nil {
				event.Undefined = make(map[dispersion.Index]int)
			}
			event.Undefined[idx]++
		}
	}

	err = w.sink.Deliver(ctx, req.ID, Result{
		ID:          req.ID,
		Indices:     indices,
		Records:     records,
		Event:       &event,
		CompletedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("delivering result %s: %w", req.ID, err)
	}
	w.logger.Info("request analysed", "id", req.ID, "words", event.Words, "invalid", event.Invalid, "parts", event.Parts)
	return nil
}

func (w *Worker) analyze(ctx context.Context, req Request) ([]batch.Record, []dispersion.Index, error) {
	if len(req.Sizes) > w.engine.MaxParts {
		return nil, nil, apperrors.InvalidInput("%d parts exceeds the limit of %d", len(req.Sizes), w.engine.MaxParts)
	}
	if len(req.Words) > w.engine.MaxWords {
		return nil, nil, apperrors.InvalidInput("%d words exceeds the limit of %d", len(req.Words), w.engine.MaxWords)
	}
	indices := w.defaults
	if len(req.Indices) > 0 {
		parsed, err := dispersion.ParseIndices(req.Indices)
		if err != nil {
			return nil, nil, err
		}
		indices = parsed
	}
	c, err := dispersion.NewCorpus(req.Sizes)
	if err != nil {
		return nil, nil, err
	}
	records, err := w.runner.Run(ctx, c, req.Words, indices)
	return records, indices, err
}

func (w *Worker) reject(ctx context.Context, id string, cause error) error {
	w.logger.Warn("request rejected", "id", id, "error", cause)
	err := w.sink.Deliver(ctx, id, Result{
		ID:          id,
		Error:       apperrors.Reason(cause),
		CompletedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("delivering rejection %s: %w", id, err)
	}
	return nil
}
