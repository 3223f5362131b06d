// Package batch runs the dispersion pipeline for many words that share one
// corpus. Words are analysed in parallel; the indices of a single word are
// evaluated sequentially because they share that word's lazily derived
// statistics.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/lexical-dispersion/internal/dispersion"
	"github.com/Adithya-Monish-Kumar-K/lexical-dispersion/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/lexical-dispersion/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/lexical-dispersion/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/lexical-dispersion/pkg/tracing"
)

// WordInput is one word's frequencies, aligned with the batch corpus.
type WordInput struct {
	Word        string    `json:"word"`
	Frequencies []float64 `json:"frequencies"`
}

// Record is the result for one input word. Indices that could not be formed
// are absent from Values and explained in Undefined. Error is set, and both
// maps are empty, when the word's frequencies were rejected.
type Record struct {
	Position  int                          `json:"position"`
	Word      string                       `json:"word,omitempty"`
	Values    map[dispersion.Index]float64 `json:"values"`
	Undefined map[dispersion.Index]string  `json:"undefined,omitempty"`
	Error     string                       `json:"error,omitempty"`
}

// Value returns the value of idx and whether it is defined.
func (r Record) Value(idx dispersion.Index) (float64, bool) {
	v, ok := r.Values[idx]
	return v, ok
}

// Runner dispatches words over a bounded worker pool.
type Runner struct {
	workers int
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewRunner builds a Runner. m may be nil.
func NewRunner(cfg config.EngineConfig, m *metrics.Metrics) *Runner {
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Runner{
		workers: workers,
		metrics: m,
		logger:  slog.Default().With("component", "batch-runner"),
	}
}

// Run analyses words against corpus and returns one record per word, in
// input order. An empty indices list selects every index. Data errors are
// reported inside records; Run itself only fails when ctx is cancelled.
func (r *Runner) Run(ctx context.Context, corpus *dispersion.Corpus, words []WordInput, indices []dispersion.Index) ([]Record, error) {
	if corpus == nil {
		return nil, apperrors.InvalidInput("batch has no corpus")
	}
	if len(indices) == 0 {
		indices = dispersion.AllIndices()
	}
	ctx, span := tracing.StartChildSpan(ctx, "analysis.batch")
	defer span.End()
	span.SetAttr("words", len(words))
	span.SetAttr("parts", corpus.Len())

	start := time.Now()
	records := make([]Record, len(words))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i, w := range words {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			records[i] = analyze(corpus, i, w, indices)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("batch cancelled: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("batch cancelled: %w", err)
	}

	elapsed := time.Since(start)
	r.observe(corpus, records, elapsed)
	r.logger.Debug("batch analysed",
		"words", len(words),
		"parts", corpus.Len(),
		"indices", len(indices),
		"workers", r.workers,
		"duration", elapsed,
	)
	return records, nil
}

// Evaluate computes the requested indices for one distribution.
func Evaluate(d *dispersion.WordDistribution, indices []dispersion.Index) (map[dispersion.Index]float64, map[dispersion.Index]string) {
	values := make(map[dispersion.Index]float64, len(indices))
	var undefined map[dispersion.Index]string
	for _, idx := range indices {
		v, err := d.Compute(idx)
		if err != nil {
			if undefined == nil {
				undefined = make(map[dispersion.Index]string)
			}
			undefined[idx] = apperrors.Reason(err)
			continue
		}
		values[idx] = v
	}
	return values, undefined
}

func analyze(corpus *dispersion.Corpus, position int, w WordInput, indices []dispersion.Index) Record {
	rec := Record{Position: position, Word: w.Word}
	d, err := corpus.Word(w.Frequencies)
	if err != nil {
		rec.Values = map[dispersion.Index]float64{}
		rec.Error = apperrors.Reason(err)
		return rec
	}
	rec.Values, rec.Undefined = Evaluate(d, indices)
	return rec
}

func (r *Runner) observe(corpus *dispersion.Corpus, records []Record, elapsed time.Duration) {
	if r.metrics == nil {
		return
	}
	r.metrics.BatchDuration.Observe(elapsed.Seconds())
	r.metrics.BatchSize.Observe(float64(len(records)))
	r.metrics.CorpusParts.Observe(float64(corpus.Len()))
	for _, rec := range records {
		if rec.Error != "" {
			r.metrics.InvalidWordsTotal.Inc()
			continue
		}
		r.metrics.WordsAnalyzedTotal.Inc()
		for idx := range rec.Undefined {
			r.metrics.UndefinedTotal.WithLabelValues(idx.String()).Inc()
		}
	}
}

// IsCancelled reports whether err came from a cancelled or expired batch.
func IsCancelled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
