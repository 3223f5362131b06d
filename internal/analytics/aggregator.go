// Package analytics aggregates usage of the dispersion engine: how many
// words were analysed, how often indices came out undefined, latency
// percentiles and cache effectiveness.
package analytics

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/Adithya-Monish-Kumar-K/lexical-dispersion/internal/dispersion"
	"github.com/Adithya-Monish-Kumar-K/lexical-dispersion/pkg/kafka"
)

// latencyWindow bounds the samples kept for percentiles.
const latencyWindow = 10000

type AggregatedStats struct {
	TotalRequests      int64               `json:"total_requests"`
	RequestsByType     map[EventType]int64 `json:"requests_by_type"`
	RequestsBySource   map[string]int64    `json:"requests_by_source"`
	TotalWords         int64               `json:"total_words"`
	InvalidWords       int64               `json:"invalid_words"`
	CacheHits          int64               `json:"cache_hits"`
	CacheMisses        int64               `json:"cache_misses"`
	UndefinedByIndex   []IndexCount        `json:"undefined_by_index"`
	LargestCorpusParts int                 `json:"largest_corpus_parts"`
	AvgLatencyMs       float64             `json:"avg_latency_ms"`
	P50LatencyMs       float64             `json:"p50_latency_ms"`
	P95LatencyMs       float64             `json:"p95_latency_ms"`
	P99LatencyMs       float64             `json:"p99_latency_ms"`
	RequestsPerMinute  float64             `json:"requests_per_minute"`
}

type IndexCount struct {
	Index dispersion.Index `json:"index"`
	Count int64            `json:"count"`
}

// Aggregator is safe for concurrent use.
type Aggregator struct {
	mu            sync.RWMutex
	totalRequests int64
	byType        map[EventType]int64
	bySource      map[string]int64
	totalWords    int64
	invalidWords  int64
	cacheHits     int64
	cacheMisses   int64
	undefined     map[dispersion.Index]int64
	largestParts  int
	latencies     []float64
	next          int
	startTime     time.Time

	logger *slog.Logger
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		byType:    make(map[EventType]int64),
		bySource:  make(map[string]int64),
		undefined: make(map[dispersion.Index]int64),
		latencies: make([]float64, 0, 1024),
		startTime: time.Now(),
		logger:    slog.Default().With("component", "analytics-aggregator"),
	}
}

// Consume records events from a consumer built with HandleEvent until ctx
// ends.
func (a *Aggregator) Consume(ctx context.Context, consumer *kafka.Consumer) error {
	a.logger.Info("analytics aggregator consuming results")
	return consumer.Start(ctx)
}

// HandleEvent decodes messages carrying an "event" field and records them.
// Undecodable messages are logged and committed.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		envelope, err := kafka.DecodeJSON[struct {
			Event *AnalysisEvent `json:"event"`
		}](value)
		if err != nil || envelope.Event == nil {
			agg.logger.Warn("skipping message without analysis event", "key", string(key), "error", err)
			return nil
		}
		agg.Record(*envelope.Event)
		return nil
	}
}

// Record adds one event to the aggregate.
func (a *Aggregator) Record(event AnalysisEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.totalRequests++
	a.byType[event.Type]++
	if event.Source != "" {
		a.bySource[event.Source]++
	}
	a.totalWords += int64(event.Words)
	a.invalidWords += int64(event.Invalid)
	if event.CacheHit {
		a.cacheHits++
	} else {
		a.cacheMisses++
	}
	for idx, n := range event.Undefined {
		a.undefined[idx] += int64(n)
	}
	a.largestParts = max(a.largestParts, event.Parts)

	if len(a.latencies) < latencyWindow {
		a.latencies = append(a.latencies, event.LatencyMs)
	} else {
		a.latencies[a.next] = event.LatencyMs
		a.next = (a.next + 1) % latencyWindow
	}
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		TotalRequests:      a.totalRequests,
		RequestsByType:     make(map[EventType]int64, len(a.byType)),
		RequestsBySource:   make(map[string]int64, len(a.bySource)),
		TotalWords:         a.totalWords,
		InvalidWords:       a.invalidWords,
		CacheHits:          a.cacheHits,
		CacheMisses:        a.cacheMisses,
		UndefinedByIndex:   make([]IndexCount, 0, len(a.undefined)),
		LargestCorpusParts: a.largestParts,
	}
	for k, v := range a.byType {
		stats.RequestsByType[k] = v
	}
	for k, v := range a.bySource {
		stats.RequestsBySource[k] = v
	}
	for idx, n := range a.undefined {
		stats.UndefinedByIndex = append(stats.UndefinedByIndex, IndexCount{Index: idx, Count: n})
	}
	slices.SortFunc(stats.UndefinedByIndex, func(x, y IndexCount) int {
		if c := cmp.Compare(y.Count, x.Count); c != 0 {
			return c
		}
		return cmp.Compare(x.Index, y.Index)
	})

	if len(a.latencies) > 0 {
		sorted := slices.Clone(a.latencies)
		slices.Sort(sorted)
		stats.AvgLatencyMs = floats.Sum(sorted) / float64(len(sorted))
		stats.P50LatencyMs = stat.Quantile(0.50, stat.Empirical, sorted, nil)
		stats.P95LatencyMs = stat.Quantile(0.95, stat.Empirical, sorted, nil)
		stats.P99LatencyMs = stat.Quantile(0.99, stat.Empirical, sorted, nil)
	}
	if elapsed := time.Since(a.startTime).Minutes(); elapsed > 0 {
		stats.RequestsPerMinute = float64(stats.TotalRequests) / elapsed
	}
	return stats
}
