// Package api exposes the dispersion engine over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/lexical-dispersion/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/lexical-dispersion/internal/cache"
	"github.com/Adithya-Monish-Kumar-K/lexical-dispersion/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/lexical-dispersion/internal/dispersion"
	"github.com/Adithya-Monish-Kumar-K/lexical-dispersion/internal/dispersion/batch"
	"github.com/Adithya-Monish-Kumar-K/lexical-dispersion/internal/store"
	"github.com/Adithya-Monish-Kumar-K/lexical-dispersion/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/lexical-dispersion/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/lexical-dispersion/pkg/logger"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// ReportStore persists batch and corpus results.
type ReportStore interface {
	Save(ctx context.Context, r *store.Report) error
	Get(ctx context.Context, id string) (*store.Report, error)
	List(ctx context.Context, limit int) ([]store.Summary, error)
}

// Deps are the collaborators of a Handler. Only Runner is required.
type Deps struct {
	Runner     *batch.Runner
	Cache      *cache.Cache
	Store      ReportStore
	Aggregator *analytics.Aggregator
}

type Handler struct {
	runner         *batch.Runner
	cache          *cache.Cache
	store          ReportStore
	aggregator     *analytics.Aggregator
	engine         config.EngineConfig
	defaultIndices []dispersion.Index
	logger         *slog.Logger
}

func NewHandler(cfg config.EngineConfig, deps Deps) (*Handler, error) {
	if deps.Runner == nil {
		return nil, errors.New("api handler requires a batch runner")
	}
	defaults, err := dispersion.ParseIndices(cfg.DefaultIndices)
	if err != nil {
		return nil, fmt.Errorf("default indices: %w", err)
	}
	return &Handler{
		runner:         deps.Runner,
		cache:          deps.Cache,
		store:          deps.Store,
		aggregator:     deps.Aggregator,
		engine:         cfg,
		defaultIndices: defaults,
		logger:         slog.Default().With("component", "api-handler"),
	}, nil
}

// AnalyzeWord serves POST /api/v1/dispersion.
func (h *Handler) AnalyzeWord(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req WordRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.checkParts(len(req.Sizes)); err != nil {
		h.writeError(w, r, err)
		return
	}
	explicit := len(req.Indices) > 0
	indices, err := h.indices(req.Indices)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	// The full record and the selected-values shape must not share a key.
	kind := "word"
	if !explicit {
		kind = "word:full"
	}
	words := []batch.WordInput{{Frequencies: req.Frequencies}}
	key := cache.Key(kind, req.Sizes, words, indices)
	resp, hit, err := cache.GetOrCompute(r.Context(), h.cache, key, func(context.Context) (WordResponse, error) {
		d, err := dispersion.New(req.Sizes, req.Frequencies)
		if err != nil {
			return WordResponse{}, err
		}
		out := WordResponse{}
		out.Values, out.Undefined = batch.Evaluate(d, indices)
		if !explicit {
			m := d.Metrics()
			out.Metrics = &m
			out.Summary = m.String()
		}
		return out, nil
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	resp.CacheHit = hit

	h.track(r, analytics.AnalysisEvent{
		Type:      analytics.EventWord,
		Words:     1,
		Parts:     len(req.Sizes),
		Undefined: countUndefined([]batch.Record{{Undefined: resp.Undefined}}),
		CacheHit:  hit,
	}, start)
	h.writeJSON(w, http.StatusOK, resp)
}

// AnalyzeBatch serves POST /api/v1/dispersion/batch.
func (h *Handler) AnalyzeBatch(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req BatchRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.checkLimits(len(req.Sizes), len(req.Words)); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.checkSave(req.Save); err != nil {
		h.writeError(w, r, err)
		return
	}
	indices, err := h.indices(req.Indices)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp, err := h.run(r, analytics.EventBatch, req.Sizes, req.Words, indices, req.Save, start)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// AnalyzeCorpus serves POST /api/v1/corpus/analyze.
func (h *Handler) AnalyzeCorpus(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req CorpusRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.checkParts(len(req.Parts)); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.checkSave(req.Save); err != nil {
		h.writeError(w, r, err)
		return
	}
	indices, err := h.indices(req.Indices)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	builder := corpus.NewBuilder(req.MinTokenLength)
	for i, p := range req.Parts {
		name := p.Name
		if name == "" {
			name = strconv.Itoa(i)
		}
		if err := builder.AddPart(name, p.Text); err != nil {
			h.writeError(w, r, err)
			return
		}
	}
	words := builder.Words(req.Words, req.MinFrequency)
	if len(words) > h.engine.MaxWords {
		h.writeError(w, r, apperrors.InvalidInput(
			"corpus yields %d words, limit is %d; raise min_frequency or list words explicitly", len(words), h.engine.MaxWords))
		return
	}

	resp, err := h.run(r, analytics.EventCorpus, builder.Sizes(), words, indices, req.Save, start)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	resp.Parts = builder.Parts()
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) run(r *http.Request, kind analytics.EventType, sizes []float64, words []batch.WordInput,
	indices []dispersion.Index, save bool, start time.Time) (BatchResponse, error) {
	ctx := r.Context()
	c, err := dispersion.NewCorpus(sizes)
	if err != nil {
		return BatchResponse{}, err
	}

	key := cache.Key(string(kind), sizes, words, indices)
	records, hit, err := cache.GetOrCompute(ctx, h.cache, key, func(ctx context.Context) ([]batch.Record, error) {
		return h.runner.Run(ctx, c, words, indices)
	})
	if err != nil {
		return BatchResponse{}, err
	}

	resp := BatchResponse{Indices: indices, Records: records, CacheHit: hit}
	if save {
		report := &store.Report{
			Kind:      string(kind),
			RequestID: logger.RequestID(ctx),
			Parts:     c.Len(),
			Words:     len(words),
			Indices:   indices,
			Records:   records,
		}
		if err := h.store.Save(ctx, report); err != nil {
			return BatchResponse{}, err
		}
		resp.ReportID = report.ID
	}

	var invalid int
	for _, rec := range records {
		if rec.Error != "" {
			invalid++
		}
	}
	h.track(r, analytics.AnalysisEvent{
		Type:      kind,
		Words:     len(words) - invalid,
		Invalid:   invalid,
		Parts:     c.Len(),
		Undefined: countUndefined(records),
		CacheHit:  hit,
	}, start)
	return resp, nil
}

// GetReport serves GET /api/v1/reports/{id}.
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		h.writeError(w, r, errStoreDisabled)
		return
	}
	report, err := h.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, report)
}

// ListReports serves GET /api/v1/reports?limit=N.
func (h *Handler) ListReports(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		h.writeError(w, r, errStoreDisabled)
		return
	}
	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			h.writeError(w, r, apperrors.InvalidInput("limit must be a positive integer"))
			return
		}
		limit = min(parsed, maxListLimit)
	}
	reports, err := h.store.List(r.Context(), limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"reports": reports})
}

// CacheStats serves GET /api/v1/cache/stats.
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	stats := h.cache.Stats()
	var hitRate float64
	if total := stats.Hits + stats.Misses; total > 0 {
		hitRate = float64(stats.Hits) / float64(total)
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     stats.Hits,
		"misses":   stats.Misses,
		"errors":   stats.Errors,
		"breaker":  stats.Breaker,
		"hit_rate": hitRate,
	})
}

// CacheInvalidate serves POST /api/v1/cache/invalidate.
func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, r, apperrors.New(apperrors.ErrUnavailable, http.StatusServiceUnavailable, "caching is disabled"))
		return
	}
	deleted, err := h.cache.Invalidate(r.Context())
	if err != nil {
		h.writeError(w, r, apperrors.Newf(apperrors.ErrUnavailable, http.StatusServiceUnavailable, "%v", err))
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

// Indices serves GET /api/v1/indices.
func (h *Handler) Indices(w http.ResponseWriter, r *http.Request) {
	type entry struct {
		Name    dispersion.Index `json:"name"`
		Bounded bool             `json:"bounded"`
		Default bool             `json:"default"`
	}
	entries := make([]entry, 0, len(dispersion.AllIndices()))
	for _, idx := range dispersion.AllIndices() {
		entries = append(entries, entry{Name: idx, Bounded: idx.Bounded(), Default: slices.Contains(h.defaultIndices, idx)})
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"indices": entries})
}

var errStoreDisabled = apperrors.New(apperrors.ErrUnavailable, http.StatusServiceUnavailable, "report storage is disabled")

func (h *Handler) indices(names []string) ([]dispersion.Index, error) {
	if len(names) == 0 {
		return h.defaultIndices, nil
	}
	return dispersion.ParseIndices(names)
}

func (h *Handler) checkParts(parts int) error {
	if parts > h.engine.MaxParts {
		return apperrors.InvalidInput("%d parts exceeds the limit of %d", parts, h.engine.MaxParts)
	}
	return nil
}

func (h *Handler) checkLimits(parts, words int) error {
	if err := h.checkParts(parts); err != nil {
		return err
	}
	if words > h.engine.MaxWords {
		return apperrors.InvalidInput("%d words exceeds the limit of %d", words, h.engine.MaxWords)
	}
	return nil
}

func (h *Handler) checkSave(save bool) error {
	if save && h.store == nil {
		return errStoreDisabled
	}
	return nil
}

func (h *Handler) track(r *http.Request, event analytics.AnalysisEvent, start time.Time) {
	event.Source = "http"
	event.RequestID = logger.RequestID(r.Context())
	event.Timestamp = time.Now().UTC()
	event.LatencyMs = float64(time.Since(start).Microseconds()) / 1000
	logger.FromContext(r.Context()).Info("analysis completed",
		"type", event.Type,
		"words", event.Words,
		"invalid", event.Invalid,
		"parts", event.Parts,
		"cache_hit", event.CacheHit,
		"latency_ms", event.LatencyMs,
	)
	if h.aggregator != nil {
		h.aggregator.Record(event)
	}
}

func countUndefined(records []batch.Record) map[dispersion.Index]int {
	var counts map[dispersion.Index]int
	for _, rec := range records {
		for idx := range rec.Undefined {
			if counts == nil {
				counts = make(map[dispersion.Index]int)
			}
			counts[idx]++
		}
	}
	return counts
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return apperrors.Newf(apperrors.ErrInvalidInput, http.StatusRequestEntityTooLarge,
				"request body exceeds %d bytes", maxErr.Limit)
		}
		return apperrors.InvalidInput("malformed request body: %v", err)
	}
	return nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatusCode(err)
	if errors.Is(err, context.DeadlineExceeded) {
		status = http.StatusGatewayTimeout
	}
	message := apperrors.Reason(err)
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("request failed", "path", r.URL.Path, "error", err)
		if status == http.StatusInternalServerError {
			message = "internal error"
		}
	}
	h.writeJSON(w, status, map[string]string{"error": message})
}
