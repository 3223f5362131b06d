package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/lexical-dispersion/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/lexical-dispersion/internal/cache"
	"github.com/Adithya-Monish-Kumar-K/lexical-dispersion/internal/dispersion"
	"github.com/Adithya-Monish-Kumar-K/lexical-dispersion/internal/dispersion/batch"
	"github.com/Adithya-Monish-Kumar-K/lexical-dispersion/internal/store"
	"github.com/Adithya-Monish-Kumar-K/lexical-dispersion/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/lexical-dispersion/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/lexical-dispersion/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/lexical-dispersion/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/lexical-dispersion/pkg/redis"
)

type memoryStore struct {
	mu      sync.Mutex
	reports map[string]*store.Report
	order   []string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{reports: make(map[string]*store.Report)}
}

func (s *memoryStore) Save(_ context.Context, r *store.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.ID = "report-" + string(rune('a'+len(s.order)))
	r.CreatedAt = time.Now().UTC()
	s.reports[r.ID] = r
	s.order = append(s.order, r.ID)
	return nil
}

func (s *memoryStore) Get(_ context.Context, id string) (*store.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[id]
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrNotFound, http.StatusNotFound, "report %q not found", id)
	}
	return r, nil
}

func (s *memoryStore) List(_ context.Context, limit int) ([]store.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.Summary, 0, limit)
	for i := len(s.order) - 1; i >= 0 && len(out) < limit; i-- {
		r := s.reports[s.order[i]]
		out = append(out, store.Summary{ID: r.ID, Kind: r.Kind, Parts: r.Parts, Words: r.Words, CreatedAt: r.CreatedAt})
	}
	return out, nil
}

type fixture struct {
	server     http.Handler
	aggregator *analytics.Aggregator
	store      *memoryStore
}

type option func(*config.Config, *Deps)

func withoutStore() option {
	return func(_ *config.Config, d *Deps) { d.Store = nil }
}

func newFixture(t *testing.T, opts ...option) fixture {
	t.Helper()
	cfg := config.Default()
	cfg.Engine.MaxWords = 3
	cfg.Engine.MaxParts = 10
	cfg.Server.MaxBodyBytes = 4096

	m := metrics.New(prometheus.NewRegistry())
	ms := newMemoryStore()
	agg := analytics.NewAggregator()
	deps := Deps{
		Runner:     batch.NewRunner(cfg.Engine, m),
		Store:      ms,
		Aggregator: agg,
	}
	for _, opt := range opts {
		opt(cfg, &deps)
	}
	h, err := NewHandler(cfg.Engine, deps)
	require.NoError(t, err)

	checker := health.NewChecker()
	checker.Register("engine", health.Static(health.StatusUp, ""))
	return fixture{
		server:     NewRouter(h, analytics.NewHandler(agg), checker, m, cfg.Server),
		aggregator: agg,
		store:      ms,
	}
}

func (f fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestAnalyzeWordFullRecord(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/v1/dispersion", WordRequest{
		Sizes:       []float64{100, 100, 100, 100},
		Frequencies: []float64{5, 5, 5, 5},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	resp := decodeBody[WordResponse](t, rec)
	require.NotNil(t, resp.Metrics)
	assert.Equal(t, 3, resp.Metrics.Range)
	require.NotNil(t, resp.Metrics.DP)
	assert.InDelta(t, 0, *resp.Metrics.DP, 1e-12)
	assert.Len(t, resp.Values, len(dispersion.AllIndices()))
	assert.True(t, strings.HasPrefix(resp.Summary, "Metrics(range=3"))
	assert.False(t, resp.CacheHit)
}

func TestAnalyzeWordSelectedIndices(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/v1/dispersion", WordRequest{
		Sizes:       []float64{1, 2, 3},
		Frequencies: []float64{0, 0, 0},
		Indices:     []string{"DP", " hellinger_dispersion "},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decodeBody[WordResponse](t, rec)
	assert.Nil(t, resp.Metrics)
	assert.Contains(t, resp.Values, dispersion.IndexHellinger)
	assert.NotContains(t, resp.Values, dispersion.IndexDP)
	assert.Contains(t, resp.Undefined, dispersion.IndexDP)
}

func TestAnalyzeWordRejectsBadInput(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	tests := []struct {
		name    string
		body    any
		status  int
		message string
	}{
		{"length mismatch", WordRequest{Sizes: []float64{1, 2}, Frequencies: []float64{1}}, 400, "got 2 sizes and 1 frequencies"},
		{"single part", WordRequest{Sizes: []float64{1}, Frequencies: []float64{1}}, 400, "at least 2 parts"},
		{"zero size", WordRequest{Sizes: []float64{1, 0}, Frequencies: []float64{1, 0}}, 400, "must be positive"},
		{"negative frequency", WordRequest{Sizes: []float64{1, 1}, Frequencies: []float64{1, -1}}, 400, "must not be negative"},
		{"unknown index", WordRequest{Sizes: []float64{1, 1}, Frequencies: []float64{1, 1}, Indices: []string{"gini"}}, 400, `unknown index "gini"`},
		{"too many parts", WordRequest{Sizes: make([]float64, 11), Frequencies: make([]float64, 11)}, 400, "exceeds the limit of 10"},
		{"malformed", `{"sizes": [1,`, 400, "malformed request body"},
		{"unknown field", `{"sizes":[1,1],"frequencies":[1,1],"extra":1}`, 400, "malformed request body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/api/v1/dispersion", tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, decodeBody[map[string]string](t, rec)["error"], tt.message)
		})
	}
}

func TestBodyTooLarge(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	huge := `{"sizes":[` + strings.Repeat("1,", 4096) + `1],"frequencies":[]}`
	rec := f.do(t, http.MethodPost, "/api/v1/dispersion", huge)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestAnalyzeBatchSaved(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/v1/dispersion/batch", BatchRequest{
		Sizes: []float64{10, 20, 30},
		Words: []batch.WordInput{
			{Word: "common", Frequencies: []float64{1, 2, 3}},
			{Word: "broken", Frequencies: []float64{1, 2}},
			{Word: "rare", Frequencies: []float64{0, 0, 4}},
		},
		Indices: []string{"range", "dp"},
		Save:    true,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decodeBody[BatchResponse](t, rec)
	assert.Equal(t, "report-a", resp.ReportID)
	assert.Equal(t, []dispersion.Index{dispersion.IndexRange, dispersion.IndexDP}, resp.Indices)
	require.Len(t, resp.Records, 3)
	assert.Equal(t, "common", resp.Records[0].Word)
	assert.InDelta(t, 0, resp.Records[0].Values[dispersion.IndexDP], 1e-12)
	assert.NotEmpty(t, resp.Records[1].Error)
	assert.InDelta(t, 0, resp.Records[2].Values[dispersion.IndexRange], 0)

	saved, err := f.store.Get(context.Background(), "report-a")
	require.NoError(t, err)
	assert.Equal(t, "batch", saved.Kind)
	assert.Equal(t, 3, saved.Words)
	assert.NotEmpty(t, saved.RequestID)

	stats := f.aggregator.Stats()
	assert.EqualValues(t, 2, stats.TotalWords)
	assert.EqualValues(t, 1, stats.InvalidWords)
}

func TestAnalyzeBatchLimits(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	words := make([]batch.WordInput, 4)
	for i := range words {
		words[i] = batch.WordInput{Frequencies: []float64{1, 1}}
	}
	rec := f.do(t, http.MethodPost, "/api/v1/dispersion/batch", BatchRequest{Sizes: []float64{1, 1}, Words: words})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/dispersion/batch", BatchRequest{Sizes: []float64{1}, Words: words[:1]})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSaveWithoutStore(t *testing.T) {
	t.Parallel()

	f := newFixture(t, withoutStore())
	rec := f.do(t, http.MethodPost, "/api/v1/dispersion/batch", BatchRequest{
		Sizes: []float64{1, 1},
		Words: []batch.WordInput{{Frequencies: []float64{1, 1}}},
		Save:  true,
	})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/reports", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAnalyzeCorpus(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/v1/corpus/analyze", CorpusRequest{
		Parts: []PartText{
			{Name: "one", Text: "The cat sat. The cat ran."},
			{Text: "A dog barked at the cat."},
			{Name: "three", Text: "Nothing relevant here at all."},
		},
		Words:   []string{"cat", "Dog"},
		Indices: []string{"range", "pervasiveness_pt"},
		Save:    true,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decodeBody[BatchResponse](t, rec)
	require.Len(t, resp.Parts, 3)
	assert.Equal(t, "1", resp.Parts[1].Name)
	assert.Equal(t, 6, resp.Parts[0].Tokens)
	require.Len(t, resp.Records, 2)
	assert.InDelta(t, 1, resp.Records[0].Values[dispersion.IndexRange], 0)
	assert.InDelta(t, 2.0/3, resp.Records[0].Values[dispersion.IndexPervasiveness], 1e-12)
	assert.InDelta(t, 1.0/3, resp.Records[1].Values[dispersion.IndexPervasiveness], 1e-12)
	assert.NotEmpty(t, resp.ReportID)
}

func TestAnalyzeCorpusVocabularyTooLarge(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/v1/corpus/analyze", CorpusRequest{
		Parts: []PartText{{Text: "alpha beta gamma delta"}, {Text: "alpha beta"}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody[map[string]string](t, rec)["error"], "raise min_frequency")

	rec = f.do(t, http.MethodPost, "/api/v1/corpus/analyze", CorpusRequest{
		Parts:        []PartText{{Text: "alpha beta gamma delta"}, {Text: "alpha beta"}},
		MinFrequency: 2,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, decodeBody[BatchResponse](t, rec).Records, 2)
}

func TestAnalyzeCorpusEmptyPart(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/v1/corpus/analyze", CorpusRequest{
		Parts: []PartText{{Name: "a", Text: "words here"}, {Name: "b", Text: "!!!"}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody[map[string]string](t, rec)["error"], `part "b" contains no tokens`)
}

func TestReports(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	for range 3 {
		rec := f.do(t, http.MethodPost, "/api/v1/dispersion/batch", BatchRequest{
			Sizes: []float64{1, 1},
			Words: []batch.WordInput{{Word: "x", Frequencies: []float64{1, 0}}},
			Save:  true,
		})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := f.do(t, http.MethodGet, "/api/v1/reports?limit=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[struct {
		Reports []store.Summary `json:"reports"`
	}](t, rec)
	require.Len(t, list.Reports, 2)
	assert.Equal(t, "report-c", list.Reports[0].ID)

	rec = f.do(t, http.MethodGet, "/api/v1/reports/report-b", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "report-b", decodeBody[store.Report](t, rec).ID)

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/v1/reports/missing", nil).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/v1/reports?limit=zero", nil).Code)
}

func TestStatsAndIndices(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.do(t, http.MethodPost, "/api/v1/dispersion", WordRequest{Sizes: []float64{1, 1}, Frequencies: []float64{0, 0}})

	stats := decodeBody[analytics.AggregatedStats](t, f.do(t, http.MethodGet, "/api/v1/stats", nil))
	assert.EqualValues(t, 1, stats.TotalRequests)
	assert.EqualValues(t, 1, stats.RequestsBySource["http"])
	assert.NotEmpty(t, stats.UndefinedByIndex)

	catalogue := decodeBody[struct {
		Indices []struct {
			Name    string `json:"name"`
			Bounded bool   `json:"bounded"`
		} `json:"indices"`
	}](t, f.do(t, http.MethodGet, "/api/v1/indices", nil))
	assert.Len(t, catalogue.Indices, len(dispersion.AllIndices()))

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/health/ready", nil).Code)
	assert.JSONEq(t, `{"status":"disabled"}`, f.do(t, http.MethodGet, "/api/v1/cache/stats", nil).Body.String())
	assert.Equal(t, http.StatusServiceUnavailable, f.do(t, http.MethodPost, "/api/v1/cache/invalidate", nil).Code)
}

func TestRateLimitedRoutes(t *testing.T) {
	t.Parallel()

	f := newFixture(t, func(cfg *config.Config, _ *Deps) {
		cfg.Server.RateLimit = 1
		cfg.Server.RateWindow = time.Hour
	})
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/v1/indices", nil).Code)
	rec := f.do(t, http.MethodGet, "/api/v1/indices", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/health/live", nil).Code)
}

func TestCachedResponses(t *testing.T) {
	mr := miniredis.RunT(t)
	redisCfg := config.RedisConfig{Addr: mr.Addr(), CacheTTL: time.Minute}
	client, err := pkgredis.NewClient(context.Background(), redisCfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	f := newFixture(t, func(_ *config.Config, d *Deps) {
		d.Cache = cache.New(client, redisCfg, nil)
	})
	body := BatchRequest{Sizes: []float64{3, 4}, Words: []batch.WordInput{{Word: "w", Frequencies: []float64{1, 2}}}}

	first := decodeBody[BatchResponse](t, f.do(t, http.MethodPost, "/api/v1/dispersion/batch", body))
	second := decodeBody[BatchResponse](t, f.do(t, http.MethodPost, "/api/v1/dispersion/batch", body))
	assert.False(t, first.CacheHit)
	assert.True(t, second.CacheHit)
	assert.Equal(t, first.Records, second.Records)

	word := WordRequest{Sizes: []float64{3, 4}, Frequencies: []float64{1, 2}}
	f.do(t, http.MethodPost, "/api/v1/dispersion", word)
	assert.True(t, decodeBody[WordResponse](t, f.do(t, http.MethodPost, "/api/v1/dispersion", word)).CacheHit)

	rec := f.do(t, http.MethodPost, "/api/v1/cache/invalidate", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.InDelta(t, 2, decodeBody[map[string]any](t, rec)["keys_deleted"], 0)

	stats := decodeBody[map[string]any](t, f.do(t, http.MethodGet, "/api/v1/cache/stats", nil))
	assert.Equal(t, "closed", stats["breaker"])
	assert.InDelta(t, 2, stats["hits"], 0)
}

func TestWordCacheKeepsResponseShape(t *testing.T) {
	mr := miniredis.RunT(t)
	redisCfg := config.RedisConfig{Addr: mr.Addr(), CacheTTL: time.Minute}
	client, err := pkgredis.NewClient(context.Background(), redisCfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	f := newFixture(t, func(_ *config.Config, d *Deps) {
		d.Cache = cache.New(client, redisCfg, nil)
	})
	all := make([]string, 0, len(dispersion.AllIndices()))
	for _, idx := range dispersion.AllIndices() {
		all = append(all, idx.String())
	}

	full := decodeBody[WordResponse](t, f.do(t, http.MethodPost, "/api/v1/dispersion",
		WordRequest{Sizes: []float64{2, 2}, Frequencies: []float64{1, 0}}))
	require.NotNil(t, full.Metrics)
	assert.False(t, full.CacheHit)

	selected := decodeBody[WordResponse](t, f.do(t, http.MethodPost, "/api/v1/dispersion",
		WordRequest{Sizes: []float64{2, 2}, Frequencies: []float64{1, 0}, Indices: all}))
	assert.False(t, selected.CacheHit)
	assert.Nil(t, selected.Metrics)
	assert.Empty(t, selected.Summary)
	assert.Equal(t, full.Values, selected.Values)

	again := decodeBody[WordResponse](t, f.do(t, http.MethodPost, "/api/v1/dispersion",
		WordRequest{Sizes: []float64{2, 2}, Frequencies: []float64{1, 0}}))
	assert.True(t, again.CacheHit)
	require.NotNil(t, again.Metrics)
	assert.Equal(t, full.Summary, again.Summary)
}
