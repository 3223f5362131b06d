package api

import (
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/lexical-dispersion/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/lexical-dispersion/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/lexical-dispersion/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/lexical-dispersion/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/lexical-dispersion/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/lexical-dispersion/pkg/ratelimit"
)

// NewRouter builds the service's HTTP handler.
//
// Route table:
//
//	POST /api/v1/dispersion          → one word
//	POST /api/v1/dispersion/batch    → many words, shared part sizes
//	POST /api/v1/corpus/analyze      → raw part texts
//	GET  /api/v1/indices             → index catalogue
//	GET  /api/v1/reports             → saved report summaries
//	GET  /api/v1/reports/{id}        → one saved report
//	GET  /api/v1/stats               → usage analytics
//	GET  /api/v1/cache/stats         → result cache counters
//	POST /api/v1/cache/invalidate    → drop cached results
//	GET  /health/live, /health/ready → probes
//
// Middleware chain (outermost first):
//
//	RequestID → CORS → Metrics → RateLimit → Timeout → body limit → mux
//
// m may be nil, which drops the metrics middleware. RateLimit is only
// installed when cfg.RateLimit is positive.
func NewRouter(h *Handler, stats *analytics.Handler, checker *health.Checker, m *metrics.Metrics, cfg config.ServerConfig) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/dispersion", h.AnalyzeWord)
	mux.HandleFunc("POST /api/v1/dispersion/batch", h.AnalyzeBatch)
	mux.HandleFunc("POST /api/v1/corpus/analyze", h.AnalyzeCorpus)
	mux.HandleFunc("GET /api/v1/indices", h.Indices)

	mux.HandleFunc("GET /api/v1/reports", h.ListReports)
	mux.HandleFunc("GET /api/v1/reports/{id}", h.GetReport)

	mux.HandleFunc("GET /api/v1/stats", stats.Stats)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)

	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = limitBody(cfg.MaxBodyBytes)(chain)
	if cfg.RequestTimeout > 0 {
		chain = middleware.Timeout(cfg.RequestTimeout)(chain)
	}
	if cfg.RateLimit > 0 {
		chain = middleware.RateLimit(ratelimit.New(cfg.RateLimit, cfg.RateWindow))(chain)
	}
	if m != nil {
		chain = middleware.Metrics(m)(chain)
	}
	chain = middleware.CORS(middleware.DefaultCORSConfig())(chain)
	chain = middleware.RequestID(chain)
	return chain
}

func limitBody(n int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if n > 0 && r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, n)
			}
			next.ServeHTTP(w, r)
		})
	}
}
