package analytics

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/lexical-dispersion/internal/dispersion"
	apperrors "github.com/Adithya-Monish-Kumar-K/lexical-dispersion/pkg/errors"
)

// Handler serves the aggregate over HTTP.
type Handler struct {
	aggregator *Aggregator
	logger     *slog.Logger
}

func NewHandler(aggregator *Aggregator) *Handler {
	return &Handler{
		aggregator: aggregator,
		logger:     slog.Default().With("component", "analytics-handler"),
	}
}

// Stats serves GET /api/v1/stats. The undefined-index breakdown can be
// narrowed with ?index=dp,kl_divergence and cut to the N most frequent with
// ?top=N.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats := h.aggregator.Stats()
	breakdown, err := narrowUndefined(stats.UndefinedByIndex, r.URL.Query().Get("index"), r.URL.Query().Get("top"))
	if err != nil {
		h.respond(w, apperrors.HTTPStatusCode(err), map[string]string{"error": apperrors.Reason(err)})
		return
	}
	stats.UndefinedByIndex = breakdown
	h.respond(w, http.StatusOK, stats)
}

// narrowUndefined keeps the order Stats produced, most frequent first.
func narrowUndefined(counts []IndexCount, indexParam, topParam string) ([]IndexCount, error) {
	if indexParam != "" {
		wanted, err := dispersion.ParseIndices(strings.Split(indexParam, ","))
		if err != nil {
			return nil, err
		}
		counts = slices.DeleteFunc(counts, func(c IndexCount) bool {
			return !slices.Contains(wanted, c.Index)
		})
	}
	if topParam != "" {
		top, err := strconv.Atoi(topParam)
		if err != nil || top < 0 {
			return nil, apperrors.InvalidInput("top must be a non-negative integer, got %q", topParam)
		}
		counts = counts[:min(top, len(counts))]
	}
	return counts, nil
}

func (h *Handler) respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("failed to write analytics response", "error", err)
	}
}
