package analytics

import (
	"time"

	"github.com/Adithya-Monish-Kumar-K/lexical-dispersion/internal/dispersion"
)

type EventType string

const (
	EventWord   EventType = "word"
	EventBatch  EventType = "batch"
	EventCorpus EventType = "corpus"
)

// AnalysisEvent describes one completed analysis, whether it was served over
// HTTP or by the stream worker.
type AnalysisEvent struct {
	Type      EventType                `json:"type"`
	Source    string                   `json:"source"`
	Words     int                      `json:"words"`
	Invalid   int                      `json:"invalid"`
	Parts     int                      `json:"parts"`
	Undefined map[dispersion.Index]int `json:"undefined,omitempty"`
	LatencyMs float64                  `json:"latency_ms"`
	CacheHit  bool                     `json:"cache_hit"`
	RequestID string                   `json:"request_id,omitempty"`
	Timestamp time.Time                `json:"timestamp"`
}
