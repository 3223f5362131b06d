package api

import (
	"github.com/Adithya-Monish-Kumar-K/lexical-dispersion/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/lexical-dispersion/internal/dispersion"
	"github.com/Adithya-Monish-Kumar-K/lexical-dispersion/internal/dispersion/batch"
)

// WordRequest analyses a single word.
type WordRequest struct {
	Sizes       []float64 `json:"sizes"`
	Frequencies []float64 `json:"frequencies"`
	Indices     []string  `json:"indices,omitempty"`
}

// WordResponse carries the requested values. Metrics holds the full record
// and is only filled when no explicit index list was requested.
type WordResponse struct {
	Values    map[dispersion.Index]float64 `json:"values"`
	Undefined map[dispersion.Index]string  `json:"undefined,omitempty"`
	Metrics   *dispersion.Metrics          `json:"metrics,omitempty"`
	Summary   string                       `json:"summary,omitempty"`
	CacheHit  bool                         `json:"cache_hit"`
}

// BatchRequest analyses many words against one set of part sizes.
type BatchRequest struct {
	Sizes   []float64         `json:"sizes"`
	Words   []batch.WordInput `json:"words"`
	Indices []string          `json:"indices,omitempty"`
	Save    bool              `json:"save,omitempty"`
}

// CorpusRequest tokenises raw part texts and analyses the given words, or
// every word reaching MinFrequency when Words is empty.
type CorpusRequest struct {
	Parts          []PartText `json:"parts"`
	Words          []string   `json:"words,omitempty"`
	MinFrequency   int        `json:"min_frequency,omitempty"`
	MinTokenLength int        `json:"min_token_length,omitempty"`
	Indices        []string   `json:"indices,omitempty"`
	Save           bool       `json:"save,omitempty"`
}

type PartText struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

// BatchResponse is returned by both the batch and corpus endpoints.
type BatchResponse struct {
	ReportID string             `json:"report_id,omitempty"`
	Parts    []corpus.Part      `json:"parts,omitempty"`
	Indices  []dispersion.Index `json:"indices"`
	Records  []batch.Record     `json:"records"`
	CacheHit bool               `json:"cache_hit"`
}
