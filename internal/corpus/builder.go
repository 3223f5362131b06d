package corpus

import (
	"cmp"
	"slices"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/lexical-dispersion/internal/dispersion"
	"github.com/Adithya-Monish-Kumar-K/lexical-dispersion/internal/dispersion/batch"
	apperrors "github.com/Adithya-Monish-Kumar-K/lexical-dispersion/pkg/errors"
)

// Part is one corpus part and its size in tokens.
type Part struct {
	Name   string `json:"name"`
	Tokens int    `json:"tokens"`
}

// TermCount is a vocabulary entry.
type TermCount struct {
	Term  string `json:"term"`
	Total int    `json:"total"`
	Parts int    `json:"parts"`
}

// Builder accumulates per-part term counts. It is safe for concurrent use.
type Builder struct {
	mu        sync.RWMutex
	parts     []Part
	counts    map[string]map[int]int
	minLength int
}

// NewBuilder creates an empty Builder. Tokens shorter than minTokenLength
// runes are ignored.
func NewBuilder(minTokenLength int) *Builder {
	return &Builder{
		counts:    make(map[string]map[int]int),
		minLength: max(minTokenLength, 1),
	}
}

// AddPart tokenises text as the next corpus part. A part without any token
// would have size zero and is rejected.
func (b *Builder) AddPart(name, text string) error {
	tokens := Tokenize(text, b.minLength)
	if len(tokens) == 0 {
		return apperrors.InvalidInput("part %q contains no tokens", name)
	}

	termData := make(map[string]int)
	for _, token := range tokens {
		termData[token.Term]++
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	partID := len(b.parts)
	for term, freq := range termData {
		if _, exists := b.counts[term]; !exists {
			b.counts[term] = make(map[int]int)
		}
		b.counts[term][partID] = freq
	}
	b.parts = append(b.parts, Part{Name: name, Tokens: len(tokens)})
	return nil
}

func (b *Builder) Parts() []Part {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Clone(b.parts)
}

// Sizes returns the token count of every part, in insertion order.
func (b *Builder) Sizes() []float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	sizes := make([]float64, len(b.parts))
	for i, p := range b.parts {
		sizes[i] = float64(p.Tokens)
	}
	return sizes
}

// Frequencies returns word's count in every part. Unknown words yield zeros.
func (b *Builder) Frequencies(word string) []float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.frequenciesLocked(Normalize(word))
}

func (b *Builder) frequenciesLocked(term string) []float64 {
	freqs := make([]float64, len(b.parts))
	for partID, freq := range b.counts[term] {
		freqs[partID] = float64(freq)
	}
	return freqs
}

// Vocabulary lists terms occurring at least minTotal times, most frequent
// first, ties broken alphabetically.
func (b *Builder) Vocabulary(minTotal int) []TermCount {
	b.mu.RLock()
	defer b.mu.RUnlock()
	entries := make([]TermCount, 0, len(b.counts))
	for term, parts := range b.counts {
		var total int
		for _, freq := range parts {
			total += freq
		}
		if total < minTotal {
			continue
		}
		entries = append(entries, TermCount{Term: term, Total: total, Parts: len(parts)})
	}
	slices.SortFunc(entries, func(a, b TermCount) int {
		if c := cmp.Compare(b.Total, a.Total); c != 0 {
			return c
		}
		return cmp.Compare(a.Term, b.Term)
	})
	return entries
}

// Words builds batch inputs for the given words, or for the whole
// vocabulary filtered by minTotal when words is empty.
func (b *Builder) Words(words []string, minTotal int) []batch.WordInput {
	if len(words) == 0 {
		vocab := b.Vocabulary(minTotal)
		words = make([]string, len(vocab))
		for i, entry := range vocab {
			words[i] = entry.Term
		}
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	inputs := make([]batch.WordInput, len(words))
	for i, word := range words {
		inputs[i] = batch.WordInput{
			Word:        word,
			Frequencies: b.frequenciesLocked(Normalize(word)),
		}
	}
	return inputs
}

// Corpus returns the shared part-size structure for the parts added so far.
func (b *Builder) Corpus() (*dispersion.Corpus, error) {
	return dispersion.NewCorpus(b.Sizes())
}

// Reset drops every part and count.
func (b *Builder) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.parts = nil
	b.counts = make(map[string]map[int]int)
}
