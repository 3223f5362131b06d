// Package corpus turns raw corpus part texts into the inputs of the
// dispersion engine: one size per part and, for every word, its frequency in
// each part.
package corpus

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Token is a normalised term and its position within its part.
type Token struct {
	Term     string
	Position int
}

// Tokenize lower-cases text and splits it on every rune that is neither a
// letter nor a digit. Tokens shorter than minLength runes are dropped. No
// stop-word list or stemmer is applied, so the result does not depend on the
// language of the text.
func Tokenize(text string, minLength int) []Token {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := make([]Token, 0, len(words))
	for _, word := range words {
		if utf8.RuneCountInString(word) < minLength {
			continue
		}
		tokens = append(tokens, Token{
			Term:     word,
			Position: len(tokens),
		})
	}
	return tokens
}

// Normalize maps a query word onto the form Tokenize produces.
func Normalize(word string) string {
	return strings.ToLower(strings.TrimSpace(word))
}
