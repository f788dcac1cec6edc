// Package hashing provides an offline embedder based on feature hashing.
package hashing

import (
	"context"
	"hash/fnv"
	"math"
	"regexp"
	"strings"
)

// DefaultDimension is used when no dimension is configured.
const DefaultDimension = 512

// Embedder hashes lowercase word tokens into a fixed number of buckets and
// L2-normalizes the counts. It needs no corpus preparation, so vectors from
// separate runs are comparable.
type Embedder struct {
	dimension    int
	tokenPattern *regexp.Regexp
	stopwords    map[string]struct{}
}

// NewEmbedder creates a hashing embedder producing vectors of dimension size.
func NewEmbedder(dimension int) *Embedder {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &Embedder{
		dimension:    dimension,
		tokenPattern: regexp.MustCompile(`[\p{L}\p{N}]+(?:['’][\p{L}\p{N}]+)*`),
		stopwords:    defaultStopwords(),
	}
}

func (e *Embedder) Name() string { return "hashing" }

func (e *Embedder) Dimension() int { return e.dimension }

// Embed never returns a zero vector for non-empty text: if every word is a
// stopword the stopwords are kept, and text without words hashes as a whole.
func (e *Embedder) Embed(_ context.Context, text string) ([]float32, error) {
	words := e.tokenPattern.FindAllString(strings.ToLower(text), -1)
	tokens := make([]string, 0, len(words))
	for _, w := range words {
		if _, stop := e.stopwords[w]; !stop {
			tokens = append(tokens, w)
		}
	}
	if len(tokens) == 0 {
		tokens = words
	}
	if len(tokens) == 0 {
		if trimmed := strings.TrimSpace(text); trimmed != "" {
			tokens = []string{trimmed}
		}
	}

	vec := make([]float32, e.dimension)
	for _, tok := range tokens {
		vec[e.bucket(tok)]++
	}
	norm := 0.0
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		inv := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= inv
		}
	}
	return vec, nil
}

func (e *Embedder) bucket(token string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(token))
	return int(h.Sum32() % uint32(e.dimension))
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
