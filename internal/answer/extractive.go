package answer

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"
)

// NoAnswer is returned when the passages share nothing with the question.
const NoAnswer = "I don't know."

var sentencePattern = regexp.MustCompile(`[^.!?\n]+[.!?]?`)

// Extractive answers offline by quoting the passage sentences that best match
// the question, ranked by word frequency across the passages plus overlap
// with the question.
type Extractive struct {
	maxSentences int
	tokenPattern *regexp.Regexp
	stopwords    map[string]struct{}
}

// NewExtractive creates an extractive answerer returning at most maxSentences
// sentences.
func NewExtractive(maxSentences int) *Extractive {
	if maxSentences <= 0 {
		maxSentences = 2
	}
	return &Extractive{
		maxSentences: maxSentences,
		tokenPattern: regexp.MustCompile(`[\p{L}\p{N}]+(?:['’][\p{L}\p{N}]+)*`),
		stopwords:    defaultStopwords(),
	}
}

func (e *Extractive) Answer(_ context.Context, question, passages string) (string, error) {
	var sentences []string
	for _, s := range sentencePattern.FindAllString(passages, -1) {
		if s = strings.TrimSpace(s); s != "" {
			sentences = append(sentences, s)
		}
	}
	query := map[string]struct{}{}
	for _, tok := range e.terms(question) {
		query[tok] = struct{}{}
	}
	if len(sentences) == 0 || len(query) == 0 {
		return NoAnswer, nil
	}

	freq := map[string]float64{}
	maxF := 0.0
	for _, sent := range sentences {
		for _, tok := range e.terms(sent) {
			freq[tok]++
			maxF = math.Max(maxF, freq[tok])
		}
	}

	type scored struct {
		idx   int
		score float64
	}
	var ranked []scored
	for i, sent := range sentences {
		terms := e.terms(sent)
		if len(terms) == 0 {
			continue
		}
		overlap, weight := 0, 0.0
		for _, tok := range terms {
			weight += freq[tok] / maxF
			if _, ok := query[tok]; ok {
				overlap++
			}
		}
		if overlap == 0 {
			continue
		}
		ranked = append(ranked, scored{i, float64(overlap) + weight/math.Sqrt(float64(len(terms)))})
	}
	if len(ranked) == 0 {
		return NoAnswer, nil
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	if len(ranked) > e.maxSentences {
		ranked = ranked[:e.maxSentences]
	}
	// keep passage order among the selected sentences
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].idx < ranked[j].idx })
	out := make([]string, len(ranked))
	for i, r := range ranked {
		out[i] = sentences[r.idx]
	}
	return strings.Join(out, " "), nil
}

func (e *Extractive) terms(text string) []string {
	words := e.tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := words[:0]
	for _, w := range words {
		if _, stop := e.stopwords[w]; !stop {
			out = append(out, w)
		}
	}
	return out
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
		"what", "which", "who", "whom", "where", "when", "why", "how", "do", "does", "did",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
