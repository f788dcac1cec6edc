// Package chunker splits document text into token-bounded passages.
package chunker

import (
	"iter"
	"strings"
	"unicode/utf8"

	"driverag/internal/domain"
)

// DefaultTokenLimit is the chunk size used when none is configured.
const DefaultTokenLimit = 200

// boundaryMarkers end a sentence-like unit.
const boundaryMarkers = ".?!\n"

// TokenChunker cuts text into windows of at most tokenLimit tokens, preferring
// to end each window at the last sentence boundary inside it.
type TokenChunker struct {
	tokenizer  Tokenizer
	tokenLimit int
}

func NewTokenChunker(tokenizer Tokenizer, tokenLimit int) *TokenChunker {
	if tokenLimit <= 0 {
		tokenLimit = DefaultTokenLimit
	}
	return &TokenChunker{tokenizer: tokenizer, tokenLimit: tokenLimit}
}

// TokenLimit returns the configured window size.
func (c *TokenChunker) TokenLimit() int { return c.tokenLimit }

// Chunk tokenizes text and returns a stream over its chunks. The text is
// tokenized once, up front; chunks are produced on demand.
func (c *TokenChunker) Chunk(text string) *Stream {
	return &Stream{
		tokenizer: c.tokenizer,
		limit:     c.tokenLimit,
		tokens:    c.tokenizer.Encode(text),
	}
}

// Stream is a single forward pass over a document's chunks. Once exhausted it
// stays exhausted.
type Stream struct {
	tokenizer Tokenizer
	limit     int
	tokens    []int
	index     int
}

// Next returns the next non-empty chunk, or false when the tokens are used up.
// Every iteration consumes at least one token.
func (s *Stream) Next() (domain.Chunk, bool) {
	for len(s.tokens) > 0 {
		window := s.tokens[:min(s.limit, len(s.tokens))]
		cut := s.tokenizer.Decode(window)
		if p := strings.LastIndexAny(cut, boundaryMarkers); p >= 0 {
			cut = cut[:p+1]
		} else {
			// the window may end inside a multi-byte character
			for n := len(window) - 1; n > 0 && endsInPartialRune(cut); n-- {
				cut = s.tokenizer.Decode(window[:n])
			}
		}

		// Re-measure the retained text so the next window starts right after it.
		consumed := len(s.tokenizer.Encode(cut))
		consumed = max(1, min(consumed, len(window)))
		s.tokens = s.tokens[consumed:]

		text := strings.ToValidUTF8(strings.TrimSpace(strings.ReplaceAll(cut, "\n", " ")), "\uFFFD")
		if text == "" {
			continue
		}
		chunk := domain.Chunk{Text: text, Index: s.index}
		s.index++
		return chunk, true
	}
	return domain.Chunk{}, false
}

func endsInPartialRune(s string) bool {
	r, size := utf8.DecodeLastRuneInString(s)
	return r == utf8.RuneError && size == 1
}

// All drains the stream.
func (s *Stream) All() iter.Seq[domain.Chunk] {
	return func(yield func(domain.Chunk) bool) {
		for {
			chunk, ok := s.Next()
			if !ok || !yield(chunk) {
				return
			}
		}
	}
}
