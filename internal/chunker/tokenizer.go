package chunker

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

// DefaultEncoding is the BPE encoding used by the OpenAI embedding models.
const DefaultEncoding = "cl100k_base"

// Tokenizer converts between text and token ids.
type Tokenizer interface {
	Encode(text string) []int
	Decode(tokens []int) string
}

var loaderOnce sync.Once

// Tiktoken is a Tokenizer backed by a tiktoken BPE encoding.
type Tiktoken struct {
	enc *tiktoken.Tiktoken
}

// NewTiktoken loads the named encoding from the embedded BPE tables; no
// network access is needed.
func NewTiktoken(encoding string) (*Tiktoken, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	loaderOnce.Do(func() {
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
	})
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load encoding %s: %w", encoding, err)
	}
	return &Tiktoken{enc: enc}, nil
}

// Encode treats special-token text as ordinary text.
func (t *Tiktoken) Encode(text string) []int { return t.enc.Encode(text, nil, nil) }

func (t *Tiktoken) Decode(tokens []int) string { return t.enc.Decode(tokens) }
