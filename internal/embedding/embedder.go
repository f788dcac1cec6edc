// Package embedding defines the text embedding capability.
package embedding

import "context"

// Embedder converts free text into a fixed-length vector.
type Embedder interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, text string) ([]float32, error)
}
