// Package chromem implements the vectorstore Backend on chromem-go, an
// embedded vector database. It supports cosine similarity only.
package chromem

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"driverag/internal/domain"
	"driverag/internal/vectorstore"
)

const (
	metaDimension = "dimension"
	metaDistance  = "distance"
)

// errNoEmbedding is returned if chromem ever asks us to embed text; every
// document and query arrives with its vector.
var errNoEmbedding = errors.New("chromem backend requires precomputed embeddings")

// Config configures the embedded database.
type Config struct {
	// Path enables persistence to a directory; empty keeps data in memory.
	Path     string
	Compress bool
}

// Backend stores collections in a chromem.DB.
type Backend struct {
	db *chromem.DB
	// dims holds the dimensionality of collections created by this process.
	dims sync.Map
}

// New opens an in-memory or persistent database.
func New(cfg Config) (*Backend, error) {
	if cfg.Path == "" {
		return &Backend{db: chromem.NewDB()}, nil
	}
	if err := os.MkdirAll(cfg.Path, 0o700); err != nil {
		return nil, fmt.Errorf("create chromem dir %s: %w", cfg.Path, err)
	}
	db, err := chromem.NewPersistentDB(cfg.Path, cfg.Compress)
	if err != nil {
		return nil, fmt.Errorf("open chromem db %s: %w", cfg.Path, err)
	}
	return &Backend{db: db}, nil
}

func embedFunc(context.Context, string) ([]float32, error) { return nil, errNoEmbedding }

func (b *Backend) collection(name string) (*chromem.Collection, error) {
	c := b.db.GetCollection(name, embedFunc)
	if c == nil {
		return nil, fmt.Errorf("%w: %s", vectorstore.ErrCollectionNotFound, name)
	}
	return c, nil
}

func (b *Backend) CollectionExists(_ context.Context, name string) (bool, error) {
	return b.db.GetCollection(name, embedFunc) != nil, nil
}

func (b *Backend) CreateCollection(_ context.Context, name string, dimension int, distance vectorstore.Distance) error {
	if distance != vectorstore.Cosine {
		return fmt.Errorf("%w: chromem supports cosine only, got %s", vectorstore.ErrUnsupportedDistance, distance)
	}
	_, err := b.db.CreateCollection(name, map[string]string{
		metaDimension: strconv.Itoa(dimension),
		metaDistance:  distance.String(),
	}, embedFunc)
	if err != nil {
		return err
	}
	b.dims.Store(name, dimension)
	return nil
}

// Upsert writes the batch; documents with an existing id are replaced.
func (b *Backend) Upsert(ctx context.Context, collection string, records []domain.VectorRecord) (vectorstore.WriteStatus, error) {
	c, err := b.collection(collection)
	if err != nil {
		return vectorstore.StatusUnknown, err
	}
	if v, ok := b.dims.Load(collection); ok {
		dim := v.(int)
		for _, r := range records {
			if len(r.Vector) != dim {
				return vectorstore.StatusUnknown, fmt.Errorf("%w: got %d, collection has %d", vectorstore.ErrDimensionMismatch, len(r.Vector), dim)
			}
		}
	}
	docs := make([]chromem.Document, len(records))
	for i, r := range records {
		text, meta := splitPayload(r.Payload)
		docs[i] = chromem.Document{
			ID:        r.ID,
			Content:   text,
			Metadata:  meta,
			Embedding: append([]float32(nil), r.Vector...),
		}
	}
	if err := c.AddDocuments(ctx, docs, 1); err != nil {
		return vectorstore.StatusUnknown, err
	}
	return vectorstore.StatusCompleted, nil
}

func (b *Backend) Search(ctx context.Context, collection string, vector []float32, limit int, filter domain.Filter) ([]domain.SearchResult, error) {
	c, err := b.collection(collection)
	if err != nil {
		return nil, err
	}
	// chromem requires nResults <= document count
	if n := c.Count(); n == 0 {
		return []domain.SearchResult{}, nil
	} else if limit > n {
		limit = n
	}
	var where map[string]string
	if len(filter) > 0 {
		where = map[string]string(filter)
	}
	res, err := c.QueryEmbedding(ctx, append([]float32(nil), vector...), limit, where, nil)
	if err != nil {
		return nil, err
	}
	out := make([]domain.SearchResult, len(res))
	for i, r := range res {
		payload := make(map[string]any, len(r.Metadata)+1)
		for k, v := range r.Metadata {
			payload[k] = v
		}
		// metadata is stored as strings; restore the integer chunk index
		if n, err := strconv.ParseInt(r.Metadata[domain.PayloadChunkIndex], 10, 64); err == nil {
			payload[domain.PayloadChunkIndex] = n
		}
		payload[domain.PayloadText] = r.Content
		out[i] = domain.SearchResult{ID: r.ID, Score: r.Similarity, Text: r.Content, Payload: payload}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}

func (b *Backend) Delete(ctx context.Context, collection string, ids []string) error {
	c, err := b.collection(collection)
	if err != nil {
		return err
	}
	return c.Delete(ctx, nil, nil, ids...)
}

func (b *Backend) DeleteCollection(_ context.Context, name string) error {
	b.dims.Delete(name)
	return b.db.DeleteCollection(name)
}

// Close is a no-op; persistent databases are written on every change.
func (b *Backend) Close() error { return nil }

func splitPayload(payload map[string]any) (string, map[string]string) {
	text, _ := payload[domain.PayloadText].(string)
	meta := make(map[string]string, len(payload))
	for k, v := range payload {
		if k == domain.PayloadText {
			continue
		}
		meta[k] = fmt.Sprint(v)
	}
	return text, meta
}
