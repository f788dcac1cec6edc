package chromem

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"driverag/internal/domain"
	"driverag/internal/embedding/hashing"
	"driverag/internal/vectorstore"
)

func newIndex(t *testing.T, contentIDs bool) (*vectorstore.Index, *hashing.Embedder) {
	t.Helper()
	backend, err := New(Config{})
	require.NoError(t, err)
	emb := hashing.NewEmbedder(64)
	idx := vectorstore.NewIndex(backend, vectorstore.Options{ContentAddressedIDs: contentIDs}, nil)
	require.NoError(t, idx.EnsureCollection(context.Background(), "docs", emb.Dimension(), vectorstore.Cosine))
	return idx, emb
}

func upsertTexts(t *testing.T, idx *vectorstore.Index, emb *hashing.Embedder, texts ...string) []string {
	t.Helper()
	ctx := context.Background()
	records := make([]domain.VectorRecord, len(texts))
	for i, text := range texts {
		vec, err := emb.Embed(ctx, text)
		require.NoError(t, err)
		records[i] = domain.VectorRecord{
			Vector:  vec,
			Payload: map[string]any{domain.PayloadText: text, domain.PayloadSourceID: "doc-" + string(rune('a'+i))},
		}
	}
	ids, err := idx.Upsert(ctx, records)
	require.NoError(t, err)
	return ids
}

func TestRoundTrip(t *testing.T) {
	idx, emb := newIndex(t, false)
	ctx := context.Background()
	upsertTexts(t, idx, emb,
		"The capital of France is Paris.",
		"Bananas are rich in potassium.",
		"Rust and Go are compiled languages.",
	)

	q, err := emb.Embed(ctx, "What is the capital of France?")
	require.NoError(t, err)
	res, err := idx.Search(ctx, q, 3, nil)
	require.NoError(t, err)
	require.Len(t, res, 3)
	assert.Equal(t, "The capital of France is Paris.", res[0].Text)
	for i := 1; i < len(res); i++ {
		assert.GreaterOrEqual(t, res[i-1].Score, res[i].Score)
	}
}

func TestSearchLimitLargerThanCollection(t *testing.T) {
	idx, emb := newIndex(t, false)
	upsertTexts(t, idx, emb, "only one passage")

	q, err := emb.Embed(context.Background(), "passage")
	require.NoError(t, err)
	res, err := idx.Search(context.Background(), q, 10, nil)
	require.NoError(t, err)
	assert.Len(t, res, 1)
}

func TestSearchFilter(t *testing.T) {
	idx, emb := newIndex(t, false)
	upsertTexts(t, idx, emb, "alpha passage", "beta passage")

	q, err := emb.Embed(context.Background(), "passage")
	require.NoError(t, err)
	res, err := idx.Search(context.Background(), q, 2, domain.Filter{domain.PayloadSourceID: "doc-b"})
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "beta passage", res[0].Text)
	assert.Equal(t, "doc-b", res[0].Payload[domain.PayloadSourceID])
}

func TestChunkIndexPayload(t *testing.T) {
	idx, emb := newIndex(t, false)
	ctx := context.Background()
	var records []domain.VectorRecord
	for i, text := range []string{"first passage", "second passage"} {
		vec, err := emb.Embed(ctx, text)
		require.NoError(t, err)
		records = append(records, domain.VectorRecord{
			Vector:  vec,
			Payload: map[string]any{domain.PayloadText: text, domain.PayloadChunkIndex: i},
		})
	}
	_, err := idx.Upsert(ctx, records)
	require.NoError(t, err)

	q, err := emb.Embed(ctx, "passage")
	require.NoError(t, err)
	res, err := idx.Search(ctx, q, 2, domain.Filter{domain.PayloadChunkIndex: "1"})
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "second passage", res[0].Text)
	assert.Equal(t, int64(1), res[0].Payload[domain.PayloadChunkIndex])
}

func TestReingestDuplicatesByDefault(t *testing.T) {
	idx, emb := newIndex(t, false)
	upsertTexts(t, idx, emb, "The capital of France is Paris.")
	upsertTexts(t, idx, emb, "The capital of France is Paris.")

	q, err := emb.Embed(context.Background(), "capital of France")
	require.NoError(t, err)
	res, err := idx.Search(context.Background(), q, 5, nil)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, res[0].Text, res[1].Text)
}

func TestReingestWithContentIDsIsIdempotent(t *testing.T) {
	idx, emb := newIndex(t, true)
	first := upsertTexts(t, idx, emb, "The capital of France is Paris.")
	second := upsertTexts(t, idx, emb, "The capital of France is Paris.")
	assert.Equal(t, first, second)

	q, err := emb.Embed(context.Background(), "capital of France")
	require.NoError(t, err)
	res, err := idx.Search(context.Background(), q, 5, nil)
	require.NoError(t, err)
	assert.Len(t, res, 1)
}

func TestDelete(t *testing.T) {
	idx, emb := newIndex(t, false)
	ids := upsertTexts(t, idx, emb, "keep me", "drop me")
	require.NoError(t, idx.Delete(context.Background(), ids[1:]))

	q, err := emb.Embed(context.Background(), "me")
	require.NoError(t, err)
	res, err := idx.Search(context.Background(), q, 5, nil)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, ids[0], res[0].ID)
}

func TestMissingCollection(t *testing.T) {
	backend, err := New(Config{})
	require.NoError(t, err)
	idx := vectorstore.NewIndex(backend, vectorstore.Options{Collection: "absent", Dimension: 4}, nil)

	_, err = idx.Search(context.Background(), []float32{1, 0, 0, 0}, 3, nil)
	assert.ErrorIs(t, err, vectorstore.ErrCollectionNotFound)

	exists, err := backend.CollectionExists(context.Background(), "absent")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestCosineOnly(t *testing.T) {
	backend, err := New(Config{})
	require.NoError(t, err)
	err = backend.CreateCollection(context.Background(), "docs", 4, vectorstore.Euclid)
	assert.ErrorIs(t, err, vectorstore.ErrUnsupportedDistance)
}

func TestPersistentReopen(t *testing.T) {
	dir := t.TempDir()
	backend, err := New(Config{Path: dir})
	require.NoError(t, err)
	emb := hashing.NewEmbedder(16)
	idx := vectorstore.NewIndex(backend, vectorstore.Options{}, nil)
	require.NoError(t, idx.EnsureCollection(context.Background(), "docs", emb.Dimension(), vectorstore.Cosine))
	upsertTexts(t, idx, emb, "persisted passage")

	reopened, err := New(Config{Path: dir})
	require.NoError(t, err)
	exists, err := reopened.CollectionExists(context.Background(), "docs")
	require.NoError(t, err)
	assert.True(t, exists)
}
