// Package service wires traversal, chunking, embedding and the vector index
// into the ingestion and retrieval paths.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"driverag/internal/chunker"
	"driverag/internal/domain"
	"driverag/internal/embedding"
	"driverag/internal/metrics"
	"driverag/internal/vectorstore"
)

const (
	DefaultBatchSize   = 64
	DefaultSearchLimit = 3
)

// ErrEmptyQuery is returned for queries that are empty after trimming.
var ErrEmptyQuery = errors.New("empty query")

// Traverser collects the documents below a folder.
type Traverser interface {
	Traverse(ctx context.Context, rootID string) ([]domain.Document, error)
}

// Chunker splits document text into passages.
type Chunker interface {
	Chunk(text string) *chunker.Stream
}

// Options tunes the pipeline.
type Options struct {
	Distance    vectorstore.Distance
	BatchSize   int
	SearchLimit int
}

// IngestReport summarizes one ingestion run.
type IngestReport struct {
	Collection string
	Documents  int
	Chunks     int
	Records    []string
	Duration   time.Duration
}

// Answer is a synthesized answer with the passages it was grounded on.
type Answer struct {
	Question string
	Text     string
	Passages []domain.SearchResult
}

type RAGService struct {
	traverser Traverser
	chunker   Chunker
	embedder  embedding.Embedder
	index     *vectorstore.Index
	answerer  domain.Answerer
	opts      Options
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

func NewRAGService(
	traverser Traverser,
	chunker Chunker,
	embedder embedding.Embedder,
	index *vectorstore.Index,
	answerer domain.Answerer,
	opts Options,
	logger *zap.Logger,
	m *metrics.Metrics,
) *RAGService {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.SearchLimit <= 0 {
		opts.SearchLimit = DefaultSearchLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RAGService{
		traverser: traverser,
		chunker:   chunker,
		embedder:  embedder,
		index:     index,
		answerer:  answerer,
		opts:      opts,
		logger:    logger,
		metrics:   m,
	}
}

// Ingest traverses folderID and stores every chunk of every document it
// yields. Batches written before a failure are kept.
func (s *RAGService) Ingest(ctx context.Context, folderID string) (report IngestReport, err error) {
	start := time.Now()
	report = IngestReport{Collection: s.index.Collection()}
	defer func() {
		report.Duration = time.Since(start)
		s.metrics.ObserveIngest(report.Duration)
	}()

	if err := s.EnsureCollection(ctx); err != nil {
		return report, err
	}
	docs, err := s.traverser.Traverse(ctx, folderID)
	if err != nil {
		return report, fmt.Errorf("traversing %s: %w", folderID, err)
	}
	report.Documents = len(docs)
	s.logger.Info("traversal finished", zap.String("folder_id", folderID), zap.Int("documents", len(docs)))

	batch := make([]domain.VectorRecord, 0, s.opts.BatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		ids, err := s.index.Upsert(ctx, batch)
		if err != nil {
			return err
		}
		report.Records = append(report.Records, ids...)
		s.metrics.Upserted(len(ids))
		batch = batch[:0]
		return nil
	}

	for _, doc := range docs {
		for chunk := range s.chunker.Chunk(doc.Text).All() {
			vec, err := s.embedder.Embed(ctx, chunk.Text)
			if err != nil {
				return report, fmt.Errorf("embedding chunk %d of %s: %w", chunk.Index, doc.Item.ID, err)
			}
			report.Chunks++
			s.metrics.ChunkEmitted()
			batch = append(batch, domain.VectorRecord{
				Vector: vec,
				Payload: map[string]any{
					domain.PayloadText:       chunk.Text,
					domain.PayloadSourceID:   doc.Item.ID,
					domain.PayloadSourceName: doc.Item.Name,
					domain.PayloadChunkIndex: chunk.Index,
				},
			})
			if len(batch) == s.opts.BatchSize {
				if err := flush(); err != nil {
					return report, err
				}
			}
		}
		s.logger.Debug("document chunked", zap.String("id", doc.Item.ID), zap.String("name", doc.Item.Name))
	}
	if err := flush(); err != nil {
		return report, err
	}
	s.logger.Info("ingestion finished",
		zap.String("collection", report.Collection),
		zap.Int("documents", report.Documents),
		zap.Int("chunks", report.Chunks),
		zap.Int("records", len(report.Records)),
	)
	return report, nil
}

// Search embeds query and returns up to limit passages, best first. A
// non-positive limit uses the configured default.
func (s *RAGService) Search(ctx context.Context, query string, limit int, filter domain.Filter) (res []domain.SearchResult, err error) {
	defer func() { s.metrics.SearchDone(err) }()

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if limit <= 0 {
		limit = s.opts.SearchLimit
	}
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	res, err = s.index.Search(ctx, vec, limit, filter)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("search", zap.String("query", query), zap.Int("results", len(res)))
	return res, nil
}

// Ask retrieves passages for question and asks the answerer to answer from
// them alone.
func (s *RAGService) Ask(ctx context.Context, question string) (Answer, error) {
	passages, err := s.Search(ctx, question, s.opts.SearchLimit, nil)
	if err != nil {
		return Answer{}, err
	}
	var sb strings.Builder
	for i, p := range passages {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(p.Text)
	}
	text, err := s.answerer.Answer(ctx, strings.TrimSpace(question), sb.String())
	if err != nil {
		return Answer{}, fmt.Errorf("answering: %w", err)
	}
	return Answer{Question: question, Text: text, Passages: passages}, nil
}

// EnsureCollection creates the configured collection if it is missing.
func (s *RAGService) EnsureCollection(ctx context.Context) error {
	return s.index.EnsureCollection(ctx, s.index.Collection(), s.embedder.Dimension(), s.opts.Distance)
}

func (s *RAGService) DeleteCollection(ctx context.Context) error {
	return s.index.DeleteCollection(ctx, s.index.Collection())
}

func (s *RAGService) DeletePoints(ctx context.Context, ids []string) error {
	return s.index.Delete(ctx, ids)
}
