package vectorstore

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"driverag/internal/domain"
)

var tracer = otel.Tracer("driverag/vectorstore")

var collectionNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,255}$`)

// chunkNamespace seeds content-addressed record ids.
var chunkNamespace = uuid.MustParse("6f1c2a3e-9b8d-4c7a-a1e2-5d4f3b2c1a0e")

// ValidateCollectionName rejects names that are empty or contain characters
// outside [A-Za-z0-9_-].
func ValidateCollectionName(name string) error {
	if !collectionNamePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidCollectionName, name)
	}
	return nil
}

// Options configures an Index.
type Options struct {
	Collection string
	Dimension  int
	Distance   Distance
	// ContentAddressedIDs derives record ids from the normalized chunk text so
	// that re-ingesting identical text overwrites instead of duplicating.
	ContentAddressedIDs bool
}

// Index is the ingestion and retrieval view of one collection in a Backend.
type Index struct {
	backend    Backend
	collection string
	dimension  int
	distance   Distance
	contentIDs bool
	logger     *zap.Logger
}

func NewIndex(backend Backend, opts Options, logger *zap.Logger) *Index {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Index{
		backend:    backend,
		collection: opts.Collection,
		dimension:  opts.Dimension,
		distance:   opts.Distance,
		contentIDs: opts.ContentAddressedIDs,
		logger:     logger,
	}
}

// Collection returns the name of the collection the index reads and writes.
func (i *Index) Collection() string { return i.collection }

// Dimension returns the vector size the index validates against.
func (i *Index) Dimension() int { return i.dimension }

// EnsureCollection creates name if it does not exist and makes it the
// index's target. An existing collection is left untouched even if its
// dimensionality differs.
func (i *Index) EnsureCollection(ctx context.Context, name string, dimension int, distance Distance) error {
	ctx, span := tracer.Start(ctx, "Index.EnsureCollection", trace.WithAttributes(
		attribute.String("collection", name),
		attribute.Int("dimension", dimension),
	))
	defer span.End()

	if err := ValidateCollectionName(name); err != nil {
		return fail(span, err)
	}
	if dimension <= 0 {
		return fail(span, fmt.Errorf("%w: dimension must be positive, got %d", ErrDimensionMismatch, dimension))
	}

	exists, err := i.backend.CollectionExists(ctx, name)
	if err != nil {
		return fail(span, fmt.Errorf("checking collection %s: %w", name, err))
	}
	if !exists {
		if err := i.backend.CreateCollection(ctx, name, dimension, distance); err != nil {
			return fail(span, fmt.Errorf("creating collection %s: %w", name, err))
		}
		i.logger.Info("created collection",
			zap.String("collection", name),
			zap.Int("dimension", dimension),
			zap.Stringer("distance", distance),
		)
	}
	i.collection, i.dimension, i.distance = name, dimension, distance
	span.SetStatus(codes.Ok, "")
	return nil
}

// Upsert assigns each record a fresh id and writes all of them as one batch,
// waiting for the backend to report completion. Any record whose vector length
// differs from the index dimension fails the whole batch before writing.
func (i *Index) Upsert(ctx context.Context, records []domain.VectorRecord) ([]string, error) {
	ctx, span := tracer.Start(ctx, "Index.Upsert", trace.WithAttributes(
		attribute.String("collection", i.collection),
		attribute.Int("records", len(records)),
	))
	defer span.End()

	if len(records) == 0 {
		return nil, nil
	}
	batch := make([]domain.VectorRecord, len(records))
	ids := make([]string, len(records))
	for n, r := range records {
		if len(r.Vector) != i.dimension {
			return nil, fail(span, fmt.Errorf("%w: record %d has %d dimensions, collection %s expects %d",
				ErrDimensionMismatch, n, len(r.Vector), i.collection, i.dimension))
		}
		r.ID = i.recordID(r)
		batch[n] = r
		ids[n] = r.ID
	}

	status, err := i.backend.Upsert(ctx, i.collection, batch)
	if err != nil {
		return nil, fail(span, fmt.Errorf("upserting %d records to %s: %w", len(batch), i.collection, err))
	}
	if status != StatusCompleted {
		return nil, fail(span, fmt.Errorf("%w: upsert to %s finished with status %s", ErrWriteNotAcknowledged, i.collection, status))
	}
	i.logger.Debug("upserted records", zap.String("collection", i.collection), zap.Int("count", len(batch)))
	span.SetStatus(codes.Ok, "")
	return ids, nil
}

// Search returns up to limit records ranked by descending score. filter may be nil.
func (i *Index) Search(ctx context.Context, vector []float32, limit int, filter domain.Filter) ([]domain.SearchResult, error) {
	ctx, span := tracer.Start(ctx, "Index.Search", trace.WithAttributes(
		attribute.String("collection", i.collection),
		attribute.Int("limit", limit),
	))
	defer span.End()

	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}
	if len(vector) != i.dimension {
		return nil, fail(span, fmt.Errorf("%w: query has %d dimensions, collection %s expects %d",
			ErrDimensionMismatch, len(vector), i.collection, i.dimension))
	}
	results, err := i.backend.Search(ctx, i.collection, vector, limit, filter)
	if err != nil {
		return nil, fail(span, fmt.Errorf("searching %s: %w", i.collection, err))
	}
	span.SetAttributes(attribute.Int("results", len(results)))
	span.SetStatus(codes.Ok, "")
	return results, nil
}

// Delete removes records by id.
func (i *Index) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := i.backend.Delete(ctx, i.collection, ids); err != nil {
		return fmt.Errorf("deleting %d records from %s: %w", len(ids), i.collection, err)
	}
	return nil
}

// DeleteCollection drops name and all of its records.
func (i *Index) DeleteCollection(ctx context.Context, name string) error {
	if err := ValidateCollectionName(name); err != nil {
		return err
	}
	if err := i.backend.DeleteCollection(ctx, name); err != nil {
		return fmt.Errorf("deleting collection %s: %w", name, err)
	}
	i.logger.Info("deleted collection", zap.String("collection", name))
	return nil
}

func (i *Index) recordID(r domain.VectorRecord) string {
	if i.contentIDs {
		if text, ok := r.Payload[domain.PayloadText].(string); ok {
			return ContentID(text)
		}
	}
	return uuid.NewString()
}

// ContentID is the content-addressed id of a chunk text. Whitespace runs are
// collapsed before hashing.
func ContentID(text string) string {
	normalized := strings.Join(strings.Fields(text), " ")
	return uuid.NewSHA1(chunkNamespace, []byte(normalized)).String()
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
