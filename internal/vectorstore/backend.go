// Package vectorstore wraps a similarity index behind a narrow capability
// interface.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"driverag/internal/domain"
)

var (
	// ErrCollectionNotFound is returned when the target collection does not exist.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrDimensionMismatch is returned when a vector's length differs from the
	// collection's dimensionality.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrWriteNotAcknowledged is returned when the backend did not report a
	// completed write.
	ErrWriteNotAcknowledged = errors.New("write not acknowledged")

	// ErrInvalidCollectionName is returned for names the backends cannot store.
	ErrInvalidCollectionName = errors.New("invalid collection name")

	// ErrUnsupportedDistance is returned when a backend cannot use a metric.
	ErrUnsupportedDistance = errors.New("unsupported distance metric")
)

// Distance is the similarity metric of a collection.
type Distance int

const (
	Cosine Distance = iota
	Dot
	Euclid
)

func (d Distance) String() string {
	switch d {
	case Cosine:
		return "cosine"
	case Dot:
		return "dot"
	case Euclid:
		return "euclid"
	default:
		return fmt.Sprintf("distance(%d)", int(d))
	}
}

// ParseDistance accepts the metric names used in configuration.
func ParseDistance(s string) (Distance, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "cosine":
		return Cosine, nil
	case "dot":
		return Dot, nil
	case "euclid", "euclidean":
		return Euclid, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedDistance, s)
	}
}

// WriteStatus is the completion state reported for a batch write.
type WriteStatus int

const (
	StatusUnknown WriteStatus = iota
	StatusAcknowledged
	StatusCompleted
)

func (s WriteStatus) String() string {
	switch s {
	case StatusAcknowledged:
		return "acknowledged"
	case StatusCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// Backend is the external similarity index. Search results must be ordered
// best match first, with higher scores meaning more similar, and Search must
// return ErrCollectionNotFound for a missing collection.
type Backend interface {
	CollectionExists(ctx context.Context, name string) (bool, error)
	CreateCollection(ctx context.Context, name string, dimension int, distance Distance) error
	Upsert(ctx context.Context, collection string, records []domain.VectorRecord) (WriteStatus, error)
	Search(ctx context.Context, collection string, vector []float32, limit int, filter domain.Filter) ([]domain.SearchResult, error)
	Delete(ctx context.Context, collection string, ids []string) error
	DeleteCollection(ctx context.Context, name string) error
	Close() error
}
