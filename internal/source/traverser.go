// Package source walks a folder hierarchy and collects extracted documents.
package source

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"driverag/internal/domain"
	"driverag/internal/metrics"
)

// Extractor returns the text of a single non-folder item.
type Extractor interface {
	Extract(ctx context.Context, item domain.FolderItem) (string, error)
}

// Traverser performs a breadth-first walk starting at a root folder.
type Traverser struct {
	source    domain.FolderSource
	extractor Extractor
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// NewTraverser creates a Traverser. m may be nil.
func NewTraverser(source domain.FolderSource, extractor Extractor, logger *zap.Logger, m *metrics.Metrics) *Traverser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Traverser{source: source, extractor: extractor, logger: logger, metrics: m}
}

// Traverse lists every folder reachable from rootID once and extracts every
// file once. Documents are returned in breadth-first discovery order; items
// that extract to empty text are left out.
func (t *Traverser) Traverse(ctx context.Context, rootID string) ([]domain.Document, error) {
	queue := []string{rootID}
	seenFolders := map[string]struct{}{rootID: {}}
	seenFiles := make(map[string]struct{})
	var documents []domain.Document

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		current := queue[0]
		queue = queue[1:]

		items, err := t.source.ListChildren(ctx, current)
		if err != nil {
			return nil, fmt.Errorf("listing folder %s: %w", current, err)
		}
		t.metrics.FolderListed()
		t.logger.Debug("listed folder", zap.String("folder_id", current), zap.Int("items", len(items)))

		for _, item := range items {
			if item.Kind() == domain.KindFolder {
				if _, ok := seenFolders[item.ID]; ok {
					continue
				}
				seenFolders[item.ID] = struct{}{}
				queue = append(queue, item.ID)
				continue
			}
			if _, ok := seenFiles[item.ID]; ok {
				continue
			}
			seenFiles[item.ID] = struct{}{}

			text, err := t.extractor.Extract(ctx, item)
			if err != nil {
				return nil, err
			}
			if len(text) == 0 {
				t.metrics.ItemSkipped(item.Kind().String())
				continue
			}
			t.metrics.DocumentExtracted(item.Kind().String())
			documents = append(documents, domain.Document{Item: item, Text: text})
		}
	}
	return documents, nil
}
