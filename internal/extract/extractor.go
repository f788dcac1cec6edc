// Package extract turns folder items into plain text.
package extract

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"driverag/internal/domain"
)

// Extractor dispatches on an item's MimeKind and returns its text.
type Extractor struct {
	source domain.FolderSource
	logger *zap.Logger
}

// NewExtractor creates an extractor reading from source.
func NewExtractor(source domain.FolderSource, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{source: source, logger: logger}
}

// Extract returns the text of item. Unsupported kinds yield "" and a nil error;
// the caller skips them. PDF bytes that cannot be parsed yield ErrMalformedContent.
func (e *Extractor) Extract(ctx context.Context, item domain.FolderItem) (string, error) {
	if item.MimeType == "" {
		meta, err := e.source.GetMetadata(ctx, item.ID)
		if err != nil {
			return "", fmt.Errorf("metadata for %s: %w", item.ID, err)
		}
		item.MimeType = meta.MimeType
		if item.Name == "" {
			item.Name = meta.Name
		}
	}

	switch item.Kind() {
	case domain.KindDocument, domain.KindPresentation:
		return e.export(ctx, item, domain.MimeTextPlain)
	case domain.KindSpreadsheet:
		return e.export(ctx, item, domain.MimeTextCSV)
	case domain.KindPDF:
		data, err := e.source.FetchMedia(ctx, item.ID)
		if err != nil {
			return "", fmt.Errorf("fetch %s: %w", item.ID, err)
		}
		text, err := PDFText(data)
		if err != nil {
			return "", fmt.Errorf("pdf %s (%s): %w", item.Name, item.ID, err)
		}
		return text, nil
	default:
		e.logger.Info("skipping unsupported file",
			zap.String("name", item.Name),
			zap.String("id", item.ID),
			zap.String("mime_type", item.MimeType),
		)
		return "", nil
	}
}

func (e *Extractor) export(ctx context.Context, item domain.FolderItem, target string) (string, error) {
	data, err := e.source.ExportAs(ctx, item.ID, target)
	if err != nil {
		return "", fmt.Errorf("export %s as %s: %w", item.ID, target, err)
	}
	return string(data), nil
}
