// Package domain holds the types shared by the ingestion and retrieval paths.
package domain

import (
	"context"
	"errors"
)

// Mime types used by the folder source.
const (
	MimeFolder       = "application/vnd.google-apps.folder"
	MimeDocument     = "application/vnd.google-apps.document"
	MimeSpreadsheet  = "application/vnd.google-apps.spreadsheet"
	MimePresentation = "application/vnd.google-apps.presentation"
	MimePDF          = "application/pdf"

	MimeTextPlain = "text/plain"
	MimeTextCSV   = "text/csv"
)

// ErrMalformedContent marks content of a supported type that could not be parsed.
var ErrMalformedContent = errors.New("malformed content")

// MimeKind is the closed set of item kinds the extractor knows about.
type MimeKind int

const (
	KindUnsupported MimeKind = iota
	KindFolder
	KindDocument
	KindPDF
	KindSpreadsheet
	KindPresentation
)

// KindOf maps a source mime type onto a MimeKind.
func KindOf(mimeType string) MimeKind {
	switch mimeType {
	case MimeFolder:
		return KindFolder
	case MimeDocument:
		return KindDocument
	case MimePDF:
		return KindPDF
	case MimeSpreadsheet:
		return KindSpreadsheet
	case MimePresentation:
		return KindPresentation
	default:
		return KindUnsupported
	}
}

func (k MimeKind) String() string {
	switch k {
	case KindFolder:
		return "folder"
	case KindDocument:
		return "document"
	case KindPDF:
		return "pdf"
	case KindSpreadsheet:
		return "spreadsheet"
	case KindPresentation:
		return "presentation"
	default:
		return "unsupported"
	}
}

// FolderItem describes a remote file or folder as returned by a listing.
type FolderItem struct {
	ID       string
	Name     string
	MimeType string
}

// Kind returns the item's MimeKind.
func (i FolderItem) Kind() MimeKind { return KindOf(i.MimeType) }

// Document is the plain text extracted from a single item.
type Document struct {
	Item FolderItem
	Text string
}

// Chunk is a token-bounded passage of a document.
type Chunk struct {
	Text  string
	Index int
}

// VectorRecord is a single point written to the vector index.
type VectorRecord struct {
	ID      string
	Vector  []float32
	Payload map[string]any
}

// SearchResult is a ranked match returned by the vector index.
type SearchResult struct {
	ID      string
	Score   float32
	Text    string
	Payload map[string]any
}

// Filter restricts a search to records whose payload equals every entry.
type Filter map[string]string

// Payload keys written by the ingestion path.
const (
	PayloadText       = "text"
	PayloadSourceID   = "source_id"
	PayloadSourceName = "source_name"
	PayloadChunkIndex = "chunk_index"
)

// FolderSource is the hierarchical file store documents are ingested from.
type FolderSource interface {
	ListChildren(ctx context.Context, folderID string) ([]FolderItem, error)
	GetMetadata(ctx context.Context, fileID string) (FolderItem, error)
	ExportAs(ctx context.Context, fileID, targetMimeType string) ([]byte, error)
	FetchMedia(ctx context.Context, fileID string) ([]byte, error)
}

// Answerer synthesizes a free-text answer from retrieved context.
type Answerer interface {
	Answer(ctx context.Context, question, passages string) (string, error)
}
