// Package localfs exposes a local directory tree as a folder source.
//
// Item ids are slash-separated paths relative to the root directory; the root
// itself is ".". File extensions stand in for the remote mime types:
// .txt and .md are treated as native documents, .csv as spreadsheets and .pdf
// as PDF. Everything else is reported with its registered mime type and is
// therefore skipped by the extractor.
package localfs

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"driverag/internal/domain"
)

// RootID is the id of the source's root folder.
const RootID = "."

// Source reads files below a single directory.
type Source struct {
	root *os.Root
}

// Open opens dir as a folder source. Paths cannot escape dir.
func Open(dir string) (*Source, error) {
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("open source root %s: %w", dir, err)
	}
	return &Source{root: root}, nil
}

// Close releases the root directory handle.
func (s *Source) Close() error { return s.root.Close() }

func (s *Source) ListChildren(ctx context.Context, folderID string) ([]domain.FolderItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := s.root.Open(filepath.FromSlash(folderID))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	entries, err := f.ReadDir(-1)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", folderID, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	items := make([]domain.FolderItem, 0, len(entries))
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}
		items = append(items, itemFor(path.Join(folderID, e.Name()), e.Name(), e.IsDir()))
	}
	return items, nil
}

func (s *Source) GetMetadata(_ context.Context, fileID string) (domain.FolderItem, error) {
	info, err := s.root.Stat(filepath.FromSlash(fileID))
	if err != nil {
		return domain.FolderItem{}, err
	}
	return itemFor(fileID, info.Name(), info.IsDir()), nil
}

// ExportAs returns the file's bytes; local files are already plain text or CSV.
func (s *Source) ExportAs(_ context.Context, fileID, targetMimeType string) ([]byte, error) {
	switch targetMimeType {
	case domain.MimeTextPlain, domain.MimeTextCSV:
		return s.read(fileID)
	default:
		return nil, fmt.Errorf("export %s: unsupported target %s", fileID, targetMimeType)
	}
}

func (s *Source) FetchMedia(_ context.Context, fileID string) ([]byte, error) {
	return s.read(fileID)
}

func (s *Source) read(fileID string) ([]byte, error) {
	f, err := s.root.Open(filepath.FromSlash(fileID))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, &fs.PathError{Op: "read", Path: fileID, Err: fs.ErrInvalid}
	}
	return io.ReadAll(f)
}

func itemFor(id, name string, dir bool) domain.FolderItem {
	if dir {
		return domain.FolderItem{ID: id, Name: name, MimeType: domain.MimeFolder}
	}
	return domain.FolderItem{ID: id, Name: name, MimeType: mimeFor(name)}
}

func mimeFor(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".txt", ".md":
		return domain.MimeDocument
	case ".csv":
		return domain.MimeSpreadsheet
	case ".pdf":
		return domain.MimePDF
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}
