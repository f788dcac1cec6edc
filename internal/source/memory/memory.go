// Package memory provides an in-memory folder source.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"driverag/internal/domain"
)

// ErrNotFound is returned for ids the source does not know.
var ErrNotFound = errors.New("item not found")

// Source is a FolderSource backed by maps. Children keep insertion order.
type Source struct {
	mu       sync.RWMutex
	items    map[string]domain.FolderItem
	children map[string][]string
	content  map[string][]byte
	lists    map[string]int
}

func NewSource() *Source {
	return &Source{
		items:    make(map[string]domain.FolderItem),
		children: make(map[string][]string),
		content:  make(map[string][]byte),
		lists:    make(map[string]int),
	}
}

// AddFolder registers a folder under parentID. An empty parentID creates a root.
func (s *Source) AddFolder(parentID, id, name string) {
	s.add(parentID, domain.FolderItem{ID: id, Name: name, MimeType: domain.MimeFolder}, nil)
}

// AddFile registers a file under parentID with the given raw content.
func (s *Source) AddFile(parentID string, item domain.FolderItem, content []byte) {
	s.add(parentID, item, content)
}

// Link adds an existing item as a child of parentID as well.
func (s *Source) Link(parentID, childID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.children[parentID] = append(s.children[parentID], childID)
}

// ListCount reports how many times folderID was listed.
func (s *Source) ListCount(folderID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lists[folderID]
}

func (s *Source) add(parentID string, item domain.FolderItem, content []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[item.ID] = item
	if content != nil {
		s.content[item.ID] = content
	}
	if parentID != "" {
		s.children[parentID] = append(s.children[parentID], item.ID)
	}
}

func (s *Source) ListChildren(ctx context.Context, folderID string) ([]domain.FolderItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[folderID]; !ok {
		return nil, fmt.Errorf("folder %s: %w", folderID, ErrNotFound)
	}
	s.lists[folderID]++
	ids := s.children[folderID]
	out := make([]domain.FolderItem, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.items[id])
	}
	return out, nil
}

func (s *Source) GetMetadata(_ context.Context, fileID string) (domain.FolderItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[fileID]
	if !ok {
		return domain.FolderItem{}, fmt.Errorf("file %s: %w", fileID, ErrNotFound)
	}
	return item, nil
}

// ExportAs returns the stored content of native documents; the target mime
// type is not converted.
func (s *Source) ExportAs(_ context.Context, fileID, _ string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[fileID]
	if !ok {
		return nil, fmt.Errorf("file %s: %w", fileID, ErrNotFound)
	}
	switch item.Kind() {
	case domain.KindDocument, domain.KindSpreadsheet, domain.KindPresentation:
		return s.content[fileID], nil
	default:
		return nil, fmt.Errorf("file %s of type %s cannot be exported", fileID, item.MimeType)
	}
}

func (s *Source) FetchMedia(_ context.Context, fileID string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.content[fileID]
	if !ok {
		return nil, fmt.Errorf("file %s: %w", fileID, ErrNotFound)
	}
	return data, nil
}
