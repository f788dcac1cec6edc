// Package drive implements the folder source on top of the Google Drive v3 API.
package drive

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/oauth2/google"
	drive "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"driverag/internal/domain"
)

const listFields = "nextPageToken, files(id, name, mimeType)"

// Source reads folders and files through a Drive service.
type Source struct {
	files *drive.FilesService
}

// NewSource wraps an existing Drive service.
func NewSource(svc *drive.Service) *Source {
	return &Source{files: svc.Files}
}

// NewFromCredentialsFile builds a read-only Drive source from a service-account
// JSON key file. Extra options are appended after the credentials.
func NewFromCredentialsFile(ctx context.Context, path string, opts ...option.ClientOption) (*Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read credentials %s: %w", path, err)
	}
	creds, err := google.CredentialsFromJSON(ctx, data, drive.DriveReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("parse credentials %s: %w", path, err)
	}
	svc, err := drive.NewService(ctx, append([]option.ClientOption{option.WithCredentials(creds)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}
	return NewSource(svc), nil
}

// ListChildren returns the immediate, non-trashed children of folderID,
// following result pages.
func (s *Source) ListChildren(ctx context.Context, folderID string) ([]domain.FolderItem, error) {
	q := fmt.Sprintf("'%s' in parents and trashed = false", escapeQuery(folderID))
	var items []domain.FolderItem
	pageToken := ""
	for {
		call := s.files.List().Q(q).Fields(listFields).Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		res, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", folderID, err)
		}
		for _, f := range res.Files {
			items = append(items, domain.FolderItem{ID: f.Id, Name: f.Name, MimeType: f.MimeType})
		}
		if res.NextPageToken == "" {
			return items, nil
		}
		pageToken = res.NextPageToken
	}
}

func (s *Source) GetMetadata(ctx context.Context, fileID string) (domain.FolderItem, error) {
	f, err := s.files.Get(fileID).Fields("id, name, mimeType").Context(ctx).Do()
	if err != nil {
		return domain.FolderItem{}, fmt.Errorf("get %s: %w", fileID, err)
	}
	return domain.FolderItem{ID: f.Id, Name: f.Name, MimeType: f.MimeType}, nil
}

func (s *Source) ExportAs(ctx context.Context, fileID, targetMimeType string) ([]byte, error) {
	resp, err := s.files.Export(fileID, targetMimeType).Context(ctx).Download()
	if err != nil {
		return nil, fmt.Errorf("export %s: %w", fileID, err)
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

func (s *Source) FetchMedia(ctx context.Context, fileID string) ([]byte, error) {
	resp, err := s.files.Get(fileID).Context(ctx).Download()
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", fileID, err)
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

func escapeQuery(s string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s)
}
