package localfs

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"driverag/internal/domain"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func newSource(t *testing.T) *Source {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "b.txt", "bee")
	writeFile(t, dir, "a.csv", "x,y\n1,2\n")
	writeFile(t, dir, "img.png", "png")
	writeFile(t, dir, ".hidden.txt", "secret")
	writeFile(t, dir, "nested/c.md", "# c")
	src, err := Open(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = src.Close() })
	return src
}

func TestListChildren(t *testing.T) {
	src := newSource(t)

	items, err := src.ListChildren(context.Background(), RootID)
	require.NoError(t, err)

	assert.Equal(t, []domain.FolderItem{
		{ID: "a.csv", Name: "a.csv", MimeType: domain.MimeSpreadsheet},
		{ID: "b.txt", Name: "b.txt", MimeType: domain.MimeDocument},
		{ID: "img.png", Name: "img.png", MimeType: "image/png"},
		{ID: "nested", Name: "nested", MimeType: domain.MimeFolder},
	}, items)

	nested, err := src.ListChildren(context.Background(), "nested")
	require.NoError(t, err)
	require.Len(t, nested, 1)
	assert.Equal(t, "nested/c.md", nested[0].ID)
}

func TestExportAndMetadata(t *testing.T) {
	src := newSource(t)
	ctx := context.Background()

	data, err := src.ExportAs(ctx, "nested/c.md", domain.MimeTextPlain)
	require.NoError(t, err)
	assert.Equal(t, "# c", string(data))

	meta, err := src.GetMetadata(ctx, "a.csv")
	require.NoError(t, err)
	assert.Equal(t, domain.KindSpreadsheet, meta.Kind())

	_, err = src.ExportAs(ctx, "b.txt", "application/zip")
	assert.Error(t, err)

	_, err = src.FetchMedia(ctx, "nested")
	assert.Error(t, err)
}

func TestPathsCannotEscapeRoot(t *testing.T) {
	src := newSource(t)

	_, err := src.ListChildren(context.Background(), "../")
	assert.Error(t, err)
	_, err = src.FetchMedia(context.Background(), "../../etc/passwd")
	assert.Error(t, err)
}
