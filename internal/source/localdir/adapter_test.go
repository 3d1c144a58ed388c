package localdir

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestAdapterDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.png"), "x")
	writeFile(t, filepath.Join(dir, "b.JPG"), "x")
	writeFile(t, filepath.Join(dir, "notes.txt"), "x")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.png"), 0o755))

	a := NewAdapter(dir)
	items, next, err := a.FetchBatch(context.Background(), "", 1)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, filepath.Join(dir, "a.png"), items[0].LocalPath)
	assert.Equal(t, "1", next)

	items, next, err = a.FetchBatch(context.Background(), next, 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, filepath.Join(dir, "b.JPG"), items[0].LocalPath)
	assert.Empty(t, next)
}

func TestAdapterManifest(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "one.png"), "x")
	writeFile(t, filepath.Join(dir, ManifestFileName), `{"content_id":"f2","url":"https://example.com/2.png"}
not json
{"content_id":"f1","filename":"one.png"}
{"content_id":"f3","filename":"missing.png"}
`)

	items, next, err := NewAdapter(dir).FetchBatch(context.Background(), "", 10)
	require.NoError(t, err)
	assert.Empty(t, next)
	require.Len(t, items, 2)
	assert.Equal(t, "f1", items[0].ContentID)
	assert.Equal(t, filepath.Join(dir, "one.png"), items[0].LocalPath)
	assert.Equal(t, "f2", items[1].ContentID)
	assert.Equal(t, "https://example.com/2.png", items[1].URL)
}

func TestAdapterBadCursor(t *testing.T) {
	_, _, err := NewAdapter(t.TempDir()).FetchBatch(context.Background(), "abc", 10)
	assert.Error(t, err)
}

func TestAdapterManifestMissingFileFallsBackToURL(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ManifestFileName),
		`{"content_id":"m1","filename":"missing.png","url":"https://example.com/m1.png"}`+"\n")

	items, _, err := NewAdapter(dir).FetchBatch(context.Background(), "", 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Empty(t, items[0].LocalPath)
	assert.Equal(t, "https://example.com/m1.png", items[0].URL)
}
