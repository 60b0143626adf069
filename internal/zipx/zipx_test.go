package zipx

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeZip(t *testing.T, files map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "site.zip")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

func TestExtract(t *testing.T) {
	zipPath := makeZip(t, map[string]string{
		"index.html":      "<html></html>",
		"assets/logo.png": "png",
		"css/site.css":    "body{}",
	})
	dest := t.TempDir()

	n, err := Extract(context.Background(), zipPath, dest)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	data, err := os.ReadFile(filepath.Join(dest, "assets", "logo.png"))
	require.NoError(t, err)
	assert.Equal(t, "png", string(data))
}

func TestExtractRejectsEscapingPaths(t *testing.T) {
	zipPath := makeZip(t, map[string]string{
		"../evil.txt": "x",
	})
	dest := t.TempDir()

	_, err := Extract(context.Background(), zipPath, dest)
	assert.ErrorContains(t, err, "illegal path")
	assert.NoFileExists(t, filepath.Join(filepath.Dir(dest), "evil.txt"))
}

func TestExtractCancelled(t *testing.T) {
	zipPath := makeZip(t, map[string]string{"a.txt": "a"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Extract(ctx, zipPath, t.TempDir())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDetectSiteRoot(t *testing.T) {
	t.Run("nested single directory", func(t *testing.T) {
		dir := t.TempDir()
		nested := filepath.Join(dir, "mysite")
		require.NoError(t, os.MkdirAll(nested, 0755))

		root, err := DetectSiteRoot(dir)
		require.NoError(t, err)
		assert.Equal(t, nested, root)
	})

	t.Run("flat layout", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("x"), 0644))

		root, err := DetectSiteRoot(dir)
		require.NoError(t, err)
		assert.Equal(t, dir, root)
	})

	t.Run("single file is not a root", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("x"), 0644))

		root, err := DetectSiteRoot(dir)
		require.NoError(t, err)
		assert.Equal(t, dir, root)
	})
}

func TestFindIndex(t *testing.T) {
	t.Run("at root", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("x"), 0644))

		abs, rel, err := FindIndex(dir)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "index.html"), abs)
		assert.Equal(t, "index.html", rel)
	})

	t.Run("nested", func(t *testing.T) {
		dir := t.TempDir()
		sub := filepath.Join(dir, "docs", "en")
		require.NoError(t, os.MkdirAll(sub, 0755))
		require.NoError(t, os.WriteFile(filepath.Join(sub, "index.html"), []byte("x"), 0644))

		_, rel, err := FindIndex(dir)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join("docs", "en", "index.html"), rel)
	})

	t.Run("absent", func(t *testing.T) {
		_, _, err := FindIndex(t.TempDir())
		assert.ErrorIs(t, err, ErrNoIndex)
	})
}

func TestSiteTitle(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "index.html")
	require.NoError(t, os.WriteFile(p,
		[]byte("<html><head><title>  My Site </title></head><body></body></html>"), 0644))

	assert.Equal(t, "My Site", SiteTitle(p))
	assert.Equal(t, "", SiteTitle(filepath.Join(dir, "missing.html")))
}
