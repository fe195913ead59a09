package archive

import (
	"archive/zip"
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/robot-order-cli/internal/config"
)

func seed(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
}

func zipContents(t *testing.T, path string) map[string]string {
	t.Helper()
	r, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer r.Close()

	out := make(map[string]string)
	for _, f := range r.File {
		assert.Equal(t, zip.Deflate, f.Method)
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		out[f.Name] = string(data)
	}
	return out
}

func names(m map[string]string) []string {
	var out []string
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func newTestArchiver(t *testing.T, scope string) (*Archiver, string) {
	t.Helper()
	out := t.TempDir()
	cfg := config.OutputConfig{
		Dir:            out,
		ReceiptsSubdir: "receipt-order",
		ArchiveName:    "receipts.zip",
		ArchiveScope:   scope,
	}
	return NewFromConfig(cfg, zaptest.NewLogger(t)), filepath.Join(out, "receipt-order")
}

func TestCreate_AllScopeSweepsEveryPDF(t *testing.T) {
	a, dir := newTestArchiver(t, config.ArchiveScopeAll)
	seed(t, dir, map[string]string{
		"receipt-order-1.pdf":             "r1",
		"receipt-order-1-complete.pdf":    "c1",
		"receipt-order-2-complete.pdf":    "c2",
		"robot-preview-image-order-3.png": "png",
		"orders.csv":                      "csv",
	})
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.pdf"), 0o755))

	path, err := a.Create(context.Background())
	require.NoError(t, err)
	assert.Equal(t, a.Path(), path)

	contents := zipContents(t, path)
	assert.Equal(t, []string{"receipt-order-1-complete.pdf", "receipt-order-1.pdf", "receipt-order-2-complete.pdf"}, names(contents))
	assert.Equal(t, "c1", contents["receipt-order-1-complete.pdf"])
}

func TestCreate_CompleteScope(t *testing.T) {
	a, dir := newTestArchiver(t, config.ArchiveScopeComplete)
	seed(t, dir, map[string]string{
		"receipt-order-1.pdf":          "r1",
		"receipt-order-1-complete.pdf": "c1",
	})

	path, err := a.Create(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"receipt-order-1-complete.pdf"}, names(zipContents(t, path)))
}

func TestCreate_IsRepeatable(t *testing.T) {
	a, dir := newTestArchiver(t, config.ArchiveScopeAll)
	seed(t, dir, map[string]string{
		"receipt-order-1-complete.pdf": "c1",
		"receipt-order-2-complete.pdf": "c2",
	})

	first, err := a.Create(context.Background())
	require.NoError(t, err)
	firstNames := names(zipContents(t, first))

	second, err := a.Create(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, firstNames, names(zipContents(t, second)))
}

func TestCreate_NoDocuments(t *testing.T) {
	t.Run("empty directory", func(t *testing.T) {
		a, dir := newTestArchiver(t, config.ArchiveScopeAll)
		seed(t, dir, map[string]string{"robot-preview-image-order-1.png": "png"})

		path, err := a.Create(context.Background())
		assert.ErrorIs(t, err, ErrNoDocuments)
		assert.Empty(t, path)
		_, statErr := os.Stat(a.Path())
		assert.True(t, os.IsNotExist(statErr), "no zip may be created")
	})

	t.Run("missing directory", func(t *testing.T) {
		a, _ := newTestArchiver(t, config.ArchiveScopeAll)
		_, err := a.Create(context.Background())
		assert.ErrorIs(t, err, ErrNoDocuments)
	})

	t.Run("complete scope without merged files", func(t *testing.T) {
		a, dir := newTestArchiver(t, config.ArchiveScopeComplete)
		seed(t, dir, map[string]string{"receipt-order-1.pdf": "r1"})
		_, err := a.Create(context.Background())
		assert.ErrorIs(t, err, ErrNoDocuments)
	})
}

func TestCreate_CancelledKeepsPreviousArchive(t *testing.T) {
	a, dir := newTestArchiver(t, config.ArchiveScopeAll)
	seed(t, dir, map[string]string{"receipt-order-1-complete.pdf": "c1"})

	path, err := a.Create(context.Background())
	require.NoError(t, err)

	seed(t, dir, map[string]string{"receipt-order-2-complete.pdf": "c2"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = a.Create(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"receipt-order-1-complete.pdf"}, names(zipContents(t, path)))

	leftovers, err := filepath.Glob(filepath.Join(filepath.Dir(path), ".archive-*.zip"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}
