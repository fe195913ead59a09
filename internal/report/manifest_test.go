package report

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManifest_Lifecycle(t *testing.T) {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	m := NewManifest(start)

	_, err := uuid.Parse(m.RunID)
	require.NoError(t, err, "run id is a UUID")
	assert.NotEqual(t, m.RunID, NewManifest(start).RunID)

	m.SetOrdersTotal(3)
	m.Add(OrderResult{OrderNumber: "1", Status: StatusCompleted, SubmitAttempts: 2, ConfirmationID: "RSB-1"})
	m.Add(OrderResult{OrderNumber: "2", Status: StatusCompleted, SubmitAttempts: 1})
	m.Add(OrderResult{OrderNumber: "3", Status: StatusFailed, SubmitAttempts: 5, Error: "retries exhausted"})
	m.RecordArchive("", errors.New("no PDF documents to archive"))
	m.Finish(start.Add(time.Minute), errors.New("order 3 failed"))

	assert.Equal(t, 2, m.Completed())
	assert.Equal(t, "order 3 failed", m.Error)
	assert.Equal(t, "no PDF documents to archive", m.ArchiveError)
	assert.Empty(t, m.ArchivePath)
	require.NotNil(t, m.FinishedAt)
	assert.True(t, start.Add(time.Minute).Equal(*m.FinishedAt))
}

func TestManifest_FinishedAtOnlyAfterFinish(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run-manifest.json")
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	m := NewManifest(start)

	require.NoError(t, m.Write(path))
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), `"finished_at"`, "an unfinished run has no end time")

	m.Finish(start.Add(90*time.Second), nil)
	require.NoError(t, m.Write(path))
	loaded, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, loaded.FinishedAt)
	assert.True(t, start.Add(90*time.Second).Equal(*loaded.FinishedAt))
}

func TestManifest_WriteAndLoad(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "output")
	path := filepath.Join(dir, "run-manifest.json")

	m := NewManifest(time.Now())
	m.SetOrdersTotal(1)
	m.Add(OrderResult{
		OrderNumber:    "1",
		Status:         StatusCompleted,
		SubmitAttempts: 1,
		CompletePDF:    "output/receipt-order/receipt-order-1-complete.pdf",
		Duration:       "2s",
	})
	m.RecordArchive("output/receipts.zip", nil)
	m.Finish(time.Now(), nil)

	require.NoError(t, m.Write(path), "missing directories are created")

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, m.RunID, loaded.RunID)
	assert.Equal(t, m.Orders, loaded.Orders)
	assert.Equal(t, "output/receipts.zip", loaded.ArchivePath)
	assert.Empty(t, loaded.Error)
	assert.Empty(t, loaded.ArchiveError)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"submit_attempts": 1`)
	assert.NotContains(t, string(raw), `"confirmation_id"`, "empty optional fields are omitted")

	// Rewriting replaces the file and leaves no temp files behind.
	m.Add(OrderResult{OrderNumber: "2", Status: StatusFailed})
	require.NoError(t, m.Write(path))
	loaded, err = Load(path)
	require.NoError(t, err)
	assert.Len(t, loaded.Orders, 2)

	leftovers, err := filepath.Glob(filepath.Join(dir, ".manifest-*.json"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{not json"), 0o644))
	_, err = Load(bad)
	assert.Error(t, err)
}
