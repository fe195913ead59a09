// Package report records what a run did: which orders went through, how
// many submit attempts each took, the documents produced and how the run ended.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	json "github.com/json-iterator/go"
)

// OrderStatus is the outcome of a single order.
type OrderStatus string

const (
	StatusCompleted OrderStatus = "completed"
	StatusFailed    OrderStatus = "failed"
)

// OrderResult is one order's entry in the manifest.
type OrderResult struct {
	OrderNumber    string      `json:"order_number"`
	Status         OrderStatus `json:"status"`
	SubmitAttempts int         `json:"submit_attempts"`
	ConfirmationID string      `json:"confirmation_id,omitempty"`
	ReceiptPDF     string      `json:"receipt_pdf,omitempty"`
	CompletePDF    string      `json:"complete_pdf,omitempty"`
	Error          string      `json:"error,omitempty"`
	Duration       string      `json:"duration"`
}

// Manifest summarizes one run.
type Manifest struct {
	RunID        string        `json:"run_id"`
	StartedAt    time.Time     `json:"started_at"`
	FinishedAt   *time.Time    `json:"finished_at,omitempty"`
	OrdersTotal  int           `json:"orders_total"`
	Orders       []OrderResult `json:"orders"`
	ArchivePath  string        `json:"archive_path,omitempty"`
	ArchiveError string        `json:"archive_error,omitempty"`
	Error        string        `json:"error,omitempty"`

	mu sync.Mutex
}

// NewManifest starts a manifest with a fresh run id.
func NewManifest(startedAt time.Time) *Manifest {
	return &Manifest{
		RunID:     uuid.New().String(),
		StartedAt: startedAt.UTC(),
		Orders:    []OrderResult{},
	}
}

// SetOrdersTotal records how many orders the CSV held.
func (m *Manifest) SetOrdersTotal(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.OrdersTotal = n
}

// Add appends the outcome of one order.
func (m *Manifest) Add(result OrderResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Orders = append(m.Orders, result)
}

// RecordArchive stores the archive outcome. A nil error with an empty path
// means the archive step did not run.
func (m *Manifest) RecordArchive(path string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ArchivePath = path
	if err != nil {
		m.ArchiveError = err.Error()
	}
}

// Finish stamps the end time and the error that ended the run, if any.
func (m *Manifest) Finish(finishedAt time.Time, runErr error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	finished := finishedAt.UTC()
	m.FinishedAt = &finished
	if runErr != nil {
		m.Error = runErr.Error()
	}
}

// Completed counts the orders that produced a complete PDF.
func (m *Manifest) Completed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, o := range m.Orders {
		if o.Status == StatusCompleted {
			n++
		}
	}
	return n
}

// Write serializes the manifest as indented JSON at path. The file is
// replaced atomically so a reader never sees a partial manifest.
func (m *Manifest) Write(path string) error {
	m.mu.Lock()
	data, err := json.MarshalIndent(m, "", "  ")
	m.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create manifest directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".manifest-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp manifest: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move manifest into place: %w", err)
	}
	return nil
}

// Load reads a manifest written by Write.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	m := &Manifest{}
	if err := json.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("failed to decode manifest %s: %w", path, err)
	}
	return m, nil
}
