package orders

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/robot-order-cli/internal/config"
)

// Source downloads the order CSV and decodes it.
type Source struct {
	url       string
	localPath string
	overwrite bool
	client    *http.Client
	logger    *zap.Logger
}

// NewSource creates a Source from the orders section of the config.
// A nil client gets a default one bounded by timeout.
func NewSource(cfg config.OrdersConfig, timeout time.Duration, client *http.Client, logger *zap.Logger) *Source {
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &Source{
		url:       cfg.CSVURL,
		localPath: cfg.LocalPath,
		overwrite: cfg.Overwrite,
		client:    client,
		logger:    logger.Named("orders"),
	}
}

// Fetch downloads the CSV (unless a local copy exists and overwrite is off)
// and returns the decoded orders in file order.
func (s *Source) Fetch(ctx context.Context) ([]Order, error) {
	if err := s.Download(ctx); err != nil {
		return nil, err
	}

	records, err := ParseFile(s.localPath)
	if err != nil {
		return nil, fmt.Errorf("failed to parse orders from %s: %w", s.localPath, err)
	}
	s.logger.Info("Orders loaded.", zap.String("path", s.localPath), zap.Int("count", len(records)))
	return records, nil
}

// Download writes the remote CSV to the local path. The file is written to a
// temporary sibling first so a failed download never leaves a truncated CSV.
func (s *Source) Download(ctx context.Context) error {
	if !s.overwrite {
		if _, err := os.Stat(s.localPath); err == nil {
			s.logger.Info("Reusing existing order file.", zap.String("path", s.localPath))
			return nil
		}
	}

	s.logger.Info("Downloading orders.", zap.String("url", s.url), zap.String("path", s.localPath))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return fmt.Errorf("failed to build request for %s: %w", s.url, err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download %s: %w", s.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("failed to download %s: unexpected status %s", s.url, resp.Status)
	}

	dir := filepath.Dir(s.localPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", s.localPath, err)
	}
	tmp, err := os.CreateTemp(dir, ".orders-*.csv")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	written, err := io.Copy(tmp, resp.Body)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", s.localPath, err)
	}
	if err := os.Rename(tmp.Name(), s.localPath); err != nil {
		return fmt.Errorf("failed to move download into place: %w", err)
	}

	s.logger.Debug("Order file written.", zap.Int64("bytes", written))
	return nil
}
