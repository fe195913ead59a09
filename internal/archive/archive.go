// Package archive bundles the PDFs produced by a run into a single ZIP file.
package archive

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/robot-order-cli/internal/artifacts"
	"github.com/xkilldash9x/robot-order-cli/internal/config"
)

// ErrNoDocuments signals that the source directory holds no PDFs; no archive is written.
var ErrNoDocuments = errors.New("no PDF documents to archive")

// Archiver zips the PDFs of one directory.
type Archiver struct {
	sourceDir   string
	archivePath string
	scope       string
	logger      *zap.Logger
}

// New creates an Archiver reading sourceDir and writing archivePath.
// scope is config.ArchiveScopeAll or config.ArchiveScopeComplete.
func New(sourceDir, archivePath, scope string, logger *zap.Logger) *Archiver {
	return &Archiver{
		sourceDir:   sourceDir,
		archivePath: archivePath,
		scope:       scope,
		logger:      logger.Named("archiver"),
	}
}

// NewFromConfig wires an Archiver to the configured output layout.
func NewFromConfig(cfg config.OutputConfig, logger *zap.Logger) *Archiver {
	layout := artifacts.NewLayout(cfg.Dir, cfg.ReceiptsSubdir)
	return New(layout.Dir, filepath.Join(cfg.Dir, cfg.ArchiveName), cfg.ArchiveScope, logger)
}

// Path is where the archive is written.
func (a *Archiver) Path() string { return a.archivePath }

// Collect lists, sorted by name, the PDFs directly inside the source directory
// that fall within the archiver's scope. Subdirectories are not descended.
func (a *Archiver) Collect() ([]string, error) {
	entries, err := os.ReadDir(a.sourceDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list %s: %w", a.sourceDir, err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		name := entry.Name()
		if !strings.EqualFold(filepath.Ext(name), ".pdf") {
			continue
		}
		if a.scope == config.ArchiveScopeComplete && !artifacts.IsComplete(name) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Create writes the archive and returns its path. With nothing to archive it
// returns ErrNoDocuments and leaves the filesystem untouched. Any previous
// archive at the same path is replaced only once the new one is complete.
func (a *Archiver) Create(ctx context.Context) (string, error) {
	names, err := a.Collect()
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		a.logger.Warn("No PDF files found; skipping archive.", zap.String("dir", a.sourceDir))
		return "", ErrNoDocuments
	}

	a.logger.Info("Creating archive.", zap.String("archive", a.archivePath), zap.Int("files", len(names)))

	if err := os.MkdirAll(filepath.Dir(a.archivePath), 0o755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(a.archivePath), ".archive-*.zip")
	if err != nil {
		return "", fmt.Errorf("failed to create temp archive: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := a.writeZip(ctx, tmp, names); err != nil {
		tmp.Close()
		a.logger.Error("Failed to create archive.", zap.String("archive", a.archivePath), zap.Error(err))
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize archive: %w", err)
	}
	if err := os.Rename(tmp.Name(), a.archivePath); err != nil {
		return "", fmt.Errorf("failed to move archive into place: %w", err)
	}

	a.logger.Info("Archive created.", zap.String("archive", a.archivePath))
	return a.archivePath, nil
}

func (a *Archiver) writeZip(ctx context.Context, w io.Writer, names []string) error {
	zw := zip.NewWriter(w)
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			zw.Close()
			return err
		}
		a.logger.Debug("Adding file to archive.", zap.String("file", name))
		if err := addFile(zw, filepath.Join(a.sourceDir, name), name); err != nil {
			zw.Close()
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finish zip stream: %w", err)
	}
	return nil
}

// addFile stores src in the archive under its base name, deflate compressed.
func addFile(zw *zip.Writer, src, name string) error {
	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", name, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", name, err)
	}
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("failed to build zip header for %s: %w", name, err)
	}
	header.Name = name
	header.Method = zip.Deflate

	dst, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("failed to add %s: %w", name, err)
	}
	if _, err := io.Copy(dst, f); err != nil {
		return fmt.Errorf("failed to compress %s: %w", name, err)
	}
	return nil
}
