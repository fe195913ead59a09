// Package pdfdoc converts screenshots to PDF documents and merges them, backed by pdfcpu.
package pdfdoc

import (
	"errors"
	"fmt"
	"image"
	_ "image/png" // register the PNG decoder for DecodeConfig
	"os"
	"path/filepath"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// ErrNoInputs is returned when Merge is called without any input documents.
var ErrNoInputs = errors.New("no input documents")

var disableConfigDir sync.Once

// Converter implements the document operations the order pipeline needs.
type Converter struct {
	conf *model.Configuration
}

// NewConverter returns a Converter using relaxed validation, which tolerates
// the minor PDF standard deviations common in generated files.
func NewConverter() *Converter {
	// pdfcpu otherwise creates a config directory under the user's home.
	disableConfigDir.Do(api.DisableConfigDir)

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &Converter{conf: conf}
}

// ImageInfo decodes the header of an image file and returns its dimensions and format.
func ImageInfo(path string) (image.Config, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return image.Config{}, "", fmt.Errorf("failed to open image %s: %w", path, err)
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return image.Config{}, "", fmt.Errorf("failed to decode image %s: %w", path, err)
	}
	return cfg, format, nil
}

// ImageToPDF writes a single page PDF to pdfPath whose page matches the image
// dimensions. An existing pdfPath is replaced rather than appended to.
func (c *Converter) ImageToPDF(imagePath, pdfPath string) error {
	if _, _, err := ImageInfo(imagePath); err != nil {
		return err
	}
	if err := removeIfExists(pdfPath); err != nil {
		return err
	}

	imp := pdfcpu.DefaultImportConfig()
	imp.Pos = types.Full
	if err := api.ImportImagesFile([]string{imagePath}, pdfPath, imp, c.conf); err != nil {
		return fmt.Errorf("failed to convert %s to PDF: %w", filepath.Base(imagePath), err)
	}
	return nil
}

// Normalize rewrites a PDF through pdfcpu's optimizer in place. The rewrite
// happens in a sibling temp file so the original survives a failure.
func (c *Converter) Normalize(pdfPath string) error {
	tmp := pdfPath + ".tmp"
	if err := api.OptimizeFile(pdfPath, tmp, c.conf); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to normalize %s: %w", filepath.Base(pdfPath), err)
	}
	if err := os.Rename(tmp, pdfPath); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace %s: %w", filepath.Base(pdfPath), err)
	}
	return nil
}

// Merge concatenates inputs, in order, into a new document at outPath.
func (c *Converter) Merge(inputs []string, outPath string) error {
	if len(inputs) == 0 {
		return ErrNoInputs
	}
	for _, in := range inputs {
		if _, err := os.Stat(in); err != nil {
			return fmt.Errorf("merge input %s: %w", filepath.Base(in), err)
		}
	}
	if err := removeIfExists(outPath); err != nil {
		return err
	}
	if err := api.MergeCreateFile(inputs, outPath, false, c.conf); err != nil {
		return fmt.Errorf("failed to merge into %s: %w", filepath.Base(outPath), err)
	}
	return nil
}

// PageCount returns the number of pages of a PDF file.
func (c *Converter) PageCount(pdfPath string) (int, error) {
	n, err := api.PageCountFile(pdfPath)
	if err != nil {
		return 0, fmt.Errorf("failed to count pages of %s: %w", filepath.Base(pdfPath), err)
	}
	return n, nil
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove existing %s: %w", path, err)
	}
	return nil
}
