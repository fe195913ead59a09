// Package artifacts names every file the order pipeline produces. Stages hand
// each other an Artifact (order number plus kind) and resolve it to a path
// through a Layout, so no stage ever builds or parses a filename by hand.
package artifacts

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Kind identifies the role a file plays for a single order.
type Kind int

const (
	// RobotPreviewPNG is the screenshot of the rendered robot before submission.
	RobotPreviewPNG Kind = iota
	// RobotPreviewPDF is the preview screenshot converted to a one page PDF.
	RobotPreviewPDF
	// ReceiptPNG is the screenshot of the confirmation receipt.
	ReceiptPNG
	// ReceiptPDF is the receipt screenshot converted to a one page PDF.
	ReceiptPDF
	// CompletePDF is the receipt PDF with the preview page appended.
	CompletePDF
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case RobotPreviewPNG:
		return "robot-preview-png"
	case RobotPreviewPDF:
		return "robot-preview-pdf"
	case ReceiptPNG:
		return "receipt-png"
	case ReceiptPDF:
		return "receipt-pdf"
	case CompletePDF:
		return "complete-pdf"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// CompleteSuffix terminates the filename of every final merged PDF.
const CompleteSuffix = "-complete.pdf"

// Artifact is the typed correlation key passed between pipeline stages.
type Artifact struct {
	OrderNumber string
	Kind        Kind
}

// New returns the artifact of the given kind for an order.
func New(orderNumber string, kind Kind) Artifact {
	return Artifact{OrderNumber: orderNumber, Kind: kind}
}

// As returns the artifact of another kind for the same order.
func (a Artifact) As(kind Kind) Artifact {
	return Artifact{OrderNumber: a.OrderNumber, Kind: kind}
}

// FileName returns the conventional base name for the artifact.
func (a Artifact) FileName() string {
	switch a.Kind {
	case RobotPreviewPNG:
		return "robot-preview-image-order-" + a.OrderNumber + ".png"
	case RobotPreviewPDF:
		return "robot-preview-image-order-" + a.OrderNumber + ".pdf"
	case ReceiptPNG:
		return "receipt-order-" + a.OrderNumber + ".png"
	case ReceiptPDF:
		return "receipt-order-" + a.OrderNumber + ".pdf"
	case CompletePDF:
		return "receipt-order-" + a.OrderNumber + CompleteSuffix
	default:
		return fmt.Sprintf("order-%s-%s", a.OrderNumber, a.Kind)
	}
}

// Layout roots artifacts in a directory on disk.
type Layout struct {
	// Dir is the directory holding every per-order artifact,
	// e.g. "output/receipt-order".
	Dir string
}

// NewLayout returns a Layout for <outputDir>/<receiptsSubdir>.
func NewLayout(outputDir, receiptsSubdir string) Layout {
	return Layout{Dir: filepath.Join(outputDir, receiptsSubdir)}
}

// Path resolves an artifact to its location on disk.
func (l Layout) Path(a Artifact) string {
	return filepath.Join(l.Dir, a.FileName())
}

// EnsureDir creates the artifact directory if it does not exist yet.
func (l Layout) EnsureDir() error {
	if err := os.MkdirAll(l.Dir, 0o755); err != nil {
		return fmt.Errorf("failed to create artifact directory %s: %w", l.Dir, err)
	}
	return nil
}

// Exists reports whether the artifact is present on disk.
func (l Layout) Exists(a Artifact) bool {
	_, err := os.Stat(l.Path(a))
	return err == nil
}

// Remove deletes the artifact. A missing file is not an error.
func (l Layout) Remove(a Artifact) error {
	if err := os.Remove(l.Path(a)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove %s: %w", a.FileName(), err)
	}
	return nil
}

// IsComplete reports whether a base filename names a final merged PDF.
func IsComplete(name string) bool {
	return strings.HasSuffix(name, CompleteSuffix)
}
