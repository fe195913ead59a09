package robotorder

import (
	"fmt"
	"io/fs"

	"go.uber.org/zap"

	"github.com/xkilldash9x/robot-order-cli/internal/artifacts"
)

// Merger appends the robot preview to the receipt PDF.
type Merger struct {
	converter DocumentConverter
	layout    artifacts.Layout
	logger    *zap.Logger
}

// NewMerger creates a Merger working inside layout.
func NewMerger(converter DocumentConverter, layout artifacts.Layout, logger *zap.Logger) *Merger {
	return &Merger{
		converter: converter,
		layout:    layout,
		logger:    logger.Named("merger"),
	}
}

// Merge converts the preview screenshot to PDF and writes the complete PDF:
// the receipt page followed by the preview page. The intermediate preview
// files are removed afterwards; the receipt PDF is kept.
func (m *Merger) Merge(preview, receipt artifacts.Artifact) (artifacts.Artifact, error) {
	if preview.OrderNumber != receipt.OrderNumber {
		return artifacts.Artifact{}, fmt.Errorf("preview of order %s cannot be merged with receipt of order %s",
			preview.OrderNumber, receipt.OrderNumber)
	}
	log := m.logger.With(zap.String("order", receipt.OrderNumber))

	previewPNG := preview.As(artifacts.RobotPreviewPNG)
	previewPDF := preview.As(artifacts.RobotPreviewPDF)
	receiptPDF := receipt.As(artifacts.ReceiptPDF)
	complete := receipt.As(artifacts.CompletePDF)

	if !m.layout.Exists(previewPNG) {
		log.Error("Preview screenshot missing; skipping merge.", zap.String("path", m.layout.Path(previewPNG)))
		return artifacts.Artifact{}, fmt.Errorf("preview screenshot %s: %w", previewPNG.FileName(), fs.ErrNotExist)
	}

	if err := m.converter.ImageToPDF(m.layout.Path(previewPNG), m.layout.Path(previewPDF)); err != nil {
		log.Error("Failed to convert preview to PDF.", zap.Error(err))
		return artifacts.Artifact{}, fmt.Errorf("failed to convert preview for order %s: %w", preview.OrderNumber, err)
	}

	inputs := []string{m.layout.Path(receiptPDF), m.layout.Path(previewPDF)}
	if err := m.converter.Merge(inputs, m.layout.Path(complete)); err != nil {
		log.Error("Failed to merge receipt and preview.", zap.Error(err))
		return artifacts.Artifact{}, fmt.Errorf("failed to merge documents for order %s: %w", receipt.OrderNumber, err)
	}

	for _, tmp := range []artifacts.Artifact{previewPNG, previewPDF} {
		if err := m.layout.Remove(tmp); err != nil {
			log.Warn("Failed to remove intermediate file.", zap.Error(err))
		}
	}

	log.Info("Complete PDF written.", zap.String("path", m.layout.Path(complete)))
	return complete, nil
}
