package robotorder

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/xkilldash9x/robot-order-cli/internal/artifacts"
	"github.com/xkilldash9x/robot-order-cli/internal/config"
	"github.com/xkilldash9x/robot-order-cli/internal/pdfdoc"
)

// Receipt is the captured confirmation of one order.
type Receipt struct {
	// Artifact is the receipt PDF.
	Artifact       artifacts.Artifact
	ConfirmationID string
}

// ReceiptCapturer screenshots the receipt shown after a successful order and
// stores it as a PDF.
type ReceiptCapturer struct {
	page            Page
	converter       DocumentConverter
	selectors       config.SelectorsConfig
	layout          artifacts.Layout
	keepScreenshots bool
	logger          *zap.Logger
}

// NewReceiptCapturer creates a ReceiptCapturer. With keepScreenshots unset
// the receipt PNG is removed once its PDF exists.
func NewReceiptCapturer(page Page, converter DocumentConverter, selectors config.SelectorsConfig, layout artifacts.Layout, keepScreenshots bool, logger *zap.Logger) *ReceiptCapturer {
	return &ReceiptCapturer{
		page:            page,
		converter:       converter,
		selectors:       selectors,
		layout:          layout,
		keepScreenshots: keepScreenshots,
		logger:          logger.Named("receipt"),
	}
}

// Capture turns the visible receipt of orderNumber into its receipt PDF.
func (c *ReceiptCapturer) Capture(ctx context.Context, orderNumber string) (Receipt, error) {
	log := c.logger.With(zap.String("order", orderNumber))
	receiptPNG := artifacts.New(orderNumber, artifacts.ReceiptPNG)
	receiptPDF := receiptPNG.As(artifacts.ReceiptPDF)

	if err := c.page.WaitVisible(ctx, c.selectors.Receipt); err != nil {
		return Receipt{}, fmt.Errorf("receipt did not appear: %w", err)
	}
	png, err := c.page.Screenshot(ctx, c.selectors.Receipt)
	if err != nil {
		return Receipt{}, fmt.Errorf("failed to capture receipt: %w", err)
	}
	markup, err := c.page.OuterHTML(ctx, c.selectors.Receipt)
	if err != nil {
		log.Warn("Could not read receipt markup.", zap.Error(err))
	}

	if err := c.layout.EnsureDir(); err != nil {
		return Receipt{}, err
	}
	pngPath := c.layout.Path(receiptPNG)
	if err := os.WriteFile(pngPath, png, 0o644); err != nil {
		return Receipt{}, fmt.Errorf("failed to save receipt screenshot: %w", err)
	}

	if _, format, err := pdfdoc.ImageInfo(pngPath); err != nil {
		log.Error("Receipt screenshot is not a readable image.", zap.Error(err))
		return Receipt{}, err
	} else if format != "png" {
		return Receipt{}, fmt.Errorf("receipt screenshot for order %s is %s, expected png", orderNumber, format)
	}

	pdfPath := c.layout.Path(receiptPDF)
	if err := c.converter.ImageToPDF(pngPath, pdfPath); err != nil {
		log.Error("Failed to convert receipt to PDF.", zap.Error(err))
		return Receipt{}, fmt.Errorf("failed to convert receipt for order %s: %w", orderNumber, err)
	}
	if err := c.converter.Normalize(pdfPath); err != nil {
		log.Error("Failed to normalize receipt PDF.", zap.Error(err))
		return Receipt{}, fmt.Errorf("failed to normalize receipt for order %s: %w", orderNumber, err)
	}

	if !c.keepScreenshots {
		if err := c.layout.Remove(receiptPNG); err != nil {
			log.Warn("Failed to remove receipt screenshot.", zap.Error(err))
		}
	}

	receipt := Receipt{Artifact: receiptPDF}
	if markup != "" {
		id, err := ConfirmationID(markup, c.selectors.ReceiptID)
		if err != nil {
			log.Warn("No confirmation id on receipt.", zap.Error(err))
		}
		receipt.ConfirmationID = id
	}

	log.Info("Receipt stored.", zap.String("path", pdfPath), zap.String("confirmation_id", receipt.ConfirmationID))
	return receipt, nil
}

// ConfirmationID extracts the order confirmation id from receipt markup using
// a CSS selector.
func ConfirmationID(markup, selector string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return "", fmt.Errorf("failed to parse receipt markup: %w", err)
	}
	id := strings.TrimSpace(doc.Find(selector).First().Text())
	if id == "" {
		return "", fmt.Errorf("no element matches %q", selector)
	}
	return id, nil
}
