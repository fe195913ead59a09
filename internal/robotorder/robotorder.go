// Package robotorder drives the order storefront: it opens the order page,
// fills one form per order, captures the preview and the receipt, merges them
// into a single PDF and resets the form for the next order.
package robotorder

import (
	"context"
	"errors"
	"fmt"
)

// Page is the slice of a browser tab the order flow needs. Selectors are CSS
// unless they start with "/" or "(", in which case they are XPath.
type Page interface {
	Navigate(ctx context.Context, url string) error
	Click(ctx context.Context, selector string) error
	SelectOption(ctx context.Context, selector, value string) error
	Fill(ctx context.Context, selector, text string) error
	WaitVisible(ctx context.Context, selector string) error
	// IsVisible checks the current state of the page without waiting.
	IsVisible(ctx context.Context, selector string) (bool, error)
	// Screenshot returns the element rendered as PNG.
	Screenshot(ctx context.Context, selector string) ([]byte, error)
	OuterHTML(ctx context.Context, selector string) (string, error)
}

// DocumentConverter turns screenshots into PDFs and combines them.
type DocumentConverter interface {
	ImageToPDF(imagePath, pdfPath string) error
	// Normalize rewrites a PDF in place through the PDF library.
	Normalize(pdfPath string) error
	// Merge concatenates inputs, in order, into outPath.
	Merge(inputs []string, outPath string) error
}

// ErrSubmitRetriesExhausted reports that the storefront kept rejecting an order.
var ErrSubmitRetriesExhausted = errors.New("order submission retries exhausted")

// SubmitError carries the order and the number of submit clicks made before giving up.
type SubmitError struct {
	OrderNumber string
	Attempts    int
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("order %s: error banner still visible after %d submit attempts", e.OrderNumber, e.Attempts)
}

// Unwrap lets errors.Is match ErrSubmitRetriesExhausted.
func (e *SubmitError) Unwrap() error {
	return ErrSubmitRetriesExhausted
}
