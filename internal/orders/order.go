// Package orders downloads the order list and decodes it into Order records.
package orders

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jszwec/csvutil"
)

// ErrInvalidOrder is returned for a row that decodes but cannot be submitted.
var ErrInvalidOrder = errors.New("invalid order")

// Order is one row of the order CSV. Every field is kept as text; the form
// only ever types or selects these values.
type Order struct {
	OrderNumber string `csv:"Order number"`
	Head        string `csv:"Head"`
	Body        string `csv:"Body"`
	Legs        string `csv:"Legs"`
	Address     string `csv:"Address"`
}

// Validate checks that the order number is present and usable as part of a
// file name. The other fields go to the form unchecked.
func (o Order) Validate() error {
	switch {
	case strings.TrimSpace(o.OrderNumber) == "":
		return fmt.Errorf("%w: empty order number", ErrInvalidOrder)
	case strings.ContainsAny(o.OrderNumber, `/\`) || strings.Contains(o.OrderNumber, ".."):
		return fmt.Errorf("%w: order number %q contains a path element", ErrInvalidOrder, o.OrderNumber)
	}
	return nil
}

// Decode reads a CSV with a header row into orders, preserving row order.
// All five columns must be present in the header; extra columns are ignored.
func Decode(r io.Reader) ([]Order, error) {
	decoder, err := csvutil.NewDecoder(csv.NewReader(r))
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to read CSV header: empty input")
		}
		return nil, fmt.Errorf("failed to create CSV decoder: %w", err)
	}
	decoder.DisallowMissingColumns = true

	var records []Order
	if err := decoder.Decode(&records); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode CSV: %w", err)
	}

	for i := range records {
		records[i].OrderNumber = strings.TrimSpace(records[i].OrderNumber)
		if err := records[i].Validate(); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
	}
	return records, nil
}

// ParseFile opens and decodes an order CSV from disk.
func ParseFile(path string) ([]Order, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	return Decode(file)
}
