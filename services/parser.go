package services

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"bulk-order-service/models"

	"go.uber.org/zap"
)

// Parser limits. MaxRows guards against unbounded uploads; anything above it
// is a structural error, not a per-row one.
const (
	DefaultMaxRows = 1000
)

// SKUValidator checks a SKU against the catalog. A nil validator skips the
// check entirely.
type SKUValidator func(ctx context.Context, sku string) (bool, error)

// ParseOptions configures one parse. Zero values fall back to defaults.
type ParseOptions struct {
	MaxRows int
}

func (o ParseOptions) maxRows() int {
	if o.MaxRows > 0 {
		return o.MaxRows
	}
	return DefaultMaxRows
}

// ErrTooManyRows is returned when an upload exceeds the row ceiling.
type ErrTooManyRows struct {
	Limit int
}

func (e *ErrTooManyRows) Error() string {
	return fmt.Sprintf("too many rows: limit is %d", e.Limit)
}

// ParseBulkOrderCSV parses sku,quantity rows into typed BulkOrderRows.
// A header row is tolerated. Malformed rows are collected into Errors and
// never abort parsing of later rows. Only structural problems (unreadable
// CSV, empty input, row ceiling) return a non-nil error, with zero rows.
func ParseBulkOrderCSV(ctx context.Context, r io.Reader, opts ParseOptions, validateSKU SKUValidator) (*models.BulkOrderParseResult, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	first, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty input")
	}
	if err != nil {
		return nil, fmt.Errorf("not a valid CSV: %w", err)
	}

	skuIdx, qtyIdx := 0, 1
	line := 1
	if isHeaderRow(first) {
		for i, h := range first {
			switch strings.ToLower(strings.TrimSpace(h)) {
			case "sku":
				skuIdx = i
			case "quantity", "qty":
				qtyIdx = i
			}
		}
		first = nil
		line = 2
	}

	result := &models.BulkOrderParseResult{}
	maxRows := opts.maxRows()
	rowCount := 0

	appendRow := func(row []string, line int) {
		// Safe access in case the row is short
		get := func(idx int) string {
			if idx < len(row) {
				return strings.TrimSpace(row[idx])
			}
			return ""
		}

		sku := get(skuIdx)
		qtyStr := get(qtyIdx)

		if sku == "" {
			result.Errors = append(result.Errors, models.RowError{Line: line, Message: "SKU is required"})
			return
		}
		qty, err := strconv.Atoi(qtyStr)
		if err != nil {
			result.Errors = append(result.Errors, models.RowError{Line: line, Message: fmt.Sprintf("invalid quantity %q", qtyStr)})
			return
		}
		if qty <= 0 {
			result.Errors = append(result.Errors, models.RowError{Line: line, Message: "quantity must be a positive integer"})
			return
		}

		result.Rows = append(result.Rows, models.BulkOrderRow{SKU: sku, Quantity: qty, Line: line})
	}

	if first != nil {
		rowCount++
		appendRow(first, line)
		line++
	}

	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			result.Errors = append(result.Errors, models.RowError{Line: line, Message: "failed to parse CSV row"})
			line++
			continue
		}
		if isBlankRow(row) {
			line++
			continue
		}
		rowCount++
		if rowCount > maxRows {
			return nil, &ErrTooManyRows{Limit: maxRows}
		}
		appendRow(row, line)
		line++
	}

	if rowCount == 0 {
		return nil, fmt.Errorf("empty input")
	}

	if validateSKU != nil {
		result.Rows = checkSKUs(ctx, result, validateSKU)
	}

	result.Success = len(result.Errors) == 0
	return result, nil
}

// checkSKUs flags unknown SKUs via the catalog-backed validator. A validator
// failure degrades to "unknown" and becomes a row-level error; it never
// aborts the parse.
func checkSKUs(ctx context.Context, result *models.BulkOrderParseResult, validateSKU SKUValidator) []models.BulkOrderRow {
	kept := result.Rows[:0]
	for _, row := range result.Rows {
		known, err := validateSKU(ctx, row.SKU)
		if err != nil {
			zap.L().Warn("SKU validation unavailable",
				zap.String("sku", row.SKU), zap.Error(err))
			known = false
		}
		if !known {
			result.Errors = append(result.Errors, models.RowError{
				Line:    row.Line,
				Message: fmt.Sprintf("unknown SKU %q", row.SKU),
			})
			continue
		}
		kept = append(kept, row)
	}
	return kept
}

func isHeaderRow(row []string) bool {
	for _, f := range row {
		switch strings.ToLower(strings.TrimSpace(f)) {
		case "sku", "quantity", "qty":
			return true
		}
	}
	return false
}

func isBlankRow(row []string) bool {
	for _, f := range row {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
