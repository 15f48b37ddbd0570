package services_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"bulk-order-service/services"

	"github.com/stretchr/testify/assert"
)

func TestParseRejectsNonPositiveQuantities(t *testing.T) {
	input := "sku,quantity\nSKU-1,5\nSKU-2,0\nSKU-3,-2\nSKU-4,abc\nSKU-5,1\n"

	result, err := services.ParseBulkOrderCSV(context.Background(), strings.NewReader(input), services.ParseOptions{}, nil)
	assert.NoError(t, err)

	assert.Len(t, result.Rows, 2)
	assert.Equal(t, "SKU-1", result.Rows[0].SKU)
	assert.Equal(t, 5, result.Rows[0].Quantity)
	assert.Equal(t, "SKU-5", result.Rows[1].SKU)

	assert.Len(t, result.Errors, 3)
	assert.False(t, result.Success)
	for _, row := range result.Rows {
		assert.Greater(t, row.Quantity, 0)
	}
}

func TestParseWithoutHeaderRow(t *testing.T) {
	input := "SKU-1,3\nSKU-2,7\n"

	result, err := services.ParseBulkOrderCSV(context.Background(), strings.NewReader(input), services.ParseOptions{}, nil)
	assert.NoError(t, err)
	assert.True(t, result.Success)
	assert.Len(t, result.Rows, 2)
	assert.Equal(t, 1, result.Rows[0].Line)
	assert.Equal(t, 2, result.Rows[1].Line)
}

func TestParseCollectsMissingSKU(t *testing.T) {
	input := "sku,quantity\n,4\nSKU-2,2\n"

	result, err := services.ParseBulkOrderCSV(context.Background(), strings.NewReader(input), services.ParseOptions{}, nil)
	assert.NoError(t, err)
	assert.Len(t, result.Rows, 1)
	assert.Len(t, result.Errors, 1)
	assert.Equal(t, 2, result.Errors[0].Line)
}

func TestParseIsIdempotent(t *testing.T) {
	input := "sku,quantity\nSKU-1,5\nbad-row,zero\nSKU-2,2\n"

	first, err := services.ParseBulkOrderCSV(context.Background(), strings.NewReader(input), services.ParseOptions{}, nil)
	assert.NoError(t, err)
	second, err := services.ParseBulkOrderCSV(context.Background(), strings.NewReader(input), services.ParseOptions{}, nil)
	assert.NoError(t, err)

	assert.Equal(t, first.Rows, second.Rows)
	assert.Equal(t, first.Errors, second.Errors)
}

func TestParseRejectsEmptyInput(t *testing.T) {
	_, err := services.ParseBulkOrderCSV(context.Background(), strings.NewReader(""), services.ParseOptions{}, nil)
	assert.Error(t, err)

	// a header with no data rows is still empty
	_, err = services.ParseBulkOrderCSV(context.Background(), strings.NewReader("sku,quantity\n"), services.ParseOptions{}, nil)
	assert.Error(t, err)
}

func TestParseEnforcesRowCeiling(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("sku,quantity\n")
	for i := 0; i < 1001; i++ {
		fmt.Fprintf(&sb, "SKU-%d,1\n", i)
	}

	_, err := services.ParseBulkOrderCSV(context.Background(), strings.NewReader(sb.String()), services.ParseOptions{MaxRows: 1000}, nil)
	assert.Error(t, err)

	var tooMany *services.ErrTooManyRows
	assert.ErrorAs(t, err, &tooMany)
	assert.Equal(t, 1000, tooMany.Limit)
}

func TestParseFlagsUnknownSKUs(t *testing.T) {
	input := "sku,quantity\nKNOWN-1,2\nGHOST-1,1\n"

	validate := func(ctx context.Context, sku string) (bool, error) {
		return strings.HasPrefix(sku, "KNOWN"), nil
	}

	result, err := services.ParseBulkOrderCSV(context.Background(), strings.NewReader(input), services.ParseOptions{}, validate)
	assert.NoError(t, err)
	assert.Len(t, result.Rows, 1)
	assert.Equal(t, "KNOWN-1", result.Rows[0].SKU)
	assert.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Message, "GHOST-1")
}

func TestParseSKUValidatorFailureIsRowLevel(t *testing.T) {
	input := "sku,quantity\nSKU-1,2\n"

	validate := func(ctx context.Context, sku string) (bool, error) {
		return false, errors.New("catalog request: connection reset")
	}

	result, err := services.ParseBulkOrderCSV(context.Background(), strings.NewReader(input), services.ParseOptions{}, validate)
	assert.NoError(t, err, "validator outage must not fail the parse")
	assert.Empty(t, result.Rows)
	assert.Len(t, result.Errors, 1)
}
