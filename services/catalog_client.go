package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"bulk-order-service/models"

	"go.uber.org/zap"
)

// CatalogClient calls the catalog service HTTP API.
type CatalogClient struct {
	baseURL string
	client  *http.Client
}

// NewCatalogClient creates a client with the given per-request timeout.
func NewCatalogClient(baseURL string, timeout time.Duration) *CatalogClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &CatalogClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// CheckAvailability fetches availability and pricing for one SKU.
func (cc *CatalogClient) CheckAvailability(ctx context.Context, sku string) (*models.ProductAvailability, error) {
	var avail models.ProductAvailability
	path := "/products/" + url.PathEscape(sku) + "/availability"
	if err := cc.getJSON(ctx, path, &avail); err != nil {
		return nil, err
	}
	return &avail, nil
}

// ValidateSKU reports whether the catalog knows the SKU at all.
func (cc *CatalogClient) ValidateSKU(ctx context.Context, sku string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, cc.baseURL+"/products/"+url.PathEscape(sku), nil)
	if err != nil {
		return false, fmt.Errorf("build request: %w", err)
	}

	resp, err := cc.client.Do(req)
	if err != nil {
		zap.L().Warn("catalog ValidateSKU call failed", zap.String("sku", sku), zap.Error(err))
		return false, fmt.Errorf("catalog request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	case resp.StatusCode >= 300:
		return false, fmt.Errorf("catalog ValidateSKU returned status %d", resp.StatusCode)
	}
	return true, nil
}

// SearchCandidates returns the substitute candidate pool for a SKU,
// typically products sharing a category.
func (cc *CatalogClient) SearchCandidates(ctx context.Context, sku string) ([]models.ProductAttributes, error) {
	var candidates []models.ProductAttributes
	path := "/products/" + url.PathEscape(sku) + "/similar"
	if err := cc.getJSON(ctx, path, &candidates); err != nil {
		return nil, err
	}
	return candidates, nil
}

// GetAttributes fetches the scoring attributes of one product.
func (cc *CatalogClient) GetAttributes(ctx context.Context, sku string) (*models.ProductAttributes, error) {
	var attrs models.ProductAttributes
	path := "/products/" + url.PathEscape(sku) + "/attributes"
	if err := cc.getJSON(ctx, path, &attrs); err != nil {
		return nil, err
	}
	return &attrs, nil
}

func (cc *CatalogClient) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cc.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := cc.client.Do(req)
	if err != nil {
		zap.L().Warn("catalog call failed", zap.String("path", path), zap.Error(err))
		return fmt.Errorf("catalog request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("catalog returned status %d for %s", resp.StatusCode, path)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode catalog response: %w", err)
	}
	return nil
}
