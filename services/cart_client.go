package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"bulk-order-service/models"

	"go.uber.org/zap"
)

// CartClient calls the cart service HTTP API.
type CartClient struct {
	baseURL string
	client  *http.Client
}

func NewCartClient(baseURL string, timeout time.Duration) *CartClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &CartClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// AddItems submits one batch of line items as a single cart call.
func (cc *CartClient) AddItems(ctx context.Context, items []models.CartLine) error {
	body, err := json.Marshal(map[string]interface{}{"items": items})
	if err != nil {
		return fmt.Errorf("marshal cart items: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cc.baseURL+"/cart/items", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := cc.client.Do(req)
	if err != nil {
		zap.L().Warn("cart AddItems call failed", zap.Int("items", len(items)), zap.Error(err))
		return fmt.Errorf("cart request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("cart AddItems returned status %d: %s", resp.StatusCode, detail)
	}
	return nil
}
