package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Gateway is the opaque payment provider: it issues an order reference for
// an amount and refunds captured payments. Amounts are in minor units.
type Gateway interface {
	CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string) (string, error)
	Refund(ctx context.Context, paymentRef string, amountMinor int64) (string, error)
}

type Client struct {
	baseURL   string
	keyID     string
	keySecret string
	http      *http.Client
}

func NewClient(baseURL, keyID, keySecret string) *Client {
	return &Client{
		baseURL:   baseURL,
		keyID:     keyID,
		keySecret: keySecret,
		http:      &http.Client{Timeout: 15 * time.Second},
	}
}

type providerOrderRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

type providerRefundRequest struct {
	Amount int64 `json:"amount"`
}

type providerResponse struct {
	ID string `json:"id"`
}

func (c *Client) CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string) (string, error) {
	res, err := c.post(ctx, "/orders", providerOrderRequest{
		Amount:   amountMinor,
		Currency: currency,
		Receipt:  receipt,
	})
	if err != nil {
		return "", fmt.Errorf("create provider order: %w", err)
	}
	return res.ID, nil
}

func (c *Client) Refund(ctx context.Context, paymentRef string, amountMinor int64) (string, error) {
	res, err := c.post(ctx, "/payments/"+paymentRef+"/refund", providerRefundRequest{Amount: amountMinor})
	if err != nil {
		return "", fmt.Errorf("provider refund: %w", err)
	}
	return res.ID, nil
}

func (c *Client) post(ctx context.Context, path string, payload interface{}) (*providerResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.keyID, c.keySecret)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("provider returned status %d", resp.StatusCode)
	}

	var out providerResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}
