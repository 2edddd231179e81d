// Package sap talks to the external confirmation authority. Only the
// request/response contract lives here; retry policy belongs to the caller.
package sap

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const confirmPath = "/api/sap/confirm"

type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient builds a gateway client. timeout bounds the whole confirmation
// call; an expired call counts as a failed confirmation and the order rolls
// back.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type confirmationRequest struct {
	OrderID    string          `json:"orderId"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
}

type confirmationResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    struct {
		ConfirmationNumber string `json:"confirmationNumber"`
	} `json:"data"`
}

func (c *Client) Confirm(ctx context.Context, orderID string, totalPrice decimal.Decimal) (string, error) {
	body, err := json.Marshal(confirmationRequest{OrderID: orderID, TotalPrice: totalPrice})
	if err != nil {
		return "", fmt.Errorf("encode confirmation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+confirmPath, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build confirmation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("confirmation call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("confirmation call returned status %d", resp.StatusCode)
	}

	var payload confirmationResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode confirmation response: %w", err)
	}
	if !payload.Success {
		return "", fmt.Errorf("confirmation rejected: %s", payload.Message)
	}

	number := strings.TrimSpace(payload.Data.ConfirmationNumber)
	if number == "" {
		return "", fmt.Errorf("confirmation response carried a blank confirmation number")
	}
	return number, nil
}
