// Package shopcore implements domain.ShopNotifier by calling the shop
// backend's internal API.
package shopcore

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/gcmtshop/cca-payments/internal/domain"
)

// Client implements domain.ShopNotifier over HTTP.
type Client struct {
	baseURL string
	apiKey  string
	http    *resty.Client
}

// NewClient creates a new shop backend client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    resty.New().SetTimeout(10 * time.Second),
	}
}

// orderStatusRequest is the JSON body sent to the shop backend.
type orderStatusRequest struct {
	CorrelationID string `json:"correlation_id"`
	OrderID       string `json:"order_id"`
	OrderStatus   string `json:"order_status"`
	PaymentStatus string `json:"payment_status"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	TrackingID    string `json:"tracking_id,omitempty"`
	BankRefNo     string `json:"bank_ref_no,omitempty"`
	PaymentMode   string `json:"payment_mode,omitempty"`
	FailureReason string `json:"failure_reason,omitempty"`
	Timestamp     string `json:"timestamp"`
}

// NotifyOrderStatus tells the shop backend that an order reached a terminal state.
func (c *Client) NotifyOrderStatus(ctx context.Context, order *domain.OrderRecord) error {
	url := fmt.Sprintf("%s/api/internal/orders/payment-status/", c.baseURL)

	payload := orderStatusRequest{
		CorrelationID: order.ID,
		OrderID:       order.OrderID,
		OrderStatus:   string(order.Status),
		PaymentStatus: order.PaymentStatus,
		Amount:        order.Amount,
		Currency:      order.Currency,
		TrackingID:    order.TrackingID,
		BankRefNo:     order.BankRefNo,
		PaymentMode:   order.PaymentMode,
		FailureReason: order.FailureMessage,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("X-Internal-API-Key", c.apiKey).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		Post(url)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}

	if !resp.IsSuccess() {
		return fmt.Errorf("shop backend returned status %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}
