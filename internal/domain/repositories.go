// Package domain contains the core business entities and interfaces for the payment service.
package domain

import "context"

// OrderRepository persists order records.
// This is a "port" in hexagonal architecture - the domain defines what it needs,
// and infrastructure provides the implementation.
type OrderRepository interface {
	// Create stores a new order and fills in its ID (the correlation token).
	Create(ctx context.Context, order *OrderRecord) error

	// GetByCorrelationToken loads an order.
	// Returns ErrOrderNotFound if no order has that token.
	GetByCorrelationToken(ctx context.Context, token string) (*OrderRecord, error)

	// TransitionStatus applies t only if the order is still in t.From, writing
	// status and metadata in a single statement. It returns the number of rows
	// changed: 1 when applied, 0 when the guard did not hold.
	TransitionStatus(ctx context.Context, token string, t OrderTransition) (int64, error)
}

// PaymentGateway builds requests for, and decodes callbacks from, the hosted gateway.
type PaymentGateway interface {
	// ValidateOrder checks an order without encoding it.
	ValidateOrder(order OrderRequest) error

	// EncryptRequest encodes and encrypts an order for the gateway.
	EncryptRequest(order OrderRequest) (string, error)

	// DecodeCallback decrypts and parses a callback ciphertext.
	DecodeCallback(encResp string) (*ParsedCallback, error)

	// AccessCode is the merchant access code sent beside encRequest.
	AccessCode() string
}

// ShopNotifier tells the shop backend about orders that reached a terminal state.
type ShopNotifier interface {
	NotifyOrderStatus(ctx context.Context, order *OrderRecord) error
}
