// Package domain contains the core business entities and interfaces for the payment service.
// This is the innermost layer of the Clean Architecture - it has no dependencies on
// external frameworks or infrastructure.
package domain

import "time"

// OrderRequest carries everything the gateway needs to start a payment.
// Field names match the gateway's parameter names.
type OrderRequest struct {
	MerchantID  string `json:"merchant_id"`
	OrderID     string `json:"order_id"`
	Amount      string `json:"amount"` // Kept as text so it round-trips exactly
	Currency    string `json:"currency"`
	RedirectURL string `json:"redirect_url"`
	CancelURL   string `json:"cancel_url"`
	Language    string `json:"language"`

	BillingName    string `json:"billing_name,omitempty"`
	BillingAddress string `json:"billing_address,omitempty"`
	BillingCity    string `json:"billing_city,omitempty"`
	BillingState   string `json:"billing_state,omitempty"`
	BillingZip     string `json:"billing_zip,omitempty"`
	BillingCountry string `json:"billing_country,omitempty"`
	BillingTel     string `json:"billing_tel,omitempty"`
	BillingEmail   string `json:"billing_email,omitempty"`

	DeliveryName    string `json:"delivery_name,omitempty"`
	DeliveryAddress string `json:"delivery_address,omitempty"`
	DeliveryCity    string `json:"delivery_city,omitempty"`
	DeliveryState   string `json:"delivery_state,omitempty"`
	DeliveryZip     string `json:"delivery_zip,omitempty"`
	DeliveryCountry string `json:"delivery_country,omitempty"`
	DeliveryTel     string `json:"delivery_tel,omitempty"`

	// MerchantParam1 is the correlation token echoed back in the callback.
	MerchantParam1 string `json:"merchant_param1,omitempty"`
	MerchantParam2 string `json:"merchant_param2,omitempty"`
	MerchantParam3 string `json:"merchant_param3,omitempty"`
	MerchantParam4 string `json:"merchant_param4,omitempty"`
	MerchantParam5 string `json:"merchant_param5,omitempty"`

	PromoCode          string `json:"promo_code,omitempty"`
	CustomerIdentifier string `json:"customer_identifier,omitempty"`
}

// OrderStatus is the lifecycle state of a persisted order.
type OrderStatus string

const (
	OrderCreated        OrderStatus = "CREATED"
	OrderPendingPayment OrderStatus = "PENDING_PAYMENT"
	OrderConfirmed      OrderStatus = "CONFIRMED"
	OrderCancelled      OrderStatus = "CANCELLED"
)

// IsTerminal reports whether no further callback may change the status.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderConfirmed || s == OrderCancelled
}

// Payment status values stored alongside the order status.
const (
	PaymentPending = "pending"
	PaymentSuccess = "success"
	PaymentFailure = "failure"
)

// OrderRecord is the persisted order as seen by the payment core.
// ID is the correlation token sent to the gateway as merchant_param1.
type OrderRecord struct {
	ID            string      `json:"id"`
	OrderID       string      `json:"order_id"`
	Amount        string      `json:"amount"`
	Currency      string      `json:"currency"`
	Status        OrderStatus `json:"order_status"`
	PaymentStatus string      `json:"payment_status"`
	GatewayMetadata
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// GatewayMetadata holds the opaque values the gateway reports about a payment.
type GatewayMetadata struct {
	GatewayOrderID string `json:"gateway_order_id,omitempty"`
	TrackingID     string `json:"tracking_id,omitempty"`
	BankRefNo      string `json:"bank_ref_no,omitempty"`
	PaymentMode    string `json:"payment_mode,omitempty"`
	FailureMessage string `json:"failure_message,omitempty"`
	StatusCode     string `json:"status_code,omitempty"`
	StatusMessage  string `json:"status_message,omitempty"`
}

// OrderTransition describes a guarded status change and the metadata written with it.
type OrderTransition struct {
	From          OrderStatus
	To            OrderStatus
	PaymentStatus string
	Metadata      GatewayMetadata
	CompletedAt   *time.Time
}

// StatusClass is the fail-closed classification of a gateway order_status token.
type StatusClass string

const (
	StatusSuccess StatusClass = "SUCCESS"
	StatusFailure StatusClass = "FAILURE"
)

// ParsedCallback is the decrypted gateway callback.
type ParsedCallback struct {
	OrderID          string            // Gateway-echoed order_id
	OrderStatus      string            // Raw order_status token
	CorrelationToken string            // merchant_param1
	Class            StatusClass       // Classification of OrderStatus
	Unrecognized     bool              // OrderStatus matched no known token
	Params           map[string]string // Every decoded parameter, including the above
}

// Callback parameter names the service depends on.
const (
	ParamOrderID          = "order_id"
	ParamOrderStatus      = "order_status"
	ParamCorrelationToken = "merchant_param1"
	ParamTrackingID       = "tracking_id"
	ParamBankRefNo        = "bank_ref_no"
	ParamFailureMessage   = "failure_message"
	ParamPaymentMode      = "payment_mode"
	ParamStatusCode       = "status_code"
	ParamStatusMessage    = "status_message"
)

// Param returns an optional parameter, or "" when absent.
func (p *ParsedCallback) Param(name string) string {
	if p.Params == nil {
		return ""
	}
	return p.Params[name]
}

// Outcome of reconciling one callback.
type Outcome string

const (
	OutcomeApplied       Outcome = "APPLIED"
	OutcomeNoOp          Outcome = "NO_OP"
	OutcomeOrderNotFound Outcome = "ORDER_NOT_FOUND"
)

// Effect is a side effect performed by a reconciliation.
type Effect string

const (
	EffectPersistSuccessMetadata Effect = "persist_success_metadata"
	EffectPersistFailureReason   Effect = "persist_failure_reason"
	EffectNotifyShop             Effect = "notify_shop"
)

// ReconciliationResult is what the reconciler reports for a callback.
type ReconciliationResult struct {
	Outcome          Outcome     `json:"outcome"`
	CorrelationToken string      `json:"correlation_token"`
	State            OrderStatus `json:"state,omitempty"`
	Effects          []Effect    `json:"effects,omitempty"`
}

// CheckoutResult is returned to the page that redirects the browser to the gateway.
type CheckoutResult struct {
	EncRequest string `json:"encRequest"`
	AccessCode string `json:"accessCode"`
}
