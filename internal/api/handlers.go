// Package api contains the HTTP handlers and routing for the payment service.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/gcmtshop/cca-payments/internal/domain"
	"github.com/gcmtshop/cca-payments/internal/payment"
)

// Redirects are the storefront pages a browser lands on after paying.
type Redirects struct {
	SuccessBase string // <SuccessBase>/order-confirmation/<token>
	FailureBase string // <FailureBase>/payment-failure[/<token>]
}

func (r Redirects) confirmed(token string) string {
	return r.SuccessBase + "/order-confirmation/" + url.PathEscape(token)
}

func (r Redirects) failed(token string) string {
	if token == "" {
		return r.FailureBase + "/payment-failure"
	}
	return r.FailureBase + "/payment-failure/" + url.PathEscape(token)
}

// Handler contains the HTTP handlers for the payment API.
type Handler struct {
	paymentService *payment.Service
	redirects      Redirects
	log            *logrus.Logger
}

// NewHandler creates a new API handler with the payment service.
func NewHandler(paymentService *payment.Service, redirects Redirects, log *logrus.Logger) *Handler {
	return &Handler{
		paymentService: paymentService,
		redirects:      redirects,
		log:            log,
	}
}

// CheckoutRequest is the JSON body for the order endpoint. Amount accepts a
// JSON number or a numeric string and is passed on verbatim.
type CheckoutRequest struct {
	domain.OrderRequest
	Amount json.Number `json:"amount"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Success       bool     `json:"success"`
	Error         string   `json:"error"`
	Code          string   `json:"code,omitempty"`
	MissingFields []string `json:"missing_fields,omitempty"`
	InvalidFields []string `json:"invalid_fields,omitempty"`
}

// CreateOrder handles POST /api/v1/payments/orders
// Persists the order and returns the encrypted request for the browser to
// post to the gateway.
func (h *Handler) CreateOrder(c *gin.Context) {
	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Success: false,
			Error:   "Invalid request body",
			Code:    "VALIDATION_ERROR",
		})
		return
	}

	order := req.OrderRequest
	order.Amount = req.Amount.String()

	result, err := h.paymentService.Checkout(c.Request.Context(), order)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// HandleCallback handles the gateway's redirect and cancel callbacks.
// The browser is always redirected, except when the order store fails: a 500
// lets the gateway retry.
func (h *Handler) HandleCallback(c *gin.Context) {
	encResp, ok := c.GetPostForm("encResp")
	if !ok {
		encResp = c.Query("encResp")
	}
	if encResp == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Success: false,
			Error:   "encResp is required",
			Code:    "MISSING_ENC_RESP",
		})
		return
	}

	result, err := h.paymentService.HandleCallback(c.Request.Context(), encResp)
	if err != nil {
		if errors.Is(err, domain.ErrStorage) {
			handleServiceError(c, err)
			return
		}
		// Decryption and contract failures look the same from outside.
		c.Redirect(http.StatusFound, h.redirects.failed(""))
		return
	}

	switch {
	case result.Outcome == domain.OutcomeOrderNotFound:
		c.Redirect(http.StatusFound, h.redirects.failed(""))
	case result.State == domain.OrderConfirmed:
		c.Redirect(http.StatusFound, h.redirects.confirmed(result.CorrelationToken))
	case result.State == domain.OrderCancelled:
		c.Redirect(http.StatusFound, h.redirects.failed(result.CorrelationToken))
	default:
		h.log.WithFields(logrus.Fields{
			"correlation_token": result.CorrelationToken,
			"state":             result.State,
		}).Warn("Callback left order in a non-terminal state")
		c.Redirect(http.StatusFound, h.redirects.failed(""))
	}
}

// Health handles GET /health
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "cca-payments",
	})
}

// handleServiceError maps domain errors to HTTP responses.
func handleServiceError(c *gin.Context, err error) {
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Success:       false,
			Error:         validationErr.Error(),
			Code:          "VALIDATION_ERROR",
			MissingFields: validationErr.MissingFields,
			InvalidFields: validationErr.InvalidFields(),
		})
		return
	}

	var paymentErr *domain.PaymentError
	if errors.As(err, &paymentErr) {
		statusCode := http.StatusInternalServerError

		if errors.Is(paymentErr.Err, domain.ErrDuplicateOrder) {
			statusCode = http.StatusConflict
		}

		c.JSON(statusCode, ErrorResponse{
			Success: false,
			Error:   paymentErr.Message,
			Code:    paymentErr.Code,
		})
		return
	}

	// Generic error
	c.JSON(http.StatusInternalServerError, ErrorResponse{
		Success: false,
		Error:   "Internal server error",
		Code:    "INTERNAL_ERROR",
	})
}
