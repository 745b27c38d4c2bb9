// Package payment implements the core business logic for payment processing.
// This is the service/use-case layer in Clean Architecture.
package payment

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/gcmtshop/cca-payments/internal/domain"
	"github.com/gcmtshop/cca-payments/internal/metrics"
)

// Settings are the merchant values the service stamps on every order.
type Settings struct {
	MerchantID      string
	RedirectURL     string // Gateway posts the callback here
	CancelURL       string
	DefaultCurrency string
	DefaultLanguage string
	WriteTimeout    time.Duration // Budget for a committed write after the caller is gone
}

// Service implements the payment business logic.
// It orchestrates between the order repository, the gateway codec and the
// shop backend notifier.
type Service struct {
	orders   domain.OrderRepository
	gateway  domain.PaymentGateway
	notifier domain.ShopNotifier
	settings Settings
	log      *logrus.Logger
	metrics  *metrics.Metrics

	now        func() time.Time
	newOrderID func() string

	pending sync.WaitGroup // In-flight shop notifications
}

// NewService creates a new payment service with the required dependencies.
func NewService(
	orders domain.OrderRepository,
	gateway domain.PaymentGateway,
	notifier domain.ShopNotifier,
	settings Settings,
	log *logrus.Logger,
	m *metrics.Metrics,
) *Service {
	if settings.WriteTimeout <= 0 {
		settings.WriteTimeout = 10 * time.Second
	}
	return &Service{
		orders:     orders,
		gateway:    gateway,
		notifier:   notifier,
		settings:   settings,
		log:        log,
		metrics:    m,
		now:        time.Now,
		newOrderID: generateOrderID,
	}
}

// Wait blocks until background shop notifications have finished.
// Call it during shutdown, after the HTTP server has stopped.
func (s *Service) Wait() {
	s.pending.Wait()
}

// generateOrderID returns a 20-character upper-case id; the gateway caps order_id at 30.
func generateOrderID() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:20]
}

// Checkout handles the checkout flow:
// 1. Stamps merchant values and validates the order
// 2. Persists the order as CREATED; its key becomes merchant_param1
// 3. Encrypts the request for the gateway
// 4. Moves the order to PENDING_PAYMENT and returns encRequest + accessCode
func (s *Service) Checkout(ctx context.Context, order domain.OrderRequest) (*domain.CheckoutResult, error) {
	order.MerchantID = s.settings.MerchantID
	order.RedirectURL = s.settings.RedirectURL
	order.CancelURL = s.settings.CancelURL
	if order.Currency == "" {
		order.Currency = s.settings.DefaultCurrency
	}
	if order.Language == "" {
		order.Language = s.settings.DefaultLanguage
	}
	if order.OrderID == "" {
		order.OrderID = s.newOrderID()
	}

	if err := s.gateway.ValidateOrder(order); err != nil {
		s.metrics.CheckoutResult("invalid")
		return nil, err
	}

	rec := &domain.OrderRecord{
		OrderID:       order.OrderID,
		Amount:        order.Amount,
		Currency:      order.Currency,
		Status:        domain.OrderCreated,
		PaymentStatus: domain.PaymentPending,
	}
	if err := s.orders.Create(ctx, rec); err != nil {
		if errors.Is(err, domain.ErrDuplicateOrder) {
			s.log.WithField("order_id", order.OrderID).Warn("Checkout rejected: order_id already used")
			s.metrics.CheckoutResult("duplicate")
			return nil, domain.NewPaymentError(err, "order_id already used", "DUPLICATE_ORDER")
		}
		s.log.WithError(err).WithField("order_id", order.OrderID).Error("Failed to create order")
		s.metrics.CheckoutResult("error")
		return nil, domain.NewPaymentError(domain.ErrStorage, "failed to create order", "STORAGE_ERROR")
	}

	order.MerchantParam1 = rec.ID
	encRequest, err := s.gateway.EncryptRequest(order)
	if err != nil {
		s.log.WithError(err).WithField("correlation_token", rec.ID).Error("Failed to encrypt gateway request")
		s.metrics.CheckoutResult("error")
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			return nil, err
		}
		return nil, domain.NewPaymentError(err, "failed to prepare gateway request", "ENCRYPTION_ERROR")
	}

	n, err := s.orders.TransitionStatus(ctx, rec.ID, domain.OrderTransition{
		From:          domain.OrderCreated,
		To:            domain.OrderPendingPayment,
		PaymentStatus: domain.PaymentPending,
	})
	if err != nil || n != 1 {
		s.log.WithError(err).WithField("correlation_token", rec.ID).Error("Failed to mark order pending")
		s.metrics.CheckoutResult("error")
		return nil, domain.NewPaymentError(domain.ErrStorage, "failed to mark order pending", "STORAGE_ERROR")
	}

	s.log.WithFields(logrus.Fields{
		"correlation_token": rec.ID,
		"order_id":          order.OrderID,
		"amount":            order.Amount,
		"currency":          order.Currency,
	}).Info("Checkout prepared")
	s.metrics.CheckoutResult("ok")

	return &domain.CheckoutResult{
		EncRequest: encRequest,
		AccessCode: s.gateway.AccessCode(),
	}, nil
}

// HandleCallback decrypts, parses and reconciles one gateway callback.
// Decryption failures come back as the generic *domain.DecryptionError; the
// reason is only logged.
func (s *Service) HandleCallback(ctx context.Context, encResp string) (*domain.ReconciliationResult, error) {
	cb, err := s.gateway.DecodeCallback(encResp)
	if err != nil {
		var derr *domain.DecryptionError
		var merr *domain.MalformedCallbackError
		switch {
		case errors.As(err, &derr):
			s.log.WithField("reason", derr.Reason).Warn("Rejected gateway callback: decryption failed")
			s.metrics.DecryptFailure(string(derr.Reason))
			s.metrics.CallbackOutcome("decrypt_failed")
		case errors.As(err, &merr):
			s.log.WithFields(logrus.Fields{
				"missing_keys": merr.MissingKeys,
				"detail":       merr.Detail,
			}).Warn("Gateway callback does not match the expected contract")
			s.metrics.CallbackOutcome("malformed")
		default:
			s.log.WithError(err).Error("Failed to decode gateway callback")
		}
		return nil, err
	}

	return s.Reconcile(ctx, cb)
}
