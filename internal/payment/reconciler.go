package payment

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/gcmtshop/cca-payments/internal/domain"
)

// Reconcile applies a parsed callback to its order.
//
//	PENDING_PAYMENT --success--> CONFIRMED
//	PENDING_PAYMENT --failure--> CANCELLED
//	anything else   --any------> no-op
//
// The transition is one guarded write; a lost race is a no-op, not an error.
// An unknown correlation token is reported as OrderNotFound with no writes.
// Only storage failures are returned as errors.
func (s *Service) Reconcile(ctx context.Context, cb *domain.ParsedCallback) (*domain.ReconciliationResult, error) {
	token := cb.CorrelationToken
	log := s.log.WithFields(logrus.Fields{
		"correlation_token": token,
		"gateway_order_id":  cb.OrderID,
		"order_status":      cb.OrderStatus,
		"class":             cb.Class,
	})
	if cb.Unrecognized {
		log.Warn("Unrecognized order_status, treating as failure")
	}

	order, err := s.orders.GetByCorrelationToken(ctx, token)
	if errors.Is(err, domain.ErrOrderNotFound) {
		log.Warn("Callback for unknown order, acknowledging without changes")
		s.metrics.CallbackOutcome("order_not_found")
		return &domain.ReconciliationResult{
			Outcome:          domain.OutcomeOrderNotFound,
			CorrelationToken: token,
		}, nil
	}
	if err != nil {
		return nil, s.storageError(log, err, "failed to load order")
	}

	if order.Status != domain.OrderPendingPayment {
		log.WithField("state", order.Status).Info("Order not awaiting payment, callback ignored")
		return s.noOp(order), nil
	}
	if order.OrderID != cb.OrderID {
		log.WithField("expected_order_id", order.OrderID).Warn("Gateway order_id differs from stored order")
	}

	// The write must survive the caller going away: once issued it commits
	// before anything is acknowledged.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.settings.WriteTimeout)
	defer cancel()

	t := s.transitionFor(cb)
	n, err := s.orders.TransitionStatus(writeCtx, token, t)
	if err != nil {
		return nil, s.storageError(log, err, "failed to update order")
	}
	if n == 0 {
		current, err := s.orders.GetByCorrelationToken(writeCtx, token)
		if err != nil {
			return nil, s.storageError(log, err, "failed to reload order")
		}
		log.WithField("state", current.Status).Info("Concurrent callback already settled the order")
		return s.noOp(current), nil
	}

	result := &domain.ReconciliationResult{
		Outcome:          domain.OutcomeApplied,
		CorrelationToken: token,
		State:            t.To,
	}
	if t.To == domain.OrderConfirmed {
		result.Effects = append(result.Effects, domain.EffectPersistSuccessMetadata)
	} else {
		result.Effects = append(result.Effects, domain.EffectPersistFailureReason)
	}

	if s.notifier != nil {
		s.notifyShop(ctx, log, applyTransition(*order, t))
		result.Effects = append(result.Effects, domain.EffectNotifyShop)
	}

	log.WithField("state", t.To).Info("Order reconciled")
	s.metrics.CallbackOutcome(strings.ToLower(string(t.To)))
	return result, nil
}

// notifyShop tells the shop backend about a committed transition without
// holding up the callback. It is not retried: later callbacks for the order
// are no-ops, so a failure is logged with the token for manual follow-up.
func (s *Service) notifyShop(ctx context.Context, log *logrus.Entry, order domain.OrderRecord) {
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.settings.WriteTimeout)
		defer cancel()
		if err := s.notifier.NotifyOrderStatus(nctx, &order); err != nil {
			log.WithError(err).WithField("state", order.Status).
				Error("Failed to notify shop backend, order needs manual reconciliation")
			s.metrics.NotifyFailure()
		}
	}()
}

func (s *Service) transitionFor(cb *domain.ParsedCallback) domain.OrderTransition {
	now := s.now()
	md := domain.GatewayMetadata{
		GatewayOrderID: cb.OrderID,
		TrackingID:     cb.Param(domain.ParamTrackingID),
		StatusCode:     cb.Param(domain.ParamStatusCode),
		StatusMessage:  cb.Param(domain.ParamStatusMessage),
	}

	if cb.Class == domain.StatusSuccess {
		md.BankRefNo = cb.Param(domain.ParamBankRefNo)
		md.PaymentMode = cb.Param(domain.ParamPaymentMode)
		return domain.OrderTransition{
			From:          domain.OrderPendingPayment,
			To:            domain.OrderConfirmed,
			PaymentStatus: domain.PaymentSuccess,
			Metadata:      md,
			CompletedAt:   &now,
		}
	}

	md.FailureMessage = cb.Param(domain.ParamFailureMessage)
	if md.FailureMessage == "" {
		md.FailureMessage = domain.ParamOrderStatus + "=" + cb.OrderStatus
	}
	return domain.OrderTransition{
		From:          domain.OrderPendingPayment,
		To:            domain.OrderCancelled,
		PaymentStatus: domain.PaymentFailure,
		Metadata:      md,
		CompletedAt:   &now,
	}
}

func (s *Service) noOp(order *domain.OrderRecord) *domain.ReconciliationResult {
	s.metrics.CallbackOutcome("no_op")
	return &domain.ReconciliationResult{
		Outcome:          domain.OutcomeNoOp,
		CorrelationToken: order.ID,
		State:            order.Status,
	}
}

func (s *Service) storageError(log *logrus.Entry, err error, msg string) error {
	log.WithError(err).Error("Order storage failure during reconciliation")
	s.metrics.CallbackOutcome("storage_error")
	return domain.NewPaymentError(domain.ErrStorage, msg, "STORAGE_ERROR")
}

// applyTransition mirrors the guarded write onto an in-memory copy.
func applyTransition(order domain.OrderRecord, t domain.OrderTransition) domain.OrderRecord {
	order.Status = t.To
	order.PaymentStatus = t.PaymentStatus
	md := t.Metadata
	for dst, src := range map[*string]string{
		&order.GatewayOrderID: md.GatewayOrderID,
		&order.TrackingID:     md.TrackingID,
		&order.BankRefNo:      md.BankRefNo,
		&order.PaymentMode:    md.PaymentMode,
		&order.FailureMessage: md.FailureMessage,
		&order.StatusCode:     md.StatusCode,
		&order.StatusMessage:  md.StatusMessage,
	} {
		if src != "" {
			*dst = src
		}
	}
	if t.CompletedAt != nil {
		order.CompletedAt = t.CompletedAt
	}
	return order
}
