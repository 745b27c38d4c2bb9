package store

import (
	"context"
	"errors"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/gcmtshop/cca-payments/internal/domain"
)

// OrderRepository implements domain.OrderRepository on gorm.
type OrderRepository struct {
	db *gorm.DB
}

// NewOrderRepository creates a new order repository.
func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create inserts the order and sets rec.ID to the new primary key.
// A reused order_id returns domain.ErrDuplicateOrder; the db must be opened
// with TranslateError.
func (r *OrderRepository) Create(ctx context.Context, rec *domain.OrderRecord) error {
	row := fromDomain(rec)
	err := r.db.WithContext(ctx).Create(row).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.ErrDuplicateOrder
	}
	if err != nil {
		return err
	}
	*rec = *row.toDomain()
	return nil
}

// GetByCorrelationToken loads an order by primary key.
// Tokens that are not a valid key are treated as unknown.
func (r *OrderRepository) GetByCorrelationToken(ctx context.Context, token string) (*domain.OrderRecord, error) {
	id, ok := parseToken(token)
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	var row Order
	err := r.db.WithContext(ctx).First(&row, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

// TransitionStatus is a single UPDATE ... WHERE id = ? AND order_status = ?.
// Status and metadata are written together or not at all.
func (r *OrderRepository) TransitionStatus(ctx context.Context, token string, t domain.OrderTransition) (int64, error) {
	id, ok := parseToken(token)
	if !ok {
		return 0, nil
	}

	updates := map[string]interface{}{
		"order_status":   string(t.To),
		"payment_status": t.PaymentStatus,
		"updated_at":     time.Now(),
	}
	m := t.Metadata
	for col, v := range map[string]string{
		"gateway_order_id": m.GatewayOrderID,
		"tracking_id":      m.TrackingID,
		"bank_ref_no":      m.BankRefNo,
		"payment_mode":     m.PaymentMode,
		"failure_message":  m.FailureMessage,
		"status_code":      m.StatusCode,
		"status_message":   m.StatusMessage,
	} {
		if v != "" {
			updates[col] = v
		}
	}
	if t.CompletedAt != nil {
		updates["completed_at"] = *t.CompletedAt
	}

	res := r.db.WithContext(ctx).
		Model(&Order{}).
		Where("id = ? AND order_status = ?", id, string(t.From)).
		Updates(updates)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func parseToken(token string) (uint64, bool) {
	id, err := strconv.ParseUint(token, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}
