package store

import (
	"strconv"
	"time"

	"github.com/gcmtshop/cca-payments/internal/domain"
)

// Order is the orders table row. ID is the correlation token.
type Order struct {
	ID             uint64 `gorm:"primaryKey"`
	OrderID        string `gorm:"size:40;not null;uniqueIndex"`
	Amount         string `gorm:"size:32;not null"`
	Currency       string `gorm:"size:3;not null"`
	OrderStatus    string `gorm:"size:20;not null;index"`
	PaymentStatus  string `gorm:"size:20;not null"`
	GatewayOrderID string `gorm:"size:64"`
	TrackingID     string `gorm:"size:64"`
	BankRefNo      string `gorm:"size:64"`
	PaymentMode    string `gorm:"size:64"`
	FailureMessage string `gorm:"type:text"`
	StatusCode     string `gorm:"size:32"`
	StatusMessage  string `gorm:"type:text"`
	CompletedAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (Order) TableName() string {
	return "orders"
}

func (o *Order) toDomain() *domain.OrderRecord {
	return &domain.OrderRecord{
		ID:            strconv.FormatUint(o.ID, 10),
		OrderID:       o.OrderID,
		Amount:        o.Amount,
		Currency:      o.Currency,
		Status:        domain.OrderStatus(o.OrderStatus),
		PaymentStatus: o.PaymentStatus,
		GatewayMetadata: domain.GatewayMetadata{
			GatewayOrderID: o.GatewayOrderID,
			TrackingID:     o.TrackingID,
			BankRefNo:      o.BankRefNo,
			PaymentMode:    o.PaymentMode,
			FailureMessage: o.FailureMessage,
			StatusCode:     o.StatusCode,
			StatusMessage:  o.StatusMessage,
		},
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
		CompletedAt: o.CompletedAt,
	}
}

func fromDomain(r *domain.OrderRecord) *Order {
	return &Order{
		OrderID:        r.OrderID,
		Amount:         r.Amount,
		Currency:       r.Currency,
		OrderStatus:    string(r.Status),
		PaymentStatus:  r.PaymentStatus,
		GatewayOrderID: r.GatewayOrderID,
		TrackingID:     r.TrackingID,
		BankRefNo:      r.BankRefNo,
		PaymentMode:    r.PaymentMode,
		FailureMessage: r.FailureMessage,
		StatusCode:     r.StatusCode,
		StatusMessage:  r.StatusMessage,
		CompletedAt:    r.CompletedAt,
	}
}
