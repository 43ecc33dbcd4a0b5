package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Refund は取引に対する1回分の返金。
type Refund struct {
	ID            string          `gorm:"type:varchar(36);primaryKey" json:"refund_id"`
	TransactionID string          `gorm:"type:varchar(36);not null;index" json:"transaction_id"`
	Cashier       string          `gorm:"type:varchar(255);not null" json:"cashier"`
	Reason        string          `gorm:"type:text;not null" json:"reason"`
	Amount        decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"amount"`
	CreatedAt     time.Time       `gorm:"not null;autoCreateTime" json:"created_at"`
}

// RefundItem は返金の明細。単価は元の取引の販売時点の値。
type RefundItem struct {
	ID        int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	RefundID  string          `gorm:"type:varchar(36);not null;index" json:"refund_id"`
	ProductID string          `gorm:"type:varchar(36);not null" json:"product_id"`
	Quantity  int64           `gorm:"not null" json:"quantity"`
	UnitPrice decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"unit_price"`
	Amount    decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"amount"`
}
