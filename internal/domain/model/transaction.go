package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionStatus string

const (
	TransactionStatusCompleted         TransactionStatus = "COMPLETED"
	TransactionStatusPartiallyRefunded TransactionStatus = "PARTIALLY_REFUNDED"
	TransactionStatusRefunded          TransactionStatus = "REFUNDED"
)

// Customer は請求先。取引に埋め込んで保存する。
type Customer struct {
	Name    string `gorm:"type:varchar(255)" json:"name"`
	Address string `gorm:"type:varchar(255)" json:"address"`
	Phone   string `gorm:"type:varchar(50)" json:"phone"`
}

// Transaction はレジで確定した取引。金額・明細は作成後に変えない（status だけ進む）。
type Transaction struct {
	ID             string            `gorm:"type:varchar(36);primaryKey" json:"_id"`
	Cashier        string            `gorm:"type:varchar(255);not null;index" json:"cashier"`
	Customer       Customer          `gorm:"embedded;embeddedPrefix:customer_" json:"customer"`
	Status         TransactionStatus `gorm:"type:varchar(30);not null;index" json:"status"`
	TotalPrice     decimal.Decimal   `gorm:"type:numeric(14,2);not null" json:"total_price"`
	IdempotencyKey string            `gorm:"type:varchar(255);not null;uniqueIndex" json:"-"`
	CreatedAt      time.Time         `gorm:"not null;autoCreateTime;index" json:"transaction_date"`
	UpdatedAt      time.Time         `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
