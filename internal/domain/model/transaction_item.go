package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionItem は取引の明細。商品名・画像・単価は販売時点の値を持つ。
type TransactionItem struct {
	ID                  int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	TransactionID       string          `gorm:"type:varchar(36);not null;uniqueIndex:idx_tx_product" json:"transaction_id"`
	ProductID           string          `gorm:"type:varchar(36);not null;uniqueIndex:idx_tx_product;index" json:"product_id"`
	ProductNameSnapshot string          `gorm:"type:varchar(255);not null" json:"product_name_snapshot"`
	CategorySnapshot    string          `gorm:"type:varchar(100)" json:"category_snapshot"`
	ImageSnapshot       string          `gorm:"type:varchar(255)" json:"image_snapshot"`
	UnitPriceSnapshot   decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"unit_price_snapshot"`
	Quantity            int64           `gorm:"not null" json:"quantity"`
	RefundedQuantity    int64           `gorm:"not null;default:0" json:"refunded_quantity"`
	CreatedAt           time.Time       `gorm:"not null;autoCreateTime" json:"created_at"`
}

// Refundable はまだ返金できる数量。
func (it TransactionItem) Refundable() int64 {
	return it.Quantity - it.RefundedQuantity
}
