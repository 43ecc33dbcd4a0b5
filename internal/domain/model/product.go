package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product は販売する商品。image は "public/images/..." のパスで保存する。
type Product struct {
	ID              string          `gorm:"type:varchar(36);primaryKey" json:"_id"`
	Name            string          `gorm:"type:varchar(255);not null" json:"name"`
	Category        string          `gorm:"type:varchar(100);not null;index" json:"category"`
	Image           string          `gorm:"type:varchar(255)" json:"image"`
	SellingPrice    decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"selling_price"`
	QuantityInStock int64           `gorm:"not null;default:0" json:"quantity_in_stock"`
	IsActive        bool            `gorm:"not null;default:true" json:"is_active"`
	CreatedAt       time.Time       `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"not null;autoUpdateTime" json:"updated_at"`
	DeletedAt       gorm.DeletedAt  `gorm:"index" json:"-"`
}
