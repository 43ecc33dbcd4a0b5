package model

import "time"

// 在庫調整の履歴（入荷・棚卸しなど、販売と返金以外の増減）
type InventoryAdjustment struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductID   string    `gorm:"type:varchar(36);not null;index" json:"product_id"`
	AdminID     string    `gorm:"type:varchar(36);not null;index" json:"admin_id"`
	Delta       int64     `gorm:"not null" json:"delta"`
	StockBefore int64     `gorm:"not null" json:"stock_before"`
	StockAfter  int64     `gorm:"not null" json:"stock_after"`
	Reason      string    `gorm:"type:varchar(255);not null" json:"reason"`
	CreatedAt   time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}
