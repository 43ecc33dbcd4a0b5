package repository

import (
	"context"
	"time"

	"pos/internal/domain/model"
)

// 在庫調整履歴の絞り込み条件。
type AdjustmentFilter struct {
	ProductID   string
	AdminID     string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

type InventoryRepository interface {
	// 在庫が足りるときだけ減算
	DecreaseStockIfEnough(ctx context.Context, productID string, qty int64) (bool, error)

	// 在庫戻し（返金）
	IncreaseStock(ctx context.Context, productID string, qty int64) error

	// 管理者の在庫調整。結果がマイナスになるなら false
	AdjustStock(ctx context.Context, productID string, delta int64) (bool, error)
	CreateAdjustment(ctx context.Context, adj model.InventoryAdjustment) error
	ListAdjustments(ctx context.Context, filter AdjustmentFilter) ([]model.InventoryAdjustment, error)
}
