package repository

import (
	"context"

	"pos/internal/domain/model"
)

type TransactionItemRepository interface {
	CreateBulk(ctx context.Context, transactionID string, items []model.TransactionItem) error
	ListByTransactionID(ctx context.Context, transactionID string) ([]model.TransactionItem, error)

	// 返金済み数量を加算（購入数を超えるなら false）
	AddRefundedIfWithin(ctx context.Context, transactionID string, productID string, qty int64) (bool, error)
}
