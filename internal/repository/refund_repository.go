package repository

import (
	"context"

	"pos/internal/domain/model"
)

type RefundRepository interface {
	Create(ctx context.Context, refund model.Refund, items []model.RefundItem) error
	ListByTransactionID(ctx context.Context, transactionID string) ([]model.Refund, error)
}
