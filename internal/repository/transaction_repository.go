package repository

import (
	"context"
	"errors"
	"time"

	"pos/internal/domain/model"
)

// 一意制約違反（同じ Idempotency-Key の同時作成など）
var ErrDuplicateKey = errors.New("duplicate key")

type TransactionListFilter struct {
	Page    int
	Limit   int
	Status  string
	Cashier string
	From    *time.Time
	To      *time.Time
}

type TransactionRepository interface {
	FindByID(ctx context.Context, id string) (model.Transaction, error)
	Create(ctx context.Context, tx model.Transaction) error
	UpdateStatus(ctx context.Context, id string, status model.TransactionStatus) error
	List(ctx context.Context, f TransactionListFilter) ([]model.Transaction, int64, error)

	//検索（同じキーなら同じ結果を返す）
	FindByIdempotencyKey(ctx context.Context, key string) (model.Transaction, bool, error)
}
