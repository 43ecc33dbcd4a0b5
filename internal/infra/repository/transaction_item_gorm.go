package repository

import (
	"context"

	"pos/internal/domain/model"

	"gorm.io/gorm"
)

type TransactionItemGormRepository struct {
	db *gorm.DB
}

func NewTransactionItemGormRepository(db *gorm.DB) *TransactionItemGormRepository {
	return &TransactionItemGormRepository{db: db}
}

func (r *TransactionItemGormRepository) CreateBulk(ctx context.Context, transactionID string, items []model.TransactionItem) error {
	if len(items) == 0 {
		return nil
	}
	for i := range items {
		items[i].TransactionID = transactionID
	}
	if err := r.db.WithContext(ctx).Create(&items).Error; err != nil {
		return err
	}
	return nil
}

func (r *TransactionItemGormRepository) ListByTransactionID(ctx context.Context, transactionID string) ([]model.TransactionItem, error) {
	var items []model.TransactionItem
	err := r.db.WithContext(ctx).Where("transaction_id = ?", transactionID).Order("id asc").Find(&items).Error
	if err != nil {
		return []model.TransactionItem{}, err
	}
	return items, nil
}

// 返金済み数量が購入数を超えないときだけ加算
func (r *TransactionItemGormRepository) AddRefundedIfWithin(ctx context.Context, transactionID string, productID string, qty int64) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.TransactionItem{}).
		Where("transaction_id = ? AND product_id = ? AND refunded_quantity + ? <= quantity", transactionID, productID, qty).
		Update("refunded_quantity", gorm.Expr("refunded_quantity + ?", qty))

	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
