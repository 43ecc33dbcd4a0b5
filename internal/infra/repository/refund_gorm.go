package repository

import (
	"context"

	"pos/internal/domain/model"

	"gorm.io/gorm"
)

type RefundGormRepository struct {
	db *gorm.DB
}

func NewRefundGormRepository(db *gorm.DB) *RefundGormRepository {
	return &RefundGormRepository{db: db}
}

// 返金と明細をまとめて保存
func (r *RefundGormRepository) Create(ctx context.Context, refund model.Refund, items []model.RefundItem) error {
	db := r.db.WithContext(ctx)
	if err := db.Create(&refund).Error; err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	for i := range items {
		items[i].RefundID = refund.ID
	}
	return db.Create(&items).Error
}

func (r *RefundGormRepository) ListByTransactionID(ctx context.Context, transactionID string) ([]model.Refund, error) {
	var refunds []model.Refund
	err := r.db.WithContext(ctx).
		Where("transaction_id = ?", transactionID).
		Order("created_at asc").
		Find(&refunds).Error
	if err != nil {
		return []model.Refund{}, err
	}
	return refunds, nil
}
