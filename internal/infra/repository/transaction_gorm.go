package repository

import (
	"context"

	"pos/internal/domain/model"
	repo "pos/internal/repository"

	"gorm.io/gorm"
)

type TransactionGormRepository struct {
	db *gorm.DB
}

func NewTransactionGormRepository(db *gorm.DB) *TransactionGormRepository {
	return &TransactionGormRepository{db: db}
}

func (r *TransactionGormRepository) FindByID(ctx context.Context, id string) (model.Transaction, error) {
	var t model.Transaction
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&t).Error
	if isNotFound(err) {
		return model.Transaction{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Transaction{}, err
	}
	return t, nil
}

// Create は SAVEPOINT の中で insert する。
// 一意制約違反でも外側の Tx を壊さず、呼び出し側が既存の取引を読み直せる。
func (r *TransactionGormRepository) Create(ctx context.Context, t model.Transaction) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&t).Error
	})
	if err != nil {
		return mapUniqueViolation(err)
	}
	return nil
}

func (r *TransactionGormRepository) UpdateStatus(ctx context.Context, id string, status model.TransactionStatus) error {
	res := r.db.WithContext(ctx).Model(&model.Transaction{}).
		Where("id = ?", id).
		Update("status", status)

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (r *TransactionGormRepository) FindByIdempotencyKey(ctx context.Context, key string) (model.Transaction, bool, error) {
	var t model.Transaction
	err := r.db.WithContext(ctx).
		Where("idempotency_key = ?", key).
		First(&t).Error

	if isNotFound(err) {
		return model.Transaction{}, false, nil
	}
	if err != nil {
		return model.Transaction{}, false, err
	}
	return t, true, nil
}

func (r *TransactionGormRepository) List(ctx context.Context, f repo.TransactionListFilter) ([]model.Transaction, int64, error) {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 50
	}

	q := r.db.WithContext(ctx).Model(&model.Transaction{})

	//status 絞り込み
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Cashier != "" {
		q = q.Where("cashier = ?", f.Cashier)
	}

	//期間絞り込み
	if f.From != nil {
		q = q.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("created_at <= ?", *f.To)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return []model.Transaction{}, 0, err
	}

	var items []model.Transaction
	offset := (f.Page - 1) * f.Limit
	if err := q.Order("created_at desc").Order("id desc").Limit(f.Limit).Offset(offset).Find(&items).Error; err != nil {
		return []model.Transaction{}, 0, err
	}

	return items, total, nil
}
