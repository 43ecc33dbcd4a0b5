package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"pos/internal/domain/model"
	repo "pos/internal/repository"

	"github.com/shopspring/decimal"
)

type ProductUsecase struct {
	productRepo repo.ProductRepository
	inventory   repo.InventoryRepository
	tx          repo.TransactionManager
	idGen       IDGenerator
	clock       Clock
}

// DI
func NewProductUsecase(productRepo repo.ProductRepository, inventory repo.InventoryRepository, tx repo.TransactionManager, idGen IDGenerator, clock Clock) *ProductUsecase {
	return &ProductUsecase{
		productRepo: productRepo,
		inventory:   inventory,
		tx:          tx,
		idGen:       idGen,
		clock:       clock,
	}
}

// GET /productの入力DTO
type ListProductsInput struct {
	Category string
	Q        string
}

func (u *ProductUsecase) ListProducts(ctx context.Context, in ListProductsInput) ([]model.Product, error) {
	if len(in.Q) > 100 {
		return []model.Product{}, NewHTTPError(http.StatusBadRequest, "q too long")
	}
	if len(in.Category) > 100 {
		return []model.Product{}, NewHTTPError(http.StatusBadRequest, "category too long")
	}

	items, err := u.productRepo.List(ctx, repo.ProductListQuery{
		Category: strings.TrimSpace(in.Category),
		Q:        strings.TrimSpace(in.Q),
	})
	if err != nil {
		return []model.Product{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return items, nil
}

func (u *ProductUsecase) GetProduct(ctx context.Context, productID string) (model.Product, error) {
	if strings.TrimSpace(productID) == "" {
		return model.Product{}, NewHTTPError(http.StatusBadRequest, "invalid product id")
	}

	p, err := u.productRepo.FindByID(ctx, productID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Product{}, NewHTTPError(http.StatusNotFound, "not found")
	}
	if err != nil {
		return model.Product{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	if !p.IsActive {
		return model.Product{}, NewHTTPError(http.StatusNotFound, "not found")
	}
	return p, nil
}

type CreateProductInput struct {
	Name            string          `json:"name"`
	Category        string          `json:"category"`
	Image           string          `json:"image"`
	SellingPrice    decimal.Decimal `json:"selling_price"`
	QuantityInStock int64           `json:"quantity_in_stock"`
}

// 管理者の商品登録
func (u *ProductUsecase) CreateProduct(ctx context.Context, in CreateProductInput) (model.Product, error) {
	if strings.TrimSpace(in.Name) == "" {
		return model.Product{}, NewHTTPError(http.StatusBadRequest, "name required")
	}
	if strings.TrimSpace(in.Category) == "" {
		return model.Product{}, NewHTTPError(http.StatusBadRequest, "category required")
	}
	if in.SellingPrice.IsNegative() {
		return model.Product{}, NewHTTPError(http.StatusBadRequest, "selling_price must be >= 0")
	}
	if in.QuantityInStock < 0 {
		return model.Product{}, NewHTTPError(http.StatusBadRequest, "quantity_in_stock must be >= 0")
	}

	p, err := u.productRepo.Create(ctx, model.Product{
		ID:              u.idGen.NewID(),
		Name:            strings.TrimSpace(in.Name),
		Category:        strings.TrimSpace(in.Category),
		Image:           strings.TrimSpace(in.Image),
		SellingPrice:    in.SellingPrice.Round(2),
		QuantityInStock: in.QuantityInStock,
		IsActive:        true,
	})
	if err != nil {
		return model.Product{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return p, nil
}

type AdjustStockInput struct {
	Delta  int64  `json:"delta"`
	Reason string `json:"reason"`
}

// AdjustStock は入荷・棚卸しなどの在庫調整（販売・返金以外）。
func (u *ProductUsecase) AdjustStock(ctx context.Context, adminID, productID string, in AdjustStockInput) (model.Product, error) {
	if strings.TrimSpace(productID) == "" {
		return model.Product{}, NewHTTPError(http.StatusBadRequest, "invalid product id")
	}
	if in.Delta == 0 {
		return model.Product{}, NewHTTPError(http.StatusBadRequest, "delta must not be 0")
	}
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return model.Product{}, NewHTTPError(http.StatusBadRequest, "reason required")
	}

	var out model.Product

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		before, err := r.Products().FindByID(ctx, productID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		ok, err := r.Inventory().AdjustStock(ctx, productID, in.Delta)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if !ok {
			return NewHTTPError(http.StatusConflict, "stock cannot go below zero")
		}

		if err := r.Inventory().CreateAdjustment(ctx, model.InventoryAdjustment{
			ProductID:   productID,
			AdminID:     adminID,
			Delta:       in.Delta,
			StockBefore: before.QuantityInStock,
			StockAfter:  before.QuantityInStock + in.Delta,
			Reason:      reason,
			CreatedAt:   u.clock.Now(),
		}); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		out = before
		out.QuantityInStock += in.Delta
		return nil
	})

	if err != nil {
		return model.Product{}, err
	}
	return out, nil
}

type StockHistoryInput struct {
	From   *time.Time
	To     *time.Time
	Limit  int
	Offset int
}

// StockHistory は商品の在庫調整を新しい順に返す。
func (u *ProductUsecase) StockHistory(ctx context.Context, productID string, in StockHistoryInput) ([]model.InventoryAdjustment, error) {
	if strings.TrimSpace(productID) == "" {
		return []model.InventoryAdjustment{}, NewHTTPError(http.StatusBadRequest, "invalid product id")
	}
	if in.Limit < 0 || in.Limit > 200 {
		return []model.InventoryAdjustment{}, NewHTTPError(http.StatusBadRequest, "invalid limit")
	}
	if in.Offset < 0 {
		return []model.InventoryAdjustment{}, NewHTTPError(http.StatusBadRequest, "invalid offset")
	}
	if in.From != nil && in.To != nil && in.From.After(*in.To) {
		return []model.InventoryAdjustment{}, NewHTTPError(http.StatusBadRequest, "invalid date range")
	}

	adjs, err := u.inventory.ListAdjustments(ctx, repo.AdjustmentFilter{
		ProductID:   productID,
		CreatedFrom: in.From,
		CreatedTo:   in.To,
		Limit:       in.Limit,
		Offset:      in.Offset,
	})
	if err != nil {
		return []model.InventoryAdjustment{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return adjs, nil
}
