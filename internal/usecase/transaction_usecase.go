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

type TransactionUsecase struct {
	tx    repo.TransactionManager
	idGen IDGenerator
	clock Clock
}

func NewTransactionUsecase(tx repo.TransactionManager, idGen IDGenerator, clock Clock) *TransactionUsecase {
	return &TransactionUsecase{tx: tx, idGen: idGen, clock: clock}
}

type TransactionItemInput struct {
	ProductID string `json:"product_id"`
	Quantity  int64  `json:"quantity"`
	// レジで表示していた単価（あればサーバー側の価格と照合）
	UnitPrice *decimal.Decimal `json:"unit_price"`
}

type CreateTransactionInput struct {
	IdempotencyKey string                 `json:"-"`
	Items          []TransactionItemInput `json:"items"`
	Customer       model.Customer         `json:"customer"`
	Cashier        string                 `json:"cashier"`
	TotalPrice     *decimal.Decimal       `json:"total_price"`
}

// レジ側の Product と同じ形
type ProductSnapshot struct {
	ID           string          `json:"_id"`
	Name         string          `json:"name"`
	Category     string          `json:"category"`
	Image        string          `json:"image"`
	SellingPrice decimal.Decimal `json:"selling_price"`
}

type TransactionItemOutput struct {
	Product          ProductSnapshot `json:"product"`
	Quantity         int64           `json:"quantity"`
	RefundedQuantity int64           `json:"refunded_quantity"`
}

type TransactionOutput struct {
	ID         string                  `json:"_id"`
	Items      []TransactionItemOutput `json:"items"`
	Customer   model.Customer          `json:"customer"`
	Cashier    string                  `json:"cashier"`
	CreatedAt  time.Time               `json:"transaction_date"`
	TotalPrice decimal.Decimal         `json:"total_price"`
	Status     string                  `json:"status"`

	// 同じ Idempotency-Key の再送で既存の取引を返したとき true
	Replayed bool `json:"-"`
}

func (u *TransactionUsecase) Create(ctx context.Context, in CreateTransactionInput) (TransactionOutput, error) {
	key := strings.TrimSpace(in.IdempotencyKey)
	if len(key) > 255 {
		return TransactionOutput{}, NewHTTPError(http.StatusBadRequest, "invalid idempotency_key")
	}
	if key == "" {
		key = u.idGen.NewID()
	}
	cashier := strings.TrimSpace(in.Cashier)
	if cashier == "" {
		return TransactionOutput{}, NewHTTPError(http.StatusBadRequest, "cashier required")
	}
	if len(in.Items) == 0 {
		return TransactionOutput{}, NewHTTPError(http.StatusBadRequest, "cart empty")
	}

	seen := make(map[string]struct{}, len(in.Items))
	for _, it := range in.Items {
		if strings.TrimSpace(it.ProductID) == "" {
			return TransactionOutput{}, NewHTTPError(http.StatusBadRequest, "invalid product_id")
		}
		if it.Quantity < 1 {
			return TransactionOutput{}, NewHTTPError(http.StatusBadRequest, "invalid quantity")
		}
		if _, dup := seen[it.ProductID]; dup {
			return TransactionOutput{}, NewHTTPError(http.StatusBadRequest, "duplicate product")
		}
		seen[it.ProductID] = struct{}{}
	}

	var out TransactionOutput

	//取引処理はトランザクション
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		// 同じキーなら同じ結果
		existing, found, err := r.Transactions().FindByIdempotencyKey(ctx, key)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if found {
			return u.replay(ctx, r, existing, &out)
		}

		//在庫を確定時にチェックして減らす
		items := make([]model.TransactionItem, 0, len(in.Items))
		total := decimal.Zero

		for _, it := range in.Items {
			p, err := r.Products().FindByID(ctx, it.ProductID)
			if errors.Is(err, repo.ErrNotFound) || (err == nil && !p.IsActive) {
				return NewHTTPError(http.StatusBadRequest, "invalid product")
			}
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			if it.UnitPrice != nil && !it.UnitPrice.Equal(p.SellingPrice) {
				return NewHTTPError(http.StatusConflict, "price changed: "+p.Name)
			}

			//在庫減算（足りないなら false）
			ok, err := r.Inventory().DecreaseStockIfEnough(ctx, p.ID, it.Quantity)
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			if !ok {
				return NewHTTPError(http.StatusConflict, "insufficient stock: "+p.Name)
			}

			//スナップショット
			items = append(items, model.TransactionItem{
				ProductID:           p.ID,
				ProductNameSnapshot: p.Name,
				CategorySnapshot:    p.Category,
				ImageSnapshot:       p.Image,
				UnitPriceSnapshot:   p.SellingPrice,
				Quantity:            it.Quantity,
			})
			total = total.Add(p.SellingPrice.Mul(decimal.NewFromInt(it.Quantity)))
		}

		if in.TotalPrice != nil && !in.TotalPrice.Equal(total) {
			return NewHTTPError(http.StatusBadRequest, "total mismatch")
		}

		now := u.clock.Now()
		t := model.Transaction{
			ID:             u.idGen.NewID(),
			Cashier:        cashier,
			Customer:       trimCustomer(in.Customer),
			Status:         model.TransactionStatusCompleted,
			TotalPrice:     total,
			IdempotencyKey: key,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := r.Transactions().Create(ctx, t); err != nil {
			//競合（同時で同じキーが入った等）はもう一回検索して同じ結果を返す
			if errors.Is(err, repo.ErrDuplicateKey) {
				ex2, found2, err2 := r.Transactions().FindByIdempotencyKey(ctx, key)
				if err2 == nil && found2 {
					return u.replay(ctx, r, ex2, &out)
				}
				return NewHTTPError(http.StatusConflict, "idempotency conflict")
			}
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		//取引明細一括作成
		if err := r.TransactionItems().CreateBulk(ctx, t.ID, items); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		out = toTransactionOutput(t, items)
		return nil
	})

	if err != nil {
		return TransactionOutput{}, err
	}
	return out, nil
}

func (u *TransactionUsecase) replay(ctx context.Context, r repo.TxRepos, t model.Transaction, out *TransactionOutput) error {
	items, err := r.TransactionItems().ListByTransactionID(ctx, t.ID)
	if err != nil {
		return NewHTTPError(http.StatusInternalServerError, "db error")
	}
	*out = toTransactionOutput(t, items)
	out.Replayed = true
	return nil
}

type ListTransactionsInput struct {
	Page    int
	Limit   int
	Status  string
	Cashier string
	From    *time.Time
	To      *time.Time
}

func (u *TransactionUsecase) List(ctx context.Context, in ListTransactionsInput) ([]TransactionOutput, error) {
	if in.Page < 1 {
		return []TransactionOutput{}, NewHTTPError(http.StatusBadRequest, "invalid page")
	}
	if in.Limit < 1 || in.Limit > 100 {
		return []TransactionOutput{}, NewHTTPError(http.StatusBadRequest, "invalid limit")
	}
	switch model.TransactionStatus(in.Status) {
	case "", model.TransactionStatusCompleted, model.TransactionStatusPartiallyRefunded, model.TransactionStatusRefunded:
	default:
		return []TransactionOutput{}, NewHTTPError(http.StatusBadRequest, "invalid status")
	}

	var outs []TransactionOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		txs, _, err := r.Transactions().List(ctx, repo.TransactionListFilter{
			Page:    in.Page,
			Limit:   in.Limit,
			Status:  in.Status,
			Cashier: strings.TrimSpace(in.Cashier),
			From:    in.From,
			To:      in.To,
		})
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		outs = make([]TransactionOutput, 0, len(txs))
		for _, t := range txs {
			items, err := r.TransactionItems().ListByTransactionID(ctx, t.ID)
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			outs = append(outs, toTransactionOutput(t, items))
		}
		return nil
	})

	if err != nil {
		return []TransactionOutput{}, err
	}
	return outs, nil
}

func (u *TransactionUsecase) Get(ctx context.Context, id string) (TransactionOutput, error) {
	if strings.TrimSpace(id) == "" {
		return TransactionOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var out TransactionOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		t, err := r.Transactions().FindByID(ctx, id)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "transaction not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		items, err := r.TransactionItems().ListByTransactionID(ctx, id)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		out = toTransactionOutput(t, items)
		return nil
	})

	if err != nil {
		return TransactionOutput{}, err
	}
	return out, nil
}

func trimCustomer(c model.Customer) model.Customer {
	return model.Customer{
		Name:    strings.TrimSpace(c.Name),
		Address: strings.TrimSpace(c.Address),
		Phone:   strings.TrimSpace(c.Phone),
	}
}

func toTransactionOutput(t model.Transaction, items []model.TransactionItem) TransactionOutput {
	outItems := make([]TransactionItemOutput, 0, len(items))
	for _, it := range items {
		outItems = append(outItems, TransactionItemOutput{
			Product: ProductSnapshot{
				ID:           it.ProductID,
				Name:         it.ProductNameSnapshot,
				Category:     it.CategorySnapshot,
				Image:        it.ImageSnapshot,
				SellingPrice: it.UnitPriceSnapshot,
			},
			Quantity:         it.Quantity,
			RefundedQuantity: it.RefundedQuantity,
		})
	}

	return TransactionOutput{
		ID:         t.ID,
		Items:      outItems,
		Customer:   t.Customer,
		Cashier:    t.Cashier,
		CreatedAt:  t.CreatedAt,
		TotalPrice: t.TotalPrice,
		Status:     string(t.Status),
	}
}
