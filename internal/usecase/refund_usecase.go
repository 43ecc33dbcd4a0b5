package usecase

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	"pos/internal/domain/model"
	repo "pos/internal/repository"

	"github.com/shopspring/decimal"
)

type RefundUsecase struct {
	tx     repo.TransactionManager
	idGen  IDGenerator
	clock  Clock
	window time.Duration
}

// window は返金を受け付ける期間。0 なら無制限。
func NewRefundUsecase(tx repo.TransactionManager, idGen IDGenerator, clock Clock, window time.Duration) *RefundUsecase {
	return &RefundUsecase{tx: tx, idGen: idGen, clock: clock, window: window}
}

type RefundInput struct {
	TransactionID string           `json:"transaction_id"`
	SelectedItems map[string]int64 `json:"selectedItems"`
	RefundReason  string           `json:"refundReason"`
	Cashier       string           `json:"cashier"`
}

type RefundOutput struct {
	RefundID      string           `json:"refund_id"`
	TransactionID string           `json:"transaction_id"`
	Amount        decimal.Decimal  `json:"amount"`
	Status        string           `json:"status"`
	Items         map[string]int64 `json:"items"`
	CreatedAt     time.Time        `json:"created_at"`
}

// Apply は取引の一部（または全部）を返金する。
// 明細ごとの返金済み数量を積み上げ、在庫を戻し、取引の status を進める。
func (u *RefundUsecase) Apply(ctx context.Context, in RefundInput) (RefundOutput, error) {
	txID := strings.TrimSpace(in.TransactionID)
	if txID == "" {
		return RefundOutput{}, NewHTTPError(http.StatusBadRequest, "transaction_id required")
	}
	reason := strings.TrimSpace(in.RefundReason)
	if reason == "" {
		return RefundOutput{}, NewHTTPError(http.StatusBadRequest, "refund reason is required")
	}
	cashier := strings.TrimSpace(in.Cashier)
	if cashier == "" {
		return RefundOutput{}, NewHTTPError(http.StatusBadRequest, "cashier required")
	}

	// 0 は未選択として落とす
	selected := make(map[string]int64, len(in.SelectedItems))
	for id, q := range in.SelectedItems {
		if q < 0 {
			return RefundOutput{}, NewHTTPError(http.StatusBadRequest, "invalid quantity")
		}
		if q == 0 {
			continue
		}
		selected[id] = q
	}
	if len(selected) == 0 {
		return RefundOutput{}, NewHTTPError(http.StatusBadRequest, "at least one item must be selected for refund")
	}

	// 更新順を固定する（デッドロック回避）
	ids := make([]string, 0, len(selected))
	for id := range selected {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out RefundOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		t, err := r.Transactions().FindByID(ctx, txID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "transaction not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if t.Status == model.TransactionStatusRefunded {
			return NewHTTPError(http.StatusConflict, "transaction already refunded")
		}

		now := u.clock.Now()
		if u.window > 0 && now.Sub(t.CreatedAt) > u.window {
			return NewHTTPError(http.StatusBadRequest, "refund window expired")
		}

		items, err := r.TransactionItems().ListByTransactionID(ctx, txID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		byProduct := make(map[string]*model.TransactionItem, len(items))
		for i := range items {
			byProduct[items[i].ProductID] = &items[i]
		}

		refundID := u.idGen.NewID()
		amount := decimal.Zero
		refundItems := make([]model.RefundItem, 0, len(ids))

		for _, pid := range ids {
			qty := selected[pid]
			it, ok := byProduct[pid]
			if !ok {
				return NewHTTPError(http.StatusBadRequest, "item is not part of the transaction")
			}

			//返金済み数量を加算（購入数を超えるなら false）
			ok, err := r.TransactionItems().AddRefundedIfWithin(ctx, txID, pid, qty)
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			if !ok {
				return NewHTTPError(http.StatusConflict, "refund quantity exceeds purchased quantity: "+it.ProductNameSnapshot)
			}
			it.RefundedQuantity += qty

			//在庫戻し（商品が消えていても返金は通す）
			if err := r.Inventory().IncreaseStock(ctx, pid, qty); err != nil && !errors.Is(err, repo.ErrNotFound) {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}

			line := it.UnitPriceSnapshot.Mul(decimal.NewFromInt(qty))
			amount = amount.Add(line)
			refundItems = append(refundItems, model.RefundItem{
				ProductID: pid,
				Quantity:  qty,
				UnitPrice: it.UnitPriceSnapshot,
				Amount:    line,
			})
		}

		if err := r.Refunds().Create(ctx, model.Refund{
			ID:            refundID,
			TransactionID: txID,
			Cashier:       cashier,
			Reason:        reason,
			Amount:        amount,
			CreatedAt:     now,
		}, refundItems); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		status := model.TransactionStatusRefunded
		for _, it := range items {
			if it.Refundable() > 0 {
				status = model.TransactionStatusPartiallyRefunded
				break
			}
		}
		if err := r.Transactions().UpdateStatus(ctx, txID, status); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		out = RefundOutput{
			RefundID:      refundID,
			TransactionID: txID,
			Amount:        amount,
			Status:        string(status),
			Items:         selected,
			CreatedAt:     now,
		}
		return nil
	})

	if err != nil {
		return RefundOutput{}, err
	}
	return out, nil
}
