package pos

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Customer は請求先（Bill To）。
type Customer struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
}

// TransactionRequestItem は送信する明細。単価はチェックアウト時点の値。
type TransactionRequestItem struct {
	ProductID string          `json:"product_id"`
	Quantity  int64           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// TransactionRequest は POST /transaction のボディ。
// IdempotencyKey はヘッダーで送る。
type TransactionRequest struct {
	IdempotencyKey string                   `json:"-"`
	Items          []TransactionRequestItem `json:"items"`
	Customer       Customer                 `json:"customer"`
	Cashier        string                   `json:"cashier"`
	TotalPrice     decimal.Decimal          `json:"total_price"`
}

// TransactionItem は確定済み取引の明細。
type TransactionItem struct {
	Product          Product `json:"product"`
	Quantity         Number  `json:"quantity"`
	RefundedQuantity Number  `json:"refunded_quantity"`
}

// Refundable はまだ返金できる数量（購入数 − 返金済み数）。
func (it TransactionItem) Refundable() int64 {
	left := it.Quantity.Int() - it.RefundedQuantity.Int()
	if left < 0 {
		return 0
	}
	return left
}

// TransactionRecord は取引サービスに保存された取引。作成後は変更しない。
type TransactionRecord struct {
	ID         string            `json:"_id"`
	Items      []TransactionItem `json:"items"`
	Customer   Customer          `json:"customer"`
	Cashier    string            `json:"cashier"`
	CreatedAt  time.Time         `json:"transaction_date"`
	TotalPrice Number            `json:"total_price"`
	Status     string            `json:"status"`
}

// Item は商品IDの明細を返す。
func (r TransactionRecord) Item(productID string) (TransactionItem, bool) {
	for _, it := range r.Items {
		if it.Product.ID == productID {
			return it, true
		}
	}
	return TransactionItem{}, false
}

// RefundSubmission は POST /refund のボディ。
type RefundSubmission struct {
	TransactionID string           `json:"transaction_id"`
	SelectedItems map[string]int64 `json:"selectedItems"`
	RefundReason  string           `json:"refundReason"`
	Cashier       string           `json:"cashier"`
}

// RefundConfirmation は返金成功時のレスポンス。
type RefundConfirmation struct {
	RefundID      string           `json:"refund_id"`
	TransactionID string           `json:"transaction_id"`
	Amount        decimal.Decimal  `json:"amount"`
	Status        string           `json:"status"`
	Items         map[string]int64 `json:"items"`
	CreatedAt     time.Time        `json:"created_at"`
}

// TransactionGateway は取引サービスへの窓口（取引作成・返金）。
type TransactionGateway interface {
	CreateTransaction(ctx context.Context, req TransactionRequest) (TransactionRecord, error)
	ApplyRefund(ctx context.Context, req RefundSubmission) (RefundConfirmation, error)
}
