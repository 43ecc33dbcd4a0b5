package pos

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/gommon/log"
	"github.com/shopspring/decimal"
)

// CheckoutDraft は支払い開始時点のカートのスナップショット。
// 送信中にライブのカートが変わっても、送信する合計はこれで固定される。
type CheckoutDraft struct {
	ID         string
	Lines      []CartLine
	Subtotal   decimal.Decimal
	CapturedAt time.Time
}

// BeginCheckout はカートをコピーして合計を確定する。
// ID は取引作成の Idempotency-Key として使う。
func BeginCheckout(c Cart, now time.Time) (CheckoutDraft, error) {
	if c.IsEmpty() {
		return CheckoutDraft{}, ErrEmptyCart
	}

	lines := c.Lines()
	for i := range lines {
		lines[i].Product = lines[i].Product.clone()
	}
	return CheckoutDraft{
		ID:         uuid.NewString(),
		Lines:      lines,
		Subtotal:   Subtotal(Cart{lines: lines}),
		CapturedAt: now,
	}, nil
}

// Request は送信用のボディを組み立てる。
func (d CheckoutDraft) Request(customer Customer, cashier string) TransactionRequest {
	items := make([]TransactionRequestItem, 0, len(d.Lines))
	for _, l := range d.Lines {
		items = append(items, TransactionRequestItem{
			ProductID: l.Product.ID,
			Quantity:  l.Quantity,
			UnitPrice: CoerceNonNegative(l.Product.SellingPrice),
		})
	}

	return TransactionRequest{
		IdempotencyKey: d.ID,
		Items:          items,
		Customer:       customer,
		Cashier:        cashier,
		TotalPrice:     d.Subtotal,
	}
}

// Checkout はスナップショットを取引サービスに送る。
type Checkout struct {
	gw     TransactionGateway
	logger *log.Logger
}

func NewCheckout(gw TransactionGateway, logger *log.Logger) *Checkout {
	if logger == nil {
		logger = log.New("pos")
	}
	return &Checkout{gw: gw, logger: logger}
}

// Submit は draft だけを使って取引を作成する。
// 失敗時は *SubmissionError を返す（呼び出し側のカートには触らない）。
func (c *Checkout) Submit(ctx context.Context, draft CheckoutDraft, customer Customer, cashier string) (TransactionRecord, error) {
	if len(draft.Lines) == 0 {
		return TransactionRecord{}, ErrEmptyCart
	}
	if strings.TrimSpace(cashier) == "" {
		return TransactionRecord{}, ErrMissingCashier
	}

	rec, err := c.gw.CreateTransaction(ctx, draft.Request(customer, cashier))
	if err != nil {
		c.logger.Warnj(log.JSON{
			"msg":   "transaction submission failed",
			"draft": draft.ID,
			"total": draft.Subtotal.StringFixed(defaultDecimals),
			"error": err.Error(),
		})
		return TransactionRecord{}, asSubmission("create transaction", err)
	}

	c.logger.Infoj(log.JSON{
		"msg":         "transaction created",
		"draft":       draft.ID,
		"transaction": rec.ID,
		"total":       draft.Subtotal.StringFixed(defaultDecimals),
	})
	return rec, nil
}

// Register はレジ1台分のライブのカート。
// 支払いはスナップショットで行い、成功したときだけカートを空にする。
type Register struct {
	mu       sync.Mutex
	cart     Cart
	paying   bool
	checkout *Checkout
	cashier  string
	now      func() time.Time
}

func NewRegister(checkout *Checkout, cashier string) *Register {
	return &Register{
		checkout: checkout,
		cashier:  cashier,
		now:      time.Now,
	}
}

func (r *Register) Cart() Cart {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cart
}

func (r *Register) Subtotal() decimal.Decimal {
	return Subtotal(r.Cart())
}

func (r *Register) Add(p Product) Cart {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cart = AddItem(r.cart, p)
	return r.cart
}

func (r *Register) Remove(productID string) Cart {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cart = RemoveItem(r.cart, productID)
	return r.cart
}

func (r *Register) SetQuantity(productID string, raw string) Cart {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cart = SetLineQuantity(r.cart, productID, raw)
	return r.cart
}

// Cancel は注文を取り消してカートを空にする。
func (r *Register) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cart = Cart{}
}

// Pay はスナップショットを取って送信する。
// 送信中もカートは編集できるが、送信内容には影響しない。
func (r *Register) Pay(ctx context.Context, customer Customer) (TransactionRecord, error) {
	r.mu.Lock()
	if r.paying {
		r.mu.Unlock()
		return TransactionRecord{}, ErrCheckoutInFlight
	}
	draft, err := BeginCheckout(r.cart, r.now())
	if err != nil {
		r.mu.Unlock()
		return TransactionRecord{}, err
	}
	r.paying = true
	r.mu.Unlock()

	rec, err := r.checkout.Submit(ctx, draft, customer, r.cashier)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.paying = false
	if err != nil {
		return TransactionRecord{}, err
	}
	r.cart = Cart{}
	return rec, nil
}
