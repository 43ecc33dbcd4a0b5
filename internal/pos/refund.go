package pos

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/labstack/gommon/log"
	"github.com/shopspring/decimal"
)

// RefundState は返金画面の状態。
type RefundState int

const (
	RefundViewing RefundState = iota
	RefundSelecting
	RefundSubmitting
	RefundCompleted
	RefundFailed
)

func (s RefundState) String() string {
	switch s {
	case RefundViewing:
		return "VIEWING"
	case RefundSelecting:
		return "SELECTING"
	case RefundSubmitting:
		return "SUBMITTING"
	case RefundCompleted:
		return "COMPLETED"
	case RefundFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

func (s RefundState) IsTerminal() bool {
	return s == RefundCompleted || s == RefundFailed
}

// Selection は商品ID → 返金数量。
// nil の値は「未定義」で、送信対象から外す（0扱いではない）。
type Selection map[string]*int64

func (s Selection) clone() Selection {
	out := make(Selection, len(s))
	for id, q := range s {
		if q == nil {
			out[id] = nil
			continue
		}
		v := *q
		out[id] = &v
	}
	return out
}

// Quantity は選択中の数量。未選択・未定義なら false。
func (s Selection) Quantity(productID string) (int64, bool) {
	q, ok := s[productID]
	if !ok || q == nil {
		return 0, false
	}
	return *q, true
}

// ToggleItemSelection は選択済みなら外し、未選択なら購入数量で選択する。
// 購入数量が1未満なら選択しない。
func ToggleItemSelection(sel Selection, productID string, purchased int64) Selection {
	out := sel.clone()
	if q, ok := out[productID]; ok && q != nil {
		delete(out, productID)
		return out
	}
	if purchased < 1 {
		return out
	}
	v := purchased
	out[productID] = &v
	return out
}

// SetRefundQuantity は選択済みの商品の数量を [1, purchased] に収めて上書きする。
func SetRefundQuantity(sel Selection, productID string, raw string, purchased int64) (Selection, error) {
	if _, ok := sel.Quantity(productID); !ok {
		return sel, ErrItemNotSelected
	}

	qty := CoerceQuantity(raw)
	if qty < 1 {
		qty = 1
	}
	if qty > purchased {
		qty = purchased
	}

	out := sel.clone()
	out[productID] = &qty
	return out, nil
}

// RefundRequest は検証済みの返金内容。
type RefundRequest struct {
	Items  map[string]int64
	Reason string
}

// ValidateRefundRequest は返金内容を検証する。
// 未定義と数量0の項目は除外し、残りが無ければ ErrNoItemsSelected。
func ValidateRefundRequest(sel Selection, reason string) (RefundRequest, error) {
	if strings.TrimSpace(reason) == "" {
		return RefundRequest{}, ErrEmptyReason
	}

	items := make(map[string]int64, len(sel))
	for id, q := range sel {
		if q == nil {
			continue
		}
		n := CoerceQuantity(*q)
		if n == 0 {
			continue
		}
		items[id] = n
	}
	if len(items) == 0 {
		return RefundRequest{}, ErrNoItemsSelected
	}

	return RefundRequest{Items: items, Reason: reason}, nil
}

// SubmitRefund は検証済みの返金を取引サービスに送る。
func SubmitRefund(ctx context.Context, gw TransactionGateway, req RefundRequest, transactionID string, cashier string) (RefundConfirmation, error) {
	items := make(map[string]int64, len(req.Items))
	for id, q := range req.Items {
		items[id] = q
	}

	conf, err := gw.ApplyRefund(ctx, RefundSubmission{
		TransactionID: transactionID,
		SelectedItems: items,
		RefundReason:  req.Reason,
		Cashier:       cashier,
	})
	if err != nil {
		return RefundConfirmation{}, asSubmission("apply refund", err)
	}
	return conf, nil
}

// ReceiptLine はレシート表示用の1行。
type ReceiptLine struct {
	ProductID     string
	Name          string
	Image         string
	UnitPrice     decimal.Decimal
	Quantity      int64
	LineTotal     decimal.Decimal
	UnitPriceText string
	LineTotalText string
	Malformed     bool
}

// ReceiptLines は取引の明細を表示用に変換する。
// 単価と数量は別々に丸めるので、壊れた行があっても 0 表示で続ける。
func ReceiptLines(rec TransactionRecord) []ReceiptLine {
	lines := make([]ReceiptLine, 0, len(rec.Items))
	for _, it := range rec.Items {
		unit := CoerceNonNegative(it.Product.SellingPrice)
		qty := CoerceQuantity(it.Quantity)
		total := unit.Mul(decimal.NewFromInt(qty))

		name := it.Product.Name
		if name == "" {
			name = "Unknown"
		}

		lines = append(lines, ReceiptLine{
			ProductID:     it.Product.ID,
			Name:          name,
			Image:         it.Product.Image,
			UnitPrice:     unit,
			Quantity:      qty,
			LineTotal:     total,
			UnitPriceText: FormatCurrency(unit),
			LineTotalText: FormatCurrency(total),
			Malformed:     it.Product.SellingPrice.Malformed() || it.Quantity.Malformed(),
		})
	}
	return lines
}

// RefundTotal は返金内容を販売時の単価で合計する。
func RefundTotal(rec TransactionRecord, req RefundRequest) decimal.Decimal {
	total := decimal.Zero
	for _, it := range rec.Items {
		qty, ok := req.Items[it.Product.ID]
		if !ok {
			continue
		}
		total = total.Add(CoerceNonNegative(it.Product.SellingPrice).Mul(decimal.NewFromInt(qty)))
	}
	return total
}

// FormatReceiptDate はレシートの日付表示。ゼロ値は "N/A"。
func FormatReceiptDate(t time.Time) string {
	if t.IsZero() {
		return "N/A"
	}
	return t.Format("January 02, 2006")
}

// RefundSession は1件の取引に対する返金画面の状態機械。
// VIEWING → SELECTING → SUBMITTING → COMPLETED / FAILED
// FAILED は次の編集で SELECTING に戻り、選択と理由はそのまま残る。
type RefundSession struct {
	mu        sync.Mutex
	record    TransactionRecord
	gw        TransactionGateway
	cashier   string
	logger    *log.Logger
	state     RefundState
	selection Selection
	reason    string
	lastErr   error
}

func NewRefundSession(rec TransactionRecord, gw TransactionGateway, cashier string, logger *log.Logger) *RefundSession {
	if logger == nil {
		logger = log.New("pos")
	}
	for _, it := range rec.Items {
		if it.Product.SellingPrice.Malformed() || it.Quantity.Malformed() {
			logger.Debugj(log.JSON{
				"msg":         "malformed transaction line degraded to zero",
				"transaction": rec.ID,
				"product":     it.Product.ID,
			})
		}
	}

	return &RefundSession{
		record:    rec,
		gw:        gw,
		cashier:   cashier,
		logger:    logger,
		state:     RefundViewing,
		selection: Selection{},
	}
}

func (s *RefundSession) State() RefundState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *RefundSession) Selection() Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection.clone()
}

func (s *RefundSession) Reason() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

// Err は直近の送信失敗。
func (s *RefundSession) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *RefundSession) Record() TransactionRecord {
	return s.record
}

func (s *RefundSession) Lines() []ReceiptLine {
	return ReceiptLines(s.record)
}

// Open は返金操作を表示する（VIEWING → SELECTING）。
func (s *RefundSession) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.editable()
}

// Cancel は返金操作を閉じる。入力済みの選択と理由は残す。
func (s *RefundSession) Cancel() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case RefundSubmitting:
		return ErrRefundInFlight
	case RefundCompleted:
		return ErrRefundState
	}
	s.state = RefundViewing
	return nil
}

// Toggle は明細の選択を切り替える。初期値は返金可能な全数量。
func (s *RefundSession) Toggle(productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editable(); err != nil {
		return err
	}

	it, ok := s.record.Item(productID)
	if !ok {
		return ErrUnknownItem
	}
	// 返金済みの明細は外すことはできても選び直せない
	if _, selected := s.selection.Quantity(productID); !selected && it.Refundable() < 1 {
		return ErrNothingRefundable
	}
	s.selection = ToggleItemSelection(s.selection, productID, it.Refundable())
	return nil
}

// SetQuantity は選択済みの明細の返金数量を変える。
func (s *RefundSession) SetQuantity(productID string, raw string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editable(); err != nil {
		return err
	}

	it, ok := s.record.Item(productID)
	if !ok {
		return ErrUnknownItem
	}
	sel, err := SetRefundQuantity(s.selection, productID, raw, it.Refundable())
	if err != nil {
		return err
	}
	s.selection = sel
	return nil
}

func (s *RefundSession) SetReason(reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editable(); err != nil {
		return err
	}
	s.reason = reason
	return nil
}

// SelectedTotal は現在の選択を販売時の単価で合計する。
func (s *RefundSession) SelectedTotal() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make(map[string]int64, len(s.selection))
	for id, q := range s.selection {
		if q != nil {
			items[id] = *q
		}
	}
	return RefundTotal(s.record, RefundRequest{Items: items})
}

// Submit は検証して送信する。
// 検証エラーでは状態を変えない。送信失敗では FAILED になり、選択と理由は残る。
func (s *RefundSession) Submit(ctx context.Context) (RefundConfirmation, error) {
	s.mu.Lock()
	if err := s.editable(); err != nil {
		s.mu.Unlock()
		return RefundConfirmation{}, err
	}
	req, err := ValidateRefundRequest(s.selection, s.reason)
	if err != nil {
		s.mu.Unlock()
		return RefundConfirmation{}, err
	}
	s.state = RefundSubmitting
	s.lastErr = nil
	s.mu.Unlock()

	conf, err := SubmitRefund(ctx, s.gw, req, s.record.ID, s.cashier)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.state = RefundFailed
		s.lastErr = err
		s.logger.Warnj(log.JSON{
			"msg":         "refund submission failed",
			"transaction": s.record.ID,
			"error":       err.Error(),
		})
		return RefundConfirmation{}, err
	}

	s.state = RefundCompleted
	s.logger.Infoj(log.JSON{
		"msg":         "refund completed",
		"transaction": s.record.ID,
		"refund":      conf.RefundID,
		"amount":      conf.Amount.StringFixed(defaultDecimals),
	})
	return conf, nil
}

// 編集できる状態なら SELECTING にする。mu を持った状態で呼ぶ。
func (s *RefundSession) editable() error {
	switch s.state {
	case RefundSubmitting:
		return ErrRefundInFlight
	case RefundCompleted:
		return ErrRefundState
	}
	s.state = RefundSelecting
	return nil
}
