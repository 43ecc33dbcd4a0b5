package pos

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// 入力の問題（送信前にローカルで止める）
	ErrEmptyCart         = errors.New("cart is empty")
	ErrMissingCashier    = errors.New("cashier is required")
	ErrEmptyReason       = errors.New("refund reason is required")
	ErrNoItemsSelected   = errors.New("at least one item must be selected for refund")
	ErrItemNotSelected   = errors.New("item is not selected for refund")
	ErrUnknownItem       = errors.New("item is not part of the transaction")
	ErrNothingRefundable = errors.New("item has already been fully refunded")
	ErrCheckoutInFlight  = errors.New("checkout already in progress")

	// refund 画面の状態遷移違反
	ErrRefundState    = errors.New("refund is not editable in the current state")
	ErrRefundInFlight = errors.New("refund submission in progress")
)

// IsValidation はユーザーに直してもらえば再送できるエラーか。
func IsValidation(err error) bool {
	switch {
	case errors.Is(err, ErrEmptyCart),
		errors.Is(err, ErrMissingCashier),
		errors.Is(err, ErrEmptyReason),
		errors.Is(err, ErrNoItemsSelected),
		errors.Is(err, ErrItemNotSelected),
		errors.Is(err, ErrUnknownItem),
		errors.Is(err, ErrNothingRefundable):
		return true
	}
	return false
}

// SubmissionError は取引サービスへの呼び出し失敗。
// Status が 0 のときは通信そのものが失敗している。
type SubmissionError struct {
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *SubmissionError) Error() string {
	switch {
	case e.Status != 0 && e.Message != "":
		return fmt.Sprintf("%s: %d %s", e.Op, e.Status, e.Message)
	case e.Status != 0:
		return fmt.Sprintf("%s: %d %s", e.Op, e.Status, http.StatusText(e.Status))
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return e.Op + ": failed"
	}
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// Temporary は同じ内容で再送して通る見込みがあるか（通信失敗・5xx）。
func (e *SubmissionError) Temporary() bool {
	return e.Status == 0 || e.Status >= http.StatusInternalServerError
}

// AsSubmissionError は err の中の SubmissionError を取り出す。
func AsSubmissionError(err error) (*SubmissionError, bool) {
	var se *SubmissionError
	ok := errors.As(err, &se)
	return se, ok
}

func asSubmission(op string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := AsSubmissionError(err); ok {
		return err
	}
	return &SubmissionError{Op: op, Err: err}
}
