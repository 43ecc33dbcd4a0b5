package usecase

import (
	"errors"
	"fmt"
	"time"
)

// HTTPError は handler がそのままレスポンスにできるエラー。
type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func NewHTTPError(status int, message string) error {
	return &HTTPError{
		Status:  status,
		Message: message,
	}
}

func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	ok := errors.As(err, &he)
	return he, ok
}

// ID生成（uuid）
type IDGenerator interface {
	NewID() string
}

// 現在時刻（テストで固定する）
type Clock interface {
	Now() time.Time
}
