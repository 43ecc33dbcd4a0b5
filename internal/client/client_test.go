package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"pos/internal/pos"
	"pos/internal/session"

	"github.com/labstack/gommon/log"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quiet() *log.Logger {
	l := log.New("test")
	l.SetLevel(log.OFF)
	return l
}

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(Config{BaseURL: srv.URL, BreakerFailures: 2, BreakerTimeout: time.Minute, Logger: quiet()})
}

func TestClient_Login(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/user/login", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ana", body["username"])
		assert.Equal(t, "cashier", body["role"])

		_ = json.NewEncoder(w).Encode(map[string]string{"_id": "u1", "token": "tok", "name": "Ana", "contact": "0917"})
	})

	s, err := c.Login(context.Background(), session.Credentials{Username: "ana", Password: "pw", Role: "cashier"})
	require.NoError(t, err)
	assert.Equal(t, "u1", s.UserID)
	assert.Equal(t, "tok", s.Token)
	assert.Equal(t, "Ana", s.Name)
	assert.Equal(t, "0917", s.Contact)
}

func TestClient_Login_ErrorMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid credentials"}`))
	})

	_, err := c.Login(context.Background(), session.Credentials{Username: "ana", Password: "bad", Role: "cashier"})
	se, ok := pos.AsSubmissionError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, se.Status)
	assert.Equal(t, "invalid credentials", se.Message)
	assert.False(t, se.Temporary())
}

func TestClient_Products_SendsTokenAndCategory(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "gpu", r.URL.Query().Get("category"))
		_, _ = w.Write([]byte(`[{"_id":"p1","name":"RTX3060Ti","category":"gpu","image":"public/images/rtx.png","selling_price":35000,"quantity_in_stock":"4"}]`))
	})

	items, err := c.WithToken("tok").Products(context.Background(), "gpu", "")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "35000.00", pos.FormatCurrency(items[0].SellingPrice))
	assert.Equal(t, int64(4), items[0].QuantityInStock.Int())
	assert.Equal(t, c.baseURL+"/images/rtx.png", c.ImageURL(items[0].Image))
}

func TestClient_ImageURL_ShortPath(t *testing.T) {
	c := New(Config{BaseURL: "http://localhost:5555/", Logger: quiet()})
	assert.Equal(t, "", c.ImageURL("public/"))
	assert.Equal(t, "http://localhost:5555/images/a.png", c.ImageURL("public/images/a.png"))
}

func TestClient_CreateTransaction_IdempotencyKey(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "draft-1", r.Header.Get("Idempotency-Key"))

		var req pos.TransactionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "70000", req.TotalPrice.String())

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"_id":"tx1","status":"COMPLETED","total_price":"70000.00"}`))
	})

	rec, err := c.CreateTransaction(context.Background(), pos.TransactionRequest{
		IdempotencyKey: "draft-1",
		Cashier:        "ana",
		TotalPrice:     decimal.NewFromInt(70000),
	})
	require.NoError(t, err)
	assert.Equal(t, "tx1", rec.ID)
	assert.Equal(t, "70000.00", pos.FormatCurrency(rec.TotalPrice))
}

func TestClient_ApplyRefund_Body(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "tx1", body["transaction_id"])
		assert.Equal(t, "wrong item", body["refundReason"])
		assert.Equal(t, map[string]any{"A": float64(3)}, body["selectedItems"])

		_, _ = w.Write([]byte(`{"refund_id":"rf1","transaction_id":"tx1","amount":"300","status":"PARTIALLY_REFUNDED"}`))
	})

	conf, err := c.ApplyRefund(context.Background(), pos.RefundSubmission{
		TransactionID: "tx1",
		SelectedItems: map[string]int64{"A": 3},
		RefundReason:  "wrong item",
		Cashier:       "ana",
	})
	require.NoError(t, err)
	assert.Equal(t, "rf1", conf.RefundID)
	assert.Equal(t, "300", conf.Amount.String())
}

func TestClient_BreakerOpensOnServerErrors(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	for i := 0; i < 2; i++ {
		_, err := c.Transactions(context.Background())
		se, ok := pos.AsSubmissionError(err)
		require.True(t, ok)
		assert.Equal(t, http.StatusServiceUnavailable, se.Status)
		assert.True(t, se.Temporary())
	}

	_, err := c.Transactions(context.Background())
	assert.True(t, errors.Is(err, gobreaker.ErrOpenState))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestClient_ClientErrorsDoNotTrip(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"transaction not found"}`))
	})

	for i := 0; i < 4; i++ {
		_, err := c.Transaction(context.Background(), "missing")
		se, ok := pos.AsSubmissionError(err)
		require.True(t, ok)
		assert.Equal(t, "transaction not found", se.Message)
	}
	assert.Equal(t, int32(4), atomic.LoadInt32(&calls))
}

func TestClient_ContextCanceled(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Transactions(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClient_ChangePassword(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/user/u1/change-password", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "old", body["currentPassword"])
		assert.Equal(t, "new-secret", body["newPassword"])
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, c.ChangePassword(context.Background(), "u1", "old", "new-secret"))
}
