package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"pos/internal/client"
	"pos/internal/config"
	"pos/internal/pos"
	"pos/internal/session"

	"github.com/labstack/gommon/log"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAuth struct{}

func (fakeAuth) Login(ctx context.Context, cred session.Credentials) (session.Session, error) {
	return session.Session{UserID: "u-1", Username: cred.Username, Name: "Jane", Role: cred.Role, Token: "tok"}, nil
}

type fakeAPI struct {
	token    string
	created  []pos.TransactionRequest
	refunds  []pos.RefundSubmission
	products []pos.Product
	record   pos.TransactionRecord

	profiles  []client.Profile
	passwords []string
	userCalls int
}

func (f *fakeAPI) Products(ctx context.Context, category, query string) ([]pos.Product, error) {
	return f.products, nil
}

func (f *fakeAPI) CreateTransaction(ctx context.Context, req pos.TransactionRequest) (pos.TransactionRecord, error) {
	f.created = append(f.created, req)
	return pos.TransactionRecord{ID: "tx-1", Cashier: req.Cashier, Status: "COMPLETED", TotalPrice: pos.NumberFromDecimal(req.TotalPrice)}, nil
}

func (f *fakeAPI) ApplyRefund(ctx context.Context, req pos.RefundSubmission) (pos.RefundConfirmation, error) {
	f.refunds = append(f.refunds, req)
	return pos.RefundConfirmation{RefundID: "r-1", TransactionID: req.TransactionID, Amount: decimal.NewFromInt(100), Status: "PARTIALLY_REFUNDED", Items: req.SelectedItems}, nil
}

func (f *fakeAPI) Transactions(ctx context.Context) ([]pos.TransactionRecord, error) {
	return []pos.TransactionRecord{f.record}, nil
}

func (f *fakeAPI) Transaction(ctx context.Context, id string) (pos.TransactionRecord, error) {
	return f.record, nil
}

func (f *fakeAPI) Product(ctx context.Context, id string) (pos.Product, error) {
	for _, p := range f.products {
		if p.ID == id {
			return p, nil
		}
	}
	return pos.Product{}, errors.New("product not found")
}

func (f *fakeAPI) ImageURL(path string) string {
	return client.New(client.Config{BaseURL: "http://api.test"}).ImageURL(path)
}

func (f *fakeAPI) Users(ctx context.Context) ([]client.Profile, error) {
	f.userCalls++
	return []client.Profile{{ID: "u-1", Username: "jane", Name: "Jane", Role: "cashier"}}, nil
}

func (f *fakeAPI) UpdateProfile(ctx context.Context, userID string, p client.Profile) (client.Profile, error) {
	p.ID = userID
	f.profiles = append(f.profiles, p)
	return p, nil
}

func (f *fakeAPI) ChangePassword(ctx context.Context, userID, current, next string) error {
	f.passwords = append(f.passwords, userID+":"+current+":"+next)
	return nil
}

func newTestTerminal(t *testing.T, fake *fakeAPI) (*terminal, *bytes.Buffer) {
	t.Helper()
	logger := log.New("test")
	logger.SetLevel(log.OFF)
	out := &bytes.Buffer{}
	term := &terminal{
		sessions: session.NewManager(fakeAuth{}, session.NewMemoryStore(), "till-1", logger),
		authorize: func(token string) api {
			fake.token = token
			return fake
		},
		cfg:    config.TerminalConfig{CatalogTTL: time.Minute},
		logger: logger,
		out:    out,
	}
	return term, out
}

var _ client.ProductSource = (*fakeAPI)(nil)

func cable() pos.Product {
	return pos.Product{ID: "A", Name: "Cable", Category: "Acc", SellingPrice: pos.NumberFromInt(100), QuantityInStock: pos.NumberFromInt(5)}
}

func TestTerminal_RequiresLogin(t *testing.T) {
	term, out := newTestTerminal(t, &fakeAPI{})
	require.NoError(t, term.Run(context.Background(), strings.NewReader("cart\nquit\n")))
	assert.Contains(t, out.String(), "error: login required")
}

func TestTerminal_SellFlow(t *testing.T) {
	fake := &fakeAPI{products: []pos.Product{cable()}}
	term, out := newTestTerminal(t, fake)

	script := strings.Join([]string{
		"login jane password123 cashier",
		"products",
		"add A",
		"qty A 3",
		"pay Juan | Manila | 0917",
	}, "\n")
	require.NoError(t, term.Run(context.Background(), strings.NewReader(script)))

	assert.Equal(t, "tok", fake.token)
	require.Len(t, fake.created, 1)
	req := fake.created[0]
	assert.Equal(t, "jane", req.Cashier)
	assert.Equal(t, "Juan", req.Customer.Name)
	assert.Equal(t, "0917", req.Customer.Phone)
	require.Len(t, req.Items, 1)
	assert.Equal(t, int64(3), req.Items[0].Quantity)
	assert.True(t, req.TotalPrice.Equal(decimal.NewFromInt(300)))

	assert.Contains(t, out.String(), "transaction tx-1 completed")
	// 支払い後はカートが空
	assert.True(t, term.register.Cart().IsEmpty())
}

func TestTerminal_RefundFlow(t *testing.T) {
	fake := &fakeAPI{record: pos.TransactionRecord{
		ID:     "tx-9",
		Status: "COMPLETED",
		Items: []pos.TransactionItem{
			{Product: cable(), Quantity: pos.NumberFromInt(2), RefundedQuantity: pos.NumberFromInt(0)},
		},
	}}
	term, out := newTestTerminal(t, fake)

	script := strings.Join([]string{
		"login jane password123 cashier",
		"refund tx-9",
		"submit",
		"toggle A",
		"rqty A 1",
		"reason damaged",
		"submit",
	}, "\n")
	require.NoError(t, term.Run(context.Background(), strings.NewReader(script)))

	assert.Contains(t, out.String(), "error: refund reason is required")
	require.Len(t, fake.refunds, 1)
	assert.Equal(t, "tx-9", fake.refunds[0].TransactionID)
	assert.Equal(t, map[string]int64{"A": 1}, fake.refunds[0].SelectedItems)
	assert.Equal(t, "damaged", fake.refunds[0].RefundReason)
	assert.Contains(t, out.String(), "refund r-1")
	assert.Nil(t, term.refund)
}

func TestTerminal_ProfileUpdatesSession(t *testing.T) {
	fake := &fakeAPI{}
	term, out := newTestTerminal(t, fake)

	script := strings.Join([]string{
		"login jane password123 cashier",
		"profile Jane Cruz | 0917-000",
	}, "\n")
	require.NoError(t, term.Run(context.Background(), strings.NewReader(script)))

	require.Len(t, fake.profiles, 1)
	assert.Equal(t, client.Profile{ID: "u-1", Username: "jane", Name: "Jane Cruz", Contact: "0917-000"}, fake.profiles[0])
	assert.Contains(t, out.String(), "profile updated: Jane Cruz  0917-000")

	// 保存されたセッションにも反映されている
	s, err := term.sessions.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Jane Cruz", s.Name)
	assert.Equal(t, "0917-000", s.Contact)
	assert.Equal(t, "tok", s.Token)
}

func TestTerminal_PasswordChangeLogsOut(t *testing.T) {
	fake := &fakeAPI{}
	term, out := newTestTerminal(t, fake)

	script := strings.Join([]string{
		"login jane password123 cashier",
		"passwd password123 newsecret1",
		"cart",
	}, "\n")
	require.NoError(t, term.Run(context.Background(), strings.NewReader(script)))

	assert.Equal(t, []string{"u-1:password123:newsecret1"}, fake.passwords)
	assert.Contains(t, out.String(), "logged out")
	assert.Contains(t, out.String(), "error: login required")
	assert.Nil(t, term.sess)

	_, err := term.sessions.Current(context.Background())
	assert.ErrorIs(t, err, session.ErrNoSession)
}

func TestTerminal_UsersIsAdminOnly(t *testing.T) {
	fake := &fakeAPI{}
	term, out := newTestTerminal(t, fake)
	require.NoError(t, term.Run(context.Background(), strings.NewReader("login jane password123 cashier\nusers\n")))
	assert.Contains(t, out.String(), "error: admin only")
	assert.Zero(t, fake.userCalls)

	fake = &fakeAPI{}
	term, out = newTestTerminal(t, fake)
	require.NoError(t, term.Run(context.Background(), strings.NewReader("login root password123 admin\nusers\n")))
	assert.Equal(t, 1, fake.userCalls)
	assert.Contains(t, out.String(), "jane")
}

func TestTerminal_ProductImages(t *testing.T) {
	p := cable()
	p.Image = "public/images/cable.png"
	fake := &fakeAPI{products: []pos.Product{p}}
	term, out := newTestTerminal(t, fake)

	script := strings.Join([]string{
		"login jane password123 cashier",
		"products",
		"info A",
	}, "\n")
	require.NoError(t, term.Run(context.Background(), strings.NewReader(script)))

	assert.Contains(t, out.String(), "  http://api.test/images/cable.png\n")
	assert.Contains(t, out.String(), "image http://api.test/images/cable.png")
	assert.Contains(t, out.String(), "category Acc  price 100.00  stock 5")
}
