package usecase_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"pos/internal/domain/model"
	repo "pos/internal/repository"
	"pos/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// =====================
// TxManager / TxRepos mocks
// =====================

// TxManagerMock は WithinTx の中で渡す repos を固定して unit テストを回す
type TxManagerMock struct {
	mock.Mock
	Repos repo.TxRepos
}

func (m *TxManagerMock) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	m.Called(ctx)
	return fn(m.Repos)
}

type TxReposMock struct {
	transactions     repo.TransactionRepository
	transactionItems repo.TransactionItemRepository
	refunds          repo.RefundRepository
	inventory        repo.InventoryRepository
	products         repo.ProductRepository
}

func (r *TxReposMock) Transactions() repo.TransactionRepository         { return r.transactions }
func (r *TxReposMock) TransactionItems() repo.TransactionItemRepository { return r.transactionItems }
func (r *TxReposMock) Refunds() repo.RefundRepository                   { return r.refunds }
func (r *TxReposMock) Inventory() repo.InventoryRepository              { return r.inventory }
func (r *TxReposMock) Products() repo.ProductRepository                 { return r.products }

// =====================
// Repository mocks
// =====================

type TransactionRepoMock struct{ mock.Mock }

func (m *TransactionRepoMock) FindByID(ctx context.Context, id string) (model.Transaction, error) {
	args := m.Called(ctx, id)
	t, _ := args.Get(0).(model.Transaction)
	return t, args.Error(1)
}

func (m *TransactionRepoMock) Create(ctx context.Context, t model.Transaction) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *TransactionRepoMock) UpdateStatus(ctx context.Context, id string, status model.TransactionStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *TransactionRepoMock) List(ctx context.Context, f repo.TransactionListFilter) ([]model.Transaction, int64, error) {
	args := m.Called(ctx, f)
	items, _ := args.Get(0).([]model.Transaction)
	return items, args.Get(1).(int64), args.Error(2)
}

func (m *TransactionRepoMock) FindByIdempotencyKey(ctx context.Context, key string) (model.Transaction, bool, error) {
	args := m.Called(ctx, key)
	t, _ := args.Get(0).(model.Transaction)
	return t, args.Bool(1), args.Error(2)
}

type TransactionItemRepoMock struct{ mock.Mock }

func (m *TransactionItemRepoMock) CreateBulk(ctx context.Context, transactionID string, items []model.TransactionItem) error {
	args := m.Called(ctx, transactionID, items)
	return args.Error(0)
}

func (m *TransactionItemRepoMock) ListByTransactionID(ctx context.Context, transactionID string) ([]model.TransactionItem, error) {
	args := m.Called(ctx, transactionID)
	items, _ := args.Get(0).([]model.TransactionItem)
	return items, args.Error(1)
}

func (m *TransactionItemRepoMock) AddRefundedIfWithin(ctx context.Context, transactionID string, productID string, qty int64) (bool, error) {
	args := m.Called(ctx, transactionID, productID, qty)
	return args.Bool(0), args.Error(1)
}

type RefundRepoMock struct{ mock.Mock }

func (m *RefundRepoMock) Create(ctx context.Context, refund model.Refund, items []model.RefundItem) error {
	args := m.Called(ctx, refund, items)
	return args.Error(0)
}

func (m *RefundRepoMock) ListByTransactionID(ctx context.Context, transactionID string) ([]model.Refund, error) {
	panic("not used in usecase tests")
}

type InventoryRepoMock struct{ mock.Mock }

func (m *InventoryRepoMock) DecreaseStockIfEnough(ctx context.Context, productID string, qty int64) (bool, error) {
	args := m.Called(ctx, productID, qty)
	return args.Bool(0), args.Error(1)
}

func (m *InventoryRepoMock) IncreaseStock(ctx context.Context, productID string, qty int64) error {
	args := m.Called(ctx, productID, qty)
	return args.Error(0)
}

func (m *InventoryRepoMock) AdjustStock(ctx context.Context, productID string, delta int64) (bool, error) {
	args := m.Called(ctx, productID, delta)
	return args.Bool(0), args.Error(1)
}

func (m *InventoryRepoMock) CreateAdjustment(ctx context.Context, adj model.InventoryAdjustment) error {
	args := m.Called(ctx, adj)
	return args.Error(0)
}

func (m *InventoryRepoMock) ListAdjustments(ctx context.Context, filter repo.AdjustmentFilter) ([]model.InventoryAdjustment, error) {
	args := m.Called(ctx, filter)
	adjs, _ := args.Get(0).([]model.InventoryAdjustment)
	return adjs, args.Error(1)
}

type ProductRepoMock struct{ mock.Mock }

func (m *ProductRepoMock) List(ctx context.Context, q repo.ProductListQuery) ([]model.Product, error) {
	args := m.Called(ctx, q)
	items, _ := args.Get(0).([]model.Product)
	return items, args.Error(1)
}

func (m *ProductRepoMock) FindByID(ctx context.Context, id string) (model.Product, error) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(model.Product)
	return p, args.Error(1)
}

func (m *ProductRepoMock) Create(ctx context.Context, p model.Product) (model.Product, error) {
	args := m.Called(ctx, p)
	created, _ := args.Get(0).(model.Product)
	return created, args.Error(1)
}

type UserRepoMock struct{ mock.Mock }

func (m *UserRepoMock) Create(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *UserRepoMock) FindByID(ctx context.Context, id string) (*model.User, error) {
	args := m.Called(ctx, id)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *UserRepoMock) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	args := m.Called(ctx, username)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *UserRepoMock) List(ctx context.Context) ([]model.User, error) {
	args := m.Called(ctx)
	users, _ := args.Get(0).([]model.User)
	return users, args.Error(1)
}

func (m *UserRepoMock) Update(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *UserRepoMock) IncrementTokenVersion(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// =====================
// ID / Clock
// =====================

// 連番のID
type seqIDGen struct{ n int }

func (g *seqIDGen) NewID() string {
	g.n++
	return fmt.Sprintf("id-%d", g.n)
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

var testNow = time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC)

// =====================
// helpers
// =====================

type txFixture struct {
	tx    *TxManagerMock
	txs   *TransactionRepoMock
	items *TransactionItemRepoMock
	refs  *RefundRepoMock
	inv   *InventoryRepoMock
	prods *ProductRepoMock
}

func newTxFixture() *txFixture {
	f := &txFixture{
		txs:   new(TransactionRepoMock),
		items: new(TransactionItemRepoMock),
		refs:  new(RefundRepoMock),
		inv:   new(InventoryRepoMock),
		prods: new(ProductRepoMock),
	}
	f.tx = &TxManagerMock{Repos: &TxReposMock{
		transactions:     f.txs,
		transactionItems: f.items,
		refunds:          f.refs,
		inventory:        f.inv,
		products:         f.prods,
	}}
	f.tx.On("WithinTx", mock.Anything).Return()
	return f
}

func (f *txFixture) assertAll(t *testing.T) {
	t.Helper()
	f.txs.AssertExpectations(t)
	f.items.AssertExpectations(t)
	f.refs.AssertExpectations(t)
	f.inv.AssertExpectations(t)
	f.prods.AssertExpectations(t)
}

func assertErrContains(t *testing.T, err error, wantSubstr string) {
	t.Helper()
	if assert.Error(t, err) {
		assert.True(t, strings.Contains(err.Error(), wantSubstr), "err=%q want contains %q", err.Error(), wantSubstr)
	}
}

func assertStatus(t *testing.T, err error, status int) {
	t.Helper()
	he, ok := usecase.AsHTTPError(err)
	if assert.True(t, ok, "want HTTPError, got %v", err) {
		assert.Equal(t, status, he.Status)
	}
}
