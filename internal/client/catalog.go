package client

import (
	"context"
	"strings"
	"sync"
	"time"

	"pos/internal/pos"

	"github.com/labstack/gommon/log"
	"golang.org/x/sync/singleflight"
)

// ProductSource は商品一覧の取得元（Client が実装）。
type ProductSource interface {
	Products(ctx context.Context, category, query string) ([]pos.Product, error)
}

type catalogEntry struct {
	items     []pos.Product
	fetchedAt time.Time
}

// Catalog はカテゴリごとの商品一覧を TTL 付きで持つ。
// 同じカテゴリの同時取得は1回にまとめる。
type Catalog struct {
	src    ProductSource
	ttl    time.Duration
	logger *log.Logger
	now    func() time.Time

	sfg     singleflight.Group
	mu      sync.RWMutex
	entries map[string]catalogEntry
}

func NewCatalog(src ProductSource, ttl time.Duration, logger *log.Logger) *Catalog {
	if logger == nil {
		logger = log.New("catalog")
	}
	return &Catalog{
		src:     src,
		ttl:     ttl,
		logger:  logger,
		now:     time.Now,
		entries: map[string]catalogEntry{},
	}
}

// Products はカテゴリの商品一覧（"" は全件）。
func (c *Catalog) Products(ctx context.Context, category string) ([]pos.Product, error) {
	if items, ok := c.cached(category); ok {
		return items, nil
	}

	v, err, shared := c.sfg.Do(category, func() (any, error) {
		items, err := c.src.Products(ctx, category, "")
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[category] = catalogEntry{items: items, fetchedAt: c.now()}
		c.mu.Unlock()
		return items, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.logger.Debugj(log.JSON{"msg": "catalog fetch shared", "category": category})
	}

	return clone(v.([]pos.Product)), nil
}

// Find は ID で商品を探す（全件一覧から）。
func (c *Catalog) Find(ctx context.Context, id string) (pos.Product, bool, error) {
	items, err := c.Products(ctx, "")
	if err != nil {
		return pos.Product{}, false, err
	}
	for _, p := range items {
		if p.ID == id {
			return p, true, nil
		}
	}
	return pos.Product{}, false, nil
}

// Search は名前の部分一致（大文字小文字を区別しない）。
func (c *Catalog) Search(ctx context.Context, category, query string) ([]pos.Product, error) {
	items, err := c.Products(ctx, category)
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return items, nil
	}

	out := make([]pos.Product, 0, len(items))
	for _, p := range items {
		if strings.Contains(strings.ToLower(p.Name), q) {
			out = append(out, p)
		}
	}
	return out, nil
}

// Invalidate はキャッシュを捨てる（取引・返金で在庫が変わったとき）。
func (c *Catalog) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = map[string]catalogEntry{}
}

func (c *Catalog) cached(category string) ([]pos.Product, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[category]
	if !ok || c.now().Sub(e.fetchedAt) >= c.ttl {
		return nil, false
	}
	return clone(e.items), true
}

func clone(items []pos.Product) []pos.Product {
	out := make([]pos.Product, len(items))
	copy(out, items)
	return out
}
