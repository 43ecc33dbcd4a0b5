package pos

import (
	"github.com/shopspring/decimal"
)

// Product は catalog から受け取る商品。core からは読み取り専用。
type Product struct {
	ID              string `json:"_id"`
	Name            string `json:"name"`
	Category        string `json:"category"`
	Image           string `json:"image"`
	SellingPrice    Number `json:"selling_price"`
	QuantityInStock Number `json:"quantity_in_stock"`
}

func (p Product) clone() Product {
	p.SellingPrice = p.SellingPrice.clone()
	p.QuantityInStock = p.QuantityInStock.clone()
	return p
}

// CartLine はカートの明細（1商品につき1行）。
type CartLine struct {
	Product  Product `json:"product"`
	Quantity int64   `json:"quantity"`
}

// LineTotal は単価×数量。壊れた値は 0 として計算する。
func (l CartLine) LineTotal() decimal.Decimal {
	return CoerceNonNegative(l.Product.SellingPrice).Mul(CoerceNonNegative(l.Quantity))
}

// Cart は明細の順序付きリスト。
// 値として扱い、操作は常に新しい Cart を返す（引数の Cart は変更しない）。
type Cart struct {
	lines []CartLine
}

// NewCart は明細から Cart を作る。同じ商品の行はまとめる。
func NewCart(lines ...CartLine) Cart {
	var c Cart
	for _, l := range lines {
		if l.Quantity < 1 {
			l.Quantity = 1
		}
		if i := c.index(l.Product.ID); i >= 0 {
			c.lines[i].Quantity += l.Quantity
			continue
		}
		l.Product = l.Product.clone()
		c.lines = append(c.lines, l)
	}
	return c
}

// Lines は明細のコピーを返す。
func (c Cart) Lines() []CartLine {
	out := make([]CartLine, len(c.lines))
	copy(out, c.lines)
	return out
}

func (c Cart) Len() int {
	return len(c.lines)
}

func (c Cart) IsEmpty() bool {
	return len(c.lines) == 0
}

// Line は商品IDの明細を返す。
func (c Cart) Line(productID string) (CartLine, bool) {
	if i := c.index(productID); i >= 0 {
		return c.lines[i], true
	}
	return CartLine{}, false
}

// ExceedsStock は在庫数を超えている商品IDを返す。
// 在庫数が壊れている商品は判定しない（最終判断はサーバー）。
func (c Cart) ExceedsStock() []string {
	var ids []string
	for _, l := range c.lines {
		stock := l.Product.QuantityInStock
		if stock.Malformed() {
			continue
		}
		if l.Quantity > stock.Int() {
			ids = append(ids, l.Product.ID)
		}
	}
	return ids
}

func (c Cart) index(productID string) int {
	for i := range c.lines {
		if c.lines[i].Product.ID == productID {
			return i
		}
	}
	return -1
}

func (c Cart) clone() Cart {
	lines := make([]CartLine, len(c.lines), len(c.lines)+1)
	copy(lines, c.lines)
	return Cart{lines: lines}
}

// AddItem はカートに追加（同一商品は数量+1）。
func AddItem(c Cart, p Product) Cart {
	out := c.clone()
	if i := out.index(p.ID); i >= 0 {
		out.lines[i].Quantity++
		return out
	}
	out.lines = append(out.lines, CartLine{Product: p.clone(), Quantity: 1})
	return out
}

// RemoveItem は明細を行ごと削除する（数量を1減らすのではない）。
func RemoveItem(c Cart, productID string) Cart {
	out := Cart{lines: make([]CartLine, 0, len(c.lines))}
	for _, l := range c.lines {
		if l.Product.ID == productID {
			continue
		}
		out.lines = append(out.lines, l)
	}
	return out
}

// SetLineQuantity は入力値で数量を上書きする。
// 0以下・数値でない入力は 1。
func SetLineQuantity(c Cart, productID string, raw string) Cart {
	out := c.clone()
	i := out.index(productID)
	if i < 0 {
		return out
	}

	qty := CoerceQuantity(raw)
	if qty < 1 {
		qty = 1
	}
	out.lines[i].Quantity = qty
	return out
}

// Subtotal は明細から毎回計算し直す（キャッシュしない）。
func Subtotal(c Cart) decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.lines {
		total = total.Add(l.LineTotal())
	}
	return total
}
