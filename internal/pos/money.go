package pos

import (
	"bytes"
	"encoding/json"
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// 金額・数量の変換はここに集める。
// どの関数もエラーを返さず、変換できない値は0に倒す。

const defaultDecimals = 2

var maxQuantity = decimal.NewFromInt(math.MaxInt64)

// CoerceNonNegative は数値っぽい値を decimal にする。
// パース失敗・NaN・Inf・負数はすべて 0。
func CoerceNonNegative(v any) decimal.Decimal {
	d, ok := toDecimal(v)
	if !ok || d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// CoerceQuantity は CoerceNonNegative の結果を整数に切り捨てる。
func CoerceQuantity(v any) int64 {
	d := CoerceNonNegative(v)
	if d.GreaterThan(maxQuantity) {
		return 0
	}
	return d.IntPart()
}

// FormatCurrency は小数点以下を固定桁（デフォルト2桁）で文字列にする。
// 数値でない入力は "0.00"。
func FormatCurrency(v any, decimals ...int) string {
	places := defaultDecimals
	if len(decimals) > 0 && decimals[0] >= 0 {
		places = decimals[0]
	}

	d, ok := toDecimal(v)
	if !ok {
		d = decimal.Zero
	}
	return d.StringFixed(int32(places))
}

func toDecimal(v any) (decimal.Decimal, bool) {
	switch t := v.(type) {
	case nil:
		return decimal.Zero, false
	case decimal.Decimal:
		return t, true
	case *decimal.Decimal:
		if t == nil {
			return decimal.Zero, false
		}
		return *t, true
	case Number:
		return t.parse()
	case *Number:
		if t == nil {
			return decimal.Zero, false
		}
		return t.parse()
	case json.Number:
		return parseNumeric(string(t))
	case string:
		return parseNumeric(t)
	case *string:
		if t == nil {
			return decimal.Zero, false
		}
		return parseNumeric(*t)
	case int:
		return decimal.NewFromInt(int64(t)), true
	case int8:
		return decimal.NewFromInt(int64(t)), true
	case int16:
		return decimal.NewFromInt(int64(t)), true
	case int32:
		return decimal.NewFromInt(int64(t)), true
	case int64:
		return decimal.NewFromInt(t), true
	case *int64:
		if t == nil {
			return decimal.Zero, false
		}
		return decimal.NewFromInt(*t), true
	case uint:
		return fromUint(uint64(t)), true
	case uint8:
		return fromUint(uint64(t)), true
	case uint16:
		return fromUint(uint64(t)), true
	case uint32:
		return fromUint(uint64(t)), true
	case uint64:
		return fromUint(t), true
	case float32:
		return fromFloat(float64(t))
	case float64:
		return fromFloat(t)
	default:
		return decimal.Zero, false
	}
}

func fromUint(u uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(u), 0)
}

func fromFloat(f float64) (decimal.Decimal, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero, false
	}
	return decimal.NewFromFloat(f), true
}

// "35,000.00" のような表示用の区切りも受け付ける。
func parseNumeric(s string) (decimal.Decimal, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// Number は JSON 上の数値フィールド。
// 数値・数値文字列・null・壊れた値のどれが来てもデコードは失敗しない。
type Number struct {
	raw json.RawMessage
}

// NumberFromDecimal は decimal から Number を作る。
func NumberFromDecimal(d decimal.Decimal) Number {
	return Number{raw: json.RawMessage(d.String())}
}

// NumberFromInt は整数から Number を作る。
func NumberFromInt(i int64) Number {
	return Number{raw: json.RawMessage(strconv.FormatInt(i, 10))}
}

// UnmarshalJSON は毎回新しいバッファに保存する。
// 以前の値をコピーした Product（カート・スナップショット）は書き換わらない。
func (n *Number) UnmarshalJSON(b []byte) error {
	n.raw = append(json.RawMessage(nil), b...)
	return nil
}

func (n Number) clone() Number {
	if n.raw == nil {
		return Number{}
	}
	return Number{raw: append(json.RawMessage(nil), n.raw...)}
}

func (n Number) MarshalJSON() ([]byte, error) {
	if len(n.raw) == 0 {
		return []byte("null"), nil
	}
	return n.raw, nil
}

// Decimal は 0 以上の値に丸めた金額。
func (n Number) Decimal() decimal.Decimal {
	return CoerceNonNegative(n)
}

// Int は 0 以上の整数に丸めた数量。
func (n Number) Int() int64 {
	return CoerceQuantity(n)
}

// Malformed は値が欠けている・数値でない・負数のとき true。
// 呼び出し側は警告として扱い、表示は 0 で続ける。
func (n Number) Malformed() bool {
	d, ok := n.parse()
	return !ok || d.IsNegative()
}

func (n Number) String() string {
	return string(n.raw)
}

func (n Number) parse() (decimal.Decimal, bool) {
	raw := bytes.TrimSpace(n.raw)
	if len(raw) == 0 {
		return decimal.Zero, false
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return decimal.Zero, false
		}
		return parseNumeric(s)
	}

	switch string(raw) {
	case "null", "true", "false":
		return decimal.Zero, false
	}
	return parseNumeric(string(raw))
}
