package money

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Places is the number of fractional digits amounts are presented with.
const Places = 2

var hundred = decimal.NewFromInt(100)

// Amount is a currency value. The zero value is 0.
type Amount struct {
	d decimal.Decimal
}

func Zero() Amount { return Amount{} }

func FromInt(v int64) Amount { return Amount{d: decimal.NewFromInt(v)} }

func FromDecimal(d decimal.Decimal) Amount { return Amount{d: d} }

// Parse reads a plain decimal string such as "1299.50".
func Parse(raw string) (Amount, error) {
	d, err := parseDecimal(raw)
	if err != nil {
		return Amount{}, fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	return Amount{d: d}, nil
}

// MustParse is for constants and tests.
func MustParse(raw string) Amount {
	a, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Amount) Decimal() decimal.Decimal { return a.d }

func (a Amount) Add(b Amount) Amount { return Amount{d: a.d.Add(b.d)} }

func (a Amount) Sub(b Amount) Amount { return Amount{d: a.d.Sub(b.d)} }

func (a Amount) Mul(q Quantity) Amount { return Amount{d: a.d.Mul(decimal.NewFromInt(int64(q)))} }

func (a Amount) Equal(b Amount) bool { return a.Round().d.Equal(b.Round().d) }

func (a Amount) Cmp(b Amount) int { return a.d.Cmp(b.d) }

func (a Amount) GreaterThanOrEqual(b Amount) bool { return a.d.GreaterThanOrEqual(b.d) }

func (a Amount) LessThan(b Amount) bool { return a.d.LessThan(b.d) }

func (a Amount) IsZero() bool { return a.d.IsZero() }

func (a Amount) IsNegative() bool { return a.d.IsNegative() }

// Round rounds half away from zero to Places.
func (a Amount) Round() Amount { return Amount{d: a.d.Round(Places)} }

func (a Amount) ClampNonNegative() Amount {
	if a.d.IsNegative() {
		return Amount{}
	}
	return a
}

// Clamp bounds a to [lo, hi].
func (a Amount) Clamp(lo, hi Amount) Amount {
	return Max(lo, Min(a, hi))
}

func Min(a, b Amount) Amount {
	if a.d.LessThanOrEqual(b.d) {
		return a
	}
	return b
}

func Max(a, b Amount) Amount {
	if a.d.GreaterThanOrEqual(b.d) {
		return a
	}
	return b
}

// Sum adds values, zero for none.
func Sum(values ...Amount) Amount {
	total := Amount{}
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

func (a Amount) String() string { return a.d.StringFixed(Places) }

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.d.StringFixed(Places)), nil
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	d, err := decodeNumber(data)
	if err != nil {
		return fmt.Errorf("amount: %w", err)
	}
	a.d = d
	return nil
}

// Percent is a rate expressed in hundredths, such as a tax rate of 18 or a coupon of 10.
type Percent struct {
	d decimal.Decimal
}

func PercentFromInt(v int64) Percent { return Percent{d: decimal.NewFromInt(v)} }

func ParsePercent(raw string) (Percent, error) {
	d, err := parseDecimal(raw)
	if err != nil {
		return Percent{}, fmt.Errorf("invalid percent %q: %w", raw, err)
	}
	p := Percent{d: d}
	if err := p.Validate(); err != nil {
		return Percent{}, err
	}
	return p, nil
}

func (p Percent) Validate() error {
	if p.d.IsNegative() || p.d.GreaterThan(hundred) {
		return fmt.Errorf("percent %s out of range [0, 100]", p.d.String())
	}
	return nil
}

func (p Percent) Decimal() decimal.Decimal { return p.d }

func (p Percent) IsZero() bool { return p.d.IsZero() }

// Of returns p percent of a, unrounded.
func (p Percent) Of(a Amount) Amount {
	return Amount{d: a.d.Mul(p.d).Div(hundred)}
}

func (p Percent) String() string { return p.d.String() }

func (p Percent) MarshalJSON() ([]byte, error) {
	return []byte(p.d.String()), nil
}

func (p *Percent) UnmarshalJSON(data []byte) error {
	d, err := decodeNumber(data)
	if err != nil {
		return fmt.Errorf("percent: %w", err)
	}
	p.d = d
	return nil
}

// Quantity is a line item count; valid quantities are at least 1.
type Quantity int

func NewQuantity(n int) (Quantity, error) {
	q := Quantity(n)
	if err := q.Validate(); err != nil {
		return 0, err
	}
	return q, nil
}

func (q Quantity) Validate() error {
	if q < 1 {
		return fmt.Errorf("quantity must be at least 1, got %d", int(q))
	}
	return nil
}

func (q *Quantity) UnmarshalJSON(data []byte) error {
	d, err := decodeNumber(data)
	if err != nil {
		return fmt.Errorf("quantity: %w", err)
	}
	if !d.Equal(d.Truncate(0)) {
		return fmt.Errorf("quantity must be a whole number, got %s", d.String())
	}
	*q = Quantity(d.IntPart())
	return nil
}

func parseDecimal(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(raw)
}

// decodeNumber accepts a JSON number, a numeric string, or null.
func decodeNumber(data []byte) (decimal.Decimal, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return decimal.Zero, nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return decimal.Zero, err
		}
		return parseDecimal(s)
	}
	return decimal.NewFromString(string(data))
}
