package numeric

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Money is an amount in whole currency units.
type Money int64

// Format renders the amount as "$15,000".
func (m Money) Format() string {
	if m < 0 {
		return "-$" + grouped(int64(-m))
	}
	return "$" + grouped(int64(m))
}

func (m Money) String() string { return m.Format() }

// Float64 returns the amount for chart scaling.
func (m Money) Float64() float64 { return float64(m) }

// ParseMoney parses the canonical display form, e.g. "$15,000" or "-$300".
func ParseMoney(s string) (Money, error) {
	raw := strings.TrimSpace(s)
	neg := false
	if strings.HasPrefix(raw, "-") {
		neg = true
		raw = raw[1:]
	}
	if !strings.HasPrefix(raw, "$") {
		return 0, invalid("money", s)
	}
	n, err := parseGrouped(raw[1:])
	if err != nil {
		return 0, invalid("money", s)
	}
	if neg {
		n = -n
	}
	return Money(n), nil
}

// SumMoney adds up amounts.
func SumMoney(values ...Money) Money {
	var total Money
	for _, v := range values {
		total += v
	}
	return total
}

func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Format())
}

func (m *Money) UnmarshalJSON(data []byte) error {
	text, quoted, err := decodeJSON(data)
	if err != nil {
		return err
	}
	if text == "" {
		*m = 0
		return nil
	}
	if !quoted {
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return invalid("money", text)
		}
		*m = Money(n)
		return nil
	}
	v, err := ParseMoney(text)
	if err != nil {
		return err
	}
	*m = v
	return nil
}

func (m Money) MarshalText() ([]byte, error) { return []byte(m.Format()), nil }

func (m *Money) UnmarshalText(text []byte) error {
	v, err := ParseMoney(string(text))
	if err != nil {
		return err
	}
	*m = v
	return nil
}
