package numeric

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Percent is a signed percentage held in tenths of a percent.
type Percent int64

// NewPercent rounds f (in percent) to one decimal place.
func NewPercent(f float64) Percent {
	return Percent(math.Round(f * 10))
}

// PercentChange returns (actual-target)/target as a percentage.
func PercentChange(actual, target float64) Percent {
	if target == 0 {
		return 0
	}
	return NewPercent((actual - target) / target * 100)
}

// Float64 returns the percentage value, e.g. 3.5 for "+3.5%".
func (p Percent) Float64() float64 { return float64(p) / 10 }

// Format renders "+3.5%", "-1.2%" or "0.0%".
func (p Percent) Format() string {
	sign := ""
	abs := int64(p)
	switch {
	case p > 0:
		sign = "+"
	case p < 0:
		sign = "-"
		abs = -abs
	}
	return fmt.Sprintf("%s%d.%d%%", sign, abs/10, abs%10)
}

func (p Percent) String() string { return p.Format() }

// ParsePercent accepts an optional sign, digits, at most one decimal digit
// and a trailing "%".
func ParsePercent(s string) (Percent, error) {
	raw := strings.TrimSpace(s)
	if !strings.HasSuffix(raw, "%") {
		return 0, invalid("percent", s)
	}
	raw = strings.TrimSuffix(raw, "%")
	neg := false
	switch {
	case strings.HasPrefix(raw, "+"):
		raw = raw[1:]
	case strings.HasPrefix(raw, "-"):
		neg = true
		raw = raw[1:]
	}
	whole, frac, hasFrac := strings.Cut(raw, ".")
	if whole == "" || !allDigits(whole) || len(whole) > 15 {
		return 0, invalid("percent", s)
	}
	tenths, _ := strconv.ParseInt(whole, 10, 64)
	tenths *= 10
	if hasFrac {
		if len(frac) != 1 || !allDigits(frac) {
			return 0, invalid("percent", s)
		}
		tenths += int64(frac[0] - '0')
	}
	if neg {
		tenths = -tenths
	}
	return Percent(tenths), nil
}

func (p Percent) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Format())
}

func (p *Percent) UnmarshalJSON(data []byte) error {
	text, quoted, err := decodeJSON(data)
	if err != nil {
		return err
	}
	if text == "" {
		*p = 0
		return nil
	}
	if !quoted {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return invalid("percent", text)
		}
		*p = NewPercent(f)
		return nil
	}
	v, err := ParsePercent(text)
	if err != nil {
		return err
	}
	*p = v
	return nil
}

func (p Percent) MarshalText() ([]byte, error) { return []byte(p.Format()), nil }

func (p *Percent) UnmarshalText(text []byte) error {
	v, err := ParsePercent(string(text))
	if err != nil {
		return err
	}
	*p = v
	return nil
}
