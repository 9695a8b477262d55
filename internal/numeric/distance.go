package numeric

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Distance is a running distance in whole kilometres.
type Distance int64

// Format renders the distance with thousands separators, e.g. "125,430".
func (d Distance) Format() string { return grouped(int64(d)) }

func (d Distance) String() string { return d.Format() }

func (d Distance) Float64() float64 { return float64(d) }

// ParseDistance parses "125,430" or "125430".
func ParseDistance(s string) (Distance, error) {
	n, err := parseGrouped(strings.TrimSpace(s))
	if err != nil {
		return 0, invalid("distance", s)
	}
	return Distance(n), nil
}

// DistanceFromFloat rounds a raw odometer reading to whole kilometres.
func DistanceFromFloat(f float64) Distance {
	return Distance(math.Round(f))
}

func (d Distance) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Format())
}

func (d *Distance) UnmarshalJSON(data []byte) error {
	text, quoted, err := decodeJSON(data)
	if err != nil {
		return err
	}
	if text == "" {
		*d = 0
		return nil
	}
	if !quoted {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return invalid("distance", text)
		}
		*d = DistanceFromFloat(f)
		return nil
	}
	v, err := ParseDistance(text)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

func (d Distance) MarshalText() ([]byte, error) { return []byte(d.Format()), nil }

func (d *Distance) UnmarshalText(text []byte) error {
	v, err := ParseDistance(string(text))
	if err != nil {
		return err
	}
	*d = v
	return nil
}
