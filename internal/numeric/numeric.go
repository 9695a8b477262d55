// Package numeric models the typed quantities shown on dashboard pages.
//
// Values are stored as integers and only turned into display strings at
// render time. The parsers are strict: they accept exactly the canonical
// display form and reject anything else instead of stripping characters.
package numeric

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// ErrInvalid reports a malformed display value.
var ErrInvalid = errors.New("numeric: invalid value")

func grouped(n int64) string {
	return message.NewPrinter(language.English).Sprintf("%d", n)
}

// parseGrouped accepts "1234" or "1,234" but never "12,34".
func parseGrouped(s string) (int64, error) {
	if s == "" {
		return 0, ErrInvalid
	}
	groups := strings.Split(s, ",")
	for i, g := range groups {
		if g == "" || !allDigits(g) {
			return 0, ErrInvalid
		}
		if len(groups) > 1 {
			if i == 0 && len(g) > 3 {
				return 0, ErrInvalid
			}
			if i > 0 && len(g) != 3 {
				return 0, ErrInvalid
			}
		}
	}
	var n int64
	for _, r := range strings.Join(groups, "") {
		d := int64(r - '0')
		if n > (1<<62)/10 {
			return 0, ErrInvalid
		}
		n = n*10 + d
	}
	return n, nil
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func invalid(kind, s string) error {
	return fmt.Errorf("%w: %s %q", ErrInvalid, kind, s)
}

// decodeJSON unwraps a JSON string or number into its text form.
func decodeJSON(data []byte) (string, bool, error) {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return "", false, nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return "", false, err
		}
		return s, true, nil
	}
	return string(data), false, nil
}
