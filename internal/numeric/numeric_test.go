package numeric

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMoneyRoundTrip(t *testing.T) {
	for _, s := range []string{"$15,000", "$12,500", "$0", "$999", "$1,200,000", "-$300"} {
		m, err := ParseMoney(s)
		require.NoError(t, err, s)
		assert.Equal(t, s, m.Format())

		again, err := ParseMoney(m.Format())
		require.NoError(t, err)
		assert.Equal(t, m, again)
	}

	m, err := ParseMoney("$15,000")
	require.NoError(t, err)
	assert.Equal(t, Money(15000), m)
}

func TestMoneyRejectsMalformed(t *testing.T) {
	for _, s := range []string{"", "15,000", "$15,00", "$1,5000", "$15.000,00", "$ 15", "$15k", "$,000"} {
		_, err := ParseMoney(s)
		assert.True(t, errors.Is(err, ErrInvalid), "expected %q to be rejected", s)
	}
}

func TestPercentRoundTrip(t *testing.T) {
	cases := map[string]Percent{
		"+3.5%": 35,
		"-1.2%": -12,
		"0.0%":  0,
		"+0.6%": 6,
		"+5.6%": 56,
	}
	for s, want := range cases {
		p, err := ParsePercent(s)
		require.NoError(t, err, s)
		assert.Equal(t, want, p)
		assert.Equal(t, s, p.Format())
	}

	p, err := ParsePercent("3%")
	require.NoError(t, err)
	assert.Equal(t, "+3.0%", p.Format())
	assert.InDelta(t, 3.0, p.Float64(), 1e-9)
}

func TestPercentRejectsMalformed(t *testing.T) {
	for _, s := range []string{"3.5", "+3.55%", "abc%", "%", "+.5%", "3,5%"} {
		_, err := ParsePercent(s)
		assert.ErrorIs(t, err, ErrInvalid, s)
	}
}

func TestPercentChange(t *testing.T) {
	assert.Equal(t, "+3.5%", PercentChange(1035, 1000).Format())
	assert.Equal(t, "-1.3%", PercentChange(98750, 100000).Format())
	assert.Equal(t, Percent(0), PercentChange(10, 0))
}

func TestDistanceRoundTrip(t *testing.T) {
	d, err := ParseDistance("125,430")
	require.NoError(t, err)
	assert.Equal(t, Distance(125430), d)
	assert.Equal(t, "125,430", d.Format())

	plain, err := ParseDistance("98750")
	require.NoError(t, err)
	assert.Equal(t, "98,750", plain.Format())

	_, err = ParseDistance("12,34")
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestJSONUsesDisplayForm(t *testing.T) {
	type row struct {
		Revenue  Money    `json:"revenue"`
		Mileage  Distance `json:"mileage"`
		Variance Percent  `json:"variance"`
	}
	raw, err := json.Marshal(row{Revenue: 15000, Mileage: 125430, Variance: 35})
	require.NoError(t, err)
	assert.JSONEq(t, `{"revenue":"$15,000","mileage":"125,430","variance":"+3.5%"}`, string(raw))

	var decoded row
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, row{Revenue: 15000, Mileage: 125430, Variance: 35}, decoded)

	require.NoError(t, json.Unmarshal([]byte(`{"revenue":1200,"mileage":87250.4,"variance":-2.8}`), &decoded))
	assert.Equal(t, row{Revenue: 1200, Mileage: 87250, Variance: -28}, decoded)
}
