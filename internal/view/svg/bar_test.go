package svg

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBarsProducesSVG(t *testing.T) {
	html, err := Bars(420, 220, []Bar{
		{Label: "Valid", Value: 4, Color: "#16a34a"},
		{Label: "Due Soon", Value: 2},
		{Label: "Expired <old>", Value: 2},
	}, BarOpts{Title: "Fitness status"})
	require.NoError(t, err)

	out := string(html)
	assert.True(t, strings.HasPrefix(out, "<svg"))
	assert.Equal(t, 3, strings.Count(out, "<rect"))
	assert.Contains(t, out, `fill="#16a34a"`)
	assert.Contains(t, out, "Expired &lt;old&gt;")
	assert.Contains(t, out, `id="fitness-status-bar-title"`)
}

func TestBarsRejectsEmptyInput(t *testing.T) {
	_, err := Bars(0, 0, nil, BarOpts{})
	assert.Error(t, err)

	_, err = Bars(10, 10, []Bar{{Label: "x", Value: 1}}, BarOpts{Padding: 20})
	assert.Error(t, err)
}

func TestBarsAllZero(t *testing.T) {
	html, err := Bars(0, 0, []Bar{{Label: "Open", Value: 0}}, BarOpts{})
	require.NoError(t, err)
	assert.Contains(t, string(html), `height="0.00"`)
}
