package mlsched

import (
	"embed"
	"fmt"
	"slices"

	"github.com/BurntSushi/toml"
)

//go:embed insights.toml
var insightsFS embed.FS

// LoadInsights decodes the embedded insight panels.
func LoadInsights() (Insights, error) {
	var in Insights
	if _, err := toml.DecodeFS(insightsFS, "insights.toml", &in); err != nil {
		return Insights{}, fmt.Errorf("mlsched: decode insights: %w", err)
	}
	return in, nil
}

// Clone returns a copy whose slices the caller may modify.
func (in Insights) Clone() Insights {
	return Insights{
		Failures:    slices.Clone(in.Failures),
		Trends:      slices.Clone(in.Trends),
		Suggestions: slices.Clone(in.Suggestions),
	}
}
