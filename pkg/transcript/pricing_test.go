package transcript

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRateTableFor(t *testing.T) {
	rates := DefaultRates()

	assert.Equal(t, 15.0, rates.For("claude-opus-4-20250514").InputPerMTok)
	assert.Equal(t, 3.0, rates.For("claude-sonnet-4").InputPerMTok)
	assert.Equal(t, 0.80, rates.For("claude-haiku-3-5").InputPerMTok)

	// unknown or empty model falls back to the baseline tier
	assert.Equal(t, rates["default"], rates.For("some-future-model"))
	assert.Equal(t, rates["default"], rates.For(""))
}

func TestRateCost(t *testing.T) {
	r := Rate{InputPerMTok: 3.0, OutputPerMTok: 15.0}
	assert.InDelta(t, 3.0, r.Cost(1_000_000, 0), 1e-12)
	assert.InDelta(t, 15.0, r.Cost(0, 1_000_000), 1e-12)
	assert.InDelta(t, 120.0/1e6*3.0+55.0/1e6*15.0, r.Cost(120, 55), 1e-12)
}

func TestMergeOverrides(t *testing.T) {
	merged := DefaultRates().Merge(map[string]Rate{
		"Sonnet": {InputPerMTok: 1.0, OutputPerMTok: 2.0},
		"local":  {InputPerMTok: 0, OutputPerMTok: 0},
	})

	assert.Equal(t, 1.0, merged.For("claude-sonnet-4").InputPerMTok)
	assert.Equal(t, 0.0, merged.For("my-local-model").InputPerMTok)
	// untouched tiers survive the merge
	assert.Equal(t, 15.0, merged.For("claude-opus-4").InputPerMTok)
}
