package transcript

import "strings"

// Rate holds per-million-token prices in USD.
type Rate struct {
	InputPerMTok  float64 `json:"input_per_mtok" yaml:"input_per_mtok"`
	OutputPerMTok float64 `json:"output_per_mtok" yaml:"output_per_mtok"`
}

// Cost prices a token count pair against this rate.
func (r Rate) Cost(inputTokens, outputTokens int64) float64 {
	return float64(inputTokens)/1e6*r.InputPerMTok +
		float64(outputTokens)/1e6*r.OutputPerMTok
}

// RateTable maps a model family keyword (matched as a substring of the
// detected model id) to its rate. The "default" key is the baseline
// tier used when no family matches or the model is unknown.
type RateTable map[string]Rate

// DefaultRates returns the built-in pricing table.
func DefaultRates() RateTable {
	return RateTable{
		"opus":    {InputPerMTok: 15.0, OutputPerMTok: 75.0},
		"sonnet":  {InputPerMTok: 3.0, OutputPerMTok: 15.0},
		"haiku":   {InputPerMTok: 0.80, OutputPerMTok: 4.0},
		"default": {InputPerMTok: 3.0, OutputPerMTok: 15.0},
	}
}

// For resolves the rate for a model id. Family keywords are matched as
// substrings, so "claude-opus-4-20250514" resolves to the opus tier.
func (t RateTable) For(model string) Rate {
	model = strings.ToLower(model)
	for family, rate := range t {
		if family == "default" {
			continue
		}
		if strings.Contains(model, family) {
			return rate
		}
	}
	if rate, ok := t["default"]; ok {
		return rate
	}
	return DefaultRates()["default"]
}

// Merge overlays user-configured rates onto the table, returning the
// merged copy. Keys present in overrides replace built-in entries.
func (t RateTable) Merge(overrides map[string]Rate) RateTable {
	merged := make(RateTable, len(t)+len(overrides))
	for k, v := range t {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[strings.ToLower(k)] = v
	}
	return merged
}
