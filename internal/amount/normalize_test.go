package amount

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeMagnitudeThreshold(t *testing.T) {
	v, d, ok := Normalize(map[string]any{"amount": float64(15000)}, Hints{})
	require.True(t, ok)
	assert.Equal(t, 150.00, v)
	assert.Equal(t, RuleMagnitude, d.Rule)

	v, d, ok = Normalize(map[string]any{"amount": 42.50}, Hints{})
	require.True(t, ok)
	assert.Equal(t, 42.50, v)
	assert.Equal(t, RuleAsIs, d.Rule)
}

func TestNormalizeExplicitScaleWins(t *testing.T) {
	// below threshold, but the explicit scale still applies
	v, d, ok := Normalize(map[string]any{"amount": float64(2400)}, Hints{Scale: 100})
	require.True(t, ok)
	assert.Equal(t, 24.00, v)
	assert.Equal(t, RuleExplicitScale, d.Rule)
}

func TestNormalizeMinorUnitFieldName(t *testing.T) {
	v, d, ok := Normalize(map[string]any{"total_amount": "2400"}, Hints{})
	require.True(t, ok)
	assert.Equal(t, 24.00, v)
	assert.Equal(t, RuleMinorField, d.Rule)
}

func TestNormalizeFieldPriority(t *testing.T) {
	// explicit total beats generic amount
	v, d, ok := Normalize(map[string]any{
		"amount": 99.0,
		"total":  12.5,
	}, Hints{})
	require.True(t, ok)
	assert.Equal(t, 12.5, v)
	assert.Equal(t, "total", d.Field)
}

func TestNormalizeNotDerivable(t *testing.T) {
	cases := []map[string]any{
		{},
		{"amount": float64(0)},
		{"amount": "not-a-number"},
		{"amount": math.NaN()},
		{"amount": math.Inf(1)},
		{"note": "no amount here"},
	}
	for _, payload := range cases {
		_, _, ok := Normalize(payload, Hints{})
		assert.False(t, ok, "payload %v must not derive", payload)
	}
}

func TestNormalizeDeterministic(t *testing.T) {
	payload := map[string]any{"paid_amount": "24000"}
	first, fd, ok := Normalize(payload, Hints{})
	require.True(t, ok)
	for i := 0; i < 10; i++ {
		v, d, ok := Normalize(payload, Hints{})
		require.True(t, ok)
		assert.Equal(t, first, v)
		assert.Equal(t, fd, d)
	}
}

func TestNormalizeStringForms(t *testing.T) {
	v, _, ok := Normalize(map[string]any{"amount": " 42.50 "}, Hints{})
	require.True(t, ok)
	assert.Equal(t, 42.50, v)
}

func TestMajorToMinor(t *testing.T) {
	assert.Equal(t, int64(2400), MajorToMinor(24.00))
	assert.Equal(t, int64(4250), MajorToMinor(42.50))
	assert.Equal(t, int64(1), MajorToMinor(0.005))
}
