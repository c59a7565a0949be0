package finance

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"oyken/internal/core"
)

func TestVariance(t *testing.T) {
	cases := []struct {
		name         string
		actual, base core.Money
		delta        int64
		pct          string
	}{
		{"growth against same weekday", core.Euros(100), core.Euros(80), 2000, "25"},
		{"decline", core.Euros(60), core.Euros(80), -2000, "-25"},
		{"zero base", core.Euros(100), core.Money{}, 10000, "0"},
		{"flat", core.Euros(50), core.Euros(50), 0, "0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := Variance(tc.actual, tc.base)
			assert.Equal(t, tc.delta, r.Delta.Cents)
			assert.True(t, r.Pct.Equal(decimal.RequireFromString(tc.pct)), "pct %s", r.Pct)
			assert.Equal(t, tc.base.Cents != 0, r.HasBase())
		})
	}
}

func TestVariancePctRounded(t *testing.T) {
	r := Variance(core.Euros(100), core.Euros(30))
	assert.Equal(t, "233.3", r.PctRounded().String())
}
