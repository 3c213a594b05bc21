package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func linearReturns() []float64 {
	out := make([]float64, 100)
	for i := range out {
		out[i] = float64(i-50) / 1000
	}
	return out
}

func TestHistoricalVaR(t *testing.T) {
	tests := []struct {
		name    string
		horizon int
		wantVaR float64
		wantES  float64
	}{
		{name: "one day", horizon: 1, wantVaR: 450.5, wantES: 480},
		{name: "four days", horizon: 4, wantVaR: 901, wantES: 960},
		{name: "horizon defaults to one", horizon: 0, wantVaR: 450.5, wantES: 480},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := HistoricalVaR(linearReturns(), 0.95, 10000, tt.horizon)
			assert.Equal(t, "historical", res.Method)
			assert.InDelta(t, tt.wantVaR, res.VaR, 1e-6)
			assert.InDelta(t, tt.wantES, res.ExpectedShortfall, 1e-6)
			assert.GreaterOrEqual(t, res.ExpectedShortfall, res.VaR)
		})
	}
}

func TestHistoricalVaR_Empty(t *testing.T) {
	res := HistoricalVaR(nil, 0.95, 10000, 1)
	assert.Zero(t, res.VaR)
	assert.Zero(t, res.ExpectedShortfall)
}

func TestParametricVaR(t *testing.T) {
	assert.InDelta(t, -1.644854, normalQuantile(0.05), 1e-5)
	assert.InDelta(t, -2.326348, normalQuantile(0.01), 1e-5)

	returns := []float64{-0.02, 0.02, -0.02, 0.02}
	res := ParametricVaR(returns, 0.95, 1000, 1)

	assert.Equal(t, "parametric", res.Method)
	assert.InDelta(t, 0.02*1.644854, res.VaRPct, 1e-5)
	assert.InDelta(t, 0.02*1.644854*1000, res.VaR, 1e-2)
	assert.Greater(t, res.ESPct, res.VaRPct)
}

func TestParametricVaR_InvalidConfidence(t *testing.T) {
	res := ParametricVaR([]float64{0.01, -0.01}, 1, 1000, 1)
	assert.Zero(t, res.VaR)
}
