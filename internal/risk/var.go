package risk

import (
	"math"
	"sort"

	"cryptoDecisionEngine/internal/domain"
	"cryptoDecisionEngine/internal/indicators"
)

// HistoricalVaR computes value at risk from the empirical return distribution.
// VaR is the (1-confidence) percentile loss scaled by sqrt(horizonDays).
func HistoricalVaR(returns []float64, confidence, portfolioValue float64, horizonDays int) domain.VaRResult {
	res := newVaRResult("historical", confidence, horizonDays)
	if len(returns) == 0 {
		return domain.VaRResult(res)
	}

	cutoff := percentile(returns, (1-confidence)*100)
	var tail []float64
	for _, r := range returns {
		if r <= cutoff {
			tail = append(tail, r)
		}
	}
	es := cutoff
	if len(tail) > 0 {
		es = indicators.Mean(tail)
	}
	return res.fill(cutoff, es, portfolioValue)
}

// ParametricVaR computes value at risk assuming normally distributed returns.
func ParametricVaR(returns []float64, confidence, portfolioValue float64, horizonDays int) domain.VaRResult {
	res := newVaRResult("parametric", confidence, horizonDays)
	if len(returns) == 0 || confidence <= 0 || confidence >= 1 {
		return domain.VaRResult(res)
	}

	mean := indicators.Mean(returns)
	std := indicators.StdDev(returns)
	z := normalQuantile(1 - confidence)
	pdf := math.Exp(-z*z/2) / math.Sqrt(2*math.Pi)

	cutoff := mean + z*std
	es := mean - std*pdf/(1-confidence)
	return res.fill(cutoff, es, portfolioValue)
}

type varResult domain.VaRResult

func newVaRResult(method string, confidence float64, horizonDays int) varResult {
	if horizonDays < 1 {
		horizonDays = 1
	}
	return varResult{Method: method, Confidence: confidence, HorizonDays: horizonDays}
}

func (v varResult) fill(cutoff, es, portfolioValue float64) domain.VaRResult {
	scale := math.Sqrt(float64(v.HorizonDays))
	v.VaRPct = math.Abs(cutoff) * scale
	v.ESPct = math.Abs(es) * scale
	v.VaR = v.VaRPct * portfolioValue
	v.ExpectedShortfall = v.ESPct * portfolioValue
	return domain.VaRResult(v)
}

// percentile uses linear interpolation between closest ranks.
func percentile(xs []float64, p float64) float64 {
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo < 0 {
		lo = 0
	}
	if hi >= len(sorted) {
		hi = len(sorted) - 1
	}
	frac := rank - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

// normalQuantile is the inverse standard normal CDF.
func normalQuantile(p float64) float64 {
	return math.Sqrt2 * math.Erfinv(2*p-1)
}
