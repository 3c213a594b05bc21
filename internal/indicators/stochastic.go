package indicators

// StochasticResult holds the latest %K and %D values.
type StochasticResult struct {
	K float64
	D float64
}

// Stochastic computes the stochastic oscillator. %K of a flat range is 50.
// %D is the simple average of the last dPeriod %K values.
func Stochastic(highs, lows, closes []float64, kPeriod, dPeriod int) (StochasticResult, error) {
	if err := checkPeriod("Stochastic", kPeriod); err != nil {
		return StochasticResult{}, err
	}
	if err := checkPeriod("Stochastic", dPeriod); err != nil {
		return StochasticResult{}, err
	}
	if err := checkSameLength("Stochastic", highs, lows, closes); err != nil {
		return StochasticResult{}, err
	}
	need := kPeriod + dPeriod - 1
	if len(closes) < need {
		return StochasticResult{}, notEnough("Stochastic", len(closes), need)
	}

	ks := make([]float64, 0, dPeriod)
	for end := len(closes) - dPeriod + 1; end <= len(closes); end++ {
		ks = append(ks, percentK(highs[end-kPeriod:end], lows[end-kPeriod:end], closes[end-1]))
	}
	return StochasticResult{K: ks[len(ks)-1], D: Mean(ks)}, nil
}

func percentK(highs, lows []float64, last float64) float64 {
	hh, ll := highs[0], lows[0]
	for i := range highs {
		if highs[i] > hh {
			hh = highs[i]
		}
		if lows[i] < ll {
			ll = lows[i]
		}
	}
	if hh == ll {
		return 50
	}
	return 100 * (last - ll) / (hh - ll)
}
