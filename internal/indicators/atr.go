package indicators

import "math"

// TrueRange returns the true range series, one value per bar after the first.
func TrueRange(highs, lows, closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	out := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		tr := math.Max(highs[i]-lows[i], math.Max(math.Abs(highs[i]-closes[i-1]), math.Abs(lows[i]-closes[i-1])))
		out = append(out, tr)
	}
	return out
}

// ATR returns the rolling mean of the last period true ranges.
func ATR(highs, lows, closes []float64, period int) (float64, error) {
	if err := checkPeriod("ATR", period); err != nil {
		return 0, err
	}
	if err := checkSameLength("ATR", highs, lows, closes); err != nil {
		return 0, err
	}
	if len(closes) < period+1 {
		return 0, notEnough("ATR", len(closes), period)
	}
	tr := TrueRange(highs, lows, closes)
	return Mean(tr[len(tr)-period:]), nil
}
