package indicators

import "fmt"

// MACDResult holds aligned MACD, signal and histogram series.
type MACDResult struct {
	MACD      []float64
	Signal    []float64
	Histogram []float64
}

// Last returns the most recent MACD, signal and histogram values.
func (m MACDResult) Last() (macd, signal, histogram float64) {
	n := len(m.Histogram) - 1
	return m.MACD[n], m.Signal[n], m.Histogram[n]
}

// MACD computes EMA(fast)-EMA(slow), its EMA(signal) and the histogram.
// It needs slow+signal-1 values.
func MACD(series []float64, fast, slow, signal int) (MACDResult, error) {
	for _, p := range []int{fast, slow, signal} {
		if err := checkPeriod("MACD", p); err != nil {
			return MACDResult{}, err
		}
	}
	if fast >= slow {
		return MACDResult{}, fmt.Errorf("MACD fast period %d must be below slow period %d: %w", fast, slow, ErrInvalidInput)
	}
	if need := slow + signal - 1; len(series) < need {
		return MACDResult{}, notEnough("MACD", len(series), need)
	}

	fastEMA, err := EMA(series, fast)
	if err != nil {
		return MACDResult{}, err
	}
	slowEMA, err := EMA(series, slow)
	if err != nil {
		return MACDResult{}, err
	}

	// Align the fast line with the shorter slow line.
	offset := len(fastEMA) - len(slowEMA)
	line := make([]float64, len(slowEMA))
	for i := range slowEMA {
		line[i] = fastEMA[i+offset] - slowEMA[i]
	}

	signalLine, err := EMA(line, signal)
	if err != nil {
		return MACDResult{}, err
	}

	offset = len(line) - len(signalLine)
	res := MACDResult{
		MACD:      line[offset:],
		Signal:    signalLine,
		Histogram: make([]float64, len(signalLine)),
	}
	for i := range signalLine {
		res.Histogram[i] = res.MACD[i] - signalLine[i]
	}
	return res, nil
}
