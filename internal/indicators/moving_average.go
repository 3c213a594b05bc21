package indicators

// SMA returns the simple moving average of the last period values.
func SMA(series []float64, period int) (float64, error) {
	if err := checkPeriod("SMA", period); err != nil {
		return 0, err
	}
	if len(series) < period {
		return 0, notEnough("SMA", len(series), period)
	}
	return Mean(series[len(series)-period:]), nil
}

// EMA returns the exponential moving average series of the input.
// The first value is the SMA of the first period values, so the result
// holds len(series)-period+1 points aligned with the tail of series.
func EMA(series []float64, period int) ([]float64, error) {
	if err := checkPeriod("EMA", period); err != nil {
		return nil, err
	}
	if len(series) < period {
		return nil, notEnough("EMA", len(series), period)
	}

	multiplier := 2.0 / float64(period+1)
	out := make([]float64, 0, len(series)-period+1)
	ema := Mean(series[:period])
	out = append(out, ema)
	for i := period; i < len(series); i++ {
		ema = (series[i]-ema)*multiplier + ema
		out = append(out, ema)
	}
	return out, nil
}

// LastEMA returns only the most recent EMA value.
func LastEMA(series []float64, period int) (float64, error) {
	ema, err := EMA(series, period)
	if err != nil {
		return 0, err
	}
	return ema[len(ema)-1], nil
}

// Cross is the direction of the most recent crossing of two lines.
type Cross int

const (
	NoCross Cross = iota
	BullishCross
	BearishCross
)

// Crossover inspects the last two aligned points of a and b.
// A bullish cross means a moved from at or below b to above it.
func Crossover(a, b []float64) Cross {
	if len(a) < 2 || len(b) < 2 {
		return NoCross
	}
	a0, a1 := a[len(a)-2], a[len(a)-1]
	b0, b1 := b[len(b)-2], b[len(b)-1]
	switch {
	case a0 <= b0 && a1 > b1:
		return BullishCross
	case a0 >= b0 && a1 < b1:
		return BearishCross
	default:
		return NoCross
	}
}
