package indicators

import "fmt"

// BollingerBands holds the latest band values.
type BollingerBands struct {
	Upper  float64
	Middle float64
	Lower  float64
}

// Position locates price within the bands: 0 at the lower band, 1 at the upper.
// Collapsed bands yield 0.5.
func (b BollingerBands) Position(price float64) float64 {
	width := b.Upper - b.Lower
	if width == 0 {
		return 0.5
	}
	return (price - b.Lower) / width
}

// Bollinger computes bands of k population standard deviations around the SMA.
func Bollinger(series []float64, period int, k float64) (BollingerBands, error) {
	if err := checkPeriod("Bollinger", period); err != nil {
		return BollingerBands{}, err
	}
	if k <= 0 {
		return BollingerBands{}, fmt.Errorf("bollinger width must be positive, got %f: %w", k, ErrInvalidInput)
	}
	if len(series) < period {
		return BollingerBands{}, notEnough("Bollinger", len(series), period)
	}
	window := series[len(series)-period:]
	mid := Mean(window)
	sd := StdDev(window)
	return BollingerBands{Upper: mid + k*sd, Middle: mid, Lower: mid - k*sd}, nil
}
