package indicators

// RSI computes the Relative Strength Index using Wilder's smoothing.
// It needs at least period+1 values and always returns a value in [0,100].
func RSI(series []float64, period int) (float64, error) {
	if err := checkPeriod("RSI", period); err != nil {
		return 0, err
	}
	if len(series) <= period {
		return 0, notEnough("RSI", len(series), period)
	}

	changes := make([]float64, 0, len(series)-1)
	for i := 1; i < len(series); i++ {
		changes = append(changes, series[i]-series[i-1])
	}

	var avgGain, avgLoss float64
	for i := 0; i < period; i++ {
		if changes[i] > 0 {
			avgGain += changes[i]
		} else {
			avgLoss -= changes[i]
		}
	}
	p := float64(period)
	avgGain /= p
	avgLoss /= p

	for i := period; i < len(changes); i++ {
		gain, loss := 0.0, 0.0
		if changes[i] > 0 {
			gain = changes[i]
		} else {
			loss = -changes[i]
		}
		avgGain = (avgGain*(p-1) + gain) / p
		avgLoss = (avgLoss*(p-1) + loss) / p
	}

	if avgLoss == 0 {
		if avgGain == 0 {
			return 50, nil // No movement
		}
		return 100, nil
	}

	rsi := 100 - (100 / (1 + avgGain/avgLoss))
	if rsi > 100 {
		rsi = 100
	} else if rsi < 0 {
		rsi = 0
	}
	return rsi, nil
}
