package indicators

// OBV returns the on-balance volume series starting at 0.
func OBV(closes, volumes []float64) ([]float64, error) {
	if err := checkSameLength("OBV", closes, volumes); err != nil {
		return nil, err
	}
	if len(closes) < 2 {
		return nil, notEnough("OBV", len(closes), 2)
	}
	out := make([]float64, len(closes))
	for i := 1; i < len(closes); i++ {
		switch {
		case closes[i] > closes[i-1]:
			out[i] = out[i-1] + volumes[i]
		case closes[i] < closes[i-1]:
			out[i] = out[i-1] - volumes[i]
		default:
			out[i] = out[i-1]
		}
	}
	return out, nil
}
