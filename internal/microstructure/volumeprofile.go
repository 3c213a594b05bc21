package microstructure

import "cryptoDecisionEngine/internal/domain"

const (
	profileWindow   = 50
	profileBins     = 20
	valueAreaTarget = 0.70
)

// BuildVolumeProfile distributes recent volume over price bins and derives the
// point of control and the 70% value area. The profile is invalid when fewer
// than 50 candles or no volume are available.
func BuildVolumeProfile(candles []domain.Candle) domain.VolumeProfile {
	if len(candles) < profileWindow {
		return domain.VolumeProfile{}
	}
	window := domain.Tail(candles, profileWindow)

	mids := make([]float64, len(window))
	lo, hi := 0.0, 0.0
	totalVolume := 0.0
	for i, c := range window {
		mids[i] = (c.High + c.Low) / 2
		if i == 0 || mids[i] < lo {
			lo = mids[i]
		}
		if i == 0 || mids[i] > hi {
			hi = mids[i]
		}
		totalVolume += c.Volume
	}
	if totalVolume <= 0 {
		return domain.VolumeProfile{}
	}
	last := window[len(window)-1].Close

	if hi == lo {
		return domain.VolumeProfile{
			POC:           lo,
			ValueAreaHigh: hi,
			ValueAreaLow:  lo,
			Position:      position(last, lo, hi),
			Valid:         true,
		}
	}

	width := (hi - lo) / profileBins
	var bins [profileBins]float64
	for i, c := range window {
		idx := int((mids[i] - lo) / width)
		if idx >= profileBins {
			idx = profileBins - 1
		}
		bins[idx] += c.Volume
	}

	poc := 0
	for i := range bins {
		if bins[i] > bins[poc] {
			poc = i
		}
	}

	low, high := poc, poc
	covered := bins[poc]
	for covered < valueAreaTarget*totalVolume && (low > 0 || high < profileBins-1) {
		below, above := -1.0, -1.0
		if low > 0 {
			below = bins[low-1]
		}
		if high < profileBins-1 {
			above = bins[high+1]
		}
		if below >= above {
			low--
			covered += bins[low]
		} else {
			high++
			covered += bins[high]
		}
	}

	vaLow := lo + float64(low)*width
	vaHigh := lo + float64(high+1)*width
	return domain.VolumeProfile{
		POC:           lo + (float64(poc)+0.5)*width,
		ValueAreaHigh: vaHigh,
		ValueAreaLow:  vaLow,
		Position:      position(last, vaLow, vaHigh),
		Valid:         true,
	}
}

func position(price, vaLow, vaHigh float64) domain.ValuePosition {
	switch {
	case price > vaHigh:
		return domain.AboveValue
	case price < vaLow:
		return domain.BelowValue
	default:
		return domain.InValue
	}
}
