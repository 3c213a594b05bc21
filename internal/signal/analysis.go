package signal

import (
	"errors"
	"math"

	"cryptoDecisionEngine/internal/domain"
	"cryptoDecisionEngine/internal/indicators"
	"cryptoDecisionEngine/internal/microstructure"
	"cryptoDecisionEngine/internal/patterns"
)

// VolatilityState buckets ATR relative to price.
type VolatilityState string

const (
	VolatilityNormal  VolatilityState = "normal"
	VolatilityHigh    VolatilityState = "high"
	VolatilityExtreme VolatilityState = "extreme"
)

// Analysis holds every factor read from the candles before weighting.
type Analysis struct {
	Price         float64
	EMAFast       float64
	EMAMid        float64
	EMASlow       float64
	TrendScore    float64 // +/-1 fully aligned, +/-0.7 fast over mid only
	TrendStrength float64 // [0,1]

	RSI           float64
	StochK        float64
	MACDHist      float64
	MACDCross     indicators.Cross
	MomentumScore float64

	BBPosition      float64
	ATR             float64
	VolatilityState VolatilityState

	VolumeSpike bool
	OBVRising   bool

	Pattern   *domain.PatternMatch
	OrderFlow domain.OrderFlow
	Profile   domain.VolumeProfile
}

// Analyze reads trend, momentum, volatility, volume, pattern and microstructure
// factors. Indicators that cannot be computed are left neutral.
func Analyze(candles []domain.Candle, book *domain.OrderBook, detector *patterns.Detector) Analysis {
	closes := domain.Closes(candles)
	highs := domain.Highs(candles)
	lows := domain.Lows(candles)
	volumes := domain.Volumes(candles)

	a := Analysis{
		RSI:             50,
		StochK:          50,
		BBPosition:      0.5,
		VolatilityState: VolatilityNormal,
	}
	if len(closes) == 0 {
		return a
	}
	a.Price = closes[len(closes)-1]

	analyzeTrend(&a, closes)
	analyzeMomentum(&a, highs, lows, closes)
	analyzeVolatility(&a, highs, lows, closes)
	analyzeVolume(&a, closes, volumes)

	if detector != nil {
		if best, ok := patterns.Best(detector.Detect(candles)); ok {
			a.Pattern = &best
		}
	}
	a.OrderFlow = microstructure.AnalyzeOrderFlow(candles, book)
	a.Profile = microstructure.BuildVolumeProfile(candles)
	return a
}

func analyzeTrend(a *Analysis, closes []float64) {
	fast, errF := indicators.LastEMA(closes, 9)
	mid, errM := indicators.LastEMA(closes, 21)
	slow, errS := indicators.LastEMA(closes, 50)
	if err := errors.Join(errF, errM, errS); err != nil {
		return
	}
	a.EMAFast, a.EMAMid, a.EMASlow = fast, mid, slow

	switch {
	case fast > mid && mid > slow:
		a.TrendScore = 1.0
	case fast < mid && mid < slow:
		a.TrendScore = -1.0
	case fast > mid:
		a.TrendScore = 0.7
	case fast < mid:
		a.TrendScore = -0.7
	}

	recent := closes[max(0, len(closes)-14):]
	if len(recent) > 1 && a.Price > 0 {
		avgMove := (recent[len(recent)-1] - recent[0]) / float64(len(recent)-1)
		a.TrendStrength = math.Min(math.Abs(avgMove)/a.Price*100, 1)
	}
}

func analyzeMomentum(a *Analysis, highs, lows, closes []float64) {
	if rsi, err := indicators.RSI(closes, 14); err == nil {
		a.RSI = rsi
	}
	if stoch, err := indicators.Stochastic(highs, lows, closes, 14, 3); err == nil {
		a.StochK = stoch.K
	}
	if macd, err := indicators.MACD(closes, 12, 26, 9); err == nil {
		_, _, a.MACDHist = macd.Last()
		a.MACDCross = indicators.Crossover(macd.MACD, macd.Signal)
	}

	switch {
	case a.RSI < 30 && a.StochK < 20:
		a.MomentumScore = 1.0
	case a.RSI > 70 && a.StochK > 80:
		a.MomentumScore = -1.0
	case a.MACDCross == indicators.BullishCross:
		a.MomentumScore = 0.7
	case a.MACDCross == indicators.BearishCross:
		a.MomentumScore = -0.7
	}
}

func analyzeVolatility(a *Analysis, highs, lows, closes []float64) {
	if bands, err := indicators.Bollinger(closes, 20, 2); err == nil {
		a.BBPosition = bands.Position(a.Price)
	}
	if atr, err := indicators.ATR(highs, lows, closes, 14); err == nil {
		a.ATR = atr
		if a.Price > 0 {
			switch ratio := atr / a.Price; {
			case ratio > 0.05:
				a.VolatilityState = VolatilityExtreme
			case ratio > 0.03:
				a.VolatilityState = VolatilityHigh
			}
		}
	}
}

func analyzeVolume(a *Analysis, closes, volumes []float64) {
	if avg, err := indicators.SMA(volumes, 20); err == nil && avg > 0 {
		a.VolumeSpike = volumes[len(volumes)-1] > 1.5*avg
	}
	if obv, err := indicators.OBV(closes, volumes); err == nil {
		if avg, err := indicators.SMA(obv, 20); err == nil {
			a.OBVRising = obv[len(obv)-1] > avg
		}
	}
}

// Conditions derives the market conditions used for risk profiling.
func Conditions(candles []domain.Candle, book *domain.OrderBook) domain.MarketConditions {
	a := Analyze(candles, book, nil)
	closes := domain.Closes(domain.Tail(candles, 50))

	regime := domain.RegimeRanging
	switch {
	case len(candles) < 50:
		regime = domain.RegimeUnknown
	case a.VolatilityState != VolatilityNormal:
		regime = domain.RegimeVolatile
	case math.Abs(a.TrendScore) == 1:
		regime = domain.RegimeTrending
	}

	return domain.MarketConditions{
		Volatility:          indicators.StdDev(indicators.Returns(closes)),
		Regime:              regime,
		TrendStrength:       math.Abs(a.TrendScore),
		HighVolume:          a.VolumeSpike,
		LiquiditySufficient: a.OrderFlow.LiquidityScore >= 0.5,
	}
}
