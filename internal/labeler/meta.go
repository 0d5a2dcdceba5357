package labeler

import (
	"math"

	talib "github.com/markcheno/go-talib"

	"github.com/dmeints/Trading-Bot-v2-sub010/internal/feature"
)

const (
	fastSMAPeriod = 5
	slowSMAPeriod = 20
	rsiPeriod     = 14

	confBase       = 0.3
	momentumWeight = 50
	rsiWeight      = 0.4
	volPenalty     = 25
)

// indicators holds series-aligned indicator values computed once per batch.
type indicators struct {
	fast []float64
	slow []float64
	rsi  []float64
}

func newIndicators(bars []feature.Bar) *indicators {
	if len(bars) <= slowSMAPeriod {
		return &indicators{}
	}
	closes := make([]float64, len(bars))
	for i, bar := range bars {
		closes[i] = bar.Close
	}
	return &indicators{
		fast: talib.Sma(closes, fastSMAPeriod),
		slow: talib.Sma(closes, slowSMAPeriod),
		rsi:  talib.Rsi(closes, rsiPeriod),
	}
}

func (ind *indicators) valid(i int) bool {
	return ind.slow != nil && i >= slowSMAPeriod && i < len(ind.slow) && ind.slow[i] > 0
}

// confidence scores how actionable a primary signal at index i looks:
// moving-average divergence and RSI extremity raise it, realized volatility
// drags it down. The result lives in [0, 1]; 0.5 is the agnostic fallback
// when indicator history is too short.
func (l *Labeler) confidence(ind *indicators, vols []float64, i int) float64 {
	if !ind.valid(i) {
		return 0.5
	}
	momentum := math.Abs(ind.fast[i]-ind.slow[i]) / ind.slow[i]
	rsiExtremity := math.Abs(ind.rsi[i]-50) / 50

	conf := confBase + momentumWeight*momentum + rsiWeight*rsiExtremity - volPenalty*vols[i]
	if conf < 0 {
		return 0
	}
	if conf > 1 {
		return 1
	}
	return conf
}
