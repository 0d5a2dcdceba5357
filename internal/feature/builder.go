package feature

import (
	"math"

	talib "github.com/markcheno/go-talib"
)

const (
	emaSpan        = 20
	fastSMAPeriod  = 5
	slowSMAPeriod  = 20
	trendScale     = 100
	spikeZ         = 2.5
	impactSlopeBps = 1.5
	tierOneVolume  = 1000.0
	tierTwoVolume  = 100.0
)

// Builder derives rolling Snapshots from a streamed bar sequence. It stands
// in for an external feature provider during backtests: microstructure is
// estimated from bar shape, the social block is a volume-burst proxy, and
// on-chain/macro blocks stay absent so their safe defaults apply.
type Builder struct {
	symbol  string
	window  int
	prov    Provenance
	bars    []Bar
	ewmaVol float64
	volHist []float64
	runLen  int
	prevZ   float64
}

// NewBuilder creates a Builder holding at most window bars.
func NewBuilder(symbol string, window int, prov Provenance) *Builder {
	if window < slowSMAPeriod {
		window = 64
	}
	return &Builder{symbol: symbol, window: window, prov: prov}
}

// Ready reports whether enough bars accumulated for a full-featured snapshot.
func (b *Builder) Ready() bool { return len(b.bars) >= b.window }

// Push ingests one bar and returns the snapshot as of that bar.
func (b *Builder) Push(bar Bar) *Snapshot {
	b.bars = append(b.bars, bar)
	if len(b.bars) > b.window {
		b.bars = b.bars[1:]
	}

	n := len(b.bars)
	snap := &Snapshot{
		Symbol:     b.symbol,
		Bars:       append([]Bar(nil), b.bars...),
		Provenance: b.prov,
	}
	snap.Provenance.GeneratedAt = bar.Ts
	if n < 2 {
		return snap
	}

	prev := b.bars[n-2]
	retBps := 0.0
	if prev.Close > 0 {
		retBps = (bar.Close/prev.Close - 1) * 1e4
	}
	alpha := 2.0 / (emaSpan + 1)
	if b.ewmaVol == 0 {
		b.ewmaVol = math.Abs(retBps)
	} else {
		b.ewmaVol = alpha*math.Abs(retBps) + (1-alpha)*b.ewmaVol
	}
	b.volHist = append(b.volHist, b.ewmaVol)
	if len(b.volHist) > b.window {
		b.volHist = b.volHist[1:]
	}
	// The snapshot carries the run standing BEFORE this bar, so a reversal
	// bar reads as delta disagreeing with the run rather than resetting it.
	standingRun := b.runLen
	b.updateRun(retBps)

	spread := clampF(0.5*b.ewmaVol, 1, 50)
	snap.Micro = &Micro{
		SpreadBps:    spread,
		Imbalance1:   closeLocation(bar),
		MicroVolEWMA: b.ewmaVol,
		TradeRunLen:  standingRun,
		Signed:       true,
	}
	snap.Costs = &Costs{BaseBps: spread / 2, SlopeBpsPerPct: impactSlopeBps}
	snap.Social = b.socialProxy(bar)
	snap.Regime = &Regime{
		VolPct:        b.volPercentile(),
		TrendStrength: b.trend(),
		LiquidityTier: b.tier(),
	}
	return snap
}

func (b *Builder) updateRun(retBps float64) {
	switch {
	case retBps > 0:
		if b.runLen > 0 {
			b.runLen++
		} else {
			b.runLen = 1
		}
	case retBps < 0:
		if b.runLen < 0 {
			b.runLen--
		} else {
			b.runLen = -1
		}
	default:
		b.runLen = 0
	}
}

// volPercentile is the midrank of the current EWMA vol within its history.
func (b *Builder) volPercentile() float64 {
	n := len(b.volHist)
	if n == 0 {
		return DefaultVolPct
	}
	cur := b.volHist[n-1]
	less, equal := 0, 0
	for _, v := range b.volHist {
		switch {
		case v < cur:
			less++
		case v == cur:
			equal++
		}
	}
	return (float64(less) + 0.5*float64(equal)) / float64(n) * 100
}

func (b *Builder) trend() float64 {
	if len(b.bars) < slowSMAPeriod {
		return 0
	}
	closes := make([]float64, len(b.bars))
	for i, bar := range b.bars {
		closes[i] = bar.Close
	}
	fast := talib.Sma(closes, fastSMAPeriod)
	slow := talib.Sma(closes, slowSMAPeriod)
	f, s := fast[len(fast)-1], slow[len(slow)-1]
	if s <= 0 {
		return 0
	}
	return math.Tanh(trendScale * (f - s) / s)
}

// socialProxy turns volume bursts into a stand-in sentiment block when no
// real feed is attached.
func (b *Builder) socialProxy(bar Bar) *Social {
	n := len(b.bars)
	if n < 8 {
		return nil
	}
	var sum, sumSq float64
	for _, x := range b.bars {
		sum += x.Volume
		sumSq += x.Volume * x.Volume
	}
	mean := sum / float64(n)
	variance := sumSq/float64(n) - mean*mean
	if variance <= 0 {
		return nil
	}
	z := (bar.Volume - mean) / math.Sqrt(variance)
	s := &Social{Z: z, Delta: z - b.prevZ, Spike: z >= spikeZ}
	b.prevZ = z
	return s
}

func (b *Builder) tier() int {
	var sum float64
	for _, x := range b.bars {
		sum += x.Volume
	}
	avg := sum / float64(len(b.bars))
	switch {
	case avg >= tierOneVolume:
		return 1
	case avg >= tierTwoVolume:
		return 2
	default:
		return 3
	}
}

// closeLocation maps where the close sits inside the bar range to [-1, 1],
// a book-imbalance proxy.
func closeLocation(bar Bar) float64 {
	span := bar.High - bar.Low
	if span <= 0 {
		return 0
	}
	return clampF((2*bar.Close-bar.High-bar.Low)/span, -1, 1)
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
