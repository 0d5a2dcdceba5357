// Package feature defines the market snapshot contract shared by the decision kernel, sizer, labeler and backtester.
package feature

import "time"

// Bar is a single OHLCV candle.
type Bar struct {
	Ts     time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Micro carries order-book microstructure readings for the most recent bar.
type Micro struct {
	SpreadBps    float64
	Imbalance1   float64 // top-of-book imbalance in [-1, 1]
	MicroVolEWMA float64 // EWMA of absolute bar returns, bps
	TradeRunLen  int     // signed run standing before the latest bar
	Signed       bool
}

// CostPoint is one entry of a sparse size-to-slippage curve.
type CostPoint struct {
	SizePct float64
	Bps     float64
}

// Costs models expected slippage as a function of order size. Either the
// parametric form (BaseBps + SlopeBpsPerPct*size) or the sparse Curve is
// populated; Curve wins when both are set.
type Costs struct {
	BaseBps        float64
	SlopeBpsPerPct float64
	Curve          []CostPoint // ascending by SizePct
}

// Social carries sentiment-feed readings.
type Social struct {
	Z     float64
	Delta float64
	Spike bool
}

// Onchain carries chain-level risk readings.
type Onchain struct {
	GasSpike bool
	Bias     float64 // [-1, 1]
}

// Macro flags calendar blackout windows.
type Macro struct {
	Blackout bool
}

// Regime classifies current volatility, trend and liquidity conditions.
type Regime struct {
	VolPct        float64 // realized-vol percentile in [0, 100]
	TrendStrength float64
	LiquidityTier int // 1 most liquid, 3 least
}

// Provenance identifies the dataset and code revision behind a snapshot.
type Provenance struct {
	DatasetID   string
	Commit      string
	GeneratedAt time.Time
}

// Snapshot is the immutable feature view handed to the kernel. Optional
// sub-structs may be nil; the accessor methods substitute safe defaults so
// a sparse snapshot degrades instead of crashing a consumer.
type Snapshot struct {
	Symbol     string
	Bars       []Bar // ordered, most recent last
	Micro      *Micro
	Costs      *Costs
	Social     *Social
	Onchain    *Onchain
	Macro      *Macro
	Regime     *Regime
	Provenance Provenance
}

// Defaults substituted when an optional sub-struct is absent. The spread
// and slippage defaults are deliberately wide so unknown execution quality
// blocks entries instead of inviting them.
const (
	DefaultSpreadBps   = 999.0
	DefaultSlippageBps = 999.0
	DefaultVolPct      = 50.0
)

// LastClose returns the close of the most recent bar, or 0 with no bars.
func (s *Snapshot) LastClose() float64 {
	if len(s.Bars) == 0 {
		return 0
	}
	return s.Bars[len(s.Bars)-1].Close
}

// LastDelta returns the close-to-close change of the most recent bar.
func (s *Snapshot) LastDelta() float64 {
	n := len(s.Bars)
	if n < 2 {
		return 0
	}
	return s.Bars[n-1].Close - s.Bars[n-2].Close
}

// Blackout reports the macro blackout flag, false when macro data is absent.
func (s *Snapshot) Blackout() bool {
	return s.Macro != nil && s.Macro.Blackout
}

// GasSpike reports the on-chain gas spike flag, false when absent.
func (s *Snapshot) GasSpike() bool {
	return s.Onchain != nil && s.Onchain.GasSpike
}

// OnchainBias returns the on-chain bias, 0 when absent.
func (s *Snapshot) OnchainBias() float64 {
	if s.Onchain == nil {
		return 0
	}
	return s.Onchain.Bias
}

// SpreadBps returns the quoted spread, or a prohibitively wide default.
func (s *Snapshot) SpreadBps() float64 {
	if s.Micro == nil {
		return DefaultSpreadBps
	}
	return s.Micro.SpreadBps
}

// Imbalance returns top-of-book imbalance, 0 when microstructure is absent.
func (s *Snapshot) Imbalance() float64 {
	if s.Micro == nil {
		return 0
	}
	return s.Micro.Imbalance1
}

// MicroVol returns the EWMA micro volatility in bps, 0 when absent.
func (s *Snapshot) MicroVol() float64 {
	if s.Micro == nil {
		return 0
	}
	return s.Micro.MicroVolEWMA
}

// TradeRun returns the signed trade run length, 0 when absent.
func (s *Snapshot) TradeRun() int {
	if s.Micro == nil {
		return 0
	}
	return s.Micro.TradeRunLen
}

// SocialDelta returns the sentiment delta, 0 when the feed is absent.
func (s *Snapshot) SocialDelta() float64 {
	if s.Social == nil {
		return 0
	}
	return s.Social.Delta
}

// SocialSpike reports the sentiment spike flag, false when absent.
func (s *Snapshot) SocialSpike() bool {
	return s.Social != nil && s.Social.Spike
}

// VolPct returns the realized-vol percentile, mid-range when regime is absent
// so neither the breakout nor the mean-reversion gate opens blind.
func (s *Snapshot) VolPct() float64 {
	if s.Regime == nil {
		return DefaultVolPct
	}
	return s.Regime.VolPct
}

// TrendStrength returns the regime trend reading, 0 when absent.
func (s *Snapshot) TrendStrength() float64 {
	if s.Regime == nil {
		return 0
	}
	return s.Regime.TrendStrength
}

// LiquidityTier returns the regime liquidity tier, 0 when unknown.
func (s *Snapshot) LiquidityTier() int {
	if s.Regime == nil {
		return 0
	}
	return s.Regime.LiquidityTier
}

// ExpectedSlippageBps evaluates the cost model at the given size percent.
// With no cost model attached it returns the wide default, which keeps the
// kernel's cost gate shut when execution quality is unknowable.
func (s *Snapshot) ExpectedSlippageBps(sizePct float64) float64 {
	if s.Costs == nil {
		return DefaultSlippageBps
	}
	return s.Costs.SlippageBps(sizePct)
}

// SlippageBps evaluates the cost curve at the given size percent.
func (c *Costs) SlippageBps(sizePct float64) float64 {
	if len(c.Curve) == 0 {
		return c.BaseBps + c.SlopeBpsPerPct*sizePct
	}
	pts := c.Curve
	if sizePct <= pts[0].SizePct {
		return pts[0].Bps
	}
	for i := 1; i < len(pts); i++ {
		if sizePct <= pts[i].SizePct {
			lo, hi := pts[i-1], pts[i]
			span := hi.SizePct - lo.SizePct
			if span <= 0 {
				return hi.Bps
			}
			frac := (sizePct - lo.SizePct) / span
			return lo.Bps + frac*(hi.Bps-lo.Bps)
		}
	}
	return pts[len(pts)-1].Bps
}
