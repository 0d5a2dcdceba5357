// Package risk sizes entries by scaling base risk through liquidity, bias, variance-target and tempered-Kelly multipliers.
package risk

import (
	"github.com/dmeints/Trading-Bot-v2-sub010/internal/config"
	"github.com/dmeints/Trading-Bot-v2-sub010/internal/feature"
)

const (
	minVarianceBps2     = 1.0
	varianceScaleFloor  = 0.25
	varianceScaleCeil   = 2.0
	negativeBiasHaircut = 0.75
	scoreClamp          = 0.5
)

// Sizer converts the configured base risk into the final equity percentage
// for one entry.
type Sizer struct {
	cfg config.Sizing
}

// NewSizer builds a Sizer from the sizing configuration.
func NewSizer(cfg config.Sizing) *Sizer {
	return &Sizer{cfg: cfg}
}

// BaseRiskPct exposes the unscaled base risk, the size the kernel's cost
// gate probes the slippage curve at.
func (s *Sizer) BaseRiskPct() float64 { return s.cfg.BaseRiskPct }

// NewsCapPct is the hard ceiling for news-tagged entries.
func (s *Sizer) NewsCapPct(newsMaxRiskPct float64) float64 {
	if newsMaxRiskPct < s.cfg.BaseRiskPct {
		return newsMaxRiskPct
	}
	return s.cfg.BaseRiskPct
}

// Size returns the equity percentage to commit for an entry carrying the
// given strategy tag. Unknown inputs collapse to neutral multipliers; the
// result is always within [0, PerSymbolCapPct] and never an error.
func (s *Sizer) Size(snap *feature.Snapshot, tag string, score7d float64) float64 {
	size := s.cfg.BaseRiskPct
	size *= tierMultiplier(snap.LiquidityTier())
	if snap.OnchainBias() < 0 {
		size *= negativeBiasHaircut
	}
	size *= s.varianceTarget(snap.MicroVol())
	size *= s.kellyFraction(tag, snap.MicroVol())
	size *= 1 + clamp(score7d, -scoreClamp, scoreClamp)
	return clamp(size, 0, s.cfg.PerSymbolCapPct)
}

func tierMultiplier(tier int) float64 {
	switch tier {
	case 1:
		return 1.0
	case 2:
		return 0.7
	case 3:
		return 0.5
	default:
		return 1.0
	}
}

// varianceTarget scales size inversely with realized vol toward the target,
// clamped so a dead tape cannot balloon size.
func (s *Sizer) varianceTarget(volBps float64) float64 {
	if s.cfg.VarianceTargetBps <= 0 || volBps <= 0 {
		return 1.0
	}
	return clamp(s.cfg.VarianceTargetBps/volBps, varianceScaleFloor, varianceScaleCeil)
}

// kellyFraction is temper * edge / variance, clamped to the configured range.
// Edge is in bps and variance in bps squared, floored to keep the division sane.
func (s *Sizer) kellyFraction(tag string, volBps float64) float64 {
	edge := s.cfg.EdgeBpsFor(tag)
	if edge <= 0 || s.cfg.Kelly.Temper <= 0 {
		return 1.0
	}
	variance := volBps * volBps
	if variance < minVarianceBps2 {
		variance = minVarianceBps2
	}
	f := s.cfg.Kelly.Temper * edge / variance
	return clamp(f, s.cfg.Kelly.MinFraction, s.cfg.Kelly.MaxFraction)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
