package strategy

import (
	"math"

	"github.com/rs/zerolog"

	"github.com/dmeints/Trading-Bot-v2-sub010/internal/config"
	"github.com/dmeints/Trading-Bot-v2-sub010/internal/feature"
	"github.com/dmeints/Trading-Bot-v2-sub010/internal/risk"
)

const (
	makerNudge        = 0.001
	snapbackImbalance = 0.1
	breakoutSpreadPad = 2
	meanRevertScale   = 0.7
)

// Kernel routes snapshots to entry actions. It owns no mutable state, so
// Decide is safe to call concurrently on independent snapshots.
type Kernel struct {
	cfg   config.Strategy
	sizer *risk.Sizer
	log   zerolog.Logger
}

// NewKernel wires the router to its thresholds and sizer.
func NewKernel(cfg config.Strategy, sizer *risk.Sizer, log zerolog.Logger) *Kernel {
	return &Kernel{cfg: cfg, sizer: sizer, log: log}
}

// Decide maps one snapshot to exactly one Action and never returns an error:
// every blocking condition surfaces as a hold reason. Hard stops are checked
// before the cost gate, which is checked before any strategy; the strategies
// are mutually exclusive and evaluated breakout first, news last. The caller
// owns pos and gates re-entry; routing itself is position-agnostic.
func (k *Kernel) Decide(snap *feature.Snapshot, pos *Position, score7d float64) Action {
	if snap.Blackout() {
		return HoldAction(ReasonMacroBlackout)
	}
	if snap.GasSpike() {
		return HoldAction(ReasonGasSpike)
	}
	if exp := snap.ExpectedSlippageBps(k.sizer.BaseRiskPct()); exp > k.cfg.CostCapBps {
		k.log.Debug().Str("symbol", snap.Symbol).Float64("expected_bps", exp).Msg("cost gate closed")
		return HoldAction(ReasonSlippageCap)
	}
	if act, ok := k.breakout(snap, score7d); ok {
		return act
	}
	if act, ok := k.meanRevert(snap, score7d); ok {
		return act
	}
	if act, ok := k.news(snap, score7d); ok {
		return act
	}
	return HoldAction(ReasonNoEdge)
}

func (k *Kernel) breakout(snap *feature.Snapshot, score7d float64) (Action, bool) {
	if snap.VolPct() <= k.cfg.VolPctBreakout {
		return Action{}, false
	}
	if snap.SpreadBps() > k.cfg.TakerBps+breakoutSpreadPad {
		return Action{}, false
	}
	if snap.SocialDelta() <= k.cfg.SocialGo {
		return Action{}, false
	}
	return Action{
		Kind:    EnterIOC,
		SizePct: k.sizer.Size(snap, TagBreakout, score7d),
		Tag:     TagBreakout,
		TPBps:   k.cfg.Breakout.TPBps,
		SLBps:   k.cfg.Breakout.SLBps,
	}, true
}

// meanRevert fires on a snapback: the last bar moved against the standing
// trade run while the book is roughly balanced. The maker order is parked
// 0.1% beyond the last close on the side of the imbalance.
func (k *Kernel) meanRevert(snap *feature.Snapshot, score7d float64) (Action, bool) {
	if snap.VolPct() >= k.cfg.VolPctMeanRevert {
		return Action{}, false
	}
	if snap.LastDelta()*float64(snap.TradeRun()) >= 0 {
		return Action{}, false
	}
	if math.Abs(snap.Imbalance()) >= snapbackImbalance {
		return Action{}, false
	}
	price := snap.LastClose() * (1 + makerNudge)
	if snap.Imbalance() < 0 {
		price = snap.LastClose() * (1 - makerNudge)
	}
	return Action{
		Kind:    EnterLimitMaker,
		SizePct: meanRevertScale * k.sizer.Size(snap, TagMeanRevert, score7d),
		Price:   price,
		Tag:     TagMeanRevert,
		TPBps:   k.cfg.MeanRevert.TPBps,
		SLBps:   k.cfg.MeanRevert.SLBps,
	}, true
}

func (k *Kernel) news(snap *feature.Snapshot, score7d float64) (Action, bool) {
	if !snap.SocialSpike() {
		return Action{}, false
	}
	if snap.SpreadBps() > k.cfg.TakerBps {
		return Action{}, false
	}
	size := k.sizer.Size(snap, TagNews, score7d)
	if ceiling := k.sizer.NewsCapPct(k.cfg.NewsMaxRiskPct); size > ceiling {
		size = ceiling
	}
	return Action{
		Kind:    EnterIOC,
		SizePct: size,
		Tag:     TagNews,
		TPBps:   k.cfg.News.TPBps,
		SLBps:   k.cfg.News.SLBps,
	}, true
}
