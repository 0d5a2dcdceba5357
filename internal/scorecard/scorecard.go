// Package scorecard decomposes closed trades into auditable additive score terms.
package scorecard

import (
	"math"
	"time"

	"github.com/dmeints/Trading-Bot-v2-sub010/internal/config"
	"github.com/dmeints/Trading-Bot-v2-sub010/internal/feature"
)

// TradeSnapshot captures everything known about one closed trade. Fee and
// slippage are positive magnitudes; the scorer applies their signs.
type TradeSnapshot struct {
	Symbol         string
	EntryTs        time.Time
	ExitTs         time.Time
	EntryPx        float64
	ExitPx         float64
	Qty            float64
	EquityAtEntry  float64
	FeeBps         float64
	SlippageBps    float64
	AckMs          float64
	MFEBps         float64
	MAEBps         float64
	SLBps          float64
	PostExitMidBps float64
	HasPostExitMid bool
}

// Term is one named component of a trade score.
type Term struct {
	Name  string
	Value float64
}

// TradeScore is the ordered decomposition of one trade's quality. Total is
// always the exact sum of Terms.
type TradeScore struct {
	Total      float64
	Terms      []Term
	Provenance feature.Provenance
}

// Scorer computes the eight-term score under fixed penalty coefficients.
type Scorer struct {
	cfg config.Scorecard
}

// NewScorer builds a Scorer from the scorecard configuration.
func NewScorer(cfg config.Scorecard) *Scorer {
	return &Scorer{cfg: cfg}
}

// Score decomposes one closed trade into pnl, fees, slippage, latency,
// drawdown, churn, opportunity and toxicity terms, in that order. There are
// no hidden adjustments: the total is the sum of the listed terms and the
// provenance rides along for later audit.
func (s *Scorer) Score(ts TradeSnapshot, prov feature.Provenance) TradeScore {
	pnl := 0.0
	if ts.EquityAtEntry > 0 {
		pnl = (ts.ExitPx - ts.EntryPx) * ts.Qty / ts.EquityAtEntry * 1e4
	}

	latency := -s.cfg.LatencyPenaltyPerSec * (ts.AckMs / 1000)
	drawdown := -s.cfg.DrawdownPenaltyPerBp * math.Max(0, ts.MAEBps-ts.SLBps)

	churn := 0.0
	if ts.ExitTs.Sub(ts.EntryTs).Seconds() < s.cfg.MinHoldSecs && math.Abs(pnl) < s.cfg.TinyPnlBps {
		churn = s.cfg.ChurnPenalty
	}

	// Opportunity compares the best excursion against gross pnl before costs.
	gross := math.Max(pnl+ts.FeeBps+ts.SlippageBps, 0)
	opportunity := -s.cfg.OpportunityPenaltyPerBp * math.Max(0, ts.MFEBps-gross)

	toxicity := 0.0
	if ts.HasPostExitMid && ts.PostExitMidBps <= -s.cfg.ToxicityThresholdBps {
		toxicity = s.cfg.ToxicityPenalty
	}

	terms := []Term{
		{Name: "pnl", Value: pnl},
		{Name: "fees", Value: -ts.FeeBps},
		{Name: "slippage", Value: -ts.SlippageBps},
		{Name: "latency", Value: latency},
		{Name: "drawdown", Value: drawdown},
		{Name: "churn", Value: churn},
		{Name: "opportunity", Value: opportunity},
		{Name: "toxicity", Value: toxicity},
	}
	total := 0.0
	for _, term := range terms {
		total += term.Value
	}
	return TradeScore{Total: total, Terms: terms, Provenance: prov}
}

// scoreScale maps raw score totals (bps-dominated) into the modest
// modulation range the sizer expects.
const scoreScale = 100.0

// Score7Day folds recent scores into the sizer's modulation input: the mean
// total over the trailing seven days, scaled down. Scores stamped outside
// the window are skipped and an empty window is neutral.
func Score7Day(scores []TradeScore, now time.Time) float64 {
	cutoff := now.AddDate(0, 0, -7)
	sum := 0.0
	n := 0
	for _, sc := range scores {
		at := sc.Provenance.GeneratedAt
		if at.Before(cutoff) || at.After(now) {
			continue
		}
		sum += sc.Total
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n) / scoreScale
}
