// Package labeler produces triple-barrier training labels and meta-labels from historical bars.
package labeler

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/dmeints/Trading-Bot-v2-sub010/internal/config"
	"github.com/dmeints/Trading-Bot-v2-sub010/internal/feature"
	"github.com/dmeints/Trading-Bot-v2-sub010/internal/metrics"
)

// Barrier identifies which boundary ended a simulated holding period.
type Barrier string

const (
	BarrierStop       Barrier = "stop"
	BarrierTakeProfit Barrier = "take_profit"
	BarrierTimeout    Barrier = "timeout"
)

// Label is the triple-barrier outcome for one entry candidate.
type Label struct {
	EntryIdx    int       `json:"entry_idx"`
	EntryTs     time.Time `json:"entry_ts"`
	Primary     int       `json:"primary"` // -1, 0, 1
	Barrier     Barrier   `json:"barrier"`
	HoldingBars int       `json:"holding_bars"`
	Return      float64   `json:"return"` // fractional return at the deciding barrier
	Meta        int       `json:"meta"`   // 1 take, 0 skip
	Confidence  float64   `json:"confidence"`
	VolAtEntry  float64   `json:"vol_at_entry"`
	StopLevel   float64   `json:"stop_level"`
	ProfitLevel float64   `json:"profit_level"`
}

// Labeler runs the batch labeling pass. LabelSeries is pure; LabelAll adds
// bounded fan-out across symbols.
type Labeler struct {
	cfg config.Labeler
	log zerolog.Logger
}

// NewLabeler builds a Labeler from the labeling configuration.
func NewLabeler(cfg config.Labeler, log zerolog.Logger) *Labeler {
	return &Labeler{cfg: cfg, log: log}
}

// LabelSeries labels every candidate entry in one bar series. A candidate
// needs a known positive volatility estimate and at least one forward bar;
// everything else degrades by skipping, never by failing.
func (l *Labeler) LabelSeries(bars []feature.Bar) []Label {
	if len(bars) < 2 {
		return nil
	}
	vols := rollingVol(bars, l.cfg.VolWindow)
	ind := newIndicators(bars)

	var labels []Label
	for i := 0; i < len(bars)-1; i++ {
		if vols[i] <= 0 {
			continue
		}
		labels = append(labels, l.labelOne(bars, vols, ind, i))
	}
	return labels
}

func (l *Labeler) labelOne(bars []feature.Bar, vols []float64, ind *indicators, i int) Label {
	entry := bars[i].Close
	vol := vols[i]
	stopRet := -vol * l.cfg.StopMult
	profitRet := vol * l.cfg.ProfitMult

	end := i + l.cfg.MaxHoldingBars
	if end > len(bars)-1 {
		end = len(bars) - 1
	}

	barrier := BarrierTimeout
	hit := end
	ret := 0.0
	for j := i + 1; j <= end; j++ {
		ret = bars[j].Close/entry - 1
		if ret <= stopRet {
			barrier = BarrierStop
			hit = j
			break
		}
		if ret >= profitRet {
			barrier = BarrierTakeProfit
			hit = j
			break
		}
	}
	if barrier == BarrierTimeout {
		ret = bars[end].Close/entry - 1
	}

	minRet := l.cfg.MinReturnBps / 1e4
	primary := 0
	switch barrier {
	case BarrierStop:
		if -ret >= minRet {
			primary = -1
		}
	case BarrierTakeProfit:
		if ret >= minRet {
			primary = 1
		}
	case BarrierTimeout:
		// Without a touch, only a move past half the profit target counts.
		half := 0.5 * profitRet
		switch {
		case ret >= half && ret >= minRet:
			primary = 1
		case ret <= -half && -ret >= minRet:
			primary = -1
		}
	}

	conf := l.confidence(ind, vols, i)
	meta := 0
	if primary != 0 && conf >= l.cfg.MinConfidence {
		meta = 1
	}

	return Label{
		EntryIdx:    i,
		EntryTs:     bars[i].Ts,
		Primary:     primary,
		Barrier:     barrier,
		HoldingBars: hit - i,
		Return:      ret,
		Meta:        meta,
		Confidence:  conf,
		VolAtEntry:  vol,
		StopLevel:   entry * (1 + stopRet),
		ProfitLevel: entry * (1 + profitRet),
	}
}

// FetchFunc yields the bar history for one symbol.
type FetchFunc func(ctx context.Context, symbol string) ([]feature.Bar, error)

// LabelAll labels the given symbols concurrently with at most cfg.Workers
// in flight. Workers share nothing but the result map behind its mutex, so
// a run never mutates a feature cache out from under a sibling.
func (l *Labeler) LabelAll(ctx context.Context, symbols []string, fetch FetchFunc) (map[string][]Label, error) {
	g, ctx := errgroup.WithContext(ctx)
	if l.cfg.Workers > 0 {
		g.SetLimit(l.cfg.Workers)
	}

	var mu sync.Mutex
	out := make(map[string][]Label, len(symbols))
	for _, symbol := range symbols {
		symbol := symbol
		g.Go(func() error {
			bars, err := fetch(ctx, symbol)
			if err != nil {
				return fmt.Errorf("fetch bars for %s: %w", symbol, err)
			}
			labels := l.LabelSeries(bars)
			for _, lbl := range labels {
				metrics.LabelsTotal.WithLabelValues(symbol, strconv.Itoa(lbl.Primary)).Inc()
			}
			l.log.Info().Str("symbol", symbol).Int("bars", len(bars)).Int("labels", len(labels)).Msg("labeled series")

			mu.Lock()
			out[symbol] = labels
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// rollingVol estimates per-bar volatility as the population stddev of simple
// returns over the trailing window. Entries without a full window stay zero.
func rollingVol(bars []feature.Bar, window int) []float64 {
	if window < 2 {
		window = 2
	}
	vols := make([]float64, len(bars))
	rets := make([]float64, len(bars))
	for j := 1; j < len(bars); j++ {
		if bars[j-1].Close > 0 {
			rets[j] = bars[j].Close/bars[j-1].Close - 1
		}
	}
	for i := window; i < len(bars); i++ {
		var sum, sumSq float64
		for j := i - window + 1; j <= i; j++ {
			sum += rets[j]
			sumSq += rets[j] * rets[j]
		}
		mean := sum / float64(window)
		if v := sumSq/float64(window) - mean*mean; v > 0 {
			vols[i] = math.Sqrt(v)
		}
	}
	return vols
}
