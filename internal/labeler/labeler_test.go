package labeler

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmeints/Trading-Bot-v2-sub010/internal/config"
	"github.com/dmeints/Trading-Bot-v2-sub010/internal/feature"
)

func barsFromReturns(start float64, rets []float64) []feature.Bar {
	ts := time.Unix(1700000000, 0)
	px := start
	bars := []feature.Bar{{Ts: ts, Open: px, High: px, Low: px, Close: px, Volume: 100}}
	for i, r := range rets {
		px *= 1 + r
		bars = append(bars, feature.Bar{
			Ts:     ts.Add(time.Duration(i+1) * time.Minute),
			Open:   px,
			High:   px,
			Low:    px,
			Close:  px,
			Volume: 100,
		})
	}
	return bars
}

// risingReturns alternates two positive steps so the series trends up while
// keeping a nonzero rolling volatility.
func risingReturns(n int) []float64 {
	rets := make([]float64, n)
	for i := range rets {
		if i%2 == 0 {
			rets[i] = 0.006
		} else {
			rets[i] = 0.004
		}
	}
	return rets
}

func oscillatingReturns(n int, step float64) []float64 {
	rets := make([]float64, n)
	for i := range rets {
		if i%2 == 0 {
			rets[i] = step
		} else {
			rets[i] = -step
		}
	}
	return rets
}

func findLabel(t *testing.T, labels []Label, entryIdx int) Label {
	t.Helper()
	for _, l := range labels {
		if l.EntryIdx == entryIdx {
			return l
		}
	}
	t.Fatalf("no label for entry index %d", entryIdx)
	return Label{}
}

func TestRisingPathHitsTakeProfit(t *testing.T) {
	l := NewLabeler(config.Default().Labeler, zerolog.Nop())
	labels := l.LabelSeries(barsFromReturns(100, risingReturns(60)))
	require.NotEmpty(t, labels)

	first := labels[0]
	assert.Equal(t, 20, first.EntryIdx)
	assert.Equal(t, BarrierTakeProfit, first.Barrier)
	assert.Equal(t, 1, first.Primary)
	assert.Equal(t, 1, first.HoldingBars)
	assert.GreaterOrEqual(t, first.Return, 0.002)
	assert.GreaterOrEqual(t, first.Confidence, 0.6)
	assert.Equal(t, 1, first.Meta)
	assert.Greater(t, first.ProfitLevel, first.StopLevel)
}

func TestFallingPathHitsStop(t *testing.T) {
	l := NewLabeler(config.Default().Labeler, zerolog.Nop())
	rets := risingReturns(60)
	for i := range rets {
		rets[i] = -rets[i]
	}
	labels := l.LabelSeries(barsFromReturns(100, rets))
	require.NotEmpty(t, labels)

	first := labels[0]
	assert.Equal(t, BarrierStop, first.Barrier)
	assert.Equal(t, -1, first.Primary)
	assert.Negative(t, first.Return)
}

func TestFlatForwardTimesOutNeutral(t *testing.T) {
	cfg := config.Default().Labeler
	cfg.MaxHoldingBars = 10
	l := NewLabeler(cfg, zerolog.Nop())

	rets := append(oscillatingReturns(24, 0.004), make([]float64, 12)...)
	labels := l.LabelSeries(barsFromReturns(100, rets))

	lbl := findLabel(t, labels, 24)
	assert.Equal(t, BarrierTimeout, lbl.Barrier)
	assert.Equal(t, 10, lbl.HoldingBars)
	assert.Equal(t, 0, lbl.Primary)
	assert.Equal(t, 0, lbl.Meta)
}

func TestHalfTargetSignsTimeout(t *testing.T) {
	cfg := config.Default().Labeler
	cfg.MaxHoldingBars = 10
	l := NewLabeler(cfg, zerolog.Nop())

	rets := oscillatingReturns(20, 0.004)
	for i := 0; i < 10; i++ {
		rets = append(rets, 0.0005)
	}
	labels := l.LabelSeries(barsFromReturns(100, rets))

	lbl := findLabel(t, labels, 20)
	assert.Equal(t, BarrierTimeout, lbl.Barrier)
	assert.Equal(t, 1, lbl.Primary, "drift past half target should sign the timeout label")
	assert.InDelta(t, 0.005, lbl.Return, 0.0005)
}

func TestMinReturnFilterZeroesWeakSignals(t *testing.T) {
	cfg := config.Default().Labeler
	cfg.MinReturnBps = 100
	l := NewLabeler(cfg, zerolog.Nop())

	labels := l.LabelSeries(barsFromReturns(100, risingReturns(60)))
	require.NotEmpty(t, labels)

	first := labels[0]
	assert.Equal(t, BarrierTakeProfit, first.Barrier)
	assert.Equal(t, 0, first.Primary, "sub-filter move must not earn a directional label")
	assert.Equal(t, 0, first.Meta)
}

func TestClassWeightsIdentity(t *testing.T) {
	labels := []Label{{Primary: 1}, {Primary: 1}, {Primary: 0}, {Primary: -1}}
	weights := ClassWeights(labels)

	require.Len(t, weights, 3)
	sum := 0.0
	counts := map[int]int{1: 2, 0: 1, -1: 1}
	for class, n := range counts {
		sum += float64(n) * weights[class]
	}
	assert.InDelta(t, float64(len(labels)), sum, 1e-9)

	single := ClassWeights([]Label{{Primary: 0}, {Primary: 0}, {Primary: 0}})
	assert.InDelta(t, 1.0, single[0], 1e-9)

	assert.Empty(t, ClassWeights(nil))
}

func TestSummarizePerBarrier(t *testing.T) {
	labels := []Label{
		{Barrier: BarrierTakeProfit, HoldingBars: 2, Return: 0.01},
		{Barrier: BarrierTakeProfit, HoldingBars: 4, Return: 0.03},
		{Barrier: BarrierStop, HoldingBars: 1, Return: -0.02},
	}
	sum := Summarize(labels)

	require.Equal(t, 3, sum.Total)
	tp := sum.PerBarrier[BarrierTakeProfit]
	assert.Equal(t, 2, tp.Count)
	assert.InDelta(t, 2.0/3.0, tp.HitRate, 1e-9)
	assert.InDelta(t, 3.0, tp.AvgHolding, 1e-9)
	assert.InDelta(t, 0.02, tp.ReturnMean, 1e-9)
	assert.InDelta(t, 0.01, tp.ReturnStddev, 1e-9)

	stop := sum.PerBarrier[BarrierStop]
	assert.Equal(t, 1, stop.Count)
	assert.InDelta(t, 0.0, stop.ReturnStddev, 1e-9)

	assert.Zero(t, Summarize(nil).Total)
}

func TestLabelAllFansOut(t *testing.T) {
	l := NewLabeler(config.Default().Labeler, zerolog.Nop())
	bars := barsFromReturns(100, risingReturns(60))
	fetch := func(ctx context.Context, symbol string) ([]feature.Bar, error) {
		return bars, nil
	}

	out, err := l.LabelAll(context.Background(), []string{"BTCUSDT", "ETHUSDT"}, fetch)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.NotEmpty(t, out["BTCUSDT"])
	assert.NotEmpty(t, out["ETHUSDT"])
}

func TestLabelAllPropagatesFetchError(t *testing.T) {
	l := NewLabeler(config.Default().Labeler, zerolog.Nop())
	fetch := func(ctx context.Context, symbol string) ([]feature.Bar, error) {
		if symbol == "ETHUSDT" {
			return nil, fmt.Errorf("backend down")
		}
		return barsFromReturns(100, risingReturns(60)), nil
	}

	_, err := l.LabelAll(context.Background(), []string{"BTCUSDT", "ETHUSDT"}, fetch)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ETHUSDT")
}
