package execution

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmeints/Trading-Bot-v2-sub010/internal/config"
)

func testMarket() MarketState {
	return MarketState{
		Mid:         50_000,
		SpreadBps:   5,
		VolBps:      10,
		BidDepthUSD: 500_000,
		AskDepthUSD: 500_000,
	}
}

func newTestSim(seed int64, mutate func(*config.Execution)) *Simulator {
	cfg := config.Default().Execution
	if mutate != nil {
		mutate(&cfg)
	}
	return NewSimulator(cfg, rand.New(rand.NewSource(seed)), zerolog.Nop())
}

func TestExecuteAdversePricing(t *testing.T) {
	sim := newTestSim(7, nil)
	mkt := testMarket()

	for i := 0; i < 20; i++ {
		buy := sim.Execute(Order{ID: fmt.Sprintf("b-%d", i), Symbol: "BTCUSDT", Side: Buy, Type: Market, NotionalUSD: 500}, mkt)
		require.GreaterOrEqual(t, buy.AvgFillPrice, mkt.Mid, "buy fills at or above mid")
		require.GreaterOrEqual(t, buy.SlippageBps, 0.0)

		sell := sim.Execute(Order{ID: fmt.Sprintf("s-%d", i), Symbol: "BTCUSDT", Side: Sell, Type: Market, NotionalUSD: 500}, mkt)
		require.LessOrEqual(t, sell.AvgFillPrice, mkt.Mid, "sell fills at or below mid")
		require.GreaterOrEqual(t, sell.SlippageBps, 0.0)
	}
}

func TestExecuteLimitClipsToLimitPrice(t *testing.T) {
	sim := newTestSim(11, nil)
	mkt := testMarket()

	for i := 0; i < 20; i++ {
		buy := sim.Execute(Order{ID: fmt.Sprintf("lb-%d", i), Symbol: "BTCUSDT", Side: Buy, Type: Limit, NotionalUSD: 500, LimitPrice: mkt.Mid}, mkt)
		assert.Equal(t, mkt.Mid, buy.AvgFillPrice, "buy limit at mid never pays through")
		assert.Equal(t, 0.0, buy.SlippageBps)

		sell := sim.Execute(Order{ID: fmt.Sprintf("ls-%d", i), Symbol: "BTCUSDT", Side: Sell, Type: Limit, NotionalUSD: 500, LimitPrice: mkt.Mid}, mkt)
		assert.Equal(t, mkt.Mid, sell.AvgFillPrice)
	}
}

func TestExecutePartialFillRange(t *testing.T) {
	sim := newTestSim(21, func(cfg *config.Execution) { cfg.PartialFillProbability = 1 })
	mkt := testMarket()

	for i := 0; i < 50; i++ {
		res := sim.Execute(Order{ID: fmt.Sprintf("m-%d", i), Symbol: "BTCUSDT", Side: Buy, Type: Market, NotionalUSD: 1_000}, mkt)
		require.True(t, res.Partial)
		require.GreaterOrEqual(t, res.FilledUSD, 700.0)
		require.LessOrEqual(t, res.FilledUSD, 950.0)
	}
}

func TestExecuteLimitNeverPartial(t *testing.T) {
	sim := newTestSim(21, func(cfg *config.Execution) { cfg.PartialFillProbability = 1 })
	mkt := testMarket()

	for i := 0; i < 50; i++ {
		res := sim.Execute(Order{ID: fmt.Sprintf("l-%d", i), Symbol: "BTCUSDT", Side: Buy, Type: Limit, NotionalUSD: 1_000, LimitPrice: mkt.Mid * 1.01}, mkt)
		require.False(t, res.Partial)
		require.Equal(t, 1_000.0, res.FilledUSD)
	}
}

func TestExecuteMakerFeeBelowTaker(t *testing.T) {
	mutate := func(cfg *config.Execution) {
		cfg.MakerFillProbability = 1
		cfg.PartialFillProbability = 0
	}
	mkt := testMarket()

	maker := newTestSim(3, mutate).Execute(Order{ID: "mk", Symbol: "BTCUSDT", Side: Buy, Type: Limit, NotionalUSD: 1_000, LimitPrice: mkt.Mid * 1.01}, mkt)
	taker := newTestSim(3, mutate).Execute(Order{ID: "tk", Symbol: "BTCUSDT", Side: Buy, Type: Market, NotionalUSD: 1_000}, mkt)

	require.True(t, maker.Maker)
	require.False(t, taker.Maker)
	assert.InDelta(t, 1_000*2.0/1e4, maker.FeeUSD, 1e-9)
	assert.InDelta(t, 1_000*7.0/1e4, taker.FeeUSD, 1e-9)
	assert.Less(t, maker.FeeUSD, taker.FeeUSD)
}

func TestExecuteSameSeedSameFills(t *testing.T) {
	orders := make([]Order, 0, 10)
	for i := 0; i < 10; i++ {
		typ := Market
		if i%3 == 0 {
			typ = Limit
		}
		side := Buy
		if i%2 == 1 {
			side = Sell
		}
		orders = append(orders, Order{
			ID:          fmt.Sprintf("ord-%06d", i),
			Symbol:      "BTCUSDT",
			Side:        side,
			Type:        typ,
			NotionalUSD: float64(500 + 100*i),
			LimitPrice:  50_000,
		})
	}

	a, aMkt := newTestSim(42, nil).ExecuteBatch(orders, testMarket())
	b, bMkt := newTestSim(42, nil).ExecuteBatch(orders, testMarket())

	require.Equal(t, a, b, "same seed replays the same fills")
	require.Equal(t, aMkt, bMkt)
}

func TestSlippageScalesWithVolBand(t *testing.T) {
	order := Order{ID: "v", Symbol: "BTCUSDT", Side: Buy, Type: Market, NotionalUSD: 500}
	mutate := func(cfg *config.Execution) { cfg.PartialFillProbability = 0 }

	slipAt := func(volBps float64) float64 {
		mkt := testMarket()
		mkt.VolBps = volBps
		// Fresh simulator per band with one seed keeps the latency and
		// jitter draws identical, isolating the vol multiplier.
		return newTestSim(5, mutate).Execute(order, mkt).SlippageBps
	}

	calm := slipAt(5)
	medium := slipAt(30)
	high := slipAt(80)
	require.Greater(t, medium, calm)
	require.Greater(t, high, medium)
	assert.InDelta(t, 1.5, medium/calm, 1e-9)
	assert.InDelta(t, 2.0, high/calm, 1e-9)
}

func TestSlippageBucketsByNotional(t *testing.T) {
	mutate := func(cfg *config.Execution) { cfg.PartialFillProbability = 0 }
	// Deep book keeps the impact multiplier close to one in every bucket.
	mkt := testMarket()
	mkt.BidDepthUSD = 100_000_000
	mkt.AskDepthUSD = 100_000_000

	slipAt := func(notional float64) float64 {
		order := Order{ID: "n", Symbol: "BTCUSDT", Side: Buy, Type: Market, NotionalUSD: notional}
		return newTestSim(5, mutate).Execute(order, mkt).SlippageBps
	}

	small := slipAt(500)
	medium := slipAt(5_000)
	large := slipAt(50_000)
	require.Greater(t, medium, small)
	require.Greater(t, large, medium)
}

func TestExecuteAdvancesVirtualClock(t *testing.T) {
	sim := newTestSim(9, nil)
	mkt := testMarket()

	require.Equal(t, 0.0, sim.ClockMs())
	res := sim.Execute(Order{ID: "c", Symbol: "BTCUSDT", Side: Buy, Type: Market, NotionalUSD: 500}, mkt)
	require.GreaterOrEqual(t, res.LatencyMs, 10.0)
	require.LessOrEqual(t, res.LatencyMs, 150.0)
	require.Equal(t, res.LatencyMs, sim.ClockMs())

	next := sim.Execute(Order{ID: "c2", Symbol: "BTCUSDT", Side: Buy, Type: Market, NotionalUSD: 500}, mkt)
	require.InDelta(t, res.LatencyMs+next.LatencyMs, sim.ClockMs(), 1e-9)
}

func TestExecuteBatchDriftsMid(t *testing.T) {
	sim := newTestSim(13, func(cfg *config.Execution) { cfg.PartialFillProbability = 0 })
	start := testMarket()

	orders := []Order{{ID: "big", Symbol: "BTCUSDT", Side: Buy, Type: Market, NotionalUSD: 100_000}}
	results, after := sim.ExecuteBatch(orders, start)

	require.Len(t, results, 1)
	assert.Greater(t, after.Mid, start.Mid, "buy pressure lifts the mid")
	assert.Less(t, after.AskDepthUSD, start.AskDepthUSD, "buy consumes ask depth")
	assert.Equal(t, start.BidDepthUSD, after.BidDepthUSD, "bid side untouched by a buy")
}

func TestAnalyzeSummarizesCosts(t *testing.T) {
	results := []Result{
		{RequestedUSD: 1_000, FilledUSD: 800, SlippageBps: 4, LatencyMs: 50, FeeUSD: 0.56},
		{RequestedUSD: 1_000, FilledUSD: 1_000, SlippageBps: 2, LatencyMs: 100, FeeUSD: 0.70},
	}

	sum := Analyze(results)
	require.Equal(t, 2, sum.Orders)
	assert.InDelta(t, 0.9, sum.FillRate, 1e-9)
	assert.InDelta(t, 75.0, sum.AvgLatencyMs, 1e-9)
	assert.InDelta(t, 1.26, sum.TotalFeesUSD, 1e-9)
	// (4*800 + 2*1000) / 1800 = 2.888...
	assert.InDelta(t, 5200.0/1800.0, sum.AvgSlippageBps, 1e-9)
	assert.InDelta(t, 5200.0/1800.0+1.26/1800.0*1e4, sum.CostBps, 1e-9)
}

func TestAnalyzeEmpty(t *testing.T) {
	sum := Analyze(nil)
	require.Equal(t, 0, sum.Orders)
	require.Equal(t, 0.0, sum.FillRate)
	require.Equal(t, 0.0, sum.CostBps)
}
