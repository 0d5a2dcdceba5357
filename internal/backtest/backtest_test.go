package backtest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/dmeints/Trading-Bot-v2-sub010/internal/config"
	"github.com/dmeints/Trading-Bot-v2-sub010/internal/store"
)

func testConfig(t *testing.T, bars int) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Backtest.SyntheticBars = bars
	cfg.Backtest.ArtifactsDir = t.TempDir()
	return cfg
}

func TestRunZeroTradesStillCompletes(t *testing.T) {
	cfg := testConfig(t, 300)
	cfg.Strategy.CostCapBps = 0 // every entry blocked at the cost gate

	eng := NewEngine(cfg, store.NewMemoryStore(), zerolog.Nop())
	res, err := eng.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, StateCompleted, res.State)
	require.Equal(t, StateCompleted, eng.State())
	require.Equal(t, "synthetic-42", res.DatasetID)
	require.Equal(t, 300, res.Bars)
	require.Same(t, cfg, res.Config)

	require.Equal(t, 0, res.Metrics.Trades)
	require.Zero(t, res.Metrics.WinRate)
	require.Zero(t, res.Metrics.ProfitFactor)
	require.Zero(t, res.Metrics.Sharpe)
	require.Zero(t, res.Metrics.MaxDrawdown)
	require.Equal(t, cfg.Backtest.StartingEquity, res.Metrics.FinalEquity)
	require.Empty(t, res.Trades)
}

func TestRunWritesArtifacts(t *testing.T) {
	cfg := testConfig(t, 300)
	cfg.Strategy.CostCapBps = 0

	eng := NewEngine(cfg, store.NewMemoryStore(), zerolog.Nop())
	res, err := eng.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, filepath.Join(cfg.Backtest.ArtifactsDir, res.RunID), res.ArtifactsDir)
	for _, name := range []string{"manifest.json", "metrics.json", "trades.csv", "logs.ndjson"} {
		_, statErr := os.Stat(filepath.Join(res.ArtifactsDir, name))
		require.NoError(t, statErr, name)
	}

	trades, err := os.ReadFile(filepath.Join(res.ArtifactsDir, "trades.csv"))
	require.NoError(t, err)
	require.Equal(t, "timestamp,action,price,size,pnl,score\n", string(trades))

	_, err = os.Stat(filepath.Join(cfg.Backtest.ArtifactsDir, "latest", "metrics.json"))
	require.NoError(t, err)
}

func TestRunDisabledArtifacts(t *testing.T) {
	cfg := testConfig(t, 300)
	cfg.Backtest.ArtifactsDir = ""

	eng := NewEngine(cfg, store.NewMemoryStore(), zerolog.Nop())
	res, err := eng.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, StateCompleted, res.State)
	require.Empty(t, res.ArtifactsDir)
}

func TestRunSameSeedSameLedger(t *testing.T) {
	run := func() *Result {
		cfg := testConfig(t, 600)
		eng := NewEngine(cfg, store.NewMemoryStore(), zerolog.Nop())
		res, err := eng.Run(context.Background())
		require.NoError(t, err)
		require.Equal(t, StateCompleted, res.State)
		return res
	}

	first, second := run(), run()
	require.NotEqual(t, first.RunID, second.RunID)
	require.Equal(t, first.DatasetID, second.DatasetID)
	require.Equal(t, first.Trades, second.Trades)
	require.Equal(t, first.Metrics, second.Metrics)
	require.Equal(t, first.TCA, second.TCA)
}

func TestRunCancelledContextFails(t *testing.T) {
	cfg := testConfig(t, 300)
	eng := NewEngine(cfg, store.NewMemoryStore(), zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := eng.Run(ctx)
	require.Error(t, err)
	require.Equal(t, StateFailed, res.State)
	require.Equal(t, StateFailed, eng.State())
}

func TestRunUsesStoredBars(t *testing.T) {
	cfg := testConfig(t, 0)
	ms := store.NewMemoryStore()
	bars, _ := store.Synthetic("BTCUSDT", "5m", 200, 7)
	require.NoError(t, ms.Put(context.Background(), "BTCUSDT", "5m", bars))

	eng := NewEngine(cfg, ms, zerolog.Nop())
	res, err := eng.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 200, res.Bars)
	require.Equal(t, "store-BTCUSDT-5m", res.DatasetID)
}

func TestRunBadFromBoundFails(t *testing.T) {
	cfg := testConfig(t, 300)
	cfg.Backtest.From = "not-a-timestamp"

	eng := NewEngine(cfg, store.NewMemoryStore(), zerolog.Nop())
	res, err := eng.Run(context.Background())
	require.Error(t, err)
	require.Equal(t, StateFailed, res.State)
}

func TestPacedGuards(t *testing.T) {
	cfg := config.Default()
	cfg.Backtest.MinInterTradeSec = 1
	cfg.Backtest.BurstCapPerMin = 3
	r := &runState{cfg: cfg}
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	require.Equal(t, "", r.paced(base))
	r.markEntry(base)
	require.Equal(t, "spacing", r.paced(base.Add(500*time.Millisecond)))
	require.Equal(t, "", r.paced(base.Add(2*time.Second)))

	r.markEntry(base.Add(2 * time.Second))
	r.markEntry(base.Add(4 * time.Second))
	require.Equal(t, "burst", r.paced(base.Add(6*time.Second)))

	// The burst window is trailing: a minute later all three entries age out.
	require.Equal(t, "", r.paced(base.Add(65*time.Second)))
}

func TestComputeMetrics(t *testing.T) {
	account := NewAccount(10_000)
	account.Apply(100)
	account.Apply(-50)
	trades := []Trade{
		{PnlUSD: 100, Score: 2},
		{PnlUSD: -50, Score: -1},
	}

	m := computeMetrics(account, trades)
	require.Equal(t, 2, m.Trades)
	require.Equal(t, 1, m.Wins)
	require.InDelta(t, 0.5, m.WinRate, 1e-12)
	require.InDelta(t, 2.0, m.ProfitFactor, 1e-12)
	require.InDelta(t, 0.5, m.AvgScore, 1e-12)
	require.InDelta(t, 10_050, m.FinalEquity, 1e-9)
	require.InDelta(t, 0.005, m.TotalReturn, 1e-12)
	require.InDelta(t, 50.0/10_100.0, m.MaxDrawdown, 1e-12)
	require.InDelta(t, 51.0/151.0, m.Sharpe, 1e-12)
}

func TestComputeMetricsNoLosersClampsProfitFactor(t *testing.T) {
	account := NewAccount(1_000)
	account.Apply(10)
	m := computeMetrics(account, []Trade{{PnlUSD: 10}})
	require.Equal(t, maxProfitFactor, m.ProfitFactor)
	require.Zero(t, m.Sharpe) // single period, no dispersion
}

func TestSharpe(t *testing.T) {
	require.Zero(t, sharpe(nil))
	require.Zero(t, sharpe([]float64{0.01, 0.01}))
	require.InDelta(t, 2.0, sharpe([]float64{0.01, 0.03}), 1e-12)
}
