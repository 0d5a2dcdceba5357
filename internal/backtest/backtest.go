// Package backtest replays bar series through the decision kernel and
// execution simulator, producing deterministic run artifacts.
package backtest

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dmeints/Trading-Bot-v2-sub010/internal/config"
	"github.com/dmeints/Trading-Bot-v2-sub010/internal/execution"
	"github.com/dmeints/Trading-Bot-v2-sub010/internal/feature"
	"github.com/dmeints/Trading-Bot-v2-sub010/internal/metrics"
	"github.com/dmeints/Trading-Bot-v2-sub010/internal/risk"
	"github.com/dmeints/Trading-Bot-v2-sub010/internal/scorecard"
	"github.com/dmeints/Trading-Bot-v2-sub010/internal/store"
	"github.com/dmeints/Trading-Bot-v2-sub010/internal/strategy"
	"github.com/dmeints/Trading-Bot-v2-sub010/internal/util"
)

// State is the engine lifecycle phase.
type State string

const (
	StateInit      State = "INIT"
	StateRunning   State = "RUNNING"
	StateCompleted State = "COMPLETED"
	StateFailed    State = "FAILED"
)

// maxProfitFactor stands in for an infinite profit factor on runs without
// losing trades; JSON cannot encode Inf.
const maxProfitFactor = 1000.0

// depthFraction approximates how much of a bar's traded volume rests on
// each side of the book at any instant.
const depthFraction = 0.1

// Metrics aggregates performance over a completed run.
type Metrics struct {
	Trades       int     `json:"trades"`
	Wins         int     `json:"wins"`
	WinRate      float64 `json:"win_rate"`
	TotalReturn  float64 `json:"total_return"`
	Sharpe       float64 `json:"sharpe_ratio"`
	MaxDrawdown  float64 `json:"max_drawdown"`
	ProfitFactor float64 `json:"profit_factor"`
	FinalEquity  float64 `json:"final_equity"`
	AvgScore     float64 `json:"avg_score"`
}

// Result is the in-memory outcome of a run. It is returned to the caller
// even when artifact persistence fails. The config echo and full ledger stay
// out of metrics.json; the manifest carries the config, trades.csv the ledger.
type Result struct {
	RunID        string               `json:"run_id"`
	DatasetID    string               `json:"dataset_id"`
	State        State                `json:"state"`
	Bars         int                  `json:"bars"`
	Metrics      Metrics              `json:"metrics"`
	TCA          execution.TCASummary `json:"tca"`
	ArtifactsDir string               `json:"artifacts_dir,omitempty"`
	Config       *config.Config       `json:"-"`
	Trades       []Trade              `json:"-"`
}

// Engine owns one backtest lifecycle: INIT resolves data, RUNNING steps
// bars strictly in order, a terminal state computes aggregates. Engines are
// not safe for concurrent Run calls.
type Engine struct {
	cfg   *config.Config
	bars  store.BarStore
	log   zerolog.Logger
	state State
}

// NewEngine wires an engine to its configuration and bar source.
func NewEngine(cfg *config.Config, barStore store.BarStore, log zerolog.Logger) *Engine {
	return &Engine{cfg: cfg, bars: barStore, log: log, state: StateInit}
}

// State reports the engine's current lifecycle phase.
func (e *Engine) State() State { return e.state }

type series struct {
	symbol string
	bars   []feature.Bar
	prov   feature.Provenance
}

// Run executes one full backtest. Identical configuration and seed produce
// an identical ledger and metrics; only the run id differs between runs.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	e.state = StateInit
	bt := e.cfg.Backtest
	runID := uuid.NewString()

	arts := openRunArtifacts(bt.ArtifactsDir, runID, e.log)
	defer arts.Close()

	runLog := e.log
	if w := arts.LogWriter(); w != nil {
		runLog = util.NewLoggerTo(w, e.cfg.App.LogLevel)
	}

	res := &Result{RunID: runID, State: StateRunning, ArtifactsDir: arts.Dir(), Config: e.cfg}

	var data []series
	for _, symbol := range bt.Symbols {
		bars, prov, err := e.resolveBars(ctx, symbol)
		if err != nil {
			return e.failRun(res, err)
		}
		data = append(data, series{symbol: symbol, bars: bars, prov: prov})
		res.Bars += len(bars)
	}
	if len(data) > 0 {
		res.DatasetID = data[0].prov.DatasetID
	}
	arts.WriteManifest(Manifest{
		RunID:       runID,
		DatasetID:   res.DatasetID,
		GeneratedAt: time.Now().UTC(),
		Config:      e.cfg,
	})

	e.state = StateRunning
	metrics.BacktestRunsTotal.WithLabelValues(string(StateRunning)).Inc()
	e.log.Info().
		Str("run_id", runID).
		Str("dataset_id", res.DatasetID).
		Int("bars", res.Bars).
		Int64("seed", bt.Seed).
		Msg("backtest running")

	run := &runState{
		cfg:     e.cfg,
		sim:     execution.NewSimulator(e.cfg.Execution, rand.New(rand.NewSource(bt.Seed)), runLog),
		kernel:  strategy.NewKernel(e.cfg.Strategy, risk.NewSizer(e.cfg.Sizing), runLog),
		scorer:  scorecard.NewScorer(e.cfg.Scorecard),
		account: NewAccount(bt.StartingEquity),
		ledger:  NewLedger(0),
		arts:    arts,
		log:     runLog,
	}
	for _, s := range data {
		if err := run.runSymbol(ctx, s); err != nil {
			return e.failRun(res, err)
		}
	}

	e.state = StateCompleted
	res.State = StateCompleted
	res.Trades = run.ledger.Snapshot()
	res.Metrics = computeMetrics(run.account, res.Trades)
	res.TCA = execution.Analyze(run.fills)
	metrics.BacktestRunsTotal.WithLabelValues(string(StateCompleted)).Inc()

	arts.WriteMetrics(res)
	arts.RefreshLatest(bt.ArtifactsDir, res)

	e.log.Info().
		Str("run_id", runID).
		Int("trades", res.Metrics.Trades).
		Float64("total_return", res.Metrics.TotalReturn).
		Float64("sharpe", res.Metrics.Sharpe).
		Float64("max_drawdown", res.Metrics.MaxDrawdown).
		Float64("cost_bps", res.TCA.CostBps).
		Msg("backtest completed")
	return res, nil
}

func (e *Engine) failRun(res *Result, err error) (*Result, error) {
	e.state = StateFailed
	res.State = StateFailed
	metrics.BacktestRunsTotal.WithLabelValues(string(StateFailed)).Inc()
	e.log.Error().Err(err).Str("run_id", res.RunID).Msg("backtest failed")
	return res, err
}

// resolveBars loads the configured window from the store and falls back to
// a seeded synthetic series when the store has nothing, so a run never
// requires external data.
func (e *Engine) resolveBars(ctx context.Context, symbol string) ([]feature.Bar, feature.Provenance, error) {
	bt := e.cfg.Backtest
	from, err := parseRunBound(bt.From)
	if err != nil {
		return nil, feature.Provenance{}, fmt.Errorf("parse from: %w", err)
	}
	to, err := parseRunBound(bt.To)
	if err != nil {
		return nil, feature.Provenance{}, fmt.Errorf("parse to: %w", err)
	}

	bars, err := e.bars.Range(ctx, symbol, bt.Timeframe, from, to)
	if err != nil {
		return nil, feature.Provenance{}, fmt.Errorf("load bars for %s: %w", symbol, err)
	}
	if len(bars) > 0 {
		prov := feature.Provenance{
			DatasetID:   fmt.Sprintf("store-%s-%s", symbol, bt.Timeframe),
			GeneratedAt: time.Now().UTC(),
		}
		return bars, prov, nil
	}

	e.log.Info().Str("symbol", symbol).Int("bars", bt.SyntheticBars).Msg("no stored bars, generating synthetic series")
	synth, prov := store.Synthetic(symbol, bt.Timeframe, bt.SyntheticBars, bt.Seed)
	return synth, prov, nil
}

func parseRunBound(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}

// runState carries everything shared across symbols within one run: the
// account and pacing state are account-level, not per-symbol.
type runState struct {
	cfg     *config.Config
	sim     *execution.Simulator
	kernel  *strategy.Kernel
	scorer  *scorecard.Scorer
	account *Account
	ledger  *Ledger
	arts    *runArtifacts
	log     zerolog.Logger

	scores        []scorecard.TradeScore
	fills         []execution.Result
	orderSeq      int
	lastEntry     time.Time
	recentEntries []time.Time
}

func (r *runState) runSymbol(ctx context.Context, s series) error {
	bt := r.cfg.Backtest
	builder := feature.NewBuilder(s.symbol, bt.FeatureWindow, s.prov)
	blockedUntil := -1

	for i, bar := range s.bars {
		if err := ctx.Err(); err != nil {
			return err
		}
		snap := builder.Push(bar)
		if snap == nil || !builder.Ready() {
			continue
		}
		// Entries on the final bar have no bars left to manage brackets on.
		if i <= blockedUntil || i+1 >= len(s.bars) {
			continue
		}

		score7d := scorecard.Score7Day(r.scores, bar.Ts)
		act := r.kernel.Decide(snap, nil, score7d)
		metrics.DecisionsTotal.WithLabelValues(s.symbol, act.Kind.String(), act.Label()).Inc()
		if !act.Entry() {
			continue
		}
		if guard := r.paced(bar.Ts); guard != "" {
			metrics.EntriesPacedTotal.WithLabelValues(s.symbol, guard).Inc()
			r.log.Debug().Str("symbol", s.symbol).Str("guard", guard).Time("ts", bar.Ts).Msg("entry paced")
			continue
		}

		blockedUntil = r.executeTrade(s, i, snap, act)
	}
	return nil
}

// paced names the guard suppressing this entry, or "" when clear.
func (r *runState) paced(now time.Time) string {
	bt := r.cfg.Backtest
	if bt.MinInterTradeSec > 0 && !r.lastEntry.IsZero() &&
		now.Sub(r.lastEntry) < time.Duration(bt.MinInterTradeSec)*time.Second {
		return "spacing"
	}
	if bt.BurstCapPerMin > 0 {
		cutoff := now.Add(-time.Minute)
		n := 0
		for _, ts := range r.recentEntries {
			if ts.After(cutoff) {
				n++
			}
		}
		if n >= bt.BurstCapPerMin {
			return "burst"
		}
	}
	return ""
}

func (r *runState) markEntry(now time.Time) {
	r.lastEntry = now
	cutoff := now.Add(-time.Minute)
	kept := r.recentEntries[:0]
	for _, ts := range r.recentEntries {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	r.recentEntries = append(kept, now)
}

// executeTrade fills the entry, walks the bracket to an exit, books the
// round trip and returns the exit bar index. Entries are long; the position
// flattens on take-profit, stop or timeout, whichever a bar touches first,
// with the stop checked before the profit target inside a bar.
func (r *runState) executeTrade(s series, entryIdx int, snap *feature.Snapshot, act strategy.Action) int {
	bt := r.cfg.Backtest
	entryBar := s.bars[entryIdx]
	equity := r.account.Equity()
	notional := equity * act.SizePct / 100
	if notional <= 0 {
		return entryIdx
	}

	r.orderSeq++
	entryMkt := marketStateFor(entryBar, snap)
	entryFill := r.sim.Execute(execution.Order{
		ID:          fmt.Sprintf("ord-%06d", r.orderSeq),
		Symbol:      s.symbol,
		Side:        execution.Buy,
		Type:        orderTypeFor(act.Kind),
		NotionalUSD: notional,
		LimitPrice:  act.Price,
	}, entryMkt)
	r.fills = append(r.fills, entryFill)
	r.markEntry(entryBar.Ts)

	entryPx := entryFill.AvgFillPrice
	qty := entryFill.FilledUSD / entryPx
	tpPx := entryPx * (1 + act.TPBps/1e4)
	slPx := entryPx * (1 - act.SLBps/1e4)

	last := entryIdx + bt.TimeoutBars
	if last > len(s.bars)-1 {
		last = len(s.bars) - 1
	}

	exitIdx, exitMid, exitKind := last, s.bars[last].Close, exitTimeout
	var mfeBps, maeBps float64
	for j := entryIdx + 1; j <= last; j++ {
		b := s.bars[j]
		if up := (b.High - entryPx) / entryPx * 1e4; up > mfeBps {
			mfeBps = up
		}
		if down := (entryPx - b.Low) / entryPx * 1e4; down > maeBps {
			maeBps = down
		}
		if b.Low <= slPx {
			exitIdx, exitMid, exitKind = j, slPx, exitStopLoss
			break
		}
		if b.High >= tpPx {
			exitIdx, exitMid, exitKind = j, tpPx, exitTakeProfit
			break
		}
	}

	r.orderSeq++
	exitMkt := marketStateFor(s.bars[exitIdx], snap)
	exitMkt.Mid = exitMid
	exitFill := r.sim.Execute(execution.Order{
		ID:          fmt.Sprintf("ord-%06d", r.orderSeq),
		Symbol:      s.symbol,
		Side:        execution.Sell,
		Type:        execution.Market,
		NotionalUSD: qty * exitMid,
	}, exitMkt)
	r.fills = append(r.fills, exitFill)

	exitPx := exitFill.AvgFillPrice
	exitFee := exitFill.FeeUSD
	if exitFill.Partial && exitFill.FilledUSD > 0 {
		// Exits always flatten; a partial exit re-fills at the same price.
		exitFee = exitFill.FeeUSD * (qty * exitPx) / exitFill.FilledUSD
	}

	feesUSD := entryFill.FeeUSD + exitFee
	netUSD := (exitPx-entryPx)*qty - feesUSD

	postExit, hasPost := 0.0, exitIdx+1 < len(s.bars)
	if hasPost {
		postExit = (s.bars[exitIdx+1].Close - exitPx) / exitPx * 1e4
	}

	score := r.scorer.Score(scorecard.TradeSnapshot{
		Symbol:         s.symbol,
		EntryTs:        entryBar.Ts,
		ExitTs:         s.bars[exitIdx].Ts,
		EntryPx:        entryPx,
		ExitPx:         exitPx,
		Qty:            qty,
		EquityAtEntry:  equity,
		FeeBps:         feesUSD / entryFill.FilledUSD * 1e4,
		SlippageBps:    entryFill.SlippageBps + exitFill.SlippageBps,
		AckMs:          entryFill.LatencyMs,
		MFEBps:         mfeBps,
		MAEBps:         maeBps,
		SLBps:          act.SLBps,
		PostExitMidBps: postExit,
		HasPostExitMid: hasPost,
	}, feature.Provenance{
		DatasetID:   s.prov.DatasetID,
		Commit:      s.prov.Commit,
		GeneratedAt: s.bars[exitIdx].Ts,
	})
	r.scores = append(r.scores, score)
	r.account.Apply(netUSD)

	trade := Trade{
		Symbol:   s.symbol,
		Tag:      act.Tag,
		EntryTs:  entryBar.Ts,
		ExitTs:   s.bars[exitIdx].Ts,
		EntryPx:  entryPx,
		ExitPx:   exitPx,
		Qty:      qty,
		FeesUSD:  feesUSD,
		PnlUSD:   netUSD,
		Score:    score.Total,
		ExitKind: exitKind,
	}
	r.ledger.Append(trade)
	r.arts.AppendTrade(trade)
	r.log.Info().
		Str("symbol", s.symbol).
		Str("tag", act.Tag).
		Str("exit", exitKind).
		Int("holding_bars", exitIdx-entryIdx).
		Float64("pnl_usd", netUSD).
		Float64("score", score.Total).
		Msg("closed trade")

	return exitIdx
}

func orderTypeFor(kind strategy.Kind) execution.OrderType {
	if kind == strategy.EnterLimitMaker {
		return execution.Limit
	}
	return execution.Market
}

func marketStateFor(bar feature.Bar, snap *feature.Snapshot) execution.MarketState {
	depth := bar.Volume * bar.Close * depthFraction
	return execution.MarketState{
		Mid:         bar.Close,
		SpreadBps:   snap.SpreadBps(),
		VolBps:      snap.MicroVol(),
		BidDepthUSD: depth,
		AskDepthUSD: depth,
	}
}

func computeMetrics(account *Account, trades []Trade) Metrics {
	m := Metrics{
		Trades:      len(trades),
		FinalEquity: account.Equity(),
		MaxDrawdown: account.MaxDrawdown(),
		TotalReturn: account.TotalReturn(),
	}
	if len(trades) == 0 {
		return m
	}

	var grossProfit, grossLoss, scoreSum float64
	for _, tr := range trades {
		scoreSum += tr.Score
		if tr.PnlUSD > 0 {
			m.Wins++
			grossProfit += tr.PnlUSD
		} else {
			grossLoss -= tr.PnlUSD
		}
	}
	m.WinRate = float64(m.Wins) / float64(len(trades))
	m.AvgScore = scoreSum / float64(len(trades))
	switch {
	case grossLoss > 0:
		m.ProfitFactor = grossProfit / grossLoss
	case grossProfit > 0:
		m.ProfitFactor = maxProfitFactor
	}
	m.Sharpe = sharpe(account.Returns())
	return m
}

// sharpe is mean over stddev of period returns, 0 when the series is empty
// or flat.
func sharpe(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	var varSum float64
	for _, r := range returns {
		d := r - mean
		varSum += d * d
	}
	std := math.Sqrt(varSum / float64(len(returns)))
	if std == 0 {
		return 0
	}
	return mean / std
}
