// Package config exposes strongly typed application configuration structs loaded from YAML.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// App captures process-wide runtime settings such as name, metrics address, and logging level.
type App struct {
	Name        string
	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`
}

// Brackets holds the take-profit and stop-loss distances attached to an entry.
type Brackets struct {
	TPBps float64 `yaml:"tp_bps"`
	SLBps float64 `yaml:"sl_bps"`
}

// Strategy groups the decision-kernel thresholds and per-strategy brackets.
type Strategy struct {
	TakerBps         float64  `yaml:"taker_bps"`
	CostCapBps       float64  `yaml:"cost_cap_bps"`
	VolPctBreakout   float64  `yaml:"vol_pct_breakout"`
	VolPctMeanRevert float64  `yaml:"vol_pct_mean_revert"`
	SocialGo         float64  `yaml:"social_go"`
	NewsMaxRiskPct   float64  `yaml:"news_max_risk_pct"`
	Breakout         Brackets `yaml:"breakout"`
	MeanRevert       Brackets `yaml:"mean_revert"`
	News             Brackets `yaml:"news"`
}

// Kelly tunes the tempered-Kelly fraction used by the sizer.
type Kelly struct {
	Temper      float64            `yaml:"temper"`
	MinFraction float64            `yaml:"min_fraction"`
	MaxFraction float64            `yaml:"max_fraction"`
	EdgeBps     map[string]float64 `yaml:"edge_bps"`
}

// Sizing encodes how much equity a single entry may risk.
type Sizing struct {
	BaseRiskPct       float64 `yaml:"base_risk_pct"`
	PerSymbolCapPct   float64 `yaml:"per_symbol_cap_pct"`
	VarianceTargetBps float64 `yaml:"variance_target_bps"`
	Kelly             Kelly   `yaml:"kelly"`
}

// Scorecard holds the penalty coefficients of the eight-term trade score.
type Scorecard struct {
	LatencyPenaltyPerSec    float64 `yaml:"latency_penalty_per_sec"`
	DrawdownPenaltyPerBp    float64 `yaml:"drawdown_penalty_per_bp"`
	OpportunityPenaltyPerBp float64 `yaml:"opportunity_penalty_per_bp"`
	ChurnPenalty            float64 `yaml:"churn_penalty"`
	MinHoldSecs             float64 `yaml:"min_hold_secs"`
	TinyPnlBps              float64 `yaml:"tiny_pnl_bps"`
	ToxicityPenalty         float64 `yaml:"toxicity_penalty"`
	ToxicityThresholdBps    float64 `yaml:"toxicity_threshold_bps"`
}

// Labeler configures the triple-barrier labeling batch.
type Labeler struct {
	ProfitMult     float64 `yaml:"profit_mult"`
	StopMult       float64 `yaml:"stop_mult"`
	MaxHoldingBars int     `yaml:"max_holding_bars"`
	MinReturnBps   float64 `yaml:"min_return_bps"`
	MinConfidence  float64 `yaml:"min_confidence"`
	VolWindow      int     `yaml:"vol_window"`
	Workers        int     `yaml:"workers"`
}

// SlippageBucket maps a notional ceiling to its base slippage; a zero ceiling
// marks the catch-all bucket.
type SlippageBucket struct {
	MaxNotionalUSD float64 `yaml:"max_notional_usd"`
	Bps            float64 `yaml:"bps"`
}

// Execution tunes the simulated order path: latency, slippage, fills, fees.
type Execution struct {
	LatencyMinMs           int              `yaml:"latency_min_ms"`
	LatencyMaxMs           int              `yaml:"latency_max_ms"`
	Buckets                []SlippageBucket `yaml:"buckets"`
	VolMediumBps           float64          `yaml:"vol_medium_bps"`
	VolHighBps             float64          `yaml:"vol_high_bps"`
	SpreadNormBps          float64          `yaml:"spread_norm_bps"`
	MakerBps               float64          `yaml:"maker_bps"`
	TakerBps               float64          `yaml:"taker_bps"`
	MakerFillProbability   float64          `yaml:"maker_fill_probability"`
	PartialFillProbability float64          `yaml:"partial_fill_probability"`
}

// Backtest drives the orchestrator: instrument set, window, determinism knobs.
type Backtest struct {
	Symbols          []string `yaml:"symbols"`
	Timeframe        string   `yaml:"timeframe"`
	From             string   `yaml:"from"`
	To               string   `yaml:"to"`
	StartingEquity   float64  `yaml:"starting_equity"`
	SyntheticBars    int      `yaml:"synthetic_bars"`
	Seed             int64    `yaml:"seed"`
	ArtifactsDir     string   `yaml:"artifacts_dir"`
	FeatureWindow    int      `yaml:"feature_window"`
	TimeoutBars      int      `yaml:"timeout_bars"`
	MinInterTradeSec int      `yaml:"min_inter_trade_sec"`
	BurstCapPerMin   int      `yaml:"burst_cap_per_min"`
}

// Store selects the bar storage backend.
type Store struct {
	Driver     string `yaml:"driver"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Config collects every configuration leaf for easy marshaling from YAML.
type Config struct {
	App       App       `yaml:"app"`
	Strategy  Strategy  `yaml:"strategy"`
	Sizing    Sizing    `yaml:"sizing"`
	Scorecard Scorecard `yaml:"scorecard"`
	Labeler   Labeler   `yaml:"labeler"`
	Execution Execution `yaml:"execution"`
	Backtest  Backtest  `yaml:"backtest"`
	Store     Store     `yaml:"store"`
}

// Default returns a Config populated with subsystem defaults, so a file that
// omits a section tunes nothing rather than zeroing thresholds.
func Default() *Config {
	return &Config{
		App: App{Name: "decisioncore", LogLevel: "info"},
		Strategy: Strategy{
			TakerBps:         7,
			CostCapBps:       8,
			VolPctBreakout:   70,
			VolPctMeanRevert: 40,
			SocialGo:         0.75,
			NewsMaxRiskPct:   0.5,
			Breakout:         Brackets{TPBps: 10, SLBps: 6},
			MeanRevert:       Brackets{TPBps: 8, SLBps: 5},
			News:             Brackets{TPBps: 12, SLBps: 8},
		},
		Sizing: Sizing{
			BaseRiskPct:       0.5,
			PerSymbolCapPct:   2.0,
			VarianceTargetBps: 20,
			Kelly: Kelly{
				Temper:      0.25,
				MinFraction: 0.1,
				MaxFraction: 1.0,
				EdgeBps: map[string]float64{
					"breakout":    60,
					"mean_revert": 40,
					"news":        50,
				},
			},
		},
		Scorecard: Scorecard{
			LatencyPenaltyPerSec:    0.01,
			DrawdownPenaltyPerBp:    0.1,
			OpportunityPenaltyPerBp: 0.05,
			ChurnPenalty:            -5,
			MinHoldSecs:             30,
			TinyPnlBps:              5,
			ToxicityPenalty:         -8,
			ToxicityThresholdBps:    20,
		},
		Labeler: Labeler{
			ProfitMult:     2.0,
			StopMult:       1.0,
			MaxHoldingBars: 100,
			MinReturnBps:   5,
			MinConfidence:  0.6,
			VolWindow:      20,
			Workers:        4,
		},
		Execution: Execution{
			LatencyMinMs: 10,
			LatencyMaxMs: 150,
			Buckets: []SlippageBucket{
				{MaxNotionalUSD: 1_000, Bps: 2},
				{MaxNotionalUSD: 10_000, Bps: 5},
				{MaxNotionalUSD: 0, Bps: 12},
			},
			VolMediumBps:           20,
			VolHighBps:             50,
			SpreadNormBps:          10,
			MakerBps:               2,
			TakerBps:               7,
			MakerFillProbability:   0.6,
			PartialFillProbability: 0.3,
		},
		Backtest: Backtest{
			Symbols:          []string{"BTCUSDT"},
			Timeframe:        "5m",
			StartingEquity:   10_000,
			SyntheticBars:    2_000,
			Seed:             42,
			ArtifactsDir:     "artifacts",
			FeatureWindow:    64,
			TimeoutBars:      30,
			MinInterTradeSec: 20,
			BurstCapPerMin:   3,
		},
		Store: Store{Driver: "memory", SQLitePath: "bars.db"},
	}
}

// Load reads a YAML file from disk and hydrates a Config over the defaults.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	config := Default()
	if err := yaml.NewDecoder(file).Decode(config); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Save persists a Config struct to disk as YAML.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Validate rejects settings the subsystems cannot run with.
func (c *Config) Validate() error {
	if c.Sizing.BaseRiskPct < 0 || c.Sizing.PerSymbolCapPct < 0 {
		return fmt.Errorf("sizing: risk percentages must be non-negative")
	}
	if c.Sizing.Kelly.MinFraction > c.Sizing.Kelly.MaxFraction {
		return fmt.Errorf("sizing: kelly min_fraction %.2f exceeds max_fraction %.2f",
			c.Sizing.Kelly.MinFraction, c.Sizing.Kelly.MaxFraction)
	}
	if c.Execution.LatencyMinMs > c.Execution.LatencyMaxMs {
		return fmt.Errorf("execution: latency_min_ms %d exceeds latency_max_ms %d",
			c.Execution.LatencyMinMs, c.Execution.LatencyMaxMs)
	}
	if p := c.Execution.PartialFillProbability; p < 0 || p > 1 {
		return fmt.Errorf("execution: partial_fill_probability %.2f outside [0,1]", p)
	}
	if p := c.Execution.MakerFillProbability; p < 0 || p > 1 {
		return fmt.Errorf("execution: maker_fill_probability %.2f outside [0,1]", p)
	}
	if c.Labeler.MaxHoldingBars < 1 {
		return fmt.Errorf("labeler: max_holding_bars must be at least 1")
	}
	if c.Backtest.StartingEquity <= 0 {
		return fmt.Errorf("backtest: starting_equity must be positive")
	}
	return nil
}

// EdgeBpsFor returns the configured edge estimate for a strategy tag, 0 when unknown.
func (s *Sizing) EdgeBpsFor(tag string) float64 {
	if s.Kelly.EdgeBps == nil {
		return 0
	}
	return s.Kelly.EdgeBps[tag]
}
