// Package cli wires the decisioncore command tree: backtests, labeling
// batches and bar imports over one shared configuration surface.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dmeints/Trading-Bot-v2-sub010/internal/backtest"
	"github.com/dmeints/Trading-Bot-v2-sub010/internal/config"
	"github.com/dmeints/Trading-Bot-v2-sub010/internal/feature"
	"github.com/dmeints/Trading-Bot-v2-sub010/internal/labeler"
	"github.com/dmeints/Trading-Bot-v2-sub010/internal/metrics"
	"github.com/dmeints/Trading-Bot-v2-sub010/internal/store"
	"github.com/dmeints/Trading-Bot-v2-sub010/internal/util"
)

// version is stamped by the build; "dev" for local builds.
var version = "dev"

// NewRootCmd builds the decisioncore command tree.
func NewRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "decisioncore",
		Short: "Quantitative trading decision core",
		Long: `decisioncore routes bar data through the strategy kernel, risk sizer and
execution simulator. It runs deterministic backtests, produces triple-barrier
training labels and imports OHLCV history into the bar store.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file (built-in defaults when empty)")

	root.AddCommand(newBacktestCmd(&configPath))
	root.AddCommand(newLabelCmd(&configPath))
	root.AddCommand(newImportCmd(&configPath))
	root.AddCommand(newVersionCmd())
	return root
}

// loadConfig hydrates configuration from the optional .env file, the YAML
// file when given, then environment overrides, in that order.
func loadConfig(path string) (*config.Config, error) {
	_ = godotenv.Load() // best-effort
	cfg := config.Default()
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *config.Config) {
	if v := os.Getenv("DECISIONCORE_LOG_LEVEL"); v != "" {
		cfg.App.LogLevel = v
	}
	if v := os.Getenv("DECISIONCORE_METRICS_ADDR"); v != "" {
		cfg.App.MetricsAddr = v
	}
	if v := os.Getenv("DECISIONCORE_ARTIFACTS_DIR"); v != "" {
		cfg.Backtest.ArtifactsDir = v
	}
	if v := os.Getenv("DECISIONCORE_SQLITE_PATH"); v != "" {
		cfg.Store.SQLitePath = v
	}
}

func bootstrap(path string) (*config.Config, zerolog.Logger, error) {
	cfg, err := loadConfig(path)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	log := util.NewLogger(cfg.App.LogLevel)
	if cfg.App.MetricsAddr != "" {
		_ = metrics.Serve(cfg.App.MetricsAddr)
		log.Info().Str("addr", cfg.App.MetricsAddr).Msg("metrics up")
	}
	return cfg, log, nil
}

// openStore selects the bar backend from config. The caller runs the
// returned closer when done.
func openStore(cfg *config.Config) (store.BarStore, func() error, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		s, err := store.OpenSQLite(cfg.Store.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case "", "memory":
		return store.NewMemoryStore(), func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// applyWindowFlags folds the shared symbol/range overrides into config.
func applyWindowFlags(cmd *cobra.Command, cfg *config.Config) {
	if symbols, _ := cmd.Flags().GetStringSlice("symbols"); len(symbols) > 0 {
		cfg.Backtest.Symbols = symbols
	}
	if tf, _ := cmd.Flags().GetString("timeframe"); tf != "" {
		cfg.Backtest.Timeframe = tf
	}
	if from, _ := cmd.Flags().GetString("from"); from != "" {
		cfg.Backtest.From = from
	}
	if to, _ := cmd.Flags().GetString("to"); to != "" {
		cfg.Backtest.To = to
	}
}

func addWindowFlags(cmd *cobra.Command) {
	cmd.Flags().StringSlice("symbols", nil, "override configured symbols")
	cmd.Flags().String("timeframe", "", "override the bar timeframe")
	cmd.Flags().String("from", "", "range start, RFC3339 (open when empty)")
	cmd.Flags().String("to", "", "range end, RFC3339 (open when empty)")
}

func newBacktestCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Replay bars through the decision kernel and write run artifacts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := bootstrap(*configPath)
			if err != nil {
				return err
			}
			applyWindowFlags(cmd, cfg)
			if cmd.Flags().Changed("seed") {
				cfg.Backtest.Seed, _ = cmd.Flags().GetInt64("seed")
			}
			if cmd.Flags().Changed("bars") {
				cfg.Backtest.SyntheticBars, _ = cmd.Flags().GetInt("bars")
			}
			if dir, _ := cmd.Flags().GetString("artifacts"); dir != "" {
				cfg.Backtest.ArtifactsDir = dir
			}

			barStore, closeStore, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = closeStore() }()

			ctx, cancel := ossignal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			res, err := backtest.NewEngine(cfg, barStore, log).Run(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	addWindowFlags(cmd)
	cmd.Flags().Int64("seed", 0, "override the deterministic seed")
	cmd.Flags().Int("bars", 0, "override the synthetic bar count")
	cmd.Flags().String("artifacts", "", "override the artifacts root directory")
	return cmd
}

// labelReport is the per-symbol output of the label command. Labels ride
// only in the --out file; the stdout report stays small.
type labelReport struct {
	Summary labeler.Summary `json:"summary"`
	Weights map[int]float64 `json:"class_weights"`
	Labels  []labeler.Label `json:"labels,omitempty"`
}

func parseBound(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}

func newLabelCmd(configPath *string) *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "label",
		Short: "Produce triple-barrier labels and class weights for stored bars",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := bootstrap(*configPath)
			if err != nil {
				return err
			}
			applyWindowFlags(cmd, cfg)
			bt := cfg.Backtest
			from, err := parseBound(bt.From)
			if err != nil {
				return fmt.Errorf("parse from: %w", err)
			}
			to, err := parseBound(bt.To)
			if err != nil {
				return fmt.Errorf("parse to: %w", err)
			}

			barStore, closeStore, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = closeStore() }()

			ctx, cancel := ossignal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			fetch := func(ctx context.Context, symbol string) ([]feature.Bar, error) {
				bars, err := barStore.Range(ctx, symbol, bt.Timeframe, from, to)
				if err != nil {
					return nil, err
				}
				if len(bars) > 0 {
					return bars, nil
				}
				synth, _ := store.Synthetic(symbol, bt.Timeframe, bt.SyntheticBars, bt.Seed)
				return synth, nil
			}

			bySymbol, err := labeler.NewLabeler(cfg.Labeler, log).LabelAll(ctx, bt.Symbols, fetch)
			if err != nil {
				return err
			}

			report := make(map[string]labelReport, len(bySymbol))
			for symbol, labels := range bySymbol {
				report[symbol] = labelReport{
					Summary: labeler.Summarize(labels),
					Weights: labeler.ClassWeights(labels),
				}
			}
			if outPath != "" {
				full := make(map[string]labelReport, len(bySymbol))
				for symbol, labels := range bySymbol {
					r := report[symbol]
					r.Labels = labels
					full[symbol] = r
				}
				if err := writeJSONFile(outPath, full); err != nil {
					return err
				}
				log.Info().Str("path", outPath).Msg("wrote labels")
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	}
	addWindowFlags(cmd)
	cmd.Flags().StringVar(&outPath, "out", "", "write labels with the report to this JSON file")
	return cmd
}

func newImportCmd(configPath *string) *cobra.Command {
	var symbol, timeframe string

	cmd := &cobra.Command{
		Use:   "import <bars.csv> [more.csv ...]",
		Short: "Load OHLCV bars from CSV files into the configured store",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := bootstrap(*configPath)
			if err != nil {
				return err
			}
			if timeframe == "" {
				timeframe = cfg.Backtest.Timeframe
			}

			barStore, closeStore, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = closeStore() }()
			if cfg.Store.Driver != "sqlite" {
				log.Warn().Msg("memory store selected, imported bars do not outlive this process")
			}

			for _, path := range args {
				bars, err := store.ReadCSV(path)
				if err != nil {
					return fmt.Errorf("read %s: %w", path, err)
				}
				if err := barStore.Put(cmd.Context(), symbol, timeframe, bars); err != nil {
					return fmt.Errorf("store %s: %w", path, err)
				}
				log.Info().
					Str("symbol", symbol).
					Str("timeframe", timeframe).
					Int("bars", len(bars)).
					Str("file", path).
					Msg("imported bars")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&symbol, "symbol", "", "symbol the files belong to")
	cmd.Flags().StringVar(&timeframe, "timeframe", "", "bar timeframe (backtest timeframe when empty)")
	_ = cmd.MarkFlagRequired("symbol")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "decisioncore %s\n", version)
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeJSONFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
