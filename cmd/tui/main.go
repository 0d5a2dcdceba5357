// Binary tui is an interactive console for inspecting and editing
// decisioncore configuration, launching backtests and reviewing the most
// recent run.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dmeints/Trading-Bot-v2-sub010/internal/config"
)

const defaultConfigPath = "config.yaml"

func main() {
	reader := bufio.NewReader(os.Stdin)

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	for {
		fmt.Println("\n=== Decision Core Control ===")
		fmt.Println("1) Show configuration summary")
		fmt.Println("2) Edit strategy gates")
		fmt.Println("3) Edit backtest settings")
		fmt.Println("4) Save config")
		fmt.Println("5) Run backtest")
		fmt.Println("6) Reload config from disk")
		fmt.Println("7) Show last run metrics")
		fmt.Println("0) Exit")
		fmt.Print("Select option: ")

		input, _ := reader.ReadString('\n')
		choice := strings.TrimSpace(input)

		switch choice {
		case "1":
			printSummary(cfg)
		case "2":
			editStrategy(reader, cfg)
		case "3":
			editBacktest(reader, cfg)
		case "4":
			if err := config.Save(defaultConfigPath, cfg); err != nil {
				fmt.Fprintf(os.Stderr, "save failed: %v\n", err)
			} else {
				fmt.Println("config saved to", defaultConfigPath)
			}
		case "5":
			runBacktest(reader)
		case "6":
			reloaded, err := loadConfig()
			if err != nil {
				fmt.Fprintf(os.Stderr, "reload failed: %v\n", err)
			} else {
				cfg = reloaded
				fmt.Println("config reloaded")
			}
		case "7":
			showLastRun(cfg)
		case "0":
			return
		default:
			fmt.Println("unknown option")
		}
	}
}

func printSummary(cfg *config.Config) {
	fmt.Println("\n--- Configuration Summary ---")
	fmt.Printf("Cost cap: %.1f bps | taker fee: %.1f bps\n", cfg.Strategy.CostCapBps, cfg.Strategy.TakerBps)
	fmt.Printf("Breakout above vol pct %.0f | mean-revert below %.0f | social go %.2f\n",
		cfg.Strategy.VolPctBreakout, cfg.Strategy.VolPctMeanRevert, cfg.Strategy.SocialGo)
	fmt.Printf("Base risk: %.2f%% of equity | per-symbol cap: %.2f%% | kelly temper %.2f\n",
		cfg.Sizing.BaseRiskPct, cfg.Sizing.PerSymbolCapPct, cfg.Sizing.Kelly.Temper)
	fmt.Println("Symbols:", strings.Join(cfg.Backtest.Symbols, ", "))
	fmt.Printf("Timeframe: %s | seed: %d | synthetic bars: %d\n",
		cfg.Backtest.Timeframe, cfg.Backtest.Seed, cfg.Backtest.SyntheticBars)
	fmt.Printf("Starting equity: $%.2f | artifacts: %s | store: %s\n",
		cfg.Backtest.StartingEquity, cfg.Backtest.ArtifactsDir, cfg.Store.Driver)
}

func editStrategy(reader *bufio.Reader, cfg *config.Config) {
	fmt.Println("\n--- Edit Strategy Gates ---")
	cfg.Strategy.CostCapBps = promptFloat(reader, "Cost cap (bps)", cfg.Strategy.CostCapBps)
	cfg.Strategy.TakerBps = promptFloat(reader, "Taker fee (bps)", cfg.Strategy.TakerBps)
	cfg.Strategy.VolPctBreakout = promptFloat(reader, "Breakout vol percentile gate", cfg.Strategy.VolPctBreakout)
	cfg.Strategy.VolPctMeanRevert = promptFloat(reader, "Mean-revert vol percentile gate", cfg.Strategy.VolPctMeanRevert)
	cfg.Strategy.SocialGo = promptFloat(reader, "Social delta go threshold", cfg.Strategy.SocialGo)
	cfg.Sizing.BaseRiskPct = promptFloat(reader, "Base risk (% of equity)", cfg.Sizing.BaseRiskPct)
	cfg.Sizing.PerSymbolCapPct = promptFloat(reader, "Per-symbol cap (% of equity)", cfg.Sizing.PerSymbolCapPct)
}

func editBacktest(reader *bufio.Reader, cfg *config.Config) {
	fmt.Println("\n--- Edit Backtest ---")
	fmt.Printf("Current symbols: %s\n", strings.Join(cfg.Backtest.Symbols, ", "))
	fmt.Print("Enter symbols comma-separated (blank to keep): ")
	if line, _ := reader.ReadString('\n'); strings.TrimSpace(line) != "" {
		parts := strings.Split(strings.TrimSpace(line), ",")
		cfg.Backtest.Symbols = nil
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				cfg.Backtest.Symbols = append(cfg.Backtest.Symbols, trimmed)
			}
		}
	}
	cfg.Backtest.Seed = int64(promptFloat(reader, "Seed", float64(cfg.Backtest.Seed)))
	cfg.Backtest.SyntheticBars = int(promptFloat(reader, "Synthetic bars", float64(cfg.Backtest.SyntheticBars)))
	cfg.Backtest.StartingEquity = promptFloat(reader, "Starting equity (USD)", cfg.Backtest.StartingEquity)
	cfg.Backtest.TimeoutBars = int(promptFloat(reader, "Bracket timeout (bars)", float64(cfg.Backtest.TimeoutBars)))
}

func runBacktest(reader *bufio.Reader) {
	fmt.Println("Running backtest (Ctrl+C to stop)...")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	args := []string{"run", "./cmd/decisioncore", "backtest"}
	if _, err := os.Stat(defaultConfigPath); err == nil {
		args = append(args, "--config", defaultConfigPath)
	}
	cmd := exec.CommandContext(ctx, "go", args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "backtest failed: %v\n", err)
	}

	fmt.Print("\nPress ENTER to return to menu...")
	_, _ = reader.ReadString('\n')
}

func showLastRun(cfg *config.Config) {
	path := filepath.Join(cfg.Backtest.ArtifactsDir, "latest", "metrics.json")
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "no completed run found at %s: %v\n", path, err)
		return
	}
	fmt.Println("\n--- Last Run ---")
	fmt.Println(string(data))
}

func promptFloat(reader *bufio.Reader, label string, current float64) float64 {
	fmt.Printf("%s [%.2f]: ", label, current)
	line, _ := reader.ReadString('\n')
	line = strings.TrimSpace(line)
	if line == "" {
		return current
	}
	val, err := strconv.ParseFloat(line, 64)
	if err != nil {
		fmt.Printf("invalid number, keeping %.2f\n", current)
		return current
	}
	return val
}

func loadConfig() (*config.Config, error) {
	if _, err := os.Stat(defaultConfigPath); os.IsNotExist(err) {
		return config.Default(), nil
	}
	return config.Load(defaultConfigPath)
}
