package backtest

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/dmeints/Trading-Bot-v2-sub010/internal/config"
	"github.com/dmeints/Trading-Bot-v2-sub010/internal/metrics"
)

// Manifest identifies a run and echoes the configuration that produced it.
type Manifest struct {
	RunID       string         `json:"run_id"`
	DatasetID   string         `json:"dataset_id"`
	GeneratedAt time.Time      `json:"generated_at"`
	Config      *config.Config `json:"config"`
}

var tradesHeader = []string{"timestamp", "action", "price", "size", "pnl", "score"}

// runArtifacts appends run outputs under <root>/<run-id>. Writes are
// best-effort: a failure logs and increments a counter, the run keeps going.
type runArtifacts struct {
	dir     string
	log     zerolog.Logger
	logFile *os.File
	trades  *os.File
	csvw    *csv.Writer
}

func openRunArtifacts(root, runID string, log zerolog.Logger) *runArtifacts {
	a := &runArtifacts{log: log}
	if root == "" {
		return a
	}
	dir := filepath.Join(root, runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		a.fail("run dir", err)
		return a
	}
	a.dir = dir

	logFile, err := os.OpenFile(filepath.Join(dir, "logs.ndjson"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		a.fail("logs.ndjson", err)
	} else {
		a.logFile = logFile
	}

	trades, err := os.OpenFile(filepath.Join(dir, "trades.csv"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		a.fail("trades.csv", err)
		return a
	}
	a.trades = trades
	a.csvw = csv.NewWriter(trades)
	if err := a.csvw.Write(tradesHeader); err != nil {
		a.fail("trades.csv", err)
	}
	a.csvw.Flush()
	return a
}

func (a *runArtifacts) fail(name string, err error) {
	metrics.ArtifactWriteFailures.Inc()
	a.log.Error().Err(err).Str("artifact", name).Msg("artifact write failed")
}

// Dir returns the run directory, empty when persistence is unavailable.
func (a *runArtifacts) Dir() string { return a.dir }

// LogWriter returns the ndjson log sink, or nil when unavailable.
func (a *runArtifacts) LogWriter() io.Writer {
	if a.logFile == nil {
		return nil
	}
	return a.logFile
}

// WriteManifest records the run identity once at the start of a run.
func (a *runArtifacts) WriteManifest(m Manifest) {
	a.writeJSON("manifest.json", m)
}

// WriteMetrics records aggregate metrics at the end of a run.
func (a *runArtifacts) WriteMetrics(res *Result) {
	a.writeJSON("metrics.json", res)
}

func (a *runArtifacts) writeJSON(name string, v any) {
	if a.dir == "" {
		return
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		a.fail(name, err)
		return
	}
	if err := os.WriteFile(filepath.Join(a.dir, name), append(data, '\n'), 0o644); err != nil {
		a.fail(name, err)
	}
}

// AppendTrade adds one ledger row to trades.csv.
func (a *runArtifacts) AppendTrade(tr Trade) {
	if a.csvw == nil {
		return
	}
	row := []string{
		tr.EntryTs.UTC().Format(time.RFC3339),
		tr.Tag,
		strconv.FormatFloat(tr.EntryPx, 'f', -1, 64),
		strconv.FormatFloat(tr.Qty, 'f', -1, 64),
		strconv.FormatFloat(tr.PnlUSD, 'f', -1, 64),
		strconv.FormatFloat(tr.Score, 'f', -1, 64),
	}
	if err := a.csvw.Write(row); err != nil {
		a.fail("trades.csv", err)
		return
	}
	a.csvw.Flush()
	if err := a.csvw.Error(); err != nil {
		a.fail("trades.csv", err)
	}
}

// RefreshLatest overwrites the <root>/latest/metrics.json convenience
// pointer. Run directories themselves stay append-only.
func (a *runArtifacts) RefreshLatest(root string, res *Result) {
	if root == "" {
		return
	}
	dir := filepath.Join(root, "latest")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		a.fail("latest", err)
		return
	}
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		a.fail("latest/metrics.json", err)
		return
	}
	if err := os.WriteFile(filepath.Join(dir, "metrics.json"), append(data, '\n'), 0o644); err != nil {
		a.fail("latest/metrics.json", err)
	}
}

// Close flushes and closes open file handles.
func (a *runArtifacts) Close() error {
	if a.csvw != nil {
		a.csvw.Flush()
	}
	var firstErr error
	if a.trades != nil {
		if err := a.trades.Close(); err != nil {
			firstErr = err
		}
		a.trades = nil
	}
	if a.logFile != nil {
		if err := a.logFile.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		a.logFile = nil
	}
	return firstErr
}
