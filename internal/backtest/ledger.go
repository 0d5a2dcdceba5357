package backtest

import (
	"sync"
	"time"
)

// Exit reasons recorded on closed trades.
const (
	exitTakeProfit = "take_profit"
	exitStopLoss   = "stop_loss"
	exitTimeout    = "timeout"
)

// Trade is one closed round trip in the ledger.
type Trade struct {
	Symbol   string    `json:"symbol"`
	Tag      string    `json:"tag"`
	EntryTs  time.Time `json:"entry_ts"`
	ExitTs   time.Time `json:"exit_ts"`
	EntryPx  float64   `json:"entry_px"`
	ExitPx   float64   `json:"exit_px"`
	Qty      float64   `json:"qty"`
	FeesUSD  float64   `json:"fees_usd"`
	PnlUSD   float64   `json:"pnl_usd"`
	Score    float64   `json:"score"`
	ExitKind string    `json:"exit_kind"`
}

// Ledger stores closed trades in memory for quick inspection.
type Ledger struct {
	mu     sync.Mutex
	trades []Trade
}

// NewLedger creates an empty ledger optionally pre-sizing storage.
func NewLedger(capacity int) *Ledger {
	if capacity < 0 {
		capacity = 0
	}
	return &Ledger{trades: make([]Trade, 0, capacity)}
}

// Append adds a closed trade to the ledger.
func (l *Ledger) Append(trade Trade) {
	l.mu.Lock()
	l.trades = append(l.trades, trade)
	l.mu.Unlock()
}

// Snapshot returns a copy of the recorded trades.
func (l *Ledger) Snapshot() []Trade {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Trade, len(l.trades))
	copy(out, l.trades)
	return out
}

// Reset clears all stored trades.
func (l *Ledger) Reset() {
	l.mu.Lock()
	l.trades = l.trades[:0]
	l.mu.Unlock()
}
