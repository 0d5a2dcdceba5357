package backtest

import "sync"

const epsilon = 1e-9

// Account tracks equity, peak balance and drawdown while trades are booked
// against it.
type Account struct {
	mu             sync.Mutex
	startingEquity float64
	equity         float64
	peak           float64
	maxDrawdown    float64
	returns        []float64
}

// NewAccount constructs an account populated with starting equity.
func NewAccount(startingEquity float64) *Account {
	return &Account{
		startingEquity: startingEquity,
		equity:         startingEquity,
		peak:           startingEquity,
	}
}

// StartingEquity returns the initial bankroll used to compute total return.
func (a *Account) StartingEquity() float64 { return a.startingEquity }

// Equity returns the current balance.
func (a *Account) Equity() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.equity
}

// Apply books one trade's net profit, updating peak balance, drawdown and
// the period-return series.
func (a *Account) Apply(pnlUSD float64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.equity > epsilon {
		a.returns = append(a.returns, pnlUSD/a.equity)
	}
	a.equity += pnlUSD
	if a.equity > a.peak {
		a.peak = a.equity
	}
	if a.peak > epsilon {
		if dd := (a.peak - a.equity) / a.peak; dd > a.maxDrawdown {
			a.maxDrawdown = dd
		}
	}
}

// MaxDrawdown returns the deepest peak-to-trough equity fraction lost.
func (a *Account) MaxDrawdown() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.maxDrawdown
}

// TotalReturn returns the fractional gain over starting equity.
func (a *Account) TotalReturn() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.startingEquity <= epsilon {
		return 0
	}
	return (a.equity - a.startingEquity) / a.startingEquity
}

// Returns returns a copy of the per-trade period returns.
func (a *Account) Returns() []float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]float64, len(a.returns))
	copy(out, a.returns)
	return out
}
