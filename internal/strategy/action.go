// Package strategy routes feature snapshots through prioritized entry heuristics guarded by hard stops and a cost gate.
package strategy

// Kind discriminates the Action variants.
type Kind int

const (
	Hold Kind = iota
	EnterMarket
	EnterIOC
	EnterLimitMaker
)

// String returns the wire name of the action kind.
func (k Kind) String() string {
	switch k {
	case Hold:
		return "hold"
	case EnterMarket:
		return "enter_market"
	case EnterIOC:
		return "enter_ioc"
	case EnterLimitMaker:
		return "enter_limit_maker"
	default:
		return "unknown"
	}
}

// Hold reason codes surfaced instead of errors.
const (
	ReasonMacroBlackout = "macro_blackout"
	ReasonGasSpike      = "onchain_gas_spike"
	ReasonSlippageCap   = "slippage_cap"
	ReasonNoEdge        = "no_edge"
)

// Strategy tags carried by entry actions.
const (
	TagBreakout   = "breakout"
	TagMeanRevert = "mean_revert"
	TagNews       = "news"
)

// Action is the kernel's decision. Only the fields of the active variant
// are meaningful: Reason for holds, Price only for limit-maker entries.
// Values are produced fresh per call and never mutated afterwards.
type Action struct {
	Kind       Kind
	Reason     string
	SizePct    float64
	Price      float64
	Tag        string
	TPBps      float64
	SLBps      float64
	ReduceOnly bool
}

// HoldAction builds the hold variant carrying its reason code.
func HoldAction(reason string) Action {
	return Action{Kind: Hold, Reason: reason}
}

// Entry reports whether the action opens a position.
func (a Action) Entry() bool {
	return a.Kind != Hold
}

// Label returns the reason for holds and the strategy tag for entries,
// the low-cardinality string used in logs and metrics.
func (a Action) Label() string {
	if a.Kind == Hold {
		return a.Reason
	}
	return a.Tag
}

// Position is the caller-owned open position handed into the kernel.
// A nil pointer means flat; the kernel never mutates it.
type Position struct {
	Symbol   string
	Qty      float64 // signed, negative for shorts
	AvgEntry float64
}
