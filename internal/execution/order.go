// Package execution simulates limit-order-book fills with latency, slippage, partial fills and fees.
package execution

// Side is the order direction, signed so it can scale price impact.
type Side int

const (
	Buy  Side = 1
	Sell Side = -1
)

// String returns the wire name of the side.
func (s Side) String() string {
	if s == Sell {
		return "sell"
	}
	return "buy"
}

// OrderType distinguishes taker market orders from passive limit orders.
type OrderType int

const (
	Market OrderType = iota
	Limit
)

// String returns the wire name of the order type.
func (t OrderType) String() string {
	if t == Limit {
		return "limit"
	}
	return "market"
}

// Order is a pre-validated instruction for the simulator. Validation of
// symbols and minimum sizes happens upstream; the simulator trusts its input.
type Order struct {
	ID          string
	Symbol      string
	Side        Side
	Type        OrderType
	NotionalUSD float64
	LimitPrice  float64 // 0 means unpriced
}

// MarketState is the book slice the simulator prices against.
type MarketState struct {
	Mid         float64
	SpreadBps   float64
	VolBps      float64
	BidDepthUSD float64
	AskDepthUSD float64
}

// Result describes one simulated execution.
type Result struct {
	OrderID      string
	RequestedUSD float64
	FilledUSD    float64
	AvgFillPrice float64
	SlippageBps  float64
	LatencyMs    float64
	FeeUSD       float64
	Maker        bool
	Partial      bool
}
