package execution

// TCASummary aggregates execution quality over a set of simulated fills.
type TCASummary struct {
	Orders         int     `json:"orders"`
	AvgSlippageBps float64 `json:"avg_slippage_bps"`
	TotalFeesUSD   float64 `json:"total_fees_usd"`
	FillRate       float64 `json:"fill_rate"`
	AvgLatencyMs   float64 `json:"avg_latency_ms"`
	CostBps        float64 `json:"cost_bps"`
}

// Analyze reduces execution results to a transaction cost summary. Slippage
// is weighted by filled notional and CostBps folds fees into the same unit,
// so the figure reads as all-in cost per traded dollar.
func Analyze(results []Result) TCASummary {
	sum := TCASummary{Orders: len(results)}
	if len(results) == 0 {
		return sum
	}

	var requested, filled, slipWeighted, latency float64
	for _, r := range results {
		requested += r.RequestedUSD
		filled += r.FilledUSD
		slipWeighted += r.SlippageBps * r.FilledUSD
		latency += r.LatencyMs
		sum.TotalFeesUSD += r.FeeUSD
	}

	if filled > 0 {
		sum.AvgSlippageBps = slipWeighted / filled
		sum.CostBps = sum.AvgSlippageBps + sum.TotalFeesUSD/filled*1e4
	}
	if requested > 0 {
		sum.FillRate = filled / requested
	}
	sum.AvgLatencyMs = latency / float64(len(results))
	return sum
}
