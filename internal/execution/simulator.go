package execution

import (
	"math/rand"

	"github.com/rs/zerolog"

	"github.com/dmeints/Trading-Bot-v2-sub010/internal/config"
	"github.com/dmeints/Trading-Bot-v2-sub010/internal/metrics"
)

const (
	partialFillFloor = 0.70
	partialFillCeil  = 0.95
	jitterSpan       = 0.20
	midDriftCap      = 0.25
)

// Simulator prices orders against a book slice. All randomness flows through
// the injected source and simulated time through the internal clock, so a
// seeded simulator replays identically; there is no package-level state.
type Simulator struct {
	cfg     config.Execution
	rng     *rand.Rand
	clockMs float64
	log     zerolog.Logger
}

// NewSimulator builds a Simulator around a seeded random source.
func NewSimulator(cfg config.Execution, rng *rand.Rand, log zerolog.Logger) *Simulator {
	return &Simulator{cfg: cfg, rng: rng, log: log}
}

// ClockMs returns the accumulated virtual latency, the simulator's notion of
// elapsed time. It advances only when orders execute; nothing ever sleeps.
func (s *Simulator) ClockMs() float64 { return s.clockMs }

// Execute fills one order against the given market state and returns the
// execution record. Latency is drawn from the configured range and added to
// the virtual clock; slippage is bucketed by notional and scaled by vol,
// spread and impact with a ±20% jitter.
func (s *Simulator) Execute(order Order, mkt MarketState) Result {
	latency := float64(s.cfg.LatencyMinMs) + s.rng.Float64()*float64(s.cfg.LatencyMaxMs-s.cfg.LatencyMinMs)
	s.clockMs += latency

	slipBps := s.slippageBps(order, mkt)

	filled := order.NotionalUSD
	partial := false
	if order.Type == Market && s.rng.Float64() < s.cfg.PartialFillProbability {
		filled *= partialFillFloor + s.rng.Float64()*(partialFillCeil-partialFillFloor)
		partial = true
	}

	price := mkt.Mid * (1 + float64(order.Side)*slipBps/1e4)
	maker := false
	if order.Type == Limit {
		maker = s.rng.Float64() < s.cfg.MakerFillProbability
		if order.LimitPrice > 0 {
			if order.Side == Buy && price > order.LimitPrice {
				price = order.LimitPrice
			}
			if order.Side == Sell && price < order.LimitPrice {
				price = order.LimitPrice
			}
		}
	}

	feeRate := s.cfg.TakerBps
	if maker {
		feeRate = s.cfg.MakerBps
	}

	res := Result{
		OrderID:      order.ID,
		RequestedUSD: order.NotionalUSD,
		FilledUSD:    filled,
		AvgFillPrice: price,
		SlippageBps:  float64(order.Side) * (price - mkt.Mid) / mkt.Mid * 1e4,
		LatencyMs:    latency,
		FeeUSD:       filled * feeRate / 1e4,
		Maker:        maker,
		Partial:      partial,
	}

	metrics.OrdersSimulatedTotal.WithLabelValues(order.Symbol, order.Type.String()).Inc()
	if partial {
		metrics.PartialFillsTotal.WithLabelValues(order.Symbol).Inc()
	}
	s.log.Debug().
		Str("order", order.ID).
		Str("side", order.Side.String()).
		Float64("filled_usd", res.FilledUSD).
		Float64("px", res.AvgFillPrice).
		Float64("slip_bps", res.SlippageBps).
		Float64("latency_ms", res.LatencyMs).
		Msg("simulated fill")
	return res
}

// ExecuteBatch fills orders in program order, letting each fill drift the
// mid by its signed impact ratio and consume same-side depth before the
// next order prices.
func (s *Simulator) ExecuteBatch(orders []Order, mkt MarketState) ([]Result, MarketState) {
	results := make([]Result, 0, len(orders))
	for _, order := range orders {
		res := s.Execute(order, mkt)
		results = append(results, res)

		depth := sameSideDepth(order.Side, mkt)
		if depth <= 0 {
			continue
		}
		ratio := res.FilledUSD / depth
		if ratio > midDriftCap {
			ratio = midDriftCap
		}
		mkt.Mid *= 1 + float64(order.Side)*ratio
		remaining := 1 - ratio
		if order.Side == Buy {
			mkt.AskDepthUSD *= remaining
		} else {
			mkt.BidDepthUSD *= remaining
		}
	}
	return results, mkt
}

func (s *Simulator) slippageBps(order Order, mkt MarketState) float64 {
	base := bucketBps(s.cfg.Buckets, order.NotionalUSD)

	volMult := 1.0
	switch {
	case mkt.VolBps >= s.cfg.VolHighBps:
		volMult = 2.0
	case mkt.VolBps >= s.cfg.VolMediumBps:
		volMult = 1.5
	}

	spreadMult := 1.0
	if s.cfg.SpreadNormBps > 0 {
		spreadMult = 1 + mkt.SpreadBps/s.cfg.SpreadNormBps
	}

	impactMult := 1.0
	if depth := sameSideDepth(order.Side, mkt); depth > 0 {
		impactMult = 1 + order.NotionalUSD/depth
	}

	jitter := 1 - jitterSpan + 2*jitterSpan*s.rng.Float64()
	return base * volMult * spreadMult * impactMult * jitter
}

// sameSideDepth is the liquidity an aggressor of the given side consumes.
func sameSideDepth(side Side, mkt MarketState) float64 {
	if side == Buy {
		return mkt.AskDepthUSD
	}
	return mkt.BidDepthUSD
}

func bucketBps(buckets []config.SlippageBucket, notional float64) float64 {
	if len(buckets) == 0 {
		return 0
	}
	for _, b := range buckets {
		if b.MaxNotionalUSD > 0 && notional <= b.MaxNotionalUSD {
			return b.Bps
		}
	}
	return buckets[len(buckets)-1].Bps
}
