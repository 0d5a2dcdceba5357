package labeler

import "math"

// ClassWeights returns inverse-frequency weights over the primary classes
// present in the batch, normalized so that sum(count_c * weight_c) equals
// the total label count.
func ClassWeights(labels []Label) map[int]float64 {
	counts := make(map[int]int)
	for _, l := range labels {
		counts[l.Primary]++
	}
	weights := make(map[int]float64, len(counts))
	k := float64(len(counts))
	total := float64(len(labels))
	for class, n := range counts {
		weights[class] = total / (k * float64(n))
	}
	return weights
}

// BarrierStats aggregates labeling quality for one barrier type.
type BarrierStats struct {
	Count        int     `json:"count"`
	HitRate      float64 `json:"hit_rate"`
	AvgHolding   float64 `json:"avg_holding"`
	ReturnMean   float64 `json:"return_mean"`
	ReturnStddev float64 `json:"return_stddev"`
}

// Summary describes a label batch for QA review.
type Summary struct {
	Total      int                      `json:"total"`
	PerBarrier map[Barrier]BarrierStats `json:"per_barrier"`
}

// Summarize computes hit rates, holding periods and return moments per
// barrier type.
func Summarize(labels []Label) Summary {
	out := Summary{Total: len(labels), PerBarrier: make(map[Barrier]BarrierStats)}
	if len(labels) == 0 {
		return out
	}

	groups := make(map[Barrier][]Label)
	for _, l := range labels {
		groups[l.Barrier] = append(groups[l.Barrier], l)
	}
	for barrier, group := range groups {
		n := float64(len(group))
		var holdSum, retSum, retSumSq float64
		for _, l := range group {
			holdSum += float64(l.HoldingBars)
			retSum += l.Return
			retSumSq += l.Return * l.Return
		}
		mean := retSum / n
		variance := retSumSq/n - mean*mean
		stddev := 0.0
		if variance > 0 {
			stddev = math.Sqrt(variance)
		}
		out.PerBarrier[barrier] = BarrierStats{
			Count:        len(group),
			HitRate:      n / float64(len(labels)),
			AvgHolding:   holdSum / n,
			ReturnMean:   mean,
			ReturnStddev: stddev,
		}
	}
	return out
}
