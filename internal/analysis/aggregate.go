package analysis

import "math"

// Aggregate reduces weighted metric scores to Σ(value·weight)/Σweight,
// rounded to 2 decimals. An empty or zero-weight set aggregates to 0. The
// same reduction runs at every level: sub-metrics into an analyzer score,
// analyzer scores into a category score, category scores into the overall
// score.
func Aggregate(pairs []MetricScore) float64 {
	var weighted, total float64
	for _, p := range pairs {
		weighted += p.Value * p.Weight
		total += p.Weight
	}
	if total == 0 {
		return 0
	}
	return Round2(weighted / total)
}

// Round2 rounds half away from zero to 2 decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Clamp pins v into [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// penalize subtracts a per-issue penalty from a perfect score, flooring at 0.
func penalize(issues int, penalty float64) float64 {
	return Clamp(100-float64(issues)*penalty, 0, 100)
}

// bonus adds a per-hit reward on top of a baseline, capping at 100.
func bonus(baseline float64, hits int, reward float64) float64 {
	return Clamp(baseline+float64(hits)*reward, 0, 100)
}

// ratioScore scales a 0..1 coverage ratio to 0..100.
func ratioScore(covered, total int) float64 {
	if total == 0 {
		return 100
	}
	return Clamp(float64(covered)/float64(total)*100, 0, 100)
}