package history

import (
	"math"
	"sort"
	"time"
)

const (
	// statsSampleSize bounds how many recent runs feed a summary.
	statsSampleSize = 200

	// trendTauDays is the decay horizon of the recency-weighted trend.
	trendTauDays = 30.0

	// outlierZ flags a run as unusual. The z value is asinh-compressed,
	// so 2.0 corresponds to roughly 3.6 raw sigma.
	outlierZ = 2.0
)

// Stats summarizes recent run scores with outlier-resistant statistics.
// Spread is the normal-consistent MAD estimate (1.4826 x MAD); Trend is the
// recency-weighted mean score, newer runs counting exponentially more.
type Stats struct {
	Count    int      `json:"count"`
	Latest   float64  `json:"latest"`
	Best     float64  `json:"best"`
	Worst    float64  `json:"worst"`
	Median   float64  `json:"median"`
	Spread   float64  `json:"spread"`
	Trend    float64  `json:"trend"`
	Outliers []string `json:"outliers,omitempty"`
}

// Summarize computes score statistics over the given points. Order does not
// matter; points are re-sorted newest first.
func Summarize(points []ScorePoint) *Stats {
	if len(points) == 0 {
		return &Stats{}
	}

	sorted := append([]ScorePoint(nil), points...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})

	scores := make([]float64, len(sorted))
	for i, p := range sorted {
		scores[i] = p.Score
	}

	med := median(scores)
	stats := &Stats{
		Count:  len(sorted),
		Latest: sorted[0].Score,
		Best:   scores[0],
		Worst:  scores[0],
		Median: round2(med),
		Spread: round2(1.4826 * median(deviations(scores, med))),
		Trend:  round2(weightedTrend(sorted, time.Now())),
	}

	for _, score := range scores {
		stats.Best = math.Max(stats.Best, score)
		stats.Worst = math.Min(stats.Worst, score)
	}

	for _, p := range sorted {
		if math.Abs(RobustZ(p.Score, scores)) > outlierZ {
			stats.Outliers = append(stats.Outliers, p.RunID)
		}
	}

	return stats
}

// weightedTrend is the decay-weighted mean score relative to now.
func weightedTrend(points []ScorePoint, now time.Time) float64 {
	var sum, weights float64
	for _, p := range points {
		deltaDays := now.Sub(p.CreatedAt).Hours() / 24
		if deltaDays < 0 {
			deltaDays = 0
		}
		w := DecayWeight(deltaDays, trendTauDays)
		sum += w * p.Score
		weights += w
	}
	if weights == 0 {
		return 0
	}
	return sum / weights
}

// RobustZ computes asinh((x - med)/(1.4826*MAD)).
func RobustZ(x float64, sample []float64) float64 {
	med := median(sample)
	s := 1.4826 * median(deviations(sample, med))
	if s == 0 {
		s = 1
	}
	return math.Asinh((x - med) / s)
}

// DecayWeight computes exp(-deltaDays/tau).
func DecayWeight(deltaDays float64, tau float64) float64 {
	if tau <= 0 {
		return 0
	}
	return math.Exp(-deltaDays / tau)
}

func median(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	cp := append([]float64(nil), xs...)
	sort.Float64s(cp)
	mid := len(cp) / 2
	if len(cp)%2 == 1 {
		return cp[mid]
	}
	return 0.5 * (cp[mid-1] + cp[mid])
}

func deviations(xs []float64, center float64) []float64 {
	out := make([]float64, len(xs))
	for i, v := range xs {
		out[i] = math.Abs(v - center)
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
