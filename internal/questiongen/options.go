package questiongen

import (
	"math/rand"
	"strconv"

	"github.com/shopspring/decimal"
)

const distractorCount = 3

var amountRatios = []float64{0.5, 0.8, 1.2, 1.5, 2.0}

var countOffsets = []int64{-2, -1, 1, 2, 3}

var percentOffsets = []int64{-20, -10, 10, 20, 30}

// amountDistractors perturbs correct by the fixed ratios. When rounding
// collapses ratios onto each other, additive steps fill the remainder.
func amountDistractors(rnd *rand.Rand, correct int64) []int64 {
	base := decimal.NewFromInt(correct)
	candidates := make([]int64, 0, len(amountRatios))
	for _, ratio := range amountRatios {
		v := base.Mul(decimal.NewFromFloat(ratio)).Round(0).IntPart()
		if v > 0 {
			candidates = append(candidates, v)
		}
	}

	step := correct / 10
	if step < 1 {
		step = 1
	}
	return pickDistinct(rnd, correct, candidates, func(k int64) (int64, bool) {
		return correct + step*k, true
	})
}

func countDistractors(rnd *rand.Rand, correct int64) []int64 {
	candidates := make([]int64, 0, len(countOffsets))
	for _, off := range countOffsets {
		if v := correct + off; v > 0 {
			candidates = append(candidates, v)
		}
	}
	return pickDistinct(rnd, correct, candidates, func(k int64) (int64, bool) {
		return correct + 3 + k, true
	})
}

func percentDistractors(rnd *rand.Rand, correct int64) []int64 {
	candidates := make([]int64, 0, len(percentOffsets))
	for _, off := range percentOffsets {
		candidates = append(candidates, clampPercent(correct+off))
	}
	return pickDistinct(rnd, correct, candidates, func(k int64) (int64, bool) {
		// alternate above and below in steps of 5
		delta := 5 * ((k + 1) / 2)
		if k%2 == 0 {
			delta = -delta
		}
		v := correct + delta
		return v, v >= 0 && v <= 100
	})
}

// pickDistinct draws distractorCount values from candidates in random order,
// skipping the correct value and duplicates, then falls back to fill(k) for k = 1, 2, ...
func pickDistinct(rnd *rand.Rand, correct int64, candidates []int64, fill func(k int64) (int64, bool)) []int64 {
	seen := map[int64]struct{}{correct: {}}
	out := make([]int64, 0, distractorCount)

	rnd.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
	for _, v := range candidates {
		if len(out) == distractorCount {
			return out
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}

	for k := int64(1); len(out) < distractorCount && k < 1000; k++ {
		v, ok := fill(k)
		if !ok {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// labelDistractors takes up to n labels from preferred, then pool, never the correct one.
func labelDistractors(rnd *rand.Rand, correct string, preferred, pool []string, n int) []string {
	seen := map[string]struct{}{correct: {}}
	out := make([]string, 0, n)

	take := func(labels []string) {
		shuffled := append([]string(nil), labels...)
		rnd.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})
		for _, l := range shuffled {
			if len(out) == n {
				return
			}
			if _, dup := seen[l]; dup {
				continue
			}
			seen[l] = struct{}{}
			out = append(out, l)
		}
	}
	take(preferred)
	take(pool)
	return out
}

func clampPercent(v int64) int64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func formatInts(values []int64, suffix string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strconv.FormatInt(v, 10) + suffix
	}
	return out
}
