package vectorstore

import "math"

// SelectMMR picks up to k candidates by maximal marginal relevance.
//
// Candidates whose Similarity is below threshold are discarded first. The
// remaining pool is ranked iteratively: each step selects the candidate
// maximizing lambda·rel − (1−lambda)·max similarity to already selected ones.
// Ties keep pool order, so lambda = 1 reproduces a stable sort by relevance.
func SelectMMR(cands []Candidate, k int, lambda, threshold float32) []Candidate {
	if k <= 0 || len(cands) == 0 {
		return nil
	}

	pool := make([]Candidate, 0, len(cands))
	for _, c := range cands {
		if c.Similarity >= threshold {
			pool = append(pool, c)
		}
	}
	if k > len(pool) {
		k = len(pool)
	}

	lam := float64(lambda)
	selected := make([]Candidate, 0, k)
	// maxSim[i] tracks max similarity of pool[i] to anything selected so far.
	maxSim := make([]float64, len(pool))
	used := make([]bool, len(pool))

	for len(selected) < k {
		best := -1
		bestScore := math.Inf(-1)
		for i, c := range pool {
			if used[i] {
				continue
			}
			score := lam * float64(c.Similarity)
			if len(selected) > 0 {
				score -= (1 - lam) * maxSim[i]
			}
			if score > bestScore {
				best, bestScore = i, score
			}
		}
		if best < 0 {
			break
		}

		used[best] = true
		selected = append(selected, pool[best])
		for i, c := range pool {
			if used[i] {
				continue
			}
			if s := cosine(c.Vector, pool[best].Vector); s > maxSim[i] || len(selected) == 1 {
				maxSim[i] = s
			}
		}
	}

	return selected
}

// cosine returns the cosine similarity of a and b, or 0 when either is empty,
// zero, or the lengths differ.
func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
