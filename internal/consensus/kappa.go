package consensus

const epsilon = 1e-9

// CohensKappa computes the unweighted (nominal) Cohen's kappa between two
// equal-length vectors of category codes, one entry per item, per §4.6:
// observed agreement P_o, expected agreement P_e from each annotator's
// marginal category distribution, kappa = (P_o - P_e) / (1 - P_e). Returns
// 1.0 when 1 - P_e is within epsilon of zero (both annotators unanimous on
// the same category).
func CohensKappa(a, b []string) (float64, error) {
	if len(a) != len(b) {
		return 0, &LengthMismatchError{Expected: len(a), Got: len(b)}
	}
	if len(a) == 0 {
		return 0, ErrEmptyInput
	}

	n := float64(len(a))
	agree := 0.0
	countA := map[string]float64{}
	countB := map[string]float64{}
	for i := range a {
		countA[a[i]]++
		countB[b[i]]++
		if a[i] == b[i] {
			agree++
		}
	}
	po := agree / n

	pe := 0.0
	for cat, ca := range countA {
		pe += (ca / n) * (countB[cat] / n)
	}

	if 1-pe < epsilon {
		return 1.0, nil
	}
	return (po - pe) / (1 - pe), nil
}

// WeightedKappa computes the linear-weighted Cohen's kappa between two
// equal-length vectors of ordinal category ranks in [0, k). The weight
// function is w(i,j) = |i-j| / (k-1); kappa = 1 - D_o/D_e where D_o is the
// observed weighted disagreement and D_e is the weighted disagreement
// expected from each annotator's marginal distribution.
func WeightedKappa(a, b []int, k int) (float64, error) {
	if len(a) != len(b) {
		return 0, &LengthMismatchError{Expected: len(a), Got: len(b)}
	}
	if len(a) == 0 {
		return 0, ErrEmptyInput
	}
	if k < 2 {
		return 0, &ComputationError{Detail: "weighted kappa requires at least 2 categories"}
	}

	weight := func(i, j int) float64 {
		return absFloat(float64(i-j)) / float64(k-1)
	}

	n := float64(len(a))
	countA := make([]float64, k)
	countB := make([]float64, k)
	do := 0.0
	for i := range a {
		countA[a[i]]++
		countB[b[i]]++
		do += weight(a[i], b[i])
	}
	do /= n

	de := 0.0
	for i := 0; i < k; i++ {
		for j := 0; j < k; j++ {
			de += weight(i, j) * (countA[i] / n) * (countB[j] / n)
		}
	}

	if de < epsilon {
		return 1.0, nil
	}
	return 1 - do/de, nil
}

func absFloat(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
