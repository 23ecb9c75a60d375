package consensus

import "sort"

// Level selects the distance function Krippendorff's alpha measures
// disagreement with.
type Level string

const (
	LevelNominal  Level = "nominal"
	LevelOrdinal  Level = "ordinal"
	LevelInterval Level = "interval"
)

// valueAt is one non-missing cell of the item x rater table, flattened for
// the pairwise disagreement sums below.
type valueAt struct {
	item int
	v    float64
}

// KrippendorffAlpha computes alpha over a table of items x raters, where
// table[item][rater] is nil for a missing cell and a numeric code
// otherwise, per §4.6. For LevelNominal the code is an opaque category id;
// for LevelOrdinal it is that category's position among the distinct
// codes observed (rank differences are squared); for LevelInterval it is
// a continuous measurement (value differences are squared).
//
// D_o is the mean weighted disagreement within items (each item
// contributing every ordered pair of its non-missing values, weighted
// 1/(m_i-1) as in §4.6); D_e is the weighted disagreement expected from
// the overall pooled distribution of values. Returns 1.0 when D_e is
// within epsilon of zero.
func KrippendorffAlpha(table [][]*float64, level Level) (float64, error) {
	var all []valueAt
	itemValues := map[int][]float64{}
	for i, row := range table {
		for _, cell := range row {
			if cell == nil {
				continue
			}
			all = append(all, valueAt{item: i, v: *cell})
			itemValues[i] = append(itemValues[i], *cell)
		}
	}
	if len(all) == 0 {
		return 0, ErrEmptyInput
	}

	delta := distanceFunc(level, all)

	n := float64(len(all))

	do := 0.0
	for _, vals := range itemValues {
		m := len(vals)
		if m < 2 {
			continue
		}
		sum := 0.0
		for c := 0; c < m; c++ {
			for k := 0; k < m; k++ {
				if c == k {
					continue
				}
				sum += delta(vals[c], vals[k])
			}
		}
		do += sum / float64(m-1)
	}
	do /= n

	de := 0.0
	for c := 0; c < len(all); c++ {
		for k := 0; k < len(all); k++ {
			if c == k {
				continue
			}
			de += delta(all[c].v, all[k].v)
		}
	}
	if n*(n-1) == 0 {
		return 1.0, nil
	}
	de /= n * (n - 1)

	if de < epsilon {
		return 1.0, nil
	}
	return 1 - do/de, nil
}

func distanceFunc(level Level, all []valueAt) func(a, b float64) float64 {
	switch level {
	case LevelInterval:
		return func(a, b float64) float64 { return (a - b) * (a - b) }
	case LevelOrdinal:
		rank := ordinalRanks(all)
		return func(a, b float64) float64 {
			ra, rb := rank[a], rank[b]
			d := ra - rb
			return d * d
		}
	default: // nominal
		return func(a, b float64) float64 {
			if a == b {
				return 0
			}
			return 1
		}
	}
}

// ordinalRanks assigns each distinct value observed across the whole
// dataset its position among sorted distinct values. This is a documented
// simplification of Krippendorff's midrank-based ordinal metric: it
// preserves ordering and produces squared-rank-difference distances
// without requiring per-category frequency weighting.
func ordinalRanks(all []valueAt) map[float64]float64 {
	seen := map[float64]bool{}
	var distinct []float64
	for _, a := range all {
		if !seen[a.v] {
			seen[a.v] = true
			distinct = append(distinct, a.v)
		}
	}
	sort.Float64s(distinct)
	rank := make(map[float64]float64, len(distinct))
	for i, v := range distinct {
		rank[v] = float64(i)
	}
	return rank
}
