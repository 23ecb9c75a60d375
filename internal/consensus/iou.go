package consensus

import "sort"

// Interval is a half-open [Start, End) span, e.g. a labeled text span.
type Interval struct {
	Start float64
	End   float64
}

// Box is an axis-aligned rectangle, e.g. a bounding-box annotation.
type Box struct {
	X1, Y1, X2, Y2 float64
}

// SpanIoU computes intersection-over-union between two sets of intervals,
// per §4.6: overlapping intervals within each set are merged first, then
// IoU is the ratio of the merged sets' overlap length to their union
// length.
func SpanIoU(a, b []Interval) (float64, error) {
	if len(a) == 0 && len(b) == 0 {
		return 0, ErrEmptyInput
	}
	ma := mergeIntervals(a)
	mb := mergeIntervals(b)

	intersection := 0.0
	for _, ia := range ma {
		for _, ib := range mb {
			lo := maxFloat(ia.Start, ib.Start)
			hi := minFloat(ia.End, ib.End)
			if hi > lo {
				intersection += hi - lo
			}
		}
	}

	union := intervalLength(ma) + intervalLength(mb) - intersection
	if union <= 0 {
		return 0, &ComputationError{Detail: "union length is zero"}
	}
	return intersection / union, nil
}

func mergeIntervals(ivs []Interval) []Interval {
	if len(ivs) == 0 {
		return nil
	}
	sorted := make([]Interval, len(ivs))
	copy(sorted, ivs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	merged := []Interval{sorted[0]}
	for _, iv := range sorted[1:] {
		last := &merged[len(merged)-1]
		if iv.Start <= last.End {
			if iv.End > last.End {
				last.End = iv.End
			}
			continue
		}
		merged = append(merged, iv)
	}
	return merged
}

func intervalLength(ivs []Interval) float64 {
	total := 0.0
	for _, iv := range ivs {
		total += iv.End - iv.Start
	}
	return total
}

// BoxIoU computes 2-D intersection-over-union between two axis-aligned
// boxes.
func BoxIoU(a, b Box) (float64, error) {
	ix1, iy1 := maxFloat(a.X1, b.X1), maxFloat(a.Y1, b.Y1)
	ix2, iy2 := minFloat(a.X2, b.X2), minFloat(a.Y2, b.Y2)

	var intersection float64
	if ix2 > ix1 && iy2 > iy1 {
		intersection = (ix2 - ix1) * (iy2 - iy1)
	}

	areaA := boxArea(a)
	areaB := boxArea(b)
	union := areaA + areaB - intersection
	if union <= 0 {
		return 0, &ComputationError{Detail: "union area is zero"}
	}
	return intersection / union, nil
}

func boxArea(b Box) float64 {
	w := b.X2 - b.X1
	h := b.Y2 - b.Y1
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
