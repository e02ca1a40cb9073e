package formulas

import (
	"sort"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"
)

// AveragePrecision computes the area under the precision-recall curve
// using the step-wise interpolation AP = sum (R_n - R_n-1) * P_n over
// descending score thresholds. Returns 0 when there are no positives.
func AveragePrecision(labels []int, scores []float64) float64 {
	if len(labels) == 0 || len(labels) != len(scores) {
		return 0
	}
	total := 0
	for _, l := range labels {
		if l == 1 {
			total++
		}
	}
	if total == 0 {
		return 0
	}

	idx := make([]int, len(scores))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return scores[idx[a]] > scores[idx[b]]
	})

	ap := 0.0
	tp, fp := 0, 0
	prevRecall := 0.0
	for i, id := range idx {
		if labels[id] == 1 {
			tp++
		} else {
			fp++
		}
		// close the threshold group on the last tied score
		if i+1 < len(idx) && scores[idx[i+1]] == scores[id] {
			continue
		}
		precision := float64(tp) / float64(tp+fp)
		recall := float64(tp) / float64(total)
		ap += (recall - prevRecall) * precision
		prevRecall = recall
	}
	return ap
}

// SafeROCAUC computes the area under the ROC curve, defined as 0.5 when
// the labels contain only one class (never NaN).
func SafeROCAUC(labels []int, scores []float64) float64 {
	if len(labels) == 0 || len(labels) != len(scores) {
		return 0.5
	}
	pos, neg := 0, 0
	for _, l := range labels {
		if l == 1 {
			pos++
		} else {
			neg++
		}
	}
	if pos == 0 || neg == 0 {
		return 0.5
	}

	// stat.ROC wants scores ascending with aligned class flags
	idx := make([]int, len(scores))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return scores[idx[a]] < scores[idx[b]]
	})
	y := make([]float64, len(scores))
	classes := make([]bool, len(scores))
	for i, id := range idx {
		y[i] = scores[id]
		classes[i] = labels[id] == 1
	}

	tpr, fpr, _ := stat.ROC(nil, y, classes, nil)
	return integrate.Trapezoidal(fpr, tpr)
}
