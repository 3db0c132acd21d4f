// package metrics implements the classification scores reported per fold:
// accuracy and support-weighted F1 over integer class labels.
package metrics

import "sort"

// Accuracy returns the fraction of predictions matching the true labels.
func Accuracy(y, pred []int) float64 {
	if len(y) != len(pred) {
		panic("metrics: length mismatch")
	}
	if len(y) == 0 {
		return 0
	}
	correct := 0
	for i := range y {
		if y[i] == pred[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(y))
}

// WeightedF1 returns the F1 score averaged across classes, each class
// weighted by its support in y. Classes with zero precision+recall
// contribute zero, matching the usual convention.
func WeightedF1(y, pred []int) float64 {
	if len(y) != len(pred) {
		panic("metrics: length mismatch")
	}
	if len(y) == 0 {
		return 0
	}

	type counts struct{ tp, fp, fn, support int }
	perClass := make(map[int]*counts)
	class := func(c int) *counts {
		if perClass[c] == nil {
			perClass[c] = &counts{}
		}
		return perClass[c]
	}
	for i := range y {
		if y[i] == pred[i] {
			cc := class(y[i])
			cc.tp++
			cc.support++
			continue
		}
		cy := class(y[i])
		cy.fn++
		cy.support++
		class(pred[i]).fp++
	}

	var sum float64
	for _, c := range perClass {
		if c.support == 0 {
			// Predicted-only class: no weight in y.
			continue
		}
		var f1 float64
		if denom := 2*c.tp + c.fp + c.fn; denom > 0 {
			f1 = 2 * float64(c.tp) / float64(denom)
		}
		sum += f1 * float64(c.support)
	}
	return sum / float64(len(y))
}

// Counts tallies the occurrences of each label.
func Counts(y []int) map[int]int {
	out := make(map[int]int)
	for _, c := range y {
		out[c]++
	}
	return out
}

// Classes returns the distinct labels in y in increasing order.
func Classes(y []int) []int {
	seen := Counts(y)
	out := make([]int, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Ints(out)
	return out
}
