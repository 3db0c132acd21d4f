// package fold implements the stratified k-fold partitioner used for
// cross-validation. Each fold holds the index sets of the held-in training
// samples and the held-out validation samples.
package fold

import (
	"math/rand"
	"sort"
)

// Fold is one train/validation index partition. Indices refer to sample
// rows in the full training set.
type Fold struct {
	Train []int // rows used for fitting
	Val   []int // rows held out for validation
}

// Stratified partitions the samples behind labels into k folds whose
// validation sets are pairwise disjoint, cover every sample exactly once,
// and approximate the label proportions of the full set: per class, fold
// validation counts differ by at most one. Samples are shuffled per class
// with the given seed, so fixed seeds give identical partitions.
func Stratified(labels []int, k int, seed int64) []Fold {
	nData := len(labels)
	if k < 2 {
		panic("fold: need at least two folds")
	}
	if k > nData {
		panic("fold: more folds than samples")
	}

	// Group sample indices per class, classes in sorted order so the
	// partition depends only on the labels and the seed.
	byClass := make(map[int][]int)
	for i, c := range labels {
		byClass[c] = append(byClass[c], i)
	}
	classes := make([]int, 0, len(byClass))
	for c := range byClass {
		classes = append(classes, c)
	}
	sort.Ints(classes)

	rng := rand.New(rand.NewSource(seed))

	// Shuffle within each class and deal the members round-robin into the
	// k validation buckets.
	val := make([][]int, k)
	for _, c := range classes {
		group := byClass[c]
		rng.Shuffle(len(group), func(i, j int) {
			group[i], group[j] = group[j], group[i]
		})
		for i, idx := range group {
			val[i%k] = append(val[i%k], idx)
		}
	}

	folds := make([]Fold, k)
	for i := range folds {
		sort.Ints(val[i])
		folds[i].Val = val[i]
		folds[i].Train = complement(val[i], nData)
	}
	return folds
}

// complement returns the sorted indices in [0, n) not present in the sorted
// slice in.
func complement(in []int, n int) []int {
	out := make([]int, 0, n-len(in))
	next := 0
	for i := 0; i < n; i++ {
		if next < len(in) && in[next] == i {
			next++
			continue
		}
		out = append(out, i)
	}
	return out
}
