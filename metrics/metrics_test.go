package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAccuracy(t *testing.T) {
	assert.Equal(t, 1.0, Accuracy([]int{0, 1, 2}, []int{0, 1, 2}))
	assert.Equal(t, 0.0, Accuracy([]int{0, 0}, []int{1, 1}))
	assert.Equal(t, 0.75, Accuracy([]int{0, 1, 1, 0}, []int{0, 1, 1, 1}))
	assert.Equal(t, 0.0, Accuracy(nil, nil))
}

func TestWeightedF1Perfect(t *testing.T) {
	y := []int{0, 0, 1, 1, 2}
	assert.InDelta(t, 1.0, WeightedF1(y, y), 1e-12)
}

func TestWeightedF1HandComputed(t *testing.T) {
	// y:    0 0 0 1 1 2
	// pred: 0 0 1 1 2 2
	// class 0: tp=2 fn=1 fp=0 -> f1 = 4/5, support 3
	// class 1: tp=1 fn=1 fp=1 -> f1 = 1/2, support 2
	// class 2: tp=1 fn=0 fp=1 -> f1 = 2/3, support 1
	// weighted = (3*4/5 + 2*1/2 + 1*2/3) / 6
	y := []int{0, 0, 0, 1, 1, 2}
	pred := []int{0, 0, 1, 1, 2, 2}
	want := (3*4.0/5 + 2*1.0/2 + 1*2.0/3) / 6
	assert.InDelta(t, want, WeightedF1(y, pred), 1e-12)
}

func TestWeightedF1MissedClass(t *testing.T) {
	// Class 1 is never predicted: zero f1 for it, but it still carries weight.
	y := []int{0, 0, 1, 1}
	pred := []int{0, 0, 0, 0}
	// class 0: tp=2 fp=2 fn=0 -> f1 = 4/6, support 2. class 1: f1 = 0, support 2.
	assert.InDelta(t, (2*4.0/6)/4, WeightedF1(y, pred), 1e-12)
}

func TestWeightedF1SpuriousClass(t *testing.T) {
	// A class present only in predictions gets no weight.
	y := []int{0, 0}
	pred := []int{0, 3}
	// class 0: tp=1 fn=1 fp=0 -> f1 = 2/3, support 2.
	assert.InDelta(t, 2.0/3, WeightedF1(y, pred), 1e-12)
}

func TestMismatchPanics(t *testing.T) {
	assert.Panics(t, func() { Accuracy([]int{0}, []int{0, 1}) })
	assert.Panics(t, func() { WeightedF1([]int{0}, nil) })
}

func TestCountsAndClasses(t *testing.T) {
	y := []int{3, 1, 3, 0, 1, 3}
	assert.Equal(t, map[int]int{0: 1, 1: 2, 3: 3}, Counts(y))
	assert.Equal(t, []int{0, 1, 3}, Classes(y))
}
